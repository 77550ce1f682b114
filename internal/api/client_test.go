package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrinet/agrichat/internal/domain"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestClient_AuthAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing X-Request-ID")
		}
		respond(w, http.StatusOK, map[string]any{"success": true, "data": []any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "secret")
	if _, err := c.ListRooms(context.Background()); err != nil {
		t.Fatalf("list rooms: %v", err)
	}
}

func TestClient_ListRoomsParsesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/rooms" {
			t.Errorf("path = %q", r.URL.Path)
		}
		respond(w, http.StatusOK, map[string]any{
			"success": true,
			"data": []map[string]any{
				{
					"_id":         "aaaaaaaaaaaaaaaaaaaaaaaa",
					"lastMessage": "مرحبا",
					"isRated":     true,
					"user": map[string]any{
						"_id":      "111111111111111111111111",
						"name":     "أحمد",
						"userType": "expert",
						"expertDetails": map[string]any{
							"averageRating": "4.7",
							"totalRatings":  12,
						},
					},
				},
			},
		})
	}))
	defer srv.Close()

	rooms, err := NewClient(srv.URL, "t").ListRooms(context.Background())
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms))
	}
	r := rooms[0]
	if r.ID != "aaaaaaaaaaaaaaaaaaaaaaaa" || !r.IsRated || r.Counterpart.Name != "أحمد" {
		t.Fatalf("unexpected room: %+v", r)
	}
	if r.Counterpart.ExpertDetails == nil || r.Counterpart.ExpertDetails.AverageRating.String() != "4.7" {
		t.Fatalf("unexpected expert details: %+v", r.Counterpart.ExpertDetails)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusForbidden, map[string]any{"success": false, "message": "not a participant"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").ListMessages(context.Background(), "room")
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "not a participant" {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
}

func TestClient_FailureFlagWithOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"success": false, "message": "nope"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").ListRooms(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestClient_CreateRoomSendsRoleField(t *testing.T) {
	tests := []struct {
		role      domain.Role
		wantField string
	}{
		{domain.RoleFarmer, "expertId"},
		{domain.RoleExpert, "farmerId"},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				if body[tt.wantField] != "111111111111111111111111" {
					t.Errorf("expected %s in body, got %v", tt.wantField, body)
				}
				respond(w, http.StatusCreated, map[string]any{
					"success": true,
					"data":    map[string]any{"_id": "bbbbbbbbbbbbbbbbbbbbbbbb"},
				})
			}))
			defer srv.Close()

			room, err := NewClient(srv.URL, "t").CreateRoom(context.Background(), tt.role, "111111111111111111111111")
			if err != nil {
				t.Fatalf("create room: %v", err)
			}
			if room.ID != "bbbbbbbbbbbbbbbbbbbbbbbb" {
				t.Fatalf("unexpected room: %+v", room)
			}
		})
	}
}

func TestClient_SendMessageImageGoesMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("content"); got != "صورة" {
			t.Errorf("content = %q", got)
		}
		if got := r.FormValue("messageType"); got != "image" {
			t.Errorf("messageType = %q", got)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		if header.Filename != "leaf.jpg" {
			t.Errorf("filename = %q", header.Filename)
		}
		respond(w, http.StatusCreated, map[string]any{
			"success": true,
			"data":    map[string]any{"_id": "m1", "messageType": "image"},
		})
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL, "t").SendMessage(context.Background(), "room", SendMessageRequest{
		Content: "صورة",
		Attachment: &domain.ImageAttachment{
			Name: "leaf.jpg",
			MIME: "image/jpeg",
			Data: []byte{0xFF, 0xD8, 0xFF},
		},
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if msg.MessageType != domain.MessageImage {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestClient_RoomConsultationNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, map[string]any{"success": false, "message": "No completed consultation found"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").RoomConsultation(context.Background(), "room")
	if !errors.Is(err, domain.ErrNoConsultation) {
		t.Fatalf("expected ErrNoConsultation, got %v", err)
	}
}

func TestClient_SubmitRatingAlreadyRated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "This consultation has already been rated",
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "t").SubmitRating(context.Background(), "room", 5, "")
	if !errors.Is(err, domain.ErrAlreadyRated) {
		t.Fatalf("expected ErrAlreadyRated, got %v", err)
	}
}

func TestClient_SubmitRatingReturnsExpertName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["rating"] != float64(4) {
			t.Errorf("rating = %v", body["rating"])
		}
		respond(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    map[string]string{"expertName": "سارة"},
		})
	}))
	defer srv.Close()

	name, err := NewClient(srv.URL, "t").SubmitRating(context.Background(), "room", 4, "جيد")
	if err != nil {
		t.Fatalf("submit rating: %v", err)
	}
	if name != "سارة" {
		t.Fatalf("expert name = %q", name)
	}
}

func TestClient_UpdateConsultOrderUsesPatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/consult-orders/order1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		respond(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "t").UpdateConsultOrderStatus(context.Background(), "order1", domain.ConsultCompleted)
	if err != nil {
		t.Fatalf("update consult order: %v", err)
	}
}

func TestClient_ExpertsServedFromCacheUntilInvalidated(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		respond(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]any{{"_id": "e1", "name": "خبير"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	for i := 0; i < 3; i++ {
		if _, err := c.ListAvailableExperts(context.Background()); err != nil {
			t.Fatalf("list experts: %v", err)
		}
	}
	if hits != 1 {
		t.Fatalf("expected 1 upstream hit, got %d", hits)
	}

	c.InvalidateExperts()
	if _, err := c.ListAvailableExperts(context.Background()); err != nil {
		t.Fatalf("list experts after invalidate: %v", err)
	}
	if hits != 2 {
		t.Fatalf("expected a refetch after invalidation, got %d hits", hits)
	}
}

func TestExpertsCache_Expires(t *testing.T) {
	cache := NewExpertsCache(10 * time.Millisecond)
	cache.Set([]domain.ExpertProfile{{ID: "e1"}})
	if cache.Get() == nil {
		t.Fatalf("expected a fresh cache hit")
	}
	time.Sleep(20 * time.Millisecond)
	if cache.Get() != nil {
		t.Fatalf("expected the cache to expire")
	}
}
