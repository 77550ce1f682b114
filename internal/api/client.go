package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/domain"
)

// Client talks to the marketplace REST API. All chat, consultation and
// rating traffic goes through it; it holds no state beyond the experts
// cache.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	experts    *ExpertsCache
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		experts:    NewExpertsCache(config.ExpertsCacheDuration),
	}
}

// Error is a non-success answer from the marketplace API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

// envelope is the common response wrapper of the marketplace API.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return nil, &Error{Status: resp.StatusCode, Message: env.Message}
	}
	return &env, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	env, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse data: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	env, err := c.do(ctx, method, path, bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("parse data: %w", err)
	}
	return nil
}

// ListRooms returns the caller's chat rooms, most recently active first.
func (c *Client) ListRooms(ctx context.Context) ([]domain.ChatRoom, error) {
	var rooms []domain.ChatRoom
	if err := c.getJSON(ctx, "/chat/rooms", &rooms); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListMessages returns the full ordered history of a room, filtered
// server-side to messages visible to the caller's role.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := c.getJSON(ctx, "/chat/rooms/"+roomID+"/messages", &msgs); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// SendMessageRequest is one outgoing chat line. Attachment may be nil.
type SendMessageRequest struct {
	Content    string
	IsSystem   bool
	VisibleTo  domain.VisibilityScope
	Attachment *domain.ImageAttachment
}

// SendMessage posts a message into a room. Text and system messages go as
// JSON; an attachment switches the call to multipart form encoding, image
// file included.
func (c *Client) SendMessage(ctx context.Context, roomID string, req SendMessageRequest) (*domain.Message, error) {
	path := "/chat/rooms/" + roomID + "/messages"
	visibleTo := req.VisibleTo
	if visibleTo == "" {
		visibleTo = domain.VisibleToAll
	}

	var msg domain.Message
	if req.Attachment == nil {
		body := map[string]any{
			"content":   req.Content,
			"isSystem":  req.IsSystem,
			"visibleTo": visibleTo,
		}
		if err := c.postJSON(ctx, http.MethodPost, path, body, &msg); err != nil {
			return nil, fmt.Errorf("send message: %w", err)
		}
		return &msg, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("content", req.Content); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if err := mw.WriteField("messageType", string(domain.MessageImage)); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	if err := mw.WriteField("visibleTo", string(visibleTo)); err != nil {
		return nil, fmt.Errorf("write form: %w", err)
	}
	part, err := mw.CreateFormFile("image", req.Attachment.Name)
	if err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	if _, err := part.Write(req.Attachment.Data); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	env, err := c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("send image message: %w", err)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("parse data: %w", err)
		}
	}
	return &msg, nil
}

// CreateRoom finds or creates the 1:1 room with the given counterpart. The
// server answers 200 for a pre-existing room and 201 for a fresh one; both
// are success here, so repeated calls with the same counterpart are
// idempotent.
func (c *Client) CreateRoom(ctx context.Context, role domain.Role, counterpartID string) (*domain.ChatRoom, error) {
	body := map[string]string{}
	if role == domain.RoleExpert {
		body["farmerId"] = counterpartID
	} else {
		body["expertId"] = counterpartID
	}
	var room domain.ChatRoom
	if err := c.postJSON(ctx, http.MethodPost, "/chat/rooms", body, &room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	return &room, nil
}

// ListAvailableExperts returns the suggestion list for "start new chat",
// served from a short-lived cache between polls.
func (c *Client) ListAvailableExperts(ctx context.Context) ([]domain.ExpertProfile, error) {
	if cached := c.experts.Get(); cached != nil {
		return cached, nil
	}
	var experts []domain.ExpertProfile
	if err := c.getJSON(ctx, "/experts/available", &experts); err != nil {
		return nil, fmt.Errorf("list experts: %w", err)
	}
	c.experts.Set(experts)
	return experts, nil
}

// InvalidateExperts drops the suggestion cache so the next read refetches.
func (c *Client) InvalidateExperts() {
	c.experts.Invalidate()
}

// RoomConsultation looks up the consultation backing a room. A 404 means no
// completed consultation exists, which is an expected condition and comes
// back as domain.ErrNoConsultation.
func (c *Client) RoomConsultation(ctx context.Context, roomID string) (*domain.ConsultationStatus, error) {
	var status domain.ConsultationStatus
	err := c.getJSON(ctx, "/consult-orders/room/"+roomID, &status)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, domain.ErrNoConsultation
		}
		return nil, fmt.Errorf("room consultation: %w", err)
	}
	return &status, nil
}

// SubmitRating rates the completed consultation behind a room. The expert's
// display name comes back for the confirmation notice. A duplicate-rating
// rejection maps to domain.ErrAlreadyRated.
func (c *Client) SubmitRating(ctx context.Context, roomID string, stars int, feedback string) (string, error) {
	body := map[string]any{
		"rating":   stars,
		"feedback": feedback,
	}
	var data struct {
		ExpertName string `json:"expertName"`
	}
	err := c.postJSON(ctx, http.MethodPost, "/chat/rooms/"+roomID+"/rate", body, &data)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest &&
			strings.Contains(apiErr.Message, "already been rated") {
			return "", domain.ErrAlreadyRated
		}
		return "", fmt.Errorf("submit rating: %w", err)
	}
	return data.ExpertName, nil
}

// CreateConsultOrder files a consultation request with an expert.
func (c *Client) CreateConsultOrder(ctx context.Context, expertID, problem string) (*domain.ConsultOrder, error) {
	body := map[string]string{
		"expertId": expertID,
		"problem":  problem,
	}
	var order domain.ConsultOrder
	if err := c.postJSON(ctx, http.MethodPost, "/consult-orders", body, &order); err != nil {
		return nil, fmt.Errorf("create consult order: %w", err)
	}
	return &order, nil
}

// UpdateConsultOrderStatus transitions a consultation order. Expert-side
// operation (accept, reject, complete).
func (c *Client) UpdateConsultOrderStatus(ctx context.Context, orderID string, status domain.ConsultStatus) error {
	body := map[string]string{"status": string(status)}
	if err := c.postJSON(ctx, http.MethodPatch, "/consult-orders/"+orderID, body, nil); err != nil {
		return fmt.Errorf("update consult order: %w", err)
	}
	return nil
}
