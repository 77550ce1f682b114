package chat

import (
	"bytes"
	"errors"
	"testing"

	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/domain"
)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name    string
		mime    string
		size    int
		wantErr error
	}{
		{"jpeg under limit", "image/jpeg", 1024, nil},
		{"png under limit", "image/png", 1024, nil},
		{"jpg alias", "image/jpg", 1024, nil},
		{"mime case insensitive", "IMAGE/PNG", 1024, nil},
		{"exactly at limit", "image/jpeg", config.MaxImageBytes, nil},
		{"one byte over", "image/jpeg", config.MaxImageBytes + 1, domain.ErrImageTooLarge},
		{"six megabytes", "image/png", 6 << 20, domain.ErrImageTooLarge},
		{"gif rejected", "image/gif", 1024, domain.ErrUnsupportedImageType},
		{"pdf rejected", "application/pdf", 1024, domain.ErrUnsupportedImageType},
		{"oversized gif fails on type first", "image/gif", 6 << 20, domain.ErrUnsupportedImageType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att := domain.ImageAttachment{
				Name: "leaf.png",
				MIME: tt.mime,
				Data: bytes.Repeat([]byte{0xAB}, tt.size),
			}
			err := ValidateImage(att)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageSync_ReplaceDiscardsStaleRoom(t *testing.T) {
	m := NewMessageSync()
	m.Reset(roomA)

	if ok := m.Replace(roomB, []domain.Message{{ID: "m1"}}); ok {
		t.Fatalf("expected replace for inactive room to be discarded")
	}
	msgs, _, _ := m.Snapshot()
	if len(msgs) != 0 {
		t.Fatalf("expected no messages, got %d", len(msgs))
	}

	if ok := m.Replace(roomA, []domain.Message{{ID: "m1"}, {ID: "m2"}}); !ok {
		t.Fatalf("expected replace for active room to apply")
	}
	msgs, _, _ = m.Snapshot()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestMessageSync_ResetClearsStateAndBusyFlags(t *testing.T) {
	m := NewMessageSync()
	m.Reset(roomA)
	m.Replace(roomA, []domain.Message{{ID: "m1"}})
	if !m.beginText() || !m.beginImage() {
		t.Fatalf("expected both busy flags to be acquirable")
	}

	m.Reset(roomB)
	msgs, sendingText, sendingImage := m.Snapshot()
	if len(msgs) != 0 || sendingText || sendingImage {
		t.Fatalf("expected clean state after reset, got %d msgs, text=%v image=%v",
			len(msgs), sendingText, sendingImage)
	}
}

func TestMessageSync_BusyFlagsAreIndependent(t *testing.T) {
	m := NewMessageSync()
	m.Reset(roomA)

	if !m.beginText() {
		t.Fatalf("first text send should acquire the flag")
	}
	if m.beginText() {
		t.Fatalf("second text send should be refused while one is in flight")
	}
	if !m.beginImage() {
		t.Fatalf("image send should not be blocked by a text send")
	}
	m.endText()
	if !m.beginText() {
		t.Fatalf("text flag should be free again after endText")
	}
}
