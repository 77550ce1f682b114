package chat

import (
	"fmt"
	"strings"

	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/domain"
)

// MessageSync owns the message timeline of the active room. Poll results
// replace the timeline wholesale; there is no client-side merge. Text and
// image sends carry independent busy flags so an in-flight upload does
// not block typing.
type MessageSync struct {
	// guarded by the controller mutex; MessageSync carries no lock of
	// its own because every call site already holds the session lock.
	roomID       string
	messages     []domain.Message
	sendingText  bool
	sendingImage bool
}

func NewMessageSync() *MessageSync {
	return &MessageSync{}
}

// Reset rebinds the sync to a new room and drops the previous timeline.
func (m *MessageSync) Reset(roomID string) {
	m.roomID = roomID
	m.messages = nil
	m.sendingText = false
	m.sendingImage = false
}

// Replace installs a freshly fetched timeline. Responses for a room that
// is no longer active are discarded.
func (m *MessageSync) Replace(roomID string, msgs []domain.Message) bool {
	if roomID != m.roomID || m.roomID == "" {
		return false
	}
	m.messages = msgs
	return true
}

func (m *MessageSync) Snapshot() (msgs []domain.Message, sendingText, sendingImage bool) {
	return m.messages, m.sendingText, m.sendingImage
}

func (m *MessageSync) RoomID() string { return m.roomID }

// beginText marks a text send in flight. Returns false when one already is.
func (m *MessageSync) beginText() bool {
	if m.sendingText {
		return false
	}
	m.sendingText = true
	return true
}

func (m *MessageSync) endText() { m.sendingText = false }

func (m *MessageSync) beginImage() bool {
	if m.sendingImage {
		return false
	}
	m.sendingImage = true
	return true
}

func (m *MessageSync) endImage() { m.sendingImage = false }

// ValidateImage rejects unsupported types and oversized payloads before
// any bytes reach the network. The limit is inclusive: a payload of
// exactly MaxImageBytes passes.
func ValidateImage(att domain.ImageAttachment) error {
	ok := false
	for _, t := range config.AllowedImageTypes {
		if strings.EqualFold(att.MIME, t) {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedImageType, att.MIME)
	}
	if len(att.Data) > config.MaxImageBytes {
		return fmt.Errorf("%w: %d bytes", domain.ErrImageTooLarge, len(att.Data))
	}
	return nil
}
