package chat

import (
	"sync"
	"time"
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a non-blocking, user-facing toast. Failures that the engine
// recovers from on its own never become notices; only outcomes the user
// should see do.
type Notice struct {
	Level NoticeLevel `json:"level"`
	Text  string      `json:"text"`
	At    time.Time   `json:"at"`
}

// Notices collects pending toasts until the presentation layer drains them.
type Notices struct {
	mu    sync.Mutex
	items []Notice
	max   int
}

func NewNotices(max int) *Notices {
	return &Notices{max: max}
}

func (n *Notices) Push(level NoticeLevel, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, Notice{Level: level, Text: text, At: time.Now()})
	if len(n.items) > n.max {
		n.items = n.items[len(n.items)-n.max:]
	}
}

// Drain returns all pending notices and clears the queue.
func (n *Notices) Drain() []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.items
	n.items = nil
	return out
}
