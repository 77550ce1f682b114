package domain

import "time"

// ConsultStatus is the lifecycle of a consultation order. Transitions are
// driven by the expert on the server side; the client only observes them.
type ConsultStatus string

const (
	ConsultPending   ConsultStatus = "pending"
	ConsultAccepted  ConsultStatus = "accepted"
	ConsultRejected  ConsultStatus = "rejected"
	ConsultCompleted ConsultStatus = "completed"
)

// ConsultOrder is the business transaction backing a room: a farmer's
// request answered by an expert.
type ConsultOrder struct {
	ID        string        `json:"_id"`
	Status    ConsultStatus `json:"status"`
	Problem   string        `json:"problem,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ConsultationStatus is the server's answer to a per-room status lookup.
type ConsultationStatus struct {
	Consultation ConsultOrder `json:"consultation"`
	IsRated      bool         `json:"isRated"`
}

// ConsultationView is the reconciled, client-held consultation state for the
// active room. The zero value means "no completed consultation", which the
// UI renders as the terminal empty presentation.
type ConsultationView struct {
	Completed      bool   `json:"isCompleted"`
	Rated          bool   `json:"isRated"`
	ConsultOrderID string `json:"consultOrderId,omitempty"`
}
