package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role of the local user within the marketplace.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleExpert Role = "expert"
)

// VisibilityScope controls which participant a system message is shown to.
type VisibilityScope string

const (
	VisibleToAll    VisibilityScope = "all"
	VisibleToFarmer VisibilityScope = "farmer"
	VisibleToExpert VisibilityScope = "expert"
)

// MessageType distinguishes plain text from image messages.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Participant is the other user of a room, as the server resolves it for us.
type Participant struct {
	ID            string         `json:"_id"`
	Name          string         `json:"name"`
	ProfileImage  string         `json:"profileImage,omitempty"`
	UserType      Role           `json:"userType"`
	ExpertDetails *ExpertDetails `json:"expertDetails,omitempty"`
}

// ExpertDetails carries the expert-specific profile fields. The server
// formats averageRating as a fixed-point string ("4.7").
type ExpertDetails struct {
	ExpertAt      string          `json:"expertAt,omitempty"`
	AverageRating decimal.Decimal `json:"averageRating"`
	TotalRatings  int             `json:"totalRatings"`
}

// ChatRoom is a persistent 1:1 conversation between a farmer and an expert.
// Exactly one room exists per participant pair; identity is stable once
// created and the client never deletes one.
type ChatRoom struct {
	ID          string      `json:"_id"`
	Counterpart Participant `json:"user"`
	LastMessage string      `json:"lastMessage,omitempty"`
	IsRated     bool        `json:"isRated,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Message is one chat line, ordered by creation time within its room.
// Immutable once created.
type Message struct {
	ID          string      `json:"_id"`
	Content     string      `json:"content"`
	SenderID    string      `json:"sender,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	IsMine      bool        `json:"isMine"`
	IsSystem    bool        `json:"isSystem"`
	MessageType MessageType `json:"messageType,omitempty"`
	ImageURL    string      `json:"imageUrl,omitempty"`
	ImageName   string      `json:"imageName,omitempty"`
}

// ExpertProfile is one entry of the suggested-experts list.
type ExpertProfile struct {
	ID            string         `json:"_id"`
	Name          string         `json:"name"`
	ProfileImage  string         `json:"profileImage,omitempty"`
	ExpertDetails *ExpertDetails `json:"expertDetails,omitempty"`
}

// ImageAttachment is a client-side image selected for sending. Validation
// happens before any network call.
type ImageAttachment struct {
	Name string
	MIME string
	Data []byte
}
