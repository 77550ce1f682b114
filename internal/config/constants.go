package config

import "time"

const (
	// Poll intervals
	RoomsPollInterval        = 60 * time.Second
	MessagesPollInterval     = 3 * time.Second
	ConsultationPollInterval = 10 * time.Second

	// Rating protection window after the rating flow finishes
	RatingCooldown = 5 * time.Second

	// Delay before the post-rating guidance message
	FollowUpMessageDelay = 500 * time.Millisecond

	// Image attachment limits
	MaxImageBytes = 5 << 20

	// Caption used when an image is sent with no text
	ImagePlaceholderCaption = "صورة"

	// Consultation problem description limit
	MaxProblemLen = 500

	// Remote API request timeout
	RequestTimeout = 30 * time.Second

	// Suggested-experts cache duration
	ExpertsCacheDuration = 5 * time.Minute

	// Gateway shutdown grace period
	ShutdownTimeout = 10 * time.Second
)

// AllowedImageTypes are the MIME types accepted for chat attachments.
var AllowedImageTypes = []string{"image/jpeg", "image/jpg", "image/png"}
