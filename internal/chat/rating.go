package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/agrinet/agrichat/internal/api"
	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/domain"
)

// RatingHooks let the coordinator drive the reconciler lease without
// reaching into controller state directly. The controller wires them
// to lock-protected reconciler calls.
type RatingHooks struct {
	Begin   func(roomID string)
	Confirm func(roomID string)
	End     func(roomID string, cooldown time.Duration)
	Refresh func(ctx context.Context)
}

// RatingCoordinator runs the rating submission sequence: open the
// protection lease, submit, post the acknowledgement messages, refresh
// cached state, then close the lease with a cooldown.
type RatingCoordinator struct {
	client        *api.Client
	notices       *Notices
	hooks         RatingHooks
	cooldown      time.Duration
	followUpDelay time.Duration
}

func NewRatingCoordinator(client *api.Client, notices *Notices, hooks RatingHooks) *RatingCoordinator {
	return &RatingCoordinator{
		client:        client,
		notices:       notices,
		hooks:         hooks,
		cooldown:      config.RatingCooldown,
		followUpDelay: config.FollowUpMessageDelay,
	}
}

// SubmitRequest carries everything the sequence needs, captured from
// session state before any network call is made.
type SubmitRequest struct {
	RoomID         string
	ConsultOrderID string
	ExpertName     string
	Stars          int
	Feedback       string
}

// Submit rates the completed consultation of req.RoomID. A backend
// report that the consultation was already rated converges the local
// state instead of failing.
func (rc *RatingCoordinator) Submit(ctx context.Context, req SubmitRequest) error {
	if req.Stars < 1 || req.Stars > 5 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRating, req.Stars)
	}
	if req.RoomID == "" {
		return domain.ErrNoRoomSelected
	}
	if req.ConsultOrderID == "" {
		return domain.ErrNoConsultation
	}

	rc.hooks.Begin(req.RoomID)

	expertName, err := rc.client.SubmitRating(ctx, req.RoomID, req.Stars, req.Feedback)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyRated) {
			rc.hooks.Confirm(req.RoomID)
			rc.notices.Push(NoticeInfo, "تم تقييم هذه الاستشارة مسبقاً")
			rc.hooks.End(req.RoomID, rc.cooldown)
			return nil
		}
		rc.hooks.End(req.RoomID, 0)
		rc.notices.Push(NoticeError, "فشل إرسال التقييم، حاول مرة أخرى")
		return fmt.Errorf("submit rating: %w", err)
	}
	if expertName == "" {
		expertName = req.ExpertName
	}

	rc.hooks.Confirm(req.RoomID)
	rc.notices.Push(NoticeSuccess, fmt.Sprintf("شكراً لتقييمك! تم منح الخبير %s تقييم %d من 5", expertName, req.Stars))

	rc.postAcknowledgement(req.RoomID, expertName, req.Stars)

	rc.hooks.Refresh(ctx)
	rc.hooks.End(req.RoomID, rc.cooldown)
	return nil
}

// postAcknowledgement writes two farmer-only system messages into the
// room: a thank-you right away and a follow-up hint shortly after. Both
// are best effort; a failed post is logged and never surfaces.
func (rc *RatingCoordinator) postAcknowledgement(roomID, expertName string, stars int) {
	first := fmt.Sprintf("🎉 شكراً لتقييمك %s للخبير %s! نتمنى أن تكون الاستشارة قد أفادتك.",
		strings.Repeat("⭐", stars), expertName)
	rc.postSystem(roomID, first)

	time.AfterFunc(rc.followUpDelay, func() {
		rc.postSystem(roomID, "💬 يمكنك طلب استشارة جديدة من نفس الخبير أو خبير آخر في أي وقت")
	})
}

func (rc *RatingCoordinator) postSystem(roomID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), config.RequestTimeout)
	defer cancel()
	_, err := rc.client.SendMessage(ctx, roomID, api.SendMessageRequest{
		Content:   content,
		IsSystem:  true,
		VisibleTo: domain.VisibleToFarmer,
	})
	if err != nil {
		slog.Warn("post rating system message", "room_id", roomID, "error", err)
	}
}
