package chat

import (
	"errors"
	"time"

	"github.com/agrinet/agrichat/internal/domain"
)

// protectionLease shields a locally observed rating from stale poll
// responses. It opens when the rating flow begins, records the rating
// once the backend confirms it, and expires a cooldown after the flow
// ends. The lease is keyed by room id and outlives a room switch, so
// returning to the room inside the window stays protected.
type protectionLease struct {
	roomID  string
	pending bool
	rated   bool
	until   time.Time
}

func (l *protectionLease) active(roomID string, now time.Time) bool {
	return l.roomID == roomID && (l.pending || now.Before(l.until))
}

// Reconciler folds consultation poll responses into the local view. The
// backend is the source of truth everywhere except inside an active
// protection lease, where a confirmed local rating wins over responses
// that have not caught up yet.
type Reconciler struct {
	// guarded by the controller mutex, same discipline as MessageSync.
	now    func() time.Time
	roomID string
	view   domain.ConsultationView
	lease  protectionLease
}

func NewReconciler() *Reconciler {
	return &Reconciler{now: time.Now}
}

// SetRoom rebinds the reconciler and resets the view. A surviving lease
// for the same room re-seeds the rated flag so the rating prompt does
// not flicker back on return.
func (r *Reconciler) SetRoom(roomID string) {
	r.roomID = roomID
	r.view = domain.ConsultationView{}
	if r.lease.active(roomID, r.now()) && r.lease.rated {
		r.view.Rated = true
	}
}

// Apply reconciles one poll result. Responses for a stale room are
// dropped. A not-found result normally resets the view; under an active
// lease it is discarded instead, since the rating flow has fresher
// knowledge than the poll.
func (r *Reconciler) Apply(roomID string, status *domain.ConsultationStatus, err error) {
	if roomID != r.roomID || r.roomID == "" {
		return
	}
	protected := r.lease.active(roomID, r.now())
	if err != nil {
		if errors.Is(err, domain.ErrNoConsultation) && !protected {
			r.view = domain.ConsultationView{}
		}
		return
	}
	next := domain.ConsultationView{
		Completed:      status.Consultation.Status == domain.ConsultCompleted,
		Rated:          status.IsRated,
		ConsultOrderID: status.Consultation.ID,
	}
	if protected && !next.Rated && (r.view.Rated || r.lease.rated) {
		next.Rated = true
	}
	r.view = next
}

func (r *Reconciler) View() domain.ConsultationView { return r.view }

// BeginRating opens the lease for the rating flow on roomID.
func (r *Reconciler) BeginRating(roomID string) {
	r.lease = protectionLease{roomID: roomID, pending: true}
}

// ConfirmRating records a backend-acknowledged rating and flips the
// local view immediately.
func (r *Reconciler) ConfirmRating(roomID string) {
	if r.lease.roomID == roomID {
		r.lease.rated = true
	}
	if r.roomID == roomID {
		r.view.Rated = true
	}
}

// EndRating closes the flow and starts the cooldown during which stale
// responses still cannot regress the rated flag. A zero cooldown drops
// the lease at once.
func (r *Reconciler) EndRating(roomID string, cooldown time.Duration) {
	if r.lease.roomID != roomID {
		return
	}
	r.lease.pending = false
	r.lease.until = r.now().Add(cooldown)
}
