package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/agrinet/agrichat/internal/api"
	"github.com/agrinet/agrichat/internal/auth"
	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/domain"
)

// ViewModel is the composite session state handed to the presentation
// layer. It is a consistent snapshot taken under the session lock.
type ViewModel struct {
	Role             domain.Role             `json:"role"`
	Rooms            []domain.ChatRoom       `json:"rooms"`
	SuggestedExperts []domain.ExpertProfile  `json:"suggestedExperts,omitempty"`
	ActiveRoomID     string                  `json:"activeRoomId,omitempty"`
	CanonicalPath    string                  `json:"canonicalPath"`
	Messages         []domain.Message        `json:"messages"`
	SendingText      bool                    `json:"sendingText"`
	SendingImage     bool                    `json:"sendingImage"`
	Consultation     domain.ConsultationView `json:"consultation"`
	Loading          bool                    `json:"loading"`
	Notices          []Notice                `json:"notices,omitempty"`
}

// Controller owns the whole chat session for one authenticated user:
// the room list, the active room with its pollers, and the consultation
// and rating state. All mutable state lives behind one mutex; poll
// goroutines apply their results through it and stale results are
// discarded by room epoch.
type Controller struct {
	client   *api.Client
	identity *auth.Identity
	notices  *Notices
	rating   *RatingCoordinator

	mu            sync.Mutex
	rooms         []domain.ChatRoom
	experts       []domain.ExpertProfile
	msgs          *MessageSync
	rec           *Reconciler
	activeRoomID  string
	canonicalPath string
	epoch         int
	cancelRoom    context.CancelFunc
	runCtx        context.Context
	loading       bool
	closed        bool
}

func NewController(client *api.Client, identity *auth.Identity) *Controller {
	c := &Controller{
		client:   client,
		identity: identity,
		notices:  NewNotices(32),
		msgs:     NewMessageSync(),
		rec:      NewReconciler(),
	}
	c.rating = NewRatingCoordinator(client, c.notices, RatingHooks{
		Begin: func(roomID string) {
			c.mu.Lock()
			c.rec.BeginRating(roomID)
			c.mu.Unlock()
		},
		Confirm: func(roomID string) {
			c.mu.Lock()
			c.rec.ConfirmRating(roomID)
			c.mu.Unlock()
		},
		End: func(roomID string, cooldown time.Duration) {
			c.mu.Lock()
			c.rec.EndRating(roomID, cooldown)
			c.mu.Unlock()
		},
		Refresh: func(ctx context.Context) {
			c.client.InvalidateExperts()
			c.refreshRooms(ctx)
			c.refetchMessages(ctx)
		},
	})
	return c
}

// Start performs the initial room fetch, resolves ref onto the room
// list and launches the background pollers. The session runs until ctx
// is cancelled or Close is called.
func (c *Controller) Start(ctx context.Context, ref string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	c.runCtx = ctx
	c.loading = true
	c.canonicalPath = c.basePath()
	c.mu.Unlock()

	rooms, err := c.client.ListRooms(ctx)
	if err != nil {
		slog.Warn("initial room fetch", "error", err)
		c.notices.Push(NoticeError, "تعذر تحميل المحادثات")
	}
	c.mu.Lock()
	c.rooms = rooms
	c.loading = false
	c.mu.Unlock()

	if c.identity.Role == domain.RoleFarmer {
		if experts, err := c.client.ListAvailableExperts(ctx); err != nil {
			slog.Warn("initial experts fetch", "error", err)
		} else {
			c.mu.Lock()
			c.experts = experts
			c.mu.Unlock()
		}
	}

	if err := c.open(ctx, ref); err != nil {
		slog.Warn("open initial conversation", "ref", ref, "error", err)
		c.notices.Push(NoticeError, "تعذر فتح المحادثة المطلوبة")
		c.mu.Lock()
		fallback := ""
		if len(c.rooms) > 0 {
			fallback = c.rooms[0].ID
		}
		c.mu.Unlock()
		if fallback != "" {
			c.activate(fallback)
		}
	}

	go c.roomsLoop(ctx)
	return nil
}

// open resolves ref and acts on the outcome. A create outcome hits the
// network; the backend returns the existing room when one already
// exists for the pair, so retrying a create ends on the same room.
func (c *Controller) open(ctx context.Context, ref string) error {
	c.mu.Lock()
	rooms := c.rooms
	c.mu.Unlock()

	res := Resolve(ref, rooms)
	switch res.Kind {
	case domain.ResolvedExisting, domain.ResolvedRedirect:
		c.activate(res.RoomID)
		return nil
	case domain.ResolveCreate:
		room, err := c.client.CreateRoom(ctx, c.identity.Role, res.CounterpartID)
		if err != nil {
			return fmt.Errorf("create room with %s: %w", res.CounterpartID, err)
		}
		c.refreshRooms(ctx)
		c.activate(room.ID)
		return nil
	default:
		c.mu.Lock()
		c.activeRoomID = ""
		c.canonicalPath = c.basePath()
		c.mu.Unlock()
		return nil
	}
}

// activate switches the session to roomID: cancels the previous room's
// pollers, bumps the epoch so their in-flight responses are discarded,
// resets per-room state and launches fresh pollers.
func (c *Controller) activate(roomID string) {
	c.mu.Lock()
	if c.closed || c.runCtx == nil {
		c.mu.Unlock()
		return
	}
	if c.cancelRoom != nil {
		c.cancelRoom()
	}
	c.epoch++
	epoch := c.epoch
	c.activeRoomID = roomID
	c.canonicalPath = c.basePath() + "/" + roomID
	c.msgs.Reset(roomID)
	c.rec.SetRoom(roomID)
	var rctx context.Context
	rctx, c.cancelRoom = context.WithCancel(c.runCtx)
	c.mu.Unlock()

	go c.messagesLoop(rctx, roomID, epoch)
	if c.identity.Role == domain.RoleFarmer {
		go c.consultationLoop(rctx, roomID, epoch)
	}
}

func (c *Controller) basePath() string {
	if c.identity.Role == domain.RoleExpert {
		return "/expert/chat"
	}
	return "/farmer/chat"
}

func (c *Controller) roomsLoop(ctx context.Context) {
	ticker := time.NewTicker(config.RoomsPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshRooms(ctx)
		}
	}
}

func (c *Controller) messagesLoop(ctx context.Context, roomID string, epoch int) {
	c.pollMessages(ctx, roomID, epoch)
	ticker := time.NewTicker(config.MessagesPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollMessages(ctx, roomID, epoch)
		}
	}
}

func (c *Controller) consultationLoop(ctx context.Context, roomID string, epoch int) {
	c.pollConsultation(ctx, roomID, epoch)
	ticker := time.NewTicker(config.ConsultationPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pollConsultation(ctx, roomID, epoch)
		}
	}
}

// refreshRooms refetches the room list and, for farmers, the suggested
// experts. Poll failures keep the previous state and never surface.
func (c *Controller) refreshRooms(ctx context.Context) {
	rooms, err := c.client.ListRooms(ctx)
	if err != nil {
		slog.Debug("poll rooms", "error", err)
	} else {
		c.mu.Lock()
		c.rooms = rooms
		c.mu.Unlock()
	}
	if c.identity.Role != domain.RoleFarmer {
		return
	}
	experts, err := c.client.ListAvailableExperts(ctx)
	if err != nil {
		slog.Debug("poll experts", "error", err)
		return
	}
	c.mu.Lock()
	c.experts = experts
	c.mu.Unlock()
}

func (c *Controller) pollMessages(ctx context.Context, roomID string, epoch int) {
	msgs, err := c.client.ListMessages(ctx, roomID)
	if err != nil {
		slog.Debug("poll messages", "room_id", roomID, "error", err)
		return
	}
	c.mu.Lock()
	if c.epoch == epoch {
		c.msgs.Replace(roomID, msgs)
	}
	c.mu.Unlock()
}

func (c *Controller) pollConsultation(ctx context.Context, roomID string, epoch int) {
	status, err := c.client.RoomConsultation(ctx, roomID)
	c.mu.Lock()
	if c.epoch == epoch {
		c.rec.Apply(roomID, status, err)
	}
	c.mu.Unlock()
}

// refetchMessages pulls the active room's timeline once, outside the
// poll cadence, so a just-sent message shows up immediately.
func (c *Controller) refetchMessages(ctx context.Context) {
	c.mu.Lock()
	roomID := c.activeRoomID
	c.mu.Unlock()
	if roomID == "" {
		return
	}
	msgs, err := c.client.ListMessages(ctx, roomID)
	if err != nil {
		slog.Debug("refetch messages", "room_id", roomID, "error", err)
		return
	}
	c.mu.Lock()
	c.msgs.Replace(roomID, msgs)
	c.mu.Unlock()
}

// SelectRoom makes roomID the active room. The room must already be in
// the fetched room list.
func (c *Controller) SelectRoom(roomID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	found := false
	for _, r := range c.rooms {
		if r.ID == roomID {
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, roomID)
	}
	c.activate(roomID)
	return nil
}

// StartChatWith opens, or creates and opens, the room shared with the
// given counterpart.
func (c *Controller) StartChatWith(ctx context.Context, counterpartID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	c.mu.Unlock()
	if !domain.IsCounterpartID(counterpartID) {
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, counterpartID)
	}
	return c.open(ctx, counterpartID)
}

// SendText sends a plain text message into the active room. Only one
// text send may be in flight at a time.
func (c *Controller) SendText(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	roomID := c.activeRoomID
	if roomID == "" {
		c.mu.Unlock()
		return domain.ErrNoActiveRoom
	}
	if !c.msgs.beginText() {
		c.mu.Unlock()
		return domain.ErrSendInProgress
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.msgs.endText()
		c.mu.Unlock()
	}()

	if _, err := c.client.SendMessage(ctx, roomID, api.SendMessageRequest{Content: content}); err != nil {
		c.notices.Push(NoticeError, "فشل إرسال الرسالة")
		return fmt.Errorf("send message: %w", err)
	}
	c.refetchMessages(ctx)
	return nil
}

// SendImage uploads an image message. Validation happens before the
// busy flag is taken so a rejected file never blocks a valid one. An
// empty caption falls back to the placeholder so the room preview is
// never blank.
func (c *Controller) SendImage(ctx context.Context, att domain.ImageAttachment, caption string) error {
	if err := ValidateImage(att); err != nil {
		c.notices.Push(NoticeError, "الصورة غير صالحة: يجب أن تكون JPEG أو PNG وبحجم 5MB كحد أقصى")
		return err
	}
	caption = strings.TrimSpace(caption)
	if caption == "" {
		caption = config.ImagePlaceholderCaption
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	roomID := c.activeRoomID
	if roomID == "" {
		c.mu.Unlock()
		return domain.ErrNoActiveRoom
	}
	if !c.msgs.beginImage() {
		c.mu.Unlock()
		return domain.ErrSendInProgress
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.msgs.endImage()
		c.mu.Unlock()
	}()

	if _, err := c.client.SendMessage(ctx, roomID, api.SendMessageRequest{
		Content:    caption,
		Attachment: &att,
	}); err != nil {
		c.notices.Push(NoticeError, "فشل رفع الصورة")
		return fmt.Errorf("send image: %w", err)
	}
	c.refetchMessages(ctx)
	return nil
}

// RequestConsultation files a consultation order with the active room's
// expert and posts a system note into the room.
func (c *Controller) RequestConsultation(ctx context.Context, problem string) error {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return domain.ErrEmptyProblem
	}
	if utf8.RuneCountInString(problem) > config.MaxProblemLen {
		return fmt.Errorf("%w: limit %d characters", domain.ErrProblemTooLong, config.MaxProblemLen)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if c.identity.Role != domain.RoleFarmer {
		c.mu.Unlock()
		return domain.ErrNotFarmer
	}
	roomID := c.activeRoomID
	var counterpart domain.Participant
	for _, r := range c.rooms {
		if r.ID == roomID {
			counterpart = r.Counterpart
			break
		}
	}
	c.mu.Unlock()
	if roomID == "" {
		return domain.ErrNoActiveRoom
	}
	if counterpart.UserType != domain.RoleExpert {
		return domain.ErrCounterpartNotExpert
	}

	if _, err := c.client.CreateConsultOrder(ctx, counterpart.ID, problem); err != nil {
		c.notices.Push(NoticeError, "فشل إرسال طلب الاستشارة")
		return fmt.Errorf("create consult order: %w", err)
	}
	c.notices.Push(NoticeSuccess, "تم إرسال طلب الاستشارة بنجاح")

	if _, err := c.client.SendMessage(ctx, roomID, api.SendMessageRequest{
		Content:  "📋 تم إرسال طلب استشارة جديدة: " + problem,
		IsSystem: true,
	}); err != nil {
		slog.Warn("post consult system message", "room_id", roomID, "error", err)
	}
	c.refetchMessages(ctx)
	return nil
}

// SubmitRating rates the active room's completed consultation.
func (c *Controller) SubmitRating(ctx context.Context, stars int, feedback string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if c.identity.Role != domain.RoleFarmer {
		c.mu.Unlock()
		return domain.ErrNotFarmer
	}
	req := SubmitRequest{
		RoomID:         c.activeRoomID,
		ConsultOrderID: c.rec.View().ConsultOrderID,
		Stars:          stars,
		Feedback:       feedback,
	}
	for _, r := range c.rooms {
		if r.ID == req.RoomID {
			req.ExpertName = r.Counterpart.Name
			break
		}
	}
	c.mu.Unlock()
	return c.rating.Submit(ctx, req)
}

// UpdateConsultation lets an expert move a consultation order to a new
// status (accept, reject or complete).
func (c *Controller) UpdateConsultation(ctx context.Context, orderID string, status domain.ConsultStatus) error {
	if c.identity.Role != domain.RoleExpert {
		return domain.ErrNotExpert
	}
	switch status {
	case domain.ConsultAccepted, domain.ConsultRejected, domain.ConsultCompleted:
	default:
		return fmt.Errorf("unsupported consultation status %q", status)
	}
	if orderID == "" {
		return domain.ErrNoConsultation
	}
	if err := c.client.UpdateConsultOrderStatus(ctx, orderID, status); err != nil {
		c.notices.Push(NoticeError, "فشل تحديث حالة الاستشارة")
		return fmt.Errorf("update consult order: %w", err)
	}
	c.notices.Push(NoticeSuccess, "تم تحديث حالة الاستشارة")
	c.refetchMessages(ctx)
	return nil
}

// Snapshot returns a consistent view of the whole session and drains
// pending notices.
func (c *Controller) Snapshot() ViewModel {
	c.mu.Lock()
	msgs, sendingText, sendingImage := c.msgs.Snapshot()
	vm := ViewModel{
		Role:             c.identity.Role,
		Rooms:            c.rooms,
		SuggestedExperts: c.experts,
		ActiveRoomID:     c.activeRoomID,
		CanonicalPath:    c.canonicalPath,
		Messages:         msgs,
		SendingText:      sendingText,
		SendingImage:     sendingImage,
		Consultation:     c.rec.View(),
		Loading:          c.loading,
	}
	c.mu.Unlock()
	vm.Notices = c.notices.Drain()
	return vm
}

// Close stops the active room's pollers and rejects further operations.
// The rooms poller stops when the Start context is cancelled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.cancelRoom != nil {
		c.cancelRoom()
		c.cancelRoom = nil
	}
}
