package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agrinet/agrichat/internal/api"
	"github.com/agrinet/agrichat/internal/chat"
	"github.com/agrinet/agrichat/internal/config"
	"github.com/agrinet/agrichat/internal/domain"
)

// Server exposes the chat session over a local HTTP API. Responses use
// the same envelope the upstream marketplace API uses, so a UI written
// against one can read the other.
type Server struct {
	cfg  *config.Config
	ctrl *chat.Controller
	srv  *http.Server
}

func New(cfg *config.Config, ctrl *chat.Controller) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(Recover(), Logging())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		srv:  &http.Server{Addr: cfg.ListenAddr, Handler: r},
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/chat/state", s.handleState)
		v1.POST("/chat/rooms/select", s.handleSelectRoom)
		v1.POST("/chat/rooms", s.handleStartChat)
		v1.POST("/chat/messages", s.handleSendText)
		v1.POST("/chat/messages/image", s.handleSendImage)
		v1.POST("/consultations", s.handleRequestConsultation)
		v1.PATCH("/consultations/:id", s.handleUpdateConsultation)
		v1.POST("/consultations/rating", s.handleSubmitRating)
	}

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("gateway shutdown: %w", err)
	}
	return nil
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// fail maps engine errors onto HTTP statuses. Upstream API failures come
// back as 502 so the UI can tell a local mistake from a backend outage.
func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, domain.ErrRoomNotFound) || errors.Is(err, domain.ErrNoConsultation):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSendInProgress) || errors.Is(err, domain.ErrAlreadyRated):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrNotFarmer) || errors.Is(err, domain.ErrNotExpert):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSessionClosed):
		status = http.StatusServiceUnavailable
	default:
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{"success": false, "message": err.Error()})
}

func (s *Server) handleState(c *gin.Context) {
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleSelectRoom(c *gin.Context) {
	var req struct {
		RoomID string `json:"roomId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := s.ctrl.SelectRoom(req.RoomID); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleStartChat(c *gin.Context) {
	var req struct {
		CounterpartID string `json:"counterpartId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := s.ctrl.StartChatWith(c.Request.Context(), req.CounterpartID); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleSendText(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := s.ctrl.SendText(c.Request.Context(), req.Content); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleSendImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, fmt.Errorf("image file is required: %w", err))
		return
	}
	f, err := file.Open()
	if err != nil {
		fail(c, fmt.Errorf("open image: %w", err))
		return
	}
	defer f.Close()

	// read one byte past the limit so validation can reject oversized
	// uploads without buffering the full payload
	data, err := io.ReadAll(io.LimitReader(f, int64(config.MaxImageBytes)+1))
	if err != nil {
		fail(c, fmt.Errorf("read image: %w", err))
		return
	}

	att := domain.ImageAttachment{
		Name: file.Filename,
		MIME: file.Header.Get("Content-Type"),
		Data: data,
	}
	if err := s.ctrl.SendImage(c.Request.Context(), att, c.PostForm("caption")); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleRequestConsultation(c *gin.Context) {
	var req struct {
		Problem string `json:"problem" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := s.ctrl.RequestConsultation(c.Request.Context(), req.Problem); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleUpdateConsultation(c *gin.Context) {
	var req struct {
		Status domain.ConsultStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := s.ctrl.UpdateConsultation(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}

func (s *Server) handleSubmitRating(c *gin.Context) {
	var req struct {
		Stars    int    `json:"stars" binding:"required"`
		Feedback string `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, err)
		return
	}
	if err := s.ctrl.SubmitRating(c.Request.Context(), req.Stars, req.Feedback); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.ctrl.Snapshot())
}
