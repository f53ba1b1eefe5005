package statusapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/parikshasetu/portal-agent/internal/attempt"
	"github.com/parikshasetu/portal-agent/internal/backoff"
	"github.com/parikshasetu/portal-agent/internal/clock"
	"github.com/parikshasetu/portal-agent/internal/config"
	"github.com/parikshasetu/portal-agent/internal/notification"
	"github.com/parikshasetu/portal-agent/internal/response"
	"github.com/parikshasetu/portal-agent/internal/validator"
)

// ReadSyncer pushes an optimistic read to the backend. Implemented by the
// API client.
type ReadSyncer interface {
	MarkNotificationRead(ctx context.Context, id string) error
}

// Server is the loopback HTTP API the local UI talks to. It owns the current
// exam session slot; the notification store and channel are shared with the
// rest of the agent.
type Server struct {
	cfg       *config.Config
	clk       clock.Clock
	store     *notification.Store
	channel   *notification.Channel
	readSync  ReadSyncer
	submitter attempt.Submitter
	log       zerolog.Logger

	mu      sync.Mutex
	session *attempt.Session
}

// NewServer creates a Server.
func NewServer(
	cfg *config.Config,
	clk clock.Clock,
	store *notification.Store,
	channel *notification.Channel,
	readSync ReadSyncer,
	submitter attempt.Submitter,
	log zerolog.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		clk:       clk,
		store:     store,
		channel:   channel,
		readSync:  readSync,
		submitter: submitter,
		log:       log.With().Str("component", "status_api").Logger(),
	}
}

// Router configures the Gin engine with all status API routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(s.cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(response.RequestIDMiddleware())

	// ─── CORS ──────────────────────────────────────────────────────────
	// Restrict to the configured UI origins; allow all when unset so dev
	// works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(s.cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = s.cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", s.GetStatus)

		att := v1.Group("/attempt")
		{
			att.POST("/start", s.StartAttempt)
			att.POST("/answers", s.RecordAnswer)
			att.POST("/submit", s.SubmitAttempt)
			att.DELETE("", s.DiscardAttempt)
		}

		notif := v1.Group("/notifications")
		{
			notif.GET("", s.ListNotifications)
			notif.POST("/local", s.CreateLocalNotification)
			notif.POST("/:id/read", s.MarkRead)
			notif.POST("/read-all", s.MarkAllRead)
		}
	}

	return router
}

// ─── Status ─────────────────────────────────────────────────────────

// statusBody is the GET /status response payload.
type statusBody struct {
	Attempt          *attempt.Snapshot   `json:"attempt"`
	RemainingSeconds int64               `json:"remaining_seconds"`
	ChannelState     notification.State  `json:"channel_state"`
	Counts           notification.Counts `json:"counts"`
}

// GetStatus godoc
// GET /api/v1/status
// Returns the best-known local state: attempt + remaining time + inbox
// counts. Always answers, even while disconnected from the backend.
func (s *Server) GetStatus(c *gin.Context) {
	body := statusBody{
		ChannelState: s.channel.CurrentState(),
		Counts:       s.store.Counts(),
	}

	s.mu.Lock()
	if s.session != nil {
		snap := s.session.Ctrl.Snapshot()
		body.Attempt = &snap
		// Remaining is observation-only; expiry fires from the tick loop.
		body.RemainingSeconds = int64(s.session.Engine.Remaining() / time.Second)
	}
	s.mu.Unlock()

	response.Success(c, http.StatusOK, body)
}

// ─── Attempt ────────────────────────────────────────────────────────

// startAttemptRequest is the body of POST /attempt/start.
type startAttemptRequest struct {
	AttemptID       string `json:"attempt_id" binding:"required,uuid"`
	ExamID          string `json:"exam_id" binding:"required,uuid"`
	StudentID       string `json:"student_id" binding:"required,uuid"`
	DurationSeconds int    `json:"duration_seconds" binding:"required,gt=0"`
}

// StartAttempt godoc
// POST /api/v1/attempt/start
// Opens the exam: fixes the deadline at now+duration and arms the countdown.
func (s *Server) StartAttempt(c *gin.Context) {
	var req startAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	attemptID, _ := uuid.Parse(req.AttemptID)
	examID, _ := uuid.Parse(req.ExamID)
	studentID, _ := uuid.Parse(req.StudentID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && s.session.Ctrl.State() != attempt.StateSubmitted {
		response.Fail(c, http.StatusConflict, response.ErrAttemptActive)
		return
	}
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}

	att := attempt.NewAttempt(attemptID, examID, studentID, req.DurationSeconds, s.clk.Now())
	session, err := attempt.StartSession(attempt.SessionConfig{
		Attempt:      att,
		Submitter:    s.submitter,
		Clock:        s.clk,
		TickInterval: s.cfg.TickInterval,
		Policy: backoff.Policy{
			Base:   s.cfg.BackoffBase,
			Cap:    s.cfg.BackoffCap,
			Jitter: true,
		},
		RetryLimit: s.cfg.SubmitRetryLimit,
		Log:        s.log,
	})
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidDeadline)
		return
	}

	s.session = session
	s.log.Info().
		Str("attempt_id", att.AttemptID.String()).
		Time("deadline", att.Deadline).
		Msg("Attempt started")
	response.Success(c, http.StatusCreated, att)
}

// recordAnswerRequest is the body of POST /attempt/answers.
type recordAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

// RecordAnswer godoc
// POST /api/v1/attempt/answers
// Buffers one collected answer for the eventual submission body.
func (s *Server) RecordAnswer(c *gin.Context) {
	var req recordAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoAttempt)
		return
	}

	session.Ctrl.RecordAnswer(req.QuestionID, req.Answer)
	response.Success(c, http.StatusOK, gin.H{"state": session.Ctrl.State()})
}

// SubmitAttempt godoc
// POST /api/v1/attempt/submit
// Manual submit trigger. Idempotent: once a submission is in flight or done
// the current state comes back unchanged and no extra network call happens.
func (s *Server) SubmitAttempt(c *gin.Context) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoAttempt)
		return
	}

	state := session.Ctrl.Submit(attempt.TriggerManual)
	response.Success(c, http.StatusAccepted, gin.H{"state": state})
}

// DiscardAttempt godoc
// DELETE /api/v1/attempt
// Tears down the session after submission is confirmed (the view unmounted).
func (s *Server) DiscardAttempt(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoAttempt)
		return
	}

	snap := s.session.Ctrl.Snapshot()
	if snap.State != attempt.StateSubmitted && !snap.Fatal {
		response.Fail(c, http.StatusConflict, response.ErrAttemptNotClosed)
		return
	}

	s.session.Close()
	s.session = nil
	s.log.Info().Str("attempt_id", snap.Attempt.AttemptID.String()).Msg("Attempt discarded")
	response.Success(c, http.StatusOK, gin.H{"discarded": true})
}

// ─── Notifications ──────────────────────────────────────────────────

// ListNotifications godoc
// GET /api/v1/notifications
// Returns the inbox, newest first, with counts derived from the set.
func (s *Server) ListNotifications(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"notifications":        s.store.List(),
		"counts":               s.store.Counts(),
		"authoritative_counts": s.store.AuthoritativeCounts(),
	})
}

// localNotificationRequest is the body of POST /notifications/local.
type localNotificationRequest struct {
	Message string `json:"message" binding:"required"`
}

// CreateLocalNotification godoc
// POST /api/v1/notifications/local
// Creates a provisional client-only entry (e.g. "exam submitted" toast) that
// reconciliation later confirms or leaves as display-only.
func (s *Server) CreateLocalNotification(c *gin.Context) {
	var req localNotificationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, ok := s.store.NotifyLocal(req.Message)
	if !ok {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, rec)
}

// MarkRead godoc
// POST /api/v1/notifications/:id/read
// Optimistic local mark plus best-effort server sync. A sync failure never
// rolls back the local state.
func (s *Server) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	s.store.MarkRead(id)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTPTimeout)
		defer cancel()
		if err := s.readSync.MarkNotificationRead(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("id", id).Msg("Read sync failed")
		}
	}()

	response.Success(c, http.StatusOK, s.store.Counts())
}

// MarkAllRead godoc
// POST /api/v1/notifications/read-all
// Marks every entry read as one atomic store mutation.
func (s *Server) MarkAllRead(c *gin.Context) {
	s.store.MarkAllRead()
	response.Success(c, http.StatusOK, s.store.Counts())
}

// CloseSession tears down any active session. Called on agent shutdown.
func (s *Server) CloseSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
}
