package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/seqr-matchmaker/internal/domain"
	"github.com/seqr-matchmaker/internal/middleware"
)

// MatchmakerService is the slice of the matchmaker service the HTTP API exposes
type MatchmakerService interface {
	SubmitCase(ctx context.Context, submission *domain.Submission) error
	GetSubmission(ctx context.Context, guid string) (*domain.Submission, error)
	UpdateSubmission(ctx context.Context, guid string, changes *domain.Submission) (*domain.Submission, error)
	ListResults(ctx context.Context, submissionGUID string, includeRemoved bool) (*domain.Submission, []*domain.MatchResult, error)
	RecordResult(ctx context.Context, submissionGUID string, resultData json.RawMessage, createdBy *int64) (*domain.MatchResult, error)
	UpdateResultStatus(ctx context.Context, resultGUID string, status domain.MatchStatus, by *int64) (*domain.MatchResult, error)
	RemoveMatch(ctx context.Context, resultGUID string, by *int64) error
	DeleteSubmission(ctx context.Context, guid string, by *int64) (*domain.Submission, error)
	PurgeSubmission(ctx context.Context, guid string) error
	GetContactNotes(ctx context.Context, institution string) (*domain.ContactNotes, error)
	UpdateContactNotes(ctx context.Context, institution, comments string) (*domain.ContactNotes, error)
}

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	config  *domain.Config
	service MatchmakerService
	health  HealthChecker
	logger  *logrus.Logger
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config *domain.Config, service MatchmakerService, health HealthChecker, logger *logrus.Logger) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(config.Server.RequestTimeout))

	s := &Server{
		config:  config,
		service: service,
		health:  health,
		logger:  logger,
		router:  router,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes. Public routes emit the public field subsets;
// internal routes add the internal ones.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.RateLimit(s.config.RateLimit))
	{
		v1.GET("/submissions/:guid", s.handleGetSubmission(false))
		v1.GET("/submissions/:guid/results", s.handleListResults(false))
	}

	internal := s.router.Group("/internal/v1")
	{
		internal.POST("/submissions", s.handleSubmitCase)
		internal.GET("/submissions/:guid", s.handleGetSubmission(true))
		internal.PUT("/submissions/:guid", s.handleUpdateSubmission)
		internal.DELETE("/submissions/:guid", s.handleDeleteSubmission)
		internal.POST("/submissions/:guid/purge", s.handlePurgeSubmission)
		internal.GET("/submissions/:guid/results", s.handleListResults(true))
		internal.POST("/submissions/:guid/results", s.handleRecordResult)
		internal.POST("/results/:guid/status", s.handleUpdateResultStatus)
		internal.POST("/results/:guid/remove", s.handleRemoveMatch)
		internal.GET("/contact-notes/:institution", s.handleGetContactNotes)
		internal.PUT("/contact-notes/:institution", s.handleUpdateContactNotes)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.health.Health(c.Request.Context()); err != nil {
		s.logger.WithError(err).Error("Health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
