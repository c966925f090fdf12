// Package api exposes the operational HTTP surface: health, scheduler
// status and manual job triggering. It serves operators and probes, not
// end users; job data itself is read by downstream services straight from
// the store.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"jobpulse/ingest-service/internal/pipeline"
	"jobpulse/ingest-service/internal/scheduler"
)

// HealthChecker assesses pipeline health.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (*pipeline.MaintenanceReport, error)
}

// Jobs is the scheduler surface the API exposes.
type Jobs interface {
	Status() []scheduler.JobStatus
	TriggerAsync(name string) error
}

// Server is the ops HTTP server.
type Server struct {
	log    *zap.Logger
	health HealthChecker
	jobs   Jobs
	http   *http.Server
}

// New builds the server with its routes registered.
func New(log *zap.Logger, addr string, health HealthChecker, jobs Jobs, development bool) *Server {
	if !development {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{log: log, health: health, jobs: jobs}

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.POST("/trigger/:job", s.handleTrigger)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.Info("ops server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealth reports the pipeline health assessment. Unhealthy answers
// 503 so load balancers and probes act on it without parsing the body.
func (s *Server) handleHealth(c *gin.Context) {
	report, err := s.health.CheckHealth(c.Request.Context())
	if err != nil {
		s.log.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
		return
	}
	code := http.StatusOK
	if report.Health == pipeline.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.jobs.Status()})
}

// handleTrigger kicks a job off out of schedule and returns immediately.
func (s *Server) handleTrigger(c *gin.Context) {
	name := c.Param("job")
	err := s.jobs.TriggerAsync(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		s.log.Error("manual trigger failed", zap.String("job", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "trigger failed"})
	default:
		s.log.Info("job triggered manually", zap.String("job", name))
		c.JSON(http.StatusAccepted, gin.H{"job": name, "status": "started"})
	}
}
