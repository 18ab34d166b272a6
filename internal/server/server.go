// Package server exposes health, Prometheus metrics, the generated
// newsletter files and the generation triggers over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/deusflow/newsletter/internal/app"
	"github.com/deusflow/newsletter/internal/delivery"
	"github.com/deusflow/newsletter/internal/metrics"
	"github.com/deusflow/newsletter/internal/storage"
)

const sidecarCheckTimeout = 2 * time.Second

// HealthChecker is satisfied by *whatsapp.Client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Generator is satisfied by *app.Service.
type Generator interface {
	Generate(ctx context.Context) (*app.Report, error)
	GenerateForRecipient(ctx context.Context, recipientID string) (*app.Report, error)
}

// StatsProvider is satisfied by *ratelimit.Budget.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

type Server struct {
	engine    *gin.Engine
	sidecar   HealthChecker
	generator Generator
	budget    StatsProvider
	log       logrus.FieldLogger
}

type Option func(*Server)

// WithSidecar adds WhatsApp reachability to /health.
func WithSidecar(h HealthChecker) Option {
	return func(s *Server) { s.sidecar = h }
}

// WithGenerator mounts POST /generate and POST /generate/:id.
func WithGenerator(g Generator) Option {
	return func(s *Server) { s.generator = g }
}

// WithBudget adds LLM usage to /health.
func WithBudget(b StatsProvider) Option {
	return func(s *Server) { s.budget = b }
}

// New builds the router serving artifacts from artifactsDir.
func New(artifactsDir string, log logrus.FieldLogger, opts ...Option) *Server {
	s := &Server{engine: gin.New(), log: log}
	for _, opt := range opts {
		opt(s)
	}

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "HEAD", "POST", "OPTIONS"}

	s.engine.Use(gin.Recovery(), s.requestLogger(), cors.New(config))
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.Static(strings.TrimSuffix(delivery.StaticPrefix, "/"), artifactsDir)

	if s.generator != nil {
		s.engine.POST("/generate", s.generate)
		s.engine.POST("/generate/:id", s.generateFor)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTP server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	stats := metrics.Global.GetStats()

	status := "ok"
	code := http.StatusOK
	if healthy, _ := stats["is_healthy"].(bool); !healthy {
		status = "error"
		code = http.StatusServiceUnavailable
	}

	resp := gin.H{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	if s.budget != nil {
		resp["llm_budget"] = s.budget.GetStats()
	}

	if s.sidecar != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), sidecarCheckTimeout)
		defer cancel()
		if err := s.sidecar.Health(ctx); err != nil {
			resp["whatsapp"] = "unavailable"
		} else {
			resp["whatsapp"] = "connected"
		}
	}

	c.JSON(code, resp)
}

func (s *Server) generate(c *gin.Context) {
	rep, err := s.generator.Generate(c.Request.Context())
	s.respondReport(c, rep, err)
}

func (s *Server) generateFor(c *gin.Context) {
	rep, err := s.generator.GenerateForRecipient(c.Request.Context(), c.Param("id"))
	s.respondReport(c, rep, err)
}

func (s *Server) respondReport(c *gin.Context, rep *app.Report, err error) {
	if err != nil {
		s.log.WithError(err).Warn("Generation failed")
		c.JSON(errorStatus(err), gin.H{"error": app.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, rep)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNoPreferences):
		return http.StatusConflict
	case errors.Is(err, app.ErrNoArticles):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Microsecond),
		}).Debug("HTTP request")
	}
}
