package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/thinkscotty/podcaster/internal/config"
	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/pipeline"
)

// Trigger starts pipeline runs in the background.
type Trigger interface {
	Start(ctx context.Context, date string, fresh bool, opts pipeline.RunOptions) (models.RunContext, error)
}

// BlobOpener serves stored audio.
type BlobOpener interface {
	Open(key string) (*os.File, error)
}

type Server struct {
	cfg          config.ServerConfig
	environment  string
	pipelineName string
	trigger      Trigger
	records      pipeline.BundleReader
	blobs        BlobOpener
	logger       *slog.Logger

	// runCtx bounds background runs started over HTTP; it outlives requests.
	runCtx  context.Context
	httpSrv *http.Server
}

func New(runCtx context.Context, cfg *config.Config, trigger Trigger, records pipeline.BundleReader, blobs BlobOpener, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:          cfg.Server,
		environment:  cfg.Pipeline.Environment,
		pipelineName: cfg.Pipeline.Name,
		trigger:      trigger,
		records:      records,
		blobs:        blobs,
		logger:       logger,
		runCtx:       runCtx,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)
	return s.recoveryMiddleware(s.loggingMiddleware(mux))
}

// Start sets up routes and starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSeconds) * time.Second,
	}

	s.logger.Info("Starting server", "addr", addr, "trigger_auth", s.cfg.TriggerKeyHash != "")
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) routes(mux *http.ServeMux) {
	// Audio is public: the render service fetches utterances from here.
	mux.HandleFunc("GET /static/{key...}", s.handleStatic)

	mux.Handle("POST /api/cron", s.requireTriggerKey(http.HandlerFunc(s.handleCron)))
	mux.HandleFunc("GET /api/runs/{date}", s.handleRun)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
