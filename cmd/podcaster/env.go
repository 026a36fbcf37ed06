package main

import (
	"fmt"
	"log/slog"

	"github.com/thinkscotty/podcaster/internal/ai"
	"github.com/thinkscotty/podcaster/internal/config"
	"github.com/thinkscotty/podcaster/internal/database"
	"github.com/thinkscotty/podcaster/internal/feeds"
	"github.com/thinkscotty/podcaster/internal/pipeline"
	"github.com/thinkscotty/podcaster/internal/render"
	"github.com/thinkscotty/podcaster/internal/scheduler"
	"github.com/thinkscotty/podcaster/internal/scraper"
	"github.com/thinkscotty/podcaster/internal/speech"
	"github.com/thinkscotty/podcaster/internal/storage"
)

// app holds the wired services shared by run and serve.
type app struct {
	db        *database.DB
	blobs     *storage.FileStore
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	logger.Info("Database initialized", "path", cfg.Database.Path)

	blobs, err := storage.NewFileStore(cfg.Storage.BlobDir, cfg.Storage.PublicURL)
	if err != nil {
		db.Close()
		return nil, err
	}

	model, err := ai.NewClient(cfg.LLM, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("language model: %w", err)
	}

	env := pipeline.Env{
		Checkpoints: db,
		Blobs:       blobs,
		Collector:   feeds.NewCollector(nil, logger),
		Model:       model,
		Extractor:   scraper.New(cfg.Reader),
		Speaker:     speech.NewClient(cfg.Speech),
		Logger:      logger,
	}
	// A nil *render.Client must stay out of the interface so the pipeline
	// sees the renderer as absent.
	if r := render.New(cfg.Render); r != nil {
		env.Renderer = r
	} else {
		logger.Warn("Render service not configured, runs will be text only")
	}

	p := pipeline.New(env, pipeline.SettingsFromConfig(cfg))
	sched := scheduler.New(p, db, cfg.Pipeline.Environment, cfg.Pipeline.Schedule,
		scheduler.WithLogger(logger),
		scheduler.WithFileLock(cfg.Database.Path+".lock"),
	)

	return &app{db: db, blobs: blobs, pipeline: p, scheduler: sched}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
