package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/quill/internal/config"
	quillhttp "github.com/aretw0/quill/pkg/adapters/http"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/observability"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

// ServeOptions configures the serve command.
type ServeOptions struct {
	ConfigPath    string
	Addr          string
	Debug         bool
	TranscriptURL string
	Err           io.Writer
	Deps          Deps
}

// NewHTTPHandler builds the run API. Transcripts are kept in memory unless a
// store is configured. Prometheus metrics are served on /metrics.
func NewHTTPHandler(ctx context.Context, opts ServeOptions) (http.Handler, func() error, error) {
	noop := func() error { return nil }
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, noop, failf("%w", err)
	}
	if opts.TranscriptURL != "" {
		cfg.Transcript.URL = opts.TranscriptURL
	}
	logger, err := createLogger(opts.Err, cfg.Log, opts.Debug)
	if err != nil {
		return nil, noop, failf("%w", err)
	}
	if opts.Deps.needsCredentials() {
		if err := cfg.RequireCredentials(); err != nil {
			return nil, noop, failf("%w", err)
		}
	}

	if cfg.Transcript.URL == "" {
		cfg.Transcript.URL = "memory"
	}
	store, closeStore, err := OpenTranscriptStore(ctx, cfg.Transcript)
	if err != nil {
		return nil, noop, failf("%w", err)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hooks := []domain.LifecycleHooks{metrics.Hooks()}
	if opts.Debug {
		hooks = append(hooks, observability.LogHooks(logger))
	}
	engine, err := createEngine(cfg, opts.Deps, observability.Combine(hooks...), logger)
	if err != nil {
		_ = closeStore()
		return nil, noop, failf("%w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", quillhttp.NewHandler(&quillhttp.Server{
		Engine: engine,
		Seed:   pipeline.Seed,
		Store:  store,
		Logger: logger,
	}))
	return mux, closeStore, nil
}

// Serve runs the run API on opts.Addr until ctx is done.
func Serve(ctx context.Context, opts ServeOptions) error {
	handler, closeStore, err := NewHTTPHandler(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := &http.Server{Addr: opts.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return failf("%w", err)
	}
	return nil
}
