package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/aretw0/quill/pkg/adapters/memory"
	"github.com/aretw0/quill/pkg/adapters/redis"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/persistence/middleware"
	"github.com/aretw0/quill/pkg/ports"
	"github.com/muesli/termenv"
)

// OpenTranscriptStore resolves cfg.URL: "redis://..." (or "rediss://") uses the
// redis adapter, "memory" keeps transcripts in process. Redaction and encryption
// wrap the store when configured. The returned close function is never nil.
func OpenTranscriptStore(ctx context.Context, cfg config.TranscriptConfig) (ports.TranscriptStore, func() error, error) {
	noop := func() error { return nil }
	store, closeFn, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}
	active, fallback, err := cfg.EncryptionKeys()
	if err != nil {
		_ = closeFn()
		return nil, noop, err
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mws = append(mws, middleware.NewPIIMiddleware(cfg.Redact))
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return middleware.Chain(store, mws...), closeFn, nil
}

func openBackend(ctx context.Context, cfg config.TranscriptConfig) (ports.TranscriptStore, func() error, error) {
	noop := func() error { return nil }
	switch {
	case cfg.URL == "memory":
		return memory.NewStore(), noop, nil
	case strings.HasPrefix(cfg.URL, "redis://"), strings.HasPrefix(cfg.URL, "rediss://"):
		store, err := redis.NewFromURL(cfg.URL, redis.WithTTL(cfg.TTL))
		if err != nil {
			return nil, noop, fmt.Errorf("opening transcript store: %w", err)
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, noop, fmt.Errorf("connecting to transcript store: %w", err)
		}
		return store, store.Close, nil
	}
	return nil, noop, fmt.Errorf("unsupported transcript URL %q (want redis://host:port/db or memory)", cfg.URL)
}

// Recorder saves every streamed snapshot of a run. Storage failures are logged
// and never interrupt the run.
type Recorder struct {
	store  ports.TranscriptStore
	runID  string
	logger *slog.Logger
}

// NewRecorder returns a Recorder for runID. A nil store records nothing.
func NewRecorder(store ports.TranscriptStore, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{store: store, runID: runID, logger: logger}
}

// Record stores log as the latest transcript of the run.
func (r *Recorder) Record(ctx context.Context, log domain.MessageLog) {
	if r == nil || r.store == nil {
		return
	}
	// The run context may already be cancelled; the partial log is still worth keeping.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.Save(saveCtx, r.runID, log); err != nil {
		r.logger.Warn("failed to record transcript", domain.KeyRunID, r.runID, "error", err)
	}
}

// ShowTranscript prints a stored run, or lists stored run IDs when runID is empty.
func ShowTranscript(ctx context.Context, store ports.TranscriptStore, runID string, out io.Writer) error {
	if runID == "" {
		ids, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	log, err := store.Load(ctx, runID)
	if err != nil {
		return fmt.Errorf("loading transcript %s: %w", runID, err)
	}
	printer := tui.NewPrinter(out, termenv.Ascii)
	for _, msg := range log.All() {
		printer.Message(msg)
	}
	return nil
}
