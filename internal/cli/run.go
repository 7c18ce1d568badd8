package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/quill/internal/config"
	"github.com/aretw0/quill/internal/presentation/tui"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/observability"
	"github.com/aretw0/quill/pkg/pipeline"
	"github.com/aretw0/quill/pkg/tools"
	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"github.com/prometheus/client_golang/prometheus"
)

// RunOptions contains all the configuration for the run command.
type RunOptions struct {
	ConfigPath    string
	Topic         string
	Render        bool
	Debug         bool
	MetricsAddr   string
	TranscriptURL string

	In      io.Reader
	Out     io.Writer
	Err     io.Writer
	Profile termenv.Profile
	Banner  bool

	// Deps replaces the external services (tests).
	Deps Deps
}

// Streamer is the part of the engine a research run consumes.
type Streamer interface {
	Stream(ctx context.Context, initial domain.MessageLog) iter.Seq2[domain.MessageLog, error]
}

// Run executes one research run: it reads the topic, streams the pipeline and
// prints progress. Failures are reported on Out and returned as *ExitError.
func Run(ctx context.Context, opts RunOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return failf("%w", err)
	}
	if opts.TranscriptURL != "" {
		cfg.Transcript.URL = opts.TranscriptURL
	}
	logger, err := createLogger(opts.Err, cfg.Log, opts.Debug)
	if err != nil {
		return failf("%w", err)
	}
	if opts.Deps.needsCredentials() {
		if err := cfg.RequireCredentials(); err != nil {
			return failf("%w", err)
		}
	}

	printer := tui.NewPrinter(opts.Out, opts.Profile)
	if opts.Banner {
		tui.PrintBanner(opts.Out, opts.Profile)
	}

	topic, err := domain.SanitizeInput(opts.Topic)
	if err != nil {
		return failf("invalid topic: %w", err)
	}
	if topic == "" {
		if topic, err = readTopic(opts.In, opts.Out); err != nil {
			return failf("%w", err)
		}
	}

	var hooks []domain.LifecycleHooks
	if opts.Debug {
		hooks = append(hooks, observability.LogHooks(logger))
	}
	if opts.MetricsAddr != "" {
		metrics := observability.NewMetrics(prometheus.NewRegistry())
		stop, err := serveMetrics(opts.MetricsAddr, metrics, logger)
		if err != nil {
			return failf("%w", err)
		}
		defer stop()
		hooks = append(hooks, metrics.Hooks())
	}

	engine, err := createEngine(cfg, opts.Deps, observability.Combine(hooks...), logger)
	if err != nil {
		return failf("%w", err)
	}

	runID := uuid.NewString()
	ctx = domain.ContextWithRunID(ctx, runID)

	var recorder *Recorder
	if cfg.Transcript.URL != "" {
		store, closeStore, err := OpenTranscriptStore(ctx, cfg.Transcript)
		if err != nil {
			return failf("%w", err)
		}
		defer closeStore()
		recorder = NewRecorder(store, runID, logger)
		printer.System("Recording transcript of run %s", runID)
	}

	printer.System("Processing...")
	final, err := RunResearch(ctx, engine, pipeline.Seed(topic), printer, recorder)
	if err != nil {
		printer.Failure(final, err)
		code := ExitFailure
		if errors.Is(err, domain.ErrCancelled) {
			code = ExitCancelled
		}
		return &ExitError{Code: code, Err: err}
	}

	if opts.Render {
		if err := renderReport(opts.Out, final, opts.Profile != termenv.Ascii); err != nil {
			logger.Warn("failed to render report", "error", err)
		}
	}
	printer.System("Workflow finished. Check %s for the .docx file!", cfg.OutputDir)
	return nil
}

// RunResearch prints the seed turn, then consumes the stream, printing and
// recording every snapshot. It returns the final log, or the partial log and
// the run error.
func RunResearch(ctx context.Context, engine Streamer, initial domain.MessageLog, printer *tui.Printer, recorder *Recorder) (domain.MessageLog, error) {
	final := initial
	if msg, ok := initial.Last(); ok {
		printer.Message(msg)
	}
	recorder.Record(ctx, initial)
	for log, err := range engine.Stream(ctx, initial) {
		if err != nil {
			recorder.Record(ctx, log)
			return log, err
		}
		if msg, ok := log.Last(); ok {
			printer.Message(msg)
		}
		recorder.Record(ctx, log)
		final = log
	}
	return final, nil
}

func readTopic(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "What should I research? (e.g., 'Nvidia Stock Performance 2024'): ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading topic: %w", err)
	}
	topic, err := domain.SanitizeInput(line)
	if err != nil {
		return "", fmt.Errorf("invalid topic: %w", err)
	}
	if topic == "" {
		return "", errors.New("a topic is required")
	}
	return topic, nil
}

// reportMarkdown returns the markdown handed to save_report, falling back to
// the content of the last writer output.
func reportMarkdown(log domain.MessageLog) string {
	var fallback string
	for _, msg := range log.All() {
		if msg.Role != domain.RoleStageOutput || msg.Stage != pipeline.StageWrite {
			continue
		}
		for _, call := range msg.ToolCalls {
			if call.Name != tools.SaveReportToolName {
				continue
			}
			if content, ok := call.Arguments["content"].(string); ok && content != "" {
				return content
			}
		}
		if msg.Content != "" {
			fallback = msg.Content
		}
	}
	return fallback
}

func renderReport(out io.Writer, log domain.MessageLog, tty bool) error {
	md := reportMarkdown(log)
	if md == "" {
		return nil
	}
	render, err := tui.NewRenderer(tty, 100)
	if err != nil {
		return err
	}
	rendered, err := render(md)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, rendered)
	return err
}

// serveMetrics exposes /metrics on addr until the returned stop function is called.
func serveMetrics(addr string, metrics *observability.Metrics, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
