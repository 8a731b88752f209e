package cli

import (
	"context"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/roach88/bugzapp/internal/bugreport"
	"github.com/roach88/bugzapp/internal/config"
	"github.com/roach88/bugzapp/internal/evidence"
	"github.com/roach88/bugzapp/internal/publish"
	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/runner"
	"github.com/roach88/bugzapp/internal/store"
	"github.com/roach88/bugzapp/internal/submission"
	"github.com/roach88/bugzapp/internal/webtools"
)

// app carries what every command needs: effective config, logger, output.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    *OutputFormatter
}

// newApp loads configuration and builds the logger. Logs go to the
// command's stderr; --verbose forces debug level.
func newApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.Config, opts.EnvFile)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	level, err := config.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	return &app{
		cfg:    cfg,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (a *app) openStorage() (store.Storage, error) {
	st, err := store.Open(a.cfg.Storage.Store())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}
	a.logger.Debug("storage ready", "backend", a.cfg.Storage.Backend)
	return st, nil
}

func closeStorage(st store.Storage, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("error closing storage", "error", err)
	}
}

// reportRecorder remembers every bug report saved through it so a run can
// list the reports it produced.
type reportRecorder struct {
	bugreport.ReportSaver

	mu      sync.Mutex
	reports []qa.BugReport
}

func (r *reportRecorder) SaveBugReport(ctx context.Context, input store.BugReportInput) (store.BugReportRecord, error) {
	record, err := r.ReportSaver.SaveBugReport(ctx, input)
	if err == nil {
		r.mu.Lock()
		r.reports = append(r.reports, record.Report)
		r.mu.Unlock()
	}
	return record, err
}

func (r *reportRecorder) Reports() []qa.BugReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]qa.BugReport(nil), r.reports...)
}

// newToolbox registers the HTTP page tools and the assert tool, all
// sharing one page session.
func (a *app) newToolbox(reports bugreport.ReportSaver) (*runner.Toolbox, error) {
	session := webtools.NewSession(webtools.WithUserAgent(a.cfg.Runner.UserAgent))
	provider := webtools.NewProvider(session)

	builder, err := bugreport.NewBuilder(qa.SystemClock{})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load bug report schema", err)
	}
	asserter := &bugreport.Asserter{
		Builder:  builder,
		Capturer: evidence.Capturer{BaseDir: a.cfg.Runner.EvidenceDir},
		Storage:  reports,
		Logger:   a.logger,
	}

	tools := runner.NewToolbox()
	provider.Register(tools)
	tools.Register(qa.ToolAssert, asserter.Tool(provider))
	a.logger.Debug("tools registered", "tools", tools.Names())
	return tools, nil
}

func (a *app) newRunner(tools *runner.Toolbox, st store.Storage) *runner.Runner {
	return runner.New(runner.Options{
		Tools:       tools,
		Storage:     st,
		Logger:      a.logger,
		StepTimeout: a.cfg.Runner.StepTimeout,
	})
}

// newQueue wires a submission queue to the configured stores and a
// runner over the page tools. Initialize is left to the caller.
func (a *app) newQueue(st store.Storage, metrics *submission.Metrics) (*submission.Queue, error) {
	tools, err := a.newToolbox(st)
	if err != nil {
		return nil, err
	}
	discovery := a.cfg.Submission.Discovery()
	discovery.Logger = a.logger
	return submission.New(submission.Options{
		Store:      submission.NewFileStore(a.cfg.Submission.StorePath),
		Discoverer: submission.NewDiscoverer(discovery),
		Runner:     a.newRunner(tools, st),
		Runs:       st,
		Metrics:    metrics,
		Logger:     a.logger,
	}), nil
}

func (a *app) newPublisher() *publish.Publisher {
	return publish.New(a.cfg.Publish, publish.WithLogger(a.logger))
}
