package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/xcrunner/packages/core/config"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/execution"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/request"
	"github.com/abdul-hamid-achik/xcrunner/packages/core/runner"
	"github.com/abdul-hamid-achik/xcrunner/packages/events"
	"github.com/abdul-hamid-achik/xcrunner/packages/export/metrics"
	"github.com/abdul-hamid-achik/xcrunner/packages/history"
	"github.com/abdul-hamid-achik/xcrunner/packages/notify"
	"github.com/abdul-hamid-achik/xcrunner/packages/output"
	"github.com/abdul-hamid-achik/xcrunner/packages/results"
	"github.com/abdul-hamid-achik/xcrunner/packages/xcresult"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run schemes, test plans and Swift packages",
	Long: `Run xcodebuild schemes, test plans and Swift packages one after another,
streaming progress while they run.

Examples:
  xcrunner run -p . --scheme App
  xcrunner run -p . --scheme "App|AppUITests" --destination "iPhone 15"
  xcrunner run -p . --plan App:Smoke --package Packages/Core
  xcrunner run --package ".|ParserTests" --bail
  xcrunner run --request ci.yaml -o junit --output-file report.xml
  xcrunner run -p . --scheme App --watch`,
	Args: cobra.NoArgs,
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 500 * time.Millisecond

	// WatchMinInterval is the shortest time between two watch-triggered runs
	WatchMinInterval = 5 * time.Second

	// notifyTimeout bounds webhook delivery and history writes after a run
	notifyTimeout = 15 * time.Second
)

var (
	projectFlag     string
	schemeFlags     []string
	planFlags       []string
	packageFlags    []string
	destinationFlag string
	bailFlag        bool
	requestFlag     string
	outputFlag      string
	outputFileFlag  string
	scratchDirFlag  string
	noResultsFlag   bool
	legacyFlag      bool
	historyDBFlag   string
	noHistoryFlag   bool
	afterUnitFlag   string
	watchFlag       bool

	// Notification flags
	notifyFlag       string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string

	// Metrics export flags
	metricsFileFlag   string
	datadogAPIKeyFlag string
	datadogSiteFlag   string
	datadogTagsFlag   []string
)

func init() {
	// Selection flags
	runCmd.Flags().StringVarP(&projectFlag, "project", "p", getEnvString("XCRUNNER_PROJECT", ""), "Directory holding the workspace or project (env: XCRUNNER_PROJECT)")
	runCmd.Flags().StringArrayVar(&schemeFlags, "scheme", nil, "Scheme to test, as Scheme or Scheme|TestTarget (repeatable)")
	runCmd.Flags().StringArrayVar(&planFlags, "plan", nil, "Test plan to run, as Scheme:Plan (repeatable)")
	runCmd.Flags().StringArrayVar(&packageFlags, "package", nil, "Swift package to test, as path or path|filter (repeatable)")
	runCmd.Flags().StringVar(&requestFlag, "request", getEnvString("XCRUNNER_REQUEST", ""), "Run request file (JSON or YAML) (env: XCRUNNER_REQUEST)")
	runCmd.Flags().StringVarP(&destinationFlag, "destination", "d", getEnvString("XCRUNNER_DESTINATION", ""), "xcodebuild destination or simulator UDID (env: XCRUNNER_DESTINATION)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "stop-on-first-failure", getEnvBool("XCRUNNER_BAIL", false), "Skip remaining targets after the first failure (env: XCRUNNER_BAIL)")
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("XCRUNNER_BAIL", false), "Alias for --stop-on-first-failure")
	runCmd.Flags().StringVar(&scratchDirFlag, "scratch-dir", getEnvString("XCRUNNER_SCRATCH_DIR", ""), "Parent directory for result bundles (env: XCRUNNER_SCRATCH_DIR)")
	runCmd.Flags().BoolVar(&noResultsFlag, "no-results", getEnvBool("XCRUNNER_NO_RESULTS", false), "Do not read result bundles after each target (env: XCRUNNER_NO_RESULTS)")
	runCmd.Flags().BoolVar(&legacyFlag, "legacy-results", getEnvBool("XCRUNNER_LEGACY_RESULTS", false), "Query result bundles with xcresulttool --legacy (env: XCRUNNER_LEGACY_RESULTS)")
	runCmd.Flags().StringVar(&afterUnitFlag, "after-unit", getEnvString("XCRUNNER_AFTER_UNIT", ""), "Shell command run after each target (env: XCRUNNER_AFTER_UNIT)")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch sources for changes and re-run")

	// Output flags
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("XCRUNNER_OUTPUT", "console"), "Output format: "+strings.Join(output.Formats(), ", ")+" (env: XCRUNNER_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("XCRUNNER_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: XCRUNNER_OUTPUT_FILE)")

	// History flags
	runCmd.Flags().StringVar(&historyDBFlag, "history", getEnvString("XCRUNNER_HISTORY", ""), "Run history database (default: user config dir) (env: XCRUNNER_HISTORY)")
	runCmd.Flags().BoolVar(&noHistoryFlag, "no-history", getEnvBool("XCRUNNER_NO_HISTORY", false), "Do not record this run (env: XCRUNNER_NO_HISTORY)")

	// Notification flags
	runCmd.Flags().StringVar(&notifyFlag, "notify", getEnvString("XCRUNNER_NOTIFY", ""), "Notification service: slack, teams (env: XCRUNNER_NOTIFY)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("XCRUNNER_NOTIFY_ON", ""), "When to notify: always, failure, success, recovery (env: XCRUNNER_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")

	// Metrics export flags
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("XCRUNNER_METRICS_FILE", ""), "Write run metrics in Prometheus text format to file (env: XCRUNNER_METRICS_FILE)")
	runCmd.Flags().StringVar(&datadogAPIKeyFlag, "datadog-api-key", getEnvString("DD_API_KEY", ""), "Send run metrics to DataDog (env: DD_API_KEY)")
	runCmd.Flags().StringVar(&datadogSiteFlag, "datadog-site", getEnvString("DD_SITE", "datadoghq.com"), "DataDog site (env: DD_SITE)")
	runCmd.Flags().StringSliceVar(&datadogTagsFlag, "datadog-tags", nil, "Extra DataDog tags, as key:value")
}

// flagOverrides turns explicitly set (or environment-provided) flags into a
// config layered over the config file
func flagOverrides(cmd *cobra.Command) *config.Config {
	flags := cmd.Flags()
	o := &config.Config{
		ProjectPath: projectFlag,
		Destination: destinationFlag,
		ScratchRoot: scratchDirFlag,
		HistoryDB:   historyDBFlag,
		AfterUnit:   afterUnitFlag,
	}
	if flags.Changed("output") || os.Getenv("XCRUNNER_OUTPUT") != "" {
		o.Output = outputFlag
	}
	if flags.Changed("stop-on-first-failure") || flags.Changed("bail") || os.Getenv("XCRUNNER_BAIL") != "" {
		o.StopOnFirstFailure = config.BoolPtr(bailFlag)
	}
	if noResultsFlag {
		o.ExtractResults = config.BoolPtr(false)
	}
	if legacyFlag {
		o.LegacyResultQuery = config.BoolPtr(true)
	}
	if noHistoryFlag {
		o.History = config.BoolPtr(false)
	}
	if verboseFlag > 0 {
		o.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		o.NoColor = config.BoolPtr(true)
	}
	if notifyOnFlag != "" || slackWebhookFlag != "" || slackChannelFlag != "" || teamsWebhookFlag != "" {
		o.Notify = &config.NotifyConfig{
			On:           notifyOnFlag,
			SlackWebhook: slackWebhookFlag,
			SlackChannel: slackChannelFlag,
			TeamsWebhook: teamsWebhookFlag,
		}
	}
	return o
}

// splitSelector splits "name<sep>rest" at the first sep; rest may be empty
func splitSelector(s, sep string) (string, string) {
	name, rest, _ := strings.Cut(s, sep)
	return strings.TrimSpace(name), strings.TrimSpace(rest)
}

// buildRequest assembles the run request from a request file and/or the
// selection flags. Flags add units to those of the file.
func buildRequest(cfg *config.Config) (*runner.RunRequest, error) {
	req := &runner.RunRequest{}
	if requestFlag != "" {
		loaded, err := request.LoadFile(requestFlag)
		if err != nil {
			return nil, err
		}
		req = loaded
	}

	for _, s := range schemeFlags {
		scheme, target := splitSelector(s, "|")
		req.SchemeTargets = append(req.SchemeTargets, runner.SchemeTarget{Scheme: scheme, OnlyTesting: target})
	}
	for _, p := range planFlags {
		scheme, plan := splitSelector(p, ":")
		if plan == "" {
			return nil, fmt.Errorf("%w: --plan %q must be Scheme:Plan", runner.ErrInvalidRequest, p)
		}
		req.TestPlanRuns = append(req.TestPlanRuns, runner.TestPlanRun{Scheme: scheme, TestPlan: plan})
	}
	for _, p := range packageFlags {
		path, filter := splitSelector(p, "|")
		req.Packages = append(req.Packages, runner.PackageTarget{Path: path, Filter: filter})
	}

	if cfg.ProjectPath != "" && (projectFlag != "" || req.ProjectPath == "") {
		req.ProjectPath = cfg.ProjectPath
	}
	if req.ProjectPath == "" && (len(req.SchemeTargets) > 0 || len(req.TestPlanRuns) > 0) {
		req.ProjectPath = "."
	}
	if cfg.Destination != "" && (destinationFlag != "" || req.Destination == "") {
		req.Destination = cfg.Destination
	}
	if cfg.StopOnFirstFailure != nil {
		req.StopOnFirstFailure = cfg.GetStopOnFirstFailure()
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// runScope is a short description of what a request runs, for listings
func runScope(req *runner.RunRequest) string {
	units := req.Units()
	keys := make([]string, len(units))
	for i, u := range units {
		keys[i] = u.Key
	}
	return strings.Join(keys, ", ")
}

// buildNotifier creates the notification manager, or nil when none is configured
func buildNotifier(cfg *config.Config) (*notify.Manager, error) {
	settings := cfg.NotifySettings()
	services := notifyFlag
	if services == "" {
		var configured []string
		if settings.SlackWebhook != "" {
			configured = append(configured, "slack")
		}
		if settings.TeamsWebhook != "" {
			configured = append(configured, "teams")
		}
		services = strings.Join(configured, ",")
	}
	if services == "" {
		return nil, nil
	}

	policy := settings.On
	if policy == "" {
		policy = string(notify.NotifyFailure)
	}
	notifyOn, err := notify.ParseNotifyOn(policy)
	if err != nil {
		return nil, err
	}

	var notifiers []notify.Notifier
	for _, service := range strings.Split(services, ",") {
		switch strings.ToLower(strings.TrimSpace(service)) {
		case "slack":
			if settings.SlackWebhook == "" {
				return nil, fmt.Errorf("--slack-webhook is required when using --notify slack")
			}
			slackOpts := []notify.SlackOption{}
			if settings.SlackChannel != "" {
				slackOpts = append(slackOpts, notify.WithSlackChannel(settings.SlackChannel))
			}
			notifiers = append(notifiers, notify.NewSlackNotifier(settings.SlackWebhook, slackOpts...))
		case "teams":
			if settings.TeamsWebhook == "" {
				return nil, fmt.Errorf("--teams-webhook is required when using --notify teams")
			}
			notifiers = append(notifiers, notify.NewTeamsNotifier(settings.TeamsWebhook))
		case "":
		default:
			return nil, fmt.Errorf("unknown notification service %q", service)
		}
	}
	if len(notifiers) == 0 {
		return nil, nil
	}
	return notify.NewManager(notifyOn, notifiers...), nil
}

// buildExporters creates the metrics exporters selected by flags
func buildExporters() []metrics.Exporter {
	var exporters []metrics.Exporter
	if metricsFileFlag != "" {
		exporters = append(exporters, metrics.NewPrometheusExporter(metrics.WithPrometheusFile(metricsFileFlag)))
	}
	if datadogAPIKeyFlag != "" {
		exporters = append(exporters, metrics.NewDataDogExporter(
			metrics.WithDataDogAPIKey(datadogAPIKeyFlag),
			metrics.WithDataDogSite(datadogSiteFlag),
			metrics.WithDataDogTags(datadogTagsFlag),
		))
	}
	return exporters
}

// session runs a request one or more times (watch mode) with the same
// manager, history store and notifier
type session struct {
	cfg       *config.Config
	req       *runner.RunRequest
	scope     string
	out       io.Writer
	manager   *runner.Manager
	store     *history.Store
	notifier  *notify.Manager
	exporters []metrics.Exporter
	collector *results.Collector
	cancelled atomic.Bool
	logger    *slog.Logger
}

func newSession(cfg *config.Config, req *runner.RunRequest, out io.Writer) (*session, error) {
	s := &session{
		cfg:    cfg,
		req:    req,
		scope:  runScope(req),
		out:    out,
		logger: slog.Default(),
	}

	opts := []runner.Option{runner.WithLogger(s.logger)}
	if len(cfg.PTYPrograms) > 0 {
		streamer := execution.NewStreamer(
			execution.WithWrappers(execution.PTYWrappers(cfg.PTYPrograms...)),
			execution.WithLogger(s.logger),
		)
		opts = append(opts, runner.WithStreamer(streamer))
	}
	if cfg.GetExtractResults() {
		extractor := xcresult.NewExtractor(
			xcresult.WithLegacy(cfg.GetLegacyResultQuery()),
			xcresult.WithLogger(s.logger),
		)
		opts = append(opts, runner.WithUnitHook(extractor.UnitHook(s)))
	}
	if cfg.AfterUnit != "" {
		opts = append(opts, runner.WithUnitHook(runner.CommandHook(cfg.AfterUnit)))
	}
	s.manager = runner.NewManager(&runner.Config{ScratchRoot: cfg.ScratchRoot}, opts...)

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}
	s.notifier = notifier
	s.exporters = buildExporters()

	if cfg.GetHistory() {
		location := cfg.HistoryDB
		if location == "" {
			location = history.DefaultPath()
		}
		store, err := history.Open(location)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: run history disabled: %v\n", err)
		} else {
			s.store = store
		}
	}
	return s, nil
}

// SetBundleCases forwards extracted cases to the collector of the current run
func (s *session) SetBundleCases(key string, cases []results.TestCase) bool {
	return s.collector.SetBundleCases(key, cases)
}

func (s *session) Close() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// interrupt cancels the active run, if any
func (s *session) interrupt() {
	s.cancelled.Store(true)
	if err := s.manager.Cancel(); err != nil && !errors.Is(err, runner.ErrNoActiveRun) {
		s.logger.Warn("cancel failed", "error", err)
	}
}

// handleSignal reacts to SIGINT/SIGTERM and reports whether the command
// should stop. The first signal during a run only cancels that run, so watch
// mode goes back to waiting for changes. A second signal, or one while idle,
// stops the command.
func (s *session) handleSignal(w io.Writer) bool {
	if _, running := s.manager.ActiveRunID(); running && !s.cancelled.Load() {
		fmt.Fprintln(w, "\nReceived interrupt, cancelling run...")
		s.interrupt()
		return false
	}
	return true
}

// runOnce executes the request and reports it; the result is the exit status
func (s *session) runOnce(ctx context.Context) (int, error) {
	s.cancelled.Store(false)
	s.collector = results.NewCollector()

	formatter, err := output.New(s.cfg.Output, output.Options{
		Writer:  s.out,
		Verbose: s.cfg.GetVerbose(),
		NoColor: s.cfg.GetNoColor(),
	})
	if err != nil {
		return ExitUsageError, err
	}
	formatter.FormatHeader(version)

	sinks := []events.Sink{s.collector, formatter}
	if s.store != nil {
		sinks = append(sinks, historySink{s})
	}
	_, runErr := s.manager.Run(ctx, s.req, events.Tee(sinks...))
	if runErr != nil {
		formatter.FormatError(runErr)
	}

	report := s.collector.Report()
	cancelled := s.cancelled.Load() || ctx.Err() != nil
	if report.RunID != "" {
		formatter.FormatReport(report)
	}
	if flushable, ok := formatter.(output.Flushable); ok {
		if err := flushable.Flush(); err != nil {
			return ExitUsageError, fmt.Errorf("error writing output: %w", err)
		}
	}

	if report.RunID != "" {
		s.record(report, cancelled)
	}

	switch {
	case errors.Is(runErr, runner.ErrInvalidRequest):
		return ExitRequestError, runErr
	case runErr != nil:
		return ExitToolError, runErr
	case cancelled:
		return ExitCancelled, nil
	case !report.Passed():
		return ExitTestFailure, nil
	default:
		return ExitSuccess, nil
	}
}

// historySink keeps the history row of the current run up to date while it
// executes, so a process that dies mid-run still leaves a running row behind.
// It must follow the collector in the sink chain.
type historySink struct {
	s *session
}

func (h historySink) Emit(ev events.Event) {
	switch e := ev.(type) {
	case events.RunStarted:
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		run := history.Run{
			ID:          e.RunID,
			Status:      history.RunRunning,
			ProjectPath: h.s.req.ProjectPath,
			Scope:       h.s.scope,
			StartedAt:   h.s.collector.Report().StartedAt,
		}
		if err := h.s.store.SaveRun(ctx, run); err != nil {
			h.s.logger.Warn("failed to save running run", "run_id", e.RunID, "error", err)
		}
	case events.TargetCompleted:
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		report := h.s.collector.Report()
		for _, t := range report.Targets {
			if t.Key != e.Key {
				continue
			}
			if err := h.s.store.SaveTestCases(ctx, report.RunID, t.Key, t.Cases); err != nil {
				h.s.logger.Warn("failed to save test cases", "run_id", report.RunID, "target", t.Key, "error", err)
			}
		}
	}
}

// record stores the run in history, sends notifications and exports
// metrics. None of these may change the outcome of the run.
func (s *session) record(report results.Report, cancelled bool) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if s.store != nil {
		run := history.RunFromReport(report, s.req.ProjectPath, s.scope, cancelled)
		if err := s.store.Record(ctx, run, report.Targets); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record run: %v\n", err)
		} else if s.cfg.RetainLastRuns > 0 {
			// Zero keeps every run
			pruned, err := s.store.Prune(ctx, s.cfg.RetainLastRuns)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to prune history: %v\n", err)
			} else if pruned > 0 {
				s.logger.Info("pruned run history", "removed", pruned)
			}
		}
	}

	if s.notifier != nil {
		summary := notify.FromReport(report, s.scope, s.req.Destination, cancelled)
		if err := s.notifier.Notify(ctx, summary); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to send notification: %v\n", err)
		}
	}

	if len(s.exporters) > 0 {
		if err := metrics.ExportAll(ctx, metrics.FromReport(report, cancelled), s.exporters...); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to export metrics: %v\n", err)
		}
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	cfg := fileConfig.Merge(flagOverrides(cmd))
	if err := cfg.Validate(); err != nil {
		return withExitCode(ExitConfigError, err)
	}

	req, err := buildRequest(cfg)
	if err != nil {
		return withExitCode(ExitRequestError, err)
	}

	// Setup output writer
	out := cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return fmt.Errorf("cannot create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	s, err := newSession(cfg, req, out)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if s.handleSignal(os.Stderr) {
				stop()
			}
		}
	}()

	code, runErr := s.runOnce(ctx)
	if watchFlag && ctx.Err() == nil {
		return watch(ctx, cmd.ErrOrStderr(), s)
	}
	if code != ExitSuccess {
		return withExitCode(code, runErr)
	}
	return nil
}
