package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"buildweaver/internal/actiongraph"
	"buildweaver/internal/analysis"
	"buildweaver/internal/config"
	"buildweaver/internal/event"
	"buildweaver/internal/metrics"
	"buildweaver/internal/rule"
	"buildweaver/internal/telemetry"
)

// Result is the outcome of an analyze run.
type Result struct {
	ExitCode int
	Report   *Report
}

// Env carries the process-level collaborators of Execute.
type Env struct {
	Logger *zap.Logger
	// Diagnostics receives one line per reported event.
	Diagnostics io.Writer
	// TraceOutput receives spans when the stdout trace exporter is enabled.
	TraceOutput io.Writer
}

// Execute analyzes every target of the build description, applies the orphan
// policy, assembles the action graph and writes the report.
func Execute(ctx context.Context, inv Invocation, cfg config.Config, env Env) (Result, error) {
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	diag := env.Diagnostics
	if diag == nil {
		diag = io.Discard
	}

	desc, err := rule.Load(inv.BuildPath, rule.WithDefaultOutputBase(cfg.Analysis.OutputBase))
	if err != nil {
		return Result{ExitCode: ExitConfigError}, configErrorf("%v", err)
	}

	tracing, err := telemetry.NewProvider(cfg.Tracing, env.TraceOutput)
	if err != nil {
		return Result{ExitCode: ExitConfigError}, configErrorf("tracing: %v", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn("trace shutdown failed", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.Metrics.Namespace, reg, logger)

	keys := desc.Keys()
	if len(keys) == 0 {
		keys = cfg.BuildInfoKeys()
	}
	build, err := analysis.NewBuild(
		analysis.WithLogger(logger),
		analysis.WithMetrics(collector),
		analysis.WithBuildInfoKeys(keys...),
	)
	if err != nil {
		return Result{ExitCode: ExitConfigError}, configErrorf("%v", err)
	}
	logger.Info("analysis started",
		zap.String("build", build.ID()),
		zap.String("description", inv.BuildPath),
		zap.Int("targets", len(desc.Targets)),
		zap.Int("concurrency", cfg.Analysis.Concurrency))

	started := time.Now()
	snaps, err := analyzeAll(ctx, build, desc, cfg.Analysis.Concurrency, tracing.Tracer())
	if err != nil {
		return Result{ExitCode: ExitInternalError}, err
	}

	report := assemble(snaps, cfg.Analysis.Orphans)
	graph, graphErr := actiongraph.New(snaps...)
	if graphErr != nil {
		report.Events = append(report.Events, event.Event{
			Severity: event.SeverityError,
			Code:     event.CodeActionGraph,
			Message:  graphErr.Error(),
		})
		report.HasErrors = true
	} else {
		doc := graph.Document()
		report.Graph = &doc
	}
	event.Canonicalize(report.Events)

	for _, e := range report.Events {
		fmt.Fprintln(diag, e.String())
	}
	logMetrics(logger, reg)
	logger.Info("analysis finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Bool("has_errors", report.HasErrors))

	if inv.Report.Enabled {
		if err := writeReport(inv.Report, report); err != nil {
			return Result{ExitCode: ExitInternalError, Report: report}, err
		}
	}

	if report.HasErrors {
		return Result{ExitCode: ExitAnalysisFailure, Report: report}, errAnalysisFailed
	}
	return Result{ExitCode: ExitSuccess, Report: report}, nil
}

var errAnalysisFailed = &InvocationError{ExitCode: ExitAnalysisFailure, Message: "analysis reported errors"}

// analyzeAll runs one session per target, at most limit at a time. Analysis
// errors are diagnostics in the snapshots; only infrastructure failures are
// returned.
func analyzeAll(ctx context.Context, build *analysis.Build, desc *rule.Description, limit int, tracer trace.Tracer) ([]analysis.Snapshot, error) {
	labels := desc.Labels()
	snaps := make([]analysis.Snapshot, len(labels))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, label := range labels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap, err := analyzeTarget(gctx, build, desc, label, tracer)
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func analyzeTarget(ctx context.Context, build *analysis.Build, desc *rule.Description, label string, tracer trace.Tracer) (analysis.Snapshot, error) {
	_, span := tracer.Start(ctx, "analyze "+label, trace.WithAttributes(telemetry.AttrTarget.String(label)))
	defer span.End()

	target, ok := desc.Target(label)
	if !ok {
		return analysis.Snapshot{}, fmt.Errorf("target %s disappeared from description", label)
	}
	cfg, err := target.ConfigurationOf()
	if err != nil {
		return analysis.Snapshot{}, err
	}
	session, err := build.NewSession(label, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return analysis.Snapshot{}, err
	}
	span.SetAttributes(
		telemetry.AttrConfiguration.String(cfg.Name),
		telemetry.AttrSession.String(session.ID()),
	)

	// Rule errors are already in the session's sink.
	_ = target.Analyze(session)

	snap, err := session.Finish()
	if err != nil {
		return analysis.Snapshot{}, err
	}
	span.SetAttributes(
		telemetry.AttrActions.Int(len(snap.Actions)),
		telemetry.AttrOrphans.Int(len(snap.Orphans)),
	)
	if snap.HasErrors {
		span.SetStatus(codes.Error, "analysis reported errors")
	}
	return snap, nil
}

// assemble builds the report body from finished sessions and applies the
// orphan policy.
func assemble(snaps []analysis.Snapshot, policy config.OrphanPolicy) *Report {
	r := &Report{
		Version: ReportVersion,
		Targets: make([]TargetReport, 0, len(snaps)),
		Events:  []event.Event{},
	}
	for _, s := range snaps {
		tr := TargetReport{
			Label:         s.Target,
			Configuration: s.Configuration,
			Actions:       make([]string, 0, len(s.Actions)),
			HasErrors:     s.HasErrors,
		}
		for _, a := range s.Actions {
			tr.Actions = append(tr.Actions, a.ID())
		}
		for _, o := range s.Orphans {
			tr.Orphans = append(tr.Orphans, o.ExecPath())
		}
		r.Events = append(r.Events, s.Events...)

		if severity, report := orphanSeverity(policy); report {
			for _, o := range s.Orphans {
				r.Events = append(r.Events, event.Event{
					Severity:  severity,
					Code:      event.CodeOrphanArtifact,
					Target:    s.Target,
					Message:   fmt.Sprintf("%s is declared but no action generates it", o.ExecPath()),
					Artifacts: []string{o.ExecPath()},
				})
			}
			if severity == event.SeverityError && len(s.Orphans) > 0 {
				tr.HasErrors = true
			}
		}
		if tr.HasErrors {
			r.HasErrors = true
		}
		r.Targets = append(r.Targets, tr)
	}
	return r
}

func orphanSeverity(policy config.OrphanPolicy) (event.Severity, bool) {
	switch policy {
	case config.OrphansError:
		return event.SeverityError, true
	case config.OrphansWarn:
		return event.SeverityWarning, true
	default:
		return 0, false
	}
}

// logMetrics writes the counter totals of reg to the log.
func logMetrics(logger *zap.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gathering metrics failed", zap.Error(err))
		return
	}
	fields := make([]zap.Field, 0, len(families))
	for _, f := range families {
		var total float64
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
		fields = append(fields, zap.Float64(f.GetName(), total))
	}
	logger.Info("analysis metrics", fields...)
}
