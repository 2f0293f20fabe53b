package analysis

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"buildweaver/internal/action"
	"buildweaver/internal/artifact"
	"buildweaver/internal/buildconfig"
	"buildweaver/internal/buildinfo"
	"buildweaver/internal/event"
	"buildweaver/internal/metrics"
	"buildweaver/internal/middleman"
)

// Build holds the state shared by every session of one build.
type Build struct {
	id         string
	table      *artifact.Table
	generating *action.GeneratingMap
	middlemen  *middleman.Aggregator
	buildInfo  *buildinfo.Bridge
	metrics    *metrics.Collector
	logger     *zap.Logger
}

type buildOptions struct {
	logger        *zap.Logger
	metrics       *metrics.Collector
	buildInfoKeys []buildinfo.Key
}

// BuildOption customizes NewBuild.
type BuildOption func(*buildOptions)

func WithLogger(logger *zap.Logger) BuildOption {
	return func(o *buildOptions) { o.logger = logger }
}

// WithMetrics routes table, registry and middleman events to c.
func WithMetrics(c *metrics.Collector) BuildOption {
	return func(o *buildOptions) { o.metrics = c }
}

// WithBuildInfoKeys sets the build-info keys the build knows about.
func WithBuildInfoKeys(keys ...buildinfo.Key) BuildOption {
	return func(o *buildOptions) { o.buildInfoKeys = keys }
}

// NewBuild creates the build-global state for one build.
func NewBuild(opts ...BuildOption) (*Build, error) {
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	logger = logger.With(zap.String("build", id))

	tableOpts := []artifact.TableOption{artifact.WithLogger(logger)}
	mmOpts := []middleman.Option{middleman.WithLogger(logger)}
	var actionObserver action.Observer
	if o.metrics != nil {
		tableOpts = append(tableOpts, artifact.WithObserver(o.metrics))
		mmOpts = append(mmOpts, middleman.WithObserver(o.metrics))
		actionObserver = o.metrics
	}

	table := artifact.NewTable(tableOpts...)
	bridge, err := buildinfo.NewBridge(table, o.buildInfoKeys, logger)
	if err != nil {
		return nil, fmt.Errorf("build-info keys: %w", err)
	}

	return &Build{
		id:         id,
		table:      table,
		generating: action.NewGeneratingMap(actionObserver),
		middlemen:  middleman.NewAggregator(table, mmOpts...),
		buildInfo:  bridge,
		metrics:    o.metrics,
		logger:     logger,
	}, nil
}

// ID returns the build identifier.
func (b *Build) ID() string { return b.id }

// Table returns the artifact identity table.
func (b *Build) Table() *artifact.Table { return b.table }

// GeneratingMap returns the build-global generating-action map.
func (b *Build) GeneratingMap() *action.GeneratingMap { return b.generating }

// Middlemen returns the middleman aggregator.
func (b *Build) Middlemen() *middleman.Aggregator { return b.middlemen }

// BuildInfo returns the build-info bridge.
func (b *Build) BuildInfo() *buildinfo.Bridge { return b.buildInfo }

type sessionOptions struct {
	evalEnv EvalEnv
}

// SessionOption customizes NewSession.
type SessionOption func(*sessionOptions)

// WithEvalEnv attaches the incremental-evaluation environment the session runs
// under.
func WithEvalEnv(env EvalEnv) SessionOption {
	return func(o *sessionOptions) { o.evalEnv = env }
}

// NewSession opens the analysis session of target under cfg.
func (b *Build) NewSession(target string, cfg buildconfig.Configuration, opts ...SessionOption) (*Session, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("session target is required")
	}
	if cfg.BinRoot.IsZero() || cfg.GenfilesRoot.IsZero() {
		return nil, fmt.Errorf("session %s: configuration %q has no output roots", target, cfg.Name)
	}
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger := b.logger.With(zap.String("session", id), zap.String("target", target))
	s := &Session{
		id:       id,
		target:   target,
		cfg:      cfg,
		build:    b,
		registry: action.NewRegistry(id, b.generating, logger),
		sink:     event.NewSink(target, logger),
		evalEnv:  o.evalEnv,
		logger:   logger.With(zap.String("component", "session")),
		started:  now(),
		state:    StateActive,
		tracked:  make(map[artifact.Artifact]struct{}),
	}
	s.logger.Debug("session opened", zap.String("configuration", cfg.Name))
	return s, nil
}
