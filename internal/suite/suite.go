// Package suite drives an ordered list of phases, each an ordered list of
// named checks, through the runner and assembles the run's report.
package suite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/check"
	"github.com/fyrsmithlabs/remedyd/internal/report"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/suite"

// State tracks orchestrator progress through a run.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunningPhase State = "running_phase"
	StateStopped      State = "stopped"
	StateCompleted    State = "completed"
	StateFinalizing   State = "finalizing"
	StateDone         State = "done"
)

// Phase is an ordered group of checks executed as a unit.
type Phase struct {
	Name   string   `json:"name"`
	Checks []string `json:"checks"`
}

// Environment is the external test-environment lifecycle. Both calls are
// best-effort collaborators; Cleanup is invoked exactly once per run on
// every exit path.
type Environment interface {
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// NopEnvironment is an Environment that does nothing.
type NopEnvironment struct{}

func (NopEnvironment) Initialize(ctx context.Context) error { return nil }
func (NopEnvironment) Cleanup(ctx context.Context) error    { return nil }

// Progress reports a state transition during a run.
type Progress struct {
	State   State
	Phase   string
	Message string
}

// ProgressFunc receives progress updates during execution.
type ProgressFunc func(Progress)

// Options tunes a single suite run.
type Options struct {
	// StopOnFirstFailure prevents starting any later phase once the
	// report contains a failure. It does not abort an in-flight check.
	StopOnFirstFailure bool

	// OnlyChecks restricts the run to the named checks. Empty means all.
	OnlyChecks []string

	// DisableRetries gives every check a single attempt for this run.
	DisableRetries bool
}

// Orchestrator executes phases sequentially and produces the Report.
type Orchestrator struct {
	phases        []Phase
	registry      *check.Registry
	runner        *runner.Runner
	env           Environment
	logger        *zap.Logger
	bootstrapName string
	onProgress    ProgressFunc

	tracer trace.Tracer
}

// New creates a suite orchestrator. bootstrapName designates the check
// whose pass marks the report bootstrap-verified; it may be empty.
func New(phases []Phase, registry *check.Registry, r *runner.Runner, env Environment, bootstrapName string, logger *zap.Logger) (*Orchestrator, error) {
	if len(phases) == 0 {
		return nil, errors.New("at least one phase is required")
	}
	if registry == nil {
		return nil, errors.New("check registry is required")
	}
	if r == nil {
		return nil, errors.New("runner is required")
	}
	if env == nil {
		env = NopEnvironment{}
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Orchestrator{
		phases:        phases,
		registry:      registry,
		runner:        r,
		env:           env,
		logger:        logger,
		bootstrapName: bootstrapName,
		tracer:        otel.Tracer(instrumentationName),
	}, nil
}

// OnProgress sets the progress callback.
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.onProgress = fn
}

// Run executes all phases in declared order and returns the finished
// report. Checks within a phase run strictly sequentially. The report
// always renders: an initialization failure is recorded as a synthetic
// top-level verdict and the run proceeds straight to finalization.
func (o *Orchestrator) Run(ctx context.Context, opts Options) *report.Report {
	ctx, span := o.tracer.Start(ctx, "suite.run")
	defer span.End()

	rep := report.New(uuid.New().String(), o.bootstrapName)
	rep.Log("suite run %s starting", rep.RunID())
	o.report(Progress{State: StateInitializing, Message: "initializing environment"})

	// Teardown runs on every exit path, exactly once.
	defer func() {
		o.report(Progress{State: StateFinalizing, Message: "cleaning up environment"})
		if err := o.env.Cleanup(ctx); err != nil {
			o.logger.Warn("environment cleanup failed", zap.Error(err))
			rep.Log("environment cleanup failed: %v", err)
		}
		rep.Finish()
		o.report(Progress{State: StateDone})
	}()

	if err := o.env.Initialize(ctx); err != nil {
		o.logger.Error("environment initialization failed", zap.Error(err))
		rep.Add("environment", check.Fail(
			"environment initialization failed", err.Error(), "environment"))
		span.RecordError(err)
		return rep
	}

	only := make(map[string]bool, len(opts.OnlyChecks))
	for _, name := range opts.OnlyChecks {
		only[name] = true
	}

	run := o.runner
	if opts.DisableRetries {
		run = o.runner.Once()
	}

	state := StateRunningPhase
	for i, phase := range o.phases {
		if opts.StopOnFirstFailure && rep.HasFailures() {
			state = StateStopped
			rep.Log("stopping before phase %s: earlier failure", phase.Name)
			o.report(Progress{State: StateStopped, Phase: phase.Name,
				Message: "stop on first failure"})
			break
		}

		o.report(Progress{State: StateRunningPhase, Phase: phase.Name,
			Message: fmt.Sprintf("phase %d/%d", i+1, len(o.phases))})
		rep.Log("phase %s starting", phase.Name)
		o.runPhase(ctx, run, phase, only, rep)
	}
	if state != StateStopped {
		o.report(Progress{State: StateCompleted})
	}

	stats := rep.Stats()
	span.SetAttributes(
		attribute.Int("checks", stats.Total),
		attribute.Int("failed", stats.Failed),
	)
	rep.Log("suite run %s finished: %d/%d passed", rep.RunID(), stats.Passed, stats.Total)
	return rep
}

// runPhase executes one phase's checks in declared order. A check missing
// from the registry is a structural failure attributed to that check, and
// never aborts the rest of the phase.
func (o *Orchestrator) runPhase(ctx context.Context, run *runner.Runner, phase Phase, only map[string]bool, rep *report.Report) {
	for _, name := range phase.Checks {
		if len(only) > 0 && !only[name] {
			continue
		}

		fn, err := o.registry.Get(name)
		if err != nil {
			o.logger.Error("check not registered",
				zap.String("phase", phase.Name),
				zap.String("check", name),
			)
			rep.Add(name, check.Fail("check not registered", err.Error(), "registry"))
			continue
		}

		run.Run(ctx, name, fn, rep)
	}
}

// report sends a progress update if a callback is set.
func (o *Orchestrator) report(p Progress) {
	if o.onProgress != nil {
		o.onProgress(p)
	}
}
