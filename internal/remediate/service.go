// Package remediate implements the top-level validation and
// self-remediation loop: run the suite, resolve and apply fixes for
// failures, re-validate, roll back when re-validation is not unanimous,
// and re-run the suite for the final report.
package remediate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/backup"
	"github.com/fyrsmithlabs/remedyd/internal/check"
	"github.com/fyrsmithlabs/remedyd/internal/fix"
	"github.com/fyrsmithlabs/remedyd/internal/report"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
	"github.com/fyrsmithlabs/remedyd/internal/suite"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/remediate"

// Config controls the remediation half of a run.
type Config struct {
	// Enabled turns automated remediation on. When false the service
	// only validates and reports.
	Enabled bool

	// DryRun resolves strategies for failures but executes nothing.
	DryRun bool

	// BackupEnabled takes a backup marker before each fix.
	BackupEnabled bool

	// RollbackEnabled allows the loop to roll back applied fixes when
	// re-validation is not unanimous.
	RollbackEnabled bool

	// RollbackOnAnyFailure additionally triggers rollback when checks
	// that were never fixed (unmapped or pre-existing failures) remain
	// failing. Off by default: an unrelated failure does not undo
	// unrelated successful fixes.
	RollbackOnAnyFailure bool
}

// Options tunes one RunSuite invocation.
type Options struct {
	// EnableRetries keeps the runner's retry loop active. When false,
	// every check gets a single attempt.
	EnableRetries bool

	// StopOnFirstFailure stops starting new phases once a failure is
	// recorded.
	StopOnFirstFailure bool

	// OnlyChecks restricts the run to the named checks. Empty means all.
	OnlyChecks []string
}

// Service is the remediation loop entry point.
//
// Fixes apply in the report's failure insertion order. Critical-severity
// failures are not reordered to the front; a caller wanting partial-fix
// safety must order its phases accordingly.
type Service struct {
	orchestrator *suite.Orchestrator
	registry     *check.Registry
	runner       *runner.Runner
	resolver     *strategy.Resolver
	executor     *fix.Executor
	actions      *fix.Actions
	backups      *backup.Manager
	config       Config
	logger       *zap.Logger

	tracer     trace.Tracer
	meter      metric.Meter
	runCounter metric.Int64Counter
}

// NewService creates the remediation service.
func NewService(orch *suite.Orchestrator, registry *check.Registry, r *runner.Runner, resolver *strategy.Resolver, executor *fix.Executor, actions *fix.Actions, backups *backup.Manager, cfg Config, logger *zap.Logger) (*Service, error) {
	if orch == nil {
		return nil, errors.New("suite orchestrator is required")
	}
	if registry == nil {
		return nil, errors.New("check registry is required")
	}
	if r == nil {
		return nil, errors.New("runner is required")
	}
	if resolver == nil {
		return nil, errors.New("strategy resolver is required")
	}
	if executor == nil {
		return nil, errors.New("fix executor is required")
	}
	if actions == nil {
		return nil, errors.New("action registry is required")
	}
	if backups == nil {
		return nil, errors.New("backup manager is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	s := &Service{
		orchestrator: orch,
		registry:     registry,
		runner:       r,
		resolver:     resolver,
		executor:     executor,
		actions:      actions,
		backups:      backups,
		config:       cfg,
		logger:       logger,
		tracer:       otel.Tracer(instrumentationName),
		meter:        otel.Meter(instrumentationName),
	}
	s.initMetrics()
	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *Service) initMetrics() {
	var err error
	s.runCounter, err = s.meter.Int64Counter(
		"remedyd.remediate.runs_total",
		metric.WithDescription("Total number of remediation runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		s.logger.Warn("failed to create run counter", zap.Error(err))
	}
}

// RunSuite runs the full validation and remediation sequence and returns
// the final report bundle. The final report always renders, whatever
// failed along the way.
func (s *Service) RunSuite(ctx context.Context, opts Options) *RunResult {
	ctx, span := s.tracer.Start(ctx, "remediate.run_suite")
	defer span.End()

	// A fresh run starts with a clean ledger.
	s.backups.Reset(ctx)

	suiteOpts := suite.Options{
		StopOnFirstFailure: opts.StopOnFirstFailure,
		OnlyChecks:         opts.OnlyChecks,
		DisableRetries:     !opts.EnableRetries,
	}

	initial := s.orchestrator.Run(ctx, suiteOpts)
	result := &RunResult{Initial: initial, Final: initial}

	if !initial.HasFailures() {
		s.logger.Info("suite passed, no remediation needed",
			zap.String("run_id", initial.RunID()))
		s.countRun(ctx, "clean")
		return result
	}

	if !s.config.Enabled {
		s.logger.Info("failures present but remediation disabled",
			zap.String("run_id", initial.RunID()),
			zap.Int("failures", initial.Stats().Failed),
		)
		s.countRun(ctx, "remediation_disabled")
		return result
	}

	result.Fixes = s.applyFixes(ctx, initial)

	if result.Fixes.Applied > 0 && !s.config.DryRun {
		run := s.runner
		if !opts.EnableRetries {
			run = s.runner.Once()
		}
		result.Validation = s.revalidate(ctx, run, result.Fixes)

		rollbackNeeded := !result.Validation.AllPassed()
		if s.config.RollbackOnAnyFailure &&
			(!result.Fixes.AllSucceeded() || result.Fixes.Skipped > 0) {
			// The strict policy also counts failures no fix could address.
			rollbackNeeded = true
		}
		if rollbackNeeded && s.config.RollbackEnabled {
			initial.Log("re-validation not unanimous, rolling back %d fixes",
				len(s.backups.Ledger()))
			rollback := s.backups.RollbackAll(ctx, s.actions)
			result.Rollback = &rollback
		}
	}

	// Final full suite pass for the exported report.
	result.Final = s.orchestrator.Run(ctx, suiteOpts)

	s.countRun(ctx, "remediated")
	s.logger.Info("remediation run finished",
		zap.String("initial_run", initial.RunID()),
		zap.String("final_run", result.Final.RunID()),
		zap.Int("fixes_applied", result.Fixes.Applied),
		zap.Int("final_failures", result.Final.Stats().Failed),
	)
	return result
}

// applyFixes resolves and applies a strategy for each failing entry, in
// report insertion order. An unmapped failure is Skipped, never an error.
// A Critical strategy that fails aborts the remaining fix attempts for
// this run; fixes already applied stay applied.
func (s *Service) applyFixes(ctx context.Context, rep *report.Report) *FixApplicationResult {
	ctx, span := s.tracer.Start(ctx, "remediate.apply_fixes")
	defer span.End()

	result := &FixApplicationResult{}

	for _, failure := range rep.Failures() {
		strat, ok := s.resolver.Resolve(failure.Name, failure.Verdict)
		if !ok {
			result.Skipped++
			result.Results = append(result.Results, FixResult{
				CheckName: failure.Name,
				Status:    FixSkipped,
			})
			rep.Log("no strategy for %s: manual intervention required", failure.Name)
			s.logger.Info("no strategy matched",
				zap.String("check", failure.Name),
				zap.String("component", failure.Verdict.SuspectedComponent),
			)
			continue
		}

		if s.config.DryRun {
			result.Skipped++
			result.Results = append(result.Results, FixResult{
				CheckName: failure.Name,
				Status:    FixSkipped,
				Strategy:  &strat,
			})
			rep.Log("dry run: would apply %s to %s", strat.Kind, failure.Name)
			continue
		}

		result.Attempted++
		outcome := s.executor.Apply(ctx, failure.Name, strat, s.config.BackupEnabled)

		fr := FixResult{
			CheckName: failure.Name,
			Strategy:  &strat,
			Outcome:   &outcome,
		}

		if outcome.Success {
			result.Applied++
			fr.Status = FixApplied
			s.backups.Append(backup.FixOperation{
				CheckName:    failure.Name,
				Strategy:     strat,
				AppliedAt:    time.Now(),
				BackupHandle: outcome.BackupHandle,
			})
			rep.Log("applied %s to %s (%d actions)",
				strat.Kind, failure.Name, len(outcome.AppliedActions))
		} else {
			result.Failed++
			fr.Status = FixFailed
			rep.Log("fix %s for %s failed: %s", strat.Kind, failure.Name, outcome.ErrorDetail)
		}
		result.Results = append(result.Results, fr)

		if !outcome.Success && strat.Severity == strategy.SeverityCritical {
			result.Aborted = true
			rep.Log("critical strategy %s failed, halting remediation", strat.Kind)
			s.logger.Error("critical fix failed, aborting remaining fixes",
				zap.String("check", failure.Name),
				zap.String("strategy", string(strat.Kind)),
			)
			break
		}
	}

	span.SetAttributes(
		attribute.Int("applied", result.Applied),
		attribute.Int("failed", result.Failed),
		attribute.Int("skipped", result.Skipped),
	)
	return result
}

// revalidate re-runs every check whose fix succeeded, through the runner
// so timeout and retry semantics still hold. Verdicts land in a scratch
// report; the final suite pass produces the exported one.
func (s *Service) revalidate(ctx context.Context, run *runner.Runner, fixes *FixApplicationResult) *FixValidationResult {
	ctx, span := s.tracer.Start(ctx, "remediate.revalidate")
	defer span.End()

	scratch := report.New(uuid.New().String(), "")
	result := &FixValidationResult{}

	for _, fr := range fixes.Results {
		if fr.Status != FixApplied {
			continue
		}

		fn, err := s.registry.Get(fr.CheckName)
		if err != nil {
			// A fixed check that vanished from the registry cannot be
			// verified; count it as not passed.
			result.Checked++
			result.Results = append(result.Results, ValidationEntry{
				CheckName: fr.CheckName,
				Verdict:   check.Fail("check not registered", err.Error(), "registry"),
			})
			continue
		}

		verdict := run.Run(ctx, fr.CheckName, fn, scratch)
		result.Checked++
		if verdict.Outcome == check.OutcomePass {
			result.Passed++
		}
		result.Results = append(result.Results, ValidationEntry{
			CheckName: fr.CheckName,
			Verdict:   verdict,
		})
	}

	span.SetAttributes(
		attribute.Int("checked", result.Checked),
		attribute.Int("passed", result.Passed),
	)
	return result
}

// RollbackAll is the out-of-band emergency reversal entry point. It
// replays the rollback actions of every ledgered fix, most recent first,
// and clears the ledger regardless of individual failures.
func (s *Service) RollbackAll(ctx context.Context) backup.RollbackResult {
	ctx, span := s.tracer.Start(ctx, "remediate.rollback_all")
	defer span.End()

	result := s.backups.RollbackAll(ctx, s.actions)
	span.SetAttributes(
		attribute.Int("attempted", result.Attempted),
		attribute.Int("failed", result.Failed),
	)
	if !result.AllSucceeded() {
		s.logger.Error("rollback completed with failures",
			zap.Int("attempted", result.Attempted),
			zap.Int("failed", result.Failed),
		)
	}
	return result
}

func (s *Service) countRun(ctx context.Context, outcome string) {
	if s.runCounter == nil {
		return
	}
	s.runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
