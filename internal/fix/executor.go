package fix

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/backup"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
)

const instrumentationName = "github.com/fyrsmithlabs/remedyd/internal/fix"

// Outcome reports one strategy application. AppliedActions holds only the
// prefix that actually ran, for diagnosis and partial-rollback decisions.
type Outcome struct {
	Success        bool                `json:"success"`
	AppliedActions []strategy.ActionID `json:"applied_actions"`
	BackupHandle   string              `json:"backup_handle,omitempty"`
	ErrorDetail    string              `json:"error_detail,omitempty"`
}

// Executor applies fix strategies through the action registry.
type Executor struct {
	actions *Actions
	backups *backup.Manager
	logger  *zap.Logger

	tracer     trace.Tracer
	meter      metric.Meter
	fixCounter metric.Int64Counter
}

// NewExecutor creates a fix executor.
func NewExecutor(actions *Actions, backups *backup.Manager, logger *zap.Logger) (*Executor, error) {
	if actions == nil {
		return nil, errors.New("action registry is required")
	}
	if backups == nil {
		return nil, errors.New("backup manager is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	e := &Executor{
		actions: actions,
		backups: backups,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (e *Executor) initMetrics() {
	var err error
	e.fixCounter, err = e.meter.Int64Counter(
		"remedyd.fix.applications_total",
		metric.WithDescription("Total number of fix strategy applications"),
		metric.WithUnit("{application}"),
	)
	if err != nil {
		e.logger.Warn("failed to create fix counter", zap.Error(err))
	}
}

// Apply executes the strategy's actions strictly in order, stopping at
// the first failure. When backupEnabled, a backup marker is taken first;
// backups are advisory, so a backup failure is logged but never blocks
// the fix attempt. Ledger bookkeeping is the caller's responsibility: on
// success the remediation loop records the FixOperation, on failure there
// is nothing to roll back for this check.
func (e *Executor) Apply(ctx context.Context, checkName string, strat strategy.Strategy, backupEnabled bool) Outcome {
	ctx, span := e.tracer.Start(ctx, "fix.apply",
		trace.WithAttributes(
			attribute.String("check", checkName),
			attribute.String("strategy", string(strat.Kind)),
		))
	defer span.End()

	var outcome Outcome

	if backupEnabled {
		handle, err := e.backups.Backup(ctx, checkName, strat.Kind)
		if err != nil {
			e.logger.Warn("backup failed, continuing with fix",
				zap.String("check", checkName),
				zap.Error(err),
			)
		} else {
			outcome.BackupHandle = handle
		}
	}

	for _, id := range strat.Actions {
		if err := e.actions.Run(ctx, id); err != nil {
			outcome.ErrorDetail = err.Error()
			span.RecordError(err)
			e.logger.Error("fix aborted at action",
				zap.String("check", checkName),
				zap.String("strategy", string(strat.Kind)),
				zap.String("action", string(id)),
				zap.Int("applied", len(outcome.AppliedActions)),
				zap.Error(err),
			)
			e.countApplication(ctx, strat, false)
			return outcome
		}
		outcome.AppliedActions = append(outcome.AppliedActions, id)
	}

	outcome.Success = true
	e.logger.Info("fix applied",
		zap.String("check", checkName),
		zap.String("strategy", string(strat.Kind)),
		zap.Int("actions", len(outcome.AppliedActions)),
	)
	e.countApplication(ctx, strat, true)
	return outcome
}

func (e *Executor) countApplication(ctx context.Context, strat strategy.Strategy, success bool) {
	if e.fixCounter == nil {
		return
	}
	e.fixCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", string(strat.Kind)),
		attribute.Bool("success", success),
	))
}
