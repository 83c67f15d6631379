package fix

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/backup"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
)

func newTestExecutor(t *testing.T, overrides map[strategy.ActionID]ActionFunc) (*Executor, *backup.Manager) {
	t.Helper()

	actions, err := NewActions(fullTable(overrides), zap.NewNop())
	require.NoError(t, err)

	backups, err := backup.NewManager(nil, zap.NewNop())
	require.NoError(t, err)

	e, err := NewExecutor(actions, backups, zap.NewNop())
	require.NoError(t, err)
	return e, backups
}

func TestApplySuccessRunsAllActionsInOrder(t *testing.T) {
	var ran []strategy.ActionID
	record := func(id strategy.ActionID) ActionFunc {
		return func(ctx context.Context) error {
			ran = append(ran, id)
			return nil
		}
	}

	e, _ := newTestExecutor(t, map[strategy.ActionID]ActionFunc{
		strategy.ActionClearProbeKeys:    record(strategy.ActionClearProbeKeys),
		strategy.ActionRecreateStoreFile: record(strategy.ActionRecreateStoreFile),
	})

	outcome := e.Apply(context.Background(), "broken", strategy.StoreRepairStrategy(), false)

	assert.True(t, outcome.Success)
	assert.Equal(t, []strategy.ActionID{
		strategy.ActionClearProbeKeys,
		strategy.ActionRecreateStoreFile,
	}, ran)
	assert.Equal(t, ran, outcome.AppliedActions)
	assert.Empty(t, outcome.BackupHandle)
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	e, _ := newTestExecutor(t, map[strategy.ActionID]ActionFunc{
		strategy.ActionClearProbeKeys: func(ctx context.Context) error {
			return errors.New("listing failed")
		},
	})

	outcome := e.Apply(context.Background(), "broken", strategy.StoreRepairStrategy(), false)

	assert.False(t, outcome.Success)
	assert.Empty(t, outcome.AppliedActions, "nothing before the failing action ran")
	assert.Contains(t, outcome.ErrorDetail, "listing failed")
}

func TestApplyRecordsExecutedPrefixOnLaterFailure(t *testing.T) {
	e, _ := newTestExecutor(t, map[strategy.ActionID]ActionFunc{
		strategy.ActionRecreateStoreFile: func(ctx context.Context) error {
			return errors.New("disk full")
		},
	})

	outcome := e.Apply(context.Background(), "broken", strategy.StoreRepairStrategy(), false)

	assert.False(t, outcome.Success)
	assert.Equal(t, []strategy.ActionID{strategy.ActionClearProbeKeys}, outcome.AppliedActions)
}

func TestApplyTakesBackupWhenEnabled(t *testing.T) {
	e, backups := newTestExecutor(t, nil)

	outcome := e.Apply(context.Background(), "broken", strategy.SeedConfigStrategy(), true)

	assert.True(t, outcome.Success)
	assert.Equal(t, "broken", outcome.BackupHandle)

	rec, ok := backups.Get("broken")
	require.True(t, ok)
	assert.Equal(t, strategy.KindSeedConfig, rec.Kind)
}

func TestApplyDoesNotTouchLedger(t *testing.T) {
	e, backups := newTestExecutor(t, nil)

	e.Apply(context.Background(), "broken", strategy.SeedConfigStrategy(), true)

	assert.Empty(t, backups.Ledger(), "ledger bookkeeping belongs to the remediation loop")
}

func TestNewExecutorValidation(t *testing.T) {
	actions, err := NewActions(fullTable(nil), zap.NewNop())
	require.NoError(t, err)
	backups, err := backup.NewManager(nil, zap.NewNop())
	require.NoError(t, err)

	_, err = NewExecutor(nil, backups, zap.NewNop())
	assert.Error(t, err)
	_, err = NewExecutor(actions, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = NewExecutor(actions, backups, nil)
	assert.Error(t, err)
}
