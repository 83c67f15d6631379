// Package backup keeps the pre-fix backup markers and the ledger of
// applied fix operations, and replays rollback actions on demand.
//
// A backup record is a marker (strategy kind + timestamp), not a full
// state snapshot: rollback is replay of each strategy's authored inverse
// actions, not a generic undo. Callers that hold real pre-fix state can
// stash it in the record payload, but the manager never interprets it.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/store"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
)

// backupKeyPrefix namespaces backup markers in the backing store.
const backupKeyPrefix = "remedyd.backup."

// ledgerKey holds the persisted fix ledger in the backing store.
const ledgerKey = "remedyd.ledger"

// Actions invokes a single remediation or rollback action. Satisfied by
// the fix executor's action registry.
type Actions interface {
	Run(ctx context.Context, id strategy.ActionID) error
}

// Record is the lightweight snapshot stored before a fix mutates state.
// At most one live record exists per check name; a second backup for the
// same check overwrites the first.
type Record struct {
	Handle    string        `json:"handle"`
	Kind      strategy.Kind `json:"kind"`
	CreatedAt time.Time     `json:"created_at"`
	Payload   string        `json:"payload,omitempty"`
}

// FixOperation is a ledger entry created only after every action of a
// strategy succeeded.
type FixOperation struct {
	CheckName    string            `json:"check_name"`
	Strategy     strategy.Strategy `json:"strategy"`
	AppliedAt    time.Time         `json:"applied_at"`
	BackupHandle string            `json:"backup_handle,omitempty"`
}

// EntryResult is the rollback outcome for one ledger entry.
type EntryResult struct {
	CheckName string `json:"check_name"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// RollbackResult aggregates one rollbackAll pass over the ledger.
type RollbackResult struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Entries   []EntryResult `json:"entries"`
}

// AllSucceeded reports whether every attempted rollback succeeded.
func (r RollbackResult) AllSucceeded() bool {
	return r.Failed == 0
}

// Manager owns the backup records and the fix ledger for one service.
type Manager struct {
	mu      sync.Mutex
	logger  *zap.Logger
	store   store.Store // optional; markers are persisted best-effort
	records map[string]Record
	ledger  []FixOperation
}

// NewManager creates a backup manager. st may be nil; markers and ledger
// are then kept in memory only. With a store, the ledger persists across
// processes so out-of-band rollback can find earlier fixes.
func NewManager(st store.Store, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	m := &Manager{
		logger:  logger,
		store:   st,
		records: make(map[string]Record),
	}
	m.loadLedger(context.Background())
	return m, nil
}

// loadLedger restores a persisted ledger, best-effort.
func (m *Manager) loadLedger(ctx context.Context) {
	if m.store == nil {
		return
	}
	raw, err := m.store.Get(ctx, ledgerKey)
	if err != nil {
		return
	}
	var ledger []FixOperation
	if err := json.Unmarshal(raw, &ledger); err != nil {
		m.logger.Warn("persisted ledger corrupted, ignoring", zap.Error(err))
		return
	}
	m.mu.Lock()
	m.ledger = ledger
	m.mu.Unlock()
}

// persistLedger writes the current ledger to the store, best-effort.
func (m *Manager) persistLedger(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	ledger := make([]FixOperation, len(m.ledger))
	copy(ledger, m.ledger)
	m.mu.Unlock()

	var err error
	if len(ledger) == 0 {
		err = m.store.Delete(ctx, ledgerKey)
	} else {
		var raw []byte
		raw, err = json.Marshal(ledger)
		if err == nil {
			err = m.store.Put(ctx, ledgerKey, raw)
		}
	}
	if err != nil {
		m.logger.Warn("failed to persist ledger", zap.Error(err))
	}
}

// Backup stores a marker record for checkName and returns its handle
// (the check name). Persisting the marker to the backing store is
// best-effort: a store failure is logged, the in-memory record stands.
func (m *Manager) Backup(ctx context.Context, checkName string, kind strategy.Kind) (string, error) {
	if checkName == "" {
		return "", errors.New("check name cannot be empty")
	}

	rec := Record{
		Handle:    checkName,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.records[checkName] = rec
	m.mu.Unlock()

	if m.store != nil {
		raw, err := json.Marshal(rec)
		if err == nil {
			err = m.store.Put(ctx, backupKeyPrefix+checkName, raw)
		}
		if err != nil {
			m.logger.Warn("failed to persist backup marker",
				zap.String("check", checkName),
				zap.Error(err),
			)
		}
	}

	return rec.Handle, nil
}

// Get returns the live backup record for a check name.
func (m *Manager) Get(checkName string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[checkName]
	return rec, ok
}

// Append records a successfully applied fix in the ledger.
func (m *Manager) Append(op FixOperation) {
	m.mu.Lock()
	m.ledger = append(m.ledger, op)
	m.mu.Unlock()
	m.persistLedger(context.Background())
}

// Ledger returns a copy of the ledger in application order.
func (m *Manager) Ledger() []FixOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FixOperation, len(m.ledger))
	copy(out, m.ledger)
	return out
}

// RollbackAll replays the rollback action list of every recorded fix
// operation, most recently applied first. A failing rollback action for
// one operation marks that entry failed and processing continues to the
// next; rollback is never aborted by a single failure. The ledger and
// all backup records are cleared unconditionally afterwards so a fresh
// run starts clean.
func (m *Manager) RollbackAll(ctx context.Context, actions Actions) RollbackResult {
	m.mu.Lock()
	ledger := m.ledger
	m.ledger = nil
	m.mu.Unlock()

	var result RollbackResult

	for i := len(ledger) - 1; i >= 0; i-- {
		op := ledger[i]
		result.Attempted++

		entry := EntryResult{CheckName: op.CheckName, Succeeded: true}
		for _, id := range op.Strategy.RollbackActions {
			if err := actions.Run(ctx, id); err != nil {
				entry.Succeeded = false
				entry.Error = err.Error()
				m.logger.Error("rollback action failed",
					zap.String("check", op.CheckName),
					zap.String("action", string(id)),
					zap.Error(err),
				)
				break
			}
		}

		if entry.Succeeded {
			result.Succeeded++
			m.logger.Info("rolled back fix",
				zap.String("check", op.CheckName),
				zap.String("strategy", string(op.Strategy.Kind)),
			)
		} else {
			result.Failed++
		}
		result.Entries = append(result.Entries, entry)
	}

	m.clearRecords(ctx)
	m.persistLedger(ctx)
	return result
}

// Reset clears the ledger and all backup records. Called at the start of
// each orchestrator run.
func (m *Manager) Reset(ctx context.Context) {
	m.mu.Lock()
	m.ledger = nil
	m.mu.Unlock()
	m.clearRecords(ctx)
	m.persistLedger(ctx)
}

// clearRecords drops every backup record, in memory and in the store.
func (m *Manager) clearRecords(ctx context.Context) {
	m.mu.Lock()
	handles := make([]string, 0, len(m.records))
	for h := range m.records {
		handles = append(handles, h)
	}
	m.records = make(map[string]Record)
	m.mu.Unlock()

	if m.store == nil {
		return
	}
	for _, h := range handles {
		if err := m.store.Delete(ctx, backupKeyPrefix+h); err != nil {
			m.logger.Warn("failed to remove backup marker",
				zap.String("check", h),
				zap.Error(err),
			)
		}
	}
}
