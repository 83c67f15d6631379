// Package fix executes remediation strategies through a closed table of
// named actions. Side effects live entirely in the action implementations;
// the executor itself never touches the backing store.
package fix

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/store"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
)

// Errors for action registry construction and dispatch.
var (
	ErrUnknownAction = errors.New("unknown action")
	ErrActionFailed  = errors.New("action failed")
)

// ActionFunc performs one repair or rollback action. A nil return is the
// success signal; any error is failure, with no richer payload than its
// log line. Implementations must tolerate a prior partial run having
// already applied some prefix.
type ActionFunc func(ctx context.Context) error

// Actions is the action registry: an ActionID-to-behavior table built at
// startup and validated for exhaustiveness against the closed enum.
type Actions struct {
	logger *zap.Logger
	table  map[strategy.ActionID]ActionFunc
}

// NewActions builds the registry. Every ActionID in the enum must have an
// implementation; a missing entry is a wiring bug surfaced here rather
// than as a runtime default branch.
func NewActions(table map[strategy.ActionID]ActionFunc, logger *zap.Logger) (*Actions, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	for _, id := range strategy.AllActions() {
		if table[id] == nil {
			return nil, fmt.Errorf("%w: no implementation for %s", ErrUnknownAction, id)
		}
	}
	copied := make(map[strategy.ActionID]ActionFunc, len(table))
	for id, fn := range table {
		copied[id] = fn
	}
	return &Actions{logger: logger, table: copied}, nil
}

// Run invokes one action. Panics in action implementations are converted
// to errors; no raw panic escapes the registry boundary.
func (a *Actions) Run(ctx context.Context, id strategy.ActionID) (err error) {
	fn, ok := a.table[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrActionFailed, id, rec)
		}
	}()

	if err := fn(ctx); err != nil {
		a.logger.Warn("action failed",
			zap.String("action", string(id)),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s: %v", ErrActionFailed, id, err)
	}

	a.logger.Debug("action applied", zap.String("action", string(id)))
	return nil
}

// defaultConfigKeys are the store keys ActionSeedDefaults writes.
var defaultConfigKeys = map[string]string{
	"remedyd.config.suite":   "default",
	"remedyd.config.version": "1",
}

// builtinState carries the inverse-action bookkeeping the builtin
// implementations need (seeded keys, pre-repair store contents, prior
// file permissions). Owned by the closures, never global.
type builtinState struct {
	mu         sync.Mutex
	seeded     []string
	savedStore map[string][]byte
	prevPerm   os.FileMode
	permSaved  bool
}

// DefaultActions wires the builtin action implementations against the
// backing store. storePath may be empty when the store is not file-backed;
// the permission actions then become no-ops.
func DefaultActions(st store.Store, storePath string, logger *zap.Logger) (*Actions, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}

	state := &builtinState{}

	table := map[strategy.ActionID]ActionFunc{
		strategy.ActionSeedDefaults: func(ctx context.Context) error {
			state.mu.Lock()
			defer state.mu.Unlock()
			state.seeded = nil
			for key, value := range defaultConfigKeys {
				if _, err := st.Get(ctx, key); err == nil {
					continue // already present, leave untouched
				}
				if err := st.Put(ctx, key, []byte(value)); err != nil {
					return fmt.Errorf("failed to seed %s: %w", key, err)
				}
				state.seeded = append(state.seeded, key)
			}
			return nil
		},

		strategy.ActionRemoveSeeded: func(ctx context.Context) error {
			state.mu.Lock()
			defer state.mu.Unlock()
			for _, key := range state.seeded {
				if err := st.Delete(ctx, key); err != nil {
					return fmt.Errorf("failed to remove %s: %w", key, err)
				}
			}
			state.seeded = nil
			return nil
		},

		strategy.ActionClearProbeKeys: func(ctx context.Context) error {
			keys, err := st.Keys(ctx)
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			for _, key := range keys {
				if strings.HasPrefix(key, "remedyd.probe.") {
					if err := st.Delete(ctx, key); err != nil {
						return fmt.Errorf("failed to delete %s: %w", key, err)
					}
				}
			}
			return nil
		},

		strategy.ActionRecreateStoreFile: func(ctx context.Context) error {
			keys, err := st.Keys(ctx)
			if err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}
			state.mu.Lock()
			state.savedStore = make(map[string][]byte, len(keys))
			state.mu.Unlock()
			for _, key := range keys {
				value, err := st.Get(ctx, key)
				if err != nil {
					continue
				}
				state.mu.Lock()
				state.savedStore[key] = value
				state.mu.Unlock()
				if err := st.Delete(ctx, key); err != nil {
					return fmt.Errorf("failed to clear %s: %w", key, err)
				}
			}
			return nil
		},

		strategy.ActionRestoreStoreFile: func(ctx context.Context) error {
			state.mu.Lock()
			saved := state.savedStore
			state.savedStore = nil
			state.mu.Unlock()
			for key, value := range saved {
				if err := st.Put(ctx, key, value); err != nil {
					return fmt.Errorf("failed to restore %s: %w", key, err)
				}
			}
			return nil
		},

		strategy.ActionTightenStorePerms: func(ctx context.Context) error {
			if storePath == "" {
				return nil
			}
			info, err := os.Stat(storePath)
			if err != nil {
				return fmt.Errorf("failed to stat store file: %w", err)
			}
			state.mu.Lock()
			state.prevPerm = info.Mode().Perm()
			state.permSaved = true
			state.mu.Unlock()
			if err := os.Chmod(storePath, 0600); err != nil {
				return fmt.Errorf("failed to chmod store file: %w", err)
			}
			return nil
		},

		strategy.ActionRelaxStorePerms: func(ctx context.Context) error {
			if storePath == "" {
				return nil
			}
			state.mu.Lock()
			perm, saved := state.prevPerm, state.permSaved
			state.permSaved = false
			state.mu.Unlock()
			if !saved {
				return nil
			}
			if err := os.Chmod(storePath, perm); err != nil {
				return fmt.Errorf("failed to restore store permissions: %w", err)
			}
			return nil
		},
	}

	return NewActions(table, logger)
}
