// Package strategy maps failing checks to remediation strategies. The
// primary dispatch is an explicit check-name table; a case-insensitive
// keyword match over the verdict's suspected component and suggested
// remedy serves as a documented lower-priority disambiguator.
package strategy

import (
	"strings"

	"github.com/fyrsmithlabs/remedyd/internal/check"
)

// ActionID identifies one repair or rollback action. The set is closed:
// the action registry is built from this enum at startup, so an unmapped
// action is a wiring bug caught when the executor is constructed, not a
// runtime default branch.
type ActionID string

const (
	// ActionSeedDefaults writes the default configuration keys into the store.
	ActionSeedDefaults ActionID = "seed_defaults"

	// ActionRemoveSeeded deletes keys written by ActionSeedDefaults.
	ActionRemoveSeeded ActionID = "remove_seeded"

	// ActionRecreateStoreFile rebuilds the backing store file from scratch.
	ActionRecreateStoreFile ActionID = "recreate_store_file"

	// ActionRestoreStoreFile restores the store file recorded before recreation.
	ActionRestoreStoreFile ActionID = "restore_store_file"

	// ActionClearProbeKeys removes stale probe keys left by interrupted runs.
	ActionClearProbeKeys ActionID = "clear_probe_keys"

	// ActionTightenStorePerms resets store file permissions to owner-only.
	ActionTightenStorePerms ActionID = "tighten_store_perms"

	// ActionRelaxStorePerms restores the permissions recorded before tightening.
	ActionRelaxStorePerms ActionID = "relax_store_perms"
)

// AllActions returns every ActionID. The fix executor validates its
// registry against this list at construction time.
func AllActions() []ActionID {
	return []ActionID{
		ActionSeedDefaults,
		ActionRemoveSeeded,
		ActionRecreateStoreFile,
		ActionRestoreStoreFile,
		ActionClearProbeKeys,
		ActionTightenStorePerms,
		ActionRelaxStorePerms,
	}
}

// Kind names a remediation strategy.
type Kind string

const (
	KindSeedConfig  Kind = "seed_config"
	KindStoreRepair Kind = "store_repair"
	KindClearState  Kind = "clear_state"
	KindPermissions Kind = "permissions"
)

// Severity tiers a strategy by how invasive its actions are. A failing
// Critical strategy halts further automated remediation for the run.
type Severity string

const (
	SeveritySafe     Severity = "safe"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

// Strategy is a named, ordered remediation action list with a paired
// rollback action list. Immutable once built.
type Strategy struct {
	Kind            Kind       `json:"kind"`
	Description     string     `json:"description"`
	Severity        Severity   `json:"severity"`
	Actions         []ActionID `json:"actions"`
	RollbackActions []ActionID `json:"rollback_actions"`
}

// KeywordRule maps a lowercase substring of a verdict's suspected
// component or suggested remedy to a strategy.
type KeywordRule struct {
	Keyword  string
	Strategy Strategy
}

// Resolver performs pure, deterministic strategy lookup.
type Resolver struct {
	byName   map[string]Strategy
	keywords []KeywordRule
}

// NewResolver builds a resolver from an explicit check-name table and an
// ordered keyword fallback list.
func NewResolver(byName map[string]Strategy, keywords []KeywordRule) *Resolver {
	table := make(map[string]Strategy, len(byName))
	for name, s := range byName {
		table[name] = s
	}
	rules := make([]KeywordRule, len(keywords))
	copy(rules, keywords)
	return &Resolver{byName: table, keywords: rules}
}

// Resolve returns the strategy for a failing check, or false when no
// table entry matches. No match means manual intervention is required;
// callers must not treat it as an error.
func (r *Resolver) Resolve(checkName string, verdict check.Verdict) (Strategy, bool) {
	if s, ok := r.byName[checkName]; ok {
		return s, true
	}

	haystack := strings.ToLower(verdict.SuspectedComponent + " " + verdict.SuggestedRemedy)
	for _, rule := range r.keywords {
		if strings.Contains(haystack, strings.ToLower(rule.Keyword)) {
			return rule.Strategy, true
		}
	}

	return Strategy{}, false
}

// Default strategies for the builtin suite.

// SeedConfigStrategy seeds missing configuration keys. Safe: rollback
// deletes exactly the keys it wrote.
func SeedConfigStrategy() Strategy {
	return Strategy{
		Kind:            KindSeedConfig,
		Description:     "seed default configuration keys into the backing store",
		Severity:        SeveritySafe,
		Actions:         []ActionID{ActionSeedDefaults},
		RollbackActions: []ActionID{ActionRemoveSeeded},
	}
}

// StoreRepairStrategy rebuilds a broken store file after clearing stale
// probe keys.
func StoreRepairStrategy() Strategy {
	return Strategy{
		Kind:            KindStoreRepair,
		Description:     "clear stale probe keys and rebuild the store file",
		Severity:        SeverityModerate,
		Actions:         []ActionID{ActionClearProbeKeys, ActionRecreateStoreFile},
		RollbackActions: []ActionID{ActionRestoreStoreFile},
	}
}

// PermissionsStrategy resets store permissions. Critical: a failure here
// halts further automated remediation for the run.
func PermissionsStrategy() Strategy {
	return Strategy{
		Kind:            KindPermissions,
		Description:     "reset backing store permissions to owner-only",
		Severity:        SeverityCritical,
		Actions:         []ActionID{ActionTightenStorePerms},
		RollbackActions: []ActionID{ActionRelaxStorePerms},
	}
}

// DefaultResolver wires the builtin strategies: no exact-name entries by
// default, keyword rules matching the components the builtin checks emit.
func DefaultResolver() *Resolver {
	return NewResolver(nil, []KeywordRule{
		{Keyword: "storage/configuration", Strategy: SeedConfigStrategy()},
		{Keyword: "configuration", Strategy: SeedConfigStrategy()},
		{Keyword: "security", Strategy: PermissionsStrategy()},
		{Keyword: "storage", Strategy: StoreRepairStrategy()},
	})
}
