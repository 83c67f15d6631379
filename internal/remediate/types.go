package remediate

import (
	"github.com/fyrsmithlabs/remedyd/internal/backup"
	"github.com/fyrsmithlabs/remedyd/internal/check"
	"github.com/fyrsmithlabs/remedyd/internal/fix"
	"github.com/fyrsmithlabs/remedyd/internal/report"
	"github.com/fyrsmithlabs/remedyd/internal/strategy"
)

// FixStatus classifies how the loop disposed of one failing check.
type FixStatus string

const (
	// FixApplied means every action of the resolved strategy succeeded.
	FixApplied FixStatus = "applied"

	// FixFailed means the strategy was attempted and an action failed.
	FixFailed FixStatus = "failed"

	// FixSkipped means no strategy matched: manual intervention required.
	// Distinct from FixFailed, which was attempted.
	FixSkipped FixStatus = "skipped"
)

// FixResult is the disposition of one failing check.
type FixResult struct {
	CheckName string             `json:"check_name"`
	Status    FixStatus          `json:"status"`
	Strategy  *strategy.Strategy `json:"strategy,omitempty"`
	Outcome   *fix.Outcome       `json:"outcome,omitempty"`
}

// FixApplicationResult aggregates the fix phase of one run.
type FixApplicationResult struct {
	Attempted int         `json:"attempted"`
	Applied   int         `json:"applied"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	Aborted   bool        `json:"aborted"` // a Critical strategy failed
	Results   []FixResult `json:"results"`
}

// AllSucceeded reports whether every attempted fix applied cleanly.
func (r FixApplicationResult) AllSucceeded() bool {
	return r.Failed == 0 && !r.Aborted
}

// ValidationEntry is one post-fix re-validation verdict.
type ValidationEntry struct {
	CheckName string        `json:"check_name"`
	Verdict   check.Verdict `json:"verdict"`
}

// FixValidationResult aggregates re-validation of the checks whose fixes
// succeeded.
type FixValidationResult struct {
	Checked int               `json:"checked"`
	Passed  int               `json:"passed"`
	Results []ValidationEntry `json:"results"`
}

// AllPassed reports whether re-validation was unanimous.
func (r FixValidationResult) AllPassed() bool {
	return r.Passed == r.Checked
}

// RunResult bundles the final report with the fix, validation, and
// rollback summaries of one remediation run. All summaries are derived
// views; the report and ledger remain the sources of truth.
type RunResult struct {
	Initial    *report.Report
	Final      *report.Report
	Fixes      *FixApplicationResult
	Validation *FixValidationResult
	Rollback   *backup.RollbackResult
}

// Remediated reports whether any fix was applied during the run.
func (r *RunResult) Remediated() bool {
	return r.Fixes != nil && r.Fixes.Applied > 0
}
