package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/check"
)

// Export is the structured key/value projection of a finished report,
// suitable for programmatic consumption and JSON encoding.
type Export struct {
	RunID             string           `json:"run_id"`
	StartedAt         time.Time        `json:"started_at"`
	FinishedAt        time.Time        `json:"finished_at"`
	BootstrapVerified bool             `json:"bootstrap_verified"`
	Stats             Stats            `json:"stats"`
	Entries           []Entry          `json:"entries"`
	Failures          []FailureSummary `json:"failures,omitempty"`
}

// FailureSummary is one failing check with its remedy hints.
type FailureSummary struct {
	Name               string         `json:"name"`
	Message            string         `json:"message"`
	ErrorDetail        string         `json:"error_detail,omitempty"`
	SuspectedComponent string         `json:"suspected_component,omitempty"`
	SuggestedRemedy    string         `json:"suggested_remedy,omitempty"`
	Severity           check.Severity `json:"severity"`
}

// Export builds the structured projection. It carries no information the
// report does not already contain.
func (r *Report) Export() Export {
	e := Export{
		RunID:             r.RunID(),
		StartedAt:         r.StartedAt(),
		FinishedAt:        r.FinishedAt(),
		BootstrapVerified: r.BootstrapVerified(),
		Stats:             r.Stats(),
		Entries:           r.Entries(),
	}
	for _, f := range r.Failures() {
		e.Failures = append(e.Failures, FailureSummary{
			Name:               f.Name,
			Message:            f.Verdict.Message,
			ErrorDetail:        f.Verdict.ErrorDetail,
			SuspectedComponent: f.Verdict.SuspectedComponent,
			SuggestedRemedy:    f.Verdict.SuggestedRemedy,
			Severity:           f.Verdict.Severity,
		})
	}
	return e
}

// Narrative renders the execution-log document: the structured summary
// followed by the literal ordered transcript of log lines.
func (r *Report) Narrative() string {
	var sb strings.Builder
	stats := r.Stats()

	sb.WriteString(fmt.Sprintf("# Validation Run %s\n\n", r.RunID()))
	sb.WriteString(fmt.Sprintf("Started:  %s\n", r.StartedAt().Format(time.RFC3339)))
	if !r.FinishedAt().IsZero() {
		sb.WriteString(fmt.Sprintf("Finished: %s\n", r.FinishedAt().Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("Checks: %d total, %d passed, %d failed, %d warned (pass rate %.0f%%)\n",
		stats.Total, stats.Passed, stats.Failed, stats.Warned, stats.PassRate*100))
	sb.WriteString(fmt.Sprintf("Bootstrap verified: %t\n\n", r.BootstrapVerified()))

	sb.WriteString("## Results\n\n")
	for _, e := range r.Entries() {
		sb.WriteString(fmt.Sprintf("- [%s] %s: %s\n", e.Verdict.Outcome, e.Name, e.Verdict.Message))
		if e.Verdict.ErrorDetail != "" {
			sb.WriteString(fmt.Sprintf("  error: %s\n", e.Verdict.ErrorDetail))
		}
	}

	sb.WriteString("\n## Transcript\n\n")
	for _, line := range r.Transcript() {
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}

// severityOrder lists tiers from most to least urgent for the
// suggestions document.
var severityOrder = []check.Severity{
	check.SeverityError,
	check.SeverityWarning,
	check.SeverityInfo,
}

// Suggestions renders the prioritized remediation-suggestions document,
// grouping unresolved failures by severity tier.
func (r *Report) Suggestions() string {
	failures := r.Failures()
	if len(failures) == 0 {
		return "No unresolved failures. No remediation required.\n"
	}

	grouped := make(map[check.Severity][]Entry)
	for _, f := range failures {
		grouped[f.Verdict.Severity] = append(grouped[f.Verdict.Severity], f)
	}

	var sb strings.Builder
	sb.WriteString("# Remediation Suggestions\n")

	priority := 1
	for _, sev := range severityOrder {
		entries := grouped[sev]
		if len(entries) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n## Severity: %s\n\n", sev))
		for _, e := range entries {
			sb.WriteString(fmt.Sprintf("%d. %s: %s\n", priority, e.Name, e.Verdict.Message))
			if e.Verdict.SuspectedComponent != "" {
				sb.WriteString(fmt.Sprintf("   component: %s\n", e.Verdict.SuspectedComponent))
			}
			if e.Verdict.SuggestedRemedy != "" {
				sb.WriteString(fmt.Sprintf("   remedy: %s\n", e.Verdict.SuggestedRemedy))
			} else {
				sb.WriteString("   remedy: manual intervention required\n")
			}
			priority++
		}
	}

	return sb.String()
}
