package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/check"
)

func TestExport(t *testing.T) {
	r := New("run-42", "boot")
	r.Add("boot", check.Pass("ok"))
	r.Add("broken", check.Fail("store unreachable", "refused", "storage"))
	r.Finish()

	e := r.Export()

	assert.Equal(t, "run-42", e.RunID)
	assert.True(t, e.BootstrapVerified)
	assert.Equal(t, 2, e.Stats.Total)
	require.Len(t, e.Entries, 2)
	require.Len(t, e.Failures, 1)
	assert.Equal(t, "broken", e.Failures[0].Name)
	assert.Equal(t, "storage", e.Failures[0].SuspectedComponent)
	assert.Equal(t, check.SeverityError, e.Failures[0].Severity)
}

func TestNarrative(t *testing.T) {
	r := New("run-42", "")
	r.Log("environment ready")
	r.Add("alpha", check.Pass("ok"))
	r.Add("beta", check.Fail("broken", "refused", "storage"))
	r.Finish()

	doc := r.Narrative()

	assert.Contains(t, doc, "run-42")
	assert.Contains(t, doc, "[pass] alpha: ok")
	assert.Contains(t, doc, "[fail] beta: broken")
	assert.Contains(t, doc, "error: refused")
	assert.Contains(t, doc, "## Transcript")
	assert.Contains(t, doc, "environment ready")
}

func TestSuggestionsNoFailures(t *testing.T) {
	r := New("run-1", "")
	r.Add("a", check.Pass("ok"))

	assert.Contains(t, r.Suggestions(), "No remediation required")
}

func TestSuggestionsGroupedBySeverity(t *testing.T) {
	r := New("run-1", "")

	warning := check.Verdict{
		Outcome:  check.OutcomeFail,
		Message:  "config drift",
		Severity: check.SeverityWarning,
	}
	errVerdict := check.Fail("store down", "refused", "storage")
	errVerdict.SuggestedRemedy = "restart the store"

	r.Add("drifted", warning)
	r.Add("down", errVerdict)

	doc := r.Suggestions()

	// Error-tier entries come first regardless of insertion order.
	assert.Contains(t, doc, "## Severity: error")
	assert.Contains(t, doc, "1. down: store down")
	assert.Contains(t, doc, "remedy: restart the store")
	assert.Contains(t, doc, "## Severity: warning")
	assert.Contains(t, doc, "2. drifted: config drift")
	assert.Contains(t, doc, "remedy: manual intervention required")
	assert.Less(t, strings.Index(doc, "down"), strings.Index(doc, "drifted"))
}
