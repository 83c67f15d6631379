package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/remedyd/internal/check"
)

func TestReportEntriesPreserveExecutionOrder(t *testing.T) {
	r := New("run-1", "")
	r.Add("first", check.Pass("ok"))
	r.Add("second", check.Fail("broken", "detail", "storage"))
	r.Add("third", check.Warn("slow", "tune it"))

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Name)
	assert.Equal(t, "second", entries[1].Name)
	assert.Equal(t, "third", entries[2].Name)
}

func TestReportAddOverwritesInPlace(t *testing.T) {
	r := New("run-1", "")
	r.Add("a", check.Pass("ok"))
	r.Add("b", check.Fail("broken", "", "storage"))
	r.Add("c", check.Pass("ok"))

	// Re-run of b replaces its verdict without moving it.
	r.Add("b", check.Pass("fixed"))

	entries := r.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[1].Name)
	assert.Equal(t, check.OutcomePass, entries[1].Verdict.Outcome)
	assert.Equal(t, "fixed", entries[1].Verdict.Message)
	assert.False(t, r.HasFailures())
}

func TestReportStatsRecomputed(t *testing.T) {
	r := New("run-1", "")
	r.Add("a", check.Pass("ok"))
	r.Add("b", check.Fail("broken", "", "storage"))
	r.Add("c", check.Warn("slow", ""))

	stats := r.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Warned)
	assert.InDelta(t, 2.0/3.0, stats.PassRate, 1e-9)

	// A re-run flips the counters with it.
	r.Add("b", check.Pass("fixed"))
	stats = r.Stats()
	assert.Equal(t, 2, stats.Passed)
	assert.Equal(t, 0, stats.Failed)
	assert.InDelta(t, 1.0, stats.PassRate, 1e-9)
}

func TestReportStatsEmpty(t *testing.T) {
	r := New("run-1", "")
	stats := r.Stats()
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.PassRate)
}

func TestReportFailuresExcludeWarnings(t *testing.T) {
	r := New("run-1", "")
	r.Add("a", check.Warn("slow", ""))
	r.Add("b", check.Fail("broken", "", "storage"))

	failures := r.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "b", failures[0].Name)
	assert.True(t, r.HasFailures())
}

func TestReportBootstrapVerified(t *testing.T) {
	r := New("run-1", "store-roundtrip")
	assert.False(t, r.BootstrapVerified())

	r.Add("store-roundtrip", check.Fail("broken", "", "storage"))
	assert.False(t, r.BootstrapVerified())

	r.Add("store-roundtrip", check.Pass("ok"))
	assert.True(t, r.BootstrapVerified())

	// Another check passing does not flip the flag.
	r2 := New("run-2", "store-roundtrip")
	r2.Add("other", check.Pass("ok"))
	assert.False(t, r2.BootstrapVerified())
}

func TestReportTranscript(t *testing.T) {
	r := New("run-1", "")
	r.Log("suite starting")
	r.Add("a", check.Pass("ok"))
	r.Log("suite finished")

	lines := r.Transcript()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "suite starting")
	assert.Contains(t, lines[1], "a: pass")
	assert.Contains(t, lines[2], "suite finished")
}

func TestReportFinishIdempotent(t *testing.T) {
	r := New("run-1", "")
	assert.True(t, r.FinishedAt().IsZero())

	r.Finish()
	first := r.FinishedAt()
	require.False(t, first.IsZero())

	r.Finish()
	assert.Equal(t, first, r.FinishedAt())
}
