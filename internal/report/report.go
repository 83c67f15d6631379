// Package report accumulates check verdicts for one orchestrator run and
// projects them into structured, narrative, and remediation-suggestion
// exports. The entry map is insertion-ordered: re-running a check replaces
// its verdict in place, it does not append.
package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/remedyd/internal/check"
)

// Stats holds counters derived from the verdict map. They are a cache of
// the entries, never authoritative on their own.
type Stats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Warned   int     `json:"warned"`
	PassRate float64 `json:"pass_rate"`
}

// Entry pairs a check name with its latest verdict.
type Entry struct {
	Name    string        `json:"name"`
	Verdict check.Verdict `json:"verdict"`
}

// Report owns the verdicts of one orchestrator run.
type Report struct {
	mu sync.RWMutex

	runID         string
	bootstrapName string

	verdicts map[string]check.Verdict
	order    []string

	bootstrapVerified bool
	startedAt         time.Time
	finishedAt        time.Time

	transcript []string
}

// New creates an empty report for the given run. bootstrapName designates
// the single check whose pass flips the bootstrap-verified flag.
func New(runID, bootstrapName string) *Report {
	return &Report{
		runID:         runID,
		bootstrapName: bootstrapName,
		verdicts:      make(map[string]check.Verdict),
		startedAt:     time.Now(),
	}
}

// RunID returns the run identifier the report belongs to.
func (r *Report) RunID() string {
	return r.runID
}

// Add records the verdict for a check, overwriting a prior entry while
// keeping its original position in execution order.
func (r *Report) Add(name string, v check.Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.verdicts[name]; !ok {
		r.order = append(r.order, name)
	}
	r.verdicts[name] = v

	if name == r.bootstrapName {
		r.bootstrapVerified = v.Outcome == check.OutcomePass
	}

	r.transcript = append(r.transcript, fmt.Sprintf("%s %s: %s (%s)",
		v.Timestamp.Format(time.RFC3339), name, v.Outcome, v.Message))
}

// Get returns the latest verdict for a check.
func (r *Report) Get(name string) (check.Verdict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verdicts[name]
	return v, ok
}

// Entries returns all entries in execution order.
func (r *Report) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, Entry{Name: name, Verdict: r.verdicts[name]})
	}
	return entries
}

// Failures returns the failing entries in execution order. Warnings are
// not failures.
func (r *Report) Failures() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var failures []Entry
	for _, name := range r.order {
		if v := r.verdicts[name]; v.Blocking() {
			failures = append(failures, Entry{Name: name, Verdict: v})
		}
	}
	return failures
}

// HasFailures reports whether any recorded verdict is a failure.
func (r *Report) HasFailures() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.verdicts {
		if v.Blocking() {
			return true
		}
	}
	return false
}

// Stats recomputes the derived counters from the verdict map.
func (r *Report) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Total: len(r.order)}
	for _, v := range r.verdicts {
		switch v.Outcome {
		case check.OutcomePass:
			s.Passed++
		case check.OutcomeFail:
			s.Failed++
		case check.OutcomeWarning:
			s.Warned++
		}
	}
	if s.Total > 0 {
		s.PassRate = float64(s.Passed+s.Warned) / float64(s.Total)
	}
	return s
}

// BootstrapVerified reports whether the designated bootstrap check passed.
func (r *Report) BootstrapVerified() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bootstrapVerified
}

// Log appends a line to the run transcript.
func (r *Report) Log(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = append(r.transcript,
		time.Now().Format(time.RFC3339)+" "+fmt.Sprintf(format, args...))
}

// Transcript returns the ordered log lines recorded during the run.
func (r *Report) Transcript() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lines := make([]string, len(r.transcript))
	copy(lines, r.transcript)
	return lines
}

// Finish stamps the end of the run. Safe to call once; later calls keep
// the first timestamp.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finishedAt.IsZero() {
		r.finishedAt = time.Now()
	}
}

// StartedAt returns the run start time.
func (r *Report) StartedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.startedAt
}

// FinishedAt returns the run end time, zero if the run is still open.
func (r *Report) FinishedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finishedAt
}
