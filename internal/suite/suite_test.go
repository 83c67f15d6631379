package suite

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/remedyd/internal/check"
	"github.com/fyrsmithlabs/remedyd/internal/runner"
)

// countingEnv tracks lifecycle calls and fails initialization on demand.
type countingEnv struct {
	initCalls    atomic.Int32
	cleanupCalls atomic.Int32
	initErr      error
}

func (e *countingEnv) Initialize(ctx context.Context) error {
	e.initCalls.Add(1)
	return e.initErr
}

func (e *countingEnv) Cleanup(ctx context.Context) error {
	e.cleanupCalls.Add(1)
	return nil
}

func newTestRunner(t *testing.T) *runner.Runner {
	t.Helper()
	r, err := runner.New(&runner.Config{
		Timeout:    time.Second,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)
	return r
}

func staticCheck(v check.Verdict, calls *atomic.Int32) check.Func {
	return func(ctx context.Context) check.Verdict {
		if calls != nil {
			calls.Add(1)
		}
		return v
	}
}

func newOrchestrator(t *testing.T, phases []Phase, registry *check.Registry, env Environment, bootstrap string) *Orchestrator {
	t.Helper()
	o, err := New(phases, registry, newTestRunner(t), env, bootstrap, zap.NewNop())
	require.NoError(t, err)
	return o
}

func TestRunExecutesPhasesInOrder(t *testing.T) {
	registry := check.NewRegistry()
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		require.NoError(t, registry.Register(name, func(ctx context.Context) check.Verdict {
			order = append(order, name)
			return check.Pass("ok")
		}))
	}

	o := newOrchestrator(t, []Phase{
		{Name: "one", Checks: []string{"a", "b"}},
		{Name: "two", Checks: []string{"c"}},
	}, registry, nil, "a")

	rep := o.Run(context.Background(), Options{})

	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 3, rep.Stats().Total)
	assert.True(t, rep.BootstrapVerified())
	assert.False(t, rep.FinishedAt().IsZero())
}

func TestRunStopOnFirstFailureSkipsLaterPhases(t *testing.T) {
	registry := check.NewRegistry()
	var laterCalls atomic.Int32
	require.NoError(t, registry.Register("failing",
		staticCheck(check.Fail("broken", "", "storage"), nil)))
	require.NoError(t, registry.Register("later",
		staticCheck(check.Pass("ok"), &laterCalls)))

	o := newOrchestrator(t, []Phase{
		{Name: "one", Checks: []string{"failing"}},
		{Name: "two", Checks: []string{"later"}},
	}, registry, nil, "")

	rep := o.Run(context.Background(), Options{StopOnFirstFailure: true})

	assert.Equal(t, int32(0), laterCalls.Load(), "later phase must not start")
	assert.Equal(t, 1, rep.Stats().Total)
	assert.True(t, rep.HasFailures())
}

func TestRunFailureDoesNotStopCurrentPhase(t *testing.T) {
	registry := check.NewRegistry()
	var siblingCalls atomic.Int32
	require.NoError(t, registry.Register("failing",
		staticCheck(check.Fail("broken", "", "storage"), nil)))
	require.NoError(t, registry.Register("sibling",
		staticCheck(check.Pass("ok"), &siblingCalls)))

	o := newOrchestrator(t, []Phase{
		{Name: "one", Checks: []string{"failing", "sibling"}},
	}, registry, nil, "")

	o.Run(context.Background(), Options{StopOnFirstFailure: true})

	assert.Equal(t, int32(1), siblingCalls.Load(),
		"stop applies at phase boundaries, not within a phase")
}

func TestRunCleanupExactlyOnce(t *testing.T) {
	registry := check.NewRegistry()
	require.NoError(t, registry.Register("a", staticCheck(check.Pass("ok"), nil)))

	env := &countingEnv{}
	o := newOrchestrator(t, []Phase{{Name: "one", Checks: []string{"a"}}}, registry, env, "")

	o.Run(context.Background(), Options{})

	assert.Equal(t, int32(1), env.initCalls.Load())
	assert.Equal(t, int32(1), env.cleanupCalls.Load())
}

func TestRunInitFailureStillProducesReportAndCleansUp(t *testing.T) {
	registry := check.NewRegistry()
	var calls atomic.Int32
	require.NoError(t, registry.Register("a", staticCheck(check.Pass("ok"), &calls)))

	env := &countingEnv{initErr: errors.New("no docker")}
	o := newOrchestrator(t, []Phase{{Name: "one", Checks: []string{"a"}}}, registry, env, "")

	rep := o.Run(context.Background(), Options{})

	assert.Equal(t, int32(0), calls.Load(), "no check runs after init failure")
	assert.Equal(t, int32(1), env.cleanupCalls.Load())
	assert.False(t, rep.FinishedAt().IsZero())

	v, ok := rep.Get("environment")
	require.True(t, ok)
	assert.Equal(t, check.OutcomeFail, v.Outcome)
	assert.Equal(t, "environment", v.SuspectedComponent)
}

func TestRunOnlyChecksFilter(t *testing.T) {
	registry := check.NewRegistry()
	var aCalls, bCalls atomic.Int32
	require.NoError(t, registry.Register("a", staticCheck(check.Pass("ok"), &aCalls)))
	require.NoError(t, registry.Register("b", staticCheck(check.Pass("ok"), &bCalls)))

	o := newOrchestrator(t, []Phase{
		{Name: "one", Checks: []string{"a", "b"}},
	}, registry, nil, "")

	rep := o.Run(context.Background(), Options{OnlyChecks: []string{"b"}})

	assert.Equal(t, int32(0), aCalls.Load())
	assert.Equal(t, int32(1), bCalls.Load())
	assert.Equal(t, 1, rep.Stats().Total)
}

func TestRunUnregisteredCheckRecordsFailure(t *testing.T) {
	registry := check.NewRegistry()
	require.NoError(t, registry.Register("known", staticCheck(check.Pass("ok"), nil)))

	o := newOrchestrator(t, []Phase{
		{Name: "one", Checks: []string{"ghost", "known"}},
	}, registry, nil, "")

	rep := o.Run(context.Background(), Options{})

	v, ok := rep.Get("ghost")
	require.True(t, ok)
	assert.Equal(t, check.OutcomeFail, v.Outcome)
	assert.Equal(t, "registry", v.SuspectedComponent)

	// The rest of the phase still ran.
	_, ok = rep.Get("known")
	assert.True(t, ok)
}

func TestRunProgressStates(t *testing.T) {
	registry := check.NewRegistry()
	require.NoError(t, registry.Register("a", staticCheck(check.Pass("ok"), nil)))

	o := newOrchestrator(t, []Phase{{Name: "one", Checks: []string{"a"}}}, registry, nil, "")

	var states []State
	o.OnProgress(func(p Progress) { states = append(states, p.State) })

	o.Run(context.Background(), Options{})

	assert.Equal(t, []State{
		StateInitializing,
		StateRunningPhase,
		StateCompleted,
		StateFinalizing,
		StateDone,
	}, states)
}

func TestNewValidation(t *testing.T) {
	registry := check.NewRegistry()
	r := newTestRunner(t)
	phases := []Phase{{Name: "one", Checks: []string{"a"}}}

	_, err := New(nil, registry, r, nil, "", zap.NewNop())
	assert.Error(t, err)
	_, err = New(phases, nil, r, nil, "", zap.NewNop())
	assert.Error(t, err)
	_, err = New(phases, registry, nil, nil, "", zap.NewNop())
	assert.Error(t, err)
	_, err = New(phases, registry, r, nil, "", nil)
	assert.Error(t, err)
}
