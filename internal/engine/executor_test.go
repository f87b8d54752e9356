package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/testutil"
)

const counterProgram = `{
	"state": {
		"count":  {"type": "number",  "initial": 0},
		"label":  {"type": "string",  "initial": "idle"},
		"posts":  {"type": "list",    "initial": [{"id": 1, "liked": false}, {"id": 2, "liked": true}]},
		"user":   {"type": "object",  "initial": {}},
		"ticker": {"type": "string",  "initial": ""}
	},
	"actions": {
		"bump": [
			{"do": "set", "target": "count", "value": {"expr": "bin", "op": "+", "left": {"expr": "var", "name": "count"}, "right": {"expr": "lit", "value": 1}}},
			{"do": "set", "target": "label", "value": {"expr": "concat", "parts": [{"expr": "lit", "value": "count is "}, {"expr": "var", "name": "count"}]}}
		],
		"like": [
			{"do": "setPath", "target": "posts", "path": [0, "liked"], "value": {"expr": "lit", "value": true}}
		],
		"branch": [
			{"do": "if", "if": {"expr": "bin", "op": ">", "left": {"expr": "var", "name": "count"}, "right": {"expr": "lit", "value": 0}},
			 "then": [{"do": "set", "target": "label", "value": {"expr": "lit", "value": "positive"}}],
			 "else": [{"do": "set", "target": "label", "value": {"expr": "lit", "value": "zero"}}]}
		],
		"later": [
			{"do": "set", "target": "label", "value": {"expr": "lit", "value": "scheduled"}},
			{"do": "delay", "ms": {"expr": "lit", "value": 100},
			 "then": [{"do": "set", "target": "label", "value": {"expr": "lit", "value": "fired"}}]},
			{"do": "set", "target": "count", "value": {"expr": "lit", "value": 99}}
		],
		"tick": [
			{"do": "interval", "ms": {"expr": "lit", "value": 50}, "handle": {"target": "ticker"},
			 "then": [{"do": "update", "target": "count", "op": "increment"}]}
		],
		"stopTick": [
			{"do": "cancel", "handle": {"expr": "var", "name": "ticker"}}
		],
		"load": [
			{"do": "fetch", "url": {"expr": "lit", "value": "https://api.test/user"}, "bind": "resp",
			 "onSuccess": [{"do": "set", "target": "user", "value": {"expr": "local", "name": "resp"}}],
			 "onError":   [{"do": "set", "target": "label", "value": {"expr": "local", "name": "resp"}}]}
		],
		"fromEvent": [
			{"do": "set", "target": "count", "value": {"expr": "local", "name": "event.delta"}}
		]
	}
}`

func newTestEngine(t *testing.T, doc string, opts ...EngineOption) (*Engine, *testutil.FakeScheduler) {
	t.Helper()
	program, err := ir.UnmarshalProgram([]byte(doc))
	require.NoError(t, err)

	sched := testutil.NewFakeScheduler()
	opts = append([]EngineOption{
		WithScheduler(sched),
		WithExecutorOptions(WithTokens(testutil.NewPrefixTokenGenerator("timer"))),
	}, opts...)
	eng, err := New(program, opts...)
	require.NoError(t, err)
	t.Cleanup(eng.Stop)
	return eng, sched
}

func mustGet(t *testing.T, eng *Engine, name string) ir.Value {
	t.Helper()
	v, err := eng.Store().Get(name)
	require.NoError(t, err)
	return v
}

func TestExecutor_StepsRunInOrderAndSeeEarlierMutations(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	require.NoError(t, eng.Dispatch(context.Background(), "bump", nil))

	assert.True(t, ir.Equal(ir.Number(1), mustGet(t, eng, "count")))
	// The second step read the count already written by the first.
	assert.True(t, ir.Equal(ir.String("count is 1"), mustGet(t, eng, "label")))
}

func TestExecutor_MissingActionError(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	err := eng.Dispatch(context.Background(), "nope", nil)
	assert.True(t, IsMissingActionError(err))
}

func TestExecutor_SetPathKeepsSiblings(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	before := mustGet(t, eng, "posts").(*ir.Array)
	require.NoError(t, eng.Dispatch(context.Background(), "like", nil))
	after := mustGet(t, eng, "posts").(*ir.Array)

	assert.True(t, ir.Equal(ir.Bool(true), ir.Path{ir.Index(0), ir.Key("liked")}.Resolve(after)))
	assert.True(t, ir.Same(before.Items[1], after.Items[1]))
}

func TestExecutor_ConditionalBranch(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	require.NoError(t, eng.Dispatch(context.Background(), "branch", nil))
	assert.True(t, ir.Equal(ir.String("zero"), mustGet(t, eng, "label")))

	require.NoError(t, eng.Dispatch(context.Background(), "bump", nil))
	require.NoError(t, eng.Dispatch(context.Background(), "branch", nil))
	assert.True(t, ir.Equal(ir.String("positive"), mustGet(t, eng, "label")))
}

func TestExecutor_EventPayloadBinding(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	payload := ir.NewObjectFromEntries(ir.E("delta", ir.Number(13)))
	require.NoError(t, eng.Dispatch(context.Background(), "fromEvent", payload))
	assert.True(t, ir.Equal(ir.Number(13), mustGet(t, eng, "count")))
}

func TestExecutor_DelayDoesNotBlockSiblingSteps(t *testing.T) {
	eng, sched := newTestEngine(t, counterProgram)

	require.NoError(t, eng.Dispatch(context.Background(), "later", nil))

	// The step after the delay already ran; the continuation has not.
	assert.True(t, ir.Equal(ir.Number(99), mustGet(t, eng, "count")))
	assert.True(t, ir.Equal(ir.String("scheduled"), mustGet(t, eng, "label")))

	sched.Advance(100 * time.Millisecond)
	assert.True(t, ir.Equal(ir.String("fired"), mustGet(t, eng, "label")))
}

func TestExecutor_IntervalTicksAndCancel(t *testing.T) {
	eng, sched := newTestEngine(t, counterProgram)

	require.NoError(t, eng.Dispatch(context.Background(), "tick", nil))

	// The handle was stored into the declared state slot.
	handle := mustGet(t, eng, "ticker")
	assert.True(t, ir.Equal(ir.String("timer-1"), handle))

	sched.Advance(120 * time.Millisecond)
	assert.True(t, ir.Equal(ir.Number(2), mustGet(t, eng, "count")))

	require.NoError(t, eng.Dispatch(context.Background(), "stopTick", nil))
	sched.Advance(time.Second)
	assert.True(t, ir.Equal(ir.Number(2), mustGet(t, eng, "count")))

	// Cancelling again is a no-op.
	require.NoError(t, eng.Dispatch(context.Background(), "stopTick", nil))
}

func TestExecutor_FetchSuccessContinuation(t *testing.T) {
	body := ir.NewObjectFromEntries(ir.E("name", ir.String("grace")))
	eng, _ := newTestEngine(t, counterProgram, WithExecutorOptions(
		WithFetcher(FuncFetcher(func(ctx context.Context, url string) (ir.Value, error) {
			assert.Equal(t, "https://api.test/user", url)
			return body, nil
		})),
	))

	require.NoError(t, eng.Dispatch(context.Background(), "load", nil))
	assert.True(t, ir.Equal(body, mustGet(t, eng, "user")))
}

func TestExecutor_FetchErrorContinuation(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram, WithExecutorOptions(
		WithFetcher(FuncFetcher(func(ctx context.Context, url string) (ir.Value, error) {
			return nil, fmt.Errorf("boom")
		})),
	))

	require.NoError(t, eng.Dispatch(context.Background(), "load", nil))
	assert.True(t, ir.Equal(ir.String("boom"), mustGet(t, eng, "label")))
}

func TestExecutor_FetchFailureWithoutHandlerSurfacesAsync(t *testing.T) {
	var captured error
	eng, _ := newTestEngine(t, `{
		"state": {"x": {"type": "number"}},
		"actions": {"load": [{"do": "fetch", "url": {"expr": "lit", "value": "u"}}]}
	}`, WithExecutorOptions(
		WithFetcher(FuncFetcher(func(ctx context.Context, url string) (ir.Value, error) {
			return nil, fmt.Errorf("down")
		})),
		WithAsyncErrorHandler(func(err error) { captured = err }),
	))

	require.NoError(t, eng.Dispatch(context.Background(), "load", nil))
	require.Error(t, captured)
	var re *RuntimeError
	require.ErrorAs(t, captured, &re)
	assert.Equal(t, ErrCodeFetchFailed, re.Code)
}

func TestExecutor_FocusReachesHost(t *testing.T) {
	recorder := &FocusRecorder{}
	eng, _ := newTestEngine(t, `{
		"state": {"x": {"type": "number"}},
		"actions": {"go": [{"do": "focus", "target": {"expr": "lit", "value": "#search"}}]}
	}`, WithExecutorOptions(WithHost(recorder)))

	require.NoError(t, eng.Dispatch(context.Background(), "go", nil))
	assert.Equal(t, []string{"#search"}, recorder.Targets)
}

func TestExecutor_StepQuota(t *testing.T) {
	// One action with three steps against a quota of two.
	eng, _ := newTestEngine(t, `{
		"state": {"x": {"type": "number"}},
		"actions": {"long": [
			{"do": "set", "target": "x", "value": {"expr": "lit", "value": 1}},
			{"do": "set", "target": "x", "value": {"expr": "lit", "value": 2}},
			{"do": "set", "target": "x", "value": {"expr": "lit", "value": 3}}
		]}
	}`, WithExecutorOptions(WithMaxSteps(2)))

	err := eng.Dispatch(context.Background(), "long", nil)
	assert.True(t, IsQuotaError(err))
}

func TestExecutor_SettingUndefinedFailsTheWrite(t *testing.T) {
	// getPath degrades to undefined, but undefined is not storable as a
	// whole-field value; the write surfaces as a runtime error.
	eng, _ := newTestEngine(t, `{
		"state": {"data": {"type": "object"}},
		"actions": {"bad": [{"do": "set", "target": "data", "value": {"expr": "var", "name": "data", "path": ["missing"]}}]}
	}`)

	err := eng.Dispatch(context.Background(), "bad", nil)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeWriteFailed, re.Code)
}
