package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/reactive"
)

func TestEngine_RejectsInvalidProgram(t *testing.T) {
	program, err := ir.UnmarshalProgram([]byte(`{
		"state": {"x": {"type": "wat"}},
		"actions": {}
	}`))
	require.NoError(t, err)

	_, err = New(program)
	assert.Error(t, err)
}

func TestEngine_StateInitialization(t *testing.T) {
	eng, _ := newTestEngine(t, `{
		"state": {
			"greeting": {"type": "string", "initial": "hi"},
			"missing":  {"type": "number"},
			"doubled":  {"type": "number", "initial": {"$expr": {"expr": "bin", "op": "*", "left": {"expr": "var", "name": "base"}, "right": {"expr": "lit", "value": 2}}}},
			"base":     {"type": "number", "initial": 21}
		},
		"actions": {"noop": [{"do": "set", "target": "base", "value": {"expr": "lit", "value": 0}}]}
	}`)

	assert.True(t, ir.Equal(ir.String("hi"), mustGet(t, eng, "greeting")))
	assert.True(t, ir.Equal(ir.Number(0), mustGet(t, eng, "missing")), "untyped initial falls back to zero value")
	// Fields initialize in sorted name order, so "doubled" sees "base".
	assert.True(t, ir.Equal(ir.Number(42), mustGet(t, eng, "doubled")))
}

func TestEngine_DeferredInitialOnLaterFieldFallsBackToZero(t *testing.T) {
	eng, _ := newTestEngine(t, `{
		"state": {
			"a": {"type": "number", "initial": {"$expr": {"expr": "var", "name": "z"}}},
			"z": {"type": "number", "initial": 5}
		},
		"actions": {"noop": [{"do": "set", "target": "z", "value": {"expr": "lit", "value": 0}}]}
	}`)

	// "a" initializes before "z" exists; the undefined result falls back
	// to the number zero value.
	assert.True(t, ir.Equal(ir.Number(0), mustGet(t, eng, "a")))
}

func TestEngine_EvaluateAndEffectIntegration(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	expr := mustExpr(t, `{"expr":"var","name":"count"}`)

	var seen []ir.Value
	reactive.NewEffect(eng.Runtime(), func() {
		seen = append(seen, eng.Evaluate(expr))
	})
	require.Len(t, seen, 1)

	require.NoError(t, eng.Dispatch(context.Background(), "bump", nil))
	require.Len(t, seen, 2)
	assert.True(t, ir.Equal(ir.Number(1), seen[1]))
}

func TestEngine_RateLimitedDispatcher(t *testing.T) {
	eng, sched := newTestEngine(t, counterProgram)

	d := eng.Dispatcher(context.Background(), "fromEvent", Debounce, 100)
	defer d.Close()

	d.Dispatch(ir.NewObjectFromEntries(ir.E("delta", ir.Number(1))))
	d.Dispatch(ir.NewObjectFromEntries(ir.E("delta", ir.Number(2))))

	assert.True(t, ir.Equal(ir.Number(0), mustGet(t, eng, "count")), "debounced dispatch must not fire early")

	sched.Advance(200 * time.Millisecond)
	assert.True(t, ir.Equal(ir.Number(2), mustGet(t, eng, "count")))
}

func TestEngine_StoreSubscriptionSeesDispatches(t *testing.T) {
	eng, _ := newTestEngine(t, counterProgram)

	var notified []ir.Value
	cancel, err := eng.Store().Subscribe("count", func(prev, next ir.Value) {
		notified = append(notified, next)
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, eng.Dispatch(context.Background(), "bump", nil))
	require.Len(t, notified, 1)
	assert.True(t, ir.Equal(ir.Number(1), notified[0]))
}
