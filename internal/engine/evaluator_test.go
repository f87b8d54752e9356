package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/reactive"
	"github.com/weftui/weft/internal/store"
)

func newTestEvaluator(t *testing.T) (*Evaluator, *store.Store) {
	t.Helper()
	st := store.New(reactive.New())
	require.NoError(t, st.Define("count", ir.FieldNumber, ir.Number(7)))
	require.NoError(t, st.Define("user", ir.FieldObject, ir.NewObjectFromEntries(
		ir.E("name", ir.String("ada")),
		ir.E("address", ir.Null{}),
	)))
	require.NoError(t, st.Define("items", ir.FieldList, ir.NewArray(
		ir.String("a"), ir.String("b"), ir.String("c"),
	)))

	ext := ExternalMap{"session": ir.NewObjectFromEntries(ir.E("userId", ir.Number(42)))}
	route := &RouteContext{
		Params: ir.NewObjectFromEntries(ir.E("id", ir.String("p-1"))),
		Path:   "/posts/p-1",
	}
	return NewEvaluator(st, ext, route), st
}

func mustExpr(t *testing.T, src string) ir.Expr {
	t.Helper()
	e, err := ir.UnmarshalExpr([]byte(src))
	require.NoError(t, err)
	return e
}

func evalJSON(t *testing.T, ev *Evaluator, src string) ir.Value {
	t.Helper()
	return ev.Evaluate(mustExpr(t, src), nil)
}

func TestEvaluator_References(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	assert.True(t, ir.Equal(ir.Number(7), evalJSON(t, ev, `{"expr":"var","name":"count"}`)))
	assert.True(t, ir.Equal(ir.String("ada"), evalJSON(t, ev, `{"expr":"var","name":"user.name"}`)))
	assert.True(t, ir.Equal(ir.String("ada"), evalJSON(t, ev, `{"expr":"var","name":"user","path":["name"]}`)))
	assert.True(t, ir.IsUndefined(evalJSON(t, ev, `{"expr":"var","name":"missing"}`)))
	assert.True(t, ir.Equal(ir.Number(42), evalJSON(t, ev, `{"expr":"ext","name":"session.userId"}`)))
	assert.True(t, ir.Equal(ir.String("p-1"), evalJSON(t, ev, `{"expr":"route","name":"params.id"}`)))
	assert.True(t, ir.Equal(ir.String("/posts/p-1"), evalJSON(t, ev, `{"expr":"route","name":"path"}`)))
}

func TestEvaluator_ForbiddenSegmentsYieldUndefined(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	// Both the dotted-name form and the explicit path form must degrade.
	assert.True(t, ir.IsUndefined(evalJSON(t, ev, `{"expr":"var","name":"user.__proto__"}`)))
	assert.True(t, ir.IsUndefined(evalJSON(t, ev, `{"expr":"var","name":"user","path":["constructor"]}`)))
	assert.True(t, ir.IsUndefined(evalJSON(t, ev,
		`{"expr":"get","target":{"expr":"var","name":"user"},"key":"prototype"}`)))
}

func TestEvaluator_NullVersusUndefined(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	// Explicit null is a value: traversal through it short-circuits to null.
	v := evalJSON(t, ev, `{"expr":"var","name":"user","path":["address","city"]}`)
	assert.True(t, ir.Equal(ir.Null{}, v))

	// A genuinely missing key is undefined.
	v = evalJSON(t, ev, `{"expr":"var","name":"user","path":["missing","city"]}`)
	assert.True(t, ir.IsUndefined(v))
}

func TestEvaluator_Arithmetic(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	cases := []struct {
		src  string
		want ir.Value
	}{
		{`{"expr":"bin","op":"+","left":{"expr":"lit","value":2},"right":{"expr":"lit","value":3}}`, ir.Number(5)},
		{`{"expr":"bin","op":"-","left":{"expr":"var","name":"count"},"right":{"expr":"lit","value":1}}`, ir.Number(6)},
		{`{"expr":"bin","op":"*","left":{"expr":"lit","value":4},"right":{"expr":"lit","value":2.5}}`, ir.Number(10)},
		{`{"expr":"bin","op":"%","left":{"expr":"lit","value":7},"right":{"expr":"lit","value":3}}`, ir.Number(1)},
		{`{"expr":"bin","op":"<","left":{"expr":"lit","value":1},"right":{"expr":"lit","value":2}}`, ir.Bool(true)},
		{`{"expr":"bin","op":"==","left":{"expr":"lit","value":"a"},"right":{"expr":"lit","value":"a"}}`, ir.Bool(true)},
		{`{"expr":"bin","op":"!=","left":{"expr":"lit","value":null},"right":{"expr":"lit","value":0}}`, ir.Bool(true)},
		{`{"expr":"bin","op":"+","left":{"expr":"lit","value":"foo"},"right":{"expr":"lit","value":"bar"}}`, ir.String("foobar")},
	}
	for _, tc := range cases {
		assert.True(t, ir.Equal(tc.want, evalJSON(t, ev, tc.src)), "expr %s", tc.src)
	}
}

func TestEvaluator_DivisionByZeroIsInfinity(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	v := evalJSON(t, ev, `{"expr":"bin","op":"/","left":{"expr":"lit","value":1},"right":{"expr":"lit","value":0}}`)
	n, ok := v.(ir.Number)
	require.True(t, ok)
	assert.True(t, math.IsInf(float64(n), 1))

	v = evalJSON(t, ev, `{"expr":"bin","op":"/","left":{"expr":"lit","value":-1},"right":{"expr":"lit","value":0}}`)
	n, ok = v.(ir.Number)
	require.True(t, ok)
	assert.True(t, math.IsInf(float64(n), -1))
}

func TestEvaluator_LogicalShortCircuit(t *testing.T) {
	rt := reactive.New()
	st := store.New(rt)
	require.NoError(t, st.Define("flag", ir.FieldBoolean, ir.Bool(false)))
	require.NoError(t, st.Define("other", ir.FieldNumber, ir.Number(0)))
	ev := NewEvaluator(st, nil, nil)

	// When the left operand decides, the right must not register a
	// dependency: the effect below reads only flag.
	cond := mustExpr(t, `{"expr":"bin","op":"&&","left":{"expr":"var","name":"flag"},"right":{"expr":"var","name":"other"}}`)

	runs := 0
	reactive.NewEffect(rt, func() {
		runs++
		_ = ev.Evaluate(cond, nil)
	})
	require.Equal(t, 1, runs)

	require.NoError(t, st.Set("other", ir.Number(1)))
	assert.Equal(t, 1, runs, "short-circuited operand must not be tracked")

	require.NoError(t, st.Set("flag", ir.Bool(true)))
	assert.Equal(t, 2, runs)

	// Now the right operand is read, so its changes re-run the effect.
	require.NoError(t, st.Set("other", ir.Number(2)))
	assert.Equal(t, 3, runs)
}

func TestEvaluator_ConditionalEvaluatesOneBranch(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	v := evalJSON(t, ev, `{"expr":"cond","if":{"expr":"lit","value":true},"then":{"expr":"lit","value":"yes"},"else":{"expr":"lit","value":"no"}}`)
	assert.True(t, ir.Equal(ir.String("yes"), v))

	v = evalJSON(t, ev, `{"expr":"cond","if":{"expr":"lit","value":0},"then":{"expr":"lit","value":"yes"},"else":{"expr":"lit","value":"no"}}`)
	assert.True(t, ir.Equal(ir.String("no"), v))
}

func TestEvaluator_NotCoercesByTruthiness(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	assert.True(t, ir.Equal(ir.Bool(true), evalJSON(t, ev, `{"expr":"not","operand":{"expr":"lit","value":""}}`)))
	assert.True(t, ir.Equal(ir.Bool(false), evalJSON(t, ev, `{"expr":"not","operand":{"expr":"lit","value":"x"}}`)))
}

func TestEvaluator_IndexExpression(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	v := evalJSON(t, ev, `{"expr":"idx","target":{"expr":"var","name":"items"},"index":{"expr":"lit","value":1}}`)
	assert.True(t, ir.Equal(ir.String("b"), v))

	// Out of range and fractional indices degrade.
	assert.True(t, ir.IsUndefined(evalJSON(t, ev,
		`{"expr":"idx","target":{"expr":"var","name":"items"},"index":{"expr":"lit","value":9}}`)))
	assert.True(t, ir.IsUndefined(evalJSON(t, ev,
		`{"expr":"idx","target":{"expr":"var","name":"items"},"index":{"expr":"lit","value":1.5}}`)))

	// A string index addresses object keys.
	v = evalJSON(t, ev, `{"expr":"idx","target":{"expr":"var","name":"user"},"index":{"expr":"lit","value":"name"}}`)
	assert.True(t, ir.Equal(ir.String("ada"), v))
}

func TestEvaluator_Methods(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	cases := []struct {
		src  string
		want ir.Value
	}{
		{`{"expr":"call","target":{"expr":"lit","value":"hello"},"method":"length"}`, ir.Number(5)},
		{`{"expr":"call","target":{"expr":"lit","value":"hello"},"method":"toUpperCase"}`, ir.String("HELLO")},
		{`{"expr":"call","target":{"expr":"lit","value":"  x  "},"method":"trim"}`, ir.String("x")},
		{`{"expr":"call","target":{"expr":"lit","value":"hello"},"method":"slice","args":[{"expr":"lit","value":-3}]}`, ir.String("llo")},
		{`{"expr":"call","target":{"expr":"lit","value":"hello"},"method":"slice","args":[{"expr":"lit","value":1},{"expr":"lit","value":3}]}`, ir.String("el")},
		{`{"expr":"call","target":{"expr":"lit","value":"a,b"},"method":"includes","args":[{"expr":"lit","value":","}]}`, ir.Bool(true)},
		{`{"expr":"call","target":{"expr":"lit","value":"a-b"},"method":"replace","args":[{"expr":"lit","value":"-"},{"expr":"lit","value":"+"}]}`, ir.String("a+b")},
		{`{"expr":"call","target":{"expr":"var","name":"items"},"method":"length"}`, ir.Number(3)},
		{`{"expr":"call","target":{"expr":"lit","value":"héllo"},"method":"indexOf","args":[{"expr":"lit","value":"llo"}]}`, ir.Number(2)},
		{`{"expr":"call","target":{"expr":"lit","value":"hello"},"method":"indexOf","args":[{"expr":"lit","value":"q"}]}`, ir.Number(-1)},
		{`{"expr":"call","target":{"expr":"var","name":"items"},"method":"indexOf","args":[{"expr":"lit","value":"b"}]}`, ir.Number(1)},
		{`{"expr":"call","target":{"expr":"var","name":"items"},"method":"join","args":[{"expr":"lit","value":"-"}]}`, ir.String("a-b-c")},
	}
	for _, tc := range cases {
		assert.True(t, ir.Equal(tc.want, evalJSON(t, ev, tc.src)), "expr %s", tc.src)
	}
}

func TestEvaluator_NonWhitelistedMethodIsUndefined(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	assert.True(t, ir.IsUndefined(evalJSON(t, ev,
		`{"expr":"call","target":{"expr":"lit","value":"x"},"method":"eval"}`)))
	// Whitelisted name on an unsupported target type also degrades.
	assert.True(t, ir.IsUndefined(evalJSON(t, ev,
		`{"expr":"call","target":{"expr":"lit","value":5},"method":"length"}`)))
}

func TestEvaluator_SplitReturnsArray(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	v := evalJSON(t, ev, `{"expr":"call","target":{"expr":"lit","value":"a,b,c"},"method":"split","args":[{"expr":"lit","value":","}]}`)
	arr, ok := v.(*ir.Array)
	require.True(t, ok)
	require.Len(t, arr.Items, 3)
	assert.True(t, ir.Equal(ir.String("b"), arr.Items[1]))
}

func TestEvaluator_ConcatRendersParts(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	v := evalJSON(t, ev, `{"expr":"concat","parts":[
		{"expr":"lit","value":"n="},
		{"expr":"var","name":"count"},
		{"expr":"lit","value":", missing="},
		{"expr":"var","name":"nope"}
	]}`)
	assert.True(t, ir.Equal(ir.String("n=7, missing="), v),
		"null and undefined render empty in concatenation")
}

func TestEvaluator_LocalBindings(t *testing.T) {
	ev, _ := newTestEvaluator(t)

	scope := NewScope(nil)
	scope.Bind("item", ir.NewObjectFromEntries(ir.E("id", ir.Number(3))))

	v := ev.Evaluate(mustExpr(t, `{"expr":"local","name":"item.id"}`), scope)
	assert.True(t, ir.Equal(ir.Number(3), v))

	child := NewScope(scope)
	child.Bind("item", ir.String("shadowed"))
	v = ev.Evaluate(mustExpr(t, `{"expr":"local","name":"item"}`), child)
	assert.True(t, ir.Equal(ir.String("shadowed"), v))
}
