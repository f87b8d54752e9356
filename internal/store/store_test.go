package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/reactive"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(reactive.New())
}

func TestStore_DefineAndGet(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("count", ir.FieldNumber, ir.Number(0)))

	v, err := s.Get("count")
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Number(0), v))

	assert.True(t, s.Has("count"))
	assert.Equal(t, []string{"count"}, s.Names())
}

func TestStore_DefineTwiceFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("count", ir.FieldNumber, ir.Number(0)))
	assert.Error(t, s.Define("count", ir.FieldNumber, ir.Number(1)))
}

func TestStore_UnknownFieldErrors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownField)

	err = s.Set("missing", ir.Number(1))
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = s.SubscribeToPath("missing", nil, func(prev, next ir.Value) {})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestStore_UndefinedWriteRejected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("x", ir.FieldNumber, ir.Number(0)))

	assert.ErrorIs(t, s.Set("x", ir.Undefined{}), ErrUndefinedWrite)
	assert.ErrorIs(t, s.Define("y", ir.FieldNumber, ir.Undefined{}), ErrUndefinedWrite)
}

func TestStore_SetReRunsEffectUnconditionally(t *testing.T) {
	rt := reactive.New()
	s := New(rt)
	require.NoError(t, s.Define("count", ir.FieldNumber, ir.Number(1)))

	runs := 0
	reactive.NewEffect(rt, func() {
		runs++
		_, _ = s.Get("count")
	})
	require.Equal(t, 1, runs)

	// Writing an equal value still notifies dependents.
	require.NoError(t, s.Set("count", ir.Number(1)))
	assert.Equal(t, 2, runs)
}

func TestStore_GetPathDegradesToUndefined(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("user", ir.FieldObject,
		ir.NewObjectFromEntries(ir.E("name", ir.String("ada")))))

	v, err := s.GetPath("user", ir.Path{ir.Key("missing"), ir.Key("deeper")})
	require.NoError(t, err)
	assert.True(t, ir.IsUndefined(v))

	v, err = s.GetPath("user", ir.Path{ir.Key("name")})
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.String("ada"), v))
}

func TestStore_SetPathCreatesNestedContainers(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("data", ir.FieldObject, ir.NewObject()))

	require.NoError(t, s.SetPath("data", ir.Path{ir.Key("nested"), ir.Key("deep")}, ir.Number(42)))

	v, err := s.GetPath("data", ir.Path{ir.Key("nested"), ir.Key("deep")})
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Number(42), v))
}

func TestStore_SetPathSharesUntouchedSiblings(t *testing.T) {
	s := newTestStore(t)
	second := ir.NewObjectFromEntries(ir.E("liked", ir.Bool(false)))
	posts := ir.NewArray(
		ir.NewObjectFromEntries(ir.E("liked", ir.Bool(false))),
		second,
	)
	require.NoError(t, s.Define("posts", ir.FieldList, posts))

	require.NoError(t, s.SetPath("posts", ir.Path{ir.Index(0), ir.Key("liked")}, ir.Bool(true)))

	after, err := s.Get("posts")
	require.NoError(t, err)
	arr, ok := after.(*ir.Array)
	require.True(t, ok)
	assert.False(t, ir.Same(posts, arr))
	assert.True(t, ir.Same(second, arr.Items[1]))
	assert.True(t, ir.Equal(ir.Bool(true), ir.Path{ir.Index(0), ir.Key("liked")}.Resolve(arr)))
}

func TestStore_SetPathUndefinedStoresNull(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("data", ir.FieldObject, ir.NewObject()))

	require.NoError(t, s.SetPath("data", ir.Path{ir.Key("gone")}, ir.Undefined{}))

	v, err := s.GetPath("data", ir.Path{ir.Key("gone")})
	require.NoError(t, err)
	assert.True(t, ir.Equal(ir.Null{}, v))
}

func TestStore_SubscribeFiresOnChange(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("count", ir.FieldNumber, ir.Number(0)))

	var got []ir.Value
	cancel, err := s.Subscribe("count", func(prev, next ir.Value) {
		got = append(got, next)
	})
	require.NoError(t, err)

	require.NoError(t, s.Set("count", ir.Number(1)))
	require.Len(t, got, 1)
	assert.True(t, ir.Equal(ir.Number(1), got[0]))

	// Writes are never equality-suppressed at the field level: an
	// identical scalar write still notifies whole-field subscribers.
	require.NoError(t, s.Set("count", ir.Number(1)))
	require.Len(t, got, 2)
	assert.True(t, ir.Equal(ir.Number(1), got[1]))

	cancel()
	cancel() // second call is a no-op
	require.NoError(t, s.Set("count", ir.Number(2)))
	assert.Len(t, got, 2)
}

func TestStore_SubscribeToPath_OnlyAffectedPathFires(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("user", ir.FieldObject, ir.NewObjectFromEntries(
		ir.E("name", ir.String("ada")),
		ir.E("age", ir.Number(36)),
	)))

	var nameFires, ageFires int
	_, err := s.SubscribeToPath("user", ir.Path{ir.Key("name")}, func(prev, next ir.Value) {
		nameFires++
	})
	require.NoError(t, err)
	_, err = s.SubscribeToPath("user", ir.Path{ir.Key("age")}, func(prev, next ir.Value) {
		ageFires++
	})
	require.NoError(t, err)

	require.NoError(t, s.SetPath("user", ir.Path{ir.Key("name")}, ir.String("grace")))
	assert.Equal(t, 1, nameFires)
	assert.Equal(t, 0, ageFires, "sibling path kept its identity, must not fire")
}

func TestStore_ForbiddenPathRejected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("data", ir.FieldObject, ir.NewObject()))

	err := s.SetPath("data", ir.Path{ir.Key("__proto__")}, ir.Number(1))
	assert.Error(t, err)

	_, err = s.SubscribeToPath("data", ir.Path{ir.Key("constructor")}, func(prev, next ir.Value) {})
	assert.Error(t, err)
}

func TestStore_SnapshotReflectsCurrentState(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Define("a", ir.FieldNumber, ir.Number(1)))
	require.NoError(t, s.Define("b", ir.FieldString, ir.String("x")))
	require.NoError(t, s.Set("a", ir.Number(2)))

	snap := s.Snapshot()
	assert.True(t, ir.Equal(ir.Number(2), snap.Get("a")))
	assert.True(t, ir.Equal(ir.String("x"), snap.Get("b")))
}
