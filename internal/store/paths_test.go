package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftui/weft/internal/ir"
)

func TestSetAtPath_EmptyPathReplacesRoot(t *testing.T) {
	got, err := setAtPath(ir.Number(1), nil, ir.String("x"))
	require.NoError(t, err)
	assert.True(t, ir.Same(ir.String("x"), got))
}

func TestSetAtPath_CreatesIntermediateObjects(t *testing.T) {
	got, err := setAtPath(ir.NewObject(), ir.Path{ir.Key("nested"), ir.Key("deep")}, ir.Number(42))
	require.NoError(t, err)

	deep := ir.Path{ir.Key("nested"), ir.Key("deep")}.Resolve(got)
	assert.True(t, ir.Equal(ir.Number(42), deep))
}

func TestSetAtPath_IndexPadsWithNull(t *testing.T) {
	got, err := setAtPath(ir.NewObject(), ir.Path{ir.Key("items"), ir.Index(2)}, ir.String("c"))
	require.NoError(t, err)

	items, ok := ir.Path{ir.Key("items")}.Resolve(got).(*ir.Array)
	require.True(t, ok)
	require.Len(t, items.Items, 3)
	assert.True(t, ir.Equal(ir.Null{}, items.Items[0]))
	assert.True(t, ir.Equal(ir.Null{}, items.Items[1]))
	assert.True(t, ir.Equal(ir.String("c"), items.Items[2]))
}

func TestSetAtPath_ScalarIntermediateCoerced(t *testing.T) {
	// Writing below a scalar replaces it with the container the next
	// segment implies.
	root := ir.NewObjectFromEntries(ir.E("count", ir.Number(3)))
	got, err := setAtPath(root, ir.Path{ir.Key("count"), ir.Key("value")}, ir.Number(4))
	require.NoError(t, err)

	assert.True(t, ir.Equal(ir.Number(4), ir.Path{ir.Key("count"), ir.Key("value")}.Resolve(got)))
}

func TestSetAtPath_SiblingsKeepIdentity(t *testing.T) {
	first := ir.NewObjectFromEntries(ir.E("liked", ir.Bool(false)))
	second := ir.NewObjectFromEntries(ir.E("liked", ir.Bool(false)))
	posts := ir.NewArray(first, second)

	got, err := setAtPath(posts, ir.Path{ir.Index(0), ir.Key("liked")}, ir.Bool(true))
	require.NoError(t, err)

	next, ok := got.(*ir.Array)
	require.True(t, ok)
	assert.False(t, ir.Same(posts, next), "root array must be rebuilt")
	assert.False(t, ir.Same(first, next.Items[0]), "mutated element must be rebuilt")
	assert.True(t, ir.Same(second, next.Items[1]), "untouched sibling must keep identity")
}

func TestSetAtPath_NegativeIndexRejected(t *testing.T) {
	_, err := setAtPath(ir.NewArray(), ir.Path{ir.Index(-1)}, ir.Number(1))
	assert.Error(t, err)
}

func TestSetAtPath_ForbiddenKeyRejected(t *testing.T) {
	for _, name := range []string{"__proto__", "constructor", "prototype"} {
		_, err := setAtPath(ir.NewObject(), ir.Path{ir.Key(name)}, ir.Number(1))
		assert.Error(t, err, "key %q must be rejected", name)
	}
}
