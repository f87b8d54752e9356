package store

import (
	"fmt"

	"github.com/weftui/weft/internal/ir"
)

// setAtPath returns a new value equal to root except that the subtree at
// path is replaced by leaf. Containers along the path are shallow-cloned
// and everything off the path keeps its prior identity, so unaffected
// subtrees compare identical before and after the write.
//
// Intermediate values that are missing or not the container the next
// segment implies are replaced by a fresh one: a key segment materializes
// an object, an index segment materializes an array padded with nulls up
// to the index. Forbidden key names and negative indices are rejected.
func setAtPath(root ir.Value, path ir.Path, leaf ir.Value) (ir.Value, error) {
	if path.IsEmpty() {
		return leaf, nil
	}
	seg := path[0]
	rest := path[1:]

	if seg.IsIndex() {
		if seg.Index() < 0 {
			return nil, fmt.Errorf("set path: negative index %d", seg.Index())
		}
		arr, ok := root.(*ir.Array)
		if !ok {
			arr = ir.NewArray()
		}
		next := arr.CloneShallow()
		for len(next.Items) <= seg.Index() {
			next.Items = append(next.Items, ir.Null{})
		}
		child, err := setAtPath(next.Items[seg.Index()], rest, leaf)
		if err != nil {
			return nil, err
		}
		next.Items[seg.Index()] = child
		return next, nil
	}

	if ir.ForbiddenSegment(seg.Key()) {
		return nil, fmt.Errorf("set path: forbidden segment %q", seg.Key())
	}
	obj, ok := root.(*ir.Object)
	if !ok {
		obj = ir.NewObject()
	}
	next := obj.CloneShallow()
	child, err := setAtPath(next.Get(seg.Key()), rest, leaf)
	if err != nil {
		return nil, err
	}
	next.Entries[seg.Key()] = child
	return next, nil
}
