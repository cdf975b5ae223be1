// Package tree implements the nested parameter tree a checkpoint decodes
// into: an ordered mapping from string keys to sub-trees or leaf values.
//
// A node is either a leaf (Value set, Map nil) or an interior node (Map
// set) -- never both. Flattening a tree yields one (Path, value) pair per
// leaf, which is the unit the exporter works on.
package tree

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Node is either a Value or a Map of its children, but not both.
type Node[T any] struct {
	// Value is set for leaf nodes only.
	Value T

	// Map is set for interior nodes (nil in leaf nodes).
	Map map[string]*Node[T]
}

// Tree holds the root node of a parameter tree.
//
// T is the type of the leaf values.
type Tree[T any] struct {
	Root *Node[T]
}

// Path is an ordered sequence of string keys from the root to a node.
// It is used verbatim as a relative filesystem path by the exporter.
type Path []string

// String joins the path with "/".
func (p Path) String() string {
	return strings.Join(p, "/")
}

// Clone returns a copy of the path.
func (p Path) Clone() Path {
	return slices.Clone(p)
}

// New returns an empty tree with an interior root node.
func New[T any]() *Tree[T] {
	return &Tree[T]{Root: &Node[T]{Map: make(map[string]*Node[T])}}
}

// NewLeaf returns a leaf node holding value.
func NewLeaf[T any](value T) *Node[T] {
	return &Node[T]{Value: value}
}

// Insert sets value at path, creating intermediate nodes where needed.
// Empty path segments are skipped. Inserting at an existing leaf path
// replaces the previous value.
//
// A path may not pass through an existing leaf, and may not end on an
// interior node: either would silently discard a previously inserted
// value, so both are errors.
func (tree *Tree[T]) Insert(path Path, value T) error {
	node := tree.Root
	created := false
	for i, segment := range path {
		if segment == "" {
			continue
		}
		if node.Map == nil {
			if !created && node != tree.Root {
				return fmt.Errorf("insert %q: %q is already a leaf", path.String(), path[:i].String())
			}
			node.Map = make(map[string]*Node[T])
		}
		child := node.Map[segment]
		created = child == nil
		if created {
			child = &Node[T]{}
			node.Map[segment] = child
		}
		node = child
	}
	if node.Map != nil {
		return fmt.Errorf("insert %q: path is an interior node", path.String())
	}
	node.Value = value
	return nil
}

// Get returns the leaf value at path, or false if path does not lead to a
// leaf.
func (tree *Tree[T]) Get(path Path) (T, bool) {
	node := tree.Root
	for _, segment := range path {
		if segment == "" {
			continue
		}
		if node.Map == nil {
			var zero T
			return zero, false
		}
		node = node.Map[segment]
		if node == nil {
			var zero T
			return zero, false
		}
	}
	if node.Map != nil {
		var zero T
		return zero, false
	}
	return node.Value, true
}

// Leaves iterates over all leaf nodes of the tree, depth-first, visiting
// the keys of each node in sorted order. The sorted walk makes repeated
// conversions of the same tree deterministic; callers must not otherwise
// rely on any particular ordering.
func (tree *Tree[T]) Leaves() iter.Seq2[Path, T] {
	return func(yield func(Path, T) bool) {
		walkLeaves(nil, tree.Root, yield)
	}
}

func walkLeaves[T any](path Path, node *Node[T], yield func(Path, T) bool) bool {
	if node.Map == nil {
		return yield(path.Clone(), node.Value)
	}
	for _, key := range sortedKeys(node.Map) {
		if !walkLeaves(append(path, key), node.Map[key], yield) {
			return false
		}
	}
	return true
}

// NumLeaves returns the number of leaf nodes in the tree.
func (tree *Tree[T]) NumLeaves() int {
	n := 0
	for range tree.Leaves() {
		n++
	}
	return n
}

// Map converts a Tree[T1] to a Tree[T2] by calling mapFn on every leaf.
func Map[T1, T2 any](tree *Tree[T1], mapFn func(Path, T1) T2) *Tree[T2] {
	out := New[T2]()
	for path, value := range tree.Leaves() {
		// Leaf paths of a well-formed tree cannot collide.
		_ = out.Insert(path, mapFn(path, value))
	}
	return out
}

// String renders the tree with sorted keys and two-space indentation.
func (tree *Tree[T]) String() string {
	var sb strings.Builder
	nodeToString(&sb, "/", tree.Root, 0)
	return sb.String()
}

func nodeToString[T any](sb *strings.Builder, name string, node *Node[T], indent int) {
	pad := strings.Repeat("  ", indent)
	if node.Map == nil {
		fmt.Fprintf(sb, "%s%q: %v\n", pad, name, node.Value)
		return
	}
	fmt.Fprintf(sb, "%s%q: {\n", pad, name)
	for _, key := range sortedKeys(node.Map) {
		nodeToString(sb, key, node.Map[key], indent+1)
	}
	fmt.Fprintf(sb, "%s}\n", pad)
}

func sortedKeys[T any](m map[string]*Node[T]) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
