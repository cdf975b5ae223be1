package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"layer0", "w"}, 1)
	tr.Insert(Path{"layer0", "b"}, 2)
	tr.Insert(Path{"norm"}, 3)

	v, ok := tr.Get(Path{"layer0", "w"})
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = tr.Get(Path{"norm"})
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = tr.Get(Path{"layer0"})
	assert.False(t, ok, "interior node is not a leaf")

	_, ok = tr.Get(Path{"missing"})
	assert.False(t, ok)
}

func TestInsertSkipsEmptySegments(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"", "a", "", "b"}, 7)

	v, ok := tr.Get(Path{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

func TestInsertRejectsLeafInPath(t *testing.T) {
	tr := New[int]()
	require.NoError(t, tr.Insert(Path{"a"}, 1))

	err := tr.Insert(Path{"a", "b"}, 2)
	require.Error(t, err, "descending through a leaf must not discard it")
	assert.Contains(t, err.Error(), `"a"`)

	// The original leaf survives the failed insert.
	v, ok := tr.Get(Path{"a"})
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, tr.NumLeaves())
}

func TestInsertRejectsInteriorTarget(t *testing.T) {
	tr := New[int]()
	require.NoError(t, tr.Insert(Path{"a", "b"}, 1))

	err := tr.Insert(Path{"a"}, 2)
	require.Error(t, err, "an interior node must not become a leaf")

	v, ok := tr.Get(Path{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestInsertReplaces(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"a"}, 1)
	tr.Insert(Path{"a"}, 2)

	v, ok := tr.Get(Path{"a"})
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, tr.NumLeaves())
}

func TestLeavesSortedDeterministic(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"b", "y"}, 2)
	tr.Insert(Path{"a"}, 1)
	tr.Insert(Path{"b", "x"}, 3)

	var paths []string
	var values []int
	for p, v := range tr.Leaves() {
		paths = append(paths, p.String())
		values = append(values, v)
	}
	assert.Equal(t, []string{"a", "b/x", "b/y"}, paths)
	assert.Equal(t, []int{1, 3, 2}, values)
}

func TestLeavesPathsDoNotAlias(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"a", "x"}, 1)
	tr.Insert(Path{"a", "y"}, 2)

	var paths []Path
	for p := range tr.Leaves() {
		paths = append(paths, p)
	}
	require.Len(t, paths, 2)
	assert.NotEqual(t, paths[0].String(), paths[1].String())
}

func TestNumLeaves(t *testing.T) {
	tr := New[string]()
	assert.Equal(t, 0, tr.NumLeaves())

	tr.Insert(Path{"a"}, "x")
	tr.Insert(Path{"b", "c"}, "y")
	tr.Insert(Path{"b", "d", "e"}, "z")
	assert.Equal(t, 3, tr.NumLeaves())
}

func TestMap(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"a"}, 1)
	tr.Insert(Path{"b", "c"}, 2)

	doubled := Map(tr, func(_ Path, v int) int { return v * 2 })
	v, ok := doubled.Get(Path{"b", "c"})
	require.True(t, ok)
	assert.Equal(t, 4, v)
	assert.Equal(t, 2, doubled.NumLeaves())
}

func TestString(t *testing.T) {
	tr := New[int]()
	tr.Insert(Path{"b"}, 2)
	tr.Insert(Path{"a"}, 1)

	want := "\"/\": {\n  \"a\": 1\n  \"b\": 2\n}\n"
	assert.Equal(t, want, tr.String())
}
