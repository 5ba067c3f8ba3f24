package grove

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterministic(t *testing.T) {
	t.Parallel()

	a := &node[string, int]{leaf: true, keys: []string{"a", "b"}, vals: []int{1, 2}}
	b := &node[string, int]{leaf: true, keys: []string{"a", "b"}, vals: []int{1, 2}}

	da, err := encodeNode(a, nil)
	require.NoError(t, err)
	db, err := encodeNode(b, nil)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Equal(t, contentID(da), contentID(db))

	c := &node[string, int]{leaf: true, keys: []string{"a", "b"}, vals: []int{1, 3}}
	dc, err := encodeNode(c, nil)
	require.NoError(t, err)
	assert.NotEqual(t, contentID(da), contentID(dc))
}

func TestEncodeDecodeLeaf(t *testing.T) {
	t.Parallel()

	n := &node[string, int]{leaf: true, keys: []string{"a", "b", "c"}, vals: []int{1, 2, 3}}
	data, err := encodeNode(n, nil)
	require.NoError(t, err)

	got, err := decodeNode[string, int](Ordered[string](), data)
	require.NoError(t, err)
	assert.True(t, got.leaf)
	assert.Equal(t, n.keys, got.keys)
	assert.Equal(t, n.vals, got.vals)
}

func TestEncodeDecodeBranch(t *testing.T) {
	t.Parallel()

	n := &node[int, int]{keys: []int{10, 20}, children: []*handle[int, int]{
		newHandle(newLeaf[int, int]()), newHandle(newLeaf[int, int]()),
	}}
	ids := []string{"aaaa", "bbbb"}
	data, err := encodeNode(n, ids)
	require.NoError(t, err)

	got, err := decodeNode[int, int](Ordered[int](), data)
	require.NoError(t, err)
	require.False(t, got.leaf)
	require.Len(t, got.children, 2)
	assert.Equal(t, "aaaa", got.children[0].id)
	assert.Nil(t, got.children[0].n)
	assert.True(t, got.children[0].shared)
}

func TestEncodeAbsentValuesSentinel(t *testing.T) {
	t.Parallel()

	n := &node[int, int]{leaf: true, keys: []int{1, 2}}
	data, err := encodeNode(n, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "values")

	got, err := decodeNode[int, int](Ordered[int](), data)
	require.NoError(t, err)
	assert.Nil(t, got.vals)
	assert.Equal(t, 0, got.val(0))
}
