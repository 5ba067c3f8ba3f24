package grove

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Basic Operations Tests

func TestTreeBasicOps(t *testing.T) {
	t.Parallel()

	tr := NewOrdered[string, string]()

	added, err := tr.Set("key1", "value1")
	assert.NoError(t, err)
	assert.True(t, added)

	val, err := tr.Get("key1")
	assert.NoError(t, err)
	assert.Equal(t, "value1", val)

	// Update existing key
	added, err = tr.Set("key1", "value2")
	assert.NoError(t, err)
	assert.False(t, added)

	val, err = tr.Get("key1")
	assert.NoError(t, err)
	assert.Equal(t, "value2", val)

	// Get non-existent key
	_, err = tr.Get("nonexistent")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	ok, err := tr.Has("key1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.Has("nope")
	assert.NoError(t, err)
	assert.False(t, ok)

	v, err := tr.GetOr("nope", "fallback")
	assert.NoError(t, err)
	assert.Equal(t, "fallback", v)

	sz, err := tr.Size()
	assert.NoError(t, err)
	assert.Equal(t, 1, sz)
}

func TestTreeSetIfAbsent(t *testing.T) {
	t.Parallel()

	tr := NewOrdered[string, int]()

	added, err := tr.SetIfAbsent("a", 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = tr.SetIfAbsent("a", 2)
	require.NoError(t, err)
	assert.False(t, added)

	v, err := tr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// Scenario: mixed value types through splits at fanout 4.
func TestTreeInsertOrdering(t *testing.T) {
	t.Parallel()

	tr := New[int, any](Ordered[int](), WithFanout(4))
	pairs := []Pair[int, any]{
		{6, "six"}, {7, 7}, {5, 5}, {2, "two"},
		{4, 4}, {1, "one"}, {3, 3}, {8, 8},
	}
	added, err := tr.SetPairs(pairs, true)
	require.NoError(t, err)
	assert.Equal(t, 8, added)

	keys, err := tr.Keys()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, keys)

	sz, err := tr.Size()
	require.NoError(t, err)
	assert.Equal(t, 8, sz)

	assert.NoError(t, tr.CheckValid())

	v, err := tr.Get(6)
	require.NoError(t, err)
	assert.Equal(t, "six", v)
}

func TestTreeDelete(t *testing.T) {
	t.Parallel()

	tr := New[int, int](Ordered[int](), WithFanout(4))
	for i := 0; i < 100; i++ {
		_, err := tr.Set(i, i*10)
		require.NoError(t, err)
	}

	removed, err := tr.Delete(50)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = tr.Delete(50)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = tr.Get(50)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	sz, err := tr.Size()
	require.NoError(t, err)
	assert.Equal(t, 99, sz)

	// Drain the rest and land back on an empty root
	for i := 0; i < 100; i++ {
		_, err := tr.Delete(i)
		require.NoError(t, err)
		require.NoError(t, tr.CheckValid())
	}
	empty, err := tr.IsEmpty()
	require.NoError(t, err)
	assert.True(t, empty)

	h, err := tr.Height()
	require.NoError(t, err)
	assert.Equal(t, 0, h)
}

func TestTreeMinMax(t *testing.T) {
	t.Parallel()

	tr := New[int, string](Ordered[int](), WithFanout(4))

	_, ok, err := tr.MinKey()
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = tr.MaxKey()
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 50; i++ {
		_, err := tr.Set(i, fmt.Sprint(i))
		require.NoError(t, err)
	}

	k, ok, err := tr.MinKey()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, k)

	k, ok, err = tr.MaxKey()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 49, k)

	p, ok, err := tr.MaxPair()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, string]{49, "49"}, p)
}

// Scenario: ceil/floor lookups around and beyond present keys.
func TestTreeNeighborLookups(t *testing.T) {
	t.Parallel()

	tr, err := NewFromPairs(Ordered[int](), []Pair[int, int]{
		{-2, 123}, {0, 1234}, {2, 12345},
	})
	require.NoError(t, err)

	_, ok, err := tr.NextLowerPair(-2)
	require.NoError(t, err)
	assert.False(t, ok)

	p, ok, err := tr.NextLowerPair(-1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, int]{-2, 123}, p)

	p, ok, err = tr.NextHigherPair(-1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, int]{0, 1234}, p)

	// Unbounded forms: the max pair from below, the min pair from above
	p, ok, err = tr.MaxPair()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, int]{2, 12345}, p)

	p, ok, err = tr.MinPair()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, int]{-2, 123}, p)

	p, ok, err = tr.GetPairOrNextLower(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, int]{0, 1234}, p)

	p, ok, err = tr.GetPairOrNextHigher(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Pair[int, int]{2, 12345}, p)

	_, ok, err = tr.NextHigherPair(2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTreeNeighborLookupsDeep(t *testing.T) {
	t.Parallel()

	tr := New[int, int](Ordered[int](), WithFanout(4))
	// Even keys only, so every odd probe lands between pairs
	for i := 0; i < 200; i += 2 {
		_, err := tr.Set(i, i)
		require.NoError(t, err)
	}
	for i := 1; i < 199; i += 2 {
		p, ok, err := tr.NextLowerPair(i)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i-1, p.Key)

		p, ok, err = tr.NextHigherPair(i)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i+1, p.Key)
	}
	for i := 2; i < 198; i += 2 {
		p, ok, err := tr.NextLowerPair(i)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i-2, p.Key)

		p, ok, err = tr.GetPairOrNextHigher(i)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, p.Key)
	}
}

func TestTreeFreeze(t *testing.T) {
	t.Parallel()

	tr := NewOrdered[string, int]()
	_, err := tr.Set("a", 1)
	require.NoError(t, err)

	tr.Freeze()
	assert.True(t, tr.IsFrozen())

	_, err = tr.Set("b", 2)
	assert.ErrorIs(t, err, ErrFrozenTree)
	_, err = tr.Delete("a")
	assert.ErrorIs(t, err, ErrFrozenTree)
	_, err = tr.DeleteRange("a", "z", true)
	assert.ErrorIs(t, err, ErrFrozenTree)
	_, err = tr.EditRange("a", "z", true, func(string, int) (Edit[int], error) {
		return EditKeep[int](), nil
	})
	assert.ErrorIs(t, err, ErrFrozenTree)

	// Reads still work
	v, err := tr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	tr.Unfreeze()
	_, err = tr.Set("b", 2)
	assert.NoError(t, err)
}

func TestTreeUnorderableKey(t *testing.T) {
	t.Parallel()

	tr := NewOrdered[float64, string]()
	_, err := tr.Set(1.5, "ok")
	require.NoError(t, err)

	nan := math.NaN()
	_, err = tr.Set(nan, "bad")
	assert.ErrorIs(t, err, ErrUnorderableKey)
	_, err = tr.Get(nan)
	assert.ErrorIs(t, err, ErrUnorderableKey)
	_, err = tr.Delete(nan)
	assert.ErrorIs(t, err, ErrUnorderableKey)
	_, err = tr.DeleteRange(nan, 2.0, true)
	assert.ErrorIs(t, err, ErrUnorderableKey)

	// Nothing changed structurally
	sz, err := tr.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, sz)
	assert.NoError(t, tr.CheckValid())
}

func TestTreePersistentVariants(t *testing.T) {
	t.Parallel()

	tr, err := NewFromPairs(Ordered[string](), []Pair[string, int]{
		{"a", 1}, {"b", 2}, {"c", 3},
	})
	require.NoError(t, err)

	t2, err := tr.With("d", 4)
	require.NoError(t, err)
	ok, err := t2.Has("d")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = tr.Has("d")
	require.NoError(t, err)
	assert.False(t, ok)

	t3, err := tr.Without("b")
	require.NoError(t, err)
	ok, err = t3.Has("b")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = tr.Has("b")
	require.NoError(t, err)
	assert.True(t, ok)

	t4, err := tr.Filter(func(k string, v int) bool { return v%2 == 1 })
	require.NoError(t, err)
	keys, err := t4.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, keys)

	t5, err := tr.MapValues(func(k string, v int) int { return v * 100 })
	require.NoError(t, err)
	v, err := t5.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 200, v)
	v, err = tr.Get("b")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	t6, err := tr.WithKeys([]string{"a", "x"})
	require.NoError(t, err)
	v, err = t6.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 1, v) // existing binding kept
	ok, err = t6.Has("x")
	require.NoError(t, err)
	assert.True(t, ok)

	t7, err := tr.WithoutRange("a", "b", true)
	require.NoError(t, err)
	keys, err = t7.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, keys)

	// The source never moved
	keys, err = tr.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.NoError(t, tr.CheckValid())
}

func TestTreeFanoutClamp(t *testing.T) {
	t.Parallel()

	tr := New[int, int](Ordered[int](), WithFanout(1))
	assert.Equal(t, MinFanout, tr.fanout)

	tr = New[int, int](Ordered[int](), WithFanout(100000))
	assert.Equal(t, MaxFanout, tr.fanout)

	tr = New[int, int](Ordered[int]())
	assert.Equal(t, DefaultFanout, tr.fanout)
}

func TestTreeHeight(t *testing.T) {
	t.Parallel()

	tr := New[int, int](Ordered[int](), WithFanout(4))
	for i := 0; i < 64; i++ {
		_, err := tr.Set(i, 0)
		require.NoError(t, err)
	}
	h, err := tr.Height()
	require.NoError(t, err)
	assert.Equal(t, 2, h)
	assert.NoError(t, tr.CheckValid())
}

func TestTreeLargeRandomish(t *testing.T) {
	t.Parallel()

	// Deterministic scatter via multiplicative stepping
	tr := New[int, int](Ordered[int](), WithFanout(8))
	const n = 5000
	for i := 0; i < n; i++ {
		k := (i * 2654435761) % 100003
		_, err := tr.Set(k, i)
		require.NoError(t, err)
	}
	require.NoError(t, tr.CheckValid())

	keys, err := tr.Keys()
	require.NoError(t, err)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}

	sz, err := tr.Size()
	require.NoError(t, err)
	assert.Equal(t, len(keys), sz)

	// Delete half and revalidate
	for i := 0; i < n; i += 2 {
		k := (i * 2654435761) % 100003
		_, err := tr.Delete(k)
		require.NoError(t, err)
	}
	require.NoError(t, tr.CheckValid())
}
