package grove

import (
	"cmp"
	"errors"
	"fmt"
)

// Pair is one key-value binding.
type Pair[K, V any] struct {
	Key   K
	Value V
}

// Tree is an ordered key-value container: an in-memory B+ tree with O(1)
// copy-on-write cloning and optional content-addressed persistence.
//
// A tree is owned by one goroutine at a time; the caller serializes
// operations on a single tree. Distinct trees, including clones, are
// independent after Clone returns.
//
// When a blob store is attached, keys and values must round-trip through
// encoding/json for Commit and Load to work.
type Tree[K, V any] struct {
	root   *handle[K, V]
	size   int
	sizeOK bool
	cmp    Compare[K]
	fanout int
	frozen bool
	store  BlobStore
	log    Logger
}

// New creates an empty tree ordered by c.
func New[K, V any](c Compare[K], opts ...Option) *Tree[K, V] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Tree[K, V]{
		root:   newHandle(newLeaf[K, V]()),
		sizeOK: true,
		cmp:    c,
		fanout: o.fanout,
		store:  o.store,
		log:    o.logger,
	}
}

// NewOrdered creates an empty tree over a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any](opts ...Option) *Tree[K, V] {
	return New[K, V](Ordered[K](), opts...)
}

// NewFromPairs creates a tree holding pairs.
func NewFromPairs[K, V any](c Compare[K], pairs []Pair[K, V], opts ...Option) (*Tree[K, V], error) {
	t := New[K, V](c, opts...)
	if _, err := t.SetPairs(pairs, true); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree[K, V]) checkKey(k K) error {
	if t.cmp(k, k) != 0 {
		return ErrUnorderableKey
	}
	return nil
}

func (t *Tree[K, V]) mutable() error {
	if t.frozen {
		return ErrFrozenTree
	}
	return nil
}

// writableRoot loads the root, cloning it first when it is shared.
func (t *Tree[K, V]) writableRoot() (*node[K, V], error) {
	n, err := t.root.get(t)
	if err != nil {
		return nil, err
	}
	if t.root.shared {
		n = n.clone()
		t.root = newHandle(n)
	}
	return n, nil
}

// Get returns the value bound to k, or ErrKeyNotFound.
func (t *Tree[K, V]) Get(k K) (V, error) {
	var zero V
	if err := t.checkKey(k); err != nil {
		return zero, err
	}
	n, err := t.root.get(t)
	if err != nil {
		return zero, err
	}
	for !n.leaf {
		i, _ := n.search(t.cmp, k)
		if i == len(n.children) {
			return zero, ErrKeyNotFound
		}
		if n, err = n.children[i].get(t); err != nil {
			return zero, err
		}
	}
	i, found := n.search(t.cmp, k)
	if !found {
		return zero, ErrKeyNotFound
	}
	return n.val(i), nil
}

// GetOr returns the value bound to k, or def when k is absent.
func (t *Tree[K, V]) GetOr(k K, def V) (V, error) {
	v, err := t.Get(k)
	if errors.Is(err, ErrKeyNotFound) {
		return def, nil
	}
	return v, err
}

// Has reports whether k is present.
func (t *Tree[K, V]) Has(k K) (bool, error) {
	_, err := t.Get(k)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// Set binds v to k, replacing any existing binding (the stored key is
// replaced too, permitting key edits that preserve sort order). Reports
// whether a new pair was added.
func (t *Tree[K, V]) Set(k K, v V) (bool, error) {
	return t.set(k, v, true)
}

// SetIfAbsent binds v to k only when k is not already present.
func (t *Tree[K, V]) SetIfAbsent(k K, v V) (bool, error) {
	return t.set(k, v, false)
}

func (t *Tree[K, V]) set(k K, v V, overwrite bool) (bool, error) {
	if err := t.mutable(); err != nil {
		return false, err
	}
	if err := t.checkKey(k); err != nil {
		return false, err
	}
	n, err := t.writableRoot()
	if err != nil {
		return false, err
	}
	added, split, err := n.set(t, k, v, overwrite)
	if err != nil {
		return false, err
	}
	if split != nil {
		// the root split; grow the tree upward
		left := t.root
		t.root = newHandle(&node[K, V]{
			keys:     []K{n.maxKey(), split.n.maxKey()},
			children: []*handle[K, V]{left, split},
		})
	}
	if added {
		t.size++
	}
	return added, nil
}

// SetPairs inserts pairs in order, returning how many were added.
func (t *Tree[K, V]) SetPairs(pairs []Pair[K, V], overwrite bool) (int, error) {
	added := 0
	for _, p := range pairs {
		ok, err := t.set(p.Key, p.Value, overwrite)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// Delete removes k, reporting whether a pair was removed.
func (t *Tree[K, V]) Delete(k K) (bool, error) {
	if err := t.mutable(); err != nil {
		return false, err
	}
	if err := t.checkKey(k); err != nil {
		return false, err
	}
	removed := false
	_, err := t.editRange(k, k, true, func(K, V) (Edit[V], error) {
		removed = true
		return EditDelete[V](), nil
	})
	return removed, err
}

// MinKey returns the smallest key.
func (t *Tree[K, V]) MinKey() (K, bool, error) {
	p, ok, err := t.MinPair()
	return p.Key, ok, err
}

// MaxKey returns the largest key in O(1) via the root's cached max.
func (t *Tree[K, V]) MaxKey() (K, bool, error) {
	var zero K
	n, err := t.root.get(t)
	if err != nil {
		return zero, false, err
	}
	if n.count() == 0 {
		return zero, false, nil
	}
	return n.maxKey(), true, nil
}

// MinPair returns the pair with the smallest key.
func (t *Tree[K, V]) MinPair() (Pair[K, V], bool, error) {
	n, err := t.root.get(t)
	if err != nil {
		return Pair[K, V]{}, false, err
	}
	return t.minPairNode(n)
}

// MaxPair returns the pair with the largest key.
func (t *Tree[K, V]) MaxPair() (Pair[K, V], bool, error) {
	n, err := t.root.get(t)
	if err != nil {
		return Pair[K, V]{}, false, err
	}
	return t.maxPairNode(n)
}

func (t *Tree[K, V]) minPairNode(n *node[K, V]) (Pair[K, V], bool, error) {
	for !n.leaf {
		var err error
		if n, err = n.children[0].get(t); err != nil {
			return Pair[K, V]{}, false, err
		}
	}
	if n.count() == 0 {
		return Pair[K, V]{}, false, nil
	}
	return Pair[K, V]{n.keys[0], n.val(0)}, true, nil
}

func (t *Tree[K, V]) maxPairNode(n *node[K, V]) (Pair[K, V], bool, error) {
	for !n.leaf {
		var err error
		if n, err = n.children[len(n.children)-1].get(t); err != nil {
			return Pair[K, V]{}, false, err
		}
	}
	if n.count() == 0 {
		return Pair[K, V]{}, false, nil
	}
	last := n.count() - 1
	return Pair[K, V]{n.keys[last], n.val(last)}, true, nil
}

// GetPairOrNextLower returns the pair at k, or the nearest pair below it.
func (t *Tree[K, V]) GetPairOrNextLower(k K) (Pair[K, V], bool, error) {
	return t.floor(k, false)
}

// NextLowerPair returns the nearest pair strictly below k.
func (t *Tree[K, V]) NextLowerPair(k K) (Pair[K, V], bool, error) {
	return t.floor(k, true)
}

// GetPairOrNextHigher returns the pair at k, or the nearest pair above it.
func (t *Tree[K, V]) GetPairOrNextHigher(k K) (Pair[K, V], bool, error) {
	return t.ceil(k, false)
}

// NextHigherPair returns the nearest pair strictly above k.
func (t *Tree[K, V]) NextHigherPair(k K) (Pair[K, V], bool, error) {
	return t.ceil(k, true)
}

func (t *Tree[K, V]) floor(k K, strict bool) (Pair[K, V], bool, error) {
	if err := t.checkKey(k); err != nil {
		return Pair[K, V]{}, false, err
	}
	n, err := t.root.get(t)
	if err != nil {
		return Pair[K, V]{}, false, err
	}
	return t.floorNode(n, k, strict)
}

func (t *Tree[K, V]) floorNode(n *node[K, V], k K, strict bool) (Pair[K, V], bool, error) {
	if n.leaf {
		i, found := n.search(t.cmp, k)
		if found && !strict {
			return Pair[K, V]{n.keys[i], n.val(i)}, true, nil
		}
		if i > 0 {
			return Pair[K, V]{n.keys[i-1], n.val(i-1)}, true, nil
		}
		return Pair[K, V]{}, false, nil
	}
	i, _ := n.search(t.cmp, k)
	if i == len(n.children) {
		// every key sits below k; the floor is in the last child
		i--
	}
	c, err := n.children[i].get(t)
	if err != nil {
		return Pair[K, V]{}, false, err
	}
	p, ok, err := t.floorNode(c, k, strict)
	if err != nil || ok {
		return p, ok, err
	}
	// nothing at or below k under child i; the previous child's max is it
	if i > 0 {
		c, err := n.children[i-1].get(t)
		if err != nil {
			return Pair[K, V]{}, false, err
		}
		return t.maxPairNode(c)
	}
	return Pair[K, V]{}, false, nil
}

func (t *Tree[K, V]) ceil(k K, strict bool) (Pair[K, V], bool, error) {
	if err := t.checkKey(k); err != nil {
		return Pair[K, V]{}, false, err
	}
	n, err := t.root.get(t)
	if err != nil {
		return Pair[K, V]{}, false, err
	}
	return t.ceilNode(n, k, strict)
}

func (t *Tree[K, V]) ceilNode(n *node[K, V], k K, strict bool) (Pair[K, V], bool, error) {
	if n.leaf {
		i, found := n.search(t.cmp, k)
		if found && strict {
			i++
		}
		if i < n.count() {
			return Pair[K, V]{n.keys[i], n.val(i)}, true, nil
		}
		return Pair[K, V]{}, false, nil
	}
	i, _ := n.search(t.cmp, k)
	if i == len(n.children) {
		return Pair[K, V]{}, false, nil
	}
	c, err := n.children[i].get(t)
	if err != nil {
		return Pair[K, V]{}, false, err
	}
	p, ok, err := t.ceilNode(c, k, strict)
	if err != nil || ok {
		return p, ok, err
	}
	// k was child i's max and strict is set; the next child's min is it
	if i+1 < len(n.children) {
		c, err := n.children[i+1].get(t)
		if err != nil {
			return Pair[K, V]{}, false, err
		}
		return t.minPairNode(c)
	}
	return Pair[K, V]{}, false, nil
}

// Clone returns an O(1) copy sharing every node with t. Both trees stay
// mutable; edits copy nodes along the touched paths only.
func (t *Tree[K, V]) Clone() *Tree[K, V] {
	t.root.shared = true
	c := *t
	c.frozen = false
	return &c
}

// GreedyClone eagerly duplicates every node that is not already shared
// (every loaded node when force is set), so later edits on either tree
// avoid shared-flag propagation.
func (t *Tree[K, V]) GreedyClone(force bool) *Tree[K, V] {
	c := *t
	c.frozen = false
	c.root = t.root.greedy(force)
	return &c
}

// With returns an edited clone; t is unchanged.
func (t *Tree[K, V]) With(k K, v V) (*Tree[K, V], error) {
	c := t.Clone()
	if _, err := c.Set(k, v); err != nil {
		return nil, err
	}
	return c, nil
}

// WithPairs returns a clone holding pairs in addition to t's content.
func (t *Tree[K, V]) WithPairs(pairs []Pair[K, V], overwrite bool) (*Tree[K, V], error) {
	c := t.Clone()
	if _, err := c.SetPairs(pairs, overwrite); err != nil {
		return nil, err
	}
	return c, nil
}

// WithKeys returns a clone where every key in ks is present; keys that were
// absent are bound to the zero value.
func (t *Tree[K, V]) WithKeys(ks []K) (*Tree[K, V], error) {
	c := t.Clone()
	var zero V
	for _, k := range ks {
		if _, err := c.set(k, zero, false); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Without returns a clone with k removed.
func (t *Tree[K, V]) Without(k K) (*Tree[K, V], error) {
	c := t.Clone()
	if _, err := c.Delete(k); err != nil {
		return nil, err
	}
	return c, nil
}

// WithoutKeys returns a clone with every key in ks removed.
func (t *Tree[K, V]) WithoutKeys(ks []K) (*Tree[K, V], error) {
	c := t.Clone()
	for _, k := range ks {
		if _, err := c.Delete(k); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WithoutRange returns a clone with [lo, hi) or [lo, hi] removed.
func (t *Tree[K, V]) WithoutRange(lo, hi K, includeHi bool) (*Tree[K, V], error) {
	c := t.Clone()
	if _, err := c.DeleteRange(lo, hi, includeHi); err != nil {
		return nil, err
	}
	return c, nil
}

// Filter returns a clone keeping only pairs for which pred holds.
func (t *Tree[K, V]) Filter(pred func(k K, v V) bool) (*Tree[K, V], error) {
	c := t.Clone()
	err := c.editAll(func(k K, v V) (Edit[V], error) {
		if pred(k, v) {
			return EditKeep[V](), nil
		}
		return EditDelete[V](), nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// MapValues returns a clone with every value replaced by f's result.
func (t *Tree[K, V]) MapValues(f func(k K, v V) V) (*Tree[K, V], error) {
	c := t.Clone()
	err := c.editAll(func(k K, v V) (Edit[V], error) {
		return EditSet(f(k, v)), nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// editAll runs an edit scan over the full key range.
func (t *Tree[K, V]) editAll(fn func(k K, v V) (Edit[V], error)) error {
	lo, ok, err := t.MinKey()
	if err != nil || !ok {
		return err
	}
	hi, _, err := t.MaxKey()
	if err != nil {
		return err
	}
	_, err = t.editRange(lo, hi, true, fn)
	return err
}

// Freeze makes every mutating call fail with ErrFrozenTree until Unfreeze.
func (t *Tree[K, V]) Freeze() {
	t.frozen = true
}

// Unfreeze restores mutability.
func (t *Tree[K, V]) Unfreeze() {
	t.frozen = false
}

// IsFrozen reports whether the tree rejects mutations.
func (t *Tree[K, V]) IsFrozen() bool {
	return t.frozen
}

// Size returns the number of pairs. After Load the count is unknown until
// the first call, which recomputes it with one full scan.
func (t *Tree[K, V]) Size() (int, error) {
	if !t.sizeOK {
		n, err := t.countNode(t.root)
		if err != nil {
			return 0, err
		}
		t.size, t.sizeOK = n, true
	}
	return t.size, nil
}

func (t *Tree[K, V]) countNode(h *handle[K, V]) (int, error) {
	n, err := h.get(t)
	if err != nil {
		return 0, err
	}
	if n.leaf {
		return n.count(), nil
	}
	total := 0
	for _, c := range n.children {
		sub, err := t.countNode(c)
		if err != nil {
			return 0, err
		}
		total += sub
	}
	return total, nil
}

// IsEmpty reports whether the tree holds no pairs.
func (t *Tree[K, V]) IsEmpty() (bool, error) {
	n, err := t.root.get(t)
	if err != nil {
		return false, err
	}
	return n.leaf && n.count() == 0, nil
}

// Height returns the number of levels below the root.
func (t *Tree[K, V]) Height() (int, error) {
	h := 0
	n, err := t.root.get(t)
	if err != nil {
		return 0, err
	}
	for !n.leaf {
		if n, err = n.children[0].get(t); err != nil {
			return 0, err
		}
		h++
	}
	return h, nil
}

// Keys returns every key in ascending order.
func (t *Tree[K, V]) Keys() ([]K, error) {
	var out []K
	_, err := t.ForEach(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out, err
}

// Values returns every value in ascending key order.
func (t *Tree[K, V]) Values() ([]V, error) {
	var out []V
	_, err := t.ForEach(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})
	return out, err
}

// Pairs returns every pair in ascending key order.
func (t *Tree[K, V]) Pairs() ([]Pair[K, V], error) {
	var out []Pair[K, V]
	_, err := t.ForEach(func(k K, v V) bool {
		out = append(out, Pair[K, V]{k, v})
		return true
	})
	return out, err
}

// ForEach visits every pair in ascending order; the visitor returns false
// to stop early. Returns the number of pairs visited.
func (t *Tree[K, V]) ForEach(fn func(k K, v V) bool) (int, error) {
	lo, ok, err := t.MinKey()
	if err != nil || !ok {
		return 0, err
	}
	hi, _, err := t.MaxKey()
	if err != nil {
		return 0, err
	}
	return t.ForRange(lo, hi, true, fn)
}

// Commit writes every loaded node whose content changed since its last load
// or commit, then returns the root's content id.
func (t *Tree[K, V]) Commit() (string, error) {
	if t.store == nil {
		return "", ErrNoStore
	}
	id, err := t.root.save(t)
	if err != nil {
		return "", err
	}
	t.log.Info("committed tree", "root", id)
	return id, nil
}

// Load points the tree at a committed root id without fetching anything;
// nodes materialize lazily as they are touched. The pair count is unknown
// until the next Size call recomputes it.
func (t *Tree[K, V]) Load(id string) error {
	if t.store == nil {
		return ErrNoStore
	}
	if err := t.mutable(); err != nil {
		return err
	}
	t.root = idHandle[K, V](id)
	t.size = 0
	t.sizeOK = false
	t.log.Info("loaded tree root", "root", id)
	return nil
}

// CheckValid verifies per-node invariants: key order, max-key caches,
// uniform child variants, fanout bounds, and the pair count. It loads the
// whole tree.
func (t *Tree[K, V]) CheckValid() error {
	n, err := t.root.get(t)
	if err != nil {
		return err
	}
	count, err := t.checkNode(n, true)
	if err != nil {
		return err
	}
	if t.sizeOK && count != t.size {
		return fmt.Errorf("tree size %d does not match pair count %d", t.size, count)
	}
	return nil
}

func (t *Tree[K, V]) checkNode(n *node[K, V], isRoot bool) (int, error) {
	if len(n.keys) > t.fanout {
		return 0, fmt.Errorf("node has %d keys, fanout is %d", len(n.keys), t.fanout)
	}
	for i := 1; i < len(n.keys); i++ {
		if t.cmp(n.keys[i-1], n.keys[i]) >= 0 {
			return 0, fmt.Errorf("keys out of order at index %d", i)
		}
	}
	if n.leaf {
		if n.vals != nil && len(n.vals) != len(n.keys) {
			return 0, fmt.Errorf("%d values for %d keys", len(n.vals), len(n.keys))
		}
		if !isRoot && n.count() == 0 {
			return 0, fmt.Errorf("empty non-root leaf")
		}
		return n.count(), nil
	}
	if len(n.children) != len(n.keys) {
		return 0, fmt.Errorf("%d children for %d max-keys", len(n.children), len(n.keys))
	}
	if len(n.children) == 0 || (!isRoot && len(n.children) < 1) {
		return 0, fmt.Errorf("branch with no children")
	}
	total := 0
	leaves, branches := 0, 0
	for i, c := range n.children {
		cn, err := c.get(t)
		if err != nil {
			return 0, err
		}
		if cn.leaf {
			leaves++
		} else {
			branches++
		}
		if cn.count() == 0 {
			return 0, fmt.Errorf("empty child at index %d", i)
		}
		if t.cmp(n.keys[i], cn.maxKey()) != 0 {
			return 0, fmt.Errorf("stale max-key cache at index %d", i)
		}
		sub, err := t.checkNode(cn, false)
		if err != nil {
			return 0, err
		}
		total += sub
	}
	if leaves != 0 && branches != 0 {
		return 0, fmt.Errorf("mixed child variants")
	}
	return total, nil
}

// String renders a compact summary for debugging.
func (t *Tree[K, V]) String() string {
	return fmt.Sprintf("grove.Tree(size=%d, fanout=%d, frozen=%v)", t.size, t.fanout, t.frozen)
}
