package grove

import (
	"errors"
	"reflect"
)

// diffFrame records one branch level of a cursor's descent: the branch node
// and the child index the cursor currently sits under.
type diffFrame[K, V any] struct {
	branch *node[K, V]
	idx    int
}

// diffCursor walks a tree in descending key order. It points either at a
// node (leaf == nil) or at a specific pair inside a leaf. Descending order
// makes the cursor comparable in O(1) through cached max keys.
type diffCursor[K, V any] struct {
	t      *Tree[K, V]
	spine  []diffFrame[K, V]
	cur    *node[K, V]
	curH   *handle[K, V]
	leaf   *node[K, V]
	vidx   int
	key    K
	height int
	done   bool
}

func (t *Tree[K, V]) makeDiffCursor() (*diffCursor[K, V], error) {
	root, err := t.root.get(t)
	if err != nil {
		return nil, err
	}
	height, err := t.Height()
	if err != nil {
		return nil, err
	}
	c := &diffCursor[K, V]{t: t, height: height, vidx: -1}
	if root.count() == 0 {
		c.done = true
		return c, nil
	}
	c.cur, c.curH = root, t.root
	c.key = root.maxKey()
	return c, nil
}

// depth orders cursor positions at equal keys: a deeper position has
// already committed to the pair the shallower one will descend to.
func (c *diffCursor[K, V]) depth() int {
	d := len(c.spine) + 1
	if c.leaf != nil {
		d++
	}
	return d
}

// step advances in descending key order. With toNode set, the current
// subtree is skipped whole and the cursor moves to its previous sibling;
// used when both sides share the current node.
func (c *diffCursor[K, V]) step(toNode bool) error {
	if c.done {
		return nil
	}
	if !toNode && c.leaf == nil {
		// node position: descend, entering a leaf at its last pair
		if c.cur.leaf {
			c.leaf = c.cur
			c.vidx = c.cur.count() - 1
			c.key = c.leaf.keys[c.vidx]
			return nil
		}
		last := len(c.cur.children) - 1
		h := c.cur.children[last]
		n, err := h.get(c.t)
		if err != nil {
			return err
		}
		c.spine = append(c.spine, diffFrame[K, V]{branch: c.cur, idx: last})
		c.cur, c.curH = n, h
		c.key = n.maxKey()
		return nil
	}
	if !toNode && c.vidx > 0 {
		c.vidx--
		c.key = c.leaf.keys[c.vidx]
		return nil
	}
	// leaf exhausted, or the current subtree is being skipped: climb the
	// spine to the nearest remaining left sibling. The position is only
	// replaced on success so a finished cursor keeps its last pair, which
	// the final sweep compares against.
	for lvl := len(c.spine) - 1; lvl >= 0; lvl-- {
		top := &c.spine[lvl]
		if top.idx > 0 {
			top.idx--
			h := top.branch.children[top.idx]
			n, err := h.get(c.t)
			if err != nil {
				return err
			}
			c.spine = c.spine[:lvl+1]
			c.leaf = nil
			c.vidx = -1
			c.cur, c.curH = n, h
			c.key = top.branch.keys[top.idx]
			return nil
		}
	}
	c.done = true
	return nil
}

// compareCursors orders two cursor positions. Both walks are descending,
// so the key comparison is reversed; equal keys are broken by normalized
// depth so concurrent positions zip together across trees of different
// heights. A negative result means a is behind and must advance.
func compareCursors[K, V any](a, b *diffCursor[K, V], cmp Compare[K]) int {
	if kc := cmp(b.key, a.key); kc != 0 {
		return kc
	}
	minHeight := min(a.height, b.height)
	da := a.depth() - (a.height - minHeight)
	db := b.depth() - (b.height - minHeight)
	return da - db
}

// DiffAgainst reports pair-level differences between t and other without
// descending into subtrees the trees share by reference. onlyThis sees
// pairs whose keys exist only in t, onlyOther pairs whose keys exist only
// in other, and different keys present in both with unequal values. Any
// callback may be nil, and any callback may return an error to end the walk
// early; ErrStop is swallowed and reported as success.
//
// Both trees must use the same comparator, and neither may be mutated
// during the walk.
func (t *Tree[K, V]) DiffAgainst(other *Tree[K, V],
	onlyThis func(k K, v V) error,
	onlyOther func(k K, v V) error,
	different func(k K, vThis, vOther V) error,
) error {
	if reflect.ValueOf(t.cmp).Pointer() != reflect.ValueOf(other.cmp).Pointer() {
		return ErrComparatorMismatch
	}
	err := t.diffAgainst(other, onlyThis, onlyOther, different)
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}

func (t *Tree[K, V]) diffAgainst(other *Tree[K, V],
	onlyThis func(k K, v V) error,
	onlyOther func(k K, v V) error,
	different func(k K, vThis, vOther V) error,
) error {
	if t.root == other.root {
		return nil
	}
	tc, err := t.makeDiffCursor()
	if err != nil {
		return err
	}
	oc, err := other.makeDiffCursor()
	if err != nil {
		return err
	}
	prev := compareCursors(tc, oc, t.cmp)
	for !tc.done && !oc.done {
		order := compareCursors(tc, oc, t.cmp)
		if tc.leaf != nil || oc.leaf != nil {
			// if the cursors tied last step, the current pair was already
			// consumed there; emitting again would duplicate it
			if prev != 0 {
				switch {
				case order == 0:
					if tc.leaf != nil && oc.leaf != nil && different != nil {
						vt := tc.leaf.val(tc.vidx)
						vo := oc.leaf.val(oc.vidx)
						if !reflect.DeepEqual(vt, vo) {
							if err := different(tc.key, vt, vo); err != nil {
								return err
							}
						}
					}
				case order > 0:
					if oc.leaf != nil && onlyOther != nil {
						if err := onlyOther(oc.key, oc.leaf.val(oc.vidx)); err != nil {
							return err
						}
					}
				default:
					if tc.leaf != nil && onlyThis != nil {
						if err := onlyThis(tc.key, tc.leaf.val(tc.vidx)); err != nil {
							return err
						}
					}
				}
			}
		} else if order == 0 && tc.curH == oc.curH {
			// identical node on both sides: skip the whole subtree
			prev = 0
			if err := tc.step(true); err != nil {
				return err
			}
			if err := oc.step(true); err != nil {
				return err
			}
			continue
		}
		prev = order
		if order < 0 {
			if err := tc.step(false); err != nil {
				return err
			}
		} else {
			if err := oc.step(false); err != nil {
				return err
			}
		}
	}
	if !tc.done && onlyThis != nil {
		return t.finishDiffWalk(tc, oc, onlyThis)
	}
	if !oc.done && onlyOther != nil {
		return t.finishDiffWalk(oc, tc, onlyOther)
	}
	return nil
}

// finishDiffWalk drains the unfinished cursor, emitting every remaining
// pair through the corresponding only- callback.
func (t *Tree[K, V]) finishDiffWalk(c, fin *diffCursor[K, V], emit func(k K, v V) error) error {
	if compareCursors(c, fin, t.cmp) == 0 {
		// the finished cursor consumed the current pair as a tie
		if err := c.step(false); err != nil {
			return err
		}
	}
	for !c.done {
		if c.leaf != nil {
			if err := emit(c.key, c.leaf.val(c.vidx)); err != nil {
				return err
			}
		}
		if err := c.step(false); err != nil {
			return err
		}
	}
	return nil
}
