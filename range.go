package grove

// Edit is a directive returned by an EditRange visitor for the pair just
// visited. Directives combine: EditSet(v).Stop() replaces the value and
// ends the scan, EditDelete[V]().Stop() removes the pair and ends the scan.
type Edit[V any] struct {
	replace bool
	value   V
	del     bool
	stop    bool
}

// EditKeep leaves the pair unchanged.
func EditKeep[V any]() Edit[V] {
	return Edit[V]{}
}

// EditSet replaces the current pair's value.
func EditSet[V any](v V) Edit[V] {
	return Edit[V]{replace: true, value: v}
}

// EditDelete removes the current pair.
func EditDelete[V any]() Edit[V] {
	return Edit[V]{del: true}
}

// EditStop ends the traversal after the current pair.
func EditStop[V any]() Edit[V] {
	return Edit[V]{stop: true}
}

// Stop ends the traversal after this directive is applied.
func (e Edit[V]) Stop() Edit[V] {
	e.stop = true
	return e
}

func (t *Tree[K, V]) checkRange(lo, hi K) error {
	if err := t.checkKey(lo); err != nil {
		return err
	}
	if err := t.checkKey(hi); err != nil {
		return err
	}
	if t.cmp(lo, hi) > 0 {
		return ErrInvalidRange
	}
	return nil
}

// GetRange returns ascending pairs in [lo, hi) or [lo, hi]; maxLen <= 0
// means no limit.
func (t *Tree[K, V]) GetRange(lo, hi K, includeHi bool, maxLen int) ([]Pair[K, V], error) {
	var out []Pair[K, V]
	_, err := t.ForRange(lo, hi, includeHi, func(k K, v V) bool {
		out = append(out, Pair[K, V]{k, v})
		return maxLen <= 0 || len(out) < maxLen
	})
	return out, err
}

// ForRange visits pairs in [lo, hi) or [lo, hi] in ascending order; the
// visitor returns false to stop early. Returns the number of pairs visited.
// The visitor must not mutate the tree.
func (t *Tree[K, V]) ForRange(lo, hi K, includeHi bool, fn func(k K, v V) bool) (int, error) {
	if err := t.checkRange(lo, hi); err != nil {
		return 0, err
	}
	n, err := t.root.get(t)
	if err != nil {
		return 0, err
	}
	count := 0
	_, err = t.walk(n, lo, hi, includeHi, false, func(k K, v V) (Edit[V], error) {
		if !fn(k, v) {
			return EditStop[V](), nil
		}
		return EditKeep[V](), nil
	}, &count)
	return count, err
}

// EditRange visits pairs in [lo, hi) or [lo, hi] in ascending order and
// applies each returned directive. The visitor must not mutate the tree out
// of band; a detected key mutation aborts the scan with ErrIllegalEdit.
// Returns the number of pairs visited.
func (t *Tree[K, V]) EditRange(lo, hi K, includeHi bool, fn func(k K, v V) (Edit[V], error)) (int, error) {
	if err := t.mutable(); err != nil {
		return 0, err
	}
	return t.editRange(lo, hi, includeHi, fn)
}

// DeleteRange removes every pair in [lo, hi) or [lo, hi], returning how
// many were removed.
func (t *Tree[K, V]) DeleteRange(lo, hi K, includeHi bool) (int, error) {
	if err := t.mutable(); err != nil {
		return 0, err
	}
	return t.editRange(lo, hi, includeHi, func(K, V) (Edit[V], error) {
		return EditDelete[V](), nil
	})
}

func (t *Tree[K, V]) editRange(lo, hi K, includeHi bool, fn func(k K, v V) (Edit[V], error)) (int, error) {
	if err := t.checkRange(lo, hi); err != nil {
		return 0, err
	}
	n, err := t.writableRoot()
	if err != nil {
		return 0, err
	}
	count := 0
	_, err = t.walk(n, lo, hi, includeHi, true, fn, &count)
	if cerr := t.collapseRoot(); cerr != nil && err == nil {
		err = cerr
	}
	return count, err
}

// walk is the single recursive traversal behind ForRange, EditRange, and
// DeleteRange. It reports whether the visitor stopped the scan.
func (t *Tree[K, V]) walk(n *node[K, V], lo, hi K, includeHi, edit bool, fn func(K, V) (Edit[V], error), count *int) (bool, error) {
	if n.leaf {
		return t.walkLeaf(n, lo, hi, includeHi, edit, fn, count)
	}
	iLow, _ := n.search(t.cmp, lo)
	iHigh, _ := n.search(t.cmp, hi)
	if iHigh > len(n.children)-1 {
		iHigh = len(n.children) - 1
	}
	if !edit {
		for i := iLow; i <= iHigh; i++ {
			c, err := n.children[i].get(t)
			if err != nil {
				return true, err
			}
			stop, err := t.walk(c, lo, hi, includeHi, edit, fn, count)
			if stop || err != nil {
				return stop, err
			}
		}
		return false, nil
	}
	var stop bool
	var err error
	for i := iLow; i <= iHigh; i++ {
		var c *node[K, V]
		if c, err = n.writableChild(t, i); err != nil {
			stop = true
			break
		}
		stop, err = t.walk(c, lo, hi, includeHi, edit, fn, count)
		if c.count() > 0 {
			n.keys[i] = c.maxKey()
		}
		if stop || err != nil {
			break
		}
	}
	// deletions may have occurred; drop emptied children and merge the
	// shrunken ones
	half := t.fanout / 2
	from := iLow
	if from > 0 {
		from--
	}
	for i := min(iHigh, len(n.children)-1); i >= from; i-- {
		c := n.children[i].n
		if c == nil {
			// untouched lazy child, nothing shrank here
			continue
		}
		if c.count() > half {
			continue
		}
		if c.count() == 0 {
			n.keys = removeAt(n.keys, i)
			n.children = removeAt(n.children, i)
			continue
		}
		if _, merr := n.tryMerge(t, i); merr != nil && err == nil {
			stop, err = true, merr
		}
	}
	return stop, err
}

func (t *Tree[K, V]) walkLeaf(n *node[K, V], lo, hi K, includeHi, edit bool, fn func(K, V) (Edit[V], error), count *int) (bool, error) {
	iLow, _ := n.search(t.cmp, lo)
	iHigh, foundHi := n.search(t.cmp, hi)
	if foundHi && includeHi {
		iHigh++
	}
	for i := iLow; i < iHigh; i++ {
		k := n.keys[i]
		dir, err := fn(k, n.val(i))
		if err != nil {
			return true, err
		}
		*count++
		if edit && (dir.replace || dir.del) {
			if i >= n.count() || t.cmp(n.keys[i], k) != 0 {
				return true, ErrIllegalEdit
			}
			if dir.replace {
				n.setVal(i, dir.value)
			}
			if dir.del {
				n.removePair(i)
				t.size--
				i--
				iHigh--
			}
		}
		if dir.stop {
			return true, nil
		}
	}
	return false, nil
}

// collapseRoot unrolls single-child roots left behind by an edit sweep.
func (t *Tree[K, V]) collapseRoot() error {
	for {
		n, err := t.root.get(t)
		if err != nil {
			return err
		}
		if n.leaf || len(n.children) > 1 {
			return nil
		}
		if len(n.children) == 0 {
			t.root = newHandle(newLeaf[K, V]())
			return nil
		}
		child := n.children[0]
		if t.root.shared {
			child.shared = true
		}
		t.root = child
	}
}
