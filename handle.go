package grove

import (
	"fmt"
	"slices"
)

// handle is the indirection between a parent slot and a node. It is in one
// of three states: loaded and never saved (n set, id empty), loaded and
// saved (n set, id holds the content hash recorded at the last load or
// commit), or unloaded (id only; the node is fetched from the blob store on
// first access).
//
// shared marks a handle reachable from more than one tree or parent slot;
// mutators clone the node before touching it and leave the original alone.
type handle[K, V any] struct {
	n      *node[K, V]
	id     string
	shared bool
}

func newHandle[K, V any](n *node[K, V]) *handle[K, V] {
	return &handle[K, V]{n: n}
}

// idHandle wraps a content id without fetching anything. Store-resident
// nodes are canonical, so the handle starts shared and edits copy on write.
func idHandle[K, V any](id string) *handle[K, V] {
	return &handle[K, V]{id: id, shared: true}
}

// get returns the node, fetching and decoding its blob on first access.
func (h *handle[K, V]) get(t *Tree[K, V]) (*node[K, V], error) {
	if h.n != nil {
		return h.n, nil
	}
	if t.store == nil {
		return nil, ErrNoStore
	}
	data, err := t.store.Get(h.id)
	if err != nil {
		return nil, err
	}
	n, err := decodeNode[K, V](t.cmp, data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", h.id, err)
	}
	h.n = n
	return n, nil
}

// save commits the subtree depth-first and returns this node's content id.
// Unloaded handles are already saved by identity; loaded nodes are written
// only when their content hash moved since the last load or commit.
func (h *handle[K, V]) save(t *Tree[K, V]) (string, error) {
	if h.n == nil {
		return h.id, nil
	}
	var childIDs []string
	if !h.n.leaf {
		childIDs = make([]string, len(h.n.children))
		for i, c := range h.n.children {
			id, err := c.save(t)
			if err != nil {
				return "", err
			}
			childIDs[i] = id
		}
	}
	data, err := encodeNode(h.n, childIDs)
	if err != nil {
		return "", err
	}
	id := contentID(data)
	if id == h.id {
		return id, nil
	}
	ok, err := t.store.Contains(id)
	if err != nil {
		return "", err
	}
	if !ok {
		if err := t.store.Put(id, data); err != nil {
			return "", err
		}
	}
	h.id = id
	return id, nil
}

// greedy deep-copies the subtree for GreedyClone, stopping at nodes that
// are already shared unless force is set. Unloaded handles are saved by
// identity and reused as-is.
func (h *handle[K, V]) greedy(force bool) *handle[K, V] {
	if h.n == nil || (h.shared && !force) {
		return h
	}
	c := &node[K, V]{leaf: h.n.leaf, keys: slices.Clone(h.n.keys)}
	if h.n.leaf {
		c.vals = slices.Clone(h.n.vals)
	} else {
		c.children = make([]*handle[K, V], len(h.n.children))
		for i, ch := range h.n.children {
			c.children[i] = ch.greedy(force)
		}
	}
	return &handle[K, V]{n: c, id: h.id}
}
