// Package objects implements the session object model: Session (the
// concrete event producer), SessionProxy (the splitting facade handed to
// callers), and SessionCreator (session-identifier assignment). Sessions
// satisfy communication.ManagedSession structurally so the sender and
// watchdog can operate on them; this package imports communication and
// watchdog, and neither of those imports this one.
package objects

import "sync"

// NodeHandle is a stable reference into a Composite: an index plus a
// generation counter. Closing a node bumps its generation, so a stale
// handle from before a close (or before the slot was reused) is detected
// and rejected rather than silently operating on the wrong child — the
// arena-of-indices design used in place of a shared_ptr parent/child tree
// (spec.md §9 design note).
type NodeHandle struct {
	index      int32
	generation int32
}

type compositeNode struct {
	generation int32
	open       bool
}

// Composite tracks a set of open child objects (the actions open under a
// session) without pointer-chasing: slots are reused via a
// free list, and every live handle's generation must match its slot's
// current generation.
type Composite struct {
	mu        sync.Mutex
	nodes      []compositeNode
	freeList   []int32
	openCount  int32
}

// NewComposite returns an empty composite.
func NewComposite() *Composite {
	return &Composite{}
}

// Open allocates a new child handle and marks it open.
func (c *Composite) Open() NodeHandle {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.openCount++
	if n := len(c.freeList); n > 0 {
		idx := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		c.nodes[idx].open = true
		return NodeHandle{index: idx, generation: c.nodes[idx].generation}
	}

	idx := int32(len(c.nodes))
	c.nodes = append(c.nodes, compositeNode{generation: 0, open: true})
	return NodeHandle{index: idx, generation: 0}
}

// Close marks h closed if it is still the live occupant of its slot.
// Returns false for an already-closed or stale (reused-slot) handle.
func (c *Composite) Close(h NodeHandle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h.index < 0 || int(h.index) >= len(c.nodes) {
		return false
	}
	n := &c.nodes[h.index]
	if !n.open || n.generation != h.generation {
		return false
	}
	n.open = false
	n.generation++
	c.freeList = append(c.freeList, h.index)
	c.openCount--
	return true
}

// OpenCount reports how many children are currently open.
func (c *Composite) OpenCount() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openCount
}

// IsEmpty reports whether every child has been closed.
func (c *Composite) IsEmpty() bool {
	return c.OpenCount() == 0
}
