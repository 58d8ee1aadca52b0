package alloc

import (
	"github.com/outofforest/mass"
)

// NewPool creates new node pool for a single node class.
func NewPool[T any](capacity uint64) *Pool[T] {
	return &Pool[T]{
		mass: mass.New[T](capacity),
		free: make([]*T, 0, capacity),
	}
}

// Pool allocates and recycles nodes of one class. Fresh nodes come from mass
// slabs, recycled ones from the free list. The slabs keep every node handed
// out reachable, so a node stays valid until its owner deallocates it.
type Pool[T any] struct {
	mass *mass.Mass[T]
	free []*T

	used uint64
}

// Allocate returns a zeroed node.
func (p *Pool[T]) Allocate() *T {
	p.used++
	if len(p.free) > 0 {
		n := p.free[len(p.free)-1]
		p.free = p.free[:len(p.free)-1]
		return n
	}
	return p.mass.New()
}

// Deallocate returns the node to the pool. The node is zeroed immediately so
// values it held don't outlive it.
func (p *Pool[T]) Deallocate(n *T) {
	if n == nil {
		return
	}

	var zero T
	*n = zero

	p.used--
	p.free = append(p.free, n)
}

// Used returns the number of nodes currently handed out.
func (p *Pool[T]) Used() uint64 {
	return p.used
}
