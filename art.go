package art

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/outofforest/art/alloc"
	"github.com/outofforest/art/types"
)

// Config stores tree configuration.
type Config struct {
	LeafPoolCapacity    uint64
	Node4PoolCapacity   uint64
	Node16PoolCapacity  uint64
	Node48PoolCapacity  uint64
	Node256PoolCapacity uint64
}

// DefaultConfig is the tree configuration giving sensible pool sizes for
// general workloads.
var DefaultConfig = Config{
	LeafPoolCapacity:    1024,
	Node4PoolCapacity:   1024,
	Node16PoolCapacity:  1024,
	Node48PoolCapacity:  512,
	Node256PoolCapacity: 256,
}

// New creates new adaptive radix tree storing values of type V under byte
// string keys.
func New[V any](config Config) (*Tree[V], error) {
	for _, capacity := range []uint64{
		config.LeafPoolCapacity,
		config.Node4PoolCapacity,
		config.Node16PoolCapacity,
		config.Node48PoolCapacity,
		config.Node256PoolCapacity,
	} {
		if capacity == 0 {
			return nil, errors.New("pool capacity must be positive")
		}
	}

	return &Tree[V]{
		leafPool:    alloc.NewPool[nodeLeaf[V]](config.LeafPoolCapacity),
		node4Pool:   alloc.NewPool[node4](config.Node4PoolCapacity),
		node16Pool:  alloc.NewPool[node16](config.Node16PoolCapacity),
		node48Pool:  alloc.NewPool[node48](config.Node48PoolCapacity),
		node256Pool: alloc.NewPool[node256](config.Node256PoolCapacity),
	}, nil
}

// Tree is an adaptive radix tree mapping byte string keys to values of type
// V. Inner nodes adapt their fan-out to the number of children and compress
// unary paths into prefixes. Keys are opaque byte strings; no stored key may
// be a proper prefix of another, which the typed adapters guarantee by
// appending a terminator to variable length keys.
//
// The tree is not safe for concurrent mutation. Lookups don't mutate, so
// concurrent readers are fine as long as nothing writes.
type Tree[V any] struct {
	root nodeRef
	size int

	leafPool    *alloc.Pool[nodeLeaf[V]]
	node4Pool   *alloc.Pool[node4]
	node16Pool  *alloc.Pool[node16]
	node48Pool  *alloc.Pool[node48]
	node256Pool *alloc.Pool[node256]
}

// Size returns the number of keys stored in the tree.
func (t *Tree[V]) Size() int {
	return t.size
}

// End returns the handle lookups report when they find nothing.
func (t *Tree[V]) End() Entry[V] {
	return Entry[V]{}
}

// Find returns the handle to the value stored under key, or the end handle
// if the key is absent.
func (t *Tree[V]) Find(key []byte) Entry[V] {
	if len(key) == 0 {
		panic("art: empty key")
	}

	ref := t.root
	for ref.isValid() {
		if ref.isLeaf() {
			if len(key) == 0 {
				return Entry[V]{leaf: leafOf[V](ref)}
			}
			return Entry[V]{}
		}

		h := ref.header()
		if prefixLen := int(h.prefixLen); prefixLen != 0 {
			if prefixLen > len(key) || !bytes.Equal(h.prefix[:prefixLen], key[:prefixLen]) {
				return Entry[V]{}
			}
			key = key[prefixLen:]
		}

		// Key exhausted on an inner node means no stored key ends here.
		if len(key) == 0 {
			return Entry[V]{}
		}

		ref = getChild(ref, key[0])
		key = key[1:]
	}

	return Entry[V]{}
}

// Insert stores value under key unless the key is already present. It
// returns the handle to the value stored under the key and true if this call
// inserted it. An existing value is never overwritten.
func (t *Tree[V]) Insert(key []byte, value V) (Entry[V], bool) {
	if len(key) == 0 {
		panic("art: empty key")
	}

	if !t.root.isValid() {
		t.root = node4Ref(t.newNode4(nil))
	}

	slot := &t.root
	for {
		if slot.isLeaf() {
			// Bytes left after reaching a leaf mean a stored key is a
			// proper prefix of the inserted one.
			panic("art: stored key is a proper prefix of the inserted key")
		}

		h := slot.header()
		if prefixLen := h.prefixLen; prefixLen != 0 {
			common := commonPrefixLength(key, h.prefix[:prefixLen])
			if common < int(prefixLen) {
				return Entry[V]{leaf: t.addLeafWithSplit(slot, key, common, value)}, true
			}
			key = key[prefixLen:]
		}

		if len(key) == 0 {
			panic("art: inserted key is a proper prefix of a stored key")
		}

		child := getChildPtr(*slot, key[0])
		if child == nil || !child.isValid() {
			return Entry[V]{leaf: t.addLeaf(slot, key, value)}, true
		}

		slot = child
		key = key[1:]

		if len(key) == 0 {
			if slot.isLeaf() {
				return Entry[V]{leaf: leafOf[V](*slot)}, false
			}
			panic("art: inserted key is a proper prefix of a stored key")
		}
	}
}

// Ensure returns pointer to the value stored under key, inserting the zero
// value first if the key is absent.
func (t *Tree[V]) Ensure(key []byte) *V {
	e, _ := t.Insert(key, *new(V))
	return e.Value()
}

// Clear releases every node to its pool and empties the tree.
func (t *Tree[V]) Clear() {
	if t.root.isValid() {
		t.release(t.root)
		t.root = nodeRef{}
	}
	t.size = 0
}

// addLeaf attaches the key tail under the parent slot. The first byte selects
// the entry in the parent; longer tails are packed into a chain of node4s,
// each absorbing up to MaxPrefixLength bytes as its prefix and consuming one
// byte as the selector into the next level.
func (t *Tree[V]) addLeaf(parent *nodeRef, key []byte, value V) *nodeLeaf[V] {
	var last *node4
	for len(key) > 1 {
		prefixLen := len(key) - 2
		if prefixLen > types.MaxPrefixLength {
			prefixLen = types.MaxPrefixLength
		}

		n := t.newNode4(key[1 : 1+prefixLen])
		if last != nil {
			last.addChild(key[0], node4Ref(n))
		} else {
			t.addChild(parent, key[0], node4Ref(n))
		}

		key = key[prefixLen+1:]
		last = n
	}

	l := t.leafPool.Allocate()
	l.value = value
	if last != nil {
		last.addChild(key[0], leafRef(l))
	} else {
		t.addChild(parent, key[0], leafRef(l))
	}

	t.size++

	return l
}

// addLeafWithSplit splits the node in slot whose prefix diverges from key at
// position common: a new node4 takes over the shared prefix bytes, the old
// node becomes its child under the first diverging prefix byte, and the new
// leaf is attached on the other branch.
func (t *Tree[V]) addLeafWithSplit(slot *nodeRef, key []byte, common int, value V) *nodeLeaf[V] {
	h := slot.header()

	s := t.newNode4(key[:common])
	s.addChild(h.prefix[common], *slot)

	key = key[common:]
	if len(key) == 0 {
		panic("art: inserted key is a proper prefix of a stored key")
	}

	// Drop the shared bytes and the selector byte from the old prefix.
	shift := common + 1
	copy(h.prefix[:], h.prefix[shift:h.prefixLen])
	h.prefixLen -= uint8(shift)

	*slot = node4Ref(s)

	return t.addLeaf(slot, key, value)
}

// addChild installs the child in the node referenced by slot, growing the
// node to the next class when it is full. The old node is released to its
// pool once the replacement is in place.
func (t *Tree[V]) addChild(slot *nodeRef, k byte, child nodeRef) {
	switch slot.kind {
	case types.KindNode4:
		n := slot.node4()
		if n.addChild(k, child) {
			return
		}

		grown := t.newNode16(n.prefix[:n.prefixLen])
		grown.childrenCount = n.childrenCount
		copy(grown.keys[:], n.keys[:n.childrenCount])
		copy(grown.children[:], n.children[:n.childrenCount])
		grown.addChild(k, child)

		t.node4Pool.Deallocate(n)
		*slot = node16Ref(grown)
	case types.KindNode16:
		n := slot.node16()
		if n.addChild(k, child) {
			return
		}

		grown := t.newNode48(n.prefix[:n.prefixLen])
		grown.childrenCount = n.childrenCount
		for i := uint16(0); i < n.childrenCount; i++ {
			grown.slots[n.keys[i]] = byte(i)
			grown.children[i] = n.children[i]
		}
		grown.addChild(k, child)

		t.node16Pool.Deallocate(n)
		*slot = node48Ref(grown)
	case types.KindNode48:
		n := slot.node48()
		if n.addChild(k, child) {
			return
		}

		grown := t.newNode256(n.prefix[:n.prefixLen])
		grown.childrenCount = n.childrenCount
		for b, s := range n.slots {
			if s != types.NoSlot {
				grown.children[b] = n.children[s]
			}
		}
		grown.addChild(k, child)

		t.node48Pool.Deallocate(n)
		*slot = node256Ref(grown)
	case types.KindNode256:
		slot.node256().addChild(k, child)
	default:
		panic("art: child added to a non-inner reference")
	}
}

func (t *Tree[V]) newNode4(prefix []byte) *node4 {
	n := t.node4Pool.Allocate()
	n.prefixLen = uint8(len(prefix))
	copy(n.prefix[:], prefix)
	return n
}

func (t *Tree[V]) newNode16(prefix []byte) *node16 {
	n := t.node16Pool.Allocate()
	n.prefixLen = uint8(len(prefix))
	copy(n.prefix[:], prefix)
	return n
}

func (t *Tree[V]) newNode48(prefix []byte) *node48 {
	n := t.node48Pool.Allocate()
	n.prefixLen = uint8(len(prefix))
	copy(n.prefix[:], prefix)
	for i := range n.slots {
		n.slots[i] = types.NoSlot
	}
	return n
}

func (t *Tree[V]) newNode256(prefix []byte) *node256 {
	n := t.node256Pool.Allocate()
	n.prefixLen = uint8(len(prefix))
	copy(n.prefix[:], prefix)
	return n
}

func (t *Tree[V]) release(ref nodeRef) {
	switch ref.kind {
	case types.KindLeaf:
		t.leafPool.Deallocate(leafOf[V](ref))
	case types.KindNode4:
		n := ref.node4()
		for i := uint16(0); i < n.childrenCount; i++ {
			t.release(n.children[i])
		}
		t.node4Pool.Deallocate(n)
	case types.KindNode16:
		n := ref.node16()
		for i := uint16(0); i < n.childrenCount; i++ {
			t.release(n.children[i])
		}
		t.node16Pool.Deallocate(n)
	case types.KindNode48:
		n := ref.node48()
		for i := uint16(0); i < n.childrenCount; i++ {
			t.release(n.children[i])
		}
		t.node48Pool.Deallocate(n)
	case types.KindNode256:
		n := ref.node256()
		for _, child := range n.children {
			if child.isValid() {
				t.release(child)
			}
		}
		t.node256Pool.Deallocate(n)
	}
}

// commonPrefixLength returns the position of the first byte differing
// between the two keys.
func commonPrefixLength(key1, key2 []byte) int {
	limit := min(len(key1), len(key2))
	for i := range limit {
		if key1[i] != key2[i] {
			return i
		}
	}
	return limit
}

// Entry is a handle to a value stored in the tree. The zero value plays the
// role of the past-the-end handle: lookups that find nothing return it.
// Handles are invalidated by any mutation of the tree.
type Entry[V any] struct {
	leaf *nodeLeaf[V]
}

// Exists tells whether the handle references a stored value.
func (e Entry[V]) Exists() bool {
	return e.leaf != nil
}

// Value returns pointer to the stored value, or nil for the end handle.
func (e Entry[V]) Value() *V {
	if e.leaf == nil {
		return nil
	}
	return &e.leaf.value
}
