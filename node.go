package art

import (
	"unsafe"

	"github.com/outofforest/art/types"
)

// nodeRef references a child node together with the kind describing its
// layout. The kind is stored beside the untagged pointer so dispatch reads it
// without dereferencing the child. The zero value is the null reference.
type nodeRef struct {
	p    unsafe.Pointer
	kind types.Kind
}

func (r nodeRef) isValid() bool {
	return r.p != nil
}

func (r nodeRef) isLeaf() bool {
	return r.kind == types.KindLeaf
}

// header projects the reference onto the common inner node header. Inner
// nodes embed the header as their first field, so the projection is valid for
// every inner kind. Never call it on a leaf reference.
func (r nodeRef) header() *nodeHeader {
	return (*nodeHeader)(r.p)
}

func (r nodeRef) node4() *node4 {
	return (*node4)(r.p)
}

func (r nodeRef) node16() *node16 {
	return (*node16)(r.p)
}

func (r nodeRef) node48() *node48 {
	return (*node48)(r.p)
}

func (r nodeRef) node256() *node256 {
	return (*node256)(r.p)
}

func node4Ref(n *node4) nodeRef {
	return nodeRef{p: unsafe.Pointer(n), kind: types.KindNode4}
}

func node16Ref(n *node16) nodeRef {
	return nodeRef{p: unsafe.Pointer(n), kind: types.KindNode16}
}

func node48Ref(n *node48) nodeRef {
	return nodeRef{p: unsafe.Pointer(n), kind: types.KindNode48}
}

func node256Ref(n *node256) nodeRef {
	return nodeRef{p: unsafe.Pointer(n), kind: types.KindNode256}
}

func leafRef[V any](l *nodeLeaf[V]) nodeRef {
	return nodeRef{p: unsafe.Pointer(l), kind: types.KindLeaf}
}

func leafOf[V any](r nodeRef) *nodeLeaf[V] {
	return (*nodeLeaf[V])(r.p)
}

// nodeHeader is shared by all inner node classes. The prefix holds the key
// bytes compressed into this node; children are keyed by the byte following
// the prefix.
type nodeHeader struct {
	prefixLen     uint8
	prefix        [types.MaxPrefixLength]byte
	childrenCount uint16
}

// nodeLeaf terminates a path. Its position in the tree spells the key, so it
// stores the value only.
type nodeLeaf[V any] struct {
	value V
}

// node4 and node16 keep parallel key/child arrays scanned linearly. Entries
// are stored in insertion order.
type node4 struct {
	nodeHeader
	keys     [types.Node4Capacity]byte
	children [types.Node4Capacity]nodeRef
}

func (n *node4) getChild(k byte) nodeRef {
	for i := uint16(0); i < n.childrenCount; i++ {
		if n.keys[i] == k {
			return n.children[i]
		}
	}
	return nodeRef{}
}

func (n *node4) getChildPtr(k byte) *nodeRef {
	for i := uint16(0); i < n.childrenCount; i++ {
		if n.keys[i] == k {
			return &n.children[i]
		}
	}
	return nil
}

func (n *node4) addChild(k byte, child nodeRef) bool {
	if n.childrenCount >= types.Node4Capacity {
		return false
	}

	n.keys[n.childrenCount] = k
	n.children[n.childrenCount] = child
	n.childrenCount++

	return true
}

type node16 struct {
	nodeHeader
	keys     [types.Node16Capacity]byte
	children [types.Node16Capacity]nodeRef
}

func (n *node16) getChild(k byte) nodeRef {
	for i := uint16(0); i < n.childrenCount; i++ {
		if n.keys[i] == k {
			return n.children[i]
		}
	}
	return nodeRef{}
}

func (n *node16) getChildPtr(k byte) *nodeRef {
	for i := uint16(0); i < n.childrenCount; i++ {
		if n.keys[i] == k {
			return &n.children[i]
		}
	}
	return nil
}

func (n *node16) addChild(k byte, child nodeRef) bool {
	if n.childrenCount >= types.Node16Capacity {
		return false
	}

	n.keys[n.childrenCount] = k
	n.children[n.childrenCount] = child
	n.childrenCount++

	return true
}

// node48 maps every possible key byte to a slot in the children array.
// slots[k] == types.NoSlot means byte k has no child.
type node48 struct {
	nodeHeader
	slots    [256]byte
	children [types.Node48Capacity]nodeRef
}

func (n *node48) getChild(k byte) nodeRef {
	if n.slots[k] == types.NoSlot {
		return nodeRef{}
	}
	return n.children[n.slots[k]]
}

func (n *node48) getChildPtr(k byte) *nodeRef {
	if n.slots[k] == types.NoSlot {
		return nil
	}
	return &n.children[n.slots[k]]
}

func (n *node48) addChild(k byte, child nodeRef) bool {
	if n.childrenCount >= types.Node48Capacity {
		return false
	}

	n.slots[k] = byte(n.childrenCount)
	n.children[n.childrenCount] = child
	n.childrenCount++

	return true
}

// node256 indexes children directly by the key byte.
type node256 struct {
	nodeHeader
	children [types.Node256Capacity]nodeRef
}

func (n *node256) getChild(k byte) nodeRef {
	return n.children[k]
}

func (n *node256) getChildPtr(k byte) *nodeRef {
	if !n.children[k].isValid() {
		return nil
	}
	return &n.children[k]
}

func (n *node256) addChild(k byte, child nodeRef) bool {
	n.children[k] = child
	n.childrenCount++

	return true
}

func getChild(r nodeRef, k byte) nodeRef {
	switch r.kind {
	case types.KindNode4:
		return r.node4().getChild(k)
	case types.KindNode16:
		return r.node16().getChild(k)
	case types.KindNode48:
		return r.node48().getChild(k)
	case types.KindNode256:
		return r.node256().getChild(k)
	default:
		panic("art: child lookup on a non-inner reference")
	}
}

func getChildPtr(r nodeRef, k byte) *nodeRef {
	switch r.kind {
	case types.KindNode4:
		return r.node4().getChildPtr(k)
	case types.KindNode16:
		return r.node16().getChildPtr(k)
	case types.KindNode48:
		return r.node48().getChildPtr(k)
	case types.KindNode256:
		return r.node256().getChildPtr(k)
	default:
		panic("art: child lookup on a non-inner reference")
	}
}
