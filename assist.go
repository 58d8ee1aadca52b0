package art

import (
	"github.com/pkg/errors"

	"github.com/outofforest/art/types"
)

// Verify walks the whole tree and checks the structural invariants of every
// node: child counts match populated slots, slot indexes are consistent,
// prefixes fit, no reachable inner node is empty and the leaf count matches
// the reported size. It exists for tests and debugging; operations never
// call it.
func (t *Tree[V]) Verify() error {
	if !t.root.isValid() {
		if t.size != 0 {
			return errors.Errorf("empty tree reports size %d", t.size)
		}
		return nil
	}

	leaves, err := t.verifyNode(t.root)
	if err != nil {
		return err
	}
	if leaves != t.size {
		return errors.Errorf("tree holds %d leaves but reports size %d", leaves, t.size)
	}

	return nil
}

func (t *Tree[V]) verifyNode(ref nodeRef) (int, error) {
	if ref.isLeaf() {
		return 1, nil
	}

	h := ref.header()
	if h.prefixLen > types.MaxPrefixLength {
		return 0, errors.Errorf("prefix length %d exceeds limit", h.prefixLen)
	}
	if h.childrenCount == 0 {
		return 0, errors.New("reachable inner node has no children")
	}

	var children []nodeRef
	switch ref.kind {
	case types.KindNode4:
		n := ref.node4()
		if err := verifyIndexed(n.keys[:], n.children[:], h.childrenCount, types.Node4Capacity); err != nil {
			return 0, err
		}
		children = n.children[:n.childrenCount]
	case types.KindNode16:
		n := ref.node16()
		if err := verifyIndexed(n.keys[:], n.children[:], h.childrenCount, types.Node16Capacity); err != nil {
			return 0, err
		}
		children = n.children[:n.childrenCount]
	case types.KindNode48:
		n := ref.node48()
		if h.childrenCount > types.Node48Capacity {
			return 0, errors.Errorf("node48 holds %d children", h.childrenCount)
		}
		var populated uint16
		seen := [types.Node48Capacity]bool{}
		for b, s := range n.slots {
			if s == types.NoSlot {
				continue
			}
			if uint16(s) >= h.childrenCount {
				return 0, errors.Errorf("byte %#02x maps to slot %d beyond child count %d", b, s, h.childrenCount)
			}
			if seen[s] {
				return 0, errors.Errorf("slot %d mapped twice", s)
			}
			seen[s] = true
			if !n.children[s].isValid() {
				return 0, errors.Errorf("byte %#02x maps to a null child", b)
			}
			populated++
		}
		if populated != h.childrenCount {
			return 0, errors.Errorf("node48 maps %d bytes but counts %d children", populated, h.childrenCount)
		}
		children = n.children[:h.childrenCount]
	case types.KindNode256:
		n := ref.node256()
		var populated uint16
		for _, child := range n.children {
			if child.isValid() {
				populated++
			}
		}
		if populated != h.childrenCount {
			return 0, errors.Errorf("node256 holds %d children but counts %d", populated, h.childrenCount)
		}
		children = n.children[:]
	default:
		return 0, errors.Errorf("unknown node kind %d", ref.kind)
	}

	var leaves int
	for _, child := range children {
		if !child.isValid() {
			continue
		}
		l, err := t.verifyNode(child)
		if err != nil {
			return 0, err
		}
		leaves += l
	}

	return leaves, nil
}

func verifyIndexed(keys []byte, children []nodeRef, count uint16, capacity uint16) error {
	if count > capacity {
		return errors.Errorf("node holds %d children with capacity %d", count, capacity)
	}

	seen := [256]bool{}
	for i := uint16(0); i < count; i++ {
		if seen[keys[i]] {
			return errors.Errorf("byte %#02x indexed twice", keys[i])
		}
		seen[keys[i]] = true
		if !children[i].isValid() {
			return errors.Errorf("populated entry %d holds a null child", i)
		}
	}
	for i := count; i < capacity; i++ {
		if children[i].isValid() {
			return errors.Errorf("entry %d beyond child count %d is populated", i, count)
		}
	}

	return nil
}
