package art

import (
	"github.com/outofforest/photon"
)

// NewMap creates map storing values of type V under fixed-width typed keys.
// The key bytes are the host memory image of the key value, so trees built on
// one host order are not portable to the other.
func NewMap[K comparable, V any](config Config) (*Map[K, V], error) {
	tree, err := New[V](config)
	if err != nil {
		return nil, err
	}
	return &Map[K, V]{tree: tree}, nil
}

// Map adapts the tree to fixed-width typed keys.
type Map[K comparable, V any] struct {
	tree *Tree[V]
}

// Size returns the number of keys stored in the map.
func (m *Map[K, V]) Size() int {
	return m.tree.Size()
}

// End returns the handle lookups report when they find nothing.
func (m *Map[K, V]) End() Entry[V] {
	return Entry[V]{}
}

// Insert stores value under key unless the key is already present.
func (m *Map[K, V]) Insert(key K, value V) (Entry[V], bool) {
	return m.tree.Insert(photon.NewFromValue(&key).B, value)
}

// Find returns the handle to the value stored under key.
func (m *Map[K, V]) Find(key K) Entry[V] {
	return m.tree.Find(photon.NewFromValue(&key).B)
}

// Ensure returns pointer to the value stored under key, inserting the zero
// value first if the key is absent.
func (m *Map[K, V]) Ensure(key K) *V {
	return m.tree.Ensure(photon.NewFromValue(&key).B)
}

// Clear empties the map.
func (m *Map[K, V]) Clear() {
	m.tree.Clear()
}

// Verify checks the structural invariants of the underlying tree.
func (m *Map[K, V]) Verify() error {
	return m.tree.Verify()
}

// NewStringMap creates map storing values of type V under string keys. A zero
// terminator is appended to every key, so no stored key is a proper prefix of
// another and the empty string is a valid key.
func NewStringMap[V any](config Config) (*StringMap[V], error) {
	tree, err := New[V](config)
	if err != nil {
		return nil, err
	}
	return &StringMap[V]{tree: tree}, nil
}

// StringMap adapts the tree to variable-length string keys.
type StringMap[V any] struct {
	tree *Tree[V]
	buf  []byte
}

// Size returns the number of keys stored in the map.
func (m *StringMap[V]) Size() int {
	return m.tree.Size()
}

// End returns the handle lookups report when they find nothing.
func (m *StringMap[V]) End() Entry[V] {
	return Entry[V]{}
}

// Insert stores value under key unless the key is already present.
func (m *StringMap[V]) Insert(key string, value V) (Entry[V], bool) {
	return m.tree.Insert(m.keyBytes(key), value)
}

// Find returns the handle to the value stored under key.
func (m *StringMap[V]) Find(key string) Entry[V] {
	return m.tree.Find(m.keyBytes(key))
}

// Ensure returns pointer to the value stored under key, inserting the zero
// value first if the key is absent.
func (m *StringMap[V]) Ensure(key string) *V {
	return m.tree.Ensure(m.keyBytes(key))
}

// Clear empties the map.
func (m *StringMap[V]) Clear() {
	m.tree.Clear()
}

// Verify checks the structural invariants of the underlying tree.
func (m *StringMap[V]) Verify() error {
	return m.tree.Verify()
}

// keyBytes renders the key with the terminator appended. The buffer is
// reused between calls; the tree copies whatever it keeps.
func (m *StringMap[V]) keyBytes(key string) []byte {
	m.buf = append(append(m.buf[:0], key...), 0)
	return m.buf
}
