package art_test

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"testing"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"

	"github.com/outofforest/art"
)

func TestEmptyTree(t *testing.T) {
	m := lo.Must(art.NewMap[uint32, int](art.DefaultConfig))
	require.Equal(t, 0, m.Size())
	require.NoError(t, m.Verify())
}

func TestInsertOnePair(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[uint32, int](art.DefaultConfig))

	e, inserted := m.Insert(0, -1)
	requireT.True(inserted)
	requireT.Equal(1, m.Size())
	requireT.Equal(-1, *e.Value())

	found := m.Find(0)
	requireT.True(found.Exists())
	requireT.Equal(-1, *found.Value())
	requireT.NoError(m.Verify())
}

func TestInsertExistingKey(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[uint32, int](art.DefaultConfig))

	m.Insert(0, -1)
	e, inserted := m.Insert(0, 99)
	requireT.False(inserted)
	requireT.Equal(1, m.Size())
	requireT.Equal(-1, *e.Value())
	requireT.NoError(m.Verify())
}

func TestFindMissingKey(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[uint32, int](art.DefaultConfig))

	m.Insert(1, 1)
	e := m.Find(2)
	requireT.False(e.Exists())
	requireT.Equal(m.End(), e)
}

func TestPrefixSplitAtRoot(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[[4]byte, int](art.DefaultConfig))

	m.Insert([4]byte{0x00, 0x00, 0x00, 0x00}, -1)
	e, inserted := m.Insert([4]byte{0x00, 0x0F, 0x00, 0x00}, 0)
	requireT.True(inserted)
	requireT.Equal(2, m.Size())
	requireT.Equal(0, *e.Value())

	requireT.Equal(-1, *m.Find([4]byte{0x00, 0x00, 0x00, 0x00}).Value())
	requireT.Equal(0, *m.Find([4]byte{0x00, 0x0F, 0x00, 0x00}).Value())
	requireT.NoError(m.Verify())
}

func TestThreeWayFanoutAtRoot(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[[4]byte, int](art.DefaultConfig))

	m.Insert([4]byte{0x00, 0x00, 0x00, 0x00}, -1)
	m.Insert([4]byte{0x00, 0x0F, 0x00, 0x00}, 0)
	e, inserted := m.Insert([4]byte{0x00, 0x01, 0x00, 0x00}, 3)
	requireT.True(inserted)
	requireT.Equal(3, m.Size())
	requireT.Equal(3, *e.Value())

	requireT.Equal(-1, *m.Find([4]byte{0x00, 0x00, 0x00, 0x00}).Value())
	requireT.Equal(0, *m.Find([4]byte{0x00, 0x0F, 0x00, 0x00}).Value())
	requireT.Equal(3, *m.Find([4]byte{0x00, 0x01, 0x00, 0x00}).Value())
	requireT.NoError(m.Verify())
}

// incrementKey advances the key by one treating the byte at the given index
// as the fastest changing one and carrying towards the other end.
func incrementKey(key [4]byte, fastIndex int, step int) [4]byte {
	for i := fastIndex; i >= 0 && i < len(key); i += step {
		key[i]++
		if key[i] != 0 {
			break
		}
	}
	return key
}

func TestFanoutGrowthDeep(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[[4]byte, int](art.DefaultConfig))

	const count = 2 * 256 * 256

	var key [4]byte
	keys := make([][4]byte, 0, count)
	for i := range count {
		keys = append(keys, key)
		_, inserted := m.Insert(key, i)
		requireT.True(inserted)
		key = incrementKey(key, 3, -1)
	}

	requireT.Equal(count, m.Size())
	for i, key := range keys {
		e := m.Find(key)
		requireT.True(e.Exists())
		requireT.Equal(i, *e.Value())
	}
	requireT.NoError(m.Verify())
}

func TestFanoutGrowthNearRoot(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewMap[[4]byte, int](art.DefaultConfig))

	const count = 2 * 256 * 256

	var key [4]byte
	keys := make([][4]byte, 0, count)
	for i := range count {
		keys = append(keys, key)
		_, inserted := m.Insert(key, i)
		requireT.True(inserted)
		key = incrementKey(key, 0, 1)
	}

	requireT.Equal(count, m.Size())
	for i, key := range keys {
		e := m.Find(key)
		requireT.True(e.Exists())
		requireT.Equal(i, *e.Value())
	}
	requireT.NoError(m.Verify())
}

func TestStringKeysWithPrefixSharing(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

	m.Insert("", -1)
	m.Insert("a", 1)
	m.Insert("b", 3)

	requireT.Equal(3, m.Size())
	requireT.Equal(-1, *m.Find("").Value())
	requireT.Equal(1, *m.Find("a").Value())
	requireT.Equal(3, *m.Find("b").Value())
	requireT.NoError(m.Verify())
}

func TestSplitInsideCompressedPrefix(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

	m.Insert("abcdef1", 1)
	m.Insert("abcdef2", 2)
	requireT.NoError(m.Verify())

	// Diverges before the first split point.
	m.Insert("abc", 3)
	requireT.NoError(m.Verify())

	requireT.Equal(3, m.Size())
	requireT.Equal(1, *m.Find("abcdef1").Value())
	requireT.Equal(2, *m.Find("abcdef2").Value())
	requireT.Equal(3, *m.Find("abc").Value())
	requireT.False(m.Find("abcdef").Exists())
	requireT.False(m.Find("ab").Exists())
}

func TestLongKeys(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

	keys := []string{
		"k",
		"kkkkkkk",
		"kkkkkkkkkkkkk",
		"kkkkkkkkkkkkkkkkkkkk",
		"kkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkkk",
	}
	for i, key := range keys {
		_, inserted := m.Insert(key, i)
		requireT.True(inserted)
		requireT.NoError(m.Verify())
	}

	requireT.Equal(len(keys), m.Size())
	for i, key := range keys {
		requireT.Equal(i, *m.Find(key).Value())
	}
	requireT.False(m.Find("kk").Exists())
}

func TestEnsure(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

	v := m.Ensure("counter")
	requireT.Equal(0, *v)
	*v = 42

	requireT.Equal(42, *m.Find("counter").Value())
	requireT.Equal(42, *m.Ensure("counter"))
	requireT.Equal(1, m.Size())
}

func TestClear(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

	keys := dictionary(1000)
	for i, key := range keys {
		m.Insert(key, i)
	}
	requireT.Equal(len(keys), m.Size())

	m.Clear()
	requireT.Equal(0, m.Size())
	requireT.NoError(m.Verify())
	for _, key := range keys {
		requireT.False(m.Find(key).Exists())
	}

	// Cleared tree must accept the same keys again.
	for i, key := range keys {
		_, inserted := m.Insert(key, i)
		requireT.True(inserted)
	}
	requireT.Equal(len(keys), m.Size())
	requireT.NoError(m.Verify())
}

func TestDictionaryStress(t *testing.T) {
	requireT := require.New(t)
	m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

	words := dictionary(20_000)
	for i, word := range words {
		_, inserted := m.Insert(word, i)
		requireT.True(inserted)
	}

	requireT.Equal(len(words), m.Size())
	for i, word := range words {
		e := m.Find(word)
		requireT.True(e.Exists())
		requireT.Equal(i, *e.Value())
	}
	requireT.NoError(m.Verify())
}

func TestInsertionOrderIndependence(t *testing.T) {
	requireT := require.New(t)

	words := dictionary(500)
	for seed := int64(0); seed < 5; seed++ {
		m := lo.Must(art.NewStringMap[int](art.DefaultConfig))

		shuffled := append([]string{}, words...)
		rand.New(rand.NewSource(seed)).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		values := map[string]int{}
		for i, word := range shuffled {
			m.Insert(word, i)
			values[word] = i
		}

		requireT.Equal(len(words), m.Size())
		for _, word := range words {
			e := m.Find(word)
			requireT.True(e.Exists())
			requireT.Equal(values[word], *e.Value())
		}
		requireT.NoError(m.Verify())
	}
}

func TestIndependentTreesInParallel(t *testing.T) {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)

	require.NoError(t, parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for w := range 4 {
			spawn(fmt.Sprintf("tree-%02d", w), parallel.Continue, func(ctx context.Context) error {
				m, err := art.NewMap[[4]byte, int](art.DefaultConfig)
				if err != nil {
					return err
				}

				key := [4]byte{byte(w)}
				for i := range 10_000 {
					m.Insert(key, i)
					key = incrementKey(key, 3, -1)
				}

				if m.Size() != 10_000 {
					return errors.Errorf("tree %d holds %d keys", w, m.Size())
				}
				return m.Verify()
			})
		}
		return nil
	}))
}

func TestInvalidConfig(t *testing.T) {
	_, err := art.New[int](art.Config{})
	require.Error(t, err)
}

// dictionary produces the requested number of distinct word-like keys
// deterministically.
func dictionary(count int) []string {
	words := make([]string, 0, count)
	seen := map[string]struct{}{}
	var seed [8]byte
	for i := 0; len(words) < count; i++ {
		seed[0], seed[1], seed[2], seed[3] = byte(i), byte(i>>8), byte(i>>16), byte(i>>24)
		word := strconv.FormatUint(xxhash.Sum64(seed[:]), 36)
		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}
	return words
}
