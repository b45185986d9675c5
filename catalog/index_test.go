package catalog

import (
	"encoding/binary"
	"math/rand"
	"testing"

	assertion "github.com/stretchr/testify/assert"

	"relcore/pager"
)

func intBytes(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func indexedTable(t *testing.T, cap uint16) (*Catalog, *ColInfo) {
	t.Helper()
	assert := assertion.New(t)
	c := tempCatalog(t)
	assert.NoError(c.CreateTable(TableSpec{
		Name: "t",
		Cols: []ColSpec{
			{Name: "v", Type: ColType{Kind: Int}},
		},
	}))
	assert.NoError(c.CreateIndexWithCap("t", "v", cap))
	ci, err := c.GetColInfo("t", "v")
	assert.NoError(err)
	return c, ci
}

func TestIndexInsertAndSearchRoundTrip(t *testing.T) {
	assert := assertion.New(t)
	c, ci := indexedTable(t, 4)

	type pair struct {
		v   int32
		rid pager.Rid
	}
	var pairs []pair
	for i := int32(0); i < 64; i++ {
		rid := pager.NewRid(pager.PageID(i/10+1), uint32(i%10))
		key := EncodeKey(ci.Type, intBytes(i))
		assert.NoError(c.IndexInsert(ci, key, rid))
		pairs = append(pairs, pair{i, rid})
	}

	for _, p := range pairs {
		got := c.IndexSearch(ci, EncodeKey(ci.Type, intBytes(p.v)))
		assert.Equal([]pager.Rid{p.rid}, got)
	}

	missing := c.IndexSearch(ci, EncodeKey(ci.Type, intBytes(1000)))
	assert.Empty(missing)
}

func TestIndexInsertNegativeAndPositiveOrdering(t *testing.T) {
	assert := assertion.New(t)
	c, ci := indexedTable(t, 4)

	values := []int32{5, -5, 0, -100, 100, -1, 1}
	for i, v := range values {
		rid := pager.NewRid(1, uint32(i))
		assert.NoError(c.IndexInsert(ci, EncodeKey(ci.Type, intBytes(v)), rid))
	}

	got := c.IndexRange(ci, EncodeKey(ci.Type, intBytes(-100)), nil)
	assert.Len(got, len(values))

	// the lower bound of -1 must exclude both -5 and -100.
	got = c.IndexRange(ci, EncodeKey(ci.Type, intBytes(-1)), EncodeKey(ci.Type, intBytes(1)))
	assert.Len(got, 3) // -1, 0, 1
}

func TestIndexRangeInclusiveBounds(t *testing.T) {
	assert := assertion.New(t)
	c, ci := indexedTable(t, 4)

	for i := int32(0); i < 20; i++ {
		rid := pager.NewRid(1, uint32(i))
		assert.NoError(c.IndexInsert(ci, EncodeKey(ci.Type, intBytes(i)), rid))
	}

	got := c.IndexRange(ci, EncodeKey(ci.Type, intBytes(5)), EncodeKey(ci.Type, intBytes(10)))
	assert.Len(got, 6) // 5,6,7,8,9,10
}

func TestIndexUniqueRejectsDuplicateValue(t *testing.T) {
	assert := assertion.New(t)
	c := tempCatalog(t)
	assert.NoError(c.CreateTable(usersSpec()))
	ci, err := c.GetColInfo("users", "id")
	assert.NoError(err)
	assert.True(ci.Flags.Has(FlagUnique))

	key := EncodeKey(ci.Type, intBytes(1))
	assert.NoError(c.IndexInsert(ci, key, pager.NewRid(1, 0)))
	err = c.IndexInsert(ci, key, pager.NewRid(1, 1))
	assert.ErrorIs(err, ErrDupIndexValue)
}

func TestIndexDeleteThenSearchMiss(t *testing.T) {
	assert := assertion.New(t)
	c, ci := indexedTable(t, 4)

	var rids []pager.Rid
	for i := int32(0); i < 40; i++ {
		rid := pager.NewRid(pager.PageID(i/10+1), uint32(i%10))
		assert.NoError(c.IndexInsert(ci, EncodeKey(ci.Type, intBytes(i)), rid))
		rids = append(rids, rid)
	}

	for i := int32(0); i < 40; i += 2 {
		ok := c.IndexDelete(ci, EncodeKey(ci.Type, intBytes(i)), rids[i])
		assert.True(ok, "delete %d", i)
	}

	for i := int32(0); i < 40; i++ {
		got := c.IndexSearch(ci, EncodeKey(ci.Type, intBytes(i)))
		if i%2 == 0 {
			assert.Empty(got, "key %d should be gone", i)
		} else {
			assert.Equal([]pager.Rid{rids[i]}, got, "key %d should remain", i)
		}
	}
}

func TestIndexDeleteAllShrinksRootToLeaf(t *testing.T) {
	assert := assertion.New(t)
	c, ci := indexedTable(t, 4)

	var entries []struct {
		key []byte
		rid pager.Rid
	}
	for i := int32(0); i < 50; i++ {
		rid := pager.NewRid(pager.PageID(i/10+1), uint32(i%10))
		key := EncodeKey(ci.Type, intBytes(i))
		assert.NoError(c.IndexInsert(ci, key, rid))
		entries = append(entries, struct {
			key []byte
			rid pager.Rid
		}{key, rid})
	}

	for _, e := range entries {
		assert.True(c.IndexDelete(ci, e.key, e.rid))
	}

	root := c.Pager.GetPage(ci.IndexPage)
	ip := asIndexPage(root)
	assert.Equal(uint8(1), ip.Leaf)
	assert.Equal(uint16(0), ip.Count)
}

func TestIndexInsertDeleteRandomizedAgainstOracle(t *testing.T) {
	assert := assertion.New(t)
	c, ci := indexedTable(t, 8)

	rng := rand.New(rand.NewSource(42))
	present := make(map[int32]pager.Rid)

	for i := 0; i < 300; i++ {
		v := int32(rng.Intn(100))
		key := EncodeKey(ci.Type, intBytes(v))
		if existing, ok := present[v]; ok {
			if rng.Intn(2) == 0 {
				assert.True(c.IndexDelete(ci, key, existing))
				delete(present, v)
			}
			continue
		}
		rid := pager.NewRid(pager.PageID(i/10+1), uint32(i%10))
		assert.NoError(c.IndexInsert(ci, key, rid))
		present[v] = rid
	}

	for v, rid := range present {
		got := c.IndexSearch(ci, EncodeKey(ci.Type, intBytes(v)))
		assert.Equal([]pager.Rid{rid}, got, "value %d", v)
	}
}

func TestDropIndexRefusesOnUniqueColumn(t *testing.T) {
	assert := assertion.New(t)
	c := tempCatalog(t)
	assert.NoError(c.CreateTable(usersSpec()))
	assert.ErrorIs(c.DropIndex("users", "id"), ErrDropIndexOnUnique)
}

func TestCreateIndexRefusesOnNonEmptyTable(t *testing.T) {
	assert := assertion.New(t)
	c, tp := smallTable(t)
	c.AllocateDataSlot(tp)
	assert.ErrorIs(c.CreateIndex("t", "v"), ErrCreateIndexOnNonEmpty)
}
