package catalog

import (
	"testing"

	assertion "github.com/stretchr/testify/assert"

	"relcore/pager"
)

func smallTable(t *testing.T) (*Catalog, *TablePage) {
	t.Helper()
	c := tempCatalog(t)
	assert := assertion.New(t)
	assert.NoError(c.CreateTable(TableSpec{
		Name: "t",
		Cols: []ColSpec{
			{Name: "v", Type: ColType{Kind: Int}},
		},
	}))
	tp, err := c.GetTablePage("t")
	assert.NoError(err)
	return c, tp
}

func TestAllocateThenGetThenDeallocate(t *testing.T) {
	assert := assertion.New(t)
	c, tp := smallTable(t)

	rid := c.AllocateDataSlot(tp)
	slot := c.GetDataSlot(tp, rid)
	assert.Len(slot, int(tp.Size))

	copy(slot, []byte{0, 0, 0, 0, 1, 2, 3, 4})
	assert.Equal(byte(1), c.GetDataSlot(tp, rid)[4])

	c.DeallocateDataSlot(tp, rid)
}

func TestAllocateFillsPageThenGrows(t *testing.T) {
	assert := assertion.New(t)
	c, tp := smallTable(t)

	var rids []uint32
	cap := int(tp.Cap)
	for i := 0; i < cap; i++ {
		rid := c.AllocateDataSlot(tp)
		assert.Equal(tp.Next, rid.Page())
		rids = append(rids, uint32(rid))
	}
	// the page is now full: the next allocation must land on a
	// second page, linked into the ring.
	firstPage := tp.Next
	rid := c.AllocateDataSlot(tp)
	assert.NotEqual(firstPage, rid.Page())

	all := c.RecordIter(tp)
	assert.Len(all, cap+1)
}

func TestRecordIterReflectsDeallocation(t *testing.T) {
	assert := assertion.New(t)
	c, tp := smallTable(t)

	a := c.AllocateDataSlot(tp)
	b := c.AllocateDataSlot(tp)
	assert.Len(c.RecordIter(tp), 2)

	c.DeallocateDataSlot(tp, a)
	rest := c.RecordIter(tp)
	assert.Len(rest, 1)
	assert.Equal(b, rest[0])
}

func TestAllocateReusesDeallocatedSlot(t *testing.T) {
	assert := assertion.New(t)
	c, tp := smallTable(t)

	cap := int(tp.Cap)
	var first pager.Rid
	for i := 0; i < cap; i++ {
		rid := c.AllocateDataSlot(tp)
		if i == 0 {
			first = rid
		}
	}
	c.DeallocateDataSlot(tp, first)
	again := c.AllocateDataSlot(tp)
	assert.Equal(first.Slot(), again.Slot())
	assert.Equal(first.Page(), again.Page())
}
