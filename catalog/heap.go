package catalog

import "relcore/pager"

// AllocateDataSlot reserves a slot for a new row in tp's heap,
// allocating a fresh data page and linking it at the ring's tail if
// none of the table's existing pages has a free slot (spec.md §4.2).
func (c *Catalog) AllocateDataSlot(tp *TablePage) pager.Rid {
	if tp.FirstFree == pager.NonePage {
		selfID := c.tablePageID(tp)
		id, page := c.Pager.AllocatePage()
		dp := asDataPage(page)
		*dp = DataPage{}
		dp.NextFree = pager.NonePage

		oldTail := tp.Prev
		dp.Prev = oldTail
		dp.Next = selfID
		if oldTail == selfID {
			tp.Next = id
		} else {
			asDataPage(c.Pager.GetPage(oldTail)).Next = id
		}
		tp.Prev = id
		tp.FirstFree = id
	}

	free := tp.FirstFree
	dp := asDataPage(c.Pager.GetPage(free))
	slot, ok := dp.firstClearBit(tp.Cap)
	if !ok {
		panic("catalog: has-free chain page reports no free slot")
	}
	dp.setBit(slot)
	dp.Count++
	if dp.Count == tp.Cap {
		tp.FirstFree = dp.NextFree
	}
	return pager.NewRid(free, slot)
}

// DeallocateDataSlot frees rid's slot in tp's heap, re-linking the
// owning page onto the has-free chain if it had previously been full.
// The page itself is never returned to the pager (spec.md §4.2).
func (c *Catalog) DeallocateDataSlot(tp *TablePage, rid pager.Rid) {
	page, slot := rid.Page(), rid.Slot()
	dp := asDataPage(c.Pager.GetPage(page))
	if !dp.testBit(slot) {
		panic("catalog: deallocating an already-empty slot")
	}
	dp.clearBit(slot)
	if dp.Count == tp.Cap {
		dp.NextFree = tp.FirstFree
		tp.FirstFree = page
	}
	dp.Count--
}

// GetDataSlot returns the raw byte window of rid's row record.
func (c *Catalog) GetDataSlot(tp *TablePage, rid pager.Rid) []byte {
	page := c.Pager.GetPage(rid.Page())
	return slotAt(page, rid.Slot(), tp.Size)
}

// RecordIter walks tp's data-page ring and enumerates every live Rid.
func (c *Catalog) RecordIter(tp *TablePage) []pager.Rid {
	selfID := c.tablePageID(tp)
	var rids []pager.Rid
	cur := tp.Next
	for cur != selfID {
		dp := asDataPage(c.Pager.GetPage(cur))
		for i := uint32(0); i < tp.Cap; i++ {
			if dp.testBit(i) {
				rids = append(rids, pager.NewRid(cur, i))
			}
		}
		cur = dp.Next
	}
	return rids
}
