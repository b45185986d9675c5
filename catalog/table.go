package catalog

import (
	"unsafe"

	"relcore/pager"
)

// TablePage is the table-meta page layout (spec.md §3): the column
// catalog, the computed row size and per-page slot capacity, the head
// of the has-free-slot chain, and the ring of all data pages
// belonging to the table (closed back through this page itself).
type TablePage struct {
	ColNum    uint8
	Cols      [MaxCol]ColInfo
	Size      uint16
	Cap       uint32
	FirstFree pager.PageID
	Prev      pager.PageID
	Next      pager.PageID
}

func asTablePage(page []byte) *TablePage {
	return (*TablePage)(unsafe.Pointer(&page[0]))
}

// GetCol returns the live column named name, or nil.
func (tp *TablePage) GetCol(name string) *ColInfo {
	for i := 0; i < int(tp.ColNum); i++ {
		if tp.Cols[i].GetName() == name {
			return &tp.Cols[i]
		}
	}
	return nil
}

// ColIndex returns the positional index of ci within tp.Cols.
func (tp *TablePage) ColIndex(ci *ColInfo) uint8 {
	return uint8((uintptr(unsafe.Pointer(ci)) - uintptr(unsafe.Pointer(&tp.Cols[0]))) / unsafe.Sizeof(ColInfo{}))
}

// dataPageHeaderSize is the fixed header occupied by every DataPage,
// regardless of the owning table's slot size.
func dataPageHeaderSize() int {
	return int(unsafe.Sizeof(DataPage{}))
}

// computeCap computes floor((PageSize - header) / size), the number
// of size-byte slots that fit in one data page (spec.md §3), clamped
// to pager.MaxRidSlots: a Rid's slot half is only 10 bits wide
// (pager/rid.go), so a degenerate, near-minimum-size row must never
// produce a Cap that pager.NewRid can't address.
func computeCap(size uint16) uint32 {
	avail := pager.PageSize - dataPageHeaderSize()
	cap := uint32(avail) / uint32(size)
	if cap > pager.MaxRidSlots {
		cap = pager.MaxRidSlots
	}
	return cap
}
