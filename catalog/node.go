package catalog

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"relcore/pager"
)

// IndexPage is a B+-tree node (spec.md §3/§4.3): a leaf flag, live
// entry count, per-node capacity (overridable per instance to force
// shallow fan-out in tests, spec.md §8), the key width for this
// index, the entry width, and links to sibling leaves at the same
// level (the first leaf's Prev and the last leaf's Next are
// pager.NonePage; internal nodes leave Prev/Next at pager.NonePage).
//
// Leaf entries are (key, Rid) pairs; internal entries are (key, Rid,
// child page) triples — the Rid component lets internal separators
// participate in the same (key, Rid) total order as leaf entries, so
// invariant that keys strictly increase under (key, Rid) holds at
// every level even when a run of duplicate keys spans more than one
// leaf (spec.md §4.3, §8 invariant 3). This is one Rid (4 bytes) wider
// per internal entry than the page-layout text's minimal "(key,
// child)" description; SlotSize is computed from Leaf+KeySize so the
// two descriptions never disagree within one page.
type IndexPage struct {
	Leaf     uint8
	Count    uint16
	Cap      uint16
	KeySize  uint16
	SlotSize uint16
	Prev     pager.PageID
	Next     pager.PageID
}

func asIndexPage(page []byte) *IndexPage {
	return (*IndexPage)(unsafe.Pointer(&page[0]))
}

func indexPageHeaderSize() int {
	return int(unsafe.Sizeof(IndexPage{}))
}

func leafSlotSize(keySize uint16) uint16     { return keySize + 4 }
func internalSlotSize(keySize uint16) uint16 { return keySize + 8 }

func defaultIndexCap(keySize uint16, leaf bool) uint16 {
	var slot uint16
	if leaf {
		slot = leafSlotSize(keySize)
	} else {
		slot = internalSlotSize(keySize)
	}
	avail := pager.PageSize - indexPageHeaderSize()
	// one slot stays free for the entry that overflows a node just
	// before it splits
	return uint16(avail)/slot - 1
}

func entryArea(page []byte) []byte { return page[indexPageHeaderSize():] }

func entryAt(page []byte, i int, slotSize uint16) []byte {
	off := i * int(slotSize)
	return entryArea(page)[off : off+int(slotSize)]
}

func entryKey(entry []byte, keySize uint16) []byte { return entry[:keySize] }

func entryRid(entry []byte, keySize uint16) pager.Rid {
	return pager.Rid(binary.LittleEndian.Uint32(entry[keySize : keySize+4]))
}

func setEntryRid(entry []byte, keySize uint16, rid pager.Rid) {
	binary.LittleEndian.PutUint32(entry[keySize:keySize+4], uint32(rid))
}

func entryChild(entry []byte, keySize uint16) pager.PageID {
	return pager.PageID(binary.LittleEndian.Uint32(entry[keySize+4 : keySize+8]))
}

func setEntryChild(entry []byte, keySize uint16, child pager.PageID) {
	binary.LittleEndian.PutUint32(entry[keySize+4:keySize+8], uint32(child))
}

// compareEntry orders by key first, then by Rid, giving the total
// order spec.md §4.3 requires over (key, rid) pairs.
func compareEntry(keyA []byte, ridA pager.Rid, keyB []byte, ridB pager.Rid) int {
	if c := bytes.Compare(keyA, keyB); c != 0 {
		return c
	}
	switch {
	case ridA < ridB:
		return -1
	case ridA > ridB:
		return 1
	default:
		return 0
	}
}

// searchLeaf returns the index of the first entry >= (key, rid), and
// whether an exact match was found there.
func searchLeaf(page []byte, count int, keySize uint16, key []byte, rid pager.Rid) (int, bool) {
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		e := entryAt(page, mid, leafSlotSize(keySize))
		if compareEntry(entryKey(e, keySize), entryRid(e, keySize), key, rid) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < count {
		e := entryAt(page, lo, leafSlotSize(keySize))
		if compareEntry(entryKey(e, keySize), entryRid(e, keySize), key, rid) == 0 {
			return lo, true
		}
	}
	return lo, false
}

// searchInternal returns the index of the child to descend into: the
// last entry whose (key, rid) is <= the search (key, rid), or 0 if
// every entry is greater.
func searchInternal(page []byte, count int, keySize uint16, key []byte, rid pager.Rid) int {
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		e := entryAt(page, mid, internalSlotSize(keySize))
		if compareEntry(entryKey(e, keySize), entryRid(e, keySize), key, rid) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	return lo - 1
}
