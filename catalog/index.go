package catalog

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"relcore/pager"
)

// CreateIndex builds a fresh, empty B+-tree index on table.col. The
// table must have no rows yet (spec.md §4.3: "this avoids the need
// for bulk build").
func (c *Catalog) CreateIndex(table, col string) error {
	return c.createIndex(table, col, 0)
}

// CreateIndexWithCap is CreateIndex but overrides the per-node entry
// capacity — spec.md §8's "tests may override cap to force shallow
// fan-out and exercise split/merge logic".
func (c *Catalog) CreateIndexWithCap(table, col string, cap uint16) error {
	return c.createIndex(table, col, cap)
}

func (c *Catalog) createIndex(table, col string, capOverride uint16) error {
	tp, err := c.GetTablePage(table)
	if err != nil {
		return err
	}
	if len(c.RecordIter(tp)) != 0 {
		return ErrCreateIndexOnNonEmpty
	}
	ci := tp.GetCol(col)
	if ci == nil {
		return errors.Wrapf(ErrNoSuchCol, "column %q", col)
	}
	if ci.HasIndex() {
		return ErrDupIndex
	}
	c.createIndexImplCap(ci, capOverride)
	logrus.WithFields(logrus.Fields{"table": table, "col": col}).Debug("catalog: created index")
	return nil
}

func (c *Catalog) createIndexImpl(ci *ColInfo) {
	c.createIndexImplCap(ci, 0)
}

func (c *Catalog) createIndexImplCap(ci *ColInfo, capOverride uint16) {
	id, page := c.Pager.AllocatePage()
	ip := asIndexPage(page)
	*ip = IndexPage{}
	ip.Leaf = 1
	ip.KeySize = ci.Type.KeyWidth()
	ip.SlotSize = leafSlotSize(ip.KeySize)
	if capOverride > 0 {
		ip.Cap = capOverride
	} else {
		ip.Cap = defaultIndexCap(ip.KeySize, true)
	}
	ip.Prev = pager.NonePage
	ip.Next = pager.NonePage
	ci.IndexPage = id
}

// DropIndex frees every page of table.col's index tree. Fails
// DropIndexOnUnique if the column is UNIQUE (spec.md §4.3: "the
// UNIQUE index is mandatory").
func (c *Catalog) DropIndex(table, col string) error {
	ci, err := c.GetColInfo(table, col)
	if err != nil {
		return err
	}
	if !ci.HasIndex() {
		return ErrNoSuchIndex
	}
	if ci.Flags.Has(FlagUnique) {
		return ErrDropIndexOnUnique
	}
	c.freeIndexTree(ci.IndexPage)
	ci.IndexPage = pager.NonePage
	logrus.WithFields(logrus.Fields{"table": table, "col": col}).Debug("catalog: dropped index")
	return nil
}

func (c *Catalog) freeIndexTree(root pager.PageID) {
	page := c.Pager.GetPage(root)
	ip := asIndexPage(page)
	if ip.Leaf == 0 {
		for i := 0; i < int(ip.Count); i++ {
			e := entryAt(page, i, internalSlotSize(ip.KeySize))
			c.freeIndexTree(entryChild(e, ip.KeySize))
		}
	}
	c.Pager.DeallocatePage(root)
}

// IndexInsert inserts (key, rid) into ci's index. If ci is UNIQUE, any
// existing entry with an equal key — including the exact same (key,
// rid) pair — fails ErrDupIndexValue, since a unique index never holds
// two entries for the same key regardless of Rid. On a non-unique
// index, re-inserting an already-present (key, rid) pair is a no-op.
func (c *Catalog) IndexInsert(ci *ColInfo, key []byte, rid pager.Rid) error {
	if !ci.HasIndex() {
		return ErrNoSuchIndex
	}
	unique := ci.Flags.Has(FlagUnique)
	splitKey, splitRid, newChild, err := c.insertInto(ci.IndexPage, key, rid, unique)
	if err != nil {
		return err
	}
	if newChild == pager.NonePage {
		return nil
	}

	oldRoot := ci.IndexPage
	id, page := c.Pager.AllocatePage()
	oldIP := asIndexPage(c.Pager.GetPage(oldRoot))
	ip := asIndexPage(page)
	*ip = IndexPage{}
	ip.Leaf = 0
	ip.KeySize = oldIP.KeySize
	ip.SlotSize = internalSlotSize(ip.KeySize)
	ip.Cap = oldIP.Cap
	if internalCap := defaultIndexCap(ip.KeySize, false); ip.Cap > internalCap {
		ip.Cap = internalCap
	}
	ip.Prev = pager.NonePage
	ip.Next = pager.NonePage
	ip.Count = 2

	e0 := entryAt(page, 0, ip.SlotSize)
	zeroKey := make([]byte, ip.KeySize)
	copy(entryKey(e0, ip.KeySize), zeroKey)
	setEntryRid(e0, ip.KeySize, 0)
	setEntryChild(e0, ip.KeySize, oldRoot)

	e1 := entryAt(page, 1, ip.SlotSize)
	copy(entryKey(e1, ip.KeySize), splitKey)
	setEntryRid(e1, ip.KeySize, splitRid)
	setEntryChild(e1, ip.KeySize, newChild)

	ci.IndexPage = id
	return nil
}

// insertInto recurses to the correct leaf, inserting (key, rid) in
// sorted position, and splits any node that overflows its Cap,
// propagating the new sibling's separator upward. Returns a non-none
// newChild page id when the caller (or the root) must link it in.
func (c *Catalog) insertInto(pageID pager.PageID, key []byte, rid pager.Rid, unique bool) ([]byte, pager.Rid, pager.PageID, error) {
	page := c.Pager.GetPage(pageID)
	ip := asIndexPage(page)
	keySize := ip.KeySize

	if ip.Leaf != 0 {
		slotSize := leafSlotSize(keySize)
		pos, exact := searchLeaf(page, int(ip.Count), keySize, key, rid)
		if unique {
			if pos < int(ip.Count) && bytes.Equal(entryKey(entryAt(page, pos, slotSize), keySize), key) {
				return nil, 0, pager.NonePage, ErrDupIndexValue
			}
			if pos > 0 && bytes.Equal(entryKey(entryAt(page, pos-1, slotSize), keySize), key) {
				return nil, 0, pager.NonePage, ErrDupIndexValue
			}
			if pos == int(ip.Count) && ip.Next != pager.NonePage {
				next := c.Pager.GetPage(ip.Next)
				if asIndexPage(next).Count > 0 && bytes.Equal(entryKey(entryAt(next, 0, slotSize), keySize), key) {
					return nil, 0, pager.NonePage, ErrDupIndexValue
				}
			}
			if pos == 0 && ip.Prev != pager.NonePage {
				prev := c.Pager.GetPage(ip.Prev)
				if n := int(asIndexPage(prev).Count); n > 0 && bytes.Equal(entryKey(entryAt(prev, n-1, slotSize), keySize), key) {
					return nil, 0, pager.NonePage, ErrDupIndexValue
				}
			}
		}
		if exact {
			return nil, 0, pager.NonePage, nil
		}

		area := entryArea(page)
		copy(area[(pos+1)*int(slotSize):(int(ip.Count)+1)*int(slotSize)], area[pos*int(slotSize):int(ip.Count)*int(slotSize)])
		e := entryAt(page, pos, slotSize)
		copy(entryKey(e, keySize), key)
		setEntryRid(e, keySize, rid)
		ip.Count++

		if int(ip.Count) <= int(ip.Cap) {
			return nil, 0, pager.NonePage, nil
		}
		k, r, id := c.splitLeaf(pageID, ip)
		return k, r, id, nil
	}

	slotSize := internalSlotSize(keySize)
	childIdx := searchInternal(page, int(ip.Count), keySize, key, rid)
	child := entryChild(entryAt(page, childIdx, slotSize), keySize)

	splitKey, splitRid, newChild, err := c.insertInto(child, key, rid, unique)
	if err != nil || newChild == pager.NonePage {
		return nil, 0, pager.NonePage, err
	}

	pos := childIdx + 1
	area := entryArea(page)
	copy(area[(pos+1)*int(slotSize):(int(ip.Count)+1)*int(slotSize)], area[pos*int(slotSize):int(ip.Count)*int(slotSize)])
	e := entryAt(page, pos, slotSize)
	copy(entryKey(e, keySize), splitKey)
	setEntryRid(e, keySize, splitRid)
	setEntryChild(e, keySize, newChild)
	ip.Count++

	if int(ip.Count) <= int(ip.Cap) {
		return nil, 0, pager.NonePage, nil
	}
	k, r, id := c.splitInternal(pageID, ip)
	return k, r, id, nil
}

func (c *Catalog) splitLeaf(pageID pager.PageID, ip *IndexPage) ([]byte, pager.Rid, pager.PageID) {
	keySize := ip.KeySize
	slotSize := leafSlotSize(keySize)
	page := c.Pager.GetPage(pageID)
	total := int(ip.Count)
	mid := total / 2

	newID, newPage := c.Pager.AllocatePage()
	page = c.Pager.GetPage(pageID) // AllocatePage may grow the file; re-borrow for clarity
	newIP := asIndexPage(newPage)
	*newIP = IndexPage{}
	newIP.Leaf = 1
	newIP.KeySize = keySize
	newIP.SlotSize = slotSize
	newIP.Cap = ip.Cap
	newIP.Count = uint16(total - mid)

	srcArea := entryArea(page)
	dstArea := entryArea(newPage)
	copy(dstArea[:int(newIP.Count)*int(slotSize)], srcArea[mid*int(slotSize):total*int(slotSize)])

	ip.Count = uint16(mid)

	newIP.Next = ip.Next
	newIP.Prev = pageID
	if ip.Next != pager.NonePage {
		asIndexPage(c.Pager.GetPage(ip.Next)).Prev = newID
	}
	ip.Next = newID

	firstEntry := entryAt(newPage, 0, slotSize)
	splitKey := append([]byte(nil), entryKey(firstEntry, keySize)...)
	return splitKey, entryRid(firstEntry, keySize), newID
}

func (c *Catalog) splitInternal(pageID pager.PageID, ip *IndexPage) ([]byte, pager.Rid, pager.PageID) {
	keySize := ip.KeySize
	slotSize := internalSlotSize(keySize)
	page := c.Pager.GetPage(pageID)
	total := int(ip.Count)
	mid := total / 2

	midEntry := entryAt(page, mid, slotSize)
	upKey := append([]byte(nil), entryKey(midEntry, keySize)...)
	upRid := entryRid(midEntry, keySize)
	midChild := entryChild(midEntry, keySize)

	newID, newPage := c.Pager.AllocatePage()
	page = c.Pager.GetPage(pageID)
	newIP := asIndexPage(newPage)
	*newIP = IndexPage{}
	newIP.Leaf = 0
	newIP.KeySize = keySize
	newIP.SlotSize = slotSize
	newIP.Cap = ip.Cap
	newIP.Prev = pager.NonePage
	newIP.Next = pager.NonePage

	remain := total - mid - 1
	newIP.Count = uint16(remain + 1)

	dstArea := entryArea(newPage)
	sentinel := entryAt(newPage, 0, slotSize)
	zeroKey := make([]byte, keySize)
	copy(entryKey(sentinel, keySize), zeroKey)
	setEntryRid(sentinel, keySize, 0)
	setEntryChild(sentinel, keySize, midChild)

	if remain > 0 {
		srcArea := entryArea(page)
		copy(dstArea[int(slotSize):(remain+1)*int(slotSize)], srcArea[(mid+1)*int(slotSize):total*int(slotSize)])
	}

	ip.Count = uint16(mid)
	return upKey, upRid, newID
}

// IndexSearch returns every Rid stored under an exact key.
func (c *Catalog) IndexSearch(ci *ColInfo, key []byte) []pager.Rid {
	return c.IndexRange(ci, key, key)
}

// IndexRange returns every Rid whose key lies in [lower, upper]
// (inclusive). upper == nil means no upper bound.
func (c *Catalog) IndexRange(ci *ColInfo, lower, upper []byte) []pager.Rid {
	if !ci.HasIndex() {
		return nil
	}
	pageID := c.descendToLeaf(ci.IndexPage, lower, 0)
	var out []pager.Rid
	for pageID != pager.NonePage {
		page := c.Pager.GetPage(pageID)
		ip := asIndexPage(page)
		slotSize := leafSlotSize(ip.KeySize)
		stop := false
		for i := 0; i < int(ip.Count); i++ {
			e := entryAt(page, i, slotSize)
			k := entryKey(e, ip.KeySize)
			if bytes.Compare(k, lower) < 0 {
				continue
			}
			if upper != nil && bytes.Compare(k, upper) > 0 {
				stop = true
				break
			}
			out = append(out, entryRid(e, ip.KeySize))
		}
		if stop {
			break
		}
		pageID = ip.Next
	}
	return out
}

func (c *Catalog) descendToLeaf(pageID pager.PageID, key []byte, rid pager.Rid) pager.PageID {
	page := c.Pager.GetPage(pageID)
	ip := asIndexPage(page)
	if ip.Leaf != 0 {
		return pageID
	}
	idx := searchInternal(page, int(ip.Count), ip.KeySize, key, rid)
	child := entryChild(entryAt(page, idx, internalSlotSize(ip.KeySize)), ip.KeySize)
	return c.descendToLeaf(child, key, rid)
}

// IndexDelete removes the (key, rid) pair from ci's index. Returns
// whether it was present.
func (c *Catalog) IndexDelete(ci *ColInfo, key []byte, rid pager.Rid) bool {
	if !ci.HasIndex() {
		return false
	}
	found, _ := c.deleteFrom(ci.IndexPage, key, rid)

	root := ci.IndexPage
	page := c.Pager.GetPage(root)
	ip := asIndexPage(page)
	if ip.Leaf == 0 && ip.Count == 1 {
		child := entryChild(entryAt(page, 0, internalSlotSize(ip.KeySize)), ip.KeySize)
		c.Pager.DeallocatePage(root)
		ci.IndexPage = child
	}
	return found
}

func minEntries(cap uint16) uint16 { return (cap + 1) / 2 }

func (c *Catalog) deleteFrom(pageID pager.PageID, key []byte, rid pager.Rid) (found bool, underflow bool) {
	page := c.Pager.GetPage(pageID)
	ip := asIndexPage(page)
	keySize := ip.KeySize

	if ip.Leaf != 0 {
		slotSize := leafSlotSize(keySize)
		pos, exact := searchLeaf(page, int(ip.Count), keySize, key, rid)
		if !exact {
			return false, false
		}
		area := entryArea(page)
		copy(area[pos*int(slotSize):(int(ip.Count)-1)*int(slotSize)], area[(pos+1)*int(slotSize):int(ip.Count)*int(slotSize)])
		ip.Count--
		return true, ip.Count < minEntries(ip.Cap)
	}

	slotSize := internalSlotSize(keySize)
	childIdx := searchInternal(page, int(ip.Count), keySize, key, rid)
	child := entryChild(entryAt(page, childIdx, slotSize), keySize)

	found, childUnderflow := c.deleteFrom(child, key, rid)
	if !found {
		return false, false
	}
	if !childUnderflow {
		return true, false
	}

	page = c.Pager.GetPage(pageID)
	ip = asIndexPage(page)
	c.rebalance(pageID, page, ip, childIdx)
	return true, ip.Count < minEntries(ip.Cap)
}

func (c *Catalog) rebalance(parentID pager.PageID, parentPage []byte, parentIP *IndexPage, childIdx int) {
	pslot := internalSlotSize(parentIP.KeySize)
	childID := entryChild(entryAt(parentPage, childIdx, pslot), parentIP.KeySize)
	childPage := c.Pager.GetPage(childID)
	childIP := asIndexPage(childPage)

	if childIdx > 0 {
		leftID := entryChild(entryAt(parentPage, childIdx-1, pslot), parentIP.KeySize)
		leftPage := c.Pager.GetPage(leftID)
		leftIP := asIndexPage(leftPage)
		if leftIP.Count > minEntries(leftIP.Cap) {
			c.borrowFromLeft(parentPage, parentIP, childIdx, leftPage, leftIP, childPage, childIP)
			return
		}
	}
	if childIdx < int(parentIP.Count)-1 {
		rightID := entryChild(entryAt(parentPage, childIdx+1, pslot), parentIP.KeySize)
		rightPage := c.Pager.GetPage(rightID)
		rightIP := asIndexPage(rightPage)
		if rightIP.Count > minEntries(rightIP.Cap) {
			c.borrowFromRight(parentPage, parentIP, childIdx, childPage, childIP, rightPage, rightIP)
			return
		}
	}

	if childIdx > 0 {
		leftID := entryChild(entryAt(parentPage, childIdx-1, pslot), parentIP.KeySize)
		c.mergeChildren(parentPage, parentIP, childIdx-1, leftID, childIdx, childID)
	} else {
		rightID := entryChild(entryAt(parentPage, childIdx+1, pslot), parentIP.KeySize)
		c.mergeChildren(parentPage, parentIP, childIdx, childID, childIdx+1, rightID)
	}
}

func (c *Catalog) mergeChildren(parentPage []byte, parentIP *IndexPage, leftIdx int, leftID pager.PageID, rightIdx int, rightID pager.PageID) {
	leftPage := c.Pager.GetPage(leftID)
	leftIP := asIndexPage(leftPage)
	rightPage := c.Pager.GetPage(rightID)
	rightIP := asIndexPage(rightPage)
	keySize := leftIP.KeySize
	pslot := internalSlotSize(parentIP.KeySize)

	if leftIP.Leaf != 0 {
		slotSize := leafSlotSize(keySize)
		leftArea := entryArea(leftPage)
		rightArea := entryArea(rightPage)
		copy(leftArea[int(leftIP.Count)*int(slotSize):(int(leftIP.Count)+int(rightIP.Count))*int(slotSize)], rightArea[:int(rightIP.Count)*int(slotSize)])
		leftIP.Count += rightIP.Count
		leftIP.Next = rightIP.Next
		if rightIP.Next != pager.NonePage {
			asIndexPage(c.Pager.GetPage(rightIP.Next)).Prev = leftID
		}
	} else {
		slotSize := internalSlotSize(keySize)
		sepEntry := entryAt(parentPage, rightIdx, pslot)
		sepKey := append([]byte(nil), entryKey(sepEntry, parentIP.KeySize)...)
		sepRid := entryRid(sepEntry, parentIP.KeySize)

		leftArea := entryArea(leftPage)
		rightArea := entryArea(rightPage)

		demoted := entryAt(leftPage, int(leftIP.Count), slotSize)
		copy(entryKey(demoted, keySize), sepKey)
		setEntryRid(demoted, keySize, sepRid)
		rightSentinelChild := entryChild(entryAt(rightPage, 0, slotSize), keySize)
		setEntryChild(demoted, keySize, rightSentinelChild)

		remain := int(rightIP.Count) - 1
		if remain > 0 {
			copy(leftArea[(int(leftIP.Count)+1)*int(slotSize):(int(leftIP.Count)+1+remain)*int(slotSize)], rightArea[int(slotSize):int(rightIP.Count)*int(slotSize)])
		}
		leftIP.Count += rightIP.Count
	}

	c.Pager.DeallocatePage(rightID)

	parentArea := entryArea(parentPage)
	copy(parentArea[rightIdx*int(pslot):(int(parentIP.Count)-1)*int(pslot)], parentArea[(rightIdx+1)*int(pslot):int(parentIP.Count)*int(pslot)])
	parentIP.Count--
}

func (c *Catalog) borrowFromLeft(parentPage []byte, parentIP *IndexPage, childIdx int, leftPage []byte, leftIP *IndexPage, childPage []byte, childIP *IndexPage) {
	keySize := childIP.KeySize
	pslot := internalSlotSize(parentIP.KeySize)
	sep := entryAt(parentPage, childIdx, pslot)

	if childIP.Leaf != 0 {
		slotSize := leafSlotSize(keySize)
		leftArea := entryArea(leftPage)
		childArea := entryArea(childPage)
		lastEntry := append([]byte(nil), leftArea[(int(leftIP.Count)-1)*int(slotSize):int(leftIP.Count)*int(slotSize)]...)

		copy(childArea[int(slotSize):(int(childIP.Count)+1)*int(slotSize)], childArea[:int(childIP.Count)*int(slotSize)])
		copy(childArea[:int(slotSize)], lastEntry)
		childIP.Count++
		leftIP.Count--

		newFirst := entryAt(childPage, 0, slotSize)
		copy(entryKey(sep, parentIP.KeySize), entryKey(newFirst, keySize))
		setEntryRid(sep, parentIP.KeySize, entryRid(newFirst, keySize))
		return
	}

	slotSize := internalSlotSize(keySize)
	oldSepKey := append([]byte(nil), entryKey(sep, parentIP.KeySize)...)
	oldSepRid := entryRid(sep, parentIP.KeySize)

	lastEntry := entryAt(leftPage, int(leftIP.Count)-1, slotSize)
	lastChild := entryChild(lastEntry, keySize)
	lastKey := append([]byte(nil), entryKey(lastEntry, keySize)...)
	lastRid := entryRid(lastEntry, keySize)
	leftIP.Count--

	childArea := entryArea(childPage)
	copy(childArea[int(slotSize):(int(childIP.Count)+1)*int(slotSize)], childArea[:int(childIP.Count)*int(slotSize)])
	oldFirst := entryAt(childPage, 1, slotSize)
	copy(entryKey(oldFirst, keySize), oldSepKey)
	setEntryRid(oldFirst, keySize, oldSepRid)
	newSentinel := entryAt(childPage, 0, slotSize)
	copy(entryKey(newSentinel, keySize), make([]byte, keySize))
	setEntryRid(newSentinel, keySize, 0)
	setEntryChild(newSentinel, keySize, lastChild)
	childIP.Count++

	copy(entryKey(sep, parentIP.KeySize), lastKey)
	setEntryRid(sep, parentIP.KeySize, lastRid)
}

func (c *Catalog) borrowFromRight(parentPage []byte, parentIP *IndexPage, childIdx int, childPage []byte, childIP *IndexPage, rightPage []byte, rightIP *IndexPage) {
	keySize := childIP.KeySize
	pslot := internalSlotSize(parentIP.KeySize)
	sepIdx := childIdx + 1
	sep := entryAt(parentPage, sepIdx, pslot)

	if childIP.Leaf != 0 {
		slotSize := leafSlotSize(keySize)
		childArea := entryArea(childPage)
		rightArea := entryArea(rightPage)
		firstEntry := append([]byte(nil), rightArea[:int(slotSize)]...)

		copy(childArea[int(childIP.Count)*int(slotSize):(int(childIP.Count)+1)*int(slotSize)], firstEntry)
		childIP.Count++
		copy(rightArea[:(int(rightIP.Count)-1)*int(slotSize)], rightArea[int(slotSize):int(rightIP.Count)*int(slotSize)])
		rightIP.Count--

		newRightFirst := entryAt(rightPage, 0, slotSize)
		copy(entryKey(sep, parentIP.KeySize), entryKey(newRightFirst, keySize))
		setEntryRid(sep, parentIP.KeySize, entryRid(newRightFirst, keySize))
		return
	}

	slotSize := internalSlotSize(keySize)
	oldSepKey := append([]byte(nil), entryKey(sep, parentIP.KeySize)...)
	oldSepRid := entryRid(sep, parentIP.KeySize)

	rightSentinelChild := entryChild(entryAt(rightPage, 0, slotSize), keySize)

	newEntry := entryAt(childPage, int(childIP.Count), slotSize)
	copy(entryKey(newEntry, keySize), oldSepKey)
	setEntryRid(newEntry, keySize, oldSepRid)
	setEntryChild(newEntry, keySize, rightSentinelChild)
	childIP.Count++

	rightArea := entryArea(rightPage)
	nextEntry := entryAt(rightPage, 1, slotSize)
	newSepKey := append([]byte(nil), entryKey(nextEntry, keySize)...)
	newSepRid := entryRid(nextEntry, keySize)

	copy(rightArea[:(int(rightIP.Count)-1)*int(slotSize)], rightArea[int(slotSize):int(rightIP.Count)*int(slotSize)])
	rightIP.Count--
	rightSentinel := entryAt(rightPage, 0, slotSize)
	copy(entryKey(rightSentinel, keySize), make([]byte, keySize))
	setEntryRid(rightSentinel, keySize, 0)

	copy(entryKey(sep, parentIP.KeySize), newSepKey)
	setEntryRid(sep, parentIP.KeySize, newSepRid)
}
