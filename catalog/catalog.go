package catalog

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"relcore/pager"
)

// Catalog maintains the meta page's table directory and the
// table-meta/data pages reachable from it, on top of a pager.Pager.
type Catalog struct {
	Pager *pager.Pager
}

// New wraps an already-open pager.Pager in a Catalog.
func New(p *pager.Pager) *Catalog {
	return &Catalog{Pager: p}
}

// ColSpec describes one column of a table to be created.
type ColSpec struct {
	Name    string
	Type    ColType
	NotNull bool
}

// ConstraintKind distinguishes the two kinds of table constraint
// spec.md names.
type ConstraintKind uint8

const (
	ConstraintPrimary ConstraintKind = iota
	ConstraintForeign
)

// Constraint attaches a PRIMARY KEY or FOREIGN KEY constraint to a
// column named Col.
type Constraint struct {
	Col          string
	Kind         ConstraintKind
	ForeignTable string
	ForeignCol   string
}

// TableSpec is the input to CreateTable.
type TableSpec struct {
	Name        string
	Cols        []ColSpec
	Constraints []Constraint
}

// GetTableInfo looks up a live table by name in the meta page's
// directory, returning its TableInfo and positional index.
func (c *Catalog) GetTableInfo(name string) (*pager.TableInfo, int, error) {
	meta := c.Pager.Meta()
	for i := 0; i < int(meta.TableNum); i++ {
		if meta.Tables[i].GetName() == name {
			return &meta.Tables[i], i, nil
		}
	}
	return nil, -1, ErrNoSuchTable
}

// GetTablePage returns the table-meta page for a live table.
func (c *Catalog) GetTablePage(name string) (*TablePage, error) {
	ti, _, err := c.GetTableInfo(name)
	if err != nil {
		return nil, err
	}
	return asTablePage(c.Pager.GetPage(ti.Meta)), nil
}

// GetColInfo returns the ColInfo for table.col.
func (c *Catalog) GetColInfo(table, col string) (*ColInfo, error) {
	tp, err := c.GetTablePage(table)
	if err != nil {
		return nil, err
	}
	ci := tp.GetCol(col)
	if ci == nil {
		return nil, errors.Wrapf(ErrNoSuchCol, "column %q", col)
	}
	return ci, nil
}

// tablePageID recovers the page id a TablePage view was taken from by
// pointer arithmetic against the pager's single mmap window (mirrors
// the teacher's id_of / the original engine's offset_from tricks).
func (c *Catalog) tablePageID(tp *TablePage) pager.PageID {
	b := (*[pager.PageSize]byte)(unsafe.Pointer(tp))[:]
	return c.Pager.PageIDOf(b)
}

func computeRecordSize(cols []ColSpec) (uint16, error) {
	size := uint16((len(cols)+31)/32) * 4
	if int(size) > MaxDataByte {
		return 0, ErrColSizeTooBig
	}
	for _, c := range cols {
		if c.Type.align4() {
			size = roundUp4(size)
		}
		size += c.Type.StorageSize()
		if int(size) > MaxDataByte {
			return 0, ErrColSizeTooBig
		}
	}
	size = roundUp4(size)
	if int(size) > MaxDataByte {
		return 0, ErrColSizeTooBig
	}
	if size < MinSlotSize {
		size = MinSlotSize
	}
	return size, nil
}

type resolvedForeign struct {
	colIdx     int
	tableIdx   int
	foreignIdx uint8
}

// CreateTable validates spec in full (spec.md §4.2 steps 1-7) before
// any page mutation, then commits: allocates a table-meta page,
// writes column infos with computed offsets, applies constraint
// flags, registers the table in the meta page, and creates a B+-tree
// index for every UNIQUE column (including the sole PRIMARY KEY).
func (c *Catalog) CreateTable(spec TableSpec) error {
	meta := c.Pager.Meta()

	if int(meta.TableNum) >= pager.MaxTable {
		return ErrTableExhausted
	}
	if len(spec.Name) >= pager.MaxTableName {
		return ErrTableNameTooLong
	}
	for i := 0; i < int(meta.TableNum); i++ {
		if meta.Tables[i].GetName() == spec.Name {
			return ErrDupTable
		}
	}
	if len(spec.Cols) >= MaxCol {
		return ErrColTooMany
	}

	seen := make(map[string]bool, len(spec.Cols))
	for _, col := range spec.Cols {
		if seen[col.Name] {
			return ErrDupCol
		}
		seen[col.Name] = true
		if len(col.Name) >= MaxColName {
			return ErrColNameTooLong
		}
	}

	colIndex := func(name string) int {
		for i, col := range spec.Cols {
			if col.Name == name {
				return i
			}
		}
		return -1
	}

	primaryCount := 0
	var foreigns []resolvedForeign
	for _, cons := range spec.Constraints {
		idx := colIndex(cons.Col)
		if idx < 0 {
			return ErrNoSuchCol
		}
		switch cons.Kind {
		case ConstraintPrimary:
			primaryCount++
		case ConstraintForeign:
			fti, ftIdx, err := c.GetTableInfo(cons.ForeignTable)
			if err != nil {
				return err
			}
			ftp := asTablePage(c.Pager.GetPage(fti.Meta))
			fci := ftp.GetCol(cons.ForeignCol)
			if fci == nil {
				return ErrNoSuchCol
			}
			if !fci.Flags.Has(FlagUnique) {
				return ErrForeignKeyOnNonUnique
			}
			if !foreignCompatible(spec.Cols[idx].Type, fci.Type) {
				return ErrIncompatibleForeignTy
			}
			foreigns = append(foreigns, resolvedForeign{
				colIdx:     idx,
				tableIdx:   ftIdx,
				foreignIdx: ftp.ColIndex(fci),
			})
		}
	}

	size, err := computeRecordSize(spec.Cols)
	if err != nil {
		return err
	}

	// --- no error can occur below this line: commit phase ---

	id, page := c.Pager.AllocatePage()
	tp := asTablePage(page)
	*tp = TablePage{}
	tp.ColNum = uint8(len(spec.Cols))

	off := uint16((len(spec.Cols)+31)/32) * 4
	for i, col := range spec.Cols {
		if col.Type.align4() {
			off = roundUp4(off)
		}
		ci := &tp.Cols[i]
		ci.Type = col.Type
		ci.Off = off
		ci.IndexPage = pager.NonePage
		ci.ForeignTable = NoneForeign
		ci.ForeignCol = NoneForeign
		ci.SetName(col.Name)
		if col.NotNull {
			ci.Flags |= FlagNotNull
		}
		off += col.Type.StorageSize()
	}

	tp.Size = size
	tp.Cap = computeCap(size)
	tp.FirstFree = pager.NonePage
	tp.Prev = id
	tp.Next = id

	for _, cons := range spec.Constraints {
		if cons.Kind != ConstraintPrimary {
			continue
		}
		ci := &tp.Cols[colIndex(cons.Col)]
		ci.Flags |= FlagPrimary | FlagNotNull
		if primaryCount == 1 {
			ci.Flags |= FlagUnique
		}
	}
	for _, f := range foreigns {
		ci := &tp.Cols[f.colIdx]
		ci.ForeignTable = uint8(f.tableIdx)
		ci.ForeignCol = f.foreignIdx
	}

	ti := &meta.Tables[meta.TableNum]
	ti.Meta = id
	ti.SetName(spec.Name)
	meta.TableNum++

	for i := 0; i < int(tp.ColNum); i++ {
		if tp.Cols[i].Flags.Has(FlagUnique) {
			c.createIndexImpl(&tp.Cols[i])
		}
	}

	logrus.WithFields(logrus.Fields{"table": spec.Name, "cols": len(spec.Cols)}).Debug("catalog: created table")
	return nil
}

// DropTable fails if any other table's column holds a foreign-key
// reference to this one; otherwise it drops every index the table
// owns, frees every data page on its ring, frees the table-meta page,
// and swaps the last live table descriptor into the freed slot
// (fixing up foreign_table back-references per spec.md §9).
func (c *Catalog) DropTable(name string) error {
	meta := c.Pager.Meta()
	_, idx, err := c.GetTableInfo(name)
	if err != nil {
		return err
	}

	for i := 0; i < int(meta.TableNum); i++ {
		if i == idx {
			continue
		}
		otp := asTablePage(c.Pager.GetPage(meta.Tables[i].Meta))
		for j := 0; j < int(otp.ColNum); j++ {
			if otp.Cols[j].HasForeign() && int(otp.Cols[j].ForeignTable) == idx {
				return ErrDropTableWithForeignLink
			}
		}
	}

	metaPageID := meta.Tables[idx].Meta
	tp := asTablePage(c.Pager.GetPage(metaPageID))

	for i := 0; i < int(tp.ColNum); i++ {
		if tp.Cols[i].HasIndex() {
			c.freeIndexTree(tp.Cols[i].IndexPage)
			tp.Cols[i].IndexPage = pager.NonePage
		}
	}

	cur := tp.Next
	for cur != metaPageID {
		dp := asDataPage(c.Pager.GetPage(cur))
		next := dp.Next
		c.Pager.DeallocatePage(cur)
		cur = next
	}
	c.Pager.DeallocatePage(metaPageID)

	lastIdx := int(meta.TableNum) - 1
	if idx != lastIdx {
		meta.Tables[idx] = meta.Tables[lastIdx]
		for i := 0; i < lastIdx; i++ {
			otp := asTablePage(c.Pager.GetPage(meta.Tables[i].Meta))
			for j := 0; j < int(otp.ColNum); j++ {
				if otp.Cols[j].HasForeign() && int(otp.Cols[j].ForeignTable) == lastIdx {
					otp.Cols[j].ForeignTable = uint8(idx)
				}
			}
		}
	}
	meta.TableNum--

	logrus.WithField("table", name).Debug("catalog: dropped table")
	return nil
}
