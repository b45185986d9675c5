package catalog

import "relcore/pager"

// ColInfo describes one column of a table (spec.md §3): semantic
// type, byte offset within the row, constraint flags, the page id of
// its index (or pager.NonePage), the referenced (table, col) pair if
// it's a foreign key (or NoneForeign), and its name.
type ColInfo struct {
	Type         ColType
	Off          uint16
	Flags        ColFlags
	IndexPage    pager.PageID
	ForeignTable uint8
	ForeignCol   uint8
	NameLen      uint8
	Name         [MaxColName - 1]byte
}

// GetName returns the column's name as a Go string.
func (c *ColInfo) GetName() string { return string(c.Name[:c.NameLen]) }

// SetName stores name into the fixed-width Name field. Callers must
// have already validated name's length.
func (c *ColInfo) SetName(name string) {
	c.NameLen = uint8(len(name))
	copy(c.Name[:], name)
}

// HasIndex reports whether this column carries a B+-tree index.
func (c *ColInfo) HasIndex() bool { return c.IndexPage != pager.NonePage }

// HasForeign reports whether this column is a foreign key.
func (c *ColInfo) HasForeign() bool { return c.ForeignTable != NoneForeign }
