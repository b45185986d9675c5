// Package relcore composes the pager and catalog packages into the
// caller-facing storage and access-path core: a paged, memory-mapped
// file holding a table directory, row heaps, and B+-tree indexes.
//
// relcore has no SQL parser, no query planner, and no driver — it is
// the layer those would be built on. See DESIGN.md for the
// architecture this module was grounded on.
package relcore

import (
	"github.com/pkg/errors"

	"relcore/catalog"
	"relcore/pager"
)

// Options carries the run-time knobs Create/Open expose beyond the
// compile-time page-size constants.
type Options struct {
	// ReadOnly opens the database file under a shared advisory lock
	// and maps it without write access. DB's mutating methods do not
	// check this flag.
	ReadOnly bool
	// FlushEvery, when true, calls Flush after every mutating call.
	// Off by default: relcore relies on the host page cache.
	FlushEvery bool
}

// DB is a single open relcore database.
type DB struct {
	Pager   *pager.Pager
	Catalog *catalog.Catalog
	opts    Options
}

// Create makes a brand-new database file at path and opens it.
func Create(path string) (*DB, error) {
	p, err := pager.Create(path)
	if err != nil {
		return nil, err
	}
	return &DB{Pager: p, Catalog: catalog.New(p)}, nil
}

// Open opens an existing database file at path.
func Open(path string, opts Options) (*DB, error) {
	p, err := pager.Open(path, opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	return &DB{Pager: p, Catalog: catalog.New(p), opts: opts}, nil
}

// Close unmaps and unlocks the database file.
func (db *DB) Close() error {
	return db.Pager.Close()
}

func (db *DB) maybeFlush() error {
	if db.opts.FlushEvery {
		return db.Pager.Flush()
	}
	return nil
}

// CreateTable defines a new table.
func (db *DB) CreateTable(spec catalog.TableSpec) error {
	if err := db.Catalog.CreateTable(spec); err != nil {
		return err
	}
	return db.maybeFlush()
}

// DropTable removes a table and every index it owns.
func (db *DB) DropTable(name string) error {
	if err := db.Catalog.DropTable(name); err != nil {
		return err
	}
	return db.maybeFlush()
}

// CreateIndex builds a B+-tree index on table.col. The table must be
// empty.
func (db *DB) CreateIndex(table, col string) error {
	if err := db.Catalog.CreateIndex(table, col); err != nil {
		return err
	}
	return db.maybeFlush()
}

// DropIndex frees table.col's index tree. Fails on a UNIQUE column.
func (db *DB) DropIndex(table, col string) error {
	if err := db.Catalog.DropIndex(table, col); err != nil {
		return err
	}
	return db.maybeFlush()
}

// InsertRow reserves a heap slot for record in table, copies record
// into it, and maintains every index owned by one of the table's
// columns. On a UNIQUE violation the slot is rolled back and no index
// is left partially updated.
func (db *DB) InsertRow(table string, record []byte) (pager.Rid, error) {
	tp, err := db.Catalog.GetTablePage(table)
	if err != nil {
		return 0, err
	}
	if int(tp.Size) != len(record) {
		return 0, errors.Errorf("relcore: record length %d does not match table row size %d", len(record), tp.Size)
	}

	rid := db.Catalog.AllocateDataSlot(tp)
	dst := db.Catalog.GetDataSlot(tp, rid)
	copy(dst, record)

	var indexed []*catalog.ColInfo
	for i := 0; i < int(tp.ColNum); i++ {
		ci := &tp.Cols[i]
		if !ci.HasIndex() {
			continue
		}
		key := catalog.RowKey(ci, dst)
		if err := db.Catalog.IndexInsert(ci, key, rid); err != nil {
			for _, done := range indexed {
				db.Catalog.IndexDelete(done, catalog.RowKey(done, dst), rid)
			}
			db.Catalog.DeallocateDataSlot(tp, rid)
			return 0, err
		}
		indexed = append(indexed, ci)
	}

	if err := db.maybeFlush(); err != nil {
		return rid, err
	}
	return rid, nil
}

// DeleteRow removes rid from table, together with every index entry
// it owns.
func (db *DB) DeleteRow(table string, rid pager.Rid) error {
	tp, err := db.Catalog.GetTablePage(table)
	if err != nil {
		return err
	}
	record := append([]byte(nil), db.Catalog.GetDataSlot(tp, rid)...)
	for i := 0; i < int(tp.ColNum); i++ {
		ci := &tp.Cols[i]
		if !ci.HasIndex() {
			continue
		}
		db.Catalog.IndexDelete(ci, catalog.RowKey(ci, record), rid)
	}
	db.Catalog.DeallocateDataSlot(tp, rid)
	return db.maybeFlush()
}

// GetRow returns the raw byte window of rid's row record.
func (db *DB) GetRow(table string, rid pager.Rid) ([]byte, error) {
	tp, err := db.Catalog.GetTablePage(table)
	if err != nil {
		return nil, err
	}
	return db.Catalog.GetDataSlot(tp, rid), nil
}

// Rows enumerates every live row id in table.
func (db *DB) Rows(table string) ([]pager.Rid, error) {
	tp, err := db.Catalog.GetTablePage(table)
	if err != nil {
		return nil, err
	}
	return db.Catalog.RecordIter(tp), nil
}

// Lookup returns every Rid whose table.col value equals the decoded
// key bytes of raw (the column's native little-endian storage
// encoding, not the index's internal byte-comparable form).
func (db *DB) Lookup(table, col string, raw []byte) ([]pager.Rid, error) {
	ci, err := db.Catalog.GetColInfo(table, col)
	if err != nil {
		return nil, err
	}
	if !ci.HasIndex() {
		return nil, errors.Wrapf(catalog.ErrNoSuchIndex, "%s.%s", table, col)
	}
	return db.Catalog.IndexSearch(ci, catalog.EncodeKey(ci.Type, raw)), nil
}

// Range returns every Rid whose table.col value lies in [lowRaw,
// highRaw] inclusive, in the column's native storage encoding. A nil
// highRaw means no upper bound.
func (db *DB) Range(table, col string, lowRaw, highRaw []byte) ([]pager.Rid, error) {
	ci, err := db.Catalog.GetColInfo(table, col)
	if err != nil {
		return nil, err
	}
	if !ci.HasIndex() {
		return nil, errors.Wrapf(catalog.ErrNoSuchIndex, "%s.%s", table, col)
	}
	var upper []byte
	if highRaw != nil {
		upper = catalog.EncodeKey(ci.Type, highRaw)
	}
	return db.Catalog.IndexRange(ci, catalog.EncodeKey(ci.Type, lowRaw), upper), nil
}
