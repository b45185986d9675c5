package export_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	assertion "github.com/stretchr/testify/assert"

	"relcore"
	"relcore/catalog"
	"relcore/export"
)

func tempDB(t *testing.T) *relcore.DB {
	t.Helper()
	f, err := os.CreateTemp("", "relcore-export-*.db")
	if err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()
	os.Remove(path)
	t.Cleanup(func() { os.Remove(path) })

	db, err := relcore.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func peopleSpec() catalog.TableSpec {
	return catalog.TableSpec{
		Name: "people",
		Cols: []catalog.ColSpec{
			{Name: "id", Type: catalog.ColType{Kind: catalog.Int}, NotNull: true},
			{Name: "name", Type: catalog.ColType{Kind: catalog.Char, Size: 8}},
		},
		Constraints: []catalog.Constraint{
			{Col: "id", Kind: catalog.ConstraintPrimary},
		},
	}
}

func encodeRow(id int32, name string) []byte {
	row := make([]byte, 4+4+8) // null-bitset word + id + name
	binary.LittleEndian.PutUint32(row[4:8], uint32(id))
	copy(row[8:16], name)
	return row
}

func populate(t *testing.T, db *relcore.DB, n int) {
	t.Helper()
	assert := assertion.New(t)
	assert.NoError(db.CreateTable(peopleSpec()))
	for i := 0; i < n; i++ {
		_, err := db.InsertRow("people", encodeRow(int32(i), "p"))
		assert.NoError(err)
	}
}

func dumpLoadRoundTrip(t *testing.T, algo export.CompressAlgorithm) {
	assert := assertion.New(t)

	src := tempDB(t)
	populate(t, src, 20)

	var buf bytes.Buffer
	assert.NoError(export.Dump(&buf, src.Catalog, "people", algo))

	dst := tempDB(t)
	assert.NoError(dst.CreateTable(peopleSpec()))
	assert.NoError(export.Load(&buf, dst.Catalog, "people"))

	rids, err := dst.Rows("people")
	assert.NoError(err)
	assert.Len(rids, 20)

	for i := 0; i < 20; i++ {
		idBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(idBytes, uint32(i))
		got, err := dst.Lookup("people", "id", idBytes)
		assert.NoError(err)
		assert.Len(got, 1, "id %d should be reindexed after Load", i)
	}
}

func TestDumpLoadRoundTripNoCompression(t *testing.T) {
	dumpLoadRoundTrip(t, export.CompNone)
}

func TestDumpLoadRoundTripSnappy(t *testing.T) {
	dumpLoadRoundTrip(t, export.CompSnappy)
}

func TestDumpLoadRoundTripLz4(t *testing.T) {
	dumpLoadRoundTrip(t, export.CompLz4)
}

func TestLoadRejectsMismatchedRowSize(t *testing.T) {
	assert := assertion.New(t)

	src := tempDB(t)
	populate(t, src, 1)

	var buf bytes.Buffer
	assert.NoError(export.Dump(&buf, src.Catalog, "people", export.CompNone))

	dst := tempDB(t)
	assert.NoError(dst.CreateTable(catalog.TableSpec{
		Name: "people",
		Cols: []catalog.ColSpec{
			{Name: "id", Type: catalog.ColType{Kind: catalog.Int}, NotNull: true},
		},
		Constraints: []catalog.Constraint{
			{Col: "id", Kind: catalog.ConstraintPrimary},
		},
	}))

	assert.Error(export.Load(&buf, dst.Catalog, "people"))
}
