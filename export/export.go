// Package export snapshots a table's live rows into a portable,
// optionally-compressed stream for backup/restore. It never parses a
// query or touches a row it isn't told to — the caller picks the
// table, relcore's catalog finds the rows.
package export

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"relcore/catalog"
)

var dumpMagic = [4]byte{'R', 'E', 'X', '1'}

// Dump writes every live row of table to w, each row independently
// compressed with algo and framed with a varint length prefix (the
// teacher's KVPair.Marshal framing, generalized from one key/value
// pair to one fixed-size row).
func Dump(w io.Writer, cat *catalog.Catalog, table string, algo CompressAlgorithm) error {
	tp, err := cat.GetTablePage(table)
	if err != nil {
		return err
	}

	if _, err := w.Write(dumpMagic[:]); err != nil {
		return errors.Wrap(err, "export: write magic")
	}
	if _, err := w.Write([]byte{byte(algo)}); err != nil {
		return errors.Wrap(err, "export: write algo")
	}
	sizeBuf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(sizeBuf, uint64(tp.Size))
	if _, err := w.Write(sizeBuf[:n]); err != nil {
		return errors.Wrap(err, "export: write row size")
	}

	compressor := compressorFor(algo)
	lenBuf := make([]byte, binary.MaxVarintLen64)
	for _, rid := range cat.RecordIter(tp) {
		row := cat.GetDataSlot(tp, rid)
		payload := row
		if compressor != nil {
			payload = compressor(row)
		}
		n := binary.PutUvarint(lenBuf, uint64(len(payload)))
		if _, err := w.Write(lenBuf[:n]); err != nil {
			return errors.Wrap(err, "export: write frame length")
		}
		if _, err := w.Write(payload); err != nil {
			return errors.Wrap(err, "export: write frame")
		}
	}
	return nil
}

// Load reads a stream written by Dump and re-inserts every row into
// table via AllocateDataSlot, re-populating every indexed column's
// B+-tree as it goes. table must already exist with a matching row
// size and must be empty — Load does not deduplicate against
// existing rows.
func Load(r io.Reader, cat *catalog.Catalog, table string) error {
	tp, err := cat.GetTablePage(table)
	if err != nil {
		return err
	}

	br := bufio.NewReader(r)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return errors.Wrap(err, "export: read magic")
	}
	if magic != dumpMagic {
		return errors.New("export: bad stream magic")
	}
	algoByte, err := br.ReadByte()
	if err != nil {
		return errors.Wrap(err, "export: read algo")
	}
	algo := CompressAlgorithm(algoByte)
	rowSize, err := binary.ReadUvarint(br)
	if err != nil {
		return errors.Wrap(err, "export: read row size")
	}
	if uint16(rowSize) != tp.Size {
		return errors.Errorf("export: stream row size %d does not match table row size %d", rowSize, tp.Size)
	}

	decompressor := decompressorFor(algo)
	for {
		frameLen, err := binary.ReadUvarint(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrap(err, "export: read frame length")
		}
		payload := make([]byte, frameLen)
		if _, err := io.ReadFull(br, payload); err != nil {
			return errors.Wrap(err, "export: read frame")
		}
		row := payload
		if decompressor != nil {
			row, err = decompressor(payload)
			if err != nil {
				return errors.Wrap(err, "export: decompress row")
			}
		}
		if len(row) != int(tp.Size) {
			return errors.Errorf("export: decoded row length %d does not match table row size %d", len(row), tp.Size)
		}

		rid := cat.AllocateDataSlot(tp)
		dst := cat.GetDataSlot(tp, rid)
		copy(dst, row)

		for i := 0; i < int(tp.ColNum); i++ {
			ci := &tp.Cols[i]
			if !ci.HasIndex() {
				continue
			}
			if err := cat.IndexInsert(ci, catalog.RowKey(ci, dst), rid); err != nil {
				return errors.Wrapf(err, "export: reindexing %s", ci.GetName())
			}
		}
	}
	return nil
}
