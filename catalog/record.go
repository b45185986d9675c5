package catalog

// NullBitsetBytes returns the size, in bytes, of the null-bitset
// prefix for a table with colNum columns: ceil(colNum/32) 4-byte
// words (spec.md §3's "null-bitset of ceil(col_num/8) bytes rounded to
// a 4-byte unit" — computing it in 32-bit words directly gives the
// same result and matches how computeRecordSize sizes it).
func NullBitsetBytes(colNum int) uint16 {
	return uint16((colNum+31)/32) * 4
}

// IsNull reports whether column colIdx is null in record.
func IsNull(record []byte, colIdx int) bool {
	byteIdx := colIdx / 8
	bit := uint(colIdx % 8)
	return record[byteIdx]&(1<<bit) != 0
}

// SetNull sets or clears column colIdx's null bit in record.
func SetNull(record []byte, colIdx int, null bool) {
	byteIdx := colIdx / 8
	bit := uint(colIdx % 8)
	if null {
		record[byteIdx] |= 1 << bit
	} else {
		record[byteIdx] &^= 1 << bit
	}
}

// ColumnBytes returns the raw storage bytes for ci within record.
func ColumnBytes(record []byte, ci *ColInfo) []byte {
	sz := ci.Type.StorageSize()
	return record[ci.Off : ci.Off+sz]
}
