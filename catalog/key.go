package catalog

import "encoding/binary"

// EncodeKey converts a column's raw little-endian storage bytes into
// a fixed-width, big-endian, byte-comparable index key (spec.md
// §4.3): signed integers get their sign bit flipped so two's
// complement ordering matches byte-lexicographic ordering; floats get
// the standard monotone IEEE-754 transform; Char/VarChar are zero-
// padded to the column's declared maximum width (VarChar's own
// length prefix is dropped — only the character data participates in
// the key). Date is treated as an unsigned day count, already
// monotone under byte comparison once reordered to big-endian.
func EncodeKey(t ColType, raw []byte) []byte {
	switch t.Kind {
	case Int:
		bits := binary.LittleEndian.Uint32(raw) ^ 0x80000000
		key := make([]byte, 4)
		binary.BigEndian.PutUint32(key, bits)
		return key
	case Float:
		bits := binary.LittleEndian.Uint32(raw)
		key := make([]byte, 4)
		binary.BigEndian.PutUint32(key, floatKeyTransform(bits))
		return key
	case Bool:
		return []byte{raw[0]}
	case Date:
		key := make([]byte, 4)
		binary.BigEndian.PutUint32(key, binary.LittleEndian.Uint32(raw))
		return key
	case Char:
		key := make([]byte, t.Size)
		copy(key, raw)
		return key
	case VarChar:
		length := binary.LittleEndian.Uint32(raw[0:4])
		data := raw[4 : 4+length]
		key := make([]byte, t.Size)
		copy(key, data)
		return key
	default:
		panic("catalog: unknown column kind")
	}
}

func floatKeyTransform(bits uint32) uint32 {
	if bits&0x80000000 != 0 {
		return ^bits
	}
	return bits | 0x80000000
}

// RowKey extracts and encodes the index key for ci from a raw row record.
func RowKey(ci *ColInfo, record []byte) []byte {
	return EncodeKey(ci.Type, ColumnBytes(record, ci))
}
