// Package catalog maintains table schema and the slotted row heap on
// top of a pager.Pager, and the per-column B+-tree indexes over that
// heap. Spec.md treats the catalog/heap and the index as two
// components, but they share a single free-page pool and a single
// meta page, and creating or dropping a table must create or drop the
// indexes it owns — so they live in one Go package, split across
// files by concern (table.go/heap.go for the catalog, node.go/index.go
// for the B+-tree), rather than two packages that would import each
// other in a cycle.
package catalog

// ColKind is the semantic type of a column (spec.md §3).
type ColKind uint8

const (
	Int ColKind = iota
	Float
	Bool
	Date
	Char
	VarChar
)

func (k ColKind) String() string {
	switch k {
	case Int:
		return "INT"
	case Float:
		return "FLOAT"
	case Bool:
		return "BOOL"
	case Date:
		return "DATE"
	case Char:
		return "CHAR"
	case VarChar:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// ColType is a column's semantic type plus, for Char/VarChar, its
// declared maximum width.
type ColType struct {
	Kind ColKind
	Size uint16 // declared width n for Char(n)/VarChar(n); unused otherwise
}

// StorageSize is the number of bytes this type occupies in a row
// record: 4 for Int/Float/Date, 1 for Bool, n for Char(n), 4+n for
// VarChar(n) (a length prefix plus the declared maximum width).
func (t ColType) StorageSize() uint16 {
	switch t.Kind {
	case Int, Float, Date:
		return 4
	case Bool:
		return 1
	case Char:
		return t.Size
	case VarChar:
		return 4 + t.Size
	default:
		panic("catalog: unknown column kind")
	}
}

// align4 reports whether this column's storage must start at a
// 4-byte-aligned offset within the row (spec.md §3: "Int, Float, Date;
// the VarChar length prefix").
func (t ColType) align4() bool {
	switch t.Kind {
	case Int, Float, Date, VarChar:
		return true
	default:
		return false
	}
}

// KeyWidth is the fixed byte width this type occupies as an index key
// (spec.md §4.3: variable-width types are stored at their declared
// maximum width, zero-padded).
func (t ColType) KeyWidth() uint16 {
	switch t.Kind {
	case Int, Float, Date:
		return 4
	case Bool:
		return 1
	case Char, VarChar:
		return t.Size
	default:
		panic("catalog: unknown column kind")
	}
}

// ColFlags is the constraint flag set on a column (spec.md §3).
type ColFlags uint8

const (
	FlagNotNull ColFlags = 1 << iota
	FlagPrimary
	FlagUnique
)

func (f ColFlags) Has(flag ColFlags) bool { return f&flag != 0 }

// Catalog-wide capacity constants (spec.md §3, §6).
const (
	MaxCol      = 32
	MaxColName  = 32
	MinSlotSize = 4
	// MaxDataByte bounds a single row record, leaving headroom within
	// an 8 KiB page for the data-page header and at least a few slots.
	MaxDataByte = 4096

	// NoneForeign marks a ColInfo with no foreign-key reference. A
	// uint8 sentinel is safe since MaxTable (32) and MaxCol (32) are
	// both far below 0xFF.
	NoneForeign uint8 = 0xFF
)

func roundUp4(n uint16) uint16 { return (n + 3) &^ 3 }

func foreignCompatible(own, foreign ColType) bool {
	switch {
	case (own.Kind == Char || own.Kind == VarChar) && (foreign.Kind == Char || foreign.Kind == VarChar):
		return own.Size >= foreign.Size
	case own.Kind == Int && foreign.Kind == Int,
		own.Kind == Bool && foreign.Kind == Bool,
		own.Kind == Float && foreign.Kind == Float,
		own.Kind == Date && foreign.Kind == Date:
		return true
	default:
		return false
	}
}
