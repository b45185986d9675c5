package catalog

import "github.com/pkg/errors"

// Catalog validation error taxonomy (spec.md §7). All are sentinels;
// wrap with errors.Wrap for call-site context and compare with
// errors.Is.
var (
	ErrTableExhausted           = errors.New("catalog: table directory is full")
	ErrTableNameTooLong         = errors.New("catalog: table name too long")
	ErrDupTable                 = errors.New("catalog: table already exists")
	ErrNoSuchTable              = errors.New("catalog: no such table")
	ErrColTooMany               = errors.New("catalog: too many columns")
	ErrDupCol                   = errors.New("catalog: duplicate column name")
	ErrColNameTooLong           = errors.New("catalog: column name too long")
	ErrNoSuchCol                = errors.New("catalog: no such column")
	ErrColSizeTooBig            = errors.New("catalog: row record size exceeds maximum")
	ErrForeignKeyOnNonUnique    = errors.New("catalog: foreign key must reference a unique column")
	ErrIncompatibleForeignTy    = errors.New("catalog: foreign key column type incompatible with referenced column")
	ErrDropTableWithForeignLink = errors.New("catalog: table is referenced by a foreign key from another table")

	// Index error taxonomy (spec.md §7).
	ErrNoSuchIndex          = errors.New("catalog: column has no index")
	ErrDupIndex             = errors.New("catalog: column already has an index")
	ErrDropIndexOnUnique    = errors.New("catalog: cannot drop the mandatory index of a unique column")
	ErrCreateIndexOnNonEmpty = errors.New("catalog: cannot create an index on a non-empty table")
	ErrDupIndexValue        = errors.New("catalog: value already present in a unique index")
)
