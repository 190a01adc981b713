package types

import "errors"

// Schema/predicate sentinel errors. internal/skyerr wraps these with the
// closed category+code taxonomy of the error handling design; code that
// only needs to distinguish failure kinds can compare with errors.Is
// directly against these.
var (
	ErrEmptySchema             = errors.New("schema: no column descriptors")
	ErrColInfoBadFormat        = errors.New("schema: malformed column descriptor line")
	ErrColNotPresent           = errors.New("predicate: requested column not present in schema")
	ErrColIndexOOB             = errors.New("query: requested column index out of bounds")
	ErrUnsupportedDataType     = errors.New("query: unsupported data type for this operation")
	ErrUnknownDataType         = errors.New("schema: unknown data type tag")
	ErrUnsupportedAggDataType  = errors.New("predicate: unsupported data type for aggregate")
	ErrOpNotRecognized         = errors.New("predicate: operator not recognized")
	ErrComparisonNotDefined    = errors.New("predicate: comparison not defined for this type/operator pair")
	ErrRowIndexOOB             = errors.New("row: row index out of bounds")
	ErrIndexUnsupportedColType = errors.New("index: unsupported column type for secondary index key")
	ErrArrowStatus             = errors.New("columnar: underlying table operation failed")
)
