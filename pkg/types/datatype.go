package types

// DataType identifies the physical type of a column cell. The set is closed:
// callers must not invent new tags, and every type-dispatch switch in this
// module is expected to be exhaustive over these values.
type DataType int32

const (
	SkyInt8 DataType = iota
	SkyInt16
	SkyInt32
	SkyInt64
	SkyUInt8
	SkyUInt16
	SkyUInt32
	SkyUInt64
	SkyBool
	SkyChar    // signed byte-sized character
	SkyUChar   // unsigned byte-sized character
	SkyFloat32
	SkyFloat64
	SkyString
	SkyDate // textual YYYY-MM-DD
)

// String renders the type tag using the wire name used by schema text.
func (d DataType) String() string {
	switch d {
	case SkyInt8:
		return "SKY_INT8"
	case SkyInt16:
		return "SKY_INT16"
	case SkyInt32:
		return "SKY_INT32"
	case SkyInt64:
		return "SKY_INT64"
	case SkyUInt8:
		return "SKY_UINT8"
	case SkyUInt16:
		return "SKY_UINT16"
	case SkyUInt32:
		return "SKY_UINT32"
	case SkyUInt64:
		return "SKY_UINT64"
	case SkyBool:
		return "SKY_BOOL"
	case SkyChar:
		return "SKY_CHAR"
	case SkyUChar:
		return "SKY_UCHAR"
	case SkyFloat32:
		return "SKY_FLOAT"
	case SkyFloat64:
		return "SKY_DOUBLE"
	case SkyString:
		return "SKY_STRING"
	case SkyDate:
		return "SKY_DATE"
	default:
		return "SKY_UNKNOWN"
	}
}

// DataTypeFromString parses the wire name back into a DataType. ok is false
// for anything outside the closed set.
func DataTypeFromString(s string) (DataType, bool) {
	for d := SkyInt8; d <= SkyDate; d++ {
		if d.String() == s {
			return d, true
		}
	}
	return 0, false
}

// IsIntegral reports whether the type participates in the integer numeric
// backbone (signed or unsigned).
func (d DataType) IsIntegral() bool {
	switch d {
	case SkyInt8, SkyInt16, SkyInt32, SkyInt64, SkyChar,
		SkyUInt8, SkyUInt16, SkyUInt32, SkyUInt64, SkyUChar, SkyBool:
		return true
	default:
		return false
	}
}

// IsSigned reports whether the type's numeric backbone is signed int64.
func (d DataType) IsSigned() bool {
	switch d {
	case SkyInt8, SkyInt16, SkyInt32, SkyInt64, SkyChar:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether the type's numeric backbone is unsigned uint64.
func (d DataType) IsUnsigned() bool {
	switch d {
	case SkyUInt8, SkyUInt16, SkyUInt32, SkyUInt64, SkyUChar, SkyBool:
		return true
	default:
		return false
	}
}

// IsFloat reports whether the type's numeric backbone is float64.
func (d DataType) IsFloat() bool {
	return d == SkyFloat32 || d == SkyFloat64
}

// ByteWidth returns the on-disk width in bytes of a fixed-width type,
// used by the index-key codec to size its fixed-width decimal encoding.
// Returns 0 for variable-width types (string, date).
func (d DataType) ByteWidth() int {
	switch d {
	case SkyBool, SkyInt8, SkyUInt8, SkyChar, SkyUChar:
		return 1
	case SkyInt16, SkyUInt16:
		return 2
	case SkyInt32, SkyUInt32, SkyFloat32:
		return 4
	case SkyInt64, SkyUInt64, SkyFloat64:
		return 8
	default:
		return 0
	}
}
