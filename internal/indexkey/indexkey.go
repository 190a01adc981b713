// Package indexkey implements the secondary-index composite key codec: a
// fixed-width, lexicographically comparable encoding of column values so
// byte-comparison of encoded keys matches numeric comparison, plus the
// prefix construction and range-query helpers built on top of it.
// Grounded on the source's buildKeyData, buildKeyPrefix, compare_keys,
// and check_predicate_ops family.
package indexkey

import (
	"fmt"
	"strings"

	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/pkg/types"
)

// Delimiters and defaults matching the wire key format:
//
//	IDX_REC/SCHEMA.TABLE/COL1-COL2/00000000000000000001-00000000000000000006
const (
	DelimOuter        = "/"
	DelimInner        = "-"
	ColsDefault       = "*"
	SchemaNameDefault = "*"
	TableNameDefault  = "*"
)

// u64StrWidth is the u64toStr width, per type, that keeps the encoded
// value both fixed-width and large enough to represent that type's
// full range without leading-zero ambiguity across values.
const u64StrWidth = 20 // len(strconv.FormatUint(math.MaxUint64, 10))

// IndexType selects the secondary-index structure a key addresses.
type IndexType int

const (
	IdxFB IndexType = iota
	IdxRID
	IdxRec
	IdxTxt
)

func (t IndexType) String() string {
	switch t {
	case IdxFB:
		return "IDX_FB"
	case IdxRID:
		return "IDX_RID"
	case IdxRec:
		return "IDX_REC"
	case IdxTxt:
		return "IDX_TXT"
	default:
		return "IDX_UNK"
	}
}

// BuildKeyData encodes new_data as the fixed-width decimal suffix that
// exactly spans dataType's value range: a 20-digit zero-padded u64
// string, truncated to the trailing N digits where N is the widest
// decimal representation of that type's maximum value. Truncating from
// the left rather than re-padding keeps the encoding a pure substring of
// the full-width representation, so keys for narrower and wider columns
// built from the same numeric value still compare consistently on their
// shared suffix.
func BuildKeyData(dataType types.DataType, newData uint64) string {
	full := fmt.Sprintf("%0*d", u64StrWidth, newData)
	pos := 0
	switch dataType {
	case types.SkyBool:
		pos = u64StrWidth - 1
	case types.SkyChar, types.SkyUChar, types.SkyInt8, types.SkyUInt8:
		pos = u64StrWidth - 3
	case types.SkyInt16, types.SkyUInt16:
		pos = u64StrWidth - 5
	case types.SkyInt32, types.SkyUInt32:
		pos = u64StrWidth - 10
	case types.SkyInt64, types.SkyUInt64:
		pos = 0
	default:
		pos = 0
	}
	return full[pos:]
}

// BuildKeyPrefix builds the shared prefix all keys for one index share:
// index type, schema name, table name, and the ordered indexed column
// names, defaulting empty schema/table/column names the same way the
// source does.
func BuildKeyPrefix(idxType IndexType, schemaName, tableName string, colNames []string) string {
	schemaName = strings.TrimSpace(schemaName)
	tableName = strings.TrimSpace(tableName)
	if schemaName == "" {
		schemaName = SchemaNameDefault
	}
	if tableName == "" {
		tableName = TableNameDefault
	}

	keyCols := ColsDefault
	if len(colNames) > 0 {
		keyCols = strings.Join(colNames, DelimInner)
	}

	return idxType.String() + DelimOuter +
		schemaName + "." + tableName + DelimOuter +
		keyCols + DelimOuter
}

// BuildKey appends one or more already-encoded per-column values to a
// prefix built by BuildKeyPrefix, joining multi-column values with
// DelimInner the same way BuildKeyPrefix joins column names.
func BuildKey(prefix string, encodedValues ...string) string {
	return prefix + strings.Join(encodedValues, DelimInner)
}

// CompareKeys reports whether two full keys share the same leading value
// token, the prefix-match test range scans use to decide whether a
// stored key falls within a query's index prefix.
func CompareKeys(key1, key2 string) bool {
	elems1 := strings.Split(key1, DelimOuter)
	elems2 := strings.Split(key2, DelimOuter)
	const valueField = 3
	if len(elems1) <= valueField || len(elems2) <= valueField {
		return false
	}
	values1 := strings.Split(elems1[valueField], DelimInner)
	values2 := strings.Split(elems2[valueField], DelimInner)
	if len(values1) == 0 || len(values2) == 0 {
		return false
	}
	return values1[0] == values2[0]
}

// CheckPredicateOps reports whether every predicate atom in preds uses
// exactly op — used to decide whether an index lookup can be a single
// point query instead of a range scan.
func CheckPredicateOps(preds []predicate.Atom, op predicate.Op) bool {
	for _, p := range preds {
		if p.Op != op {
			return false
		}
	}
	return true
}

// CheckPredicateOpsAllIncludeEquality reports whether every atom uses an
// operator that can participate in an index range bound (eq/leq/geq).
func CheckPredicateOpsAllIncludeEquality(preds []predicate.Atom) bool {
	for _, p := range preds {
		switch p.Op {
		case predicate.OpEQ, predicate.OpLEQ, predicate.OpGEQ:
		default:
			return false
		}
	}
	return true
}

// CheckPredicateOpsAllEquality reports whether every atom is an equality
// comparison — the case an index lookup can serve as an exact point read.
func CheckPredicateOpsAllEquality(preds []predicate.Atom) bool {
	return CheckPredicateOps(preds, predicate.OpEQ)
}
