package types

import (
	"fmt"
	"strconv"
	"strings"
)

// schemaFieldCount is N: the fixed number of space-separated fields on a
// schema text line (index, type, is_key, nullable, name).
const schemaFieldCount = 5

// Schema is an ordered sequence of column descriptors describing a table's
// tabular layout. Order is significant: it defines projection output order.
type Schema []ColInfo

// SchemaFromString parses one descriptor per line. Order in the string is
// preserved. Fails with ErrEmptySchema on no non-blank lines, and
// ErrColInfoBadFormat when a non-empty line does not have exactly
// schemaFieldCount tokens or a token fails to parse.
func SchemaFromString(s string) (Schema, error) {
	var out Schema
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != schemaFieldCount {
			return nil, fmt.Errorf("%w: line %q has %d fields, want %d",
				ErrColInfoBadFormat, line, len(fields), schemaFieldCount)
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%w: bad index %q", ErrColInfoBadFormat, fields[0])
		}
		dt, ok := DataTypeFromString(fields[1])
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnknownDataType, fields[1])
		}
		isKey, err := strconv.ParseBool(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: bad is_key %q", ErrColInfoBadFormat, fields[2])
		}
		nullable, err := strconv.ParseBool(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: bad nullable %q", ErrColInfoBadFormat, fields[3])
		}
		ci := ColInfo{Idx: idx, Type: dt, IsKey: isKey, Nullable: nullable, Name: fields[4]}
		if err := ci.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrColInfoBadFormat, err)
		}
		out = append(out, ci)
	}
	if len(out) == 0 {
		return nil, ErrEmptySchema
	}
	return out, nil
}

// SchemaToString is the inverse of SchemaFromString: one descriptor per
// line, in schema order, terminated by a trailing newline so repeated
// round-trips are stable.
func SchemaToString(s Schema) string {
	var b strings.Builder
	for _, ci := range s {
		fmt.Fprintf(&b, "%d %s %t %t %s\n", ci.Idx, ci.Type.String(), ci.IsKey, ci.Nullable, ci.Name)
	}
	return b.String()
}

// Equal compares two schemas field-wise and in order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// ColByName looks up a column by case-insensitive name.
func (s Schema) ColByName(name string) (ColInfo, bool) {
	for _, ci := range s {
		if ci.NameEquals(name) {
			return ci, true
		}
	}
	return ColInfo{}, false
}

// ColByIdx looks up a column by its schema index.
func (s Schema) ColByIdx(idx int) (ColInfo, bool) {
	for _, ci := range s {
		if ci.Idx == idx {
			return ci, true
		}
	}
	return ColInfo{}, false
}

// MaxIdx returns the maximum column index present, or -1 for an empty
// schema (matching col_idx_max's initialization in the source executor).
func (s Schema) MaxIdx() int {
	max := -1
	for _, ci := range s {
		if ci.Idx > max {
			max = ci.Idx
		}
	}
	return max
}

// ridSchema is the synthesized one-column schema for the RID_INDEX keyword.
func ridSchema() Schema {
	return Schema{{Idx: RIDColIndex, Type: SkyUInt64, IsKey: true, Nullable: false, Name: "RID"}}
}

// SchemaFromColNames builds a projection schema from a keyword or a
// comma-separated column-name list, resolved against current. "*" means
// project every column of current, in current's order. RID_INDEX
// synthesizes the RID sentinel schema. Unknown names fail with
// ErrColNotPresent.
func SchemaFromColNames(current Schema, csvOrKeyword string) (Schema, error) {
	csvOrKeyword = strings.TrimSpace(csvOrKeyword)
	switch {
	case csvOrKeyword == ProjectAllKeyword:
		out := make(Schema, len(current))
		copy(out, current)
		return out, nil
	case strings.EqualFold(csvOrKeyword, RIDIndexKeyword):
		return ridSchema(), nil
	}

	var out Schema
	for _, name := range strings.Split(csvOrKeyword, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		ci, ok := current.ColByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrColNotPresent, name)
		}
		out = append(out, ci)
	}
	if len(out) == 0 {
		return nil, ErrEmptySchema
	}
	return out, nil
}

// ColNamesFromSchema returns column names in schema order.
func ColNamesFromSchema(s Schema) []string {
	names := make([]string, len(s))
	for i, ci := range s {
		names[i] = ci.Name
	}
	return names
}

// ObjectSchema describes the SQLite DDL layout of an out-of-band manifest
// or index table (as opposed to Schema, which describes tabular container
// payloads). Kept distinct from Schema so the two column models — typed
// pushdown columns vs. SQLite DDL columns — never get confused.
type ObjectSchema struct {
	Version int                `json:"version"`
	Columns []ObjectColumnDef  `json:"columns"`
	Indexes []ObjectIndexDef   `json:"indexes"`
}

// ObjectColumnDef defines a single column of an ObjectSchema.
type ObjectColumnDef struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	PrimaryKey bool   `json:"primary_key"`
}

// ObjectIndexDef defines an index on an ObjectSchema.
type ObjectIndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}
