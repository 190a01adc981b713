package types

import "strings"

// Reserved column index sentinels. RIDColIndex marks a predicate or
// projection target that resolves against the row's RID rather than a
// stored cell. AggColLast is the lower bound of a reserved band of virtual
// column indices set aside for aggregate output columns; the row executor
// rejects any projected column index inside this band as out of bounds
// against the real table schema.
const (
	RIDColIndex = -1
	AggColLast  = -6
)

// RIDIndexKeyword is the schema keyword that synthesizes a one-column
// schema carrying the RID sentinel.
const RIDIndexKeyword = "RID_INDEX"

// ProjectAllKeyword requests every column of the reference schema, in
// reference-schema order.
const ProjectAllKeyword = "*"

// ColInfo describes a single column of a table schema.
type ColInfo struct {
	Idx      int
	Type     DataType
	IsKey    bool
	Nullable bool
	Name     string
}

// NameEquals compares column names case-insensitively.
func (c ColInfo) NameEquals(name string) bool {
	return strings.EqualFold(c.Name, name)
}

// Equal compares two descriptors field-wise, matching the source's
// compareColInfo used to detect a pure identity projection.
func (c ColInfo) Equal(o ColInfo) bool {
	return c.Idx == o.Idx && c.Type == o.Type && c.IsKey == o.IsKey &&
		c.Nullable == o.Nullable && strings.EqualFold(c.Name, o.Name)
}

// Validate enforces the descriptor invariants: names are non-empty and a
// key column may not also be nullable.
func (c ColInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrColInfoBadFormat
	}
	if c.IsKey && c.Nullable {
		return ErrColInfoBadFormat
	}
	return nil
}
