package index

import (
	"context"
	"fmt"

	"github.com/arkilian/skyquery/internal/indexkey"
	"github.com/arkilian/skyquery/internal/predicate"
	"github.com/arkilian/skyquery/pkg/types"
)

// Lookup resolves a predicate atom against a secondary index instead of
// scanning every container object for the queried table.
type Lookup struct {
	catalog IndexCatalog
}

// NewLookup creates a new index lookup instance.
func NewLookup(catalog IndexCatalog) *Lookup {
	return &Lookup{catalog: catalog}
}

// FindContainers resolves a single equality or range predicate atom on
// col against the secondary index for dbSchema.tableName.col.Name.
// Returns nil, nil if no such index exists (caller falls back to scanning
// every registered container for the table).
func (l *Lookup) FindContainers(ctx context.Context, dbSchema, tableName string, col types.ColInfo, atom predicate.Atom) ([]Entry, error) {
	if !indexableType(col.Type) {
		return nil, nil
	}

	prefix := indexkey.BuildKeyPrefix(IdxRec, dbSchema, tableName, []string{col.Name})

	switch atom.Op {
	case predicate.OpEQ:
		token, ok := cellKeyToken(atom.Val)
		if !ok {
			return nil, nil
		}
		key := indexkey.BuildKey(prefix, token)
		entries, err := l.catalog.LookupByKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("index lookup: equality lookup failed: %w", err)
		}
		return entries, nil

	case predicate.OpLT, predicate.OpLEQ, predicate.OpGT, predicate.OpGEQ:
		// A range bound still narrows to this column's key space; resolve
		// it as a prefix scan and let the caller re-apply the exact bound
		// (BuildKeyData's fixed-width encoding sorts lexicographically, but
		// the endpoints of the scan aren't computed here).
		entries, err := l.catalog.LookupByPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("index lookup: prefix lookup failed: %w", err)
		}
		return entries, nil

	default:
		return nil, nil
	}
}

// HasIndex reports whether dbSchema.tableName.column already has a
// secondary index built.
func (l *Lookup) HasIndex(ctx context.Context, column string) (bool, error) {
	cols, err := l.catalog.ListIndexedColumns(ctx)
	if err != nil {
		return false, fmt.Errorf("index lookup: failed to list indexed columns: %w", err)
	}
	for _, c := range cols {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}
