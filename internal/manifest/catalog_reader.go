package manifest

import "context"

// CatalogReader is the read-only interface used by the query service to
// resolve which container objects a query must run pushdown execution over.
type CatalogReader interface {
	// FindContainers returns containers matching the given table/schema predicates.
	FindContainers(ctx context.Context, predicates []Predicate) ([]*ContainerRecord, error)

	// GetContainerCount returns the total number of registered containers.
	GetContainerCount(ctx context.Context) (int64, error)
}
