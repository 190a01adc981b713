package index

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arkilian/skyquery/internal/config"
	"github.com/arkilian/skyquery/internal/observability"
	"github.com/arkilian/skyquery/internal/router"
)

// ActionType represents the type of index action to perform.
type ActionType string

const (
	ActionCreate ActionType = "CREATE"
	ActionDrop   ActionType = "DROP"
)

// IndexAction represents an action to create or drop an index.
type IndexAction struct {
	Type   ActionType
	Column string
}

// Policy manages automated secondary-index creation and deletion based on
// query statistics, one table at a time.
type Policy struct {
	stats           *observability.QueryStats
	builder         *Builder
	indexCatalog    IndexCatalog
	dataCatalog     ContainerProvider
	createThreshold int64
	dropThreshold   int64
	checkInterval   time.Duration
	maxIndexes      int
	dbSchema        string
	tableName       string
	notifier        *router.Notifier
	mu              sync.Mutex
}

// SetNotifier attaches a notification bus that receives an IndexCreated
// notification whenever this policy successfully builds an index. Passing
// nil disables notifications.
func (p *Policy) SetNotifier(n *router.Notifier) *Policy {
	p.notifier = n
	return p
}

// NewPolicy creates a new index policy manager for one dbSchema.tableName.
func NewPolicy(
	stats *observability.QueryStats,
	builder *Builder,
	indexCatalog IndexCatalog,
	dataCatalog ContainerProvider,
	dbSchema, tableName string,
	cfg config.IndexConfig,
) *Policy {
	return &Policy{
		stats:           stats,
		builder:         builder,
		indexCatalog:    indexCatalog,
		dataCatalog:     dataCatalog,
		createThreshold: cfg.CreateThreshold,
		dropThreshold:   cfg.DropThreshold,
		checkInterval:   cfg.CheckInterval,
		maxIndexes:      cfg.MaxIndexes,
		dbSchema:        dbSchema,
		tableName:       tableName,
	}
}

// Run starts the background policy evaluation loop. It runs until the
// context is cancelled.
func (p *Policy) Run(ctx context.Context) {
	if p.checkInterval <= 0 {
		p.checkInterval = 5 * time.Minute
	}

	ticker := time.NewTicker(p.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			actions, err := p.evaluate(ctx)
			if err != nil {
				log.Printf("index policy: evaluate failed: %v", err)
				continue
			}

			for _, action := range actions {
				if err := p.executeAction(ctx, action); err != nil {
					log.Printf("index policy: failed to execute %s action for column %s: %v",
						action.Type, action.Column, err)
				}
			}
		}
	}
}

// evaluate determines which index actions should be taken based on query
// statistics gathered since the last check.
func (p *Policy) evaluate(ctx context.Context) ([]IndexAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var actions []IndexAction

	topPredicates := p.stats.GetTopPredicates(p.maxIndexes + 10)

	existingIndexes, err := p.indexCatalog.ListIndexedColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing indexed columns: %w", err)
	}

	existingSet := make(map[string]bool)
	for _, col := range existingIndexes {
		existingSet[col] = true
	}

	for _, stats := range topPredicates {
		if stats.Frequency >= p.createThreshold && !existingSet[stats.Column] {
			if len(existingIndexes) < p.maxIndexes {
				actions = append(actions, IndexAction{
					Type:   ActionCreate,
					Column: stats.Column,
				})
				existingIndexes = append(existingIndexes, stats.Column)
				existingSet[stats.Column] = true
			}
		}
	}

	for _, col := range existingIndexes {
		colFrequency := int64(0)
		for _, stats := range topPredicates {
			if stats.Column == col {
				colFrequency = stats.Frequency
				break
			}
		}
		if colFrequency < p.dropThreshold {
			actions = append(actions, IndexAction{
				Type:   ActionDrop,
				Column: col,
			})
		}
	}

	return actions, nil
}

// executeAction performs the specified index action.
func (p *Policy) executeAction(ctx context.Context, action IndexAction) error {
	switch action.Type {
	case ActionCreate:
		return p.executeCreate(ctx, action.Column)
	case ActionDrop:
		return p.executeDrop(ctx, action.Column)
	default:
		return fmt.Errorf("unknown action type: %s", action.Type)
	}
}

// executeCreate builds a new secondary index for column.
func (p *Policy) executeCreate(ctx context.Context, column string) error {
	log.Printf("index policy: creating index for %s.%s column %s", p.dbSchema, p.tableName, column)

	containers, err := p.dataCatalog.GetContainers(ctx, p.dbSchema, p.tableName)
	if err != nil {
		return fmt.Errorf("failed to get containers for index build: %w", err)
	}
	if len(containers) == 0 {
		log.Printf("index policy: no containers found for column %s, skipping index creation", column)
		return nil
	}

	n, err := p.builder.BuildIndex(ctx, p.dbSchema, p.tableName, column, containers)
	if err != nil {
		return fmt.Errorf("failed to build index for column %s: %w", column, err)
	}

	log.Printf("index policy: wrote %d index entries for column %s", n, column)

	if p.notifier != nil {
		p.notifier.Publish(router.Notification{
			Type:        router.IndexCreated,
			ContainerID: fmt.Sprintf("%s.%s", p.dbSchema, p.tableName),
			ObjectPath:  column,
			Timestamp:   time.Now().UnixNano(),
		})
	}

	return nil
}

// executeDrop removes the secondary index for column.
func (p *Policy) executeDrop(ctx context.Context, column string) error {
	log.Printf("index policy: dropping index for %s.%s column %s", p.dbSchema, p.tableName, column)

	prefix := indexKeyPrefixForColumn(p.dbSchema, p.tableName, column)
	n, err := p.indexCatalog.DeleteIndexByPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to delete index for column %s: %w", column, err)
	}

	log.Printf("index policy: dropped %d index entries for column %s", n, column)
	return nil
}
