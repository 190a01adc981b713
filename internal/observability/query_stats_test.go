// Package observability provides query statistics tracking for automated index creation and performance monitoring.
package observability

import (
	"sync"
	"testing"
	"time"
)

// TestRecordPredicateConcurrent tests concurrent RecordPredicate calls for race conditions.
func TestRecordPredicateConcurrent(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				qs.RecordPredicate("ORDERKEY", "eq")
				qs.RecordPredicate("LINESTATUS", "in")
				qs.RecordPredicate("SHIPDATE", "gt")
			}
		}(i)
	}

	wg.Wait()

	top := qs.GetTopPredicates(10)
	if len(top) != 3 {
		t.Errorf("expected 3 predicates, got %d", len(top))
	}

	expectedFreq := int64(numGoroutines * recordsPerGoroutine)
	for _, stat := range top {
		if stat.Frequency != expectedFreq {
			t.Errorf("expected frequency %d for %s, got %d", expectedFreq, stat.Column, stat.Frequency)
		}
	}
}

// TestGetTopPredicatesOrdering tests that GetTopPredicates returns results sorted by frequency.
func TestGetTopPredicatesOrdering(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)

	for i := 0; i < 10; i++ {
		qs.RecordPredicate("ORDERKEY", "eq")
	}
	for i := 0; i < 5; i++ {
		qs.RecordPredicate("LINESTATUS", "in")
	}
	for i := 0; i < 20; i++ {
		qs.RecordPredicate("SHIPDATE", "gt")
	}

	top := qs.GetTopPredicates(3)
	if len(top) != 3 {
		t.Errorf("expected 3 predicates, got %d", len(top))
	}

	if top[0].Column != "SHIPDATE" || top[0].Frequency != 20 {
		t.Errorf("expected SHIPDATE with frequency 20, got %s with %d", top[0].Column, top[0].Frequency)
	}
	if top[1].Column != "ORDERKEY" || top[1].Frequency != 10 {
		t.Errorf("expected ORDERKEY with frequency 10, got %s with %d", top[1].Column, top[1].Frequency)
	}
	if top[2].Column != "LINESTATUS" || top[2].Frequency != 5 {
		t.Errorf("expected LINESTATUS with frequency 5, got %s with %d", top[2].Column, top[2].Frequency)
	}
}

// TestPruneRemovesOldEntries tests that Prune removes entries older than the window.
func TestPruneRemovesOldEntries(t *testing.T) {
	window := 100 * time.Millisecond
	qs := NewQueryStats(window)

	qs.RecordPredicate("ORDERKEY", "eq")

	top := qs.GetTopPredicates(10)
	if len(top) != 1 {
		t.Errorf("expected 1 predicate before prune, got %d", len(top))
	}

	time.Sleep(window + 50*time.Millisecond)

	qs.Prune()

	top = qs.GetTopPredicates(10)
	if len(top) != 0 {
		t.Errorf("expected 0 predicates after prune, got %d", len(top))
	}
}

// TestRecordPredicateTrackingOperators tests that RecordPredicate tracks operator distribution.
func TestRecordPredicateTrackingOperators(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)

	for i := 0; i < 5; i++ {
		qs.RecordPredicate("ORDERKEY", "eq")
	}
	for i := 0; i < 3; i++ {
		qs.RecordPredicate("ORDERKEY", "in")
	}
	for i := 0; i < 2; i++ {
		qs.RecordPredicate("ORDERKEY", "gt")
	}

	top := qs.GetTopPredicates(1)
	if len(top) != 1 {
		t.Errorf("expected 1 predicate, got %d", len(top))
	}

	stat := top[0]
	if stat.Frequency != 10 {
		t.Errorf("expected frequency 10, got %d", stat.Frequency)
	}

	if stat.Operators["eq"] != 5 {
		t.Errorf("expected 5 'eq' operators, got %d", stat.Operators["eq"])
	}
	if stat.Operators["in"] != 3 {
		t.Errorf("expected 3 'in' operators, got %d", stat.Operators["in"])
	}
	if stat.Operators["gt"] != 2 {
		t.Errorf("expected 2 'gt' operators, got %d", stat.Operators["gt"])
	}
}

// TestGetTopPredicatesEmpty tests GetTopPredicates with no data.
func TestGetTopPredicatesEmpty(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	top := qs.GetTopPredicates(10)
	if len(top) != 0 {
		t.Errorf("expected 0 predicates, got %d", len(top))
	}
}

// TestGetTopPredicatesLimitExceedsData tests GetTopPredicates when n exceeds available data.
func TestGetTopPredicatesLimitExceedsData(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	qs.RecordPredicate("ORDERKEY", "eq")
	qs.RecordPredicate("LINESTATUS", "in")

	top := qs.GetTopPredicates(100)
	if len(top) != 2 {
		t.Errorf("expected 2 predicates, got %d", len(top))
	}
}
