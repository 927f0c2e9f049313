// Package memory provides in-memory stores for development and tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/JakeFAU/hhs-breach-watch/internal/breach"
)

// BreachStore keeps breach rows in process memory.
type BreachStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   []breach.Breach
}

// NewBreachStore constructs an empty BreachStore.
func NewBreachStore() *BreachStore {
	return &BreachStore{nextID: 1}
}

// ReplaceCategory swaps every row with the given archive flag for rows.
func (s *BreachStore) ReplaceCategory(_ context.Context, archive bool, rows []breach.Breach) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0:0]
	for _, b := range s.rows {
		if b.Archive != archive {
			kept = append(kept, b)
		}
	}
	for _, b := range rows {
		b.ID = s.nextID
		b.Archive = archive
		s.nextID++
		kept = append(kept, b)
	}
	s.rows = kept
	return int64(len(rows)), nil
}

// List filters, sorts and pages the stored rows.
func (s *BreachStore) List(_ context.Context, filter breach.Filter) ([]breach.Breach, error) {
	f, err := filter.Normalize()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	var matched []breach.Breach
	for _, b := range s.rows {
		if f.Matches(b) {
			matched = append(matched, b)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, compareFor(f.Order))
	if f.Offset >= len(matched) {
		return nil, nil
	}
	end := min(f.Offset+f.Limit, len(matched))
	return matched[f.Offset:end], nil
}

func compareFor(order breach.Order) func(a, b breach.Breach) int {
	byID := func(a, b breach.Breach) int { return cmp.Compare(a.ID, b.ID) }
	switch order {
	case breach.OrderDateAsc:
		return func(a, b breach.Breach) int {
			return cmp.Or(a.BreachSubmissionDate.Compare(b.BreachSubmissionDate), byID(a, b))
		}
	case breach.OrderAffectedDesc:
		return func(a, b breach.Breach) int {
			return cmp.Or(cmp.Compare(b.IndividualsAffected, a.IndividualsAffected), byID(a, b))
		}
	case breach.OrderAffectedAsc:
		return func(a, b breach.Breach) int {
			return cmp.Or(cmp.Compare(a.IndividualsAffected, b.IndividualsAffected), byID(a, b))
		}
	case breach.OrderName:
		return func(a, b breach.Breach) int {
			return cmp.Or(cmp.Compare(a.NameOfCoveredEntity, b.NameOfCoveredEntity), byID(a, b))
		}
	default:
		return func(a, b breach.Breach) int {
			return cmp.Or(b.BreachSubmissionDate.Compare(a.BreachSubmissionDate), byID(b, a))
		}
	}
}

// Get returns the row with id or breach.ErrNotFound.
func (s *BreachStore) Get(_ context.Context, id int64) (breach.Breach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.rows {
		if b.ID == id {
			return b, nil
		}
	}
	return breach.Breach{}, breach.ErrNotFound
}

// SummarizeStates aggregates rows per state, sorted by state.
func (s *BreachStore) SummarizeStates(_ context.Context, archive *bool) ([]breach.StateSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byState := map[string]*breach.StateSummary{}
	for _, b := range s.rows {
		if archive != nil && b.Archive != *archive {
			continue
		}
		sum, ok := byState[b.State]
		if !ok {
			sum = &breach.StateSummary{State: b.State}
			byState[b.State] = sum
		}
		sum.Breaches++
		sum.IndividualsAffected += int64(b.IndividualsAffected)
	}
	out := make([]breach.StateSummary, 0, len(byState))
	for _, sum := range byState {
		out = append(out, *sum)
	}
	slices.SortFunc(out, func(a, b breach.StateSummary) int { return cmp.Compare(a.State, b.State) })
	return out, nil
}

// Ping always succeeds.
func (s *BreachStore) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *BreachStore) Close() {}
