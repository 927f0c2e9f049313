package breach

import (
	"fmt"
	"strings"
	"time"
)

// Order selects the sort applied to List results.
type Order string

// Supported list orderings.
const (
	OrderDateDesc     Order = "date_desc"
	OrderDateAsc      Order = "date_asc"
	OrderAffectedDesc Order = "affected_desc"
	OrderAffectedAsc  Order = "affected_asc"
	OrderName         Order = "name"
)

// Page size bounds for List.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Filter narrows a List query. Zero values mean "no constraint".
type Filter struct {
	State   string
	Archive *bool
	Since   *time.Time
	Until   *time.Time
	Order   Order
	Limit   int
	Offset  int
}

// ParseOrder validates a user supplied ordering.
func ParseOrder(raw string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(raw))); o {
	case "":
		return OrderDateDesc, nil
	case OrderDateDesc, OrderDateAsc, OrderAffectedDesc, OrderAffectedAsc, OrderName:
		return o, nil
	default:
		return "", fmt.Errorf("unknown order %q", raw)
	}
}

// Normalize applies defaults and rejects impossible combinations.
func (f Filter) Normalize() (Filter, error) {
	f.State = strings.ToUpper(strings.TrimSpace(f.State))
	order, err := ParseOrder(string(f.Order))
	if err != nil {
		return Filter{}, err
	}
	f.Order = order
	switch {
	case f.Limit < 0:
		return Filter{}, fmt.Errorf("limit must be >= 0")
	case f.Limit == 0:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		return Filter{}, fmt.Errorf("offset must be >= 0")
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return Filter{}, fmt.Errorf("until must not be before since")
	}
	return f, nil
}

// Matches reports whether b satisfies the filter's predicates. Ordering and
// paging are left to the caller.
func (f Filter) Matches(b Breach) bool {
	if f.State != "" && !strings.EqualFold(b.State, f.State) {
		return false
	}
	if f.Archive != nil && b.Archive != *f.Archive {
		return false
	}
	if f.Since != nil && b.BreachSubmissionDate.Before(*f.Since) {
		return false
	}
	if f.Until != nil && b.BreachSubmissionDate.After(*f.Until) {
		return false
	}
	return true
}
