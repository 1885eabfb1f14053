package schedule

import (
	"fmt"
	"sort"

	"itinera/models"
)

// Scope decides where neighbor lookup stops.
type Scope string

const (
	// ScopeDay only looks for neighbors inside the item's own day.
	ScopeDay Scope = "day"
	// ScopeItinerary walks the flattened multi-day sequence, so the last
	// item of day N precedes the first item of day N+1.
	ScopeItinerary Scope = "itinerary"
)

func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeDay:
		return ScopeDay, nil
	case ScopeItinerary:
		return ScopeItinerary, nil
	}
	return "", fmt.Errorf("unknown neighbor scope %q", s)
}

func less(a, b models.ItineraryItem) bool {
	if a.DayNumber != b.DayNumber {
		return a.DayNumber < b.DayNumber
	}
	if a.SortOrder != b.SortOrder {
		return a.SortOrder < b.SortOrder
	}
	return a.ItemID < b.ItemID
}

// Sequence returns a copy of items ordered by day number, then sort order.
func Sequence(items []models.ItineraryItem) []models.ItineraryItem {
	out := make([]models.ItineraryItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// DayItems returns the items of one day in sort order.
func DayItems(items []models.ItineraryItem, day int) []models.ItineraryItem {
	var out []models.ItineraryItem
	for _, it := range items {
		if it.DayNumber == day {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Days lists the distinct day numbers present in items, ascending.
func Days(items []models.ItineraryItem) []int {
	seen := make(map[int]struct{})
	var days []int
	for _, it := range items {
		if _, ok := seen[it.DayNumber]; ok {
			continue
		}
		seen[it.DayNumber] = struct{}{}
		days = append(days, it.DayNumber)
	}
	sort.Ints(days)
	return days
}

// Neighbors finds the immediate predecessor and successor of itemID under
// the (day, sort order) ordering. found is false when itemID is not in items.
func Neighbors(items []models.ItineraryItem, itemID string, scope Scope) (prev, next *models.ItineraryItem, found bool) {
	seq := Sequence(items)

	idx := -1
	for i := range seq {
		if seq[i].ItemID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, false
	}

	day := seq[idx].DayNumber
	if idx > 0 && (scope == ScopeItinerary || seq[idx-1].DayNumber == day) {
		p := seq[idx-1]
		prev = &p
	}
	if idx < len(seq)-1 && (scope == ScopeItinerary || seq[idx+1].DayNumber == day) {
		n := seq[idx+1]
		next = &n
	}
	return prev, next, true
}

// GroupByDay buckets items into DaySchedules in day order.
func GroupByDay(items []models.ItineraryItem) []models.DaySchedule {
	seq := Sequence(items)
	var out []models.DaySchedule
	for _, it := range seq {
		if len(out) == 0 || out[len(out)-1].DayNumber != it.DayNumber {
			out = append(out, models.DaySchedule{DayNumber: it.DayNumber})
		}
		last := &out[len(out)-1]
		last.Items = append(last.Items, it)
	}
	if out == nil {
		out = []models.DaySchedule{}
	}
	return out
}
