// Package schedule holds the pure scheduling rules for itinerary items:
// time ranges, overlap and sort-order checks, and day-partitioned ordering.
package schedule

import (
	"fmt"
	"sort"

	"itinera/models"
)

type ConflictKind string

const (
	ConflictOverlap        ConflictKind = "overlap"
	ConflictSortOrder      ConflictKind = "duplicate_sort_order"
	ConflictBatchSortOrder ConflictKind = "batch_duplicate_sort_order"
	ConflictBatchOverlap   ConflictKind = "batch_overlap"
	ConflictTimeOrder      ConflictKind = "time_order"
)

// Slot identifies one side of a conflict: an existing item or a pending request.
type Slot struct {
	ItemID    string `json:"itemid,omitempty"`
	Ref       string `json:"ref,omitempty"`
	SortOrder int    `json:"sort_order"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

func (s Slot) label() string {
	name := s.ItemID
	if name == "" {
		name = s.Ref
	}
	if s.StartTime == "" {
		return fmt.Sprintf("%s (sort order %d)", name, s.SortOrder)
	}
	return fmt.Sprintf("%s (%s-%s, sort order %d)", name, s.StartTime, s.EndTime, s.SortOrder)
}

// Conflict describes why a candidate cannot be placed. Existing is what is
// already there (or the earlier request in a batch); Incoming is the candidate.
type Conflict struct {
	Kind      ConflictKind `json:"kind"`
	DayNumber int          `json:"day_number"`
	Existing  Slot         `json:"existing"`
	Incoming  Slot         `json:"incoming"`
}

func (c *Conflict) Error() string {
	switch c.Kind {
	case ConflictOverlap:
		return fmt.Sprintf("day %d: %s-%s overlaps %s", c.DayNumber, c.Incoming.StartTime, c.Incoming.EndTime, c.Existing.label())
	case ConflictSortOrder:
		return fmt.Sprintf("day %d: sort order %d is already taken by %s", c.DayNumber, c.Incoming.SortOrder, c.Existing.label())
	case ConflictBatchSortOrder:
		return fmt.Sprintf("day %d: %s and %s share sort order %d", c.DayNumber, c.Existing.label(), c.Incoming.label(), c.Incoming.SortOrder)
	case ConflictBatchOverlap:
		return fmt.Sprintf("day %d: %s overlaps %s", c.DayNumber, c.Incoming.label(), c.Existing.label())
	case ConflictTimeOrder:
		return fmt.Sprintf("day %d: %s is sorted after %s but starts earlier", c.DayNumber, c.Incoming.label(), c.Existing.label())
	default:
		return fmt.Sprintf("day %d: scheduling conflict with %s", c.DayNumber, c.Existing.label())
	}
}

// Candidate is an item about to be written.
type Candidate struct {
	DayNumber int
	SortOrder int
	Start     Clock
	End       Clock
	// empty on insert
	ExcludeID string
}

func (c Candidate) slot() Slot {
	return Slot{SortOrder: c.SortOrder, StartTime: c.Start.String(), EndTime: c.End.String()}
}

func slotOf(it models.ItineraryItem) Slot {
	return Slot{ItemID: it.ItemID, SortOrder: it.SortOrder, StartTime: it.StartTime, EndTime: it.EndTime}
}

// itemRange returns the parsed range of a stored item. Items with unparseable
// times never take part in time checks.
func itemRange(it models.ItineraryItem) (Clock, Clock, bool) {
	s, err := ParseClock(it.StartTime)
	if err != nil {
		return 0, 0, false
	}
	e, err := ParseClock(it.EndTime)
	if err != nil {
		return 0, 0, false
	}
	return s, e, true
}

func overlaps(aStart, aEnd, bStart, bEnd Clock) bool {
	return aStart < bEnd && aEnd > bStart
}

// FindOverlap returns the first existing item in the candidate's day whose
// range intersects the candidate, or nil.
func FindOverlap(items []models.ItineraryItem, cand Candidate) *Conflict {
	for _, it := range items {
		if it.DayNumber != cand.DayNumber || (cand.ExcludeID != "" && it.ItemID == cand.ExcludeID) {
			continue
		}
		s, e, ok := itemRange(it)
		if !ok {
			continue
		}
		if overlaps(cand.Start, cand.End, s, e) {
			return &Conflict{
				Kind:      ConflictOverlap,
				DayNumber: cand.DayNumber,
				Existing:  slotOf(it),
				Incoming:  cand.slot(),
			}
		}
	}
	return nil
}

// FindSortOrderConflict returns the item in day that already holds sortOrder.
func FindSortOrderConflict(items []models.ItineraryItem, day, sortOrder int, excludeID string) *Conflict {
	for _, it := range items {
		if it.DayNumber != day || it.SortOrder != sortOrder {
			continue
		}
		if excludeID != "" && it.ItemID == excludeID {
			continue
		}
		return &Conflict{
			Kind:      ConflictSortOrder,
			DayNumber: day,
			Existing:  slotOf(it),
			Incoming:  Slot{ItemID: excludeID, SortOrder: sortOrder},
		}
	}
	return nil
}

func HasDuplicateSortOrder(items []models.ItineraryItem, day, sortOrder int, excludeID string) bool {
	return FindSortOrderConflict(items, day, sortOrder, excludeID) != nil
}

func HasDuplicateSortOrderForInsert(items []models.ItineraryItem, day, sortOrder int) bool {
	return HasDuplicateSortOrder(items, day, sortOrder, "")
}

func HasDuplicateSortOrderForUpdate(items []models.ItineraryItem, day, sortOrder int, itemID string) bool {
	return HasDuplicateSortOrder(items, day, sortOrder, itemID)
}

// Slotted is a not-yet-persisted placement from a batch create or reorder.
type Slotted struct {
	Ref       string
	ItemID    string
	DayNumber int
	SortOrder int
	Start     Clock
	End       Clock
	HasTimes  bool
}

func (s Slotted) slot() Slot {
	sl := Slot{ItemID: s.ItemID, Ref: s.Ref, SortOrder: s.SortOrder}
	if s.HasTimes {
		sl.StartTime, sl.EndTime = s.Start.String(), s.End.String()
	}
	return sl
}

// FindBatchConflict reports the first pair of entries in the same day that
// share a sort order or overlap in time. Sort order clashes are reported
// before time clashes.
func FindBatchConflict(entries []Slotted) *Conflict {
	if c := FindBatchSortOrderConflict(entries); c != nil {
		return c
	}
	return FindBatchOverlap(entries)
}

func FindBatchSortOrderConflict(entries []Slotted) *Conflict {
	seen := make(map[[2]int]Slotted, len(entries))
	for _, e := range entries {
		key := [2]int{e.DayNumber, e.SortOrder}
		if prev, ok := seen[key]; ok {
			return &Conflict{
				Kind:      ConflictBatchSortOrder,
				DayNumber: e.DayNumber,
				Existing:  prev.slot(),
				Incoming:  e.slot(),
			}
		}
		seen[key] = e
	}
	return nil
}

func FindBatchOverlap(entries []Slotted) *Conflict {
	byDay := make(map[int][]Slotted)
	var days []int
	for _, e := range entries {
		if !e.HasTimes {
			continue
		}
		if _, ok := byDay[e.DayNumber]; !ok {
			days = append(days, e.DayNumber)
		}
		byDay[e.DayNumber] = append(byDay[e.DayNumber], e)
	}
	for _, day := range days {
		group := byDay[day]
		for i := 1; i < len(group); i++ {
			for j := 0; j < i; j++ {
				if overlaps(group[i].Start, group[i].End, group[j].Start, group[j].End) {
					return &Conflict{
						Kind:      ConflictBatchOverlap,
						DayNumber: day,
						Existing:  group[j].slot(),
						Incoming:  group[i].slot(),
					}
				}
			}
		}
	}
	return nil
}

// FindTimeOrderViolation checks every day in items: ordered by sort order,
// start times must never go backwards. It returns the first offending pair.
func FindTimeOrderViolation(items []models.ItineraryItem) *Conflict {
	byDay := make(map[int][]models.ItineraryItem)
	for _, it := range items {
		byDay[it.DayNumber] = append(byDay[it.DayNumber], it)
	}

	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Ints(days)

	for _, day := range days {
		dayItems := byDay[day]
		sort.SliceStable(dayItems, func(i, j int) bool { return dayItems[i].SortOrder < dayItems[j].SortOrder })

		var prev *models.ItineraryItem
		var prevStart Clock
		for i := range dayItems {
			s, _, ok := itemRange(dayItems[i])
			if !ok {
				continue
			}
			if prev != nil && s < prevStart {
				return &Conflict{
					Kind:      ConflictTimeOrder,
					DayNumber: day,
					Existing:  slotOf(*prev),
					Incoming:  slotOf(dayItems[i]),
				}
			}
			prev, prevStart = &dayItems[i], s
		}
	}
	return nil
}

func IsTimeOrderConsistent(items []models.ItineraryItem) bool {
	return FindTimeOrderViolation(items) == nil
}
