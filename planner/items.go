package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"itinera/models"
	"itinera/schedule"
	"itinera/store"
	"itinera/transport"
)

// placement is a parsed, range-checked position request.
type placement struct {
	day        int
	sortOrder  int
	start, end schedule.Clock
}

// parsePlacement checks day against maxDay unless maxDay is 0.
func parsePlacement(ref string, maxDay, day, sortOrder int, start, end string) (placement, error) {
	if day < 1 {
		return placement{}, invalid("%s: day_number must be 1 or greater", ref)
	}
	if maxDay > 0 && day > maxDay {
		return placement{}, invalid("%s: day_number %d is past the last day (%d) of the itinerary", ref, day, maxDay)
	}
	s, e, err := schedule.ParseRange(start, end)
	if err != nil {
		return placement{}, invalid("%s: %v", ref, err)
	}
	return placement{day: day, sortOrder: sortOrder, start: s, end: e}, nil
}

func checkCreate(ref string, maxDay int, req models.CreateItemRequest) (placement, error) {
	if strings.TrimSpace(req.PlaceID) == "" {
		return placement{}, invalid("%s: placeid is required", ref)
	}
	if !transport.SupportedMode(req.TransportMethod) {
		return placement{}, invalid("%s: unsupported transport_method %q", ref, req.TransportMethod)
	}
	return parsePlacement(ref, maxDay, req.DayNumber, req.SortOrder, req.StartTime, req.EndTime)
}

func (s *Service) buildItem(itineraryID string, req models.CreateItemRequest, p placement) models.ItineraryItem {
	now := s.now()
	return models.ItineraryItem{
		ItemID:          s.newID(),
		ItineraryID:     itineraryID,
		PlaceID:         strings.TrimSpace(req.PlaceID),
		Title:           req.Title,
		Notes:           req.Notes,
		DayNumber:       p.day,
		SortOrder:       p.sortOrder,
		StartTime:       p.start.String(),
		EndTime:         p.end.String(),
		TimeSlotType:    schedule.SlotType(p.start, p.end),
		TransportMethod: transport.NormalizeMode(req.TransportMethod),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// checkAgainstExisting runs the overlap and then the sort order check for
// one placement against the stored items.
func checkAgainstExisting(items []models.ItineraryItem, p placement, excludeID string) error {
	cand := schedule.Candidate{DayNumber: p.day, SortOrder: p.sortOrder, Start: p.start, End: p.end, ExcludeID: excludeID}
	if c := schedule.FindOverlap(items, cand); c != nil {
		return conflict(c)
	}
	if c := schedule.FindSortOrderConflict(items, p.day, p.sortOrder, excludeID); c != nil {
		return conflict(c)
	}
	return nil
}

// AddSingle schedules one new item.
func (s *Service) AddSingle(ctx context.Context, itineraryID string, req models.CreateItemRequest) (models.ItineraryItem, error) {
	var created string
	m, err := s.run(ctx, "add_single", byItinerary(itineraryID), func(ctx context.Context, m *mutation) error {
		p, err := checkCreate("item", dayCount(m.itinerary), req)
		if err != nil {
			return err
		}
		if err := checkAgainstExisting(m.items, p, ""); err != nil {
			return err
		}

		item := s.buildItem(itineraryID, req, p)
		next := append(append([]models.ItineraryItem{}, m.items...), item)
		if c := schedule.FindTimeOrderViolation(next); c != nil {
			return conflict(c)
		}

		if err := s.items.Create(ctx, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		m.items = next
		m.around = append(m.around, item.ItemID)
		m.touch(item.DayNumber)
		created = item.ItemID
		return nil
	})
	if err != nil {
		return models.ItineraryItem{}, err
	}
	i, _ := m.find(created)
	return m.items[i], nil
}

// AddBatch schedules several items at once; either all are added or none.
func (s *Service) AddBatch(ctx context.Context, itineraryID string, reqs []models.CreateItemRequest) ([]models.ItineraryItem, error) {
	var created []string
	m, err := s.run(ctx, "add_batch", byItinerary(itineraryID), func(ctx context.Context, m *mutation) error {
		if len(reqs) == 0 {
			return invalid("items: at least one item is required")
		}

		maxDay := dayCount(m.itinerary)
		placements := make([]placement, len(reqs))
		entries := make([]schedule.Slotted, len(reqs))
		for i, req := range reqs {
			ref := fmt.Sprintf("items[%d]", i)
			p, err := checkCreate(ref, maxDay, req)
			if err != nil {
				return err
			}
			placements[i] = p
			entries[i] = schedule.Slotted{Ref: ref, DayNumber: p.day, SortOrder: p.sortOrder, Start: p.start, End: p.end, HasTimes: true}
		}

		if c := schedule.FindBatchConflict(entries); c != nil {
			return conflict(c)
		}
		for _, p := range placements {
			if err := checkAgainstExisting(m.items, p, ""); err != nil {
				return err
			}
		}

		built := make([]models.ItineraryItem, len(reqs))
		for i, req := range reqs {
			built[i] = s.buildItem(itineraryID, req, placements[i])
		}
		next := append(append([]models.ItineraryItem{}, m.items...), built...)
		if c := schedule.FindTimeOrderViolation(next); c != nil {
			return conflict(c)
		}

		if err := s.items.CreateBatch(ctx, built); err != nil {
			return fmt.Errorf("create items: %w", err)
		}
		m.items = next
		created = created[:0]
		for _, it := range built {
			m.around = append(m.around, it.ItemID)
			m.touch(it.DayNumber)
			created = append(created, it.ItemID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.ItineraryItem, 0, len(created))
	for _, id := range created {
		i, _ := m.find(id)
		out = append(out, m.items[i])
	}
	return out, nil
}

func (s *Service) itineraryOf(itemID string) resolveFunc {
	return func(ctx context.Context) (string, error) {
		item, err := s.items.GetByID(ctx, itemID)
		if errors.Is(err, store.ErrNotFound) {
			return "", notFound("item %s not found", itemID)
		}
		if err != nil {
			return "", err
		}
		if want, ok := scopedItinerary(ctx); ok && want != item.ItineraryID {
			return "", notFound("item %s not found in itinerary %s", itemID, want)
		}
		return item.ItineraryID, nil
	}
}

func firstNonNil(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}

// Update applies a partial change to one item. Moving to another day
// refreshes both days.
func (s *Service) Update(ctx context.Context, itemID string, req models.UpdateItemRequest) (models.ItineraryItem, error) {
	m, err := s.run(ctx, "update", s.itineraryOf(itemID), func(ctx context.Context, m *mutation) error {
		idx, ok := m.find(itemID)
		if !ok {
			return notFound("item %s not found", itemID)
		}
		cur := m.items[idx]

		day, sortOrder := cur.DayNumber, cur.SortOrder
		if req.DayNumber != nil {
			day = *req.DayNumber
		}
		if req.SortOrder != nil {
			sortOrder = *req.SortOrder
		}
		p, err := parsePlacement("item", dayCount(m.itinerary), day, sortOrder,
			firstNonNil(req.StartTime, cur.StartTime), firstNonNil(req.EndTime, cur.EndTime))
		if err != nil {
			return err
		}
		if req.PlaceID != nil && strings.TrimSpace(*req.PlaceID) == "" {
			return invalid("item: placeid cannot be empty")
		}
		if req.TransportMethod != nil && !transport.SupportedMode(*req.TransportMethod) {
			return invalid("item: unsupported transport_method %q", *req.TransportMethod)
		}

		if err := checkAgainstExisting(m.items, p, itemID); err != nil {
			return err
		}

		updated := cur
		updated.DayNumber, updated.SortOrder = p.day, p.sortOrder
		updated.StartTime, updated.EndTime = p.start.String(), p.end.String()
		updated.TimeSlotType = schedule.SlotType(p.start, p.end)
		if req.PlaceID != nil {
			updated.PlaceID = strings.TrimSpace(*req.PlaceID)
		}
		if req.Title != nil {
			updated.Title = *req.Title
		}
		if req.Notes != nil {
			updated.Notes = *req.Notes
		}
		if req.TransportMethod != nil {
			updated.TransportMethod = transport.NormalizeMode(*req.TransportMethod)
		}
		updated.UpdatedAt = s.now()

		next := append([]models.ItineraryItem{}, m.items...)
		next[idx] = updated
		if c := schedule.FindTimeOrderViolation(schedule.DayItems(next, updated.DayNumber)); c != nil {
			return conflict(c)
		}

		if err := s.items.Update(ctx, updated); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		m.items = next
		m.touch(cur.DayNumber, updated.DayNumber)
		return nil
	})
	if err != nil {
		return models.ItineraryItem{}, err
	}
	i, _ := m.find(itemID)
	return m.items[i], nil
}

// Delete removes one item and closes the gap it leaves in its day.
func (s *Service) Delete(ctx context.Context, itemID string) error {
	_, err := s.run(ctx, "delete", s.itineraryOf(itemID), func(ctx context.Context, m *mutation) error {
		idx, ok := m.find(itemID)
		if !ok {
			return notFound("item %s not found", itemID)
		}
		day := m.items[idx].DayNumber

		if err := s.items.Delete(ctx, itemID); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		m.items = append(m.items[:idx:idx], m.items[idx+1:]...)
		m.touch(day)
		return nil
	})
	return err
}

// Reorder moves existing items to new days and slots in one step. Entries
// may swap positions with each other.
func (s *Service) Reorder(ctx context.Context, itineraryID string, entries []models.ReorderEntry) ([]models.DaySchedule, error) {
	m, err := s.run(ctx, "reorder", byItinerary(itineraryID), func(ctx context.Context, m *mutation) error {
		if len(entries) == 0 {
			return invalid("reorder: at least one entry is required")
		}

		next := append([]models.ItineraryItem{}, m.items...)
		slotted := make([]schedule.Slotted, len(entries))
		moved := make([]int, len(entries))
		seen := make(map[string]bool, len(entries))

		for i, e := range entries {
			ref := fmt.Sprintf("reorder[%d]", i)
			if seen[e.ItemID] {
				return invalid("%s: item %s is listed twice", ref, e.ItemID)
			}
			seen[e.ItemID] = true

			idx, ok := m.find(e.ItemID)
			if !ok {
				return notFound("item %s not found in itinerary %s", e.ItemID, itineraryID)
			}
			cur := m.items[idx]
			start, end := cur.StartTime, cur.EndTime
			if e.StartTime != "" {
				start = e.StartTime
			}
			if e.EndTime != "" {
				end = e.EndTime
			}
			p, err := parsePlacement(ref, dayCount(m.itinerary), e.DayNumber, e.SortOrder, start, end)
			if err != nil {
				return err
			}

			slotted[i] = schedule.Slotted{Ref: ref, ItemID: e.ItemID, DayNumber: p.day, SortOrder: p.sortOrder, Start: p.start, End: p.end, HasTimes: true}
			moved[i] = idx

			it := &next[idx]
			m.touch(it.DayNumber, p.day)
			it.DayNumber, it.SortOrder = p.day, p.sortOrder
			it.StartTime, it.EndTime = p.start.String(), p.end.String()
			it.TimeSlotType = schedule.SlotType(p.start, p.end)
			it.UpdatedAt = s.now()
		}

		if c := schedule.FindBatchConflict(slotted); c != nil {
			return conflict(c)
		}
		// checked against the final layout, so swaps between entries pass
		for _, sl := range slotted {
			if c := schedule.FindSortOrderConflict(next, sl.DayNumber, sl.SortOrder, sl.ItemID); c != nil {
				return conflict(c)
			}
			cand := schedule.Candidate{DayNumber: sl.DayNumber, SortOrder: sl.SortOrder, Start: sl.Start, End: sl.End, ExcludeID: sl.ItemID}
			if c := schedule.FindOverlap(next, cand); c != nil {
				return conflict(c)
			}
		}
		if c := schedule.FindTimeOrderViolation(next); c != nil {
			return conflict(c)
		}

		changed := make([]models.ItineraryItem, len(moved))
		for i, idx := range moved {
			changed[i] = next[idx]
		}
		if err := s.items.UpdateRange(ctx, changed); err != nil {
			return fmt.Errorf("reorder items: %w", err)
		}
		m.items = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schedule.GroupByDay(m.items), nil
}

// GetAllGroupedByDay returns the itinerary's items by day with places attached.
func (s *Service) GetAllGroupedByDay(ctx context.Context, itineraryID string) ([]models.DaySchedule, error) {
	ok, err := s.itineraries.Exists(ctx, itineraryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("itinerary %s not found", itineraryID)
	}

	items, err := s.items.GetAllByItinerary(ctx, itineraryID)
	if err != nil {
		return nil, err
	}
	if err := s.attachPlaces(ctx, items); err != nil {
		return nil, err
	}
	return schedule.GroupByDay(items), nil
}

func (s *Service) attachPlaces(ctx context.Context, items []models.ItineraryItem) error {
	ids := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		if it.PlaceID != "" && !seen[it.PlaceID] {
			seen[it.PlaceID] = true
			ids = append(ids, it.PlaceID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	places, err := s.places.GetPlaces(ctx, ids)
	if err != nil {
		return fmt.Errorf("load places: %w", err)
	}
	for i := range items {
		if p, ok := places[items[i].PlaceID]; ok {
			pl := p
			items[i].Place = &pl
		}
	}
	return nil
}
