package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"itinera/models"
)

// Memory is an in-process store. Transactions are serialized and rolled back
// by restoring a snapshot taken when Do started.
type Memory struct {
	txMu sync.Mutex

	mu          sync.RWMutex
	itineraries map[string]models.Itinerary
	items       map[string]models.ItineraryItem
	places      map[string]models.Place
	faults      map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		itineraries: map[string]models.Itinerary{},
		items:       map[string]models.ItineraryItem{},
		places:      map[string]models.Place{},
		faults:      map[string]error{},
	}
}

func (m *Memory) Items() ItemStore            { return memItems{m} }
func (m *Memory) Itineraries() ItineraryStore { return memItineraries{m} }
func (m *Memory) Places() PlaceLookup         { return memPlaces{m} }

func (m *Memory) PutPlace(p models.Place) {
	m.mu.Lock()
	m.places[p.PlaceID] = p
	m.mu.Unlock()
}

func (m *Memory) PutItinerary(it models.Itinerary) {
	m.mu.Lock()
	m.itineraries[it.ItineraryID] = copyItinerary(it)
	m.mu.Unlock()
}

// FailOn makes the named operation (e.g. "items.UpdateRange") return err
// until cleared with a nil err.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *Memory) fault(op string) error {
	if err, ok := m.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type memSnapshot struct {
	itineraries map[string]models.Itinerary
	items       map[string]models.ItineraryItem
}

func (m *Memory) snapshot() memSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := memSnapshot{
		itineraries: make(map[string]models.Itinerary, len(m.itineraries)),
		items:       make(map[string]models.ItineraryItem, len(m.items)),
	}
	for k, v := range m.itineraries {
		s.itineraries[k] = copyItinerary(v)
	}
	for k, v := range m.items {
		s.items[k] = copyItem(v)
	}
	return s
}

func (m *Memory) restore(s memSnapshot) {
	m.mu.Lock()
	m.itineraries = s.itineraries
	m.items = s.items
	m.mu.Unlock()
}

func (m *Memory) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func copyItem(it models.ItineraryItem) models.ItineraryItem {
	if it.Place != nil {
		p := *it.Place
		it.Place = &p
	}
	return it
}

func copyItinerary(it models.Itinerary) models.Itinerary {
	if it.ForkedFrom != nil {
		f := *it.ForkedFrom
		it.ForkedFrom = &f
	}
	return it
}

type slotKey struct {
	itinerary string
	day       int
	sort      int
}

func keyOf(it models.ItineraryItem) slotKey {
	return slotKey{it.ItineraryID, it.DayNumber, it.SortOrder}
}

// checkSlots reports ErrDuplicateSlot if the current item set holds two
// items in one slot. Caller holds mu.
func (m *Memory) checkSlots(itineraryID string) error {
	seen := map[slotKey]string{}
	for id, it := range m.items {
		if it.ItineraryID != itineraryID {
			continue
		}
		k := keyOf(it)
		if other, ok := seen[k]; ok {
			return fmt.Errorf("%w: items %s and %s on day %d sort order %d",
				ErrDuplicateSlot, other, id, k.day, k.sort)
		}
		seen[k] = id
	}
	return nil
}

// writeItems applies items and rolls them back if the slot check fails.
// Caller holds mu.
func (m *Memory) writeItems(items []models.ItineraryItem, mustExist, mustNotExist bool) error {
	prev := make(map[string]*models.ItineraryItem, len(items))
	for _, it := range items {
		old, exists := m.items[it.ItemID]
		if mustExist && !exists {
			return fmt.Errorf("item %s: %w", it.ItemID, ErrNotFound)
		}
		if mustNotExist && exists {
			return fmt.Errorf("item %s already exists", it.ItemID)
		}
		if _, done := prev[it.ItemID]; !done {
			if exists {
				o := old
				prev[it.ItemID] = &o
			} else {
				prev[it.ItemID] = nil
			}
		}
	}

	touched := map[string]struct{}{}
	for _, it := range items {
		c := copyItem(it)
		c.Place = nil
		m.items[it.ItemID] = c
		touched[it.ItineraryID] = struct{}{}
	}
	for id := range touched {
		if err := m.checkSlots(id); err != nil {
			for itemID, old := range prev {
				if old == nil {
					delete(m.items, itemID)
				} else {
					m.items[itemID] = *old
				}
			}
			return err
		}
	}
	return nil
}

type memItems struct{ m *Memory }

func (s memItems) GetAllByItinerary(ctx context.Context, itineraryID string) ([]models.ItineraryItem, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if err := s.m.fault("items.GetAllByItinerary"); err != nil {
		return nil, err
	}
	out := []models.ItineraryItem{}
	for _, it := range s.m.items {
		if it.ItineraryID == itineraryID {
			out = append(out, copyItem(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayNumber != out[j].DayNumber {
			return out[i].DayNumber < out[j].DayNumber
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (s memItems) GetByID(ctx context.Context, itemID string) (models.ItineraryItem, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	it, ok := s.m.items[itemID]
	if !ok {
		return models.ItineraryItem{}, ErrNotFound
	}
	return copyItem(it), nil
}

func (s memItems) Create(ctx context.Context, item models.ItineraryItem) error {
	return s.CreateBatch(ctx, []models.ItineraryItem{item})
}

func (s memItems) CreateBatch(ctx context.Context, items []models.ItineraryItem) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fault("items.Create"); err != nil {
		return err
	}
	return s.m.writeItems(items, false, true)
}

func (s memItems) Update(ctx context.Context, item models.ItineraryItem) error {
	return s.UpdateRange(ctx, []models.ItineraryItem{item})
}

func (s memItems) UpdateRange(ctx context.Context, items []models.ItineraryItem) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fault("items.UpdateRange"); err != nil {
		return err
	}
	return s.m.writeItems(items, true, false)
}

func (s memItems) SetTransportDurations(ctx context.Context, durations map[string]int) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fault("items.SetTransportDurations"); err != nil {
		return err
	}
	now := time.Now()
	for id, secs := range durations {
		it, ok := s.m.items[id]
		if !ok {
			continue
		}
		it.TransportDuration = secs
		it.UpdatedAt = now
		s.m.items[id] = it
	}
	return nil
}

func (s memItems) Delete(ctx context.Context, itemID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fault("items.Delete"); err != nil {
		return err
	}
	if _, ok := s.m.items[itemID]; !ok {
		return ErrNotFound
	}
	delete(s.m.items, itemID)
	return nil
}

func (s memItems) DeleteByItinerary(ctx context.Context, itineraryID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, it := range s.m.items {
		if it.ItineraryID == itineraryID {
			delete(s.m.items, id)
		}
	}
	return nil
}

type memItineraries struct{ m *Memory }

func (s memItineraries) GetByID(ctx context.Context, id string) (models.Itinerary, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	it, ok := s.m.itineraries[id]
	if !ok || it.Deleted {
		return models.Itinerary{}, ErrNotFound
	}
	return copyItinerary(it), nil
}

func (s memItineraries) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetByID(ctx, id)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s memItineraries) Create(ctx context.Context, it models.Itinerary) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.itineraries[it.ItineraryID]; ok {
		return fmt.Errorf("itinerary %s already exists", it.ItineraryID)
	}
	s.m.itineraries[it.ItineraryID] = copyItinerary(it)
	return nil
}

func (s memItineraries) Update(ctx context.Context, it models.Itinerary) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cur, ok := s.m.itineraries[it.ItineraryID]
	if !ok || cur.Deleted {
		return ErrNotFound
	}
	it.Version = cur.Version
	it.CreatedAt = cur.CreatedAt
	s.m.itineraries[it.ItineraryID] = copyItinerary(it)
	return nil
}

func (s memItineraries) SoftDelete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	cur, ok := s.m.itineraries[id]
	if !ok || cur.Deleted {
		return ErrNotFound
	}
	cur.Deleted = true
	s.m.itineraries[id] = cur
	return nil
}

func (s memItineraries) List(ctx context.Context, f ListFilter) ([]models.Itinerary, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	out := []models.Itinerary{}
	for _, it := range s.m.itineraries {
		if matches(it, f) {
			out = append(out, copyItinerary(it))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ItineraryID < out[j].ItineraryID
	})
	return out, nil
}

func matches(it models.Itinerary, f ListFilter) bool {
	switch {
	case it.Deleted:
		return false
	case f.UserID != "" && it.UserID != f.UserID:
		return false
	case f.Status != "" && it.Status != f.Status:
		return false
	case f.StartDate != "" && it.StartDate != f.StartDate:
		return false
	case f.Published != nil && it.Published != *f.Published:
		return false
	case f.Template != nil && it.IsTemplate != *f.Template:
		return false
	}
	return true
}

func (s memItineraries) BumpVersion(ctx context.Context, id string, expected int64) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fault("itineraries.BumpVersion"); err != nil {
		return 0, err
	}
	cur, ok := s.m.itineraries[id]
	if !ok || cur.Deleted {
		return 0, ErrNotFound
	}
	if cur.Version != expected {
		return 0, ErrVersionConflict
	}
	cur.Version++
	s.m.itineraries[id] = cur
	return cur.Version, nil
}

type memPlaces struct{ m *Memory }

func (s memPlaces) GetPlaces(ctx context.Context, ids []string) (map[string]models.Place, error) {
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	if err := s.m.fault("places.GetPlaces"); err != nil {
		return nil, err
	}
	out := make(map[string]models.Place, len(ids))
	for _, id := range ids {
		if p, ok := s.m.places[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}
