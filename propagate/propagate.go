// Package propagate keeps each item's transport duration in step with the
// item that precedes it.
package propagate

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"itinera/logging"
	"itinera/metrics"
	"itinera/models"
	"itinera/schedule"
	"itinera/store"
	"itinera/transport"
)

type Propagator struct {
	items    store.ItemStore
	places   store.PlaceLookup
	provider transport.Provider
	scope    schedule.Scope
	logger   *zap.Logger
}

func New(items store.ItemStore, places store.PlaceLookup, provider transport.Provider, scope schedule.Scope, logger *zap.Logger) *Propagator {
	if scope == "" {
		scope = schedule.ScopeDay
	}
	return &Propagator{
		items:    items,
		places:   places,
		provider: provider,
		scope:    scope,
		logger:   logging.OrNop(logger),
	}
}

func (p *Propagator) Scope() schedule.Scope { return p.scope }

// AroundItem refreshes the tracked item (from its predecessor, or 0 when it
// has none) and its successor (from the tracked item). items is the full
// item list of the itinerary after the mutation. The returned slice holds
// the items whose duration changed.
func (p *Propagator) AroundItem(ctx context.Context, items []models.ItineraryItem, itemID string) ([]models.ItineraryItem, error) {
	_, next, found := schedule.Neighbors(items, itemID, p.scope)
	if !found {
		return nil, nil
	}
	targets := []string{itemID}
	if next != nil {
		targets = append(targets, next.ItemID)
	}
	return p.apply(ctx, items, targets)
}

// AcrossDay recomputes every duration in day with one forward pass. The
// first item of the day gets 0.
func (p *Propagator) AcrossDay(ctx context.Context, items []models.ItineraryItem, day int) ([]models.ItineraryItem, error) {
	var targets []string
	for _, it := range schedule.DayItems(items, day) {
		targets = append(targets, it.ItemID)
	}
	if p.scope == schedule.ScopeItinerary {
		// the next day's opener follows this day's last item
		for _, it := range schedule.Sequence(items) {
			if it.DayNumber > day {
				targets = append(targets, it.ItemID)
				break
			}
		}
	}
	return p.apply(ctx, items, targets)
}

// RefreshDay loads the itinerary's items and runs AcrossDay.
func (p *Propagator) RefreshDay(ctx context.Context, itineraryID string, day int) error {
	items, err := p.items.GetAllByItinerary(ctx, itineraryID)
	if err != nil {
		return fmt.Errorf("load items of %s: %w", itineraryID, err)
	}
	_, err = p.AcrossDay(ctx, items, day)
	return err
}

func (p *Propagator) apply(ctx context.Context, items []models.ItineraryItem, targets []string) ([]models.ItineraryItem, error) {
	if len(targets) == 0 {
		return nil, nil
	}
	places, err := p.resolvePlaces(ctx, items)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.ItineraryItem, len(items))
	for _, it := range items {
		byID[it.ItemID] = it
	}

	durations := make(map[string]int)
	var changed []models.ItineraryItem
	for _, id := range targets {
		cur, ok := byID[id]
		if !ok {
			continue
		}
		secs := 0
		if prev, _, _ := schedule.Neighbors(items, id, p.scope); prev != nil {
			secs = p.duration(ctx, *prev, cur, places)
		}
		if cur.TransportDuration == secs {
			continue
		}
		cur.TransportDuration = secs
		durations[id] = secs
		changed = append(changed, cur)
	}

	if len(durations) == 0 {
		return nil, nil
	}
	if err := p.items.SetTransportDurations(ctx, durations); err != nil {
		return nil, fmt.Errorf("persist transport durations: %w", err)
	}
	metrics.PropagatedItemsTotal.Add(float64(len(changed)))
	return changed, nil
}

// duration never fails: lookup problems are logged and count as 0.
func (p *Propagator) duration(ctx context.Context, from, to models.ItineraryItem, places map[string]models.Place) int {
	mode := transport.NormalizeMode(to.TransportMethod)
	log := logging.WithContext(ctx, p.logger).With(
		zap.String("from_item", from.ItemID),
		zap.String("to_item", to.ItemID),
		zap.String("mode", mode),
	)

	src, okFrom := places[from.PlaceID]
	dst, okTo := places[to.PlaceID]
	if !okFrom || !okTo {
		metrics.PropagationFailuresTotal.WithLabelValues(mode).Inc()
		log.Warn("place not found, transport duration set to 0",
			zap.String("from_place", from.PlaceID), zap.String("to_place", to.PlaceID))
		return 0
	}
	if from.PlaceID == to.PlaceID {
		return 0
	}

	secs, err := p.provider.Duration(ctx, src.Location, dst.Location, mode)
	if err != nil || secs < 0 {
		metrics.PropagationFailuresTotal.WithLabelValues(mode).Inc()
		log.Warn("transport duration lookup failed, set to 0", zap.Int("seconds", secs), zap.Error(err))
		return 0
	}
	return secs
}

// resolvePlaces prefers places already attached to items and looks up the rest.
func (p *Propagator) resolvePlaces(ctx context.Context, items []models.ItineraryItem) (map[string]models.Place, error) {
	out := make(map[string]models.Place)
	var missing []string
	seen := make(map[string]bool)
	for _, it := range items {
		if it.PlaceID == "" || seen[it.PlaceID] {
			continue
		}
		seen[it.PlaceID] = true
		if it.Place != nil {
			out[it.PlaceID] = *it.Place
			continue
		}
		missing = append(missing, it.PlaceID)
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := p.places.GetPlaces(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("resolve places: %w", err)
	}
	for id, pl := range found {
		out[id] = pl
	}
	return out, nil
}
