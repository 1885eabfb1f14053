// Package store is the persistence boundary of the scheduler: item and
// itinerary repositories, place lookup, and the unit of work that makes a
// mutation all-or-nothing.
package store

import (
	"context"
	"errors"

	"itinera/models"
)

var (
	ErrNotFound = errors.New("not found")
	// the itinerary changed since it was read
	ErrVersionConflict = errors.New("itinerary was modified concurrently")
	// the store refused a second item in the same (day, sort order) slot
	ErrDuplicateSlot = errors.New("day and sort order already taken")
)

type ItemStore interface {
	// GetAllByItinerary returns items ordered by day number then sort order.
	GetAllByItinerary(ctx context.Context, itineraryID string) ([]models.ItineraryItem, error)
	GetByID(ctx context.Context, itemID string) (models.ItineraryItem, error)
	Create(ctx context.Context, item models.ItineraryItem) error
	CreateBatch(ctx context.Context, items []models.ItineraryItem) error
	Update(ctx context.Context, item models.ItineraryItem) error
	// UpdateRange writes all items as one step; slot uniqueness is checked
	// against the final state, so items may swap positions.
	UpdateRange(ctx context.Context, items []models.ItineraryItem) error
	// SetTransportDurations only writes transport_duration, keyed by item id.
	// Ids that no longer exist are skipped.
	SetTransportDurations(ctx context.Context, durations map[string]int) error
	Delete(ctx context.Context, itemID string) error
	DeleteByItinerary(ctx context.Context, itineraryID string) error
}

// ListFilter narrows itinerary listings. Zero values match everything.
type ListFilter struct {
	UserID    string
	Status    string
	StartDate string
	Published *bool
	Template  *bool
}

type ItineraryStore interface {
	// GetByID ignores soft-deleted itineraries.
	GetByID(ctx context.Context, id string) (models.Itinerary, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, it models.Itinerary) error
	// Update replaces the descriptive fields; it never touches Version.
	Update(ctx context.Context, it models.Itinerary) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]models.Itinerary, error)
	// BumpVersion increments the version if it still equals expected and
	// returns the new value, or ErrVersionConflict.
	BumpVersion(ctx context.Context, id string, expected int64) (int64, error)
}

type PlaceLookup interface {
	// GetPlaces resolves ids; unknown ids are absent from the result.
	GetPlaces(ctx context.Context, ids []string) (map[string]models.Place, error)
}

// UnitOfWork runs fn in one transaction: committed when fn returns nil,
// rolled back otherwise. Stores must be called with the ctx given to fn.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
