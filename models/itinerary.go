package models

import "time"

const (
	StatusDraft     = "Draft"
	StatusConfirmed = "Confirmed"
)

// DefaultTransportMethod is used when an item does not name one.
const DefaultTransportMethod = "driving"

// Itinerary represents the travel itinerary
type Itinerary struct {
	ItineraryID string  `json:"itineraryid" bson:"itineraryid"`
	UserID      string  `json:"user_id" bson:"user_id"`
	Name        string  `json:"name" bson:"name"`
	Description string  `json:"description" bson:"description"`
	StartDate   string  `json:"start_date" bson:"start_date"`
	EndDate     string  `json:"end_date" bson:"end_date"`
	Status      string  `json:"status" bson:"status"` // Draft/Confirmed
	Published   bool    `json:"published" bson:"published"`
	IsTemplate  bool    `json:"is_template" bson:"is_template"`
	ForkedFrom  *string `json:"forked_from,omitempty" bson:"forked_from,omitempty"`
	Deleted     bool    `json:"-" bson:"deleted,omitempty"` // Internal use only
	// bumped on every item mutation, compared before the write is committed
	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// ItineraryItem is a single scheduled visit inside an itinerary day.
type ItineraryItem struct {
	ItemID      string `json:"itemid" bson:"itemid"`
	ItineraryID string `json:"itineraryid" bson:"itineraryid"`
	PlaceID     string `json:"placeid" bson:"placeid"`
	Place       *Place `json:"place,omitempty" bson:"-"`
	Title       string `json:"title" bson:"title"`
	Notes       string `json:"notes,omitempty" bson:"notes,omitempty"`

	DayNumber    int    `json:"day_number" bson:"day_number"`
	SortOrder    int    `json:"sort_order" bson:"sort_order"`
	StartTime    string `json:"start_time" bson:"start_time"` // HH:MM
	EndTime      string `json:"end_time" bson:"end_time"`     // HH:MM
	TimeSlotType string `json:"time_slot_type" bson:"time_slot_type"`

	TransportMethod string `json:"transport_method" bson:"transport_method"`
	// seconds from the previous item's place; 0 for the first item of a day
	TransportDuration int `json:"transport_duration" bson:"transport_duration"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DaySchedule groups one day's items in sort order.
type DaySchedule struct {
	DayNumber int             `json:"day_number"`
	Items     []ItineraryItem `json:"items"`
}

// CreateItemRequest adds one item to an itinerary.
type CreateItemRequest struct {
	PlaceID         string `json:"placeid"`
	Title           string `json:"title"`
	Notes           string `json:"notes,omitempty"`
	DayNumber       int    `json:"day_number"`
	SortOrder       int    `json:"sort_order"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	TransportMethod string `json:"transport_method,omitempty"`
}

// UpdateItemRequest carries a partial update; nil fields are left unchanged.
type UpdateItemRequest struct {
	PlaceID         *string `json:"placeid,omitempty"`
	Title           *string `json:"title,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	DayNumber       *int    `json:"day_number,omitempty"`
	SortOrder       *int    `json:"sort_order,omitempty"`
	StartTime       *string `json:"start_time,omitempty"`
	EndTime         *string `json:"end_time,omitempty"`
	TransportMethod *string `json:"transport_method,omitempty"`
}

// ReorderEntry moves an existing item to a new day/slot.
// Start and end are optional; when empty the item keeps its times.
type ReorderEntry struct {
	ItemID    string `json:"itemid"`
	DayNumber int    `json:"day_number"`
	SortOrder int    `json:"sort_order"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

// ItineraryRequest carries the descriptive fields of an itinerary. On update
// nil fields are left unchanged.
type ItineraryRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
	Status      *string `json:"status,omitempty"`
}
