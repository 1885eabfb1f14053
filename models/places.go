package models

import "time"

// Place is the subset of the places document the scheduler reads.
type Place struct {
	PlaceID   string      `json:"placeid" bson:"placeid"`
	Name      string      `json:"name" bson:"name"`
	Address   string      `json:"address" bson:"address"`
	City      string      `json:"city,omitempty" bson:"city,omitempty"`
	Country   string      `json:"country,omitempty" bson:"country,omitempty"`
	Category  string      `json:"category" bson:"category"`
	Location  Coordinates `json:"location" bson:"location,omitempty"`
	CreatedAt time.Time   `json:"created_at" bson:"created_at"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
}

// IsZero reports whether no coordinates were recorded.
func (c Coordinates) IsZero() bool {
	return c.Latitude == 0 && c.Longitude == 0
}
