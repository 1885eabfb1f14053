package utils

import (
	"github.com/google/uuid"
)

// NewID returns a time-ordered UUIDv7, or a random v4 if one cannot be made.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
