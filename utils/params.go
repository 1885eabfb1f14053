package utils

import (
	"net/http"
	"strconv"

	"itinera/store"
)

// ParseListFilter reads itinerary listing filters from the query string.
// Unparseable booleans are ignored.
func ParseListFilter(r *http.Request) store.ListFilter {
	q := r.URL.Query()
	return store.ListFilter{
		UserID:    q.Get("user_id"),
		Status:    q.Get("status"),
		StartDate: q.Get("start_date"),
		Published: parseBool(q.Get("published")),
		Template:  parseBool(q.Get("template")),
	}
}

func parseBool(s string) *bool {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil
	}
	return &v
}
