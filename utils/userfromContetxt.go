package utils

import (
	"net/http"

	"itinera/middleware"
)

func GetUserIDFromRequest(r *http.Request) string {
	return middleware.UserID(r.Context())
}
