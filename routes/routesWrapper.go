package routes

import (
	"fmt"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"itinera/itinerary"
	"itinera/metrics"
	"itinera/middleware"
	"itinera/ratelim"
)

// Index is a simple health check handler.
func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func AddUtilityRoutes(router *httprouter.Router) {
	router.GET("/health", Index)
	router.GET("/metrics", metrics.Handler())
}

func RoutesWrapper(router *httprouter.Router, h *itinerary.Handler, auth *middleware.Auth, rateLimiter *ratelim.RateLimiter) {
	AddUtilityRoutes(router)
	AddItineraryRoutes(router, h, auth, rateLimiter)
	AddItemRoutes(router, h, auth, rateLimiter)
}
