package routes

import (
	"github.com/julienschmidt/httprouter"

	"itinera/itinerary"
	"itinera/middleware"
	"itinera/ratelim"
)

func AddItineraryRoutes(router *httprouter.Router, h *itinerary.Handler, auth *middleware.Auth, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/itineraries", h.GetItineraries)                                                        //Fetch itineraries, filtered by query
	router.POST("/api/itineraries", rateLimiter.Limit(auth.Authenticate(h.CreateItinerary)))                //Create a new itinerary
	router.GET("/api/itineraries/:id", h.GetItinerary)                                                      //Fetch a single itinerary
	router.PUT("/api/itineraries/:id", auth.Authenticate(h.UpdateItinerary))                                //Update an itinerary
	router.DELETE("/api/itineraries/:id", auth.Authenticate(h.DeleteItinerary))                             //Delete an itinerary
	router.POST("/api/itineraries/:id/fork", rateLimiter.Limit(auth.Authenticate(h.ForkItinerary)))         //Fork a new itinerary
	router.POST("/api/itineraries/:id/template", rateLimiter.Limit(auth.Authenticate(h.ConvertToTemplate))) //Copy as a template
	router.PUT("/api/itineraries/:id/publish", auth.Authenticate(h.PublishItinerary))                       //Publish an itinerary
}

func AddItemRoutes(router *httprouter.Router, h *itinerary.Handler, auth *middleware.Auth, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/itineraries/:id/items", h.GetItems)
	router.POST("/api/itineraries/:id/items", rateLimiter.Limit(auth.Authenticate(h.AddItem)))
	router.POST("/api/itineraries/:id/items/batch", rateLimiter.Limit(auth.Authenticate(h.AddItems)))
	router.PUT("/api/itineraries/:id/items/:itemid", rateLimiter.Limit(auth.Authenticate(h.UpdateItem)))
	router.DELETE("/api/itineraries/:id/items/:itemid", rateLimiter.Limit(auth.Authenticate(h.DeleteItem)))
	router.PUT("/api/itineraries/:id/reorder", rateLimiter.Limit(auth.Authenticate(h.ReorderItems)))
}
