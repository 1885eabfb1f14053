package itinerary

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"itinera/models"
	"itinera/utils"
)

// GET /api/itineraries?user_id=&status=&start_date=&published=&template=
func (h *Handler) GetItineraries(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	itineraries, err := h.svc.ListItineraries(ctx, utils.ParseListFilter(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if itineraries == nil {
		itineraries = []models.Itinerary{}
	}
	utils.RespondWithJSON(w, http.StatusOK, itineraries)
}

// GET /api/itineraries/:id
func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	it, err := h.svc.GetItinerary(ctx, ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, it.Version)
	utils.RespondWithJSON(w, http.StatusOK, it)
}

// GET /api/itineraries/:id/items
func (h *Handler) GetItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	days, err := h.svc.GetAllGroupedByDay(ctx, ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if days == nil {
		days = []models.DaySchedule{}
	}
	utils.RespondWithJSON(w, http.StatusOK, days)
}
