package itinerary

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"itinera/models"
	"itinera/planner"
	"itinera/utils"
)

// itemContext is versioned, scoped to the itinerary in the path.
func (h *Handler) itemContext(w http.ResponseWriter, r *http.Request, ps httprouter.Params) (*http.Request, func(), bool) {
	ctx, cancel, ok := h.versioned(w, r)
	if !ok {
		return nil, nil, false
	}
	ctx = planner.WithinItinerary(ctx, ps.ByName("id"))
	return r.WithContext(ctx), cancel, true
}

// POST /api/itineraries/:id/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req models.CreateItemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	r, cancel, ok := h.itemContext(w, r, ps)
	if !ok {
		return
	}
	defer cancel()

	item, err := h.svc.AddSingle(r.Context(), ps.ByName("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, item)
}

type batchRequest struct {
	Items []models.CreateItemRequest `json:"items"`
}

// POST /api/itineraries/:id/items/batch
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req batchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	r, cancel, ok := h.itemContext(w, r, ps)
	if !ok {
		return
	}
	defer cancel()

	items, err := h.svc.AddBatch(r.Context(), ps.ByName("id"), req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, items)
}

// PUT /api/itineraries/:id/items/:itemid
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req models.UpdateItemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	r, cancel, ok := h.itemContext(w, r, ps)
	if !ok {
		return
	}
	defer cancel()

	item, err := h.svc.Update(r.Context(), ps.ByName("itemid"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, item)
}

// DELETE /api/itineraries/:id/items/:itemid
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	r, cancel, ok := h.itemContext(w, r, ps)
	if !ok {
		return
	}
	defer cancel()

	if err := h.svc.Delete(r.Context(), ps.ByName("itemid")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reorderRequest struct {
	Items []models.ReorderEntry `json:"items"`
}

// PUT /api/itineraries/:id/reorder
func (h *Handler) ReorderItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req reorderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	r, cancel, ok := h.itemContext(w, r, ps)
	if !ok {
		return
	}
	defer cancel()

	days, err := h.svc.Reorder(r.Context(), ps.ByName("id"), req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, days)
}
