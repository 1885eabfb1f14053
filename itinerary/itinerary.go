// Package itinerary exposes itineraries and their items over HTTP.
package itinerary

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"itinera/logging"
	"itinera/models"
	"itinera/planner"
	"itinera/utils"
)

const requestTimeout = 5 * time.Second

type Handler struct {
	svc    *planner.Service
	logger *zap.Logger
}

func NewHandler(svc *planner.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logging.OrNop(logger)}
}

// writeError maps planner errors to status codes; anything else is a 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *planner.Error
	if errors.As(err, &pe) {
		status := http.StatusBadRequest
		switch pe.Code {
		case planner.CodeNotFound:
			status = http.StatusNotFound
		case planner.CodeConflict:
			status = http.StatusConflict
		case planner.CodeForbidden:
			status = http.StatusForbidden
		}
		utils.RespondWithJSON(w, status, pe)
		return
	}
	logging.WithContext(r.Context(), h.logger).Error("request failed",
		zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	utils.RespondWithError(w, http.StatusInternalServerError, "internal error")
}

// requestContext bounds the request and carries If-Match as the expected
// itinerary version.
func requestContext(r *http.Request) (context.Context, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	if tag := r.Header.Get("If-Match"); tag != "" {
		v, err := strconv.ParseInt(strings.Trim(strings.TrimPrefix(tag, "W/"), `"`), 10, 64)
		if err != nil {
			cancel()
			return nil, nil, err
		}
		ctx = planner.WithExpectedVersion(ctx, v)
	}
	return ctx, cancel, nil
}

// versioned is requestContext that answers 400 itself on a malformed If-Match.
func (h *Handler) versioned(w http.ResponseWriter, r *http.Request) (context.Context, context.CancelFunc, bool) {
	ctx, cancel, err := requestContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid If-Match header")
		return nil, nil, false
	}
	return ctx, cancel, true
}

func setETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(version, 10)))
}

// POST /api/itineraries
func (h *Handler) CreateItinerary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req models.ItineraryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	it, err := h.svc.CreateItinerary(ctx, utils.GetUserIDFromRequest(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, it.Version)
	utils.RespondWithJSON(w, http.StatusCreated, it)
}

// PUT /api/itineraries/:id
func (h *Handler) UpdateItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req models.ItineraryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel, ok := h.versioned(w, r)
	if !ok {
		return
	}
	defer cancel()

	it, err := h.svc.UpdateItinerary(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, it.Version)
	utils.RespondWithJSON(w, http.StatusOK, it)
}

// DELETE /api/itineraries/:id
func (h *Handler) DeleteItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel, ok := h.versioned(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.svc.DeleteItinerary(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/itineraries/:id/publish
func (h *Handler) PublishItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel, ok := h.versioned(w, r)
	if !ok {
		return
	}
	defer cancel()

	it, err := h.svc.PublishItinerary(ctx, utils.GetUserIDFromRequest(r), ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	setETag(w, it.Version)
	utils.RespondWithJSON(w, http.StatusOK, it)
}

type forkRequest struct {
	Name string `json:"name"`
}

// POST /api/itineraries/:id/fork
func (h *Handler) ForkItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.clone(w, r, ps, false)
}

// POST /api/itineraries/:id/template
func (h *Handler) ConvertToTemplate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.clone(w, r, ps, true)
}

func (h *Handler) clone(w http.ResponseWriter, r *http.Request, ps httprouter.Params, asTemplate bool) {
	var req forkRequest
	if err := utils.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	it, err := h.svc.CloneItinerary(ctx, ps.ByName("id"), planner.CloneOptions{
		UserID:     utils.GetUserIDFromRequest(r),
		Name:       req.Name,
		AsTemplate: asTemplate,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, it)
}
