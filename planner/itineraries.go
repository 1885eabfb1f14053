package planner

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"itinera/logging"
	"itinera/metrics"
	"itinera/models"
	"itinera/store"
)

const dateLayout = "2006-01-02"

func validStatus(s string) bool {
	return s == models.StatusDraft || s == models.StatusConfirmed
}

// dayCount is the number of days the itinerary's date range spans, or 0 when
// either date is unset.
func dayCount(it models.Itinerary) int {
	if it.StartDate == "" || it.EndDate == "" {
		return 0
	}
	start, err := time.Parse(dateLayout, it.StartDate)
	if err != nil {
		return 0
	}
	end, err := time.Parse(dateLayout, it.EndDate)
	if err != nil || end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// applyDetails copies the non-nil fields of req onto it and checks the result.
func applyDetails(it *models.Itinerary, req models.ItineraryRequest) error {
	if req.Name != nil {
		it.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		it.Description = *req.Description
	}
	if req.StartDate != nil {
		it.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		it.EndDate = *req.EndDate
	}
	if req.Status != nil {
		it.Status = *req.Status
	}

	if it.Name == "" {
		return invalid("name is required")
	}
	if !validStatus(it.Status) {
		return invalid("status must be %q or %q", models.StatusDraft, models.StatusConfirmed)
	}
	var start, end time.Time
	var err error
	if it.StartDate != "" {
		if start, err = time.Parse(dateLayout, it.StartDate); err != nil {
			return invalid("start_date %q is not YYYY-MM-DD", it.StartDate)
		}
	}
	if it.EndDate != "" {
		if end, err = time.Parse(dateLayout, it.EndDate); err != nil {
			return invalid("end_date %q is not YYYY-MM-DD", it.EndDate)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return invalid("end_date %s is before start_date %s", it.EndDate, it.StartDate)
	}
	return nil
}

// CreateItinerary stores a new, empty itinerary owned by userID.
func (s *Service) CreateItinerary(ctx context.Context, userID string, req models.ItineraryRequest) (out models.Itinerary, err error) {
	defer func() { metrics.MutationsTotal.WithLabelValues("itinerary.create", outcome(err)).Inc() }()

	now := s.now()
	it := models.Itinerary{
		ItineraryID: s.newID(),
		UserID:      userID,
		Status:      models.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := applyDetails(&it, req); err != nil {
		return models.Itinerary{}, err
	}
	if err := s.itineraries.Create(ctx, it); err != nil {
		return models.Itinerary{}, err
	}
	logging.WithContext(ctx, s.logger).Info("itinerary created",
		zap.String("itineraryid", it.ItineraryID), zap.String("user_id", userID))
	return it, nil
}

func (s *Service) GetItinerary(ctx context.Context, id string) (models.Itinerary, error) {
	it, err := s.itineraries.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Itinerary{}, notFound("itinerary %s not found", id)
	}
	return it, err
}

func (s *Service) ListItineraries(ctx context.Context, f store.ListFilter) ([]models.Itinerary, error) {
	return s.itineraries.List(ctx, f)
}

// owned loads an itinerary inside a unit of work, checks its owner and the
// version expected by ctx.
func (s *Service) owned(ctx context.Context, userID, id string) (models.Itinerary, error) {
	it, err := s.GetItinerary(ctx, id)
	if err != nil {
		return models.Itinerary{}, err
	}
	if it.UserID != userID {
		return models.Itinerary{}, forbidden("itinerary %s belongs to another user", id)
	}
	if want, ok := expectedVersion(ctx); ok && want != it.Version {
		return models.Itinerary{}, staleVersion(id, store.ErrVersionConflict)
	}
	return it, nil
}

// bump advances the version of it, failing if another request got there first.
func (s *Service) bump(ctx context.Context, it *models.Itinerary) error {
	v, err := s.itineraries.BumpVersion(ctx, it.ItineraryID, it.Version)
	if errors.Is(err, store.ErrVersionConflict) {
		return staleVersion(it.ItineraryID, err)
	}
	if err != nil {
		return err
	}
	it.Version = v
	return nil
}

// UpdateItinerary changes descriptive fields. Narrowing the date range below
// the last scheduled day is rejected.
func (s *Service) UpdateItinerary(ctx context.Context, userID, id string, req models.ItineraryRequest) (out models.Itinerary, err error) {
	defer func() { metrics.MutationsTotal.WithLabelValues("itinerary.update", outcome(err)).Inc() }()

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		it, err := s.owned(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := applyDetails(&it, req); err != nil {
			return err
		}
		if n := dayCount(it); n > 0 {
			items, err := s.items.GetAllByItinerary(ctx, id)
			if err != nil {
				return err
			}
			for _, item := range items {
				if item.DayNumber > n {
					return invalid("date range covers %d days but item %s is on day %d", n, item.ItemID, item.DayNumber)
				}
			}
		}
		it.UpdatedAt = s.now()
		if err := s.itineraries.Update(ctx, it); err != nil {
			return err
		}
		if err := s.bump(ctx, &it); err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

// PublishItinerary marks an itinerary as visible to other users.
func (s *Service) PublishItinerary(ctx context.Context, userID, id string) (out models.Itinerary, err error) {
	defer func() { metrics.MutationsTotal.WithLabelValues("itinerary.publish", outcome(err)).Inc() }()

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		it, err := s.owned(ctx, userID, id)
		if err != nil {
			return err
		}
		it.Published = true
		it.UpdatedAt = s.now()
		if err := s.itineraries.Update(ctx, it); err != nil {
			return err
		}
		if err := s.bump(ctx, &it); err != nil {
			return err
		}
		out = it
		return nil
	})
	return out, err
}

// DeleteItinerary soft-deletes the itinerary and removes its items, so queued
// propagation for it finds nothing to do.
func (s *Service) DeleteItinerary(ctx context.Context, userID, id string) (err error) {
	defer func() { metrics.MutationsTotal.WithLabelValues("itinerary.delete", outcome(err)).Inc() }()

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		it, err := s.owned(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.bump(ctx, &it); err != nil {
			return err
		}
		if err := s.itineraries.SoftDelete(ctx, id); err != nil {
			return err
		}
		return s.items.DeleteByItinerary(ctx, id)
	})
	if err == nil {
		logging.WithContext(ctx, s.logger).Info("itinerary deleted", zap.String("itineraryid", id))
	}
	return err
}
