package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"itinera/logging"
	"itinera/metrics"
	"itinera/models"
	"itinera/schedule"
	"itinera/store"
)

type CloneOptions struct {
	// owner of the copy
	UserID string
	// defaults to "<source name> (copy)"
	Name       string
	AsTemplate bool
}

// CloneItinerary copies an itinerary and all of its items under new ids.
// The copy starts as an unpublished draft at version 0.
func (s *Service) CloneItinerary(ctx context.Context, sourceID string, opts CloneOptions) (out models.Itinerary, err error) {
	ctx, span := s.tracer.Start(ctx, "planner.clone")
	span.SetAttributes(attribute.String("itinerary.id", sourceID), attribute.Bool("template", opts.AsTemplate))
	defer func() {
		metrics.MutationsTotal.WithLabelValues("clone", outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var days []int
	err = s.uow.Do(ctx, func(ctx context.Context) error {
		src, err := s.itineraries.GetByID(ctx, sourceID)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("itinerary %s not found", sourceID)
		}
		if err != nil {
			return err
		}
		items, err := s.items.GetAllByItinerary(ctx, sourceID)
		if err != nil {
			return err
		}

		now := s.now()
		forkedFrom := src.ItineraryID
		copyOf := models.Itinerary{
			ItineraryID: s.newID(),
			UserID:      opts.UserID,
			Name:        strings.TrimSpace(opts.Name),
			Description: src.Description,
			StartDate:   src.StartDate,
			EndDate:     src.EndDate,
			Status:      models.StatusDraft,
			IsTemplate:  opts.AsTemplate,
			ForkedFrom:  &forkedFrom,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if copyOf.Name == "" {
			copyOf.Name = src.Name + " (copy)"
		}
		if copyOf.UserID == "" {
			copyOf.UserID = src.UserID
		}
		if err := s.itineraries.Create(ctx, copyOf); err != nil {
			return fmt.Errorf("create itinerary copy: %w", err)
		}

		copied := make([]models.ItineraryItem, len(items))
		for i, it := range items {
			it.ItemID = s.newID()
			it.ItineraryID = copyOf.ItineraryID
			it.Place = nil
			it.CreatedAt, it.UpdatedAt = now, now
			copied[i] = it
		}
		if len(copied) > 0 {
			if err := s.items.CreateBatch(ctx, copied); err != nil {
				return fmt.Errorf("copy items: %w", err)
			}
		}

		days = schedule.Days(copied)
		if !s.async {
			for _, d := range days {
				if _, err := s.propagator.AcrossDay(ctx, copied, d); err != nil {
					return err
				}
			}
		}
		out = copyOf
		return nil
	})
	if err != nil {
		return models.Itinerary{}, err
	}

	log := logging.WithContext(ctx, s.logger).With(
		zap.String("op", "clone"),
		zap.String("source", sourceID),
		zap.String("itineraryid", out.ItineraryID),
	)
	if s.async && len(days) > 0 {
		m := &mutation{itinerary: out, days: map[int]struct{}{}}
		m.touch(days...)
		s.enqueue(ctx, m, log)
	}
	log.Info("itinerary cloned", zap.Bool("template", opts.AsTemplate))
	return out, nil
}
