// Package planner applies item mutations to an itinerary. Each mutation runs
// as one unit of work: validate, write, stamp the itinerary version and
// refresh transport durations, or leave nothing behind.
package planner

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"itinera/config"
	"itinera/logging"
	"itinera/metrics"
	"itinera/models"
	"itinera/mq"
	"itinera/propagate"
	"itinera/store"
)

// TaskQueue receives deferred propagation work in async mode.
type TaskQueue interface {
	Enqueue(ctx context.Context, tasks ...mq.PropagationTask) error
}

type Deps struct {
	Items       store.ItemStore
	Itineraries store.ItineraryStore
	Places      store.PlaceLookup
	UnitOfWork  store.UnitOfWork
	Propagator  *propagate.Propagator
	// required when Mode is async
	Queue TaskQueue
}

type Options struct {
	// config.PropagationSync or config.PropagationAsync; empty means sync
	Mode   string
	Logger *zap.Logger
	Now    func() time.Time
	NewID  func() string
}

type Service struct {
	items       store.ItemStore
	itineraries store.ItineraryStore
	places      store.PlaceLookup
	uow         store.UnitOfWork
	propagator  *propagate.Propagator
	queue       TaskQueue
	async       bool

	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
	newID  func() string
}

func New(deps Deps, opts Options) *Service {
	s := &Service{
		items:       deps.Items,
		itineraries: deps.Itineraries,
		places:      deps.Places,
		uow:         deps.UnitOfWork,
		propagator:  deps.Propagator,
		queue:       deps.Queue,
		logger:      logging.OrNop(opts.Logger),
		tracer:      otel.Tracer("itinera/planner"),
		now:         opts.Now,
		newID:       opts.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if opts.Mode == config.PropagationAsync {
		if deps.Queue == nil {
			s.logger.Warn("async propagation requested without a queue, propagating synchronously")
		} else {
			s.async = true
		}
	}
	return s
}

type versionKey struct{}

// WithExpectedVersion makes the next mutation on ctx fail with a CONFLICT
// unless the itinerary is still at version v.
func WithExpectedVersion(ctx context.Context, v int64) context.Context {
	return context.WithValue(ctx, versionKey{}, v)
}

func expectedVersion(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(versionKey{}).(int64)
	return v, ok
}

type scopeKey struct{}

// WithinItinerary makes item-addressed mutations on ctx treat items of any
// other itinerary as not found.
func WithinItinerary(ctx context.Context, itineraryID string) context.Context {
	return context.WithValue(ctx, scopeKey{}, itineraryID)
}

func scopedItinerary(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(scopeKey{}).(string)
	return id, ok
}

// mutation is the working state of one unit of work.
type mutation struct {
	itinerary models.Itinerary
	items     []models.ItineraryItem
	// new items to propagate around, in insertion order
	around []string
	days   map[int]struct{}
}

func (m *mutation) touch(days ...int) {
	for _, d := range days {
		m.days[d] = struct{}{}
	}
}

func (m *mutation) sortedDays() []int {
	out := make([]int, 0, len(m.days))
	for d := range m.days {
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}

func (m *mutation) find(itemID string) (int, bool) {
	for i := range m.items {
		if m.items[i].ItemID == itemID {
			return i, true
		}
	}
	return -1, false
}

// merge copies propagated durations into the working item list.
func (m *mutation) merge(changed []models.ItineraryItem) {
	for _, c := range changed {
		if i, ok := m.find(c.ItemID); ok {
			m.items[i].TransportDuration = c.TransportDuration
		}
	}
}

// resolveFunc names the itinerary a mutation targets; it runs inside the
// unit of work so item lookups see the same snapshot.
type resolveFunc func(ctx context.Context) (string, error)

func byItinerary(id string) resolveFunc {
	return func(context.Context) (string, error) { return id, nil }
}

func (s *Service) run(ctx context.Context, op string, resolve resolveFunc, body func(ctx context.Context, m *mutation) error) (m *mutation, err error) {
	ctx, span := s.tracer.Start(ctx, "planner."+op)
	start := s.now()
	defer func() {
		metrics.MutationsTotal.WithLabelValues(op, outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = s.uow.Do(ctx, func(ctx context.Context) error {
		id, err := resolve(ctx)
		if err != nil {
			return err
		}
		span.SetAttributes(attribute.String("itinerary.id", id))

		it, err := s.itineraries.GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("itinerary %s not found", id)
		}
		if err != nil {
			return err
		}
		if want, ok := expectedVersion(ctx); ok && want != it.Version {
			return staleVersion(id, store.ErrVersionConflict)
		}

		items, err := s.items.GetAllByItinerary(ctx, id)
		if err != nil {
			return err
		}
		m = &mutation{itinerary: it, items: items, days: map[int]struct{}{}}

		if err := body(ctx, m); err != nil {
			return err
		}

		v, err := s.itineraries.BumpVersion(ctx, id, it.Version)
		if errors.Is(err, store.ErrVersionConflict) {
			return staleVersion(id, err)
		}
		if err != nil {
			return err
		}
		m.itinerary.Version = v

		if !s.async {
			return s.propagate(ctx, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logging.WithContext(ctx, s.logger).With(
		zap.String("op", op),
		zap.String("itineraryid", m.itinerary.ItineraryID),
		zap.Int64("version", m.itinerary.Version),
	)
	if s.async {
		s.enqueue(ctx, m, log)
	}
	log.Info("itinerary mutated", zap.Ints("days", m.sortedDays()), zap.Duration("took", s.now().Sub(start)))
	return m, nil
}

// propagate runs inside the unit of work. New items are propagated around
// one by one, in order; every other touched day gets a full pass.
func (s *Service) propagate(ctx context.Context, m *mutation) error {
	handled := map[int]bool{}
	for _, id := range m.around {
		changed, err := s.propagator.AroundItem(ctx, m.items, id)
		if err != nil {
			return err
		}
		m.merge(changed)
		if i, ok := m.find(id); ok {
			handled[m.items[i].DayNumber] = true
		}
	}
	for _, day := range m.sortedDays() {
		if handled[day] {
			continue
		}
		changed, err := s.propagator.AcrossDay(ctx, m.items, day)
		if err != nil {
			return err
		}
		m.merge(changed)
	}
	return nil
}

// enqueue hands the touched days to the worker. The mutation is already
// committed, so failures are only logged.
func (s *Service) enqueue(ctx context.Context, m *mutation, log *zap.Logger) {
	days := m.sortedDays()
	tasks := make([]mq.PropagationTask, 0, len(days))
	for _, d := range days {
		tasks = append(tasks, mq.PropagationTask{ItineraryID: m.itinerary.ItineraryID, DayNumber: d})
	}
	if err := s.queue.Enqueue(ctx, tasks...); err != nil {
		log.Error("could not enqueue propagation, durations stay stale until the next mutation", zap.Error(err))
	}
}
