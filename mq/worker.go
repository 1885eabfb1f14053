package mq

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"itinera/logging"
	"itinera/metrics"
)

// Handler applies one task. A non-nil error leaves the entry pending so it
// is retried after WorkerConfig.MinIdle.
type Handler func(ctx context.Context, task PropagationTask) error

type WorkerConfig struct {
	Consumer string
	// Block is how long one read waits for new entries; negative means do not block.
	Block   time.Duration
	Count   int64
	MinIdle time.Duration
	// first pause after a Redis error; doubles per consecutive failure up to MaxBackoff
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func DefaultWorkerConfig() WorkerConfig {
	host, _ := os.Hostname()
	return WorkerConfig{
		Consumer:   fmt.Sprintf("%s-%d", host, os.Getpid()),
		Block:      2 * time.Second,
		Count:      16,
		MinIdle:    30 * time.Second,
		Backoff:    time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

type Worker struct {
	rdb     redis.Cmdable
	cfg     WorkerConfig
	handler Handler
	logger  *zap.Logger
}

func NewWorker(rdb redis.Cmdable, cfg WorkerConfig, handler Handler, logger *zap.Logger) *Worker {
	def := DefaultWorkerConfig()
	if cfg.Consumer == "" {
		cfg.Consumer = def.Consumer
	}
	if cfg.Block == 0 {
		cfg.Block = def.Block
	}
	if cfg.Count <= 0 {
		cfg.Count = def.Count
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = def.MinIdle
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.Backoff)
	}
	return &Worker{
		rdb:     rdb,
		cfg:     cfg,
		handler: handler,
		logger:  logging.OrNop(logger).With(zap.String("consumer", cfg.Consumer)),
	}
}

// EnsureGroup creates the stream and consumer group if they are missing.
func (w *Worker) EnsureGroup(ctx context.Context) error {
	err := w.rdb.XGroupCreateMkStream(ctx, Stream, Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.EnsureGroup(ctx); err != nil {
		return err
	}
	w.logger.Info("propagation worker started")
	defer w.logger.Info("propagation worker stopped")

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := w.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			delay := retryDelay(w.cfg.Backoff, w.cfg.MaxBackoff, failures, rand.Int64N)
			failures++
			w.logger.Warn("propagation worker read failed",
				zap.Error(err), zap.Int("failures", failures), zap.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		failures = 0
	}
}

// retryDelay doubles base once per prior failure, caps it at limit and picks a
// point in the upper half of the result.
func retryDelay(base, limit time.Duration, failures int, jitter func(n int64) int64) time.Duration {
	d := base
	for i := 0; i < failures && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(jitter(int64(half)))
}

// ProcessOnce reclaims stale pending entries, reads new ones, and handles
// both. It returns how many entries were acknowledged.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	reclaimed, _, err := w.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   Stream,
		Group:    Group,
		Consumer: w.cfg.Consumer,
		MinIdle:  w.cfg.MinIdle,
		Start:    "0-0",
		Count:    w.cfg.Count,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("reclaim pending: %w", err)
	}
	if len(reclaimed) > 0 {
		metrics.QueueTasksTotal.WithLabelValues("reclaimed").Add(float64(len(reclaimed)))
	}
	acked := w.handle(ctx, reclaimed)

	streams, err := w.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    Group,
		Consumer: w.cfg.Consumer,
		Streams:  []string{Stream, ">"},
		Count:    w.cfg.Count,
		Block:    w.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return acked, nil
	}
	if err != nil {
		return acked, fmt.Errorf("read group: %w", err)
	}
	for _, s := range streams {
		acked += w.handle(ctx, s.Messages)
	}
	return acked, nil
}

func (w *Worker) handle(ctx context.Context, msgs []redis.XMessage) int {
	acked := 0
	for _, msg := range msgs {
		log := w.logger.With(zap.String("entry", msg.ID))

		task, err := decodeTask(msg)
		if err != nil {
			// never going to succeed; drop it
			log.Error("dropping malformed propagation task", zap.Error(err))
			metrics.QueueTasksTotal.WithLabelValues("dropped").Inc()
			acked += w.ack(ctx, msg.ID, log)
			continue
		}

		if err := w.handler(ctx, task); err != nil {
			log.Warn("propagation task failed, will retry", zap.Stringer("task", task), zap.Error(err))
			metrics.QueueTasksTotal.WithLabelValues("retry").Inc()
			continue
		}
		metrics.QueueTasksTotal.WithLabelValues("done").Inc()
		acked += w.ack(ctx, msg.ID, log)
	}
	return acked
}

func (w *Worker) ack(ctx context.Context, id string, log *zap.Logger) int {
	if err := w.rdb.XAck(ctx, Stream, Group, id).Err(); err != nil {
		log.Warn("ack propagation task", zap.Error(err))
		return 0
	}
	return 1
}
