// Package mq carries deferred propagation work over a Redis stream, so a
// mutation can commit before its transport durations are recomputed.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"itinera/logging"
	"itinera/metrics"
)

const (
	Stream = "itinerary:propagation"
	Group  = "propagators"

	payloadField  = "task"
	defaultMaxLen = 10000
)

// PropagationTask asks for one itinerary day to be re-propagated.
type PropagationTask struct {
	ItineraryID string `json:"itineraryid"`
	DayNumber   int    `json:"day_number"`
}

func (t PropagationTask) String() string {
	return fmt.Sprintf("%s/day-%d", t.ItineraryID, t.DayNumber)
}

type Queue struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
	logger *zap.Logger
}

func NewQueue(rdb redis.Cmdable, logger *zap.Logger) *Queue {
	return &Queue{rdb: rdb, stream: Stream, maxLen: defaultMaxLen, logger: logging.OrNop(logger)}
}

// Enqueue appends the tasks to the stream. All tasks are attempted; the
// first error is returned.
func (q *Queue) Enqueue(ctx context.Context, tasks ...PropagationTask) error {
	var firstErr error
	for _, task := range tasks {
		data, err := json.Marshal(task)
		if err == nil {
			err = q.rdb.XAdd(ctx, &redis.XAddArgs{
				Stream: q.stream,
				MaxLen: q.maxLen,
				Approx: true,
				Values: map[string]interface{}{payloadField: data},
			}).Err()
		}
		if err != nil {
			metrics.QueueTasksTotal.WithLabelValues("enqueue_failed").Inc()
			q.logger.Error("enqueue propagation task", zap.Stringer("task", task), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		metrics.QueueTasksTotal.WithLabelValues("enqueued").Inc()
		q.logger.Debug("propagation task enqueued", zap.Stringer("task", task))
	}
	return firstErr
}

func decodeTask(msg redis.XMessage) (PropagationTask, error) {
	raw, ok := msg.Values[payloadField]
	if !ok {
		return PropagationTask{}, errors.New("message has no task field")
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return PropagationTask{}, fmt.Errorf("unexpected task payload type %T", raw)
	}

	var task PropagationTask
	if err := json.Unmarshal(data, &task); err != nil {
		return PropagationTask{}, err
	}
	if task.ItineraryID == "" || task.DayNumber < 1 {
		return PropagationTask{}, fmt.Errorf("invalid task %+v", task)
	}
	return task, nil
}
