package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"itinera/config"
)

func TestMutationSpans(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(f.ctx) })
	f.svc.tracer = tp.Tracer("test")

	f.add(t, req("p1", 1, 1, "09:00", "11:00"))
	_, err := f.svc.AddSingle(f.ctx, itin, req("p2", 1, 2, "10:00", "12:00"))
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, "planner.add_single", s.Name())
		assert.Contains(t, s.Attributes(), attribute.String("itinerary.id", itin))
	}
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
