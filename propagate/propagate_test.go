package propagate

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinera/models"
	"itinera/schedule"
	"itinera/store"
	"itinera/transport"
)

// fakeProvider returns from.lat*100 + to.lat, so p1->p2 is 102.
func fakeProvider(fail map[string]bool) transport.Provider {
	return transport.ProviderFunc(func(_ context.Context, from, to models.Coordinates, _ string) (int, error) {
		key := fmt.Sprintf("%.0f->%.0f", from.Latitude, to.Latitude)
		if fail[key] {
			return 0, errors.New("routing backend down")
		}
		return int(from.Latitude*100 + to.Latitude), nil
	})
}

func newMemory(t *testing.T, items ...models.ItineraryItem) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for i := 1; i <= 5; i++ {
		m.PutPlace(models.Place{
			PlaceID:  fmt.Sprintf("p%d", i),
			Location: models.Coordinates{Latitude: float64(i), Longitude: 1},
		})
	}
	require.NoError(t, m.Items().CreateBatch(context.Background(), items))
	return m
}

func item(id, place string, day, sort, dur int) models.ItineraryItem {
	return models.ItineraryItem{
		ItemID: id, ItineraryID: "it1", PlaceID: place,
		DayNumber: day, SortOrder: sort, TransportDuration: dur,
	}
}

func durations(t *testing.T, m *store.Memory) map[string]int {
	t.Helper()
	items, err := m.Items().GetAllByItinerary(context.Background(), "it1")
	require.NoError(t, err)
	out := map[string]int{}
	for _, it := range items {
		out[it.ItemID] = it.TransportDuration
	}
	return out
}

func all(t *testing.T, m *store.Memory) []models.ItineraryItem {
	t.Helper()
	items, err := m.Items().GetAllByItinerary(context.Background(), "it1")
	require.NoError(t, err)
	return items
}

func TestAcrossDay_ForwardPass(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 999),
		item("b", "p2", 1, 2, 0),
		item("c", "p3", 1, 3, 0),
		item("d", "p4", 2, 1, 0),
	)
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)

	changed, err := p.AcrossDay(context.Background(), all(t, m), 1)
	require.NoError(t, err)
	assert.Len(t, changed, 3)
	assert.Equal(t, map[string]int{"a": 0, "b": 102, "c": 203, "d": 0}, durations(t, m))
}

func TestAcrossDay_Idempotent(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "p2", 1, 2, 0),
		item("c", "p3", 1, 3, 0),
	)
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)
	ctx := context.Background()

	_, err := p.AcrossDay(ctx, all(t, m), 1)
	require.NoError(t, err)
	first := durations(t, m)

	changed, err := p.AcrossDay(ctx, all(t, m), 1)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, first, durations(t, m))
}

func TestAcrossDay_AfterDeleteFirstItemIsZero(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "p2", 1, 2, 102),
	)
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)
	ctx := context.Background()

	require.NoError(t, m.Items().Delete(ctx, "a"))
	require.NoError(t, p.RefreshDay(ctx, "it1", 1))
	assert.Equal(t, map[string]int{"b": 0}, durations(t, m))
}

func TestAcrossDay_FailureIsolatedPerPair(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "p2", 1, 2, 55),
		item("c", "p3", 1, 3, 0),
	)
	p := New(m.Items(), m.Places(), fakeProvider(map[string]bool{"1->2": true}), schedule.ScopeDay, nil)

	_, err := p.AcrossDay(context.Background(), all(t, m), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0, "b": 0, "c": 203}, durations(t, m))
}

func TestAcrossDay_UnknownPlaceIsZero(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "nowhere", 1, 2, 40),
	)
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)

	_, err := p.AcrossDay(context.Background(), all(t, m), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, durations(t, m)["b"])
}

func TestAcrossDay_ItineraryScopeRefreshesNextDayOpener(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "p2", 1, 2, 0),
		item("d", "p4", 3, 1, 0),
	)
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeItinerary, nil)

	_, err := p.AcrossDay(context.Background(), all(t, m), 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0, "b": 102, "d": 204}, durations(t, m))
}

func TestAroundItem_Scopes(t *testing.T) {
	seedItems := []models.ItineraryItem{
		item("a", "p1", 1, 1, 0),
		item("b", "p2", 1, 2, 0),
		item("c", "p3", 2, 1, 77),
		item("d", "p4", 2, 2, 0),
	}

	t.Run("day", func(t *testing.T) {
		m := newMemory(t, seedItems...)
		p := New(m.Items(), m.Places(), fakeProvider(nil), "", nil)
		assert.Equal(t, schedule.ScopeDay, p.Scope())

		_, err := p.AroundItem(context.Background(), all(t, m), "c")
		require.NoError(t, err)
		got := durations(t, m)
		assert.Equal(t, 0, got["c"])
		assert.Equal(t, 304, got["d"])
		assert.Equal(t, 0, got["b"], "previous day untouched")
	})

	t.Run("itinerary", func(t *testing.T) {
		m := newMemory(t, seedItems...)
		p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeItinerary, nil)

		_, err := p.AroundItem(context.Background(), all(t, m), "c")
		require.NoError(t, err)
		got := durations(t, m)
		assert.Equal(t, 203, got["c"])
		assert.Equal(t, 304, got["d"])
	})

	t.Run("unknown item", func(t *testing.T) {
		m := newMemory(t, seedItems...)
		p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)
		changed, err := p.AroundItem(context.Background(), all(t, m), "zz")
		require.NoError(t, err)
		assert.Nil(t, changed)
	})
}

func TestAroundItem_UsesAttachedPlaces(t *testing.T) {
	m := newMemory(t)
	m.FailOn("places.GetPlaces", errors.New("should not be called"))
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)

	a := item("a", "x", 1, 1, 0)
	a.Place = &models.Place{PlaceID: "x", Location: models.Coordinates{Latitude: 7, Longitude: 1}}
	b := item("b", "y", 1, 2, 0)
	b.Place = &models.Place{PlaceID: "y", Location: models.Coordinates{Latitude: 8, Longitude: 1}}
	require.NoError(t, m.Items().CreateBatch(context.Background(), []models.ItineraryItem{a, b}))

	changed, err := p.AroundItem(context.Background(), []models.ItineraryItem{a, b}, "b")
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, 708, changed[0].TransportDuration)
}

func TestPropagate_PersistFailureIsReturned(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "p2", 1, 2, 0),
	)
	m.FailOn("items.SetTransportDurations", errors.New("disk full"))
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)

	_, err := p.AcrossDay(context.Background(), all(t, m), 1)
	assert.Error(t, err)
}

func TestPropagate_SamePlaceIsZero(t *testing.T) {
	m := newMemory(t,
		item("a", "p1", 1, 1, 0),
		item("b", "p1", 1, 2, 30),
	)
	p := New(m.Items(), m.Places(), fakeProvider(nil), schedule.ScopeDay, nil)

	_, err := p.AcrossDay(context.Background(), all(t, m), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, durations(t, m)["b"])
}
