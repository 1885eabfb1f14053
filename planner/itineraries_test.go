package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinera/config"
	"itinera/models"
	"itinera/store"
)

func strp(s string) *string { return &s }

func TestCreateItinerary(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)

	it, err := f.svc.CreateItinerary(f.ctx, "u2", models.ItineraryRequest{
		Name:      strp("  Porto  "),
		StartDate: strp("2026-06-01"),
		EndDate:   strp("2026-06-03"),
	})
	require.NoError(t, err)
	assert.Equal(t, "gen1", it.ItineraryID)
	assert.Equal(t, "Porto", it.Name)
	assert.Equal(t, "u2", it.UserID)
	assert.Equal(t, models.StatusDraft, it.Status)
	assert.Zero(t, it.Version)

	got, err := f.svc.GetItinerary(f.ctx, "gen1")
	require.NoError(t, err)
	assert.Equal(t, "Porto", got.Name)
}

func TestCreateItinerary_Validation(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)

	cases := map[string]models.ItineraryRequest{
		"missing name": {},
		"bad status":   {Name: strp("x"), Status: strp("Done")},
		"bad date":     {Name: strp("x"), StartDate: strp("06/01/2026")},
		"end first":    {Name: strp("x"), StartDate: strp("2026-06-03"), EndDate: strp("2026-06-01")},
	}
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateItinerary(f.ctx, "u1", r)
			assert.Equal(t, CodeValidation, CodeOf(err))
		})
	}
}

func TestUpdateItinerary(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)

	it, err := f.svc.UpdateItinerary(f.ctx, "u1", itin, models.ItineraryRequest{
		Description: strp("long weekend"),
		Status:      strp(models.StatusConfirmed),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", it.Name)
	assert.Equal(t, "long weekend", it.Description)
	assert.Equal(t, models.StatusConfirmed, it.Status)

	_, err = f.svc.UpdateItinerary(f.ctx, "intruder", itin, models.ItineraryRequest{Name: strp("mine")})
	assert.Equal(t, CodeForbidden, CodeOf(err))

	_, err = f.svc.UpdateItinerary(f.ctx, "u1", "nope", models.ItineraryRequest{})
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestItineraryChanges_BumpVersion(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)

	it, err := f.svc.UpdateItinerary(WithExpectedVersion(f.ctx, 0), "u1", itin, models.ItineraryRequest{Description: strp("x")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), it.Version)
	assert.Equal(t, int64(1), f.version(t))

	_, err = f.svc.UpdateItinerary(WithExpectedVersion(f.ctx, 0), "u1", itin, models.ItineraryRequest{Description: strp("y")})
	assert.Equal(t, CodeConflict, CodeOf(err))
	got, err := f.svc.GetItinerary(f.ctx, itin)
	require.NoError(t, err)
	assert.Equal(t, "x", got.Description)

	it, err = f.svc.PublishItinerary(f.ctx, "u1", itin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), it.Version)

	// item writers holding the old version are turned away
	_, err = f.svc.AddSingle(WithExpectedVersion(f.ctx, 1), itin, req("p1", 1, 1, "09:00", "10:00"))
	assert.Equal(t, CodeConflict, CodeOf(err))

	assert.Equal(t, CodeConflict, CodeOf(f.svc.DeleteItinerary(WithExpectedVersion(f.ctx, 1), "u1", itin)))
	require.NoError(t, f.svc.DeleteItinerary(WithExpectedVersion(f.ctx, 2), "u1", itin))
}

func TestItemDays_WithinDateRange(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)
	_, err := f.svc.UpdateItinerary(f.ctx, "u1", itin, models.ItineraryRequest{
		StartDate: strp("2026-06-01"),
		EndDate:   strp("2026-06-03"),
	})
	require.NoError(t, err)

	a := f.add(t, req("p1", 3, 1, "09:00", "10:00"))

	_, err = f.svc.AddSingle(f.ctx, itin, req("p2", 4, 1, "09:00", "10:00"))
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = f.svc.AddBatch(f.ctx, itin, []models.CreateItemRequest{
		req("p2", 1, 1, "09:00", "10:00"),
		req("p3", 5, 1, "09:00", "10:00"),
	})
	assert.Equal(t, CodeValidation, CodeOf(err))

	day := 4
	_, err = f.svc.Update(f.ctx, a.ItemID, models.UpdateItemRequest{DayNumber: &day})
	assert.Equal(t, CodeValidation, CodeOf(err))

	_, err = f.svc.Reorder(f.ctx, itin, []models.ReorderEntry{{ItemID: a.ItemID, DayNumber: 9, SortOrder: 1}})
	assert.Equal(t, CodeValidation, CodeOf(err))

	assert.Len(t, f.stored(t), 1)
	assert.Equal(t, 3, f.stored(t)[0].DayNumber)

	// narrowing the range past a scheduled day is refused
	_, err = f.svc.UpdateItinerary(f.ctx, "u1", itin, models.ItineraryRequest{EndDate: strp("2026-06-02")})
	assert.Equal(t, CodeValidation, CodeOf(err))

	// without dates any positive day is accepted
	_, err = f.svc.UpdateItinerary(f.ctx, "u1", itin, models.ItineraryRequest{StartDate: strp(""), EndDate: strp("")})
	require.NoError(t, err)
	_, err = f.svc.AddSingle(f.ctx, itin, req("p2", 10, 1, "09:00", "10:00"))
	require.NoError(t, err)
}

func TestPublishItinerary(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)

	it, err := f.svc.PublishItinerary(f.ctx, "u1", itin)
	require.NoError(t, err)
	assert.True(t, it.Published)

	published := true
	list, err := f.svc.ListItineraries(f.ctx, store.ListFilter{Published: &published})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, itin, list[0].ItineraryID)
}

func TestDeleteItinerary_RemovesItems(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)
	f.add(t, req("p1", 1, 1, "09:00", "10:00"))

	assert.Equal(t, CodeForbidden, CodeOf(f.svc.DeleteItinerary(f.ctx, "intruder", itin)))
	assert.Len(t, f.stored(t), 1)

	require.NoError(t, f.svc.DeleteItinerary(f.ctx, "u1", itin))
	assert.Empty(t, f.stored(t))

	_, err := f.svc.GetItinerary(f.ctx, itin)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	_, err = f.svc.AddSingle(f.ctx, itin, req("p2", 1, 2, "11:00", "12:00"))
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestWithinItinerary_HidesForeignItems(t *testing.T) {
	f := newFixture(t, config.PropagationSync, nil)
	a := f.add(t, req("p1", 1, 1, "09:00", "10:00"))

	ctx := WithinItinerary(f.ctx, "other")
	assert.Equal(t, CodeNotFound, CodeOf(f.svc.Delete(ctx, a.ItemID)))
	assert.Len(t, f.stored(t), 1)

	require.NoError(t, f.svc.Delete(WithinItinerary(f.ctx, itin), a.ItemID))
	assert.Empty(t, f.stored(t))
}
