package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itinera/models"
)

func item(id string, day, sortOrder int, start, end string) models.ItineraryItem {
	return models.ItineraryItem{ItemID: id, DayNumber: day, SortOrder: sortOrder, StartTime: start, EndTime: end}
}

func mustRange(t *testing.T, start, end string) (Clock, Clock) {
	t.Helper()
	s, e, err := ParseRange(start, end)
	require.NoError(t, err)
	return s, e
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, Clock(9*3600+30*60), c)
	assert.Equal(t, "09:30", c.String())

	c, err = ParseClock("23:59:30")
	require.NoError(t, err)
	assert.Equal(t, "23:59:30", c.String())

	for _, bad := range []string{"", "9", "24:00", "12:60", "ab:cd", "1:2:3:4", "123:00", "+9:-0", "-1:00", "09:+5", "9 :00"} {
		_, err := ParseClock(bad)
		assert.ErrorIs(t, err, ErrInvalidClock, bad)
	}
}

func TestParseRange_RequiresEndAfterStart(t *testing.T) {
	_, _, err := ParseRange("10:00", "10:00")
	assert.ErrorIs(t, err, ErrEmptyRange)

	_, _, err = ParseRange("11:00", "10:00")
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestSlotType(t *testing.T) {
	cases := []struct {
		start, end, want string
	}{
		{"09:00", "10:00", SlotMorning},
		{"12:00", "13:30", SlotAfternoon},
		{"18:00", "20:00", SlotEvening},
		{"22:00", "23:00", SlotNight},
		{"03:00", "04:00", SlotNight},
		{"08:00", "16:00", SlotFullDay},
	}
	for _, tc := range cases {
		s, e := mustRange(t, tc.start, tc.end)
		assert.Equal(t, tc.want, SlotType(s, e), "%s-%s", tc.start, tc.end)
	}
}

func TestFindOverlap_ReportsExistingRange(t *testing.T) {
	items := []models.ItineraryItem{item("a", 1, 1, "09:00", "10:00")}
	s, e := mustRange(t, "09:30", "10:30")

	c := FindOverlap(items, Candidate{DayNumber: 1, SortOrder: 2, Start: s, End: e})
	require.NotNil(t, c)
	assert.Equal(t, ConflictOverlap, c.Kind)
	assert.Equal(t, "a", c.Existing.ItemID)
	assert.Equal(t, "09:00", c.Existing.StartTime)
	assert.Equal(t, "10:00", c.Existing.EndTime)
	assert.Contains(t, c.Error(), "09:00-10:00")
}

func TestFindOverlap_TouchingRangesAndOtherDays(t *testing.T) {
	items := []models.ItineraryItem{
		item("a", 1, 1, "09:00", "10:00"),
		item("b", 2, 1, "10:00", "11:00"),
	}
	s, e := mustRange(t, "10:00", "11:00")
	assert.Nil(t, FindOverlap(items, Candidate{DayNumber: 1, SortOrder: 2, Start: s, End: e}))

	s, e = mustRange(t, "08:00", "09:00")
	assert.Nil(t, FindOverlap(items, Candidate{DayNumber: 1, SortOrder: 0, Start: s, End: e}))

	assert.Nil(t, FindOverlap(nil, Candidate{DayNumber: 1, Start: s, End: e}))
}

func TestFindOverlap_ExcludesSelf(t *testing.T) {
	items := []models.ItineraryItem{item("a", 1, 1, "09:00", "10:00")}
	s, e := mustRange(t, "09:15", "10:15")

	assert.Nil(t, FindOverlap(items, Candidate{DayNumber: 1, SortOrder: 1, Start: s, End: e, ExcludeID: "a"}))
	assert.NotNil(t, FindOverlap(items, Candidate{DayNumber: 1, SortOrder: 1, Start: s, End: e}))
}

func TestDuplicateSortOrder(t *testing.T) {
	items := []models.ItineraryItem{
		item("a", 1, 1, "09:00", "10:00"),
		item("b", 2, 1, "09:00", "10:00"),
	}

	assert.True(t, HasDuplicateSortOrderForInsert(items, 1, 1))
	assert.False(t, HasDuplicateSortOrderForInsert(items, 1, 2))
	assert.False(t, HasDuplicateSortOrderForInsert(items, 3, 1))
	assert.False(t, HasDuplicateSortOrderForUpdate(items, 1, 1, "a"))
	assert.True(t, HasDuplicateSortOrderForUpdate(items, 2, 1, "a"))

	c := FindSortOrderConflict(items, 2, 1, "a")
	require.NotNil(t, c)
	assert.Equal(t, "b", c.Existing.ItemID)
	assert.Contains(t, c.Error(), "sort order 1")
}

func TestFindBatchConflict_SameDaySortOrder(t *testing.T) {
	entries := []Slotted{
		{Ref: "request 1", DayNumber: 2, SortOrder: 1},
		{Ref: "request 2", DayNumber: 2, SortOrder: 1},
	}
	c := FindBatchConflict(entries)
	require.NotNil(t, c)
	assert.Equal(t, ConflictBatchSortOrder, c.Kind)
	assert.Equal(t, 2, c.DayNumber)
	assert.Equal(t, "request 1", c.Existing.Ref)
	assert.Equal(t, "request 2", c.Incoming.Ref)
}

func TestFindBatchConflict_Overlap(t *testing.T) {
	s1, e1 := mustRange(t, "09:00", "10:00")
	s2, e2 := mustRange(t, "09:30", "11:00")
	s3, e3 := mustRange(t, "09:30", "11:00")

	entries := []Slotted{
		{Ref: "r1", DayNumber: 1, SortOrder: 1, Start: s1, End: e1, HasTimes: true},
		{Ref: "r2", DayNumber: 2, SortOrder: 1, Start: s3, End: e3, HasTimes: true},
		{Ref: "r3", DayNumber: 1, SortOrder: 2, Start: s2, End: e2, HasTimes: true},
	}
	c := FindBatchConflict(entries)
	require.NotNil(t, c)
	assert.Equal(t, ConflictBatchOverlap, c.Kind)
	assert.Equal(t, "r1", c.Existing.Ref)
	assert.Equal(t, "r3", c.Incoming.Ref)

	assert.Nil(t, FindBatchConflict(entries[:2]))
}

func TestFindBatchConflict_SameSortOrderDifferentDays(t *testing.T) {
	entries := []Slotted{
		{Ref: "r1", DayNumber: 1, SortOrder: 1},
		{Ref: "r2", DayNumber: 2, SortOrder: 1},
	}
	assert.Nil(t, FindBatchConflict(entries))
}

func TestFindTimeOrderViolation(t *testing.T) {
	items := []models.ItineraryItem{
		item("a", 1, 1, "10:00", "11:00"),
		item("b", 1, 2, "09:00", "09:30"),
	}
	c := FindTimeOrderViolation(items)
	require.NotNil(t, c)
	assert.Equal(t, ConflictTimeOrder, c.Kind)
	assert.Equal(t, "a", c.Existing.ItemID)
	assert.Equal(t, "b", c.Incoming.ItemID)
	assert.False(t, IsTimeOrderConsistent(items))
}

func TestFindTimeOrderViolation_ConsistentAcrossDays(t *testing.T) {
	items := []models.ItineraryItem{
		item("c", 2, 1, "08:00", "09:00"),
		item("a", 1, 2, "12:00", "13:00"),
		item("b", 1, 1, "09:00", "10:00"),
		item("d", 2, 2, "08:00", "08:30"),
	}
	assert.True(t, IsTimeOrderConsistent(items))
	assert.True(t, IsTimeOrderConsistent(nil))
}
