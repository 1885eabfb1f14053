package schedule

const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
	SlotNight     = "night"
	SlotFullDay   = "full_day"
)

const fullDaySpan = Clock(6 * 3600)

var (
	morningStart   = Clock(5 * 3600)
	afternoonStart = Clock(12 * 3600)
	eveningStart   = Clock(17 * 3600)
	nightStart     = Clock(21 * 3600)
)

// SlotType labels an item by when it starts. Anything spanning six hours
// or more is a full-day block regardless of start.
func SlotType(start, end Clock) string {
	if end-start >= fullDaySpan {
		return SlotFullDay
	}
	switch {
	case start >= morningStart && start < afternoonStart:
		return SlotMorning
	case start >= afternoonStart && start < eveningStart:
		return SlotAfternoon
	case start >= eveningStart && start < nightStart:
		return SlotEvening
	default:
		return SlotNight
	}
}
