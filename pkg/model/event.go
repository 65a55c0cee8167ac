package model

// StallType is one purchasable stall configuration within an event,
// priced separately for single-day and whole-week access
type StallType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DailyPrice  int64  `json:"daily_price"`
	WeeklyPrice int64  `json:"weekly_price"`
}

type Event struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Date        string      `json:"date"`
	Description string      `json:"description,omitempty"`
	Location    string      `json:"location"`
	StallTypes  []StallType `json:"stall_types"`
}

// StallType returns the stall configuration with the given id, if present
func (e *Event) StallType(id string) (StallType, bool) {
	for _, st := range e.StallTypes {
		if st.ID == id {
			return st, true
		}
	}
	return StallType{}, false
}

// PriceFor resolves the price of a stall type for the given duration.
// Returns 0 when the stall type does not exist on this event.
func (e *Event) PriceFor(stallTypeID, duration string) int64 {
	st, ok := e.StallType(stallTypeID)
	if !ok {
		return 0
	}
	if duration == DurationWeek {
		return st.WeeklyPrice
	}
	return st.DailyPrice
}
