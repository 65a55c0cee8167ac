package events

import (
	"sort"

	"unimarket/pkg/model"
)

// Source resolves events offered on the marketplace. The bookings intake
// validates event and stall selections against it.
type Source interface {
	Event(id string) (model.Event, bool)
	List() []model.Event
}

// Catalog is a static in-memory event source. Event rosters change through
// deployments, not at runtime, so no store is involved.
type Catalog struct {
	events map[string]model.Event
}

func NewCatalog() *Catalog {
	return newCatalogFrom(seedEvents)
}

func newCatalogFrom(seed []model.Event) *Catalog {
	events := make(map[string]model.Event, len(seed))
	for _, ev := range seed {
		events[ev.ID] = ev
	}
	return &Catalog{events: events}
}

// Event returns the event with the given id, if present
func (c *Catalog) Event(id string) (model.Event, bool) {
	ev, ok := c.events[id]
	return ev, ok
}

// List returns all events ordered by id
func (c *Catalog) List() []model.Event {
	out := make([]model.Event, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var seedEvents = []model.Event{
	{
		ID:          "1",
		Title:       "MUBAS Costume Party",
		Date:        "Coming this Weekend",
		Description: "The biggest costume event of the semester. Bring your best outfit!",
		Location:    "MUBAS Sports Complex",
		StallTypes: []model.StallType{
			{ID: "drinks", Name: "Drinks & Beverages", DailyPrice: 5000, WeeklyPrice: 20000},
			{ID: "food", Name: "Food & Snacks", DailyPrice: 6000, WeeklyPrice: 25000},
			{ID: "cocktails", Name: "Cocktails & Mixes", DailyPrice: 8000, WeeklyPrice: 35000},
		},
	},
	{
		ID:          "2",
		Title:       "Open Air Festival",
		Date:        "Next Weekend",
		Description: "Live music, fresh air, and good vibes under the stars.",
		Location:    "Open Air Grounds",
		StallTypes: []model.StallType{
			{ID: "drinks", Name: "Drinks & Beverages", DailyPrice: 5000, WeeklyPrice: 20000},
			{ID: "food", Name: "Food & Snacks", DailyPrice: 7000, WeeklyPrice: 30000},
		},
	},
	{
		ID:          "3",
		Title:       "Talent Show Showcase",
		Date:        "End of Month",
		Description: "Witness the amazing talents of MUBAS students in music, dance, and more.",
		Location:    "Great Hall",
		StallTypes: []model.StallType{
			{ID: "snacks", Name: "Light Snacks & Drinks", DailyPrice: 4000, WeeklyPrice: 15000},
		},
	},
}
