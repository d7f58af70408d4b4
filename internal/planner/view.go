package planner

import (
	"fmt"

	"github.com/paulmach/orb"
)

const (
	LabelPickup  = "Pick up point"
	LabelDropoff = "Drop off point"

	PlaceholderPending     = "Fetching address…"
	PlaceholderUnavailable = "Address unavailable"
)

// ListViewModel is the rendered stop list.
type ListViewModel struct {
	Rows []Row `json:"rows"`
}

// Row is one line of the stop list.
type Row struct {
	Index   int    `json:"index"`
	StopID  StopID `json:"stopId"`
	Role    Role   `json:"role"`
	Label   string `json:"label"`
	Color   Color  `json:"color"`
	Icon    string `json:"icon"`
	Address string `json:"address"`
	Pending bool   `json:"pending"`
	Failed  bool   `json:"failed"`
	// RemoveIndex is the argument for the row's removal action.
	RemoveIndex int `json:"removeIndex"`
}

// RenderStopList derives the list view from the current stops. It has no
// side effects.
func (m *Manager) RenderStopList() ListViewModel {
	n := len(m.stops)
	rows := make([]Row, 0, n)
	for i, s := range m.stops {
		role := RoleAt(i, n)
		color := ColorFor(role)
		row := Row{
			Index:       i,
			StopID:      s.id,
			Role:        role,
			Label:       Label(i, n),
			Color:       color,
			Icon:        IconFor(color),
			RemoveIndex: i,
		}
		switch {
		case s.address != nil:
			row.Address = *s.address
		case s.failed:
			row.Address = PlaceholderUnavailable
			row.Pending = true
			row.Failed = true
		default:
			row.Address = PlaceholderPending
			row.Pending = true
		}
		rows = append(rows, row)
	}
	return ListViewModel{Rows: rows}
}

// Label returns the display label of the stop at index i of n. Middle stops
// are labelled with their raw list index.
func Label(i, n int) string {
	switch RoleAt(i, n) {
	case RoleFirst:
		return LabelPickup
	case RoleLast:
		return LabelDropoff
	default:
		return fmt.Sprintf("Stop %d", i)
	}
}

// IconFor returns the marker icon file for a color.
func IconFor(c Color) string {
	name := "orange"
	switch c {
	case ColorBlue:
		name = "blue"
	case ColorRed:
		name = "red"
	}
	return "mapbox-marker-icon-20px-" + name + ".png"
}

// TripStop is a stop as handed off to booking.
type TripStop struct {
	Position orb.Point `json:"position"`
	Address  string    `json:"address"`
	Role     Role      `json:"role"`
	Resolved bool      `json:"resolved"`
}

// Trip returns the stops in visiting order for handoff.
func (m *Manager) Trip() []TripStop {
	n := len(m.stops)
	out := make([]TripStop, n)
	for i, s := range m.stops {
		out[i] = TripStop{Position: s.position, Role: RoleAt(i, n)}
		if s.address != nil {
			out[i].Address = *s.address
			out[i].Resolved = true
		}
	}
	return out
}
