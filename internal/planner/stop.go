// Package planner keeps the ordered stop list of a planned trip consistent
// with its map markers, popups and route overlay.
//
// A Manager is not safe for concurrent use. It expects to be driven from a
// single loop that also runs address completions and cooldown timers.
package planner

import (
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// StopID identifies a stop for as long as it stays in the list.
type StopID = uuid.UUID

// Role is the position-derived classification of a stop.
type Role string

const (
	RoleFirst  Role = "first"
	RoleMiddle Role = "middle"
	RoleLast   Role = "last"
)

// Color is a CSS color used for a stop's marker.
type Color string

const (
	ColorBlue   Color = "#0000FF"
	ColorRed    Color = "#DC143C"
	ColorOrange Color = "#FFA500"
)

// RoleAt returns the role of the stop at index i in a list of n stops.
// A sole stop is the first stop.
func RoleAt(i, n int) Role {
	switch {
	case i == 0:
		return RoleFirst
	case i == n-1:
		return RoleLast
	default:
		return RoleMiddle
	}
}

// ColorFor returns the marker color for a role.
func ColorFor(r Role) Color {
	switch r {
	case RoleFirst:
		return ColorBlue
	case RoleLast:
		return ColorRed
	default:
		return ColorOrange
	}
}

// stop is one entry of the stop list.
type stop struct {
	id         StopID
	position   orb.Point
	address    *string
	failed     bool
	generation uint64
	color      Color
	marker     MarkerHandle
}

func newStop(pos orb.Point) *stop {
	return &stop{id: uuid.New(), position: pos}
}

// StopSnapshot is a read-only copy of a stop's state.
type StopSnapshot struct {
	ID         StopID       `json:"id"`
	Index      int          `json:"index"`
	Role       Role         `json:"role"`
	Color      Color        `json:"color"`
	Position   orb.Point    `json:"position"`
	Address    string       `json:"address,omitempty"`
	Resolved   bool         `json:"resolved"`
	Generation uint64       `json:"generation"`
	Marker     MarkerHandle `json:"marker"`
}

func (s *stop) snapshot(i, n int) StopSnapshot {
	snap := StopSnapshot{
		ID:         s.id,
		Index:      i,
		Role:       RoleAt(i, n),
		Color:      s.color,
		Position:   s.position,
		Generation: s.generation,
		Marker:     s.marker,
	}
	if s.address != nil {
		snap.Address = *s.address
		snap.Resolved = true
	}
	return snap
}

// ValidPosition reports whether p is a finite longitude/latitude pair.
func ValidPosition(p orb.Point) bool {
	lng, lat := p.Lon(), p.Lat()
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}
