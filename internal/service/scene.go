package service

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trip/internal/planner"
)

// Map defaults.
var (
	DefaultCenter = orb.Point{144.9648731, -37.8182711}
	DefaultZoom   = 10.0
)

// Route overlay style.
const (
	RouteColor = "#888"
	RouteWidth = 6
)

// SceneMarker is one marker on the map.
type SceneMarker struct {
	Handle    planner.MarkerHandle `json:"handle"`
	StopID    planner.StopID       `json:"stopId"`
	Position  orb.Point            `json:"position"`
	Color     planner.Color        `json:"color"`
	Icon      string               `json:"icon"`
	Popup     string               `json:"popup,omitempty"`
	Draggable bool                 `json:"draggable"`
}

// Scene is the full state of the map surface. The browser reconciles its
// map against the latest scene it receives.
type Scene struct {
	Center        orb.Point        `json:"center"`
	Zoom          float64          `json:"zoom"`
	Markers       []SceneMarker    `json:"markers"`
	Route         *geojson.Feature `json:"route,omitempty"`
	PopupsVisible bool             `json:"popupsVisible"`
	Interactive   bool             `json:"interactive"`
	PanTo         *orb.Point       `json:"panTo,omitempty"`
	PanSeq        uint64           `json:"panSeq"`
}

// sceneSurface implements planner.MapSurface by recording state.
// It is only touched from the session loop.
type sceneSurface struct {
	next    uint64
	order   []planner.MarkerHandle
	markers map[planner.MarkerHandle]*SceneMarker

	route         orb.LineString
	popupsVisible bool
	interactive   bool
	pan           *orb.Point
	panSeq        uint64

	dirty bool
}

func newSceneSurface() *sceneSurface {
	return &sceneSurface{
		markers:     make(map[planner.MarkerHandle]*SceneMarker),
		interactive: true,
	}
}

func (s *sceneSurface) AddMarker(pos orb.Point, color planner.Color, draggable bool) planner.MarkerHandle {
	s.next++
	h := planner.MarkerHandle(fmt.Sprintf("marker-%d", s.next))
	s.markers[h] = &SceneMarker{
		Handle:    h,
		Position:  pos,
		Color:     color,
		Icon:      planner.IconFor(color),
		Draggable: draggable,
	}
	s.order = append(s.order, h)
	s.dirty = true
	return h
}

func (s *sceneSurface) RemoveMarker(h planner.MarkerHandle) {
	if _, ok := s.markers[h]; !ok {
		return
	}
	delete(s.markers, h)
	for i, o := range s.order {
		if o == h {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.dirty = true
}

func (s *sceneSurface) MoveMarker(h planner.MarkerHandle, pos orb.Point) {
	if m, ok := s.markers[h]; ok && m.Position != pos {
		m.Position = pos
		s.dirty = true
	}
}

func (s *sceneSurface) SetPopup(h planner.MarkerHandle, text string) {
	if m, ok := s.markers[h]; ok && m.Popup != text {
		m.Popup = text
		s.dirty = true
	}
}

func (s *sceneSurface) SetPopupsVisible(visible bool) {
	s.popupsVisible = visible
	s.dirty = true
}

func (s *sceneSurface) AddLayer(route orb.LineString) {
	s.route = route.Clone()
	s.dirty = true
}

func (s *sceneSurface) RemoveLayer() {
	s.route = nil
	s.dirty = true
}

func (s *sceneSurface) SetInteractive(enabled bool) {
	s.interactive = enabled
	s.dirty = true
}

func (s *sceneSurface) PanTo(pos orb.Point) {
	p := pos
	s.pan = &p
	s.panSeq++
	s.dirty = true
}

// takeDirty reports and clears the changed flag.
func (s *sceneSurface) takeDirty() bool {
	d := s.dirty
	s.dirty = false
	return d
}

// scene copies the surface into a Scene, tagging each marker with the stop
// that owns it.
func (s *sceneSurface) scene(stops []planner.StopSnapshot) Scene {
	owners := make(map[planner.MarkerHandle]planner.StopID, len(stops))
	for _, st := range stops {
		owners[st.Marker] = st.ID
	}
	sc := Scene{
		Center:        DefaultCenter,
		Zoom:          DefaultZoom,
		Markers:       make([]SceneMarker, 0, len(s.order)),
		PopupsVisible: s.popupsVisible,
		Interactive:   s.interactive,
		PanSeq:        s.panSeq,
	}
	for _, h := range s.order {
		m := *s.markers[h]
		m.StopID = owners[h]
		sc.Markers = append(sc.Markers, m)
	}
	if s.pan != nil {
		p := *s.pan
		sc.PanTo = &p
	}
	if len(s.route) >= 2 {
		f := geojson.NewFeature(s.route.Clone())
		f.Properties["color"] = RouteColor
		f.Properties["width"] = RouteWidth
		sc.Route = f
	}
	return sc
}

// RouteKm returns the great-circle length of a route in kilometres.
func RouteKm(ls orb.LineString) float64 {
	var m float64
	for i := 1; i < len(ls); i++ {
		m += geo.DistanceHaversine(ls[i-1], ls[i])
	}
	return m / 1000
}
