package planner

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

type fakeMarker struct {
	pos       orb.Point
	color     Color
	draggable bool
	popup     string
}

// fakeSurface records what the manager draws.
type fakeSurface struct {
	next        int
	markers     map[MarkerHandle]*fakeMarker
	layer       orb.LineString
	layerAdds   int
	moves       int
	popups      bool
	interactive bool
	panned      []orb.Point
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{markers: map[MarkerHandle]*fakeMarker{}, interactive: true}
}

func (f *fakeSurface) AddMarker(pos orb.Point, color Color, draggable bool) MarkerHandle {
	f.next++
	h := MarkerHandle(fmt.Sprintf("m%d", f.next))
	f.markers[h] = &fakeMarker{pos: pos, color: color, draggable: draggable}
	return h
}

func (f *fakeSurface) RemoveMarker(h MarkerHandle) { delete(f.markers, h) }

func (f *fakeSurface) MoveMarker(h MarkerHandle, pos orb.Point) {
	if m, ok := f.markers[h]; ok {
		m.pos = pos
		f.moves++
	}
}

func (f *fakeSurface) SetPopup(h MarkerHandle, text string) {
	if m, ok := f.markers[h]; ok {
		m.popup = text
	}
}

func (f *fakeSurface) SetPopupsVisible(v bool) { f.popups = v }

func (f *fakeSurface) AddLayer(route orb.LineString) {
	f.layer = route
	f.layerAdds++
}

func (f *fakeSurface) RemoveLayer()          { f.layer = nil }
func (f *fakeSurface) SetInteractive(v bool) { f.interactive = v }
func (f *fakeSurface) PanTo(pos orb.Point)   { f.panned = append(f.panned, pos) }

func (f *fakeSurface) colorsByPosition() map[orb.Point]Color {
	out := map[orb.Point]Color{}
	for _, m := range f.markers {
		out[m.pos] = m.color
	}
	return out
}

type lookupCall struct {
	token LookupToken
	pos   orb.Point
}

type fakeLookups struct {
	calls []lookupCall
}

func (f *fakeLookups) RequestAddress(token LookupToken, pos orb.Point) {
	f.calls = append(f.calls, lookupCall{token: token, pos: pos})
}

func (f *fakeLookups) last() lookupCall { return f.calls[len(f.calls)-1] }

// fakeScheduler holds timers until fire is called.
type fakeScheduler struct {
	pending []func()
}

func (f *fakeScheduler) After(_ time.Duration, fn func()) { f.pending = append(f.pending, fn) }

func (f *fakeScheduler) fire(i int) { f.pending[i]() }

func (f *fakeScheduler) fireAll() {
	for _, fn := range f.pending {
		fn()
	}
	f.pending = nil
}

type fakeView struct {
	renders []ListViewModel
}

func (f *fakeView) Render(v ListViewModel) { f.renders = append(f.renders, v) }

func (f *fakeView) last() ListViewModel { return f.renders[len(f.renders)-1] }

type harness struct {
	m       *Manager
	surface *fakeSurface
	lookups *fakeLookups
	sched   *fakeScheduler
	view    *fakeView
}

func newHarness(cooldown time.Duration) *harness {
	h := &harness{
		surface: newFakeSurface(),
		lookups: &fakeLookups{},
		sched:   &fakeScheduler{},
		view:    &fakeView{},
	}
	h.m = NewManager(Config{
		Surface:   h.surface,
		Lookups:   h.lookups,
		Scheduler: h.sched,
		View:      h.view,
		Cooldown:  cooldown,
	})
	return h
}

func pt(lng, lat float64) orb.Point { return orb.Point{lng, lat} }
