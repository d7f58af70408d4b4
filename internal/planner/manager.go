package planner

import (
	"fmt"
	"slices"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// DefaultCooldown is how long clicks and drags stay disabled after an
// address lookup is issued.
const DefaultCooldown = 1500 * time.Millisecond

// MarkerHandle is an opaque reference to a marker on the map surface.
type MarkerHandle string

// MapSurface renders markers, popups and the route overlay.
type MapSurface interface {
	AddMarker(pos orb.Point, color Color, draggable bool) MarkerHandle
	RemoveMarker(h MarkerHandle)
	// MoveMarker places an existing marker at pos.
	MoveMarker(h MarkerHandle, pos orb.Point)
	// SetPopup attaches text to a marker. Empty text removes the popup.
	SetPopup(h MarkerHandle, text string)
	SetPopupsVisible(visible bool)
	AddLayer(route orb.LineString)
	RemoveLayer()
	// SetInteractive enables or disables map clicks and marker dragging.
	SetInteractive(enabled bool)
	PanTo(pos orb.Point)
}

// LookupToken correlates an address lookup with the stop and generation
// it was issued for.
type LookupToken struct {
	StopID     StopID `json:"stopId"`
	Generation uint64 `json:"generation"`
}

// AddressLookup starts an asynchronous reverse geocode. The result must be
// delivered to OnAddressResolved on the manager's loop.
type AddressLookup interface {
	RequestAddress(token LookupToken, pos orb.Point)
}

// Scheduler runs fn on the manager's loop after d.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// ListView receives the stop list whenever it changes.
type ListView interface {
	Render(view ListViewModel)
}

// Config holds the collaborators of a Manager.
type Config struct {
	Surface   MapSurface
	Lookups   AddressLookup
	Scheduler Scheduler
	View      ListView
	// Cooldown disables input after each lookup. Zero disables throttling.
	Cooldown time.Duration
	Logger   *zap.Logger
}

// Manager is the stop list manager of one planning session.
type Manager struct {
	stops []*stop

	surface   MapSurface
	lookups   AddressLookup
	scheduler Scheduler
	view      ListView
	cooldown  time.Duration
	log       *zap.Logger

	routeVisible  bool
	routeShown    bool
	routeDirty    bool
	popupsVisible bool
	inputEnabled  bool
	cooldownEpoch uint64
}

// NewManager creates an empty stop list. Nil collaborators are replaced by
// no-op implementations.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		surface:      cfg.Surface,
		lookups:      cfg.Lookups,
		scheduler:    cfg.Scheduler,
		view:         cfg.View,
		cooldown:     cfg.Cooldown,
		log:          cfg.Logger,
		inputEnabled: true,
	}
	if m.surface == nil {
		m.surface = nopSurface{}
	}
	if m.lookups == nil {
		m.lookups = nopLookup{}
	}
	if m.scheduler == nil {
		m.scheduler = nopScheduler{}
	}
	if m.view == nil {
		m.view = nopView{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	return m
}

// InsertAtClick appends a stop as the new drop off point.
func (m *Manager) InsertAtClick(pos orb.Point) (StopID, error) {
	if !m.inputEnabled {
		return StopID{}, ErrInputSuspended
	}
	if !ValidPosition(pos) {
		return StopID{}, fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}

	s := newStop(pos)
	m.stops = append(m.stops, s)
	m.reconcile()
	m.requestAddress(s)
	m.routeDirty = true
	m.flush()
	return s.id, nil
}

// InsertUserLocation inserts the device location as the new pick up point,
// replacing the current one.
func (m *Manager) InsertUserLocation(pos orb.Point) (StopID, error) {
	if !ValidPosition(pos) {
		return StopID{}, fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}

	if len(m.stops) > 0 {
		old := m.stops[0]
		m.dropMarker(old)
		m.stops = m.stops[1:]
	}

	s := newStop(pos)
	m.stops = append([]*stop{s}, m.stops...)
	m.reconcile()
	m.requestAddress(s)
	m.surface.PanTo(pos)
	m.routeDirty = true
	m.flush()
	return s.id, nil
}

// Reposition moves a stop after a drag and looks up its new address.
func (m *Manager) Reposition(id StopID, pos orb.Point) error {
	_, s := m.find(id)
	if s == nil {
		return ErrStopNotFound
	}
	if !m.inputEnabled {
		m.redraw(s)
		return ErrInputSuspended
	}
	if !ValidPosition(pos) {
		m.redraw(s)
		return fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}

	s.position = pos
	m.surface.MoveMarker(s.marker, pos)
	m.surface.SetPopup(s.marker, "")
	m.requestAddress(s)
	m.routeDirty = true
	m.flush()
	return nil
}

// Remove deletes the stop at index. Removing from an empty list is a no-op.
func (m *Manager) Remove(index int) error {
	if len(m.stops) == 0 {
		return nil
	}
	if index < 0 || index >= len(m.stops) {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(m.stops))
	}

	m.dropMarker(m.stops[index])
	m.stops = slices.Delete(m.stops, index, index+1)
	m.reconcile()
	m.routeDirty = true
	m.flush()
	return nil
}

// OnAddressResolved delivers the result of a lookup. It reports whether the
// result was applied; results for removed stops or superseded generations
// are discarded.
func (m *Manager) OnAddressResolved(token LookupToken, address string, err error) bool {
	_, s := m.find(token.StopID)
	if s == nil {
		m.log.Debug("discarding address for removed stop", zap.String("stop", token.StopID.String()))
		return false
	}
	if token.Generation != s.generation {
		m.log.Debug("discarding stale address",
			zap.String("stop", token.StopID.String()),
			zap.Uint64("generation", token.Generation),
			zap.Uint64("current", s.generation),
		)
		return false
	}

	if err != nil {
		m.log.Warn("address lookup failed",
			zap.String("stop", token.StopID.String()),
			zap.Error(err),
		)
		s.failed = true
	} else {
		s.address = &address
		s.failed = false
		m.surface.SetPopup(s.marker, address)
	}
	m.view.Render(m.RenderStopList())
	return true
}

// ToggleRoute shows or hides the straight-line route overlay.
func (m *Manager) ToggleRoute() {
	m.routeVisible = !m.routeVisible
	m.routeDirty = true
	m.syncRoute()
}

// TogglePopupVisibility shows or hides resolved addresses on the map.
func (m *Manager) TogglePopupVisibility() {
	m.popupsVisible = !m.popupsVisible
	m.surface.SetPopupsVisible(m.popupsVisible)
}

// Len returns the number of stops.
func (m *Manager) Len() int { return len(m.stops) }

// RouteVisible reports whether the route overlay is toggled on.
func (m *Manager) RouteVisible() bool { return m.routeVisible }

// PopupsVisible reports whether popups are shown.
func (m *Manager) PopupsVisible() bool { return m.popupsVisible }

// InputEnabled reports whether clicks and drags are accepted.
func (m *Manager) InputEnabled() bool { return m.inputEnabled }

// Stops returns a snapshot of the stop list in order.
func (m *Manager) Stops() []StopSnapshot {
	out := make([]StopSnapshot, len(m.stops))
	for i, s := range m.stops {
		out[i] = s.snapshot(i, len(m.stops))
	}
	return out
}

// Route returns the stop positions in visiting order.
func (m *Manager) Route() orb.LineString {
	line := make(orb.LineString, len(m.stops))
	for i, s := range m.stops {
		line[i] = s.position
	}
	return line
}

// reconcile re-derives every stop's color from its index and replaces the
// markers whose color changed.
func (m *Manager) reconcile() {
	n := len(m.stops)
	for i, s := range m.stops {
		color := ColorFor(RoleAt(i, n))
		if s.marker != "" && s.color == color {
			continue
		}
		s.color = color
		m.redraw(s)
	}
}

// redraw replaces a stop's marker with one at its recorded position.
func (m *Manager) redraw(s *stop) {
	m.dropMarker(s)
	s.marker = m.surface.AddMarker(s.position, s.color, true)
	if s.address != nil {
		m.surface.SetPopup(s.marker, *s.address)
	}
}

func (m *Manager) dropMarker(s *stop) {
	if s.marker == "" {
		return
	}
	m.surface.RemoveMarker(s.marker)
	s.marker = ""
}

func (m *Manager) requestAddress(s *stop) {
	s.generation++
	s.address = nil
	s.failed = false
	m.lookups.RequestAddress(LookupToken{StopID: s.id, Generation: s.generation}, s.position)
	m.suspendInput()
}

func (m *Manager) suspendInput() {
	if m.cooldown <= 0 {
		return
	}
	m.cooldownEpoch++
	epoch := m.cooldownEpoch
	if m.inputEnabled {
		m.inputEnabled = false
		m.surface.SetInteractive(false)
	}
	m.scheduler.After(m.cooldown, func() { m.resumeInput(epoch) })
}

func (m *Manager) resumeInput(epoch uint64) {
	if epoch != m.cooldownEpoch || m.inputEnabled {
		return
	}
	m.inputEnabled = true
	m.surface.SetInteractive(true)
}

// syncRoute brings the overlay on the surface in line with the stop list.
func (m *Manager) syncRoute() {
	if !m.routeVisible {
		if m.routeShown {
			m.surface.RemoveLayer()
			m.routeShown = false
		}
		m.routeDirty = false
		return
	}
	if !m.routeDirty {
		return
	}
	if m.routeShown {
		m.surface.RemoveLayer()
		m.routeShown = false
	}
	if len(m.stops) >= 2 {
		m.surface.AddLayer(m.Route())
		m.routeShown = true
	}
	m.routeDirty = false
}

func (m *Manager) flush() {
	m.syncRoute()
	m.view.Render(m.RenderStopList())
}

func (m *Manager) find(id StopID) (int, *stop) {
	for i, s := range m.stops {
		if s.id == id {
			return i, s
		}
	}
	return -1, nil
}

type nopSurface struct{}

func (nopSurface) AddMarker(orb.Point, Color, bool) MarkerHandle { return "marker" }
func (nopSurface) RemoveMarker(MarkerHandle)                     {}
func (nopSurface) MoveMarker(MarkerHandle, orb.Point)            {}
func (nopSurface) SetPopup(MarkerHandle, string)                 {}
func (nopSurface) SetPopupsVisible(bool)                         {}
func (nopSurface) AddLayer(orb.LineString)                       {}
func (nopSurface) RemoveLayer()                                  {}
func (nopSurface) SetInteractive(bool)                           {}
func (nopSurface) PanTo(orb.Point)                               {}

type nopLookup struct{}

func (nopLookup) RequestAddress(LookupToken, orb.Point) {}

type nopScheduler struct{}

func (nopScheduler) After(time.Duration, func()) {}

type nopView struct{}

func (nopView) Render(ListViewModel) {}
