package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-trip/internal/planner"
)

var (
	ErrSessionNotFound = errors.New("planner session not found")
	ErrSessionClosed   = errors.New("planner session closed")
)

// Geocoder resolves a position to a formatted address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pos orb.Point) (string, error)
}

// Snapshot is everything a client needs to draw a session.
type Snapshot struct {
	SessionID     uuid.UUID             `json:"sessionId" doc:"Planner session ID"`
	Seq           uint64                `json:"seq" doc:"Increases with every published change"`
	Scene         Scene                 `json:"scene" doc:"Map surface state"`
	List          planner.ListViewModel `json:"list" doc:"Rendered stop list"`
	InputEnabled  bool                  `json:"inputEnabled" doc:"Whether clicks and drags are accepted"`
	RouteVisible  bool                  `json:"routeVisible" doc:"Whether the route overlay is toggled on"`
	PopupsVisible bool                  `json:"popupsVisible" doc:"Whether address popups are shown"`
	RouteKm       float64               `json:"routeKm" doc:"Straight-line route length in km"`
	StopCount     int                   `json:"stopCount" doc:"Number of stops"`
}

type flags struct {
	input, route, popups bool
}

// listCapture is the planner.ListView of a session.
type listCapture struct {
	view  planner.ListViewModel
	dirty bool
}

func (l *listCapture) Render(v planner.ListViewModel) {
	l.view = v
	l.dirty = true
}

// Session owns one stop list and the loop goroutine that drives it.
type Session struct {
	id      uuid.UUID
	created time.Time
	log     *zap.Logger

	// loop-owned
	manager   *planner.Manager
	surface   *sceneSurface
	list      *listCapture
	seq       uint64
	lastFlags flags

	geocoder Geocoder
	bus      *EventBus
	tasks    chan func()
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once

	latest     atomic.Pointer[Snapshot]
	lastActive atomic.Int64
}

func newSession(cfg SessionConfig) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       uuid.New(),
		created:  time.Now(),
		geocoder: cfg.Geocoder,
		bus:      NewEventBus(),
		tasks:    make(chan func(), 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		surface:  newSceneSurface(),
		list:     &listCapture{},
	}
	s.log = cfg.Logger.With(zap.String("session", s.id.String()))
	s.manager = planner.NewManager(planner.Config{
		Surface:   s.surface,
		Lookups:   sessionLookups{s},
		Scheduler: sessionTimers{s},
		View:      s.list,
		Cooldown:  cfg.Cooldown,
		Logger:    s.log,
	})
	s.touch()
	s.publish(true)
	go s.run()
	return s
}

// ID returns the session ID.
func (s *Session) ID() uuid.UUID { return s.id }

// Bus returns the snapshot bus of the session.
func (s *Session) Bus() *EventBus { return s.bus }

// Latest returns the most recently published snapshot.
func (s *Session) Latest() Snapshot { return *s.latest.Load() }

// LastActive returns the time of the last action.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

func (s *Session) touch() { s.lastActive.Store(time.Now().UnixNano()) }

func (s *Session) run() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
			s.publish(false)
		case <-s.done:
			return
		}
	}
}

// Do runs fn on the session loop and waits for its result. The snapshot
// reflecting fn's changes is published before Do returns.
func (s *Session) Do(ctx context.Context, fn func(m *planner.Manager) error) error {
	s.touch()
	result := make(chan error, 1)
	task := func() {
		err := fn(s.manager)
		s.publish(false)
		result <- err
	}

	select {
	case s.tasks <- task:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post enqueues fn on the loop without waiting. It is called from
// geocode and timer goroutines, never from the loop itself.
func (s *Session) post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

// Close stops the loop and ends all subscriber streams.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		close(s.done)
		s.bus.Close()
	})
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// publish stores a new snapshot and sends it to subscribers when the scene,
// the list or the flags changed.
func (s *Session) publish(force bool) {
	f := flags{
		input:  s.manager.InputEnabled(),
		route:  s.manager.RouteVisible(),
		popups: s.manager.PopupsVisible(),
	}
	changed := s.surface.takeDirty()
	if s.list.dirty {
		s.list.dirty = false
		changed = true
	}
	if f != s.lastFlags {
		changed = true
	}
	if !changed && !force {
		return
	}
	s.lastFlags = f
	s.seq++

	snap := Snapshot{
		SessionID:     s.id,
		Seq:           s.seq,
		Scene:         s.surface.scene(s.manager.Stops()),
		List:          s.manager.RenderStopList(),
		InputEnabled:  f.input,
		RouteVisible:  f.route,
		PopupsVisible: f.popups,
		RouteKm:       RouteKm(s.manager.Route()),
		StopCount:     s.manager.Len(),
	}
	s.latest.Store(&snap)
	s.bus.Publish(snap)
}

// sessionLookups issues geocode requests off the loop and posts the result
// back to it.
type sessionLookups struct{ s *Session }

func (l sessionLookups) RequestAddress(token planner.LookupToken, pos orb.Point) {
	s := l.s
	go func() {
		addr, err := s.geocoder.ReverseGeocode(s.ctx, pos)
		if s.ctx.Err() != nil {
			return
		}
		s.post(func() { s.manager.OnAddressResolved(token, addr, err) })
	}()
}

// sessionTimers runs cooldown callbacks on the loop.
type sessionTimers struct{ s *Session }

func (t sessionTimers) After(d time.Duration, fn func()) {
	s := t.s
	time.AfterFunc(d, func() { s.post(fn) })
}
