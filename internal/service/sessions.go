// Package service runs planner sessions, each on its own loop goroutine,
// and hands finished trips off to booking.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-trip/internal/planner"
)

var errNoGeocoder = errors.New("no geocoder configured")

// SessionConfig configures new planner sessions.
type SessionConfig struct {
	Geocoder Geocoder
	Cooldown time.Duration
	Logger   *zap.Logger
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID         uuid.UUID `json:"id" doc:"Planner session ID"`
	Stops      int       `json:"stops" doc:"Number of stops"`
	CreatedAt  time.Time `json:"createdAt" doc:"Creation time"`
	LastActive time.Time `json:"lastActive" doc:"Time of the last action"`
}

// SessionService manages planner sessions.
type SessionService struct {
	cfg      SessionConfig
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex
}

// NewSessionService creates a new session service.
func NewSessionService(cfg SessionConfig) *SessionService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Geocoder == nil {
		cfg.Geocoder = noGeocoder{}
	}
	return &SessionService{
		cfg:      cfg,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a new session.
func (s *SessionService) Create() *Session {
	sess := newSession(s.cfg)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	sess.log.Info("planner session created")
	return sess
}

// Get returns a session by ID.
func (s *SessionService) Get(id uuid.UUID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

// Delete closes and removes a session.
func (s *SessionService) Delete(id uuid.UUID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	sess.Close()
	sess.log.Info("planner session deleted")
	return nil
}

// List returns all live sessions, most recently active first.
func (s *SessionService) List() []SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, SessionInfo{
			ID:         sess.id,
			Stops:      sess.Latest().StopCount,
			CreatedAt:  sess.created,
			LastActive: sess.LastActive(),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastActive.After(result[j].LastActive)
	})
	return result
}

// Len returns the number of live sessions.
func (s *SessionService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ExpireIdle closes sessions idle for longer than ttl and returns how many
// were removed. A session with an open event stream is never idle.
func (s *SessionService) ExpireIdle(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) && sess.bus.Subscribers() == 0 {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Close()
		sess.log.Info("planner session expired", zap.Duration("ttl", ttl))
	}
	return len(expired)
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (s *SessionService) RunJanitor(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.ExpireIdle(ttl); n > 0 {
				s.cfg.Logger.Debug("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Close closes every session.
func (s *SessionService) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[uuid.UUID]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}
}

// TripData returns the session's stops in visiting order, read on its loop.
func (s *SessionService) TripData(ctx context.Context, id uuid.UUID) ([]planner.TripStop, orb.LineString, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}
	var (
		stops []planner.TripStop
		route orb.LineString
	)
	err = sess.Do(ctx, func(m *planner.Manager) error {
		stops = m.Trip()
		route = m.Route()
		return nil
	})
	return stops, route, err
}

type noGeocoder struct{}

func (noGeocoder) ReverseGeocode(context.Context, orb.Point) (string, error) {
	return "", errNoGeocoder
}
