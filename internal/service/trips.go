package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-trip/internal/db"
	"github.com/joeblew999/plat-trip/internal/events"
	"github.com/joeblew999/plat-trip/internal/planner"
)

var (
	ErrTripIncomplete = errors.New("trip needs a pick up and a drop off point with resolved addresses")
	ErrTripNotFound   = errors.New("trip not found")
	ErrNoTripStore    = errors.New("no trip store configured")
)

// EventSource is the CloudEvents source of events published by this service.
const EventSource = "plat-trip"

// TripRepository stores planned trips.
type TripRepository interface {
	Save(ctx context.Context, t db.Trip) error
	Get(ctx context.Context, id uuid.UUID) (db.Trip, error)
	List(ctx context.Context, offset, limit int) ([]db.Trip, error)
	Count(ctx context.Context) (int, error)
}

// TripConfig configures a TripService.
type TripConfig struct {
	Repository TripRepository
	Publisher  events.Publisher
	Topic      string
	BookingURL string
	Logger     *zap.Logger
}

// TripService hands planned trips off to booking.
type TripService struct {
	sessions   *SessionService
	repo       TripRepository
	publisher  events.Publisher
	topic      string
	bookingURL string
	log        *zap.Logger
	now        func() time.Time
}

// NewTripService creates a trip service.
func NewTripService(sessions *SessionService, cfg TripConfig) *TripService {
	t := &TripService{
		sessions:   sessions,
		repo:       cfg.Repository,
		publisher:  cfg.Publisher,
		topic:      cfg.Topic,
		bookingURL: cfg.BookingURL,
		log:        cfg.Logger,
		now:        time.Now,
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	if t.publisher == nil {
		t.publisher = events.NopPublisher{Logger: t.log}
	}
	if t.topic == "" {
		t.topic = events.TopicTripEvents
	}
	if t.bookingURL == "" {
		t.bookingURL = "/booking"
	}
	return t
}

// Handoff is the result of a successful handoff.
type Handoff struct {
	Trip       db.Trip `json:"trip" doc:"The stored trip"`
	BookingURL string  `json:"bookingUrl" doc:"Where to continue with booking"`
}

// Handoff validates the session's trip, stores it and announces it.
func (t *TripService) Handoff(ctx context.Context, sessionID uuid.UUID) (Handoff, error) {
	stops, route, err := t.sessions.TripData(ctx, sessionID)
	if err != nil {
		return Handoff{}, err
	}
	if err := validateTrip(stops); err != nil {
		return Handoff{}, err
	}
	if t.repo == nil {
		return Handoff{}, fmt.Errorf("store trip: %w", ErrNoTripStore)
	}

	trip := db.Trip{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Stops:      stops,
		Route:      geojson.NewGeometry(route),
		DistanceKm: RouteKm(route),
		CreatedAt:  t.now().UTC(),
	}
	if err := t.repo.Save(ctx, trip); err != nil {
		return Handoff{}, fmt.Errorf("store trip: %w", err)
	}

	t.log.Info("trip planned",
		zap.String("trip", trip.ID.String()),
		zap.String("session", sessionID.String()),
		zap.Int("stops", len(stops)),
		zap.Float64("distance_km", trip.DistanceKm),
	)
	t.publishPlanned(ctx, trip)

	return Handoff{Trip: trip, BookingURL: t.bookingLink(trip.ID)}, nil
}

// Get returns a stored trip.
func (t *TripService) Get(ctx context.Context, id uuid.UUID) (db.Trip, error) {
	if t.repo == nil {
		return db.Trip{}, fmt.Errorf("trip %s: %w", id, ErrTripNotFound)
	}
	trip, err := t.repo.Get(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return db.Trip{}, fmt.Errorf("trip %s: %w", id, ErrTripNotFound)
	}
	return trip, err
}

// List returns a page of stored trips, newest first, and the total count.
func (t *TripService) List(ctx context.Context, offset, limit int) ([]db.Trip, int, error) {
	if t.repo == nil {
		return []db.Trip{}, 0, nil
	}
	total, err := t.repo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	trips, err := t.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return trips, total, nil
}

func validateTrip(stops []planner.TripStop) error {
	if len(stops) < 2 {
		return fmt.Errorf("%w: %d stops", ErrTripIncomplete, len(stops))
	}
	for i, s := range stops {
		if !s.Resolved {
			return fmt.Errorf("%w: stop %d has no address", ErrTripIncomplete, i)
		}
	}
	return nil
}

func (t *TripService) bookingLink(id uuid.UUID) string {
	u, err := url.Parse(t.bookingURL)
	if err != nil {
		return t.bookingURL
	}
	q := u.Query()
	q.Set("trip", id.String())
	u.RawQuery = q.Encode()
	return u.String()
}

func (t *TripService) publishPlanned(ctx context.Context, trip db.Trip) {
	evt := events.TripPlannedEvent{
		TripID:     trip.ID,
		SessionID:  trip.SessionID,
		DistanceKm: trip.DistanceKm,
		OccurredAt: trip.CreatedAt,
	}
	for _, s := range trip.Stops {
		evt.Stops = append(evt.Stops, events.EventStop{
			Role:    string(s.Role),
			Address: s.Address,
			Lng:     s.Position.Lon(),
			Lat:     s.Position.Lat(),
		})
	}

	ce, err := events.NewCloudEvent(EventSource, events.TripPlanned, evt)
	if err != nil {
		t.log.Error("failed to create cloud event",
			zap.String("event_type", events.TripPlanned),
			zap.Error(err),
		)
		return
	}
	if err := t.publisher.PublishEvent(ctx, t.topic, trip.ID.String(), ce); err != nil {
		t.log.Error("failed to publish event",
			zap.String("topic", t.topic),
			zap.String("event_type", events.TripPlanned),
			zap.Error(err),
		)
	}
}
