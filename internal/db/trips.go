package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trip/internal/planner"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Trip is a planned trip handed off to booking.
type Trip struct {
	ID         uuid.UUID          `json:"id"`
	SessionID  uuid.UUID          `json:"sessionId"`
	Stops      []planner.TripStop `json:"stops"`
	Route      *geojson.Geometry  `json:"route"`
	DistanceKm float64            `json:"distanceKm"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// LineString returns the route geometry, or nil when it is absent.
func (t Trip) LineString() orb.LineString {
	if t.Route == nil {
		return nil
	}
	ls, _ := t.Route.Geometry().(orb.LineString)
	return ls
}

// TripStore persists trips in DuckDB.
type TripStore struct {
	db *sql.DB
}

// NewTripStore creates a store on an opened database.
func NewTripStore(db *sql.DB) *TripStore {
	return &TripStore{db: db}
}

// Save inserts a trip.
func (s *TripStore) Save(ctx context.Context, t Trip) error {
	stops, err := json.Marshal(t.Stops)
	if err != nil {
		return fmt.Errorf("marshal stops: %w", err)
	}
	route, err := json.Marshal(t.Route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trips (id, session_id, stops, route, distance_km, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.SessionID.String(), string(stops), string(route), t.DistanceKm, t.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trip %s: %w", t.ID, err)
	}
	return nil
}

// Get loads one trip.
func (s *TripStore) Get(ctx context.Context, id uuid.UUID) (Trip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, stops, route, distance_km, created_at FROM trips WHERE id = ?`, id.String())
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Trip{}, fmt.Errorf("trip %s: %w", id, ErrNotFound)
	}
	return t, err
}

// DefaultPageSize is the page size used when List is called without a limit.
const DefaultPageSize = 50

// List returns a page of trips, most recent first.
func (s *TripStore) List(ctx context.Context, offset, limit int) ([]Trip, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, session_id, stops, route, distance_km, created_at FROM trips ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		limit, offset))
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// Count returns the number of stored trips.
func (s *TripStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM trips`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trips: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrip(sc scanner) (Trip, error) {
	var (
		t                    Trip
		id, session          string
		stopsJSON, routeJSON string
	)
	if err := sc.Scan(&id, &session, &stopsJSON, &routeJSON, &t.DistanceKm, &t.CreatedAt); err != nil {
		return Trip{}, err
	}

	var err error
	if t.ID, err = uuid.Parse(id); err != nil {
		return Trip{}, fmt.Errorf("trip id: %w", err)
	}
	if t.SessionID, err = uuid.Parse(session); err != nil {
		return Trip{}, fmt.Errorf("trip session id: %w", err)
	}
	if err := json.Unmarshal([]byte(stopsJSON), &t.Stops); err != nil {
		return Trip{}, fmt.Errorf("trip stops: %w", err)
	}
	if routeJSON != "null" {
		t.Route = &geojson.Geometry{}
		if err := json.Unmarshal([]byte(routeJSON), t.Route); err != nil {
			return Trip{}, fmt.Errorf("trip route: %w", err)
		}
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}
