// Package events publishes trip lifecycle events as CloudEvents.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// TopicTripEvents carries trip lifecycle events.
	TopicTripEvents = "trip.events"

	// TripPlanned is emitted when a planned trip is handed off to booking.
	TripPlanned = "trip.planned"

	specVersion = "1.0"
)

// CloudEvent is a CloudEvents 1.0 envelope with a JSON payload.
type CloudEvent struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	SpecVersion     string          `json:"specversion"`
	Type            string          `json:"type"`
	Subject         string          `json:"subject,omitempty"`
	Time            time.Time       `json:"time"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// NewCloudEvent wraps data in an envelope with a fresh ID.
func NewCloudEvent(source, eventType string, data any) (CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return CloudEvent{
		ID:              uuid.NewString(),
		Source:          source,
		SpecVersion:     specVersion,
		Type:            eventType,
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            raw,
	}, nil
}

// ParseData decodes the payload into v.
func (e CloudEvent) ParseData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// TripPlannedEvent is the payload of TripPlanned.
type TripPlannedEvent struct {
	TripID     uuid.UUID   `json:"trip_id"`
	SessionID  uuid.UUID   `json:"session_id"`
	Stops      []EventStop `json:"stops"`
	DistanceKm float64     `json:"distance_km"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// EventStop is one stop of a planned trip.
type EventStop struct {
	Role    string  `json:"role"`
	Address string  `json:"address"`
	Lng     float64 `json:"lng"`
	Lat     float64 `json:"lat"`
}
