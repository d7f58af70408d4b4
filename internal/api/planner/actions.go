package planner

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/planner"
)

// Click adds a stop where the map was clicked.
func (h *Handler) Click(ctx context.Context, input *PositionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	pos, err := position(&input.SignalsInput)
	if err != nil {
		return nil, err
	}
	return h.act(sess, "click", func(m *planner.Manager) error {
		_, err := m.InsertAtClick(pos)
		return err
	}), nil
}

// Locate makes the device location the first stop. The browser reports a
// failed fix in the locationerror signal.
func (h *Handler) Locate(ctx context.Context, input *PositionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	signals, err := input.Parse()
	if err != nil {
		return nil, err
	}
	if reason := signals.String("locationerror"); reason != "" {
		return h.act(sess, "locate", func(*planner.Manager) error {
			return fmt.Errorf("%w: %s", planner.ErrDeviceLocationUnavailable, reason)
		}), nil
	}
	pos, ok := signals.Point("lng", "lat")
	if !ok {
		return nil, huma.Error400BadRequest("lng and lat signals are required")
	}
	return h.act(sess, "locate", func(m *planner.Manager) error {
		_, err := m.InsertUserLocation(pos)
		return err
	}), nil
}

// Drag moves a stop to where its marker was dropped.
func (h *Handler) Drag(ctx context.Context, input *DragInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	stop, err := uuid.Parse(input.Stop)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid stop id")
	}
	pos, err := position(&input.SignalsInput)
	if err != nil {
		return nil, err
	}
	return h.act(sess, "drag", func(m *planner.Manager) error {
		return m.Reposition(stop, pos)
	}), nil
}

// Remove deletes the stop at an index.
func (h *Handler) Remove(ctx context.Context, input *RemoveInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	return h.act(sess, "remove", func(m *planner.Manager) error {
		return m.Remove(input.Index)
	}), nil
}

// ToggleRoute shows or hides the route overlay.
func (h *Handler) ToggleRoute(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	return h.act(sess, "route", func(m *planner.Manager) error {
		m.ToggleRoute()
		return nil
	}), nil
}

// TogglePopups shows or hides every address popup.
func (h *Handler) TogglePopups(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	return h.act(sess, "popups", func(m *planner.Manager) error {
		m.TogglePopupVisibility()
		return nil
	}), nil
}

// Next hands the trip off to booking and redirects there.
func (h *Handler) Next(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	if h.trips == nil {
		return nil, huma.Error503ServiceUnavailable("trip booking is not available")
	}
	return h.Stream(func(sse humastar.SSE) {
		handoff, err := h.trips.Handoff(sse.Context(), sess.ID())
		if err != nil {
			h.report(sse, sess, "next", err)
			return
		}
		h.log.Info("redirecting to booking",
			zap.String("session", sess.ID().String()),
			zap.String("trip", handoff.Trip.ID.String()),
		)
		sse.Ok()
		sse.Redirect(handoff.BookingURL)
	}), nil
}
