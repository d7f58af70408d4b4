// Package planner contains the Datastar SSE handlers behind the trip
// planner page. Every action runs on the session loop; the resulting state
// reaches the browser through the session's event stream.
package planner

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/planner"
	"github.com/joeblew999/plat-trip/internal/service"
	"github.com/joeblew999/plat-trip/internal/templates"
)

// Tag is the OpenAPI tag of every planner operation.
const Tag = "planner"

// Config configures the planner handlers.
type Config struct {
	Sessions *service.SessionService
	Trips    *service.TripService
	Renderer *templates.Renderer
	StyleURL string
	Logger   *zap.Logger
}

// Handler serves the planner page and its Datastar actions.
type Handler struct {
	humastar.Handler
	sessions *service.SessionService
	trips    *service.TripService
	styleURL string
	log      *zap.Logger
}

// New creates the planner handlers.
func New(cfg Config) *Handler {
	if cfg.Renderer == nil {
		cfg.Renderer = templates.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		Handler:  humastar.Handler{Renderer: cfg.Renderer},
		sessions: cfg.Sessions,
		trips:    cfg.Trips,
		styleURL: cfg.StyleURL,
		log:      cfg.Logger,
	}
}

// RegisterRoutes registers the Datastar endpoints.
func (h *Handler) RegisterRoutes(api huma.API) {
	tags := huma.OperationTags(Tag)
	huma.Get(api, "/api/v1/planner/{session}/events", h.Events, tags)
	huma.Post(api, "/api/v1/planner/{session}/click", h.Click, tags)
	huma.Post(api, "/api/v1/planner/{session}/locate", h.Locate, tags)
	huma.Post(api, "/api/v1/planner/{session}/stops/{stop}/drag", h.Drag, tags)
	huma.Delete(api, "/api/v1/planner/{session}/stops/{index}", h.Remove, tags)
	huma.Post(api, "/api/v1/planner/{session}/route/toggle", h.ToggleRoute, tags)
	huma.Post(api, "/api/v1/planner/{session}/popups/toggle", h.TogglePopups, tags)
	huma.Post(api, "/api/v1/planner/{session}/next", h.Next, tags)
}

// SessionInput addresses a planner session.
type SessionInput struct {
	Session string `path:"session" doc:"Planner session ID"`
}

// PositionInput carries a position in the lng and lat signals.
type PositionInput struct {
	SessionInput
	humastar.SignalsInput
}

// DragInput carries the dragged stop and its drop position.
type DragInput struct {
	PositionInput
	Stop string `path:"stop" doc:"Stop ID"`
}

// RemoveInput addresses a stop by its list index.
type RemoveInput struct {
	SessionInput
	Index int `path:"index" doc:"Zero-based index of the stop to remove"`
}

func (h *Handler) session(id string) (*service.Session, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid session id")
	}
	sess, err := h.sessions.Get(sid)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return sess, nil
}

// position reads the lng and lat signals.
func position(in *humastar.SignalsInput) (orb.Point, error) {
	signals, err := in.Parse()
	if err != nil {
		return orb.Point{}, err
	}
	pos, ok := signals.Point("lng", "lat")
	if !ok {
		return orb.Point{}, huma.Error400BadRequest("lng and lat signals are required")
	}
	return pos, nil
}

// act runs fn on the session loop and reports the outcome as signals.
func (h *Handler) act(sess *service.Session, action string, fn func(m *planner.Manager) error) *huma.StreamResponse {
	return h.Stream(func(sse humastar.SSE) {
		err := sess.Do(sse.Context(), fn)
		if err != nil {
			h.report(sse, sess, action, err)
			return
		}
		sse.Ok()
	})
}

func (h *Handler) report(sse humastar.SSE, sess *service.Session, action string, err error) {
	msg, known := userMessage(err)
	log := h.log.With(zap.String("session", sess.ID().String()), zap.String("action", action), zap.Error(err))
	if known {
		log.Debug("planner action rejected")
	} else {
		log.Error("planner action failed")
	}
	sse.Error(msg)
}

// userMessage turns an action error into text for the page.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, planner.ErrInputSuspended):
		return "Please wait for the address lookup to finish", true
	case errors.Is(err, planner.ErrInvalidPosition):
		return "That position is outside the map", true
	case errors.Is(err, planner.ErrStopNotFound), errors.Is(err, planner.ErrIndexOutOfRange):
		return "That stop no longer exists", true
	case errors.Is(err, planner.ErrDeviceLocationUnavailable):
		return "Your location is unavailable", true
	case errors.Is(err, service.ErrTripIncomplete):
		return "Add a pick up and a drop off point and wait for their addresses", true
	case errors.Is(err, service.ErrSessionClosed), errors.Is(err, service.ErrSessionNotFound):
		return "This planner session has ended, reload the page", true
	}
	return "Something went wrong", false
}

// Page data for the planner template.
type Page struct {
	Session   uuid.UUID
	StyleURL  string
	CenterLng float64
	CenterLat float64
	Zoom      float64
}

// ServePage renders the planner page. It resumes the session named by the
// session query parameter when it is still live, otherwise it starts one.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	var sess *service.Session
	if id, err := uuid.Parse(r.URL.Query().Get("session")); err == nil {
		sess, _ = h.sessions.Get(id)
	}
	if sess == nil {
		sess = h.sessions.Create()
	}

	html, err := h.Renderer.Render("planner", Page{
		Session:   sess.ID(),
		StyleURL:  h.styleURL,
		CenterLng: service.DefaultCenter.Lon(),
		CenterLat: service.DefaultCenter.Lat(),
		Zoom:      service.DefaultZoom,
	})
	if err != nil {
		h.log.Error("render planner page", zap.Error(err))
		http.Error(w, fmt.Sprintf("render planner page: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}
