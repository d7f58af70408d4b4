// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/joeblew999/plat-trip/internal/db"
	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/planner"
	"github.com/joeblew999/plat-trip/internal/service"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Sessions *service.SessionService
	Trips    *service.TripService
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Resource ID" example:"3f2b8c1e-4a5d-4e6f-9a7b-8c9d0e1f2a3b"`
}

func (i IDInput) parse() (uuid.UUID, error) {
	id, err := uuid.Parse(i.ID)
	if err != nil {
		return uuid.Nil, huma.Error400BadRequest("invalid id: " + err.Error())
	}
	return id, nil
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// SessionBody is a newly created planner session.
type SessionBody struct {
	ID         uuid.UUID `json:"id" doc:"Planner session ID"`
	PlannerURL string    `json:"plannerUrl" doc:"Planner page for this session"`
}

func (b SessionBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID.String(), sessionActions, nil)
}

// SessionStateBody is the current state of a planner session.
type SessionStateBody struct {
	service.Snapshot
}

func (b SessionStateBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.SessionID.String(), sessionActions, func(rel string) bool {
		return rel != "handoff" || b.StopCount >= 2
	})
}

var sessionActions = []humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/sessions/%s", Method: "DELETE", Title: "End session"},
	{Rel: "events", Pattern: "/api/v1/planner/%s/events", Method: "GET", Title: "Planner event stream"},
	{Rel: "handoff", Pattern: "/api/v1/sessions/%s/handoff", Method: "POST", Title: "Hand the trip off to booking"},
}

// TripBody is a stored trip.
type TripBody struct {
	db.Trip
}

type TripsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Number of trips to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Page size"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterSessions registers planner session routes.
func (h *APIHandler) RegisterSessions(api huma.API) {
	huma.Get(api, "/api/v1/sessions", h.GetSessions, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions", h.CreateSession, huma.OperationTags("sessions"), func(o *huma.Operation) {
		o.DefaultStatus = http.StatusCreated
	})
	huma.Get(api, "/api/v1/sessions/{id}", h.GetSession, huma.OperationTags("sessions"))
	huma.Delete(api, "/api/v1/sessions/{id}", h.DeleteSession, huma.OperationTags("sessions"))
	huma.Post(api, "/api/v1/sessions/{id}/handoff", h.Handoff, huma.OperationTags("sessions"))
}

// RegisterTrips registers stored trip routes.
func (h *APIHandler) RegisterTrips(api huma.API) {
	huma.Get(api, "/api/v1/trips", h.GetTrips, huma.OperationTags("trips"))
	huma.Get(api, "/api/v1/trips/{id}", h.GetTrip, huma.OperationTags("trips"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetSessions(ctx context.Context, input *struct{}) (*struct{ Body []service.SessionInfo }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return &struct{ Body []service.SessionInfo }{Body: []service.SessionInfo{}}, nil
	}
	return &struct{ Body []service.SessionInfo }{Body: h.svc.Sessions.List()}, nil
}

func (h *APIHandler) CreateSession(ctx context.Context, input *struct{}) (*struct{ Body SessionBody }, error) {
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error503ServiceUnavailable("service not available")
	}
	sess := h.svc.Sessions.Create()
	return &struct{ Body SessionBody }{Body: SessionBody{
		ID:         sess.ID(),
		PlannerURL: "/planner?session=" + sess.ID().String(),
	}}, nil
}

func (h *APIHandler) GetSession(ctx context.Context, input *IDInput) (*struct{ Body SessionStateBody }, error) {
	sess, err := h.session(input)
	if err != nil {
		return nil, err
	}
	return &struct{ Body SessionStateBody }{Body: SessionStateBody{Snapshot: sess.Latest()}}, nil
}

func (h *APIHandler) DeleteSession(ctx context.Context, input *IDInput) (*struct{}, error) {
	id, err := input.parse()
	if err != nil {
		return nil, err
	}
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	if err := h.svc.Sessions.Delete(id); err != nil {
		return nil, httpError(err)
	}
	return &struct{}{}, nil
}

func (h *APIHandler) Handoff(ctx context.Context, input *IDInput) (*struct{ Body service.Handoff }, error) {
	id, err := input.parse()
	if err != nil {
		return nil, err
	}
	if h.svc == nil || h.svc.Trips == nil {
		return nil, huma.Error503ServiceUnavailable("trip booking is not available")
	}
	handoff, err := h.svc.Trips.Handoff(ctx, id)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body service.Handoff }{Body: handoff}, nil
}

func (h *APIHandler) GetTrips(ctx context.Context, input *TripsInput) (*struct{ Body humastar.PageBody[db.Trip] }, error) {
	page := humastar.PageBody[db.Trip]{Offset: input.Offset, Limit: input.Limit, Data: []db.Trip{}}
	if h.svc == nil || h.svc.Trips == nil {
		return &struct{ Body humastar.PageBody[db.Trip] }{Body: page}, nil
	}
	trips, total, err := h.svc.Trips.List(ctx, input.Offset, input.Limit)
	if err != nil {
		return nil, httpError(err)
	}
	page.Data, page.Total = trips, total
	return &struct{ Body humastar.PageBody[db.Trip] }{Body: page}, nil
}

func (h *APIHandler) GetTrip(ctx context.Context, input *IDInput) (*struct{ Body TripBody }, error) {
	id, err := input.parse()
	if err != nil {
		return nil, err
	}
	if h.svc == nil || h.svc.Trips == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	trip, err := h.svc.Trips.Get(ctx, id)
	if err != nil {
		return nil, httpError(err)
	}
	return &struct{ Body TripBody }{Body: TripBody{Trip: trip}}, nil
}

func (h *APIHandler) session(input *IDInput) (*service.Session, error) {
	id, err := input.parse()
	if err != nil {
		return nil, err
	}
	if h.svc == nil || h.svc.Sessions == nil {
		return nil, huma.Error404NotFound("service not available")
	}
	sess, err := h.svc.Sessions.Get(id)
	if err != nil {
		return nil, httpError(err)
	}
	return sess, nil
}

// httpError maps service and planner errors onto HTTP problems.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, service.ErrTripNotFound),
		errors.Is(err, planner.ErrStopNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrSessionClosed):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrTripIncomplete):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, planner.ErrInvalidPosition), errors.Is(err, planner.ErrIndexOutOfRange),
		errors.Is(err, planner.ErrDeviceLocationUnavailable):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, planner.ErrInputSuspended):
		return huma.Error429TooManyRequests(err.Error())
	case errors.Is(err, service.ErrNoTripStore):
		return huma.Error503ServiceUnavailable(err.Error())
	}
	return huma.Error500InternalServerError("internal error", err)
}
