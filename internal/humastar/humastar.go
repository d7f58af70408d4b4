// Package humastar bridges Huma operations and Datastar server-sent events.
//
// A Huma handler returns a [huma.StreamResponse] built with [Handler.Stream];
// the callback gets an [SSE] that patches page fragments and signals. Action
// requests carry the page's signals as a JSON body, read through
// [SignalsInput].
//
//	func (h *PlannerHandler) Click(ctx context.Context, in *ClickInput) (*huma.StreamResponse, error) {
//	    signals, err := in.Parse()
//	    if err != nil {
//	        return nil, err
//	    }
//	    return h.Stream(func(sse humastar.SSE) {
//	        sse.Patch(h.RenderList("stop-row", rows, "No stops yet", "Click the map"), "#stop-list")
//	        sse.Ok()
//	    }), nil
//	}
package humastar

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/paulmach/orb"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/joeblew999/plat-trip/internal/templates"
)

// Handler is embedded by handlers that answer with Datastar streams.
type Handler struct {
	Renderer *templates.Renderer
}

// Stream returns a StreamResponse that runs fn with an SSE writer.
func (h *Handler) Stream(fn func(sse SSE)) *huma.StreamResponse {
	return &huma.StreamResponse{
		Body: func(ctx huma.Context) {
			fn(NewSSE(ctx))
		},
	}
}

// RenderList renders one fragment per item, or the empty state.
func (h *Handler) RenderList(tmpl string, items []any, emptyTitle, emptyMsg string) string {
	return RenderList(h.Renderer, tmpl, items, emptyTitle, emptyMsg)
}

// SSE writes Datastar events to a Huma stream.
type SSE struct {
	*datastar.ServerSentEventGenerator
}

// NewSSE starts a Datastar stream on the request behind ctx. Only the
// humago adapter is supported.
func NewSSE(ctx huma.Context) SSE {
	r, w := humago.Unwrap(ctx)
	return SSE{datastar.NewSSE(w, r)}
}

// Patch replaces the children of the element matching selector.
func (s SSE) Patch(html, selector string) {
	s.PatchElements(html,
		datastar.WithSelector(selector),
		datastar.WithModeInner(),
		datastar.WithViewTransitions(),
	)
}

// Signals patches signals on the page.
func (s SSE) Signals(signals map[string]any) {
	s.MarshalAndPatchSignals(signals)
}

// Error shows msg in the page's error signal.
func (s SSE) Error(msg string) {
	s.Signals(map[string]any{"error": msg})
}

// Ok clears the page's error signal.
func (s SSE) Ok() {
	s.Error("")
}

// Signals are the values Datastar sends with an action, one flat JSON
// object per request.
type Signals map[string]any

// ParseSignals decodes a request body. An empty body has no signals.
func ParseSignals(body []byte) (Signals, error) {
	signals := Signals{}
	if len(bytes.TrimSpace(body)) == 0 {
		return signals, nil
	}
	if err := json.Unmarshal(body, &signals); err != nil {
		return nil, err
	}
	return signals, nil
}

// String returns a string signal, or "" when it is missing or not a string.
func (s Signals) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Number returns a finite numeric signal. Signals bound to text inputs
// arrive as strings and are parsed.
func (s Signals) Number(key string) (float64, bool) {
	var f float64
	switch v := s[key].(type) {
	case float64:
		f = v
	case string:
		var err error
		if f, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Point reads a longitude/latitude pair.
func (s Signals) Point(lngKey, latKey string) (orb.Point, bool) {
	lng, okLng := s.Number(lngKey)
	lat, okLat := s.Number(latKey)
	if !okLng || !okLat {
		return orb.Point{}, false
	}
	return orb.Point{lng, lat}, true
}

// SignalsInput is embedded in inputs of Datastar actions.
type SignalsInput struct {
	RawBody []byte
}

// Parse decodes the signals, answering malformed bodies with a 400.
func (i *SignalsInput) Parse() (Signals, error) {
	signals, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return signals, nil
}

// RenderList renders tmpl for each item into one HTML string. With no items
// the empty-state fragment is rendered instead.
func RenderList(r *templates.Renderer, tmpl string, items []any, emptyTitle, emptyMsg string) string {
	var buf bytes.Buffer
	if len(items) == 0 {
		r.RenderToBuffer(&buf, "empty-state", map[string]string{
			"Title": emptyTitle, "Message": emptyMsg,
		})
		return buf.String()
	}
	for _, item := range items {
		r.RenderToBuffer(&buf, tmpl, item)
	}
	return buf.String()
}
