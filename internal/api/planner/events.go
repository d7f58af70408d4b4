package planner

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/joeblew999/plat-trip/internal/humastar"
	"github.com/joeblew999/plat-trip/internal/planner"
	"github.com/joeblew999/plat-trip/internal/service"
)

// SceneEvent is the browser event carrying the map scene.
const SceneEvent = "trip-scene"

// Events streams the session: the current snapshot first, then every
// published change until the client goes away or the session ends.
func (h *Handler) Events(ctx context.Context, input *SessionInput) (*huma.StreamResponse, error) {
	sess, err := h.session(input.Session)
	if err != nil {
		return nil, err
	}
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := sess.Bus().Subscribe()
			defer sess.Bus().Unsubscribe(ch)

			var seq uint64
			send := func(snap service.Snapshot) {
				if snap.Seq <= seq {
					return
				}
				seq = snap.Seq
				h.sendSnapshot(sse, snap)
			}

			send(sess.Latest())
			for {
				select {
				case <-sse.Context().Done():
					return
				case snap, ok := <-ch:
					if !ok {
						sse.Error("This planner session has ended, reload the page")
						return
					}
					send(snap)
				}
			}
		},
	}, nil
}

func (h *Handler) sendSnapshot(sse humastar.SSE, snap service.Snapshot) {
	sse.Patch(h.renderList(snap.SessionID, snap.List), "#stop-list")
	sse.Signals(map[string]any{
		"inputenabled":  snap.InputEnabled,
		"routevisible":  snap.RouteVisible,
		"popupsvisible": snap.PopupsVisible,
		"routekm":       snap.RouteKm,
		"stopcount":     snap.StopCount,
	})
	sse.DispatchCustomEvent(SceneEvent, snap.Scene)
}

// stopRow is the template data of one list row.
type stopRow struct {
	Session uuid.UUID
	planner.Row
}

func (h *Handler) renderList(session uuid.UUID, list planner.ListViewModel) string {
	items := make([]any, len(list.Rows))
	for i, r := range list.Rows {
		items[i] = stopRow{Session: session, Row: r}
	}
	return h.RenderList("stop-row", items, "No stops yet", "Click the map to add a pick up point")
}
