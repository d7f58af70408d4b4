package humastar

import (
	"fmt"
	"strings"
)

// Action is a hypermedia action advertised as an RFC 8288 Link header with
// method and title parameters:
//
//	</api/v1/sessions/42/handoff>; rel="handoff"; method="POST"; title="Hand the trip off to booking"
type Action struct {
	Rel    string
	Href   string
	Method string
	Title  string
}

// Actor is implemented by response bodies whose available actions depend on
// the resource's state.
type Actor interface {
	Actions() []Action
}

// LinkHeader formats the action as a Link header value.
func (a Action) LinkHeader() string {
	var b strings.Builder
	fmt.Fprintf(&b, `<%s>; rel="%s"`, a.Href, a.Rel)
	if a.Method != "" {
		fmt.Fprintf(&b, `; method="%s"`, a.Method)
	}
	if a.Title != "" {
		fmt.Fprintf(&b, `; title="%s"`, a.Title)
	}
	return b.String()
}

// ActionDef is an action template. Pattern holds a single %s for the
// resource ID.
type ActionDef struct {
	Rel     string
	Pattern string
	Method  string
	Title   string
}

// ActionsFor expands defs for one resource. When allow is not nil only the
// rels it accepts are returned.
func ActionsFor(id string, defs []ActionDef, allow func(rel string) bool) []Action {
	actions := make([]Action, 0, len(defs))
	for _, d := range defs {
		if allow != nil && !allow(d.Rel) {
			continue
		}
		actions = append(actions, Action{
			Rel:    d.Rel,
			Href:   fmt.Sprintf(d.Pattern, id),
			Method: d.Method,
			Title:  d.Title,
		})
	}
	return actions
}
