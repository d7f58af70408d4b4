package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trip/internal/api/planner"
	"github.com/joeblew999/plat-trip/internal/humastar"
)

// crossLinks are navigation links the OpenAPI structure cannot derive.
// Enables restish hypermedia navigation via `restish links <url>`.
var crossLinks = map[string][][2]string{
	"/health": {
		{"/api/v1/info", "info"},
		{"/planner", "planner"},
	},
	"/api/v1/info": {
		{"/health", "health"},
		{"/api/v1/sessions", "sessions"},
	},
	"/api/v1/sessions": {
		{"/api/v1/trips", "trips"},
	},
	"/api/v1/trips": {
		{"/api/v1/sessions", "sessions"},
	},
}

// Links derives the Link headers of every registered REST operation.
// Call after all routes are registered.
func Links(api huma.API) humastar.Links {
	links := humastar.AutoLinks(api, "/health", planner.Tag)
	for from, targets := range crossLinks {
		for _, t := range targets {
			links.Add(from, t[0], t[1])
		}
	}
	return links
}
