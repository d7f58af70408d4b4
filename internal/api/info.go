package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// InfoConfig describes what the running service has wired.
type InfoConfig struct {
	DataDir  string
	DB       bool
	Geocoder bool
	Events   bool
}

type InfoHandler struct {
	cfg InfoConfig
}

func NewInfoHandler(cfg InfoConfig) *InfoHandler {
	return &InfoHandler{cfg: cfg}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"dataDir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether the trip store is available"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"planner", "routing"}
	if h.cfg.Geocoder {
		features = append(features, "geocoding")
	}
	if h.cfg.DB {
		features = append(features, "duckdb", "booking")
	}
	if h.cfg.Events {
		features = append(features, "kafka")
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "plat-trip",
		Version:  "0.1.0",
		DataDir:  h.cfg.DataDir,
		DB:       h.cfg.DB,
		Features: features,
	}}, nil
}
