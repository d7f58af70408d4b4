// Package server wires the planner services, the Huma API and the pages
// into one http.Handler.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-trip/internal/api"
	"github.com/joeblew999/plat-trip/internal/api/planner"
	"github.com/joeblew999/plat-trip/internal/db"
	"github.com/joeblew999/plat-trip/internal/events"
	"github.com/joeblew999/plat-trip/internal/geocode"
	"github.com/joeblew999/plat-trip/internal/humastar"
	tripplanner "github.com/joeblew999/plat-trip/internal/planner"
	"github.com/joeblew999/plat-trip/internal/service"
	"github.com/joeblew999/plat-trip/internal/templates"
)

// DefaultMapStyle is a keyless MapLibre style.
const DefaultMapStyle = "https://demotiles.maplibre.org/style.json"

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	WebDir  string // Optional override for templates/ and static/
	// ReloadTemplates re-reads WebDir templates on every planner page load.
	ReloadTemplates bool

	GeocoderURL     string
	GeocoderKey     string
	GeocoderRPS     float64
	GeocoderTimeout time.Duration

	Cooldown   time.Duration // zero means the default, negative disables it
	SessionTTL time.Duration // zero keeps idle sessions forever

	KafkaBrokers []string
	KafkaTopic   string
	BookingURL   string
	MapStyleURL  string

	Logger *zap.Logger
}

// Server is the trip planner HTTP server.
type Server struct {
	config    Config
	log       *zap.Logger
	mux       *http.ServeMux
	humaAPI   huma.API
	db        *sql.DB
	services  *api.Services
	publisher events.Publisher
	renderer  *templates.Renderer
	links     humastar.Links
	stop      context.CancelFunc
}

// New creates a new trip planner server.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MapStyleURL == "" {
		cfg.MapStyleURL = DefaultMapStyle
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = tripplanner.DefaultCooldown
	}
	s := &Server{
		config: cfg,
		log:    cfg.Logger,
		mux:    http.NewServeMux(),
	}

	humaConfig := huma.DefaultConfig("plat-trip API", "1.0.0")
	humaConfig.Info.Description = "Server-driven trip planning: stop list, live map scene and booking handoff."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers,
		humastar.LinkTransformer(func() humastar.Links { return s.links }))
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.renderer = s.loadRenderer()

	var repo service.TripRepository
	if conn, err := db.Open(context.Background(), db.Config{DataDir: cfg.DataDir, DBName: "trips"}); err != nil {
		s.log.Warn("trip store unavailable, booking handoff disabled", zap.Error(err))
	} else {
		s.db = conn
		repo = db.NewTripStore(conn)
	}

	if len(cfg.KafkaBrokers) > 0 {
		s.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, s.log.Named("events"))
	} else {
		s.publisher = events.NopPublisher{Logger: s.log.Named("events")}
	}

	if cfg.GeocoderKey == "" {
		s.log.Warn("no geocoder API key, addresses will be unavailable")
	}
	geocoder := geocode.New(geocode.Config{
		BaseURL:           cfg.GeocoderURL,
		APIKey:            cfg.GeocoderKey,
		RequestsPerSecond: cfg.GeocoderRPS,
		Timeout:           cfg.GeocoderTimeout,
		Logger:            s.log.Named("geocode"),
	})

	sessions := service.NewSessionService(service.SessionConfig{
		Geocoder: geocoder,
		Cooldown: cfg.Cooldown,
		Logger:   s.log.Named("planner"),
	})
	s.services = &api.Services{
		Sessions: sessions,
		Trips: service.NewTripService(sessions, service.TripConfig{
			Repository: repo,
			Publisher:  s.publisher,
			Topic:      cfg.KafkaTopic,
			BookingURL: cfg.BookingURL,
			Logger:     s.log.Named("trips"),
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go sessions.RunJanitor(ctx, cfg.SessionTTL, cfg.SessionTTL/4)

	s.routes()
	return s
}

// loadRenderer prefers templates under WebDir and falls back to the
// embedded ones.
func (s *Server) loadRenderer() *templates.Renderer {
	if s.config.WebDir != "" {
		dir := filepath.Join(s.config.WebDir, "templates")
		r, err := templates.New(dir)
		if err == nil {
			s.log.Info("loaded templates", zap.String("dir", dir))
			return r
		}
		s.log.Warn("using embedded templates", zap.String("dir", dir), zap.Error(err))
	}
	return templates.Default()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// OpenAPI returns the OpenAPI document of every registered operation.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Services returns the services behind the API.
func (s *Server) Services() *api.Services {
	return s.services
}

// Close stops the janitor, ends all sessions and releases the store and
// the event publisher.
func (s *Server) Close() error {
	s.stop()
	s.services.Sessions.Close()
	err := s.publisher.Close()
	if s.db != nil {
		err = errors.Join(err, s.db.Close())
	}
	return err
}

func (s *Server) routes() {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	huma.AutoRegister(s.humaAPI, api.NewAPIHandler(s.services))
	api.NewInfoHandler(api.InfoConfig{
		DataDir:  s.config.DataDir,
		DB:       s.db != nil,
		Geocoder: s.config.GeocoderKey != "",
		Events:   len(s.config.KafkaBrokers) > 0,
	}).RegisterRoutes(s.humaAPI)

	// Planner SSE routes using Huma + Datastar SDK
	plannerHandler := planner.New(planner.Config{
		Sessions: s.services.Sessions,
		Trips:    s.services.Trips,
		Renderer: s.renderer,
		StyleURL: s.config.MapStyleURL,
		Logger:   s.log.Named("planner"),
	})
	plannerHandler.RegisterRoutes(s.humaAPI)

	s.links = api.Links(s.humaAPI)

	// Static files and pages
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(s.staticFS())))
	s.mux.HandleFunc("GET /planner", s.reloading(plannerHandler.ServePage))
	s.mux.HandleFunc("/", s.handleRoot)
}

// reloading re-parses the templates before next when hot reload is on.
func (s *Server) reloading(next http.HandlerFunc) http.HandlerFunc {
	if !s.config.ReloadTemplates || s.config.WebDir == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.renderer.Reload(); err != nil {
			s.log.Warn("template reload failed", zap.Error(err))
		}
		next(w, r)
	}
}

func (s *Server) staticFS() http.FileSystem {
	if s.config.WebDir != "" {
		dir := filepath.Join(s.config.WebDir, "static")
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}
	return http.FS(templates.Static())
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-trip",
		"status":  "running",
		"planner": "/planner",
	})
}
