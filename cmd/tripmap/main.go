package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-trip/internal/db"
	"github.com/joeblew999/plat-trip/internal/geocode"
	"github.com/joeblew999/plat-trip/internal/logger"
	"github.com/joeblew999/plat-trip/internal/server"
)

// Options defines all CLI flags and env vars for the trip server.
// Flags: --host, --port, --data-dir, --web-dir, --env, --geocoder-key, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_GEOCODER_KEY, ...
type Options struct {
	Host    string `doc:"Host to bind to" default:"0.0.0.0"`
	Port    int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir string `doc:"Directory for the trip store" default:".data"`
	WebDir  string `doc:"Optional web/ directory overriding the embedded templates and static files"`
	Env     string `doc:"Runtime environment (development or production)" default:"development"`

	GeocoderURL     string `doc:"OpenCage geocoding endpoint" default:"https://api.opencagedata.com/geocode/v1/json"`
	GeocoderKey     string `doc:"OpenCage API key"`
	GeocoderRPS     int    `doc:"Outbound geocoding requests per second, 0 for unlimited" default:"1"`
	GeocoderTimeout string `doc:"Geocoding request timeout" default:"10s"`

	Cooldown   string `doc:"Input cooldown after each address lookup" default:"1500ms"`
	SessionTTL string `doc:"Idle planner sessions are closed after this long" default:"30m"`

	KafkaBrokers string `doc:"Comma separated Kafka brokers for trip events, empty to disable"`
	KafkaTopic   string `doc:"Kafka topic for trip events" default:"trip.events"`
	BookingURL   string `doc:"Booking page the planner hands trips off to" default:"/booking"`
	MapStyle     string `doc:"MapLibre style URL" default:"https://demotiles.maplibre.org/style.json"`
}

func duration(name, v string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s %q: %v\n", name, v, err)
		os.Exit(1)
	}
	return d
}

func brokers(v string) []string {
	var out []string
	for _, b := range strings.Split(v, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func newLogger(opts *Options) *zap.Logger {
	log, err := logger.NewNamed(opts.Env, "plat-trip")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

func newServer(opts *Options, log *zap.Logger) *server.Server {
	return server.New(server.Config{
		Host:            opts.Host,
		Port:            fmt.Sprintf("%d", opts.Port),
		DataDir:         opts.DataDir,
		WebDir:          opts.WebDir,
		ReloadTemplates: opts.Env == "development",
		GeocoderURL:     opts.GeocoderURL,
		GeocoderKey:     opts.GeocoderKey,
		GeocoderRPS:     float64(opts.GeocoderRPS),
		GeocoderTimeout: duration("geocoder timeout", opts.GeocoderTimeout),
		Cooldown:        duration("cooldown", opts.Cooldown),
		SessionTTL:      duration("session ttl", opts.SessionTTL),
		KafkaBrokers:    brokers(opts.KafkaBrokers),
		KafkaTopic:      opts.KafkaTopic,
		BookingURL:      opts.BookingURL,
		MapStyleURL:     opts.MapStyle,
		Logger:          log,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		log := newLogger(opts)
		srv := newServer(opts, log)
		addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
		httpServer := &http.Server{Addr: addr, Handler: srv}

		hooks.OnStart(func() {
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-trip server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Println()
			fmt.Printf("  Planner: %s/planner\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			log.Info("listening", zap.String("addr", addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				log.Warn("shutdown", zap.Error(err))
			}
			if err := srv.Close(); err != nil {
				log.Warn("close", zap.Error(err))
			}
			log.Sync()
		})
	})

	cli.Root().Use = "tripmap"
	cli.Root().Short = "Trip planning map with booking handoff"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv := newServer(opts, zap.NewNop())
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			var err error
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// geocode subcommand: one reverse lookup with the configured geocoder
	geocodeCmd := &cobra.Command{
		Use:   "geocode <lng> <lat>",
		Short: "Reverse geocode a position",
		Args:  cobra.ExactArgs(2),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			lng, errLng := strconv.ParseFloat(args[0], 64)
			lat, errLat := strconv.ParseFloat(args[1], 64)
			if errLng != nil || errLat != nil {
				fmt.Fprintln(os.Stderr, "lng and lat must be numbers")
				os.Exit(1)
			}
			client := geocode.New(geocode.Config{
				BaseURL: opts.GeocoderURL,
				APIKey:  opts.GeocoderKey,
				Timeout: duration("geocoder timeout", opts.GeocoderTimeout),
				Logger:  newLogger(opts),
			})
			addr, err := client.ReverseGeocode(cmd.Context(), orb.Point{lng, lat})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(addr)
		}),
	}
	cli.Root().AddCommand(geocodeCmd)

	// trips subcommand: list stored trips
	tripsCmd := &cobra.Command{
		Use:   "trips",
		Short: "List planned trips from the trip store",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			limit, _ := cmd.Flags().GetInt("limit")
			conn, err := db.Open(cmd.Context(), db.Config{DataDir: opts.DataDir, DBName: "trips"})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening trip store: %v\n", err)
				os.Exit(1)
			}
			defer conn.Close()

			trips, err := db.NewTripStore(conn).List(cmd.Context(), 0, limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error listing trips: %v\n", err)
				os.Exit(1)
			}
			for _, t := range trips {
				fmt.Printf("%s  %s  %d stops  %.1f km\n", t.ID, t.CreatedAt.Format(time.RFC3339), len(t.Stops), t.DistanceKm)
				for _, s := range t.Stops {
					fmt.Printf("    %-6s %s\n", s.Role, s.Address)
				}
			}
		}),
	}
	tripsCmd.Flags().IntP("limit", "n", db.DefaultPageSize, "Number of trips to list")
	cli.Root().AddCommand(tripsCmd)

	cli.Run()
}
