// Command discover runs a single discovery and prints the result envelope as JSON.
//
// Usage:
//
//	go run ./cmd/discover -query "times square new york" -limit 5
//	go run ./cmd/discover -lat 40.758 -lon -73.9855 -radius 1500
//
// Configuration is read from the same environment variables as the service,
// after loading any variables in the -env file that are not already set.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/poi-discovery-service/internal/app"
	"github.com/couchcryptid/poi-discovery-service/internal/config"
	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
	"github.com/joho/godotenv"
)

func main() {
	query := flag.String("query", "", "free-text place to search near")
	lat := flag.Float64("lat", 0, "latitude of the search origin")
	lon := flag.Float64("lon", 0, "longitude of the search origin")
	radius := flag.Float64("radius", 0, "search radius in metres (coordinate mode)")
	limit := flag.Int("limit", 0, "maximum number of results, 1 to 25")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := loadEnv(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	req := buildRequest(set, *query, *lat, *lon, *radius, *limit)
	if _, err := req.Mode(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(req, os.Stdout, os.Stderr))
}

// loadEnv applies a dotenv file. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// buildRequest includes only the flags the operator actually set.
func buildRequest(set map[string]bool, query string, lat, lon, radius float64, limit int) domain.DiscoveryRequest {
	req := domain.DiscoveryRequest{Query: query}
	if set["lat"] {
		req.Lat = &lat
	}
	if set["lon"] {
		req.Lon = &lon
	}
	if set["radius"] {
		req.RadiusM = &radius
	}
	if set["limit"] {
		req.Limit = &limit
	}
	return req
}

func run(req domain.DiscoveryRequest, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "config:", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	a := app.New(cfg, logger, observability.NewMetricsForTesting())
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("event publisher close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := a.Pipeline.Discover(ctx, req)
	if err != nil {
		writeJSON(stdout, map[string]string{"error_kind": domain.KindOf(err), "message": err.Error()}, logger)
		return 1
	}
	writeJSON(stdout, result, logger)
	return 0
}

func writeJSON(w io.Writer, v any, logger *slog.Logger) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Error("failed to write result", "error", err)
	}
}
