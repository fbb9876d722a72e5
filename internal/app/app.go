// Package app assembles the discovery pipeline and its upstream clients from configuration.
package app

import (
	"log/slog"

	"github.com/couchcryptid/poi-discovery-service/internal/adapter/kafka"
	"github.com/couchcryptid/poi-discovery-service/internal/adapter/mcpserver"
	"github.com/couchcryptid/poi-discovery-service/internal/adapter/nominatim"
	"github.com/couchcryptid/poi-discovery-service/internal/adapter/overpass"
	"github.com/couchcryptid/poi-discovery-service/internal/adapter/serpapi"
	"github.com/couchcryptid/poi-discovery-service/internal/config"
	"github.com/couchcryptid/poi-discovery-service/internal/observability"
	"github.com/couchcryptid/poi-discovery-service/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

// Name and Version identify the service to MCP clients.
const (
	Name    = "poi-discovery-service"
	Version = "1.0.0"
)

// App holds the wired pipeline and the resources that must be released on shutdown.
type App struct {
	Pipeline  *pipeline.Pipeline
	Geocoder  *nominatim.CachedGeocoder
	Pool      *overpass.Pool
	publisher *kafka.Publisher
}

// New wires the geocoder, endpoint pool, brand search, and optional event
// publisher into a pipeline.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *App {
	clock := clockwork.NewRealClock()

	throttle := nominatim.NewThrottle(cfg.GeocodeMinInterval, clock)
	geoClient := nominatim.NewClient(cfg.NominatimURL, cfg.NominatimUserAgent, cfg.GeocodeTimeout, throttle, metrics, logger)
	geocoder := nominatim.NewCachedGeocoder(geoClient, metrics)

	pool := overpass.NewPool(cfg.OverpassEndpoints, cfg.OverpassBackoff, cfg.OverpassTimeout, metrics, logger,
		overpass.WithClock(clock),
		overpass.WithCooldown(cfg.EndpointCooldown),
	)

	listings := serpapi.NewClient(cfg.SerpAPIKey, cfg.SerpAPIURL, cfg.SerpAPITimeout, metrics, logger)
	if !listings.Configured() {
		logger.Warn("SERPAPI_KEY not set, free-text discovery will fail with a configuration error")
	}

	a := &App{Geocoder: geocoder, Pool: pool}

	var opts []pipeline.Option
	if cfg.EventsEnabled() {
		a.publisher = kafka.NewPublisher(cfg, metrics, logger)
		opts = append(opts, pipeline.WithPublisher(a.publisher))
		logger.Info("discovery events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	a.Pipeline = pipeline.New(geocoder, pool, listings, Settings(cfg), logger, metrics, opts...)
	logger.Info("discovery pipeline ready",
		"brand", cfg.BrandName, "category", cfg.CategoryName, "endpoints", len(cfg.OverpassEndpoints))
	return a
}

// Settings derives the pipeline policy from configuration.
func Settings(cfg *config.Config) pipeline.Settings {
	return pipeline.Settings{
		BrandName:      cfg.BrandName,
		CategoryName:   cfg.CategoryName,
		Rule:           cfg.BrandRule(),
		Filter:         cfg.TagFilter(),
		DefaultRadiusM: cfg.DefaultRadiusM,
		MaxRadiusM:     cfg.MaxRadiusM,
		DefaultLimit:   cfg.DefaultLimit,
	}
}

// ServerInfo describes the MCP server for the configured brand and category.
func ServerInfo(cfg *config.Config) mcpserver.Info {
	return mcpserver.Info{
		Name:         Name,
		Version:      Version,
		BrandName:    cfg.BrandName,
		CategoryName: cfg.CategoryName,
	}
}

// EventsEnabled reports whether a publisher was wired.
func (a *App) EventsEnabled() bool {
	return a.publisher != nil
}

// Close flushes pending discovery events.
func (a *App) Close() error {
	if a.publisher == nil {
		return nil
	}
	return a.publisher.Close()
}
