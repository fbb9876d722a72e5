package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/poi-discovery-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// MCP transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	MCPTransport    string

	// Nominatim geocoding configuration.
	NominatimURL       string
	NominatimUserAgent string
	GeocodeMinInterval time.Duration
	GeocodeTimeout     time.Duration

	// Overpass endpoint pool configuration.
	OverpassEndpoints  []string
	OverpassTimeout    time.Duration
	OverpassBackoff    []time.Duration
	OverpassMaxResults int
	EndpointCooldown   time.Duration

	// SerpApi brand search configuration.
	SerpAPIKey     string
	SerpAPIURL     string
	SerpAPITimeout time.Duration

	// Brand and category policy.
	BrandName              string
	BrandAliases           []string
	BrandTagPattern        string
	CategoryName           string
	CategoryTag            string
	CategoryKeywords       []string
	ContextKeywords        []string
	ContextKeywordsEnabled bool

	DefaultRadiusM float64
	MaxRadiusM     float64
	DefaultLimit   int

	// Discovery events. Publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		MCPTransport:    strings.ToLower(sharedcfg.EnvOrDefault("MCP_TRANSPORT", TransportHTTP)),

		NominatimURL:       sharedcfg.EnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
		NominatimUserAgent: sharedcfg.EnvOrDefault("NOMINATIM_USER_AGENT", "poi-discovery-service/1.0"),
		GeocodeMinInterval: p.duration("GEOCODE_MIN_INTERVAL", "1.1s", false),
		GeocodeTimeout:     p.duration("GEOCODE_TIMEOUT", "10s", false),

		OverpassEndpoints: splitList(sharedcfg.EnvOrDefault("OVERPASS_ENDPOINTS",
			"https://overpass-api.de/api/interpreter,https://overpass.kumi.systems/api/interpreter,https://overpass.private.coffee/api/interpreter")),
		OverpassTimeout:    p.duration("OVERPASS_TIMEOUT", "15s", false),
		OverpassBackoff:    p.durations("OVERPASS_BACKOFF", "0s,600ms,1200ms"),
		OverpassMaxResults: p.positiveInt("OVERPASS_MAX_RESULTS", "100"),
		EndpointCooldown:   p.duration("ENDPOINT_COOLDOWN", "60s", true),

		SerpAPIKey:     os.Getenv("SERPAPI_KEY"),
		SerpAPIURL:     sharedcfg.EnvOrDefault("SERPAPI_URL", "https://serpapi.com/search.json"),
		SerpAPITimeout: p.duration("SERPAPI_TIMEOUT", "15s", false),

		BrandName:              sharedcfg.EnvOrDefault("BRAND_NAME", "Bank of America"),
		BrandAliases:           splitList(sharedcfg.EnvOrDefault("BRAND_ALIASES", "bank of america,bofa,bankofamerica")),
		BrandTagPattern:        sharedcfg.EnvOrDefault("BRAND_TAG_PATTERN", "Bank of America|BofA"),
		CategoryName:           sharedcfg.EnvOrDefault("CATEGORY_NAME", "ATM"),
		CategoryTag:            sharedcfg.EnvOrDefault("CATEGORY_TAG", "amenity=atm"),
		CategoryKeywords:       splitList(sharedcfg.EnvOrDefault("CATEGORY_KEYWORDS", "atm")),
		ContextKeywords:        splitList(sharedcfg.EnvOrDefault("CONTEXT_KEYWORDS", "drive,cash")),
		ContextKeywordsEnabled: p.boolean("CONTEXT_KEYWORDS_ENABLED", "true"),

		DefaultRadiusM: p.positiveFloat("DEFAULT_RADIUS_M", "3000"),
		MaxRadiusM:     p.positiveFloat("MAX_RADIUS_M", "10000"),
		DefaultLimit:   p.positiveInt("DEFAULT_LIMIT", "10"),

		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "poi-discovery-events"),
	}
	if p.err != nil {
		return nil, p.err
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TagFilter returns the Overpass filter for the configured category and brand.
func (c *Config) TagFilter() domain.TagFilter {
	// CATEGORY_TAG is checked by validate.
	f, _ := domain.ParseTagFilter(c.CategoryTag)
	f.BrandPattern = c.BrandTagPattern
	f.MaxResults = c.OverpassMaxResults
	return f
}

// BrandRule returns the listing matcher rule.
func (c *Config) BrandRule() domain.BrandRule {
	return domain.BrandRule{
		Aliases:          c.BrandAliases,
		CategoryKeywords: c.CategoryKeywords,
		ContextKeywords:  c.ContextKeywords,
		UseContext:       c.ContextKeywordsEnabled,
	}
}

// EventsEnabled reports whether discovery events should be published.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) validate() error {
	if c.MCPTransport != TransportHTTP && c.MCPTransport != TransportStdio {
		return fmt.Errorf("MCP_TRANSPORT must be %q or %q, got %q", TransportHTTP, TransportStdio, c.MCPTransport)
	}
	if strings.TrimSpace(c.NominatimUserAgent) == "" {
		return errors.New("NOMINATIM_USER_AGENT must identify this application")
	}
	if err := validateURL("NOMINATIM_URL", c.NominatimURL); err != nil {
		return err
	}
	if err := validateURL("SERPAPI_URL", c.SerpAPIURL); err != nil {
		return err
	}
	if len(c.OverpassEndpoints) == 0 {
		return errors.New("OVERPASS_ENDPOINTS must list at least one endpoint")
	}
	for _, ep := range c.OverpassEndpoints {
		if err := validateURL("OVERPASS_ENDPOINTS", ep); err != nil {
			return err
		}
	}
	if _, err := domain.ParseTagFilter(c.CategoryTag); err != nil {
		return fmt.Errorf("CATEGORY_TAG: %w", err)
	}
	if len(c.BrandAliases) == 0 {
		return errors.New("BRAND_ALIASES must list at least one alias")
	}
	if c.MaxRadiusM < c.DefaultRadiusM {
		return fmt.Errorf("MAX_RADIUS_M (%g) must not be below DEFAULT_RADIUS_M (%g)", c.MaxRadiusM, c.DefaultRadiusM)
	}
	if c.EventsEnabled() && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: %q is not an absolute http(s) URL", key, raw)
	}
	return nil
}

// splitList splits a comma-separated value, trimming blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser records the first parse failure so Load can read every variable
// in one pass.
type parser struct {
	err error
}

func (p *parser) fail(key, raw, want string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: must be %s", key, raw, want)
	}
}

func (p *parser) duration(key, def string, allowZero bool) time.Duration {
	raw := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		want := "a positive duration"
		if allowZero {
			want = "a non-negative duration"
		}
		p.fail(key, raw, want)
		return 0
	}
	return d
}

func (p *parser) durations(key, def string) []time.Duration {
	raw := sharedcfg.EnvOrDefault(key, def)
	parts := splitList(raw)
	if len(parts) == 0 {
		p.fail(key, raw, "a comma-separated list of durations")
		return nil
	}
	out := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(part)
		if err != nil || d < 0 {
			p.fail(key, raw, "a comma-separated list of non-negative durations")
			return nil
		}
		out = append(out, d)
	}
	return out
}

func (p *parser) positiveInt(key, def string) int {
	raw := sharedcfg.EnvOrDefault(key, def)
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		p.fail(key, raw, "a positive integer")
		return 0
	}
	return n
}

func (p *parser) positiveFloat(key, def string) float64 {
	raw := sharedcfg.EnvOrDefault(key, def)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		p.fail(key, raw, "a positive number")
		return 0
	}
	return f
}

func (p *parser) boolean(key, def string) bool {
	raw := sharedcfg.EnvOrDefault(key, def)
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, "true or false")
		return false
	}
	return b
}
