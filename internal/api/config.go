package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/FocuswithJustin/versewatch/internal/metrics"
)

// Config holds server configuration.
type Config struct {
	Addr              string
	AllowedOrigins    []string   // WebSocket and CORS origins (empty = same origin only)
	MaxFragmentBytes  int        // Largest accepted fragment (0 = validation.MaxFragmentLength)
	ShutdownTimeout   time.Duration
	RateLimitRequests int        // Requests per minute (0 = disabled)
	RateLimitBurst    int        // Burst size
	Auth              AuthConfig // Authentication configuration
	Version           string     // Reported by /health

	// Metrics records request outcomes; nil uses metrics.DefaultMetrics.
	Metrics *metrics.Metrics
	// Gatherer is served on /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}
