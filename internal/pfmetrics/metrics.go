package pfmetrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 10 * time.Second
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// PageViews compte les évènements enregistrés par l'ingestion
	PageViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_page_views_total",
		Help: "Total number of tracked page views",
	})

	ContactSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_contact_submissions_total",
		Help: "Total number of stored contact submissions",
	})

	// GeoLookups est labellisé par result: ok, failed, skipped
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_geo_lookups_total",
			Help: "Geolocation lookups by result",
		},
		[]string{"result"},
	)
)

// Middleware collecte la durée et le nombre de requêtes par route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// route déclarée plutôt que le chemin brut pour borner la cardinalité
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// NewServer construit le serveur http qui expose /metrics
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
}
