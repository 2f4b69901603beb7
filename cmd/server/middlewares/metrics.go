package middlewares

import (
	"strconv"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsPath is where AttachMetrics serves the registry. Scrapes are not
// observed themselves.
const MetricsPath = "/metrics"

var requestLabels = []string{"method", "path", "status"}

// normalizeRoutePath returns the route template ("/notes/:id") so label
// cardinality stays bounded; unmatched requests fall back to the raw path.
func normalizeRoutePath(c *fiber.Ctx) string {
	if route := c.Route(); route != nil {
		return route.Path
	}
	return c.Path()
}

// normalizeStatus folds a status code into its class, "2xx" to "5xx".
// Informational codes keep their exact value.
func normalizeStatus(status int) string {
	switch class := status / 100; class {
	case 2, 3, 4, 5:
		return strconv.Itoa(class) + "xx"
	}
	return strconv.Itoa(status)
}

// AttachMetrics registers the request collectors on reg and serves reg on
// MetricsPath. The engine collectors live on the same registry; a nil reg
// gets a fresh one.
func AttachMetrics(app *fiber.App, reg *prometheus.Registry) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reqDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, requestLabels)
	reqTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, requestLabels)
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})
	reg.MustRegister(reqDuration, reqTotal, inFlight)

	app.Use(func(c *fiber.Ctx) error {
		if c.Path() == MetricsPath {
			return c.Next()
		}

		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		err := c.Next()

		labels := prometheus.Labels{
			"method": c.Method(),
			"path":   normalizeRoutePath(c),
			"status": normalizeStatus(c.Response().StatusCode()),
		}
		reqDuration.With(labels).Observe(time.Since(start).Seconds())
		reqTotal.With(labels).Inc()
		return err
	})

	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}
