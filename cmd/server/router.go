package main

import (
	"time"

	"fido/cmd/server/handlers"
	"fido/cmd/server/handlers/httperr"
	notesHandlers "fido/cmd/server/handlers/notes"
	"fido/cmd/server/middlewares"
	"fido/internal/config"
	"fido/internal/logger"
	"fido/internal/services/notelist"
	notesServices "fido/internal/services/notes"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	RateLimitExpiration = 1 * time.Minute
)

// routerDeps is everything the HTTP layer talks to.
type routerDeps struct {
	cfg      config.Config
	service  notesHandlers.Service
	engine   *notelist.Engine
	store    handlers.Pinger
	registry *prometheus.Registry
}

// setupRouter configures and returns a Fiber app with all routes
func setupRouter(deps routerDeps) *fiber.App {
	cfg := deps.cfg

	// Initialize validator and register the note title rule
	v := validator.New()
	if err := notesServices.RegisterTitleValidator(v); err != nil {
		logger.L().Error("failed to register title validator", "err", err)
		panic(err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: httperr.Handler,
		Immutable:    true, // make Fiber copy all request-derived strings
	})

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Content-Type",
	}))

	var rejected prometheus.Counter
	if cfg.RouteMetricsEnabled {
		reg := deps.registry
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		rejected = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notelist_events_rate_limited_total",
			Help: "Event requests rejected by the per-client rate limit",
		})
		reg.MustRegister(rejected)
		engine := deps.engine
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "notelist_snapshot_subscribers",
			Help: "Number of live snapshot subscriptions, WebSocket streams included",
		}, func() float64 { return float64(engine.Subscribers()) }))
		middlewares.AttachMetrics(app, reg)
	}

	// Health check endpoint, outside versioned API to appease scanners and to avoid logging
	app.Get("/healthz", handlers.Healthz(deps.store, cfg.StoreDriver))

	var v1 fiber.Router
	if cfg.RequestLoggingEnabled {
		v1 = app.Group("/api/v1", fiberlogger.New())
		logger.L().Info("request logging enabled")
	} else {
		v1 = app.Group("/api/v1")
		logger.L().Info("request logging disabled")
	}

	notesH := notesHandlers.NewHandlers(deps.service, deps.engine, v)

	notesGrp := v1.Group("/notes")
	notesGrp.Get("/", notesH.List)
	notesGrp.Post("/", notesH.Create)
	notesGrp.Get("/:id", notesH.Get)
	notesGrp.Put("/:id", notesH.Update)

	eventLimiter := middlewares.BuildRateLimiter(middlewares.RateLimit{
		Max:      cfg.EventRatePerMin,
		Window:   RateLimitExpiration,
		Rejected: rejected,
	})
	v1.Post("/events", eventLimiter, notesH.Dispatch)

	// WebSocket routes
	wsHandlers := notesHandlers.NewWebSocketHandlers(deps.engine, cfg.WSMaxSessionSec)
	app.Use("/ws", notesHandlers.LogWSConnections())
	app.Get("/ws/snapshots", wsHandlers.WSUpgrade, websocket.New(wsHandlers.WSSnapshotStream))

	return app
}
