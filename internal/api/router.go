package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-local/internal/api/handlers"
	"github.com/isdelr/ender-local/internal/auth"
	"github.com/isdelr/ender-local/internal/metrics"
	"github.com/isdelr/ender-local/internal/monitoring"
	"github.com/isdelr/ender-local/internal/services"
	"github.com/isdelr/ender-local/internal/websocket"
	"github.com/rs/zerolog/log"
)

// Login attempts allowed per client IP.
const (
	loginRatePerSecond = 0.2
	loginBurst         = 5
)

// Dependencies bundles what the router hands to its handlers.
type Dependencies struct {
	Hub            *websocket.Hub
	Auth           *auth.Authenticator
	Servers        services.ServerServiceProvider
	Backups        services.BackupServiceProvider
	Events         services.EventServiceProvider
	Scheduler      handlers.BackupScheduler
	Host           monitoring.HostProbe
	AllowedOrigins []string
	SecureCookies  bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(deps.Auth, deps.SecureCookies)
	catalogHandler := handlers.NewCatalogHandler()
	serverHandler := handlers.NewServerHandler(deps.Servers)
	backupHandler := handlers.NewBackupHandler(deps.Backups)
	eventHandler := handlers.NewEventHandler(deps.Events)
	scheduleHandler := handlers.NewScheduleHandler(deps.Scheduler)
	systemHandler := handlers.NewSystemHandler(deps.Host)
	wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigins)

	r.Handle("/metrics", metrics.Handler())

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.With(auth.NewRateLimiter(loginRatePerSecond, loginBurst).Middleware).Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.Middleware)

			// WebSocket connection endpoint
			r.Get("/ws", wsHandler.Serve)

			r.Get("/server-types", catalogHandler.ServerTypes)
			r.Get("/properties/defaults", catalogHandler.PropertyDefaults)
			r.Get("/events", eventHandler.GetRecent)
			r.Get("/system", systemHandler.Get)

			r.Route("/backups/schedule", func(r chi.Router) {
				r.Get("/", scheduleHandler.Get)
				r.Post("/run", scheduleHandler.Run)
			})

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", serverHandler.GetAll)
				r.Post("/", serverHandler.Create)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", serverHandler.Get)
					r.Put("/", serverHandler.Update)
					r.Delete("/", serverHandler.Delete)

					r.Get("/properties", serverHandler.GetProperties)
					r.Put("/properties", serverHandler.UpdateProperties)
					r.Get("/ops", serverHandler.GetOps)
					r.Get("/status", serverHandler.GetStatus)
					r.Put("/status", serverHandler.SetStatus)

					r.Route("/backups", func(r chi.Router) {
						r.Get("/", backupHandler.GetAllForServer)
						r.Post("/", backupHandler.Create)
						r.Delete("/{backupId}", backupHandler.Delete)
						r.Post("/{backupId}/restore", backupHandler.Restore)
					})
				})
			})
		})
	})

	return r
}

// requestLogger logs each request through zerolog and counts it.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		}()
		next.ServeHTTP(ww, r)
	})
}
