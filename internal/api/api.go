package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/searchdeck/searchdeck/internal/auth"
	"github.com/searchdeck/searchdeck/internal/config"
	"github.com/searchdeck/searchdeck/internal/users"
)

// Api wires the auth controller to its routes.
type Api struct {
	Config *config.Config
	Router *chi.Mux

	log    *slog.Logger
	users  users.Store
	tokens *auth.TokenManager
}

// New builds the API with its routes registered.
func New(cfg *config.Config, log *slog.Logger, store users.Store) (*Api, error) {
	if cfg.APIPort == 0 {
		return nil, fmt.Errorf("must have a port to start the API")
	}

	api := &Api{
		Config: cfg,
		Router: chi.NewRouter(),
		log:    log,
		users:  store,
		tokens: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	}

	api.setupRoutes()
	return api, nil
}

func (api *Api) setupRoutes() {
	r := api.Router

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   api.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/heartbeat"))

	gate := auth.NewMiddleware(api.tokens, api.users, api.log, nil)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", api.RegisterHandler)
		r.Post("/login", api.LoginHandler)
		r.Post("/logout", api.LogoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(gate.RequireAuth)
			r.Get("/verify-token", api.VerifyTokenHandler)
		})
	})
}

// requestLogger logs each request through the structured logger.
func (api *Api) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		api.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Serve starts the HTTP server. It blocks until the server exits.
func (api *Api) Serve() error {
	addr := fmt.Sprintf("0.0.0.0:%d", api.Config.APIPort)
	api.log.Info("starting API server", "addr", addr, "environment", api.Config.Environment)
	return http.ListenAndServe(addr, api.Router)
}
