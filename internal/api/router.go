package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/bidhall/internal/api/handlers"
	"github.com/isdelr/bidhall/internal/auth"
	"github.com/isdelr/bidhall/internal/services"
	"github.com/isdelr/bidhall/internal/websocket"
)

// RouterConfig carries the settings the HTTP layer needs.
type RouterConfig struct {
	AllowedOrigins   []string
	RoomsRequireAuth bool
	SecureCookies    bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(
	cfg RouterConfig,
	hub *websocket.Hub,
	tokens *auth.Manager,
	userService services.UserServiceProvider,
	auctionService services.AuctionServiceProvider,
	bidService services.BidServiceProvider,
) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService, tokens, cfg.SecureCookies)
	auctionHandler := handlers.NewAuctionHandler(auctionService)
	bidHandler := handlers.NewBidHandler(bidService, auctionService)
	wsHandler := handlers.NewWebSocketHandler(hub, bidService, auctionService, cfg.RoomsRequireAuth, cfg.AllowedOrigins)
	statsHandler := handlers.NewStatsHandler(hub)

	r.Get("/healthz", statsHandler.Health)

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", statsHandler.Health)
		r.Get("/stats", statsHandler.Get)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
			r.Post("/logout", userHandler.Logout)
		})

		r.Route("/auctions", func(r chi.Router) {
			r.Get("/", auctionHandler.GetAll)
			r.Get("/{id}", auctionHandler.Get)
			r.With(tokens.Required).Post("/", auctionHandler.Create)
		})

		// Anonymous bids reach the bid rules and are rejected as Unauthenticated.
		r.With(tokens.Optional).Post("/bids", bidHandler.Create)

		r.Route("/users", func(r chi.Router) {
			r.Use(tokens.Required)
			r.Get("/me", userHandler.GetMe)
			r.Put("/me", userHandler.UpdateMe)
			r.Get("/{id}", userHandler.Get)
			r.Get("/{id}/bids", bidHandler.ListForUser)
		})

		// Room connections for live auction updates
		r.With(tokens.Optional).Get("/rooms/{id}", wsHandler.Serve)
	})

	return r
}
