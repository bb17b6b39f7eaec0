package handlers

import (
	"net/http"

	"marketplace/internal/auth"
	"marketplace/internal/config"
	"marketplace/internal/middleware"
	"marketplace/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handler struct {
	cfg      config.Config
	bookings BookingService
	wallets  WalletService
	messages MessageService
	admin    AdminService
	hub      *websocket.Hub
	limiter  *middleware.RateLimiter
}

func New(cfg config.Config, bookings BookingService, wallets WalletService, messages MessageService, admin AdminService, hub *websocket.Hub, limiter *middleware.RateLimiter) *Handler {
	return &Handler{
		cfg:      cfg,
		bookings: bookings,
		wallets:  wallets,
		messages: messages,
		admin:    admin,
		hub:      hub,
		limiter:  limiter,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Metrics)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		if h.limiter != nil {
			r.Use(h.limiter.Middleware)
		}
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Get("/ws/events", h.WSEvents)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.CreateBooking)
			r.Get("/", h.ListBookings)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetBooking)
				r.Post("/price", h.PriceBooking)
				r.Post("/reject", h.RejectBooking)
				r.Post("/confirm", h.ConfirmBooking)
				r.Post("/complete", h.CompleteBooking)
				r.Post("/pay", h.PayBooking)
				r.Post("/review", h.CreateReview)
				r.Get("/review", h.GetReview)
				r.Get("/messages", h.ListMessages)
				r.Post("/messages", h.SendMessage)
				r.Post("/messages/read", h.MarkMessagesRead)
			})
		})
		r.Get("/messages/unread-count", h.UnreadCount)

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", h.GetWallet)
			r.Get("/transactions", h.ListWalletTransactions)
			r.Get("/requests", h.ListWalletRequests)
			r.Post("/deposits", h.RequestDeposit)
			r.Post("/withdrawals", h.RequestWithdrawal)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleAdmin))
			r.Get("/wallet/requests", h.AdminListWalletRequests)
			r.Post("/wallet/requests/{id}/resolve", h.ResolveWalletRequest)
			r.Post("/providers/{id}/verify", h.VerifyProvider)
			r.Get("/audit", h.ListAudit)
			r.Get("/reconcile", h.Reconcile)
		})
	})
	return router
}
