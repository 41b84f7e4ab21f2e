package app

import (
	"log/slog"

	"github.com/betpoints/platform/internal/auth"
	"github.com/betpoints/platform/internal/handler"
	adminhandler "github.com/betpoints/platform/internal/handler/admin"
	"github.com/betpoints/platform/internal/infra"
	"github.com/go-chi/chi/v5"
)

// Accounts is what the router needs from the account service.
type Accounts interface {
	handler.Accounts
	adminhandler.Auditor
}

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	JWTMgr     *auth.JWTManager
	Logger     *slog.Logger
	Metrics    *infra.Metrics
	Wagers     handler.Wagers
	Accounts   Accounts
	Settler    adminhandler.Settler
	Health     infra.HealthFunc
	CORSOrigin string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	bets := handler.NewBetHandler(deps.Wagers, deps.Accounts)
	settlementAdmin := adminhandler.NewSettlementAdminHandler(deps.Settler, deps.Accounts)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger, deps.Metrics))
	r.Use(handler.CORSWithOrigins(deps.CORSOrigin))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/healthz", handler.HealthHandler(deps.Health))

	// Player-authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.AuthenticatePlayer(deps.JWTMgr))

		r.Get("/balance", bets.Balance)
		r.Get("/limits", bets.Limits)
		r.Get("/matches/{matchID}/odds", bets.Quote)

		r.Route("/bets", func(r chi.Router) {
			r.Post("/", bets.PlaceBet)
			r.Get("/", bets.MyBets)
		})
	})

	// Admin-authenticated routes
	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.AuthenticateAdmin(deps.JWTMgr))

		r.With(auth.RequireRole(auth.AllAdminRoles()...)).
			Get("/users/{userID}/audit", settlementAdmin.Audit)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.WriteRoles()...))

			r.Post("/bets/{betID}/settle", settlementAdmin.SettleBet)
			r.Put("/matches/{matchID}", settlementAdmin.PutMatch)
			r.Post("/matches/{matchID}/finished", settlementAdmin.MatchFinished)
			r.Post("/selections/{selectionID}/result", settlementAdmin.SetSelectionResult)
			r.Post("/settlement/sweep", settlementAdmin.Sweep)
		})
	})

	return r
}
