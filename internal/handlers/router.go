package handlers

import (
	"net/http"
	"time"

	"hati/internal/config"
	"hati/internal/db"
	"hati/internal/middleware"
	"hati/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Handler struct {
	txRunner    db.TxRunner
	cfg         config.Config
	logger      zerolog.Logger
	members     MemberStore
	expenses    ExpenseStore
	settlements SettlementStore
	agreements  AgreementStore
	audit       AuditStore
	service     LedgerService
	hub         *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, logger zerolog.Logger, members MemberStore, expenses ExpenseStore, settlements SettlementStore, agreements AgreementStore, audit AuditStore, service LedgerService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:    txRunner,
		cfg:         cfg,
		logger:      logger,
		members:     members,
		expenses:    expenses,
		settlements: settlements,
		agreements:  agreements,
		audit:       audit,
		service:     service,
		hub:         hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(h.requestLogger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Post("/teams", h.CreateTeam)
		r.Get("/teams", h.ListMyTeams)
		r.Get("/teams/{teamID}/members", h.ListMembers)
		r.Post("/teams/{teamID}/members", h.AddMember)
		r.Delete("/teams/{teamID}/members/{userID}", h.RemoveMember)

		r.Post("/teams/{teamID}/expenses", h.RecordExpense)
		r.Post("/teams/{teamID}/expenses/monthly", h.CreateMonthlyExpense)
		r.Get("/teams/{teamID}/expenses", h.ListExpenses)
		r.Patch("/expenses/{expenseID}", h.UpdateExpense)
		r.Delete("/expenses/{expenseID}", h.DeleteExpense)
		r.Get("/expenses/{expenseID}/settlements", h.ListExpenseSettlements)

		r.Get("/settlements", h.ListMySettlements)
		r.Post("/settlements/{settlementID}/pay", h.SubmitPayment)
		r.Post("/settlements/pay-batch", h.SubmitBatchPayment)
		r.Post("/settlements/{settlementID}/verify", h.VerifyPayment)

		r.Get("/teams/{teamID}/mutual-debts", h.MutualDebts)
		r.Get("/teams/{teamID}/balances", h.TeamBalances)
		r.Get("/agreements", h.ListMyAgreements)
		r.Post("/agreements", h.ProposeAgreement)
		r.Post("/agreements/{agreementID}/respond", h.RespondAgreement)
	})

	router.Get("/ws/settlements", h.WSSettlements)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}
