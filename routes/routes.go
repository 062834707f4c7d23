package routes

import (
	"net/http"

	"github.com/ValeryMukhin1712/tournaments-sub001/handlers"
	"github.com/ValeryMukhin1712/tournaments-sub001/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
)

// SetupRoutes собирает все маршруты движка счёта. Запись (розыгрыши,
// исправления, отмена) идёт через ScoringHandler, остальное — чтение.
func SetupRoutes(
	router *chi.Mux,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	scoringHandler *handlers.ScoringHandler,
	standingsHandler *handlers.StandingsHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
	registry *prometheus.Registry,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", healthHandler.HealthzHandler)
	router.Method(http.MethodGet, "/metrics", metrics.Handler(registry))

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListTournamentsHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetTournamentHandler)
		r.Get("/{tournamentID}/participants", tournamentHandler.ListParticipantsHandler)
		r.Get("/{tournamentID}/matches", matchHandler.ListTournamentMatchesHandler)
		r.Get("/{tournamentID}/standings", standingsHandler.ListStandingsHandler)
		r.Post("/{tournamentID}/standings/recompute", standingsHandler.RecomputeStandingsHandler)
	})

	router.Route("/matches/{matchID}", func(r chi.Router) {
		// Сводное состояние матча: проекция + текущая партия + подача.
		r.Get("/", scoringHandler.GetMatchViewHandler)
		r.Get("/record", matchHandler.GetMatchHandler)
		r.Get("/log", matchHandler.GetMatchLogHandler)

		r.Get("/rallies", scoringHandler.ListRalliesHandler)
		r.Post("/rallies", scoringHandler.SubmitRallyHandler)
		r.Post("/corrections", scoringHandler.CorrectRallyHandler)
		r.Post("/cancel", scoringHandler.CancelMatchHandler)
	})

	router.Get("/ws/matches/{matchID}", webSocketHandler.ServeWs)
}
