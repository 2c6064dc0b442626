// Package api declares HTTP contracts and route registration for the
// scoring engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/okian/spotter/internal/adapters/http/swagger"
	"github.com/okian/spotter/internal/adapters/repository"
	service "github.com/okian/spotter/internal/app"
	"github.com/okian/spotter/internal/domain/round"
	"github.com/okian/spotter/internal/domain/types"
)

const requestTimeout = 30 * time.Second

// Dependencies required by the HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	CreateRound(ctx context.Context, p service.CreateRoundParams) (*round.Session, error)
	StartRound(ctx context.Context, roundID string) (*round.Session, error)
	RegisterClick(ctx context.Context, roundID string, c round.Click) (round.ClickResult, *round.Summary, error)
	GiveUp(ctx context.Context, roundID string) (*round.Summary, error)
	Round(roundID string) (*round.Session, error)
	Player(ctx context.Context, playerID string) (types.Entry, error)
	Leaderboard(ctx context.Context, limit int) ([]types.Entry, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the engine API.
type Server struct {
	roundsHandler      *RoundsHandler
	playersHandler     *PlayersHandler
	leaderboardHandler *LeaderboardHandler
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		roundsHandler:      NewRoundsHandler(deps),
		playersHandler:     NewPlayersHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps),
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
	}
}

// Router builds the chi router with middleware and all routes attached.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(requestTimeout))

	swagger.Register(r)

	r.Get("/healthz", Instrument("healthz", s.healthHandler.HandleHealth))
	r.Get("/metrics", Instrument("metrics", s.healthHandler.HandleMetrics))
	r.Get("/stats", Instrument("stats", s.statsHandler.HandleStats))

	r.Route("/api", func(r chi.Router) {
		r.Post("/rounds", Instrument("create_round", s.roundsHandler.HandleCreateRound))
		r.Post("/rounds/{roundID}/start", Instrument("start_round", s.roundsHandler.HandleStartRound))
		r.Post("/rounds/{roundID}/clicks", Instrument("click", s.roundsHandler.HandleClick))
		r.Post("/rounds/{roundID}/giveup", Instrument("give_up", s.roundsHandler.HandleGiveUp))
		r.Get("/players/{playerID}", Instrument("player", s.playersHandler.HandleGetPlayer))
		r.Get("/leaderboard", Instrument("leaderboard", s.leaderboardHandler.HandleGetLeaderboard))
	})

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service and store sentinels to HTTP status
// codes; anything unrecognized is a 500.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrRoundNotFound), errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrRoundConflict):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}
