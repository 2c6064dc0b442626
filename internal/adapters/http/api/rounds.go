package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/spotter/internal/app"
	"github.com/okian/spotter/internal/domain/round"
)

// RoundsHandler handles the round lifecycle endpoints.
type RoundsHandler struct {
	deps Dependencies
}

// NewRoundsHandler creates a rounds handler.
func NewRoundsHandler(deps Dependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps}
}

// createRoundRequest mirrors the OpenAPI schema for POST /api/rounds.
// Dimensions and target come from the image service that prepared the
// puzzle; this service only judges clicks against them.
type createRoundRequest struct {
	ImageID     string  `json:"image_id"`
	PlayerID    string  `json:"player_id"`
	DisplayName string  `json:"display_name"`
	NativeW     float64 `json:"native_width"`
	NativeH     float64 `json:"native_height"`
	TargetX     float64 `json:"target_x"`
	TargetY     float64 `json:"target_y"`
	TargetR     float64 `json:"target_radius"`
}

func (c createRoundRequest) validate() error {
	switch {
	case strings.TrimSpace(c.ImageID) == "":
		return NewKind("missing image_id", ErrBadRequest)
	case strings.TrimSpace(c.PlayerID) == "":
		return NewKind("missing player_id", ErrBadRequest)
	case c.NativeW <= 0 || c.NativeH <= 0:
		return NewKind("native dimensions must be positive", ErrBadRequest)
	case c.TargetR <= 0:
		return NewKind("target_radius must be positive", ErrBadRequest)
	}
	return nil
}

type roundResponse struct {
	RoundID  string `json:"round_id"`
	ImageID  string `json:"image_id"`
	PlayerID string `json:"player_id"`
	Status   string `json:"status"`
	Misses   int    `json:"misses"`
}

func newRoundResponse(s *round.Session) roundResponse {
	return roundResponse{
		RoundID:  s.ID(),
		ImageID:  s.ImageID(),
		PlayerID: s.PlayerID(),
		Status:   string(s.Status()),
		Misses:   s.Misses(),
	}
}

type clickRequest struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	RenderedW float64 `json:"rendered_width"`
	RenderedH float64 `json:"rendered_height"`
}

type clickResponse struct {
	Result  string           `json:"result"`
	Misses  int              `json:"misses"`
	Summary *summaryResponse `json:"summary,omitempty"`
}

// summaryResponse is the settlement summary shown to the player.
type summaryResponse struct {
	RoundID    string  `json:"round_id"`
	ImageID    string  `json:"image_id"`
	PlayerID   string  `json:"player_id"`
	Outcome    string  `json:"outcome"`
	RawMS      float64 `json:"raw_ms"`
	UsedMS     float64 `json:"used_ms"`
	Misses     int     `json:"misses"`
	BaselineMS float64 `json:"baseline_ms"`
	Ratio      float64 `json:"ratio"`
	Score      float64 `json:"score"`
	Rated      bool    `json:"rated"`

	PlayerBefore float64 `json:"player_rating_before,omitempty"`
	PlayerAfter  float64 `json:"player_rating_after,omitempty"`
	ImageBefore  float64 `json:"image_rating_before,omitempty"`
	ImageAfter   float64 `json:"image_rating_after,omitempty"`
	TotalDelta   float64 `json:"rating_delta,omitempty"`

	SaveError string `json:"save_error,omitempty"`
}

func newSummaryResponse(s *round.Summary) *summaryResponse {
	if s == nil {
		return nil
	}
	return &summaryResponse{
		RoundID:      s.RoundID,
		ImageID:      s.ImageID,
		PlayerID:     s.PlayerID,
		Outcome:      string(s.Outcome),
		RawMS:        s.RawMS,
		UsedMS:       s.UsedMS,
		Misses:       s.Misses,
		BaselineMS:   s.BaselineMS,
		Ratio:        s.Ratio,
		Score:        s.Score,
		Rated:        s.Rated,
		PlayerBefore: s.PlayerBefore,
		PlayerAfter:  s.PlayerAfter,
		ImageBefore:  s.ImageBefore,
		ImageAfter:   s.ImageAfter,
		TotalDelta:   s.TotalDelta,
		SaveError:    s.SaveError,
	}
}

func clickResultString(r round.ClickResult) string {
	switch r {
	case round.ClickHit:
		return "hit"
	case round.ClickMiss:
		return "miss"
	case round.ClickHardStop:
		return "hard_stop"
	default:
		return "ignored"
	}
}

// HandleCreateRound handles POST /api/rounds.
func (h *RoundsHandler) HandleCreateRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_round"
	var req createRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	sess, err := h.deps.CreateRound(r.Context(), service.CreateRoundParams{
		ImageID:     req.ImageID,
		PlayerID:    req.PlayerID,
		DisplayName: req.DisplayName,
		NativeW:     req.NativeW,
		NativeH:     req.NativeH,
		Target:      round.Target{X: req.TargetX, Y: req.TargetY, Radius: req.TargetR},
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRoundResponse(sess))
}

// HandleStartRound handles POST /api/rounds/{roundID}/start.
func (h *RoundsHandler) HandleStartRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_round"
	sess, err := h.deps.StartRound(r.Context(), chi.URLParam(r, "roundID"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, newRoundResponse(sess))
}

// HandleClick handles POST /api/rounds/{roundID}/clicks.
func (h *RoundsHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	const op = "api.click"
	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	roundID := chi.URLParam(r, "roundID")
	result, summary, err := h.deps.RegisterClick(r.Context(), roundID, round.Click{
		X:         req.X,
		Y:         req.Y,
		RenderedW: req.RenderedW,
		RenderedH: req.RenderedH,
	})
	if err != nil {
		writeServiceError(w, op, err)
		return
	}

	resp := clickResponse{
		Result:  clickResultString(result),
		Summary: newSummaryResponse(summary),
	}
	if summary != nil {
		resp.Misses = summary.Misses
	} else if sess, err := h.deps.Round(roundID); err == nil {
		resp.Misses = sess.Misses()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGiveUp handles POST /api/rounds/{roundID}/giveup.
func (h *RoundsHandler) HandleGiveUp(w http.ResponseWriter, r *http.Request) {
	const op = "api.give_up"
	summary, err := h.deps.GiveUp(r.Context(), chi.URLParam(r, "roundID"))
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, clickResponse{
		Result:  "give_up",
		Misses:  summary.Misses,
		Summary: newSummaryResponse(summary),
	})
}
