package handlers

import (
	"net/http"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/ValeryMukhin1712/tournaments-sub001/services"
)

type ScoringHandler struct {
	scoringService services.ScoringService
}

func NewScoringHandler(scoringService services.ScoringService) *ScoringHandler {
	return &ScoringHandler{scoringService: scoringService}
}

type submitRallyRequest struct {
	WinnerSide int  `json:"winner_side"`
	SetNumber  int  `json:"set_number,omitempty"`
	Score1     *int `json:"score1,omitempty"`
	Score2     *int `json:"score2,omitempty"`
}

// SubmitRallyHandler принимает один розыгрыш от судейской консоли и
// возвращает обновлённое представление матча.
func (h *ScoringHandler) SubmitRallyHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req submitRallyRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.scoringService.SubmitRally(r.Context(), matchID, services.SubmitRallyInput{
		WinnerSide: models.Side(req.WinnerSide),
		SetNumber:  req.SetNumber,
		Score1:     req.Score1,
		Score2:     req.Score2,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetMatchViewHandler отдаёт текущее представление матча.
func (h *ScoringHandler) GetMatchViewHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.scoringService.GetMatchView(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListRalliesHandler отдаёт журнал розыгрышей матча в порядке подачи.
func (h *ScoringHandler) ListRalliesHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	rallies, err := h.scoringService.ListRallies(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rallies": rallies}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type correctRallyRequest struct {
	Seq           int    `json:"seq"`
	CorrectedSide int    `json:"corrected_side"`
	Actor         string `json:"actor,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// CorrectRallyHandler добавляет компенсирующее событие для ошибочно
// записанного розыгрыша.
func (h *ScoringHandler) CorrectRallyHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req correctRallyRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	view, err := h.scoringService.CorrectRally(r.Context(), matchID, services.CorrectRallyInput{
		Seq:           req.Seq,
		CorrectedSide: models.Side(req.CorrectedSide),
		Actor:         req.Actor,
		Notes:         req.Notes,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type cancelMatchRequest struct {
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty"`
}

// CancelMatchHandler — административная отмена матча, необратимая.
func (h *ScoringHandler) CancelMatchHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req cancelMatchRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.scoringService.CancelMatch(r.Context(), matchID, req.Reason, req.Actor); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
