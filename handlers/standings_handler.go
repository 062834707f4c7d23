package handlers

import (
	"net/http"

	"github.com/ValeryMukhin1712/tournaments-sub001/services"
)

type StandingsHandler struct {
	standingService services.StandingService
}

func NewStandingsHandler(standingService services.StandingService) *StandingsHandler {
	return &StandingsHandler{standingService: standingService}
}

func (h *StandingsHandler) ListStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	standings, err := h.standingService.ListStandings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecomputeStandingsHandler перестраивает таблицу результатов по
// завершённым матчам. Административная операция.
func (h *StandingsHandler) RecomputeStandingsHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.standingService.RecomputeStandings(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	standings, err := h.standingService.ListStandings(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
