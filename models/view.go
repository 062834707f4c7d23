package models

// MatchView — агрегированное представление матча, возвращаемое фасадом
// счёта после каждой операции. Собирается из проекции матча и replay
// журнала розыгрышей, всегда согласованно (никогда не отражает
// частично применённый розыгрыш).
type MatchView struct {
	MatchID             int         `json:"match_id"`
	TournamentID        int         `json:"tournament_id"`
	Status              MatchStatus `json:"status"`
	SetsWon1            int         `json:"sets_won_1"`
	SetsWon2            int         `json:"sets_won_2"`
	CurrentSet          int         `json:"current_set"`
	CurrentSetScore1    int         `json:"current_set_score1"`
	CurrentSetScore2    int         `json:"current_set_score2"`
	CompletedSets       []SetScore  `json:"completed_sets,omitempty"`
	ServerSide          Side        `json:"server_side"`
	SwapCount           int         `json:"swap_count"`
	RallyCount          int         `json:"rally_count"`
	WinnerSide          Side        `json:"winner_side,omitempty"`
	WinnerParticipantID *int        `json:"winner_participant_id,omitempty"`
	Score               *string     `json:"score,omitempty"`
}
