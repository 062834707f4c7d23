package models

import "time"

// MatchLog — журнал административных действий над матчем (отмена,
// компенсация розыгрыша, завершение). Только запись; логика счёта эти
// записи не интерпретирует.
type MatchLog struct {
	ID        int       `json:"id"`
	MatchID   int       `json:"match_id"`
	Action    string    `json:"action"`
	Details   *string   `json:"details,omitempty"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	MatchLogActionStarted   = "match_started"
	MatchLogActionCompleted = "match_completed"
	MatchLogActionCanceled  = "match_canceled"
	MatchLogActionCorrected = "rally_corrected"
)
