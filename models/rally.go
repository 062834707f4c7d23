package models

import "time"

// Rally — неизменяемая запись одного розыгрыша (очка).
// Журнал розыгрышей матча строго упорядочен: Seq начинается с 1 и растёт
// без пропусков. Записи никогда не изменяются и не удаляются; исправление
// ошибочного розыгрыша выполняется добавлением компенсирующей записи с
// заполненным CorrectsSeq (см. CorrectRally в сервисе счёта).
type Rally struct {
	ID           int       `json:"id"`
	MatchID      int       `json:"match_id"`
	TournamentID int       `json:"tournament_id"`
	Seq          int       `json:"seq"`
	SetNumber    int       `json:"set_number"`
	ServerSide   Side      `json:"server_side"`
	WinnerSide   Side      `json:"winner_side"`
	Score1       int       `json:"score1"` // счёт текущего сета после розыгрыша
	Score2       int       `json:"score2"`
	SwapCount    int       `json:"swap_count"` // число переходов подачи к этому моменту
	CorrectsSeq  *int      `json:"corrects_seq,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	RallyTime    time.Time `json:"rally_time"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsCorrection сообщает, является ли запись компенсирующей.
func (r *Rally) IsCorrection() bool {
	return r.CorrectsSeq != nil
}
