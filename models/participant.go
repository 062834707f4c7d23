package models

import "time"

// Participant — участник турнира (игрок или пара).
// Поля points/wins/losses — проекция таблицы результатов, которую
// ведёт StandingService по завершённым матчам.
type Participant struct {
	ID           int       `json:"id"`
	TournamentID int       `json:"tournament_id"`
	Name         string    `json:"name"`
	Points       int       `json:"points"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	SetsFor      int       `json:"sets_for"`
	SetsAgainst  int       `json:"sets_against"`
	CreatedAt    time.Time `json:"created_at"`
}
