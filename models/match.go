package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCanceled   MatchStatus = "canceled"
)

// Side идентифицирует сторону матча: участник 1 или участник 2.
type Side int

const (
	SideNone Side = 0
	Side1    Side = 1
	Side2    Side = 2
)

func (s Side) Valid() bool {
	return s == Side1 || s == Side2
}

// Other возвращает противоположную сторону.
func (s Side) Other() Side {
	switch s {
	case Side1:
		return Side2
	case Side2:
		return Side1
	default:
		return SideNone
	}
}

// SetScore — итоговый счёт одного завершённого сета.
type SetScore struct {
	SetNumber int  `json:"set_number"`
	Score1    int  `json:"score1"`
	Score2    int  `json:"score2"`
	Winner    Side `json:"winner"`
}

// Match — запланированная встреча двух участников на корте.
// Все поля счёта (Score1/Score2, SetsWon1/SetsWon2, Score,
// WinnerParticipantID) — материализованная проекция журнала розыгрышей;
// источником истины остаётся сам журнал, проекция пересчитывается при
// каждом добавлении розыгрыша.
type Match struct {
	ID                  int         `json:"id"`
	TournamentID        int         `json:"tournament_id"`
	Participant1ID      int         `json:"participant1_id"`
	Participant2ID      int         `json:"participant2_id"`
	CourtNumber         *int        `json:"court_number,omitempty"`
	MatchNumber         *int        `json:"match_number,omitempty"`
	MatchTime           *time.Time  `json:"match_time,omitempty"`
	Status              MatchStatus `json:"status"`
	Score1              int         `json:"score1"`
	Score2              int         `json:"score2"`
	SetsWon1            int         `json:"sets_won_1"`
	SetsWon2            int         `json:"sets_won_2"`
	Score               *string     `json:"score,omitempty"` // итог матча в формате "2:1"
	WinnerParticipantID *int        `json:"winner_participant_id,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// ParticipantID возвращает id участника, играющего за указанную сторону.
func (m *Match) ParticipantID(s Side) int {
	if s == Side1 {
		return m.Participant1ID
	}
	return m.Participant2ID
}

// IsTerminal сообщает, достиг ли матч конечного статуса.
func (m *Match) IsTerminal() bool {
	return m.Status == MatchStatusCompleted || m.Status == MatchStatusCanceled
}
