package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentActive       TournamentStatus = "active"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCanceled     TournamentStatus = "canceled"
)

// ServeRule определяет правило перехода подачи в рамках турнира.
type ServeRule string

const (
	// ServeSideOut — подача переходит к выигравшей розыгрыш стороне,
	// только если она принимала (классический side-out).
	ServeSideOut ServeRule = "side_out"
	// ServeRallyPoint — подача чередуется каждый розыгрыш независимо от победителя.
	ServeRallyPoint ServeRule = "rally_point"
)

// Tournament представляет турнир и его правила счёта.
// Правила неизменяемы после начала матчей; административные правки
// выполняет внешний слой.
type Tournament struct {
	ID            int              `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Description   *string          `json:"description,omitempty" db:"description"`
	SportType     string           `json:"sport_type" db:"sport_type"`
	CourtCount    int              `json:"court_count" db:"court_count"`
	MatchDuration int              `json:"match_duration" db:"match_duration"` // минуты
	BreakDuration int              `json:"break_duration" db:"break_duration"` // минуты
	PointsWin     int              `json:"points_win" db:"points_win"`
	PointsDraw    int              `json:"points_draw" db:"points_draw"`
	PointsLoss    int              `json:"points_loss" db:"points_loss"`
	PointsToWin   int              `json:"points_to_win" db:"points_to_win"`
	SetsToWin     int              `json:"sets_to_win" db:"sets_to_win"`
	SetPointCap   int              `json:"set_point_cap" db:"set_point_cap"` // 0 — без потолка
	ServeRule     ServeRule        `json:"serve_rule" db:"serve_rule"`
	Status        TournamentStatus `json:"status" db:"status"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}
