package scoring

import "github.com/ValeryMukhin1712/tournaments-sub001/models"

// Rules — параметры счёта одного турнира. Движок не хранит правила
// глобально: каждый матч считается по правилам своего турнира.
type Rules struct {
	PointsToWin int              // очков для победы в сете
	WinBy       int              // минимальный отрыв для завершения сета
	Cap         int              // жёсткий потолок очков; 0 — потолка нет
	SetsToWin   int              // выигранных сетов для победы в матче
	ServeRule   models.ServeRule // правило перехода подачи
}

// DefaultRules возвращает правила по умолчанию: до 11 очков с отрывом в 2,
// без потолка, до 2 выигранных сетов, side-out подача. Применяются, когда
// турнир не задаёт собственных параметров.
func DefaultRules() Rules {
	return Rules{
		PointsToWin: 11,
		WinBy:       2,
		Cap:         0,
		SetsToWin:   2,
		ServeRule:   models.ServeSideOut,
	}
}

// RulesForTournament собирает правила из записи турнира, подставляя
// значения по умолчанию вместо незаполненных полей.
func RulesForTournament(t *models.Tournament) Rules {
	r := DefaultRules()
	if t == nil {
		return r
	}
	if t.PointsToWin > 0 {
		r.PointsToWin = t.PointsToWin
	}
	if t.SetsToWin > 0 {
		r.SetsToWin = t.SetsToWin
	}
	if t.SetPointCap > 0 {
		r.Cap = t.SetPointCap
	}
	if t.ServeRule == models.ServeSideOut || t.ServeRule == models.ServeRallyPoint {
		r.ServeRule = t.ServeRule
	}
	return r
}

// MaxSets — максимально возможное число сетов в матче.
func (r Rules) MaxSets() int {
	return r.SetsToWin*2 - 1
}

// setWinner возвращает победителя сета при счёте (a, b), либо SideNone,
// если сет продолжается. Сет завершён, когда сторона набрала PointsToWin
// с отрывом не меньше WinBy, либо достигла потолка Cap независимо от отрыва.
func (r Rules) setWinner(a, b int) models.Side {
	if r.Cap > 0 {
		if a >= r.Cap {
			return models.Side1
		}
		if b >= r.Cap {
			return models.Side2
		}
	}
	if a >= r.PointsToWin && a-b >= r.WinBy {
		return models.Side1
	}
	if b >= r.PointsToWin && b-a >= r.WinBy {
		return models.Side2
	}
	return models.SideNone
}
