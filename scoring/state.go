package scoring

import (
	"fmt"
	"time"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
)

// State — производное состояние матча, полностью восстановимое из журнала
// розыгрышей (replay). Движок не обращается к БД: сервисный слой загружает
// журнал, строит State и сохраняет результат как проекцию на записи матча.
type State struct {
	Rules         Rules
	LastSeq       int
	CurrentSet    int
	Score1        int
	Score2        int
	SetsWon1      int
	SetsWon2      int
	CompletedSets []models.SetScore
	Server        models.Side
	SwapCount     int
	Completed     bool
	Winner        models.Side
}

// NewState возвращает состояние пустого журнала: первый сет, счёт 0:0,
// подаёт участник 1.
func NewState(rules Rules) *State {
	return &State{
		Rules:      rules,
		CurrentSet: 1,
		Server:     firstServerOfSet(1),
	}
}

// Первую подачу сета выполняют стороны по очереди: нечётные сеты начинает
// участник 1, чётные — участник 2.
func firstServerOfSet(setNumber int) models.Side {
	if setNumber%2 == 1 {
		return models.Side1
	}
	return models.Side2
}

// effectiveWinners проверяет структурные инварианты журнала и возвращает
// фактического победителя каждого очкового события с учётом компенсаций:
// компенсирующая запись замещает победителя розыгрыша, на который ссылается,
// сама очком не являясь. Второй результат — упорядоченные номера очковых
// событий.
func effectiveWinners(rallies []models.Rally) (map[int]models.Side, []int, error) {
	winners := make(map[int]models.Side, len(rallies))
	order := make([]int, 0, len(rallies))

	for i := range rallies {
		r := &rallies[i]
		if r.Seq != i+1 {
			return nil, nil, fmt.Errorf("%w: sequence gap at position %d (seq %d)", ErrInvalidEvent, i+1, r.Seq)
		}
		if !r.WinnerSide.Valid() {
			return nil, nil, fmt.Errorf("%w: rally %d has no declared winner", ErrInvalidEvent, r.Seq)
		}
		if r.CorrectsSeq == nil {
			winners[r.Seq] = r.WinnerSide
			order = append(order, r.Seq)
			continue
		}
		target := *r.CorrectsSeq
		if _, ok := winners[target]; !ok {
			return nil, nil, fmt.Errorf("%w: correction %d references unknown rally %d", ErrInvalidEvent, r.Seq, target)
		}
		winners[target] = r.WinnerSide
	}
	return winners, order, nil
}

// Replay восстанавливает состояние матча из журнала с нуля.
// Для одного и того же журнала результат детерминирован и совпадает с
// состоянием, которое движок держал при живом добавлении событий.
func Replay(rules Rules, rallies []models.Rally) (*State, error) {
	winners, order, err := effectiveWinners(rallies)
	if err != nil {
		return nil, err
	}

	s := NewState(rules)
	for _, seq := range order {
		if s.Completed {
			return nil, fmt.Errorf("%w: rally %d recorded after match completion", ErrInvalidEvent, seq)
		}
		s.applyPoint(winners[seq])
	}
	s.LastSeq = len(rallies)
	return s, nil
}

// applyPoint добавляет очко стороне winner, двигает подачу и закрывает
// сет/матч при достижении условий победы.
func (s *State) applyPoint(winner models.Side) (setDone *models.SetScore, matchDone bool) {
	if winner == models.Side1 {
		s.Score1++
	} else {
		s.Score2++
	}

	switch s.Rules.ServeRule {
	case models.ServeRallyPoint:
		s.Server = s.Server.Other()
		s.SwapCount++
	default: // side-out: подача переходит, только если выиграл принимающий
		if winner != s.Server {
			s.Server = winner
			s.SwapCount++
		}
	}

	w := s.Rules.setWinner(s.Score1, s.Score2)
	if w == models.SideNone {
		return nil, false
	}

	set := models.SetScore{
		SetNumber: s.CurrentSet,
		Score1:    s.Score1,
		Score2:    s.Score2,
		Winner:    w,
	}
	s.CompletedSets = append(s.CompletedSets, set)
	if w == models.Side1 {
		s.SetsWon1++
	} else {
		s.SetsWon2++
	}

	if s.SetsWon1 >= s.Rules.SetsToWin || s.SetsWon2 >= s.Rules.SetsToWin {
		s.Completed = true
		if s.SetsWon1 >= s.Rules.SetsToWin {
			s.Winner = models.Side1
		} else {
			s.Winner = models.Side2
		}
		return &set, true
	}

	s.CurrentSet++
	s.Score1, s.Score2 = 0, 0
	s.Server = firstServerOfSet(s.CurrentSet)
	return &set, false
}

// ValidateClaim сверяет заявку судейской консоли с производным состоянием.
// claimedSet == 0 означает «сет не заявлен»; claimed1/claimed2 — заявленный
// счёт сета после розыгрыша, если консоль его передала.
func (s *State) ValidateClaim(winner models.Side, claimedSet int, claimed1, claimed2 *int) error {
	if s.Completed {
		return ErrMatchCompleted
	}
	if claimedSet != 0 && claimedSet != s.CurrentSet {
		return fmt.Errorf("%w: claimed set %d, current set %d", ErrSetAlreadyDecided, claimedSet, s.CurrentSet)
	}
	if claimed1 == nil && claimed2 == nil {
		return nil
	}

	exp1, exp2 := s.Score1, s.Score2
	if winner == models.Side1 {
		exp1++
	} else {
		exp2++
	}
	if claimed1 == nil || claimed2 == nil || *claimed1 != exp1 || *claimed2 != exp2 {
		c1, c2 := -1, -1
		if claimed1 != nil {
			c1 = *claimed1
		}
		if claimed2 != nil {
			c2 = *claimed2
		}
		return fmt.Errorf("%w: claimed score %d:%d, expected %d:%d", ErrInvalidEvent, c1, c2, exp1, exp2)
	}
	return nil
}

// Append продвигает состояние на один розыгрыш и возвращает финализированное
// событие с проставленными номером, сетом, подающим, счётом после очка и
// счётчиком переходов подачи. Второй и третий результаты сообщают о
// завершении сета и матча этим розыгрышем.
func (s *State) Append(matchID, tournamentID int, winner models.Side, now time.Time) (models.Rally, *models.SetScore, bool, error) {
	if s.Completed {
		return models.Rally{}, nil, false, ErrMatchCompleted
	}
	if !winner.Valid() {
		return models.Rally{}, nil, false, fmt.Errorf("%w: invalid winner side %d", ErrInvalidEvent, winner)
	}

	server := s.Server
	setNumber := s.CurrentSet
	setDone, matchDone := s.applyPoint(winner)
	s.LastSeq++

	rally := models.Rally{
		MatchID:      matchID,
		TournamentID: tournamentID,
		Seq:          s.LastSeq,
		SetNumber:    setNumber,
		ServerSide:   server,
		WinnerSide:   winner,
		SwapCount:    s.SwapCount,
		RallyTime:    now,
	}
	if setDone != nil {
		rally.Score1, rally.Score2 = setDone.Score1, setDone.Score2
	} else {
		rally.Score1, rally.Score2 = s.Score1, s.Score2
	}
	return rally, setDone, matchDone, nil
}

// BuildCorrection валидирует и строит компенсирующее событие, замещающее
// победителя розыгрыша targetSeq. Компенсация допустима только для
// розыгрыша текущего, ещё не завершённого сета: история закрытых сетов
// неприкосновенна. Возвращает событие и состояние после его применения.
func BuildCorrection(rules Rules, rallies []models.Rally, matchID, tournamentID, targetSeq int, corrected models.Side, now time.Time) (models.Rally, *State, error) {
	if !corrected.Valid() {
		return models.Rally{}, nil, fmt.Errorf("%w: invalid corrected side %d", ErrInvalidEvent, corrected)
	}

	state, err := Replay(rules, rallies)
	if err != nil {
		return models.Rally{}, nil, err
	}
	if state.Completed {
		return models.Rally{}, nil, ErrMatchCompleted
	}

	winners, _, err := effectiveWinners(rallies)
	if err != nil {
		return models.Rally{}, nil, err
	}
	current, ok := winners[targetSeq]
	if !ok {
		return models.Rally{}, nil, fmt.Errorf("%w: correction references unknown rally %d", ErrInvalidEvent, targetSeq)
	}

	var target *models.Rally
	for i := range rallies {
		if rallies[i].Seq == targetSeq {
			target = &rallies[i]
			break
		}
	}
	if target.SetNumber != state.CurrentSet {
		return models.Rally{}, nil, fmt.Errorf("%w: rally %d belongs to set %d", ErrSetAlreadyDecided, targetSeq, target.SetNumber)
	}
	if corrected == current {
		return models.Rally{}, nil, fmt.Errorf("%w: rally %d already credited to side %d", ErrInvalidEvent, targetSeq, corrected)
	}

	seq := targetSeq
	candidate := models.Rally{
		MatchID:      matchID,
		TournamentID: tournamentID,
		Seq:          len(rallies) + 1,
		SetNumber:    state.CurrentSet,
		ServerSide:   state.Server,
		WinnerSide:   corrected,
		CorrectsSeq:  &seq,
		RallyTime:    now,
	}

	next, err := Replay(rules, append(append([]models.Rally{}, rallies...), candidate))
	if err != nil {
		return models.Rally{}, nil, err
	}

	// Счёт на компенсации — актуальный счёт текущего сета после замещения;
	// если замещение закрыло сет, берём итог закрытого сета.
	if len(next.CompletedSets) > len(state.CompletedSets) {
		last := next.CompletedSets[len(next.CompletedSets)-1]
		candidate.Score1, candidate.Score2 = last.Score1, last.Score2
	} else {
		candidate.Score1, candidate.Score2 = next.Score1, next.Score2
	}
	candidate.SwapCount = next.SwapCount
	return candidate, next, nil
}
