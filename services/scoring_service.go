package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/ValeryMukhin1712/tournaments-sub001/repositories"
	"github.com/ValeryMukhin1712/tournaments-sub001/scoring"
)

// SubmitRallyInput — заявка судейской консоли на один розыгрыш.
// SetNumber и Score1/Score2 опциональны: если консоль их передала, движок
// сверяет заявку с производным состоянием и отклоняет рассинхронизацию.
type SubmitRallyInput struct {
	WinnerSide models.Side
	SetNumber  int
	Score1     *int
	Score2     *int
}

// CorrectRallyInput — компенсация ошибочно записанного розыгрыша.
type CorrectRallyInput struct {
	Seq           int
	CorrectedSide models.Side
	Actor         string
	Notes         string
}

// MatchCompletedEvent уходит коллабораторам при завершении матча.
type MatchCompletedEvent struct {
	MatchID             int    `json:"match_id"`
	TournamentID        int    `json:"tournament_id"`
	WinnerParticipantID int    `json:"winner_participant_id"`
	LoserParticipantID  int    `json:"loser_participant_id"`
	Score               string `json:"score"`
}

// ResultRecorder — коллаборатор таблицы результатов; вызывается в той же
// транзакции, что и фиксация завершающего розыгрыша.
type ResultRecorder interface {
	RecordResult(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error
}

// CompletionNotifier — внешняя шина событий (AMQP); вызывается после
// коммита, ошибки публикации не откатывают подачу.
type CompletionNotifier interface {
	NotifyMatchCompleted(ctx context.Context, event MatchCompletedEvent) error
}

// LiveBroadcaster — рассылка живого счёта подписчикам матча.
type LiveBroadcaster interface {
	BroadcastMatch(matchID int, messageType string, payload interface{})
}

// ProtocolArchiver выгружает финальный протокол завершённого матча в
// объектное хранилище.
type ProtocolArchiver interface {
	ArchiveProtocol(ctx context.Context, match *models.Match, rallies []models.Rally) error
}

// ScoringMetrics — счётчики подачи розыгрышей.
type ScoringMetrics interface {
	RallyRecorded()
	RallyRejected(reason string)
	MatchCompleted()
	CorrectionRecorded()
	ObserveSubmitDuration(seconds float64)
}

type ScoringService interface {
	SubmitRally(ctx context.Context, matchID int, input SubmitRallyInput) (*models.MatchView, error)
	GetMatchView(ctx context.Context, matchID int) (*models.MatchView, error)
	CorrectRally(ctx context.Context, matchID int, input CorrectRallyInput) (*models.MatchView, error)
	CancelMatch(ctx context.Context, matchID int, reason, actor string) error
	ListRallies(ctx context.Context, matchID int) ([]models.Rally, error)
}

// txRunner абстрагирует границу транзакции; в тестах подменяется
// исполнителем без БД.
type txRunner interface {
	WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
	// WithReadTx выполняет fn в read-only транзакции уровня repeatable
	// read: оба запроса пути чтения видят один снимок.
	WithReadTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTxRunner struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *sqlTxRunner) WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return r.run(ctx, nil, fn)
}

func (r *sqlTxRunner) WithReadTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return r.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (r *sqlTxRunner) run(ctx context.Context, opts *sql.TxOptions, fn func(exec repositories.SQLExecutor) error) error {
	tx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.logger.Error("rollback failed", slog.Any("error", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type scoringService struct {
	tx             txRunner
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	rallyRepo      repositories.RallyRepository
	matchLogRepo   repositories.MatchLogRepository
	results        ResultRecorder
	notifier       CompletionNotifier
	hub            LiveBroadcaster
	archiver       ProtocolArchiver
	metrics        ScoringMetrics
	logger         *slog.Logger

	// Сериализация подач в рамках одного матча: не больше одной мутации
	// одновременно, поздние ждут и видят результат ранних. Замки разных
	// матчей независимы.
	mu    sync.Mutex
	locks map[int]*sync.Mutex

	now func() time.Time
}

func NewScoringService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	rallyRepo repositories.RallyRepository,
	matchLogRepo repositories.MatchLogRepository,
	results ResultRecorder,
	notifier CompletionNotifier,
	hub LiveBroadcaster,
	archiver ProtocolArchiver,
	metrics ScoringMetrics,
	logger *slog.Logger,
) ScoringService {
	return &scoringService{
		tx:             &sqlTxRunner{db: db, logger: logger},
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		rallyRepo:      rallyRepo,
		matchLogRepo:   matchLogRepo,
		results:        results,
		notifier:       notifier,
		hub:            hub,
		archiver:       archiver,
		metrics:        metrics,
		logger:         logger,
		locks:          make(map[int]*sync.Mutex),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *scoringService) matchLock(matchID int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[matchID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[matchID] = lock
	}
	return lock
}

// loadMatchState загружает матч, правила его турнира и журнал, и
// восстанавливает производное состояние. exec передаётся путём чтения,
// чтобы запись матча и журнал пришли из одного снимка; мутации под
// замком матча читают пулом (exec == nil).
func (s *scoringService) loadMatchState(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.Match, scoring.Rules, []models.Rally, *scoring.State, error) {
	match, err := s.matchRepo.GetByID(ctx, exec, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, scoring.Rules{}, nil, nil, fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
		}
		return nil, scoring.Rules{}, nil, nil, fmt.Errorf("%w: load match %d: %w", ErrPersistenceFailure, matchID, err)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, exec, match.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, scoring.Rules{}, nil, nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, match.TournamentID)
		}
		return nil, scoring.Rules{}, nil, nil, fmt.Errorf("%w: load tournament %d: %w", ErrPersistenceFailure, match.TournamentID, err)
	}
	rules := scoring.RulesForTournament(tournament)

	rallies, err := s.rallyRepo.ListByMatch(ctx, exec, matchID)
	if err != nil {
		return nil, scoring.Rules{}, nil, nil, fmt.Errorf("%w: load rallies for match %d: %w", ErrPersistenceFailure, matchID, err)
	}

	state, err := scoring.Replay(rules, rallies)
	if err != nil {
		return nil, scoring.Rules{}, nil, nil, fmt.Errorf("replay ledger of match %d: %w", matchID, err)
	}
	return match, rules, rallies, state, nil
}

func (s *scoringService) SubmitRally(ctx context.Context, matchID int, input SubmitRallyInput) (*models.MatchView, error) {
	started := s.now()
	view, err := s.submitRally(ctx, matchID, input)
	if s.metrics != nil {
		s.metrics.ObserveSubmitDuration(s.now().Sub(started).Seconds())
		if err != nil {
			s.metrics.RallyRejected(rejectReason(err))
		} else {
			s.metrics.RallyRecorded()
		}
	}
	return view, err
}

func (s *scoringService) submitRally(ctx context.Context, matchID int, input SubmitRallyInput) (*models.MatchView, error) {
	if !input.WinnerSide.Valid() {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidSide, input.WinnerSide)
	}

	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, _, _, state, err := s.loadMatchState(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}

	switch match.Status {
	case models.MatchStatusCanceled:
		return nil, fmt.Errorf("%w: match %d is canceled", ErrMatchOutOfOrder, matchID)
	case models.MatchStatusCompleted:
		return nil, scoring.ErrMatchCompleted
	}

	if err := state.ValidateClaim(input.WinnerSide, input.SetNumber, input.Score1, input.Score2); err != nil {
		return nil, err
	}

	wasScheduled := match.Status == models.MatchStatusScheduled
	rally, _, matchDone, err := state.Append(match.ID, match.TournamentID, input.WinnerSide, s.now())
	if err != nil {
		return nil, err
	}

	projectState(match, state)

	err = s.tx.WithTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.rallyRepo.Append(ctx, tx, &rally); err != nil {
			return err
		}
		if err := s.matchRepo.UpdateProjection(ctx, tx, match); err != nil {
			return err
		}
		if wasScheduled {
			if err := s.matchLogRepo.Create(ctx, tx, &models.MatchLog{
				MatchID: match.ID,
				Action:  models.MatchLogActionStarted,
				Actor:   "scoring-engine",
			}); err != nil {
				return err
			}
		}
		if matchDone {
			details := scoreDetails(match)
			if err := s.matchLogRepo.Create(ctx, tx, &models.MatchLog{
				MatchID: match.ID,
				Action:  models.MatchLogActionCompleted,
				Details: &details,
				Actor:   "scoring-engine",
			}); err != nil {
				return err
			}
			if s.results != nil {
				if err := s.results.RecordResult(ctx, tx, match); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	view := buildView(match, state)
	s.afterCommit(ctx, match, view, matchDone)
	return view, nil
}

// GetMatchView строит представление из согласованного снимка: замок
// матча отсекает параллельную подачу этого процесса, read-only
// транзакция — коммиты других экземпляров между двумя запросами.
// Читатель видит либо состояние до подачи, либо после, но не смесь.
func (s *scoringService) GetMatchView(ctx context.Context, matchID int) (*models.MatchView, error) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	var view *models.MatchView
	err := s.tx.WithReadTx(ctx, func(tx repositories.SQLExecutor) error {
		match, _, _, state, err := s.loadMatchState(ctx, tx, matchID)
		if err != nil {
			return err
		}
		view = buildView(match, state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *scoringService) ListRallies(ctx context.Context, matchID int) ([]models.Rally, error) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	var rallies []models.Rally
	err := s.tx.WithReadTx(ctx, func(tx repositories.SQLExecutor) error {
		if _, err := s.matchRepo.GetByID(ctx, tx, matchID); err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
			}
			return fmt.Errorf("%w: load match %d: %w", ErrPersistenceFailure, matchID, err)
		}
		var err error
		rallies, err = s.rallyRepo.ListByMatch(ctx, tx, matchID)
		if err != nil {
			return fmt.Errorf("%w: load rallies for match %d: %w", ErrPersistenceFailure, matchID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rallies, nil
}

func (s *scoringService) CorrectRally(ctx context.Context, matchID int, input CorrectRallyInput) (*models.MatchView, error) {
	if !input.CorrectedSide.Valid() {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidSide, input.CorrectedSide)
	}

	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, rules, rallies, _, err := s.loadMatchState(ctx, nil, matchID)
	if err != nil {
		return nil, err
	}

	switch match.Status {
	case models.MatchStatusCanceled:
		return nil, fmt.Errorf("%w: match %d is canceled", ErrMatchOutOfOrder, matchID)
	case models.MatchStatusCompleted:
		return nil, scoring.ErrMatchCompleted
	case models.MatchStatusScheduled:
		return nil, fmt.Errorf("%w: match %d has no rallies yet", ErrMatchOutOfOrder, matchID)
	}

	correction, state, err := scoring.BuildCorrection(rules, rallies, match.ID, match.TournamentID, input.Seq, input.CorrectedSide, s.now())
	if err != nil {
		return nil, err
	}
	if input.Notes != "" {
		correction.Notes = &input.Notes
	}

	matchDone := state.Completed
	projectState(match, state)

	actor := input.Actor
	if actor == "" {
		actor = "referee"
	}

	err = s.tx.WithTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.rallyRepo.Append(ctx, tx, &correction); err != nil {
			return err
		}
		if err := s.matchRepo.UpdateProjection(ctx, tx, match); err != nil {
			return err
		}
		details := fmt.Sprintf("rally %d re-credited to side %d", input.Seq, input.CorrectedSide)
		if err := s.matchLogRepo.Create(ctx, tx, &models.MatchLog{
			MatchID: match.ID,
			Action:  models.MatchLogActionCorrected,
			Details: &details,
			Actor:   actor,
		}); err != nil {
			return err
		}
		if matchDone && s.results != nil {
			if err := s.results.RecordResult(ctx, tx, match); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	if s.metrics != nil {
		s.metrics.CorrectionRecorded()
	}
	view := buildView(match, state)
	s.afterCommit(ctx, match, view, matchDone)
	return view, nil
}

func (s *scoringService) CancelMatch(ctx context.Context, matchID int, reason, actor string) error {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
		}
		return fmt.Errorf("%w: load match %d: %w", ErrPersistenceFailure, matchID, err)
	}

	if match.Status == models.MatchStatusCompleted {
		return scoring.ErrMatchCompleted
	}
	if match.Status == models.MatchStatusCanceled {
		// Отмена необратима и идемпотентна.
		return nil
	}

	match.Status = models.MatchStatusCanceled
	if actor == "" {
		actor = "admin"
	}

	err = s.tx.WithTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.matchRepo.UpdateProjection(ctx, tx, match); err != nil {
			return err
		}
		var details *string
		if reason != "" {
			details = &reason
		}
		return s.matchLogRepo.Create(ctx, tx, &models.MatchLog{
			MatchID: match.ID,
			Action:  models.MatchLogActionCanceled,
			Details: details,
			Actor:   actor,
		})
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	if s.hub != nil {
		s.hub.BroadcastMatch(match.ID, "MATCH_CANCELED", map[string]interface{}{"match_id": match.ID, "reason": reason})
	}
	return nil
}

// afterCommit выполняет побочные эффекты после фиксации: рассылку живого
// счёта, событие завершения и архивацию протокола. Все они best effort —
// подача уже зафиксирована.
func (s *scoringService) afterCommit(ctx context.Context, match *models.Match, view *models.MatchView, matchDone bool) {
	if s.hub != nil {
		messageType := "SCORE_UPDATED"
		if matchDone {
			messageType = "MATCH_COMPLETED"
		}
		s.hub.BroadcastMatch(match.ID, messageType, view)
	}
	if !matchDone {
		return
	}

	if s.metrics != nil {
		s.metrics.MatchCompleted()
	}
	if s.notifier != nil && match.WinnerParticipantID != nil {
		loserID := match.Participant1ID
		if *match.WinnerParticipantID == match.Participant1ID {
			loserID = match.Participant2ID
		}
		event := MatchCompletedEvent{
			MatchID:             match.ID,
			TournamentID:        match.TournamentID,
			WinnerParticipantID: *match.WinnerParticipantID,
			LoserParticipantID:  loserID,
			Score:               scoreDetails(match),
		}
		if err := s.notifier.NotifyMatchCompleted(ctx, event); err != nil {
			s.logger.Error("failed to publish match completion",
				slog.Int("match_id", match.ID), slog.Any("error", err))
		}
	}
	if s.archiver != nil {
		rallies, err := s.rallyRepo.ListByMatch(ctx, nil, match.ID)
		if err == nil {
			err = s.archiver.ArchiveProtocol(ctx, match, rallies)
		}
		if err != nil {
			s.logger.Error("failed to archive match protocol",
				slog.Int("match_id", match.ID), slog.Any("error", err))
		}
	}
}

// projectState переписывает материализованную проекцию счёта на записи
// матча из производного состояния.
func projectState(match *models.Match, state *scoring.State) {
	match.Score1 = state.Score1
	match.Score2 = state.Score2
	match.SetsWon1 = state.SetsWon1
	match.SetsWon2 = state.SetsWon2

	if state.Completed {
		match.Status = models.MatchStatusCompleted
		winnerID := match.ParticipantID(state.Winner)
		match.WinnerParticipantID = &winnerID
		score := fmt.Sprintf("%d:%d", state.SetsWon1, state.SetsWon2)
		match.Score = &score
		// На завершённом матче текущего сета нет; проекция несёт итог
		// последнего сыгранного сета.
		if n := len(state.CompletedSets); n > 0 {
			last := state.CompletedSets[n-1]
			match.Score1 = last.Score1
			match.Score2 = last.Score2
		}
	} else if match.Status == models.MatchStatusScheduled {
		match.Status = models.MatchStatusInProgress
	}
}

func buildView(match *models.Match, state *scoring.State) *models.MatchView {
	view := &models.MatchView{
		MatchID:          match.ID,
		TournamentID:     match.TournamentID,
		Status:           match.Status,
		SetsWon1:         state.SetsWon1,
		SetsWon2:         state.SetsWon2,
		CurrentSet:       state.CurrentSet,
		CurrentSetScore1: state.Score1,
		CurrentSetScore2: state.Score2,
		CompletedSets:    state.CompletedSets,
		ServerSide:       state.Server,
		SwapCount:        state.SwapCount,
		RallyCount:       state.LastSeq,
		WinnerSide:       state.Winner,
		Score:            match.Score,
	}
	if match.WinnerParticipantID != nil {
		view.WinnerParticipantID = match.WinnerParticipantID
	}
	return view
}

func scoreDetails(match *models.Match) string {
	if match.Score != nil {
		return *match.Score
	}
	return fmt.Sprintf("%d:%d", match.SetsWon1, match.SetsWon2)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, scoring.ErrInvalidEvent):
		return "invalid_event"
	case errors.Is(err, scoring.ErrSetAlreadyDecided):
		return "set_decided"
	case errors.Is(err, scoring.ErrMatchCompleted):
		return "match_completed"
	case errors.Is(err, ErrMatchOutOfOrder):
		return "out_of_order"
	case errors.Is(err, ErrMatchNotFound):
		return "not_found"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence"
	default:
		return "other"
	}
}
