package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/ValeryMukhin1712/tournaments-sub001/repositories"
	"golang.org/x/sync/errgroup"
)

// StandingService — коллаборатор таблицы результатов: получает уведомление
// о завершённом матче и начисляет points_win/points_draw/points_loss.
// Сам движок счёта этим не занимается — он лишь сообщает исход.
type StandingService interface {
	ResultRecorder
	ListStandings(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error)
	RecomputeStandings(ctx context.Context, tournamentID int) error
}

type standingService struct {
	tournamentRepo  repositories.TournamentRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.TournamentStandingRepository
	logger          *slog.Logger
}

func NewStandingService(
	tournamentRepo repositories.TournamentRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.TournamentStandingRepository,
	logger *slog.Logger,
) StandingService {
	return &standingService{
		tournamentRepo:  tournamentRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		logger:          logger,
	}
}

// RecordResult начисляет очки обеим сторонам завершённого матча в рамках
// переданной транзакции: провал начисления откатывает и сам завершающий
// розыгрыш.
func (s *standingService) RecordResult(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	if match.WinnerParticipantID == nil {
		return errors.New("match has no winner to record")
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, exec, match.TournamentID)
	if err != nil {
		return fmt.Errorf("load tournament %d for standings: %w", match.TournamentID, err)
	}

	winnerID := *match.WinnerParticipantID
	loserID := match.Participant1ID
	winnerSets, loserSets := match.SetsWon1, match.SetsWon2
	if winnerID == match.Participant1ID {
		loserID = match.Participant2ID
	} else {
		winnerSets, loserSets = match.SetsWon2, match.SetsWon1
	}

	if err := s.applyResult(ctx, exec, match.TournamentID, winnerID, tournament.PointsWin, true, winnerSets, loserSets); err != nil {
		return err
	}
	if err := s.applyResult(ctx, exec, match.TournamentID, loserID, tournament.PointsLoss, false, loserSets, winnerSets); err != nil {
		return err
	}

	s.logger.Info("match result recorded",
		slog.Int("match_id", match.ID),
		slog.Int("winner_participant_id", winnerID),
		slog.Int("loser_participant_id", loserID))
	return nil
}

func (s *standingService) applyResult(ctx context.Context, exec repositories.SQLExecutor, tournamentID, participantID, points int, won bool, setsFor, setsAgainst int) error {
	standing, err := s.standingRepo.GetOrCreate(ctx, exec, tournamentID, participantID)
	if err != nil {
		return err
	}
	standing.Points += points
	standing.GamesPlayed++
	if won {
		standing.Wins++
	} else {
		standing.Losses++
	}
	standing.SetsFor += setsFor
	standing.SetsAgainst += setsAgainst
	standing.SetsDiff = standing.SetsFor - standing.SetsAgainst
	if err := s.standingRepo.Update(ctx, exec, standing); err != nil {
		return err
	}
	return s.participantRepo.AddPoints(ctx, exec, participantID, points)
}

func (s *standingService) ListStandings(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, err
	}
	standings, err := s.standingRepo.ListByTournament(ctx, nil, tournamentID, false)
	if err != nil {
		return nil, fmt.Errorf("list standings for tournament %d: %w", tournamentID, err)
	}
	return standings, nil
}

// RecomputeStandings перестраивает таблицу с нуля по завершённым матчам.
// Агрегация последовательная, запись агрегатов — параллельная по
// участникам.
func (s *standingService) RecomputeStandings(ctx context.Context, tournamentID int) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return fmt.Errorf("load tournament %d: %w", tournamentID, err)
	}

	matches, err := s.matchRepo.ListCompletedByTournament(ctx, nil, tournamentID)
	if err != nil {
		return fmt.Errorf("list completed matches for tournament %d: %w", tournamentID, err)
	}

	type tally struct {
		points, played, wins, losses, setsFor, setsAgainst int
	}
	tallies := make(map[int]*tally)
	get := func(id int) *tally {
		t, ok := tallies[id]
		if !ok {
			t = &tally{}
			tallies[id] = t
		}
		return t
	}

	for _, match := range matches {
		if match.WinnerParticipantID == nil {
			continue
		}
		winnerID := *match.WinnerParticipantID
		loserID := match.Participant1ID
		winnerSets, loserSets := match.SetsWon1, match.SetsWon2
		if winnerID == match.Participant1ID {
			loserID = match.Participant2ID
		} else {
			winnerSets, loserSets = match.SetsWon2, match.SetsWon1
		}

		w := get(winnerID)
		w.points += tournament.PointsWin
		w.played++
		w.wins++
		w.setsFor += winnerSets
		w.setsAgainst += loserSets

		l := get(loserID)
		l.points += tournament.PointsLoss
		l.played++
		l.losses++
		l.setsFor += loserSets
		l.setsAgainst += winnerSets
	}

	if err := s.standingRepo.DeleteByTournamentID(ctx, nil, tournamentID); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	for participantID, t := range tallies {
		participantID, t := participantID, t
		g.Go(func() error {
			standing, err := s.standingRepo.GetOrCreate(gCtx, nil, tournamentID, participantID)
			if err != nil {
				return err
			}
			standing.Points = t.points
			standing.GamesPlayed = t.played
			standing.Wins = t.wins
			standing.Losses = t.losses
			standing.SetsFor = t.setsFor
			standing.SetsAgainst = t.setsAgainst
			standing.SetsDiff = t.setsFor - t.setsAgainst
			return s.standingRepo.Update(gCtx, nil, standing)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("recompute standings for tournament %d: %w", tournamentID, err)
	}

	s.logger.Info("standings recomputed",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participants", len(tallies)))
	return nil
}
