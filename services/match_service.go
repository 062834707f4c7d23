package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/ValeryMukhin1712/tournaments-sub001/repositories"
)

// ErrMatchesListFailed - общая ошибка для листинга матчей
var ErrMatchesListFailed = errors.New("failed to list matches")

// MatchService — чтение расписания. Матчи создаёт и удаляет внешний
// планировщик; движок только продвигает их жизненный цикл.
type MatchService interface {
	ListMatchesByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	GetMatchLog(ctx context.Context, matchID int) ([]models.MatchLog, error)
}

type matchService struct {
	matchRepo      repositories.MatchRepository
	tournamentRepo repositories.TournamentRepository
	matchLogRepo   repositories.MatchLogRepository
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	tournamentRepo repositories.TournamentRepository,
	matchLogRepo repositories.MatchLogRepository,
) MatchService {
	return &matchService{
		matchRepo:      matchRepo,
		tournamentRepo: tournamentRepo,
		matchLogRepo:   matchLogRepo,
	}
}

func (s *matchService) ListMatchesByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, fmt.Errorf("%w: tournament %d: %w", ErrMatchesListFailed, tournamentID, err)
	}

	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, status)
	if err != nil {
		return nil, fmt.Errorf("%w: matches for tournament %d: %w", ErrMatchesListFailed, tournamentID, err)
	}
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) GetMatchLog(ctx context.Context, matchID int) ([]models.MatchLog, error) {
	if _, err := s.matchRepo.GetByID(ctx, nil, matchID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
		}
		return nil, err
	}
	return s.matchLogRepo.ListByMatch(ctx, matchID)
}
