package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
)

var ErrTournamentStandingNotFound = errors.New("tournament standing not found")

type TournamentStandingRepository interface {
	GetOrCreate(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.TournamentStanding, error)
	Update(ctx context.Context, exec SQLExecutor, standing *models.TournamentStanding) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, sortByRank bool) ([]*models.TournamentStanding, error)
	DeleteByTournamentID(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresTournamentStandingRepository struct {
	db *sql.DB // Main DB connection, can be used if exec is nil
}

func NewPostgresTournamentStandingRepository(db *sql.DB) TournamentStandingRepository {
	return &postgresTournamentStandingRepository{db: db}
}

func (r *postgresTournamentStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const standingColumns = `
	id, tournament_id, participant_id, points, games_played, wins, draws, losses,
	sets_for, sets_against, sets_diff, rank, updated_at`

func scanStanding(row interface{ Scan(...interface{}) error }, s *models.TournamentStanding) error {
	return row.Scan(
		&s.ID,
		&s.TournamentID,
		&s.ParticipantID,
		&s.Points,
		&s.GamesPlayed,
		&s.Wins,
		&s.Draws,
		&s.Losses,
		&s.SetsFor,
		&s.SetsAgainst,
		&s.SetsDiff,
		&s.Rank,
		&s.UpdatedAt,
	)
}

func (r *postgresTournamentStandingRepository) GetOrCreate(ctx context.Context, exec SQLExecutor, tournamentID, participantID int) (*models.TournamentStanding, error) {
	executor := r.getExecutor(exec)

	standing := &models.TournamentStanding{}
	query := `SELECT` + standingColumns + ` FROM tournament_standings WHERE tournament_id = $1 AND participant_id = $2`
	err := scanStanding(executor.QueryRowContext(ctx, query, tournamentID, participantID), standing)
	if err == nil {
		return standing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to scan standing (tournament %d, participant %d): %w", tournamentID, participantID, err)
	}

	insert := `
		INSERT INTO tournament_standings (tournament_id, participant_id, updated_at)
		VALUES ($1, $2, $3)
		RETURNING` + standingColumns
	err = scanStanding(executor.QueryRowContext(ctx, insert, tournamentID, participantID, time.Now()), standing)
	if err != nil {
		return nil, fmt.Errorf("failed to create standing (tournament %d, participant %d): %w", tournamentID, participantID, err)
	}
	return standing, nil
}

func (r *postgresTournamentStandingRepository) Update(ctx context.Context, exec SQLExecutor, standing *models.TournamentStanding) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE tournament_standings
		SET points = $1, games_played = $2, wins = $3, draws = $4, losses = $5,
		    sets_for = $6, sets_against = $7, sets_diff = $8, rank = $9, updated_at = $10
		WHERE id = $11`

	standing.UpdatedAt = time.Now()
	result, err := executor.ExecContext(ctx, query,
		standing.Points, standing.GamesPlayed, standing.Wins, standing.Draws, standing.Losses,
		standing.SetsFor, standing.SetsAgainst, standing.SetsDiff, standing.Rank, standing.UpdatedAt,
		standing.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update standing %d: %w", standing.ID, err)
	}
	return checkAffectedRows(result, ErrTournamentStandingNotFound)
}

func (r *postgresTournamentStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, sortByRank bool) ([]*models.TournamentStanding, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + standingColumns + ` FROM tournament_standings WHERE tournament_id = $1`
	if sortByRank {
		query += ` ORDER BY rank ASC NULLS LAST, points DESC, sets_diff DESC, id ASC`
	} else {
		query += ` ORDER BY points DESC, sets_diff DESC, sets_for DESC, id ASC`
	}

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query standings for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	standings := make([]*models.TournamentStanding, 0)
	for rows.Next() {
		var s models.TournamentStanding
		if scanErr := scanStanding(rows, &s); scanErr != nil {
			return nil, fmt.Errorf("failed to scan standing row: %w", scanErr)
		}
		standings = append(standings, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during standing rows iteration: %w", err)
	}
	return standings, nil
}

func (r *postgresTournamentStandingRepository) DeleteByTournamentID(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tournament_standings WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete standings for tournament %d: %w", tournamentID, err)
	}
	return nil
}
