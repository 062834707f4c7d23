package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound                 = errors.New("match not found")
	ErrMatchTournamentInvalid        = errors.New("match tournament conflict or invalid")
	ErrMatchParticipantInvalid       = errors.New("match participant conflict or invalid")
	ErrMatchWinnerParticipantInvalid = errors.New("match winner participant conflict or invalid")
)

type MatchRepository interface {
	// Create используется сидированием и тестами; в рабочем режиме матчи
	// создаёт внешний планировщик.
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error)
	ListCompletedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error)
	// UpdateProjection перезаписывает материализованную проекцию счёта
	// (статус, счёт сета, выигранные сеты, итог, победитель).
	UpdateProjection(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, participant1_id, participant2_id, court_number, match_number,
	match_time, status, score1, score2, sets_won_1, sets_won_2, score,
	winner_participant_id, created_at, updated_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Participant1ID,
		&m.Participant2ID,
		&m.CourtNumber,
		&m.MatchNumber,
		&m.MatchTime,
		&m.Status,
		&m.Score1,
		&m.Score2,
		&m.SetsWon1,
		&m.SetsWon2,
		&m.Score,
		&m.WinnerParticipantID,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(tournament_id, participant1_id, participant2_id, court_number, match_number,
			 match_time, status, score1, score2, sets_won_1, sets_won_2)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID,
		match.Participant1ID,
		match.Participant2ID,
		match.CourtNumber,
		match.MatchNumber,
		match.MatchTime,
		match.Status,
		match.Score1,
		match.Score2,
		match.SetsWon1,
		match.SetsWon2,
	).Scan(&match.ID, &match.CreatedAt, &match.UpdatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	match := &models.Match{}
	err := scanMatch(executor.QueryRowContext(ctx, query, id), match)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY match_number ASC NULLS LAST, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := scanMatch(rows, &match); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) ListCompletedByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND status = $2 ORDER BY id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID, models.MatchStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := scanMatch(rows, &match); scanErr != nil {
			return nil, fmt.Errorf("failed to scan completed match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during completed match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateProjection(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET status = $1, score1 = $2, score2 = $3, sets_won_1 = $4, sets_won_2 = $5,
		    score = $6, winner_participant_id = $7, updated_at = NOW()
		WHERE id = $8`

	result, err := executor.ExecContext(ctx, query,
		match.Status,
		match.Score1,
		match.Score2,
		match.SetsWon1,
		match.SetsWon2,
		match.Score,
		match.WinnerParticipantID,
		match.ID,
	)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		// "23503": foreign_key_violation
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_participant1_id_fkey", "matches_participant2_id_fkey":
			return ErrMatchParticipantInvalid
		case "matches_winner_participant_id_fkey":
			return ErrMatchWinnerParticipantInvalid
		}
	}
	return err
}
