package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

type ParticipantRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error)
	// AddPoints атомарно прибавляет очки участнику (начисление за матч).
	AddPoints(ctx context.Context, exec SQLExecutor, participantID, delta int) error
	// UpdateRecord перезаписывает агрегаты побед/поражений и сетов.
	UpdateRecord(ctx context.Context, exec SQLExecutor, p *models.Participant) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const participantColumns = `id, tournament_id, name, points, wins, losses, sets_for, sets_against, created_at`

func scanParticipant(row interface{ Scan(...interface{}) error }, p *models.Participant) error {
	return row.Scan(
		&p.ID,
		&p.TournamentID,
		&p.Name,
		&p.Points,
		&p.Wins,
		&p.Losses,
		&p.SetsFor,
		&p.SetsAgainst,
		&p.CreatedAt,
	)
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Participant, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`

	participant := &models.Participant{}
	err := scanParticipant(executor.QueryRowContext(ctx, query, id), participant)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant by id %d: %w", id, err)
	}
	return participant, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE tournament_id = $1 ORDER BY points DESC, wins DESC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		if scanErr := scanParticipant(rows, &p); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant row: %w", scanErr)
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during participant rows iteration: %w", err)
	}
	return participants, nil
}

func (r *postgresParticipantRepository) AddPoints(ctx context.Context, exec SQLExecutor, participantID, delta int) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx,
		`UPDATE participants SET points = points + $1 WHERE id = $2`, delta, participantID)
	if err != nil {
		return fmt.Errorf("failed to add points to participant %d: %w", participantID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) UpdateRecord(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE participants
		SET points = $1, wins = $2, losses = $3, sets_for = $4, sets_against = $5
		WHERE id = $6`

	result, err := executor.ExecContext(ctx, query, p.Points, p.Wins, p.Losses, p.SetsFor, p.SetsAgainst, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update participant %d record: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}
