package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/lib/pq"
)

var (
	ErrRallyNotFound     = errors.New("rally not found")
	ErrRallyMatchInvalid = errors.New("rally match conflict or invalid")
	// ErrRallySeqConflict — нарушение уникальности (match_id, seq): два
	// конкурентных добавления претендуют на один номер в журнале.
	ErrRallySeqConflict = errors.New("rally sequence number already taken")
)

// RallyRepository хранит журнал розыгрышей. Таблица append-only: UPDATE и
// DELETE не предусмотрены ни одним методом.
type RallyRepository interface {
	Append(ctx context.Context, exec SQLExecutor, rally *models.Rally) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Rally, error)
	CountByMatch(ctx context.Context, matchID int) (int, error)
}

type postgresRallyRepository struct {
	db *sql.DB
}

func NewPostgresRallyRepository(db *sql.DB) RallyRepository {
	return &postgresRallyRepository{db: db}
}

func (r *postgresRallyRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRallyRepository) Append(ctx context.Context, exec SQLExecutor, rally *models.Rally) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO rallies
			(match_id, tournament_id, seq, set_number, server_side, winner_side,
			 score1, score2, swap_count, corrects_seq, notes, rally_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		rally.MatchID,
		rally.TournamentID,
		rally.Seq,
		rally.SetNumber,
		rally.ServerSide,
		rally.WinnerSide,
		rally.Score1,
		rally.Score2,
		rally.SwapCount,
		rally.CorrectsSeq,
		rally.Notes,
		rally.RallyTime,
	).Scan(&rally.ID, &rally.CreatedAt)

	return r.handleRallyError(err)
}

func (r *postgresRallyRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]models.Rally, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, match_id, tournament_id, seq, set_number, server_side, winner_side,
		       score1, score2, swap_count, corrects_seq, notes, rally_time, created_at
		FROM rallies
		WHERE match_id = $1
		ORDER BY seq ASC`

	rows, err := executor.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rallies for match %d: %w", matchID, err)
	}
	defer rows.Close()

	rallies := make([]models.Rally, 0)
	for rows.Next() {
		var rally models.Rally
		if scanErr := rows.Scan(
			&rally.ID,
			&rally.MatchID,
			&rally.TournamentID,
			&rally.Seq,
			&rally.SetNumber,
			&rally.ServerSide,
			&rally.WinnerSide,
			&rally.Score1,
			&rally.Score2,
			&rally.SwapCount,
			&rally.CorrectsSeq,
			&rally.Notes,
			&rally.RallyTime,
			&rally.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan rally row: %w", scanErr)
		}
		rallies = append(rallies, rally)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rally rows iteration: %w", err)
	}
	return rallies, nil
}

func (r *postgresRallyRepository) CountByMatch(ctx context.Context, matchID int) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rallies WHERE match_id = $1`, matchID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rallies for match %d: %w", matchID, err)
	}
	return count, nil
}

func (r *postgresRallyRepository) handleRallyError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "rallies_match_id_fkey", "rallies_tournament_id_fkey":
			return ErrRallyMatchInvalid
		case "rallies_match_id_seq_key":
			return ErrRallySeqConflict
		}
	}
	return err
}
