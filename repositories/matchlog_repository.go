package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
)

// MatchLogRepository — журнал административных действий. Только запись и
// чтение для аудита, никакой интерпретации.
type MatchLogRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.MatchLog) error
	ListByMatch(ctx context.Context, matchID int) ([]models.MatchLog, error)
}

type postgresMatchLogRepository struct {
	db *sql.DB
}

func NewPostgresMatchLogRepository(db *sql.DB) MatchLogRepository {
	return &postgresMatchLogRepository{db: db}
}

func (r *postgresMatchLogRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchLogRepository) Create(ctx context.Context, exec SQLExecutor, entry *models.MatchLog) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_logs (match_id, action, details, actor)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		entry.MatchID,
		entry.Action,
		entry.Details,
		entry.Actor,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert match log for match %d: %w", entry.MatchID, err)
	}
	return nil
}

func (r *postgresMatchLogRepository) ListByMatch(ctx context.Context, matchID int) ([]models.MatchLog, error) {
	query := `
		SELECT id, match_id, action, details, actor, created_at
		FROM match_logs
		WHERE match_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query match logs for match %d: %w", matchID, err)
	}
	defer rows.Close()

	entries := make([]models.MatchLog, 0)
	for rows.Next() {
		var entry models.MatchLog
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.MatchID,
			&entry.Action,
			&entry.Details,
			&entry.Actor,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match log row: %w", scanErr)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match log rows iteration: %w", err)
	}
	return entries, nil
}
