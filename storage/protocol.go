package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ValeryMukhin1712/tournaments-sub001/models"
	"github.com/google/uuid"
)

// ProtocolArchiver выгружает финальный протокол завершённого матча —
// полный журнал розыгрышей плюс итог — в объектное хранилище. Архив
// нужен для разбора спорных результатов после турнира; его отсутствие
// не влияет на фиксацию счёта.
type ProtocolArchiver struct {
	uploader FileUploader
	logger   *slog.Logger
}

// matchProtocol — формат архивируемого документа.
type matchProtocol struct {
	ProtocolID          string         `json:"protocol_id"`
	MatchID             int            `json:"match_id"`
	TournamentID        int            `json:"tournament_id"`
	Participant1ID      int            `json:"participant1_id"`
	Participant2ID      int            `json:"participant2_id"`
	Score               *string        `json:"score,omitempty"`
	SetsWon1            int            `json:"sets_won_1"`
	SetsWon2            int            `json:"sets_won_2"`
	WinnerParticipantID *int           `json:"winner_participant_id,omitempty"`
	ArchivedAt          time.Time      `json:"archived_at"`
	Rallies             []models.Rally `json:"rallies"`
}

func NewProtocolArchiver(uploader FileUploader, logger *slog.Logger) *ProtocolArchiver {
	return &ProtocolArchiver{uploader: uploader, logger: logger}
}

// ArchiveProtocol реализует services.ProtocolArchiver.
func (a *ProtocolArchiver) ArchiveProtocol(ctx context.Context, match *models.Match, rallies []models.Rally) error {
	protocol := matchProtocol{
		ProtocolID:          uuid.NewString(),
		MatchID:             match.ID,
		TournamentID:        match.TournamentID,
		Participant1ID:      match.Participant1ID,
		Participant2ID:      match.Participant2ID,
		Score:               match.Score,
		SetsWon1:            match.SetsWon1,
		SetsWon2:            match.SetsWon2,
		WinnerParticipantID: match.WinnerParticipantID,
		ArchivedAt:          time.Now().UTC(),
		Rallies:             rallies,
	}

	body, err := json.MarshalIndent(protocol, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal protocol for match %d: %w", match.ID, err)
	}

	key := fmt.Sprintf("protocols/%d/%d.json", match.TournamentID, match.ID)
	result, err := a.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to archive protocol for match %d: %w", match.ID, err)
	}

	a.logger.Info("match protocol archived",
		slog.Int("match_id", match.ID),
		slog.String("key", result.Key),
		slog.String("location", result.Location))
	return nil
}
