package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizdeck/internal/domain"
)

type checkpointRow struct {
	bun.BaseModel `bun:"table:checkpoints"`

	Key       string    `bun:"checkpoint_key,pk"`
	Body      string    `bun:"body,type:jsonb"`
	UpdatedAt time.Time `bun:"updated_at"`
}

type historyRow struct {
	bun.BaseModel `bun:"table:quiz_history"`

	ID             int64     `bun:"id,pk,autoincrement"`
	AttemptID      string    `bun:"attempt_id"`
	Username       string    `bun:"username"`
	Topic          string    `bun:"topic"`
	Score          int       `bun:"score"`
	TotalQuestions int       `bun:"total_questions"`
	Percentage     int       `bun:"percentage"`
	TimeTaken      float64   `bun:"time_taken"`
	TakenAt        time.Time `bun:"taken_at"`
}

// ProgressStore persists checkpoints and history through bun.
type ProgressStore struct {
	db *bun.DB
}

func NewProgressStore(db *bun.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

func (s *ProgressStore) LoadCheckpoint(ctx context.Context, key domain.CheckpointKey) (domain.Checkpoint, bool, error) {
	var row checkpointRow
	err := s.db.NewSelect().Model(&row).Where("checkpoint_key = ?", key.String()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("select checkpoint: %w", err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal([]byte(row.Body), &cp); err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("%w: %v", domain.ErrMalformedCheckpoint, err)
	}
	return cp, true, nil
}

func (s *ProgressStore) SaveCheckpoint(ctx context.Context, key domain.CheckpointKey, cp domain.Checkpoint) error {
	body, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	row := checkpointRow{Key: key.String(), Body: string(body), UpdatedAt: time.Now().UTC()}
	_, err = s.db.NewInsert().
		Model(&row).
		On("CONFLICT (checkpoint_key) DO UPDATE").
		Set("body = EXCLUDED.body").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *ProgressStore) DeleteCheckpoint(ctx context.Context, key domain.CheckpointKey) error {
	_, err := s.db.NewDelete().Model((*checkpointRow)(nil)).Where("checkpoint_key = ?", key.String()).Exec(ctx)
	return err
}

// AppendHistory relies on the unique attempt_id to ignore repeats.
func (s *ProgressStore) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	row := historyRow{
		AttemptID:      entry.AttemptID,
		Username:       entry.Username,
		Topic:          entry.Topic,
		Score:          entry.Score,
		TotalQuestions: entry.TotalQuestions,
		Percentage:     entry.Percentage,
		TimeTaken:      entry.TimeTaken,
		TakenAt:        entry.Date.UTC(),
	}
	_, err := s.db.NewInsert().Model(&row).On("CONFLICT (attempt_id) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *ProgressStore) LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	var rows []historyRow
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	entries := make([]domain.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.HistoryEntry{
			AttemptID:      r.AttemptID,
			Username:       r.Username,
			Topic:          r.Topic,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			Percentage:     r.Percentage,
			TimeTaken:      r.TimeTaken,
			Date:           r.TakenAt.UTC(),
		})
	}
	return entries, nil
}
