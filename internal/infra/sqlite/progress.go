package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quizdeck/internal/domain"
)

func (s *Store) LoadCheckpoint(ctx context.Context, key domain.CheckpointKey) (domain.Checkpoint, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM checkpoints WHERE checkpoint_key = ?`, key.String()).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Checkpoint{}, false, nil
	}
	if err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("query checkpoint: %w", err)
	}
	var cp domain.Checkpoint
	if err := json.Unmarshal([]byte(body), &cp); err != nil {
		return domain.Checkpoint{}, false, fmt.Errorf("%w: %v", domain.ErrMalformedCheckpoint, err)
	}
	return cp, true, nil
}

func (s *Store) SaveCheckpoint(ctx context.Context, key domain.CheckpointKey, cp domain.Checkpoint) error {
	body, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (checkpoint_key, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(checkpoint_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		key.String(), string(body), formatTime(time.Now()),
	)
	return err
}

func (s *Store) DeleteCheckpoint(ctx context.Context, key domain.CheckpointKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE checkpoint_key = ?`, key.String())
	return err
}

// AppendHistory inserts entry once per attempt id; repeats are ignored.
func (s *Store) AppendHistory(ctx context.Context, entry domain.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_history (attempt_id, username, topic, score, total_questions, percentage, time_taken, taken_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(attempt_id) DO NOTHING`,
		entry.AttemptID, entry.Username, entry.Topic, entry.Score, entry.TotalQuestions,
		entry.Percentage, entry.TimeTaken, formatTime(entry.Date),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// LoadHistory returns the log in insertion order.
func (s *Store) LoadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, username, topic, score, total_questions, percentage, time_taken, taken_at
		 FROM quiz_history ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()
	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var takenAt string
		if err := rows.Scan(&e.AttemptID, &e.Username, &e.Topic, &e.Score, &e.TotalQuestions,
			&e.Percentage, &e.TimeTaken, &takenAt); err != nil {
			return nil, err
		}
		if e.Date, err = parseTime(takenAt); err != nil {
			return nil, fmt.Errorf("parse history date: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
