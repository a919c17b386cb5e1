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

// LoadQuiz returns the quiz stored under the slug of topic.
func (s *Store) LoadQuiz(ctx context.Context, topic string) (domain.Quiz, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM quizzes WHERE slug = ?`, domain.Slug(topic)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("query quiz: %w", err)
	}
	return decodeQuiz(body)
}

// ListQuizzes returns every stored quiz ordered by topic.
func (s *Store) ListQuizzes(ctx context.Context) ([]domain.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT body FROM quizzes ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("query quizzes: %w", err)
	}
	defer rows.Close()
	var quizzes []domain.Quiz
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		quiz, err := decodeQuiz(body)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

// StoreQuiz upserts a quiz keyed by its slug.
func (s *Store) StoreQuiz(ctx context.Context, quiz domain.Quiz) error {
	quiz.Slug = domain.Slug(quiz.Topic)
	body, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO quizzes (slug, topic, body, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(slug) DO UPDATE SET topic = excluded.topic, body = excluded.body, updated_at = excluded.updated_at`,
		quiz.Slug, quiz.Topic, string(body), formatTime(time.Now()),
	)
	return err
}

func decodeQuiz(body string) (domain.Quiz, error) {
	var quiz domain.Quiz
	if err := json.Unmarshal([]byte(body), &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("decode quiz: %w", err)
	}
	return quiz, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
