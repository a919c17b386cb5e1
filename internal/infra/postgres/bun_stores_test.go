package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"quizdeck/internal/domain"
)

// The bun stores only issue portable upserts, so they run against SQLite here;
// the Postgres schema itself is covered by the integration test.
const bunTestSchema = `
CREATE TABLE users (
    username TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    role TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE checkpoints (
    checkpoint_key TEXT PRIMARY KEY,
    body TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE TABLE quiz_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    attempt_id TEXT NOT NULL UNIQUE,
    username TEXT NOT NULL,
    topic TEXT NOT NULL,
    score INTEGER NOT NULL,
    total_questions INTEGER NOT NULL,
    percentage INTEGER NOT NULL,
    time_taken REAL NOT NULL,
    taken_at TIMESTAMP NOT NULL
);`

func newBunTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })
	if _, err := db.ExecContext(context.Background(), bunTestSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func TestProgressStoreCheckpointUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore(newBunTestDB(t))
	key := domain.CheckpointKey{Username: "alice", Topic: "DBMS"}

	if _, ok, err := store.LoadCheckpoint(ctx, key); err != nil || ok {
		t.Fatalf("expected no checkpoint, got ok=%v err=%v", ok, err)
	}

	first := domain.Checkpoint{QuestionIndex: 0, Answers: map[string]string{"1": "A"}, Score: 1, Answered: []string{"1"}}
	if err := store.SaveCheckpoint(ctx, key, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := domain.Checkpoint{QuestionIndex: 1, Answers: map[string]string{"1": "B", "2": "B"}, Score: 1, Answered: []string{"1", "2"}}
	if err := store.SaveCheckpoint(ctx, key, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := store.LoadCheckpoint(ctx, key)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.QuestionIndex != 1 || got.Answers["1"] != "B" || len(got.Answered) != 2 {
		t.Fatalf("expected the second checkpoint, got %+v", got)
	}

	if err := store.DeleteCheckpoint(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.LoadCheckpoint(ctx, key); ok {
		t.Fatalf("expected checkpoint deleted")
	}
}

func TestProgressStoreMalformedCheckpoint(t *testing.T) {
	ctx := context.Background()
	db := newBunTestDB(t)
	store := NewProgressStore(db)
	key := domain.CheckpointKey{Username: "alice", Topic: "DBMS"}

	if _, err := db.ExecContext(ctx, "INSERT INTO checkpoints (checkpoint_key, body, updated_at) VALUES (?, ?, ?)",
		key.String(), "{not json", time.Now().UTC()); err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	if _, _, err := store.LoadCheckpoint(ctx, key); !errors.Is(err, domain.ErrMalformedCheckpoint) {
		t.Fatalf("expected ErrMalformedCheckpoint, got %v", err)
	}
}

func TestProgressStoreHistoryIgnoresRepeatedAttempt(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore(newBunTestDB(t))
	day := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	entry := domain.HistoryEntry{AttemptID: "a1", Username: "alice", Topic: "DBMS", Score: 2, TotalQuestions: 3, Percentage: 67, TimeTaken: 42.5, Date: day}
	for i := 0; i < 2; i++ {
		if err := store.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	later := entry
	later.AttemptID, later.Score, later.Percentage, later.Date = "a2", 3, 100, day.Add(time.Hour)
	if err := store.AppendHistory(ctx, later); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := store.LoadHistory(ctx)
	if err != nil {
		t.Fatalf("load history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected repeated attempt ignored, got %d entries", len(history))
	}
	if history[0].AttemptID != "a1" || history[1].AttemptID != "a2" {
		t.Fatalf("expected insertion order, got %+v", history)
	}
	if !history[0].Date.Equal(day) || history[0].TimeTaken != 42.5 || history[0].Percentage != 67 {
		t.Fatalf("unexpected entry %+v", history[0])
	}
}

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(newBunTestDB(t))
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	if _, err := store.GetUser(ctx, "alice"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	for _, u := range []domain.User{
		{Username: "bob", Email: "bob@example.com", Role: domain.RoleUser, CreatedAt: created},
		{Username: "alice", Email: "alice@example.com", Role: domain.RoleUser, CreatedAt: created},
	} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("create %s: %v", u.Username, err)
		}
	}
	dup := domain.User{Username: "alice", Email: "other@example.com", Role: domain.RoleUser, CreatedAt: created}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "alice@example.com" || got.Role != domain.RoleUser || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user %+v", got)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
		t.Fatalf("expected users sorted by name, got %+v", users)
	}
}
