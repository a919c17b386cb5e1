package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"quizdeck/internal/config"
	"quizdeck/internal/domain"
)

const bank = `{
  "quizzes": {
    "DBMS": [
      {"id": 1, "question": "Which key uniquely identifies a row?", "options": ["Primary", "Foreign"], "answer": "Primary"},
      {"id": 2, "question": "Which clause filters groups?", "options": ["WHERE", "HAVING"], "answer": "HAVING"}
    ],
    "Cyber Security": [
      {"id": "cs-1", "question": "What does TLS protect?", "options": ["Data at rest", "Data in transit"], "answer": "Data in transit"}
    ]
  }
}`

func TestParseSeed(t *testing.T) {
	quizzes, err := parseSeed(strings.NewReader(bank))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(quizzes) != 2 || quizzes[0].Topic != "Cyber Security" || quizzes[0].Slug != "cyber-security" {
		t.Fatalf("unexpected quizzes %+v", quizzes)
	}
	dbms := quizzes[1]
	if dbms.Questions[0].ID != "1" || dbms.Questions[1].ID != "2" || dbms.Questions[1].Answer != "HAVING" {
		t.Fatalf("unexpected questions %+v", dbms.Questions)
	}
	if quizzes[0].Questions[0].ID != "cs-1" {
		t.Fatalf("string id not kept: %q", quizzes[0].Questions[0].ID)
	}

	if _, err := parseSeed(strings.NewReader(`{"quizzes": {"X": [{"id": true}]}}`)); err == nil {
		t.Fatalf("expected error for boolean id")
	}
}

func TestSeedFromFileThroughService(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	if err := os.WriteFile(path, []byte(bank), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg := config.Default()
	cfg.Storage.SQLite.Path = filepath.Join(dir, "quizdeck.db")
	b, err := openBackends(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()
	service := newService(cfg, b, quietLogger())

	n, err := seedFromFile(ctx, service, path)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 topics, got %d", n)
	}
	topics, err := service.Topics(ctx)
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if len(topics) != 2 || topics[1].QuestionCount != 2 {
		t.Fatalf("unexpected topics %+v", topics)
	}

	attempt, err := service.Start(ctx, "", "dbms")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer attempt.Close()
	if attempt.Phase() != domain.PhaseInProgress || attempt.Remaining() != 600 {
		t.Fatalf("unexpected attempt phase=%s remaining=%d", attempt.Phase(), attempt.Remaining())
	}
}

func TestSeedRejectsInvalidQuiz(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bad.json")
	bad := `{"quizzes": {"Broken": [{"id": 1, "question": "?", "options": ["a", "b"], "answer": "c"}]}}`
	if err := os.WriteFile(path, []byte(bad), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	b, err := openBackends(ctx, cfg, quietLogger())
	if err != nil {
		t.Fatalf("open backends: %v", err)
	}
	defer b.Close()

	_, err = seedFromFile(ctx, newService(cfg, b, quietLogger()), path)
	if !errors.Is(err, domain.ErrInvalidQuiz) {
		t.Fatalf("expected ErrInvalidQuiz, got %v", err)
	}
}

func TestLoadConfigAppliesFlagsAndEnv(t *testing.T) {
	t.Setenv("QUIZDECK_STORAGE", "memory")
	t.Setenv("QUIZDECK_TIME_LIMIT", "90s")

	root := newRootCmd()
	start, _, err := root.Find([]string{"start"})
	if err != nil {
		t.Fatalf("find start: %v", err)
	}
	missing := filepath.Join(t.TempDir(), "none.yaml")
	if err := start.ParseFlags([]string{"--config", missing, "--port", "9999"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(start)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.Port != "9999" || cfg.Storage.Driver != config.DriverMemory {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if config.TTLDuration(cfg.Quiz.TimeLimit, 0) != 90*time.Second {
		t.Fatalf("env time limit not applied: %q", cfg.Quiz.TimeLimit)
	}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
