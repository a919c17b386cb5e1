package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizdeck/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(sampleQuiz())}
	repo := NewQuizRepository(loader, time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "Cyber Security"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	// The slug resolves to the same cache entry as the topic name.
	quiz, err := repo.GetQuiz(context.Background(), "cyber-security")
	if err != nil {
		t.Fatalf("get quiz by slug: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if quiz.Topic != "Cyber Security" || quiz.Slug != "cyber-security" {
		t.Fatalf("unexpected quiz %+v", quiz)
	}
}

func TestQuizRepositoryExpires(t *testing.T) {
	loader := &countingLoader{QuizLoader: NewStaticQuizLoader(sampleQuiz())}
	repo := NewQuizRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetQuiz(context.Background(), "Cyber Security")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetQuiz(context.Background(), "Cyber Security")
	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryUnknownTopic(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(), time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "nope"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}

func TestQuizRepositorySaveInvalidatesCache(t *testing.T) {
	loader := NewStaticQuizLoader(sampleQuiz())
	repo := NewQuizRepository(loader, time.Minute)
	ctx := context.Background()

	if _, err := repo.GetQuiz(ctx, "Cyber Security"); err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	updated := sampleQuiz()
	updated.Questions = append(updated.Questions, domain.Question{
		ID: "q2", Prompt: "Port of HTTPS?", Options: []string{"80", "443"}, Answer: "443",
	})
	if err := repo.SaveQuiz(ctx, updated); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	quiz, err := repo.GetQuiz(ctx, "Cyber Security")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if len(quiz.Questions) != 2 {
		t.Fatalf("expected refreshed quiz with 2 questions, got %d", len(quiz.Questions))
	}

	topics, err := repo.ListTopics(ctx)
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	if len(topics) != 1 || topics[0].QuestionCount != 2 || topics[0].Slug != "cyber-security" {
		t.Fatalf("unexpected topics %+v", topics)
	}
}

func TestQuizRepositoryReadOnlyLoader(t *testing.T) {
	repo := NewQuizRepository(&countingLoader{QuizLoader: NewStaticQuizLoader()}, time.Minute)
	if err := repo.SaveQuiz(context.Background(), sampleQuiz()); !errors.Is(err, ErrReadOnlyLoader) {
		t.Fatalf("expected ErrReadOnlyLoader, got %v", err)
	}
}

// countingLoader embeds only the QuizLoader interface, so it is read-only.
type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, topic string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, topic)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		Topic: "Cyber Security",
		Questions: []domain.Question{
			{
				ID:      "q1",
				Prompt:  "What does TLS protect?",
				Options: []string{"Data in transit", "Data at rest", "CPU cache", "Nothing"},
				Answer:  "Data in transit",
			},
		},
	}
}
