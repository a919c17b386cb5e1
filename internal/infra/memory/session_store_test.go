package memory

import (
	"context"
	"testing"

	"quizdeck/internal/app"
	"quizdeck/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	created := 0
	create := func() (*app.Attempt, error) {
		created++
		return app.NewAttempt(context.Background(), app.AttemptConfig{
			Key:      domain.CheckpointKey{Topic: "Cyber Security"},
			Quiz:     sampleQuiz(),
			Progress: NewProgressStore(),
		})
	}

	first, err := store.GetOrCreate("-/cyber-security", create)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := store.GetOrCreate("-/cyber-security", create)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first != second || created != 1 {
		t.Fatalf("expected the live attempt to be reused, created=%d", created)
	}
	if _, ok := store.Get("-/cyber-security"); !ok {
		t.Fatalf("expected attempt present")
	}

	// A closed attempt is replaced on the next GetOrCreate.
	first.Close()
	third, err := store.GetOrCreate("-/cyber-security", create)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if third == first || created != 2 {
		t.Fatalf("expected closed attempt to be replaced")
	}

	// The stale attempt no longer owns the key.
	store.Remove("-/cyber-security", first)
	if got, ok := store.Get("-/cyber-security"); !ok || got != third {
		t.Fatalf("expected replacement to survive removal of the stale attempt")
	}

	store.Remove("-/cyber-security", third)
	if _, ok := store.Get("-/cyber-security"); ok || store.Len() != 0 {
		t.Fatalf("expected attempt removed")
	}
}
