package redis

import (
	"context"
	"testing"
	"time"

	"quizdeck/internal/app"
	"quizdeck/internal/domain"
	"quizdeck/internal/infra/memory"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, client := newMiniredis(t)
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	created := 0
	create := func() (*app.Attempt, error) {
		created++
		return app.NewAttempt(ctx, app.AttemptConfig{
			Key:      domain.CheckpointKey{Username: "alice", Topic: "Cyber Security"},
			Quiz:     sampleQuiz(),
			Progress: memory.NewProgressStore(),
			Logger:   quietLogger(),
		})
	}

	attempt, err := store.GetOrCreate("alice/cyber-security", create)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if again, _ := store.GetOrCreate("alice/cyber-security", create); again != attempt || created != 1 {
		t.Fatalf("expected the live attempt to be reused")
	}
	if !mr.Exists("quiz:session:alice/cyber-security") {
		t.Fatalf("expected redis key to be set")
	}
	if live, err := store.Live(ctx, "alice/cyber-security"); err != nil || !live {
		t.Fatalf("expected live marker, got %v %v", live, err)
	}

	attempt.Close()
	replaced, _ := store.GetOrCreate("alice/cyber-security", create)
	if replaced == attempt || created != 2 {
		t.Fatalf("expected closed attempt to be replaced")
	}
	store.Remove("alice/cyber-security", attempt)
	if !mr.Exists("quiz:session:alice/cyber-security") {
		t.Fatalf("removing a stale attempt must keep the live marker")
	}

	store.Remove("alice/cyber-security", replaced)
	if mr.Exists("quiz:session:alice/cyber-security") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("alice/cyber-security"); ok {
		t.Fatalf("expected attempt removed")
	}
}
