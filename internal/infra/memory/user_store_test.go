package memory

import (
	"context"
	"errors"
	"testing"

	"quizdeck/internal/domain"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(domain.User{Username: "root", Email: "root@example.com", Role: domain.RoleAdmin})

	if err := store.CreateUser(ctx, domain.User{Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CreateUser(ctx, domain.User{Username: "alice", Email: "other@example.com"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := store.GetUser(ctx, "bob"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].Username != "alice" || users[1].Username != "root" {
		t.Fatalf("unexpected users %+v", users)
	}
}
