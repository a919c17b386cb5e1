package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quizdeck/internal/domain"
)

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	Username  string    `bun:"username,pk"`
	Email     string    `bun:"email"`
	Role      string    `bun:"role"`
	CreatedAt time.Time `bun:"created_at"`
}

// UserStore implements app.UserRepository on bun.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(ctx context.Context, user domain.User) error {
	row := userRow{
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.UTC(),
	}
	res, err := s.db.NewInsert().Model(&row).On("CONFLICT (username) DO NOTHING").Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrUserExists
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, username string) (domain.User, error) {
	var row userRow
	err := s.db.NewSelect().Model(&row).Where("username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return row.toDomain(), nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := s.db.NewSelect().Model(&rows).Order("username ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		Username:  r.Username,
		Email:     r.Email,
		Role:      domain.Role(r.Role),
		CreatedAt: r.CreatedAt.UTC(),
	}
}
