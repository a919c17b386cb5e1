package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quizdeck/internal/domain"
)

// CreateUser inserts user and reports domain.ErrUserExists for a taken username.
func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, role, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(username) DO NOTHING`,
		user.Username, user.Email, string(user.Role), formatTime(user.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrUserExists
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT username, email, role, created_at FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, email, role, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (domain.User, error) {
	var (
		user      domain.User
		role      string
		createdAt string
	)
	if err := row.Scan(&user.Username, &user.Email, &role, &createdAt); err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	created, err := parseTime(createdAt)
	if err != nil {
		return domain.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	user.CreatedAt = created
	return user, nil
}
