package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/restaurant-ratings/internal/domain"
)

// UsersRepository provides persistence helpers for users.
type UsersRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a user. Duplicate names or emails return ErrConflict.
func (r *UsersRepository) Create(ctx context.Context, name, email string) (domain.User, error) {
	const query = `
        INSERT INTO users (name, email)
        VALUES ($1, $2)
        RETURNING id, name, email, created_at
    `
	var user domain.User
	err := r.pool.QueryRow(ctx, query, name, email).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return domain.User{}, fmt.Errorf("create user %q: %w", name, ErrConflict)
		}
		return domain.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT id, name, email, created_at FROM users WHERE id = $1`
	var user domain.User
	err := r.pool.QueryRow(ctx, query, id).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
