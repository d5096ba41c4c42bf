package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"freelance/internal/core"
)

const userColumns = `id, email, password_hash, name, plan_type, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (core.User, error) {
	var (
		u                core.User
		plan             string
		created, updated string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &plan, &created, &updated); err != nil {
		return core.User{}, err
	}
	u.Plan = core.PlanType(plan)
	u.CreatedAt = parseTime(created)
	u.UpdatedAt = parseTime(updated)
	return u, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, name, plan_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(u.Email), u.PasswordHash, strings.TrimSpace(u.Name), string(u.Plan), now, now)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("create user id: %w", err)
	}
	return r.GetUser(ctx, id)
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail matches case-insensitively.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UpdateUserPlan(ctx context.Context, id int64, plan core.PlanType) (core.User, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET plan_type = ?, updated_at = ? WHERE id = ?`, string(plan), r.stamp(), id)
	if err != nil {
		return core.User{}, fmt.Errorf("update user %d plan: %w", id, mapWriteError(err))
	}
	if err := affectedOne(res, "user", id); err != nil {
		return core.User{}, err
	}
	return r.GetUser(ctx, id)
}
