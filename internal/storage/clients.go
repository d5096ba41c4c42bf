package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"freelance/internal/core"
)

const clientColumns = `id, user_id, name, email, phone, company, notes, created_at, updated_at`

func scanClient(row interface{ Scan(...any) error }) (core.Client, error) {
	var (
		c                core.Client
		created, updated string
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Notes, &created, &updated); err != nil {
		return core.Client{}, err
	}
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

func (r *SQLiteRepository) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (user_id, name, email, phone, company, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.Name, c.Email, c.Phone, c.Company, c.Notes, now, now)
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Client{}, fmt.Errorf("create client id: %w", err)
	}
	return r.GetClient(ctx, c.UserID, id)
}

// CreateClientCapped inserts c only while the owner has fewer than limit
// clients. The count and the insert are one statement.
func (r *SQLiteRepository) CreateClientCapped(ctx context.Context, c core.Client, limit int) (core.Client, error) {
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (user_id, name, email, phone, company, notes, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE ? < 0 OR (SELECT COUNT(*) FROM clients WHERE user_id = ?) < ?`,
		c.UserID, c.Name, c.Email, c.Phone, c.Company, c.Notes, now, now,
		limit, c.UserID, limit)
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", mapWriteError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	if n == 0 {
		return core.Client{}, fmt.Errorf("create client: %w: %d clients", ErrLimitReached, limit)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Client{}, fmt.Errorf("create client id: %w", err)
	}
	return r.GetClient(ctx, c.UserID, id)
}

func (r *SQLiteRepository) GetClient(ctx context.Context, userID, id int64) (core.Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

// ListClients returns the owner's clients, newest first.
func (r *SQLiteRepository) ListClients(ctx context.Context, userID int64) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := []core.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *SQLiteRepository) UpdateClient(ctx context.Context, c core.Client) (core.Client, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clients SET name = ?, email = ?, phone = ?, company = ?, notes = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		c.Name, c.Email, c.Phone, c.Company, c.Notes, r.stamp(), c.ID, c.UserID)
	if err != nil {
		return core.Client{}, fmt.Errorf("update client %d: %w", c.ID, mapWriteError(err))
	}
	if err := affectedOne(res, "client", c.ID); err != nil {
		return core.Client{}, err
	}
	return r.GetClient(ctx, c.UserID, c.ID)
}

// DeleteClient removes the client; its projects and their invoices cascade.
func (r *SQLiteRepository) DeleteClient(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	return affectedOne(res, "client", id)
}

func (r *SQLiteRepository) CountClients(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count clients: %w", err)
	}
	return n, nil
}
