package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"freelance/internal/core"
)

const projectSelect = `SELECT p.id, p.user_id, p.client_id, c.name, p.name, p.description, p.deadline,
	p.status, p.payment_status, p.created_at, p.updated_at
FROM projects p JOIN clients c ON c.id = p.client_id`

func scanProject(row interface{ Scan(...any) error }) (core.Project, error) {
	var (
		p                     core.Project
		deadline              sql.NullString
		status, paymentStatus string
		created, updated      string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.ClientID, &p.ClientName, &p.Name, &p.Description, &deadline,
		&status, &paymentStatus, &created, &updated); err != nil {
		return core.Project{}, err
	}
	d, err := parseDate(deadline)
	if err != nil {
		return core.Project{}, fmt.Errorf("project %d deadline: %w", p.ID, err)
	}
	p.Deadline = d
	p.Status = core.ProjectStatus(status)
	p.PaymentStatus = core.PaymentStatus(paymentStatus)
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := r.ownsRow(ctx, "clients", p.UserID, p.ClientID); err != nil {
		return core.Project{}, err
	}
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (user_id, client_id, name, description, deadline, status, payment_status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.ClientID, p.Name, p.Description, nullDate(p.Deadline), string(p.Status), string(p.PaymentStatus), now, now)
	if err != nil {
		return core.Project{}, fmt.Errorf("create project: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Project{}, fmt.Errorf("create project id: %w", err)
	}
	return r.GetProject(ctx, p.UserID, id)
}

func (r *SQLiteRepository) GetProject(ctx context.Context, userID, id int64) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, projectSelect+` WHERE p.id = ? AND p.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Project{}, fmt.Errorf("get project %d: %w", id, err)
	}
	return p, nil
}

// ListProjects returns the owner's projects with client names, newest first.
func (r *SQLiteRepository) ListProjects(ctx context.Context, userID int64) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, projectSelect+` WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []core.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p core.Project) (core.Project, error) {
	if err := r.ownsRow(ctx, "clients", p.UserID, p.ClientID); err != nil {
		return core.Project{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET client_id = ?, name = ?, description = ?, deadline = ?, status = ?, payment_status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		p.ClientID, p.Name, p.Description, nullDate(p.Deadline), string(p.Status), string(p.PaymentStatus), r.stamp(), p.ID, p.UserID)
	if err != nil {
		return core.Project{}, fmt.Errorf("update project %d: %w", p.ID, mapWriteError(err))
	}
	if err := affectedOne(res, "project", p.ID); err != nil {
		return core.Project{}, err
	}
	return r.GetProject(ctx, p.UserID, p.ID)
}

// DeleteProject removes the project; its invoices cascade.
func (r *SQLiteRepository) DeleteProject(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return affectedOne(res, "project", id)
}
