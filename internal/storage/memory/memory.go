// Package memory is an in-process implementation of ports.Store used for
// development and tests. It mirrors the SQLite repository's semantics:
// owner scoping, reference checks, cascading deletes and newest-first lists.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"freelance/internal/core"
	"freelance/internal/storage"
)

type Store struct {
	mu        sync.RWMutex
	nextID    int64
	users     map[int64]core.User
	clients   map[int64]core.Client
	projects  map[int64]core.Project
	invoices  map[int64]core.Invoice
	reminders map[string]struct{}
	now       func() time.Time
}

func New() *Store {
	return &Store{
		users:     map[int64]core.User{},
		clients:   map[int64]core.Client{},
		projects:  map[int64]core.Project{},
		invoices:  map[int64]core.Invoice{},
		reminders: map[string]struct{}{},
		now:       time.Now,
	}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, storage.ErrNotFound)
}

// newestFirst orders by creation time then id, both descending.
func newestFirst[T any](items []T, created func(T) time.Time, id func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return id(items[i]) > id(items[j])
	})
}

// Users

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, strings.TrimSpace(u.Email)) {
			return core.User{}, fmt.Errorf("create user: %w: email %s", storage.ErrDuplicate, u.Email)
		}
	}
	now := s.now().UTC()
	u.ID = s.id()
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, notFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %q: %w", email, storage.ErrNotFound)
}

func (s *Store) UpdateUserPlan(_ context.Context, id int64, plan core.PlanType) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, notFound("user", id)
	}
	u.Plan = plan
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return u, nil
}

// Clients

func (s *Store) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	return s.CreateClientCapped(ctx, c, -1)
}

func (s *Store) CreateClientCapped(_ context.Context, c core.Client, limit int) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[c.UserID]; !ok {
		return core.Client{}, fmt.Errorf("create client: %w: user %d", storage.ErrInvalidReference, c.UserID)
	}
	if limit >= 0 && s.countClientsLocked(c.UserID) >= limit {
		return core.Client{}, fmt.Errorf("create client: %w: %d clients", storage.ErrLimitReached, limit)
	}
	now := s.now().UTC()
	c.ID = s.id()
	c.CreatedAt, c.UpdatedAt = now, now
	s.clients[c.ID] = c
	return c, nil
}

func (s *Store) GetClient(_ context.Context, userID, id int64) (core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok || c.UserID != userID {
		return core.Client{}, notFound("client", id)
	}
	return c, nil
}

func (s *Store) ListClients(_ context.Context, userID int64) ([]core.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Client{}
	for _, c := range s.clients {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	newestFirst(out, func(c core.Client) time.Time { return c.CreatedAt }, func(c core.Client) int64 { return c.ID })
	return out, nil
}

func (s *Store) UpdateClient(_ context.Context, c core.Client) (core.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.clients[c.ID]
	if !ok || existing.UserID != c.UserID {
		return core.Client{}, notFound("client", c.ID)
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = s.now().UTC()
	s.clients[c.ID] = c
	return c, nil
}

// DeleteClient cascades to the client's projects and their invoices.
func (s *Store) DeleteClient(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok || c.UserID != userID {
		return notFound("client", id)
	}
	delete(s.clients, id)
	for pid, p := range s.projects {
		if p.ClientID == id {
			s.deleteProjectLocked(pid)
		}
	}
	return nil
}

func (s *Store) CountClients(_ context.Context, userID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countClientsLocked(userID), nil
}

func (s *Store) countClientsLocked(userID int64) int {
	n := 0
	for _, c := range s.clients {
		if c.UserID == userID {
			n++
		}
	}
	return n
}

// Projects

func (s *Store) ownedClientLocked(userID, clientID int64) (core.Client, error) {
	c, ok := s.clients[clientID]
	if !ok || c.UserID != userID {
		return core.Client{}, fmt.Errorf("%w: client %d", storage.ErrInvalidReference, clientID)
	}
	return c, nil
}

func (s *Store) joinProjectLocked(p core.Project) core.Project {
	if c, ok := s.clients[p.ClientID]; ok {
		p.ClientName = c.Name
	}
	return p
}

func (s *Store) CreateProject(_ context.Context, p core.Project) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownedClientLocked(p.UserID, p.ClientID); err != nil {
		return core.Project{}, err
	}
	now := s.now().UTC()
	p.ID = s.id()
	p.ClientName = ""
	p.CreatedAt, p.UpdatedAt = now, now
	s.projects[p.ID] = p
	return s.joinProjectLocked(p), nil
}

func (s *Store) GetProject(_ context.Context, userID, id int64) (core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok || p.UserID != userID {
		return core.Project{}, notFound("project", id)
	}
	return s.joinProjectLocked(p), nil
}

func (s *Store) ListProjects(_ context.Context, userID int64) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Project{}
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, s.joinProjectLocked(p))
		}
	}
	newestFirst(out, func(p core.Project) time.Time { return p.CreatedAt }, func(p core.Project) int64 { return p.ID })
	return out, nil
}

func (s *Store) UpdateProject(_ context.Context, p core.Project) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.projects[p.ID]
	if !ok || existing.UserID != p.UserID {
		return core.Project{}, notFound("project", p.ID)
	}
	if _, err := s.ownedClientLocked(p.UserID, p.ClientID); err != nil {
		return core.Project{}, err
	}
	p.ClientName = ""
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	s.projects[p.ID] = p
	return s.joinProjectLocked(p), nil
}

func (s *Store) DeleteProject(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok || p.UserID != userID {
		return notFound("project", id)
	}
	s.deleteProjectLocked(id)
	return nil
}

func (s *Store) deleteProjectLocked(id int64) {
	delete(s.projects, id)
	for iid, inv := range s.invoices {
		if inv.ProjectID == id {
			delete(s.invoices, iid)
		}
	}
}

// Invoices

func (s *Store) joinInvoiceLocked(inv core.Invoice) core.Invoice {
	if p, ok := s.projects[inv.ProjectID]; ok {
		inv.ProjectName = p.Name
		if c, ok := s.clients[p.ClientID]; ok {
			inv.ClientName = c.Name
		}
	}
	return inv
}

func (s *Store) ownedProjectLocked(userID, projectID int64) error {
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return fmt.Errorf("%w: project %d", storage.ErrInvalidReference, projectID)
	}
	return nil
}

func (s *Store) CreateInvoice(_ context.Context, inv core.Invoice) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ownedProjectLocked(inv.UserID, inv.ProjectID); err != nil {
		return core.Invoice{}, err
	}
	if inv.Amount.Cents < 0 {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", core.ErrNegativeAmount)
	}
	now := s.now().UTC()
	inv.ID = s.id()
	inv.ProjectName, inv.ClientName = "", ""
	inv.CreatedAt, inv.UpdatedAt = now, now
	s.invoices[inv.ID] = inv
	return s.joinInvoiceLocked(inv), nil
}

func (s *Store) GetInvoice(_ context.Context, userID, id int64) (core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[id]
	if !ok || inv.UserID != userID {
		return core.Invoice{}, notFound("invoice", id)
	}
	return s.joinInvoiceLocked(inv), nil
}

func (s *Store) ListInvoices(_ context.Context, userID int64) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Invoice{}
	for _, inv := range s.invoices {
		if inv.UserID == userID {
			out = append(out, s.joinInvoiceLocked(inv))
		}
	}
	newestFirst(out, func(i core.Invoice) time.Time { return i.CreatedAt }, func(i core.Invoice) int64 { return i.ID })
	return out, nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv core.Invoice) (core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.invoices[inv.ID]
	if !ok || existing.UserID != inv.UserID {
		return core.Invoice{}, notFound("invoice", inv.ID)
	}
	if err := s.ownedProjectLocked(inv.UserID, inv.ProjectID); err != nil {
		return core.Invoice{}, err
	}
	inv.ProjectName, inv.ClientName = "", ""
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = s.now().UTC()
	s.invoices[inv.ID] = inv
	return s.joinInvoiceLocked(inv), nil
}

func (s *Store) DeleteInvoice(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok || inv.UserID != userID {
		return notFound("invoice", id)
	}
	delete(s.invoices, id)
	return nil
}

func (s *Store) LastInvoiceSequence(_ context.Context, userID int64, year int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	last := 0
	for _, inv := range s.invoices {
		if inv.UserID != userID {
			continue
		}
		if n, ok := core.InvoiceSequence(inv.Number, year); ok && n > last {
			last = n
		}
	}
	return last, nil
}

func (s *Store) ListOverdueInvoices(_ context.Context, asOf time.Time) ([]core.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Invoice{}
	for _, inv := range s.invoices {
		if inv.IsOverdue(asOf) {
			out = append(out, s.joinInvoiceLocked(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].DueDate.Time.Before(out[j].DueDate.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) MarkReminded(_ context.Context, invoiceID int64, day core.Date) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d/%s", invoiceID, day)
	if _, ok := s.reminders[key]; ok {
		return false, nil
	}
	s.reminders[key] = struct{}{}
	return true, nil
}
