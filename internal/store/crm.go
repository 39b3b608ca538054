package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldlinehq/fieldline/internal/model"
)

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

// CreateContact inserts a new contact.
func (s *Store) CreateContact(ctx context.Context, c *model.Contact) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	const q = `INSERT INTO contacts (id, tenant_id, name, email, phone, address, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		c.ID, c.TenantID, c.Name, c.Email, c.Phone, c.Address, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

// SearchContacts returns contacts for the tenant whose name, email, or phone
// contains the query string (case-insensitive). An empty query lists the
// most recent contacts up to limit.
func (s *Store) SearchContacts(ctx context.Context, tenantID, query string, limit int) ([]model.Contact, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var contacts []model.Contact
	if query == "" {
		const q = `SELECT * FROM contacts WHERE tenant_id = ? ORDER BY updated_at DESC LIMIT ?`
		if err := s.db.SelectContext(ctx, &contacts, s.rebind(q), tenantID, limit); err != nil {
			return nil, fmt.Errorf("list contacts: %w", err)
		}
		return contacts, nil
	}
	pattern := "%" + query + "%"
	const q = `SELECT * FROM contacts WHERE tenant_id = ?
		AND (LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR phone LIKE ?)
		ORDER BY updated_at DESC LIMIT ?`
	if err := s.db.SelectContext(ctx, &contacts, s.rebind(q),
		tenantID, pattern, pattern, pattern, limit); err != nil {
		return nil, fmt.Errorf("search contacts: %w", err)
	}
	return contacts, nil
}

// GetContact returns a tenant's contact by id.
func (s *Store) GetContact(ctx context.Context, tenantID, id string) (*model.Contact, error) {
	var c model.Contact
	err := s.db.GetContext(ctx, &c,
		s.rebind("SELECT * FROM contacts WHERE id = ? AND tenant_id = ?"), id, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &c, nil
}

// ---------------------------------------------------------------------------
// Leads
// ---------------------------------------------------------------------------

// CreateLead inserts a new lead. Status defaults to "new" when unset.
func (s *Store) CreateLead(ctx context.Context, l *model.Lead) error {
	now := time.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	if l.Status == "" {
		l.Status = model.LeadStatusNew
	}
	const q = `INSERT INTO leads (id, tenant_id, name, email, phone, source, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		l.ID, l.TenantID, l.Name, l.Email, l.Phone, l.Source, l.Status, l.Notes,
		l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

// GetLead returns a tenant's lead by id.
func (s *Store) GetLead(ctx context.Context, tenantID, id string) (*model.Lead, error) {
	var l model.Lead
	err := s.db.GetContext(ctx, &l,
		s.rebind("SELECT * FROM leads WHERE id = ? AND tenant_id = ?"), id, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return &l, nil
}

// UpdateLeadStatus moves a lead to a new pipeline state.
func (s *Store) UpdateLeadStatus(ctx context.Context, tenantID, id, status string) error {
	const q = `UPDATE leads SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`
	res, err := s.db.ExecContext(ctx, s.rebind(q), status, time.Now().UTC(), id, tenantID)
	if err != nil {
		return fmt.Errorf("update lead status: %w", err)
	}
	return oneRowAffected(res)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// CreateEvent inserts a calendar entry after verifying the slot is free.
// Returns ErrConflict when an existing event for the tenant overlaps
// [StartAt, EndAt).
func (s *Store) CreateEvent(ctx context.Context, e *model.Event) error {
	e.CreatedAt = time.Now().UTC()

	var overlapping int
	const check = `SELECT COUNT(*) FROM events
		WHERE tenant_id = ? AND start_at < ? AND end_at > ?`
	if err := s.db.GetContext(ctx, &overlapping, s.rebind(check),
		e.TenantID, e.EndAt, e.StartAt); err != nil {
		return fmt.Errorf("check event overlap: %w", err)
	}
	if overlapping > 0 {
		return ErrConflict
	}

	const q = `INSERT INTO events (id, tenant_id, contact_id, title, start_at, end_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.rebind(q),
		e.ID, e.TenantID, e.ContactID, e.Title, e.StartAt, e.EndAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEventsBetween returns the tenant's events overlapping [from, to),
// ordered by start time. from/to are unix seconds.
func (s *Store) ListEventsBetween(ctx context.Context, tenantID string, from, to int64) ([]model.Event, error) {
	var events []model.Event
	const q = `SELECT * FROM events
		WHERE tenant_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at`
	if err := s.db.SelectContext(ctx, &events, s.rebind(q), tenantID, to, from); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
