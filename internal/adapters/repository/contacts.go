package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/stomp/internal/domain/model"
)

const contactColumns = `id, user_id, name, relationship, phone, email, is_primary, created_at`

// CreateContact stores c for its owner.
func (s *Store) CreateContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = utc(s.now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO emergency_contacts (`+contactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.Name, c.Relationship, c.Phone, c.Email, c.Primary, c.CreatedAt)
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return c, nil
}

// Contacts lists the owner's contacts, primary first.
func (s *Store) Contacts(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contactColumns+` FROM emergency_contacts
		WHERE user_id = $1 ORDER BY is_primary DESC, created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Contact returns one of the owner's contacts. Contacts of other users are
// reported as ErrNotFound.
func (s *Store) Contact(ctx context.Context, userID, id string) (model.Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM emergency_contacts
		WHERE id = $1 AND user_id = $2`, id, userID)
	return scanContact(row)
}

// UpdateContact replaces the mutable fields of one of the owner's contacts.
func (s *Store) UpdateContact(ctx context.Context, c model.Contact) (model.Contact, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE emergency_contacts
		SET name = $1, relationship = $2, phone = $3, email = $4, is_primary = $5
		WHERE id = $6 AND user_id = $7`,
		c.Name, c.Relationship, c.Phone, c.Email, c.Primary, c.ID, c.UserID)
	if err != nil {
		return model.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	if err := expectOne(res, "contact"); err != nil {
		return model.Contact{}, err
	}
	return s.Contact(ctx, c.UserID, c.ID)
}

// DeleteContact removes one of the owner's contacts.
func (s *Store) DeleteContact(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM emergency_contacts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	return expectOne(res, "contact")
}

func scanContact(row scanner) (model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Relationship, &c.Phone, &c.Email, &c.Primary, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contact{}, fmt.Errorf("%w: contact", ErrNotFound)
	}
	if err != nil {
		return model.Contact{}, fmt.Errorf("scan contact: %w", err)
	}
	return c, nil
}

func expectOne(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}
