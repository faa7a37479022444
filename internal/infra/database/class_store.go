package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"school_portal_core/internal/domain/class"
	"school_portal_core/internal/domain/term"
)

// ClassStore implements class.Repository.
type ClassStore struct {
	db *sqlx.DB
}

func NewClassStore(db *sqlx.DB) *ClassStore {
	return &ClassStore{db: db}
}

const classColumns = `id, name, category, schedule_day, start_time, end_time, timezone, term_id, active`

func (s *ClassStore) GetByID(ctx context.Context, id string) (*class.Class, error) {
	var c class.Class
	query := s.db.Rebind(`SELECT ` + classColumns + ` FROM classes WHERE id = ?`)
	if err := s.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, class.ErrClassNotFound
		}
		return nil, fmt.Errorf("error getting class by ID: %w", err)
	}
	return &c, nil
}

func (s *ClassStore) ListActive(ctx context.Context) ([]class.Class, error) {
	var classes []class.Class
	query := `SELECT ` + classColumns + ` FROM classes WHERE active = TRUE ORDER BY name, id`
	if err := s.db.SelectContext(ctx, &classes, query); err != nil {
		return nil, fmt.Errorf("error listing active classes: %w", err)
	}
	return classes, nil
}

// ListRecipients returns every profile enrolled in the class.
func (s *ClassStore) ListRecipients(ctx context.Context, classID string) ([]class.Recipient, error) {
	var recipients []class.Recipient
	query := s.db.Rebind(`SELECT p.id AS profile_id, p.display_name, p.email, p.timezone, p.locale,
		p.notification_preferences
		FROM enrollments e
		JOIN profiles p ON p.id = e.profile_id
		WHERE e.class_id = ?
		ORDER BY p.display_name, p.id`)
	if err := s.db.SelectContext(ctx, &recipients, query, classID); err != nil {
		return nil, fmt.Errorf("error listing recipients for class %s: %w", classID, err)
	}
	return recipients, nil
}

// TermStore implements term.Repository.
type TermStore struct {
	db *sqlx.DB
}

func NewTermStore(db *sqlx.DB) *TermStore {
	return &TermStore{db: db}
}

func (s *TermStore) GetByID(ctx context.Context, id string) (*term.Term, error) {
	var row struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		StartDate string `db:"start_date"`
		EndDate   string `db:"end_date"`
	}
	query := s.db.Rebind(`SELECT id, name, start_date, end_date FROM terms WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, term.ErrTermNotFound
		}
		return nil, fmt.Errorf("error getting term by ID: %w", err)
	}
	start, err := term.ParseDate(row.StartDate)
	if err != nil {
		return nil, fmt.Errorf("term %s has malformed start date %q: %w", id, row.StartDate, err)
	}
	end, err := term.ParseDate(row.EndDate)
	if err != nil {
		return nil, fmt.Errorf("term %s has malformed end date %q: %w", id, row.EndDate, err)
	}
	return &term.Term{ID: row.ID, Name: row.Name, StartDate: start, EndDate: end}, nil
}
