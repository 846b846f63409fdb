package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the pgx surface the store uses; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists reminders in Postgres.
type Store struct {
	db DB
}

func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("reminders: pgx pool required")
	}
	return &Store{db: pool}
}

func newStoreWithDB(db DB) *Store {
	return &Store{db: db}
}

// Create persists a reminder. The config is stored as JSONB.
func (s *Store) Create(ctx context.Context, name, caseName string, config any, dueDate time.Time) error {
	payload, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("reminders: encode config: %w", err)
	}
	if _, err := s.db.Exec(ctx, `
		INSERT INTO reminders (name, reminder_case, config, due_date)
		VALUES ($1, $2, $3, $4)`, name, caseName, payload, dueDate); err != nil {
		return fmt.Errorf("reminders: create: %w", err)
	}
	return nil
}

// ListExpired returns reminders whose due date has passed and are still open.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]Reminder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, reminder_case, config, due_date, is_completed, created_at
		FROM reminders
		WHERE due_date < $1 AND is_completed = FALSE
		ORDER BY due_date`, now)
	if err != nil {
		return nil, fmt.Errorf("reminders: list expired: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		if err := rows.Scan(&r.ID, &r.Name, &r.Case, &r.Config, &r.DueDate, &r.IsCompleted, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("reminders: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a consumed reminder. Fire-once: the row is dropped, not
// marked completed and kept.
func (s *Store) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM reminders WHERE id = $1`, id); err != nil {
		return fmt.Errorf("reminders: delete: %w", err)
	}
	return nil
}
