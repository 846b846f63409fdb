package appointments

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/casavisita/platform/internal/availability"
)

// DB is the pgx surface the repository uses; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments and their status history. It also serves
// as the availability computer's booking source.
type Repository struct {
	db DB
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

const appointmentColumns = `id, date, hour, duration, COALESCE(notes, ''), client_id, agent_id,
	residence_id, owner_confirmation, agent_confirmation, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.Date, &a.Hour, &a.Duration, &a.Notes, &a.ClientID, &a.AgentID,
		&a.ResidenceID, &a.OwnerConfirmation, &a.AgentConfirmation, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new appointment and fills in its generated fields.
func (r *Repository) Create(ctx context.Context, a *Appointment) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments
		  (date, hour, duration, notes, client_id, agent_id, residence_id, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		a.Date, a.Hour, a.Duration, a.Notes, a.ClientID, a.AgentID, a.ResidenceID, a.Status).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("appointments: create: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND is_deleted = FALSE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get by id: %w", err)
	}
	return a, nil
}

// SetStatus moves the appointment to a new status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE`, id, status)
	if err != nil {
		return fmt.Errorf("appointments: set status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetAgentConfirmed records the agent's approval flag.
func (r *Repository) SetAgentConfirmed(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET agent_confirmation = TRUE, updated_at = now()
		WHERE id = $1`, id); err != nil {
		return fmt.Errorf("appointments: set agent confirmation: %w", err)
	}
	return nil
}

// SetOwnerConfirmed records the owner's approval flag.
func (r *Repository) SetOwnerConfirmed(ctx context.Context, id int64) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET owner_confirmation = TRUE, updated_at = now()
		WHERE id = $1`, id); err != nil {
		return fmt.Errorf("appointments: set owner confirmation: %w", err)
	}
	return nil
}

// SetSchedule rewrites the date and hour; the only mutable scheduling fields.
func (r *Repository) SetSchedule(ctx context.Context, id int64, date string, hour float64) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET date = $2, hour = $3, updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE`, id, date, hour)
	if err != nil {
		return fmt.Errorf("appointments: set schedule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory adds a row to the append-only status audit trail.
func (r *Repository) AppendHistory(ctx context.Context, appointmentID int64, status Status) error {
	if _, err := r.db.Exec(ctx, `
		INSERT INTO appointment_status_history (appointment_id, status)
		VALUES ($1, $2)`, appointmentID, status); err != nil {
		return fmt.Errorf("appointments: append history: %w", err)
	}
	return nil
}

// History lists the audit trail, oldest first.
func (r *Repository) History(ctx context.Context, appointmentID int64) ([]StatusHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, appointment_id, status, created_at
		FROM appointment_status_history
		WHERE appointment_id = $1
		ORDER BY created_at, id`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointments: history: %w", err)
	}
	defer rows.Close()

	var out []StatusHistory
	for rows.Next() {
		var h StatusHistory
		if err := rows.Scan(&h.ID, &h.AppointmentID, &h.Status, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan history: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListByResidence lists a residence's appointments, newest first.
func (r *Repository) ListByResidence(ctx context.Context, residenceID int64) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE residence_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC`, residenceID)
	if err != nil {
		return nil, fmt.Errorf("appointments: list by residence: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AgentBookings returns the live load the given agents carry outside one
// residence. All agents are aggregated, not just the first.
func (r *Repository) AgentBookings(ctx context.Context, agentIDs []int64, excludeResidenceID int64) ([]availability.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT residence_id, date, hour, duration
		FROM appointments
		WHERE agent_id = ANY($1)
		  AND residence_id <> $2
		  AND status NOT IN ($3, $4)
		  AND is_deleted = FALSE`,
		agentIDs, excludeResidenceID, StatusCanceled, StatusRejected)
	if err != nil {
		return nil, fmt.Errorf("appointments: agent bookings: %w", err)
	}
	defer rows.Close()

	var out []availability.Booking
	for rows.Next() {
		b := availability.Booking{Live: true}
		if err := rows.Scan(&b.ResidenceID, &b.Date, &b.Hour, &b.Duration); err != nil {
			return nil, fmt.Errorf("appointments: scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ResidenceBookings returns every appointment a residence holds, canceled
// ones included, so the computer can re-advertise freed slots.
func (r *Repository) ResidenceBookings(ctx context.Context, residenceID int64) ([]availability.Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT residence_id, date, hour, duration, status
		FROM appointments
		WHERE residence_id = $1 AND is_deleted = FALSE`, residenceID)
	if err != nil {
		return nil, fmt.Errorf("appointments: residence bookings: %w", err)
	}
	defer rows.Close()

	var out []availability.Booking
	for rows.Next() {
		var (
			b      availability.Booking
			status Status
		)
		if err := rows.Scan(&b.ResidenceID, &b.Date, &b.Hour, &b.Duration, &status); err != nil {
			return nil, fmt.Errorf("appointments: scan booking: %w", err)
		}
		b.Live = status.Live()
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListForSweep returns appointments in a sweepable status, joined with the
// owning agency for notification lookups.
func (r *Repository) ListForSweep(ctx context.Context) ([]SweepCandidate, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.date, a.hour, a.duration, COALESCE(a.notes, ''), a.client_id, a.agent_id,
		       a.residence_id, a.owner_confirmation, a.agent_confirmation, a.status,
		       a.created_at, a.updated_at, ag.agency_id
		FROM appointments a
		JOIN agents ag ON ag.id = a.agent_id
		WHERE a.status = ANY($1) AND a.is_deleted = FALSE`,
		[]Status{StatusReprogrammed, StatusPendingOwner, StatusConfirmed, StatusPendingClient, StatusPending})
	if err != nil {
		return nil, fmt.Errorf("appointments: list for sweep: %w", err)
	}
	defer rows.Close()

	var out []SweepCandidate
	for rows.Next() {
		var c SweepCandidate
		if err := rows.Scan(&c.ID, &c.Date, &c.Hour, &c.Duration, &c.Notes, &c.ClientID, &c.AgentID,
			&c.ResidenceID, &c.OwnerConfirmation, &c.AgentConfirmation, &c.Status,
			&c.CreatedAt, &c.UpdatedAt, &c.AgencyID); err != nil {
			return nil, fmt.Errorf("appointments: scan sweep candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
