package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAgencyNotFound    = errors.New("ERR_AGENCY_NOT_FOUND")
	ErrAgentNotFound     = errors.New("ERR_AGENT_NOT_FOUND")
	ErrClientNotFound    = errors.New("ERR_CLIENT_NOT_FOUND")
	ErrResidenceNotFound = errors.New("ERR_RESIDENCE_NOT_FOUND")
)

// DB is the pgx surface the store uses; pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads tenant master data. Writes are limited to client upserts and
// dashboard notifications; everything else is managed out of band.
type Store struct {
	db         DB
	defaultMin int
	defaultMax int
}

func NewStore(pool *pgxpool.Pool, defaultMinDays, defaultMaxDays int) *Store {
	if pool == nil {
		panic("directory: pgx pool required")
	}
	return &Store{db: pool, defaultMin: defaultMinDays, defaultMax: defaultMaxDays}
}

func newStoreWithDB(db DB, defaultMinDays, defaultMaxDays int) *Store {
	return &Store{db: db, defaultMin: defaultMinDays, defaultMax: defaultMaxDays}
}

func (s *Store) AgencyByID(ctx context.Context, id int64) (*Agency, error) {
	var a Agency
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), is_active
		FROM agencies
		WHERE id = $1 AND is_deleted = FALSE`, id).
		Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: agency by id: %w", err)
	}
	return &a, nil
}

func (s *Store) AgentByID(ctx context.Context, id int64) (*Agent, error) {
	var a Agent
	err := s.db.QueryRow(ctx, `
		SELECT id, agency_id, name, email, COALESCE(phone, ''), all_residences, is_active
		FROM agents
		WHERE id = $1 AND is_deleted = FALSE`, id).
		Scan(&a.ID, &a.AgencyID, &a.Name, &a.Email, &a.Phone, &a.AllResidences, &a.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: agent by id: %w", err)
	}
	return &a, nil
}

func (s *Store) ClientByID(ctx context.Context, id int64) (*Client, error) {
	var c Client
	err := s.db.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, '')
		FROM clients
		WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: client by id: %w", err)
	}
	return &c, nil
}

// UpsertClient finds or creates a client by email, refreshing the stored
// name and phone with whatever the booking form sent.
func (s *Store) UpsertClient(ctx context.Context, name, email, phone string) (*Client, error) {
	var c Client
	err := s.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (email) DO UPDATE SET
		  name = EXCLUDED.name,
		  phone = COALESCE(EXCLUDED.phone, clients.phone),
		  updated_at = now()
		RETURNING id, name, email, COALESCE(phone, '')`,
		name, email, phone).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		return nil, fmt.Errorf("directory: upsert client: %w", err)
	}
	return &c, nil
}

// ResidenceByID scopes the lookup to the agency so a widget cannot reach
// across tenants with a guessed residence id.
func (s *Store) ResidenceByID(ctx context.Context, id, agencyID int64) (*Residence, error) {
	var r Residence
	err := s.db.QueryRow(ctx, `
		SELECT id, agency_id, name, COALESCE(address, ''), COALESCE(owner_name, ''),
		       COALESCE(owner_email, ''), all_agents
		FROM residences
		WHERE id = $1 AND agency_id = $2 AND is_deleted = FALSE`, id, agencyID).
		Scan(&r.ID, &r.AgencyID, &r.Name, &r.Address, &r.OwnerName, &r.OwnerEmail, &r.AllAgents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResidenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory: residence by id: %w", err)
	}
	return &r, nil
}

// ServingAgents returns the active agents who may host visits at a residence:
// agents linked explicitly, agents flagged to cover all residences, and the
// whole agency roster when the residence itself accepts any agent.
func (s *Store) ServingAgents(ctx context.Context, residenceID int64) ([]Agent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.agency_id, a.name, a.email, COALESCE(a.phone, ''), a.all_residences, a.is_active
		FROM agents a
		JOIN residences r ON r.id = $1 AND r.agency_id = a.agency_id
		WHERE a.is_active = TRUE AND a.is_deleted = FALSE
		  AND (
		    r.all_agents = TRUE
		    OR a.all_residences = TRUE
		    OR EXISTS (
		      SELECT 1 FROM residence_agents ra
		      WHERE ra.residence_id = r.id AND ra.agent_id = a.id
		    )
		  )
		ORDER BY a.id`, residenceID)
	if err != nil {
		return nil, fmt.Errorf("directory: serving agents: %w", err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		var a Agent
		if err := rows.Scan(&a.ID, &a.AgencyID, &a.Name, &a.Email, &a.Phone, &a.AllResidences, &a.IsActive); err != nil {
			return nil, fmt.Errorf("directory: scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// Config returns the agency's booking horizon, falling back to the platform
// defaults when no per-agency row exists.
func (s *Store) Config(ctx context.Context, agencyID int64) (AgencyConfig, error) {
	cfg := AgencyConfig{MinScheduleDays: s.defaultMin, MaxScheduleDays: s.defaultMax}
	err := s.db.QueryRow(ctx, `
		SELECT min_schedule_days, max_schedule_days
		FROM agency_configuration
		WHERE agency_id = $1`, agencyID).
		Scan(&cfg.MinScheduleDays, &cfg.MaxScheduleDays)
	if errors.Is(err, pgx.ErrNoRows) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("directory: agency config: %w", err)
	}
	return cfg, nil
}

// CreateNotification records a dashboard notification for the agency.
func (s *Store) CreateNotification(ctx context.Context, agencyID int64, message string) error {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO agency_notifications (agency_id, message)
		VALUES ($1, $2)`, agencyID, message); err != nil {
		return fmt.Errorf("directory: create notification: %w", err)
	}
	return nil
}
