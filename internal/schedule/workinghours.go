package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrSlotNotFound is returned when a delete targets a slot the day does not hold.
var ErrSlotNotFound = errors.New("ERR_WORKING_TIME_SLOT_NOT_FOUND")

// DB is the subset of pgxpool.Pool the store needs. pgxmock satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WorkingHoursStore persists per-agent weekly working hours. Days and slots
// are soft-deleted so past availability remains auditable.
type WorkingHoursStore struct {
	db DB
}

func NewWorkingHoursStore(pool *pgxpool.Pool) *WorkingHoursStore {
	if pool == nil {
		panic("schedule: pgx pool required")
	}
	return &WorkingHoursStore{db: pool}
}

func newWorkingHoursStoreWithDB(db DB) *WorkingHoursStore {
	return &WorkingHoursStore{db: db}
}

// Availability returns the merged weekly template for one agent. Every weekday
// 1..7 is present in the result; days off map to an empty slice even when they
// still hold a slot template.
func (s *WorkingHoursStore) Availability(ctx context.Context, agentID int64) (map[Weekday][]TimeSlot, error) {
	rows, err := s.db.Query(ctx, `
		SELECT d.weekday, s.start_time, s.end_time
		FROM working_days d
		LEFT JOIN working_time_slots s
		  ON s.working_day_id = d.id AND s.is_deleted = FALSE AND d.is_off_day = FALSE
		WHERE d.agent_id = $1 AND d.is_deleted = FALSE
		ORDER BY d.weekday, s.start_time`, agentID)
	if err != nil {
		return nil, fmt.Errorf("schedule: load availability: %w", err)
	}
	defer rows.Close()

	week := make(map[Weekday][]TimeSlot, 7)
	for day := Weekday(1); day <= 7; day++ {
		week[day] = []TimeSlot{}
	}
	for rows.Next() {
		var (
			day        Weekday
			start, end *float64
		)
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("schedule: scan availability: %w", err)
		}
		if start == nil || end == nil {
			continue // day row without slots
		}
		week[day] = append(week[day], TimeSlot{StartTime: *start, EndTime: *end})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: read availability: %w", err)
	}

	for day, slots := range week {
		if len(slots) > 1 {
			week[day] = Merge(slots)
		}
	}
	return week, nil
}

// UpsertDay replaces the slot set for one weekday. Each incoming slot is
// validated and the set is rejected as a whole if any two slots overlap.
// A missing day row is created lazily. An off day keeps its slot template
// but advertises no availability until the flag is cleared.
func (s *WorkingHoursStore) UpsertDay(ctx context.Context, agentID int64, day Weekday, slots []TimeSlot, isOffDay bool) error {
	if day < 1 || day > 7 {
		return ErrBadWeekday
	}
	for _, slot := range slots {
		if err := ValidateSlot(slot.StartTime, slot.EndTime); err != nil {
			return err
		}
	}
	for i := range slots {
		for j := i + 1; j < len(slots); j++ {
			if Overlaps(slots[i].StartTime, slots[i].EndTime, slots[j].StartTime, slots[j].EndTime) {
				return ErrSlotsOverlap
			}
		}
	}

	dayID, err := s.ensureDay(ctx, agentID, day)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE working_days
		SET is_off_day = $2, updated_at = now()
		WHERE id = $1`, dayID, isOffDay); err != nil {
		return fmt.Errorf("schedule: set off-day flag: %w", err)
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE working_time_slots
		SET is_deleted = TRUE, updated_at = now()
		WHERE working_day_id = $1 AND is_deleted = FALSE`, dayID); err != nil {
		return fmt.Errorf("schedule: clear day slots: %w", err)
	}
	for _, slot := range slots {
		if _, err := s.db.Exec(ctx, `
			INSERT INTO working_time_slots (working_day_id, start_time, end_time)
			VALUES ($1, $2, $3)`, dayID, slot.StartTime, slot.EndTime); err != nil {
			return fmt.Errorf("schedule: insert slot: %w", err)
		}
	}
	return nil
}

func (s *WorkingHoursStore) ensureDay(ctx context.Context, agentID int64, day Weekday) (int64, error) {
	var dayID int64
	err := s.db.QueryRow(ctx, `
		SELECT id FROM working_days
		WHERE agent_id = $1 AND weekday = $2 AND is_deleted = FALSE`, agentID, day).Scan(&dayID)
	if err == nil {
		return dayID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("schedule: find day: %w", err)
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO working_days (agent_id, weekday)
		VALUES ($1, $2)
		RETURNING id`, agentID, day).Scan(&dayID)
	if err != nil {
		return 0, fmt.Errorf("schedule: create day: %w", err)
	}
	return dayID, nil
}

// DeleteDay soft-deletes a weekday and all of its slots.
func (s *WorkingHoursStore) DeleteDay(ctx context.Context, agentID int64, day Weekday) error {
	if day < 1 || day > 7 {
		return ErrBadWeekday
	}
	var dayID int64
	err := s.db.QueryRow(ctx, `
		SELECT id FROM working_days
		WHERE agent_id = $1 AND weekday = $2 AND is_deleted = FALSE`, agentID, day).Scan(&dayID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDayNotFound
	}
	if err != nil {
		return fmt.Errorf("schedule: find day: %w", err)
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE working_time_slots
		SET is_deleted = TRUE, updated_at = now()
		WHERE working_day_id = $1 AND is_deleted = FALSE`, dayID); err != nil {
		return fmt.Errorf("schedule: delete day slots: %w", err)
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE working_days
		SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1`, dayID); err != nil {
		return fmt.Errorf("schedule: delete day: %w", err)
	}
	return nil
}

// DeleteSlot soft-deletes a single slot identified by its exact range. When
// the last slot of a day goes, the day row collapses with it.
func (s *WorkingHoursStore) DeleteSlot(ctx context.Context, agentID int64, day Weekday, start, end float64) error {
	if day < 1 || day > 7 {
		return ErrBadWeekday
	}
	var dayID int64
	err := s.db.QueryRow(ctx, `
		SELECT id FROM working_days
		WHERE agent_id = $1 AND weekday = $2 AND is_deleted = FALSE`, agentID, day).Scan(&dayID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDayNotFound
	}
	if err != nil {
		return fmt.Errorf("schedule: find day: %w", err)
	}

	ct, err := s.db.Exec(ctx, `
		UPDATE working_time_slots
		SET is_deleted = TRUE, updated_at = now()
		WHERE working_day_id = $1 AND start_time = $2 AND end_time = $3 AND is_deleted = FALSE`,
		dayID, start, end)
	if err != nil {
		return fmt.Errorf("schedule: delete slot: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrSlotNotFound
	}

	var remaining int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM working_time_slots
		WHERE working_day_id = $1 AND is_deleted = FALSE`, dayID).Scan(&remaining); err != nil {
		return fmt.Errorf("schedule: count remaining slots: %w", err)
	}
	if remaining == 0 {
		if _, err := s.db.Exec(ctx, `
			UPDATE working_days
			SET is_deleted = TRUE, updated_at = now()
			WHERE id = $1`, dayID); err != nil {
			return fmt.Errorf("schedule: collapse day: %w", err)
		}
	}
	return nil
}

// MinMaxHours computes the widget's display window across a set of agents:
// the earliest slot start and the latest slot end over all their working
// days. A working day with no slots widens the window to the full 0..24
// range, as does an agent pool with no working days at all.
func (s *WorkingHoursStore) MinMaxHours(ctx context.Context, agentIDs []int64) (float64, float64, error) {
	if len(agentIDs) == 0 {
		return 0, 24, nil
	}
	var (
		minHour, maxHour float64
		bareDays         int
	)
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(MIN(s.start_time), 0),
		       COALESCE(MAX(s.end_time), 24),
		       COUNT(*) FILTER (WHERE s.id IS NULL)
		FROM working_days d
		LEFT JOIN working_time_slots s
		  ON s.working_day_id = d.id AND s.is_deleted = FALSE
		WHERE d.agent_id = ANY($1) AND d.is_deleted = FALSE AND d.is_off_day = FALSE`, agentIDs).
		Scan(&minHour, &maxHour, &bareDays)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule: min/max hours: %w", err)
	}
	if bareDays > 0 {
		return 0, 24, nil
	}
	return minHour, maxHour, nil
}
