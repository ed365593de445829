package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// ========== Layout Schedule Methods ==========

// CreateSchedule creates a new layout schedule
func (s *PostgresStore) CreateSchedule(ctx context.Context, schedule *models.LayoutSchedule) error {
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}

	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	query := `
        INSERT INTO layout_schedules (
            id, created_at, updated_at, name, target_client_id, target_group,
            content_id, start_time, end_time, days_of_week, priority, active,
            valid_from, valid_until
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		schedule.ID, schedule.CreatedAt, schedule.UpdatedAt, schedule.Name,
		schedule.TargetClientID, schedule.TargetGroup, schedule.ContentID,
		schedule.StartTime, schedule.EndTime, schedule.DaysOfWeek,
		schedule.Priority, schedule.Active, schedule.ValidFrom,
		schedule.ValidUntil,
	)

	return err
}

const scheduleColumns = `
        id, created_at, updated_at, name, target_client_id, target_group,
        content_id, start_time, end_time, days_of_week, priority, active,
        valid_from, valid_until`

func scanSchedule(row interface{ Scan(...interface{}) error }) (*models.LayoutSchedule, error) {
	schedule := &models.LayoutSchedule{}
	err := row.Scan(
		&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt, &schedule.Name,
		&schedule.TargetClientID, &schedule.TargetGroup, &schedule.ContentID,
		&schedule.StartTime, &schedule.EndTime, &schedule.DaysOfWeek,
		&schedule.Priority, &schedule.Active, &schedule.ValidFrom,
		&schedule.ValidUntil,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return schedule, nil
}

// GetSchedule gets a layout schedule by id
func (s *PostgresStore) GetSchedule(ctx context.Context, id uuid.UUID) (*models.LayoutSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM layout_schedules WHERE id = $1`
	return scanSchedule(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdateSchedule updates a layout schedule
func (s *PostgresStore) UpdateSchedule(ctx context.Context, schedule *models.LayoutSchedule) error {
	schedule.UpdatedAt = time.Now()

	query := `
        UPDATE layout_schedules SET
            updated_at = $2, name = $3, target_client_id = $4,
            target_group = $5, content_id = $6, start_time = $7,
            end_time = $8, days_of_week = $9, priority = $10, active = $11,
            valid_from = $12, valid_until = $13
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		schedule.ID, schedule.UpdatedAt, schedule.Name,
		schedule.TargetClientID, schedule.TargetGroup, schedule.ContentID,
		schedule.StartTime, schedule.EndTime, schedule.DaysOfWeek,
		schedule.Priority, schedule.Active, schedule.ValidFrom,
		schedule.ValidUntil,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteSchedule deletes a layout schedule
func (s *PostgresStore) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM layout_schedules WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListSchedules lists all layout schedules
func (s *PostgresStore) ListSchedules(ctx context.Context) ([]*models.LayoutSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM layout_schedules ORDER BY priority DESC, created_at`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.LayoutSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}

	return schedules, rows.Err()
}
