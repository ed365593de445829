package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// ========== Event Log Methods ==========

// CreateEventLog creates an event log entry
func (s *PostgresStore) CreateEventLog(ctx context.Context, event *models.EventLog) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO event_logs (id, created_at, client_id, type, level, description, details)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		event.ID, event.CreatedAt, event.ClientID, event.Type,
		event.Level, event.Description, event.Details,
	)

	return err
}

// ListEventLogs lists event logs with optional filters
func (s *PostgresStore) ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argN := 1

	addFilter := func(clause string, value interface{}) {
		where += fmt.Sprintf(" AND %s = $%d", clause, argN)
		args = append(args, value)
		argN++
	}

	if filters.ClientID != nil {
		addFilter("client_id", *filters.ClientID)
	}
	if filters.Type != nil {
		addFilter("type", *filters.Type)
	}
	if filters.Level != nil {
		addFilter("level", *filters.Level)
	}
	if filters.StartTime != nil {
		where += fmt.Sprintf(" AND created_at >= $%d", argN)
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		where += fmt.Sprintf(" AND created_at <= $%d", argN)
		args = append(args, *filters.EndTime)
		argN++
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM event_logs"+where, args...,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
        SELECT id, created_at, client_id, type, level, description, details
        FROM event_logs %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d`, where, argN, argN+1)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var events []*models.EventLog
	for rows.Next() {
		event := &models.EventLog{}
		err := rows.Scan(
			&event.ID, &event.CreatedAt, &event.ClientID, &event.Type,
			&event.Level, &event.Description, &event.Details,
		)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}

	return events, count, rows.Err()
}
