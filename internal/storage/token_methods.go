package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// ========== Registration Token Methods ==========

// CreateRegistrationToken creates a new registration token
func (s *PostgresStore) CreateRegistrationToken(ctx context.Context, token *models.RegistrationToken) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()

	query := `
        INSERT INTO registration_tokens (
            id, token, hardware_addr, group_name, location,
            max_uses, uses_count, expires_at, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.getDB().ExecContext(ctx, query,
		token.ID, token.Token, token.HardwareAddr, token.GroupName,
		token.Location, token.MaxUses, token.UsesCount, token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetRegistrationToken gets a registration token by its value
func (s *PostgresStore) GetRegistrationToken(ctx context.Context, value string) (*models.RegistrationToken, error) {
	query := `
        SELECT id, token, hardware_addr, group_name, location,
               max_uses, uses_count, expires_at, created_at
        FROM registration_tokens
        WHERE token = $1`

	token := &models.RegistrationToken{}
	err := s.getDB().QueryRowContext(ctx, query, value).Scan(
		&token.ID, &token.Token, &token.HardwareAddr, &token.GroupName,
		&token.Location, &token.MaxUses, &token.UsesCount, &token.ExpiresAt,
		&token.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return token, nil
}

// ConsumeRegistrationToken increments the token's uses count. The guard
// in the WHERE clause makes consumption atomic: a token never exceeds its
// max uses even under concurrent registrations.
func (s *PostgresStore) ConsumeRegistrationToken(ctx context.Context, value string) error {
	query := `
        UPDATE registration_tokens
        SET uses_count = uses_count + 1
        WHERE token = $1
          AND (max_uses = 0 OR uses_count < max_uses)
          AND (expires_at IS NULL OR expires_at > now())`

	result, err := s.getDB().ExecContext(ctx, query, value)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return models.ErrTokenExhausted
	}

	return nil
}

// DeleteRegistrationToken deletes a registration token
func (s *PostgresStore) DeleteRegistrationToken(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM registration_tokens WHERE id = $1", id)
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

// ListRegistrationTokens lists registration tokens
func (s *PostgresStore) ListRegistrationTokens(ctx context.Context, limit, offset int) ([]*models.RegistrationToken, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM registration_tokens",
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, token, hardware_addr, group_name, location,
               max_uses, uses_count, expires_at, created_at
        FROM registration_tokens
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tokens []*models.RegistrationToken
	for rows.Next() {
		token := &models.RegistrationToken{}
		err := rows.Scan(
			&token.ID, &token.Token, &token.HardwareAddr, &token.GroupName,
			&token.Location, &token.MaxUses, &token.UsesCount,
			&token.ExpiresAt, &token.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		tokens = append(tokens, token)
	}

	return tokens, count, rows.Err()
}
