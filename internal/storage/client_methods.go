package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// ========== Client Methods ==========

// CreateClient creates a new client record
func (s *PostgresStore) CreateClient(ctx context.Context, client *models.ClientRecord) error {
	now := time.Now()
	if client.RegisteredAt.IsZero() {
		client.RegisteredAt = now
	}
	client.UpdatedAt = now

	query := `
        INSERT INTO clients (
            id, hardware_addr, name, network_addr, group_name, location,
            assigned_content_id, status, last_seen_at, device_info,
            registered_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		client.ID, client.HardwareAddr, client.Name, client.NetworkAddr,
		client.GroupName, client.Location, client.AssignedContentID,
		client.Status, client.LastSeenAt, client.DeviceInfo,
		client.RegisteredAt, client.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

const clientColumns = `
        id, hardware_addr, name, network_addr, group_name, location,
        assigned_content_id, status, last_seen_at, device_info,
        registered_at, updated_at`

func scanClient(row interface{ Scan(...interface{}) error }) (*models.ClientRecord, error) {
	client := &models.ClientRecord{}
	err := row.Scan(
		&client.ID, &client.HardwareAddr, &client.Name, &client.NetworkAddr,
		&client.GroupName, &client.Location, &client.AssignedContentID,
		&client.Status, &client.LastSeenAt, &client.DeviceInfo,
		&client.RegisteredAt, &client.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetClient gets a client by id
func (s *PostgresStore) GetClient(ctx context.Context, id string) (*models.ClientRecord, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	return scanClient(s.getDB().QueryRowContext(ctx, query, id))
}

// GetClientByHardwareAddr gets a client by its hardware address
func (s *PostgresStore) GetClientByHardwareAddr(ctx context.Context, hardwareAddr string) (*models.ClientRecord, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE lower(hardware_addr) = lower($1)`
	return scanClient(s.getDB().QueryRowContext(ctx, query, hardwareAddr))
}

// UpdateClient updates a client record
func (s *PostgresStore) UpdateClient(ctx context.Context, client *models.ClientRecord) error {
	client.UpdatedAt = time.Now()

	query := `
        UPDATE clients SET
            hardware_addr = $2, name = $3, network_addr = $4, group_name = $5,
            location = $6, assigned_content_id = $7, status = $8,
            last_seen_at = $9, device_info = $10, updated_at = $11
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		client.ID, client.HardwareAddr, client.Name, client.NetworkAddr,
		client.GroupName, client.Location, client.AssignedContentID,
		client.Status, client.LastSeenAt, client.DeviceInfo, client.UpdatedAt,
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

// DeleteClient deletes a client record
func (s *PostgresStore) DeleteClient(ctx context.Context, id string) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM clients WHERE id = $1", id)
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

// ListClients lists all client records. Used to warm the in-memory
// registry at startup.
func (s *PostgresStore) ListClients(ctx context.Context) ([]*models.ClientRecord, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY registered_at`

	rows, err := s.getDB().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*models.ClientRecord
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}

	return clients, rows.Err()
}
