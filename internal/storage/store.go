package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/signage-server/signage-server-pro/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Client methods
	CreateClient(ctx context.Context, client *models.ClientRecord) error
	GetClient(ctx context.Context, id string) (*models.ClientRecord, error)
	GetClientByHardwareAddr(ctx context.Context, hardwareAddr string) (*models.ClientRecord, error)
	UpdateClient(ctx context.Context, client *models.ClientRecord) error
	DeleteClient(ctx context.Context, id string) error
	ListClients(ctx context.Context) ([]*models.ClientRecord, error)

	// Registration token methods
	CreateRegistrationToken(ctx context.Context, token *models.RegistrationToken) error
	GetRegistrationToken(ctx context.Context, value string) (*models.RegistrationToken, error)
	ConsumeRegistrationToken(ctx context.Context, value string) error
	DeleteRegistrationToken(ctx context.Context, id uuid.UUID) error
	ListRegistrationTokens(ctx context.Context, limit, offset int) ([]*models.RegistrationToken, int64, error)

	// Layout schedule methods
	CreateSchedule(ctx context.Context, schedule *models.LayoutSchedule) error
	GetSchedule(ctx context.Context, id uuid.UUID) (*models.LayoutSchedule, error)
	UpdateSchedule(ctx context.Context, schedule *models.LayoutSchedule) error
	DeleteSchedule(ctx context.Context, id uuid.UUID) error
	ListSchedules(ctx context.Context) ([]*models.LayoutSchedule, error)

	// Event log methods
	CreateEventLog(ctx context.Context, event *models.EventLog) error
	ListEventLogs(ctx context.Context, filters EventLogFilters, limit, offset int) ([]*models.EventLog, int64, error)

	// Close the store
	Close() error
}

// EventLogFilters represents filters for event logs
type EventLogFilters struct {
	ClientID  *string
	Type      *models.EventType
	Level     *models.EventLevel
	StartTime *time.Time
	EndTime   *time.Time
}
