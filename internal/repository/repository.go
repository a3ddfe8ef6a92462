package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

var ErrIdempotencyKeyNotFound = errors.New("no checkout session for idempotency key")

// CheckoutSession is the persisted record of one checkout run. CartSnapshot
// and Customer are JSON blobs frozen at submit time.
type CheckoutSession struct {
	ID              string
	IdempotencyKey  string
	SessionID       string
	OrderID         *string
	PaymentIntentID *string
	Status          domain.CheckoutStatus
	CartSnapshot    []byte
	Customer        []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OutboxEvent is a completed-checkout event awaiting publication.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type RepoInterface interface {
	Close() error
	CreateCheckoutSession(ctx context.Context, session *CheckoutSession) error
	GetSessionByIdempotencyKey(ctx context.Context, key string) (*CheckoutSession, error)
	UpdateCheckoutSessionStatus(ctx context.Context, id string, status domain.CheckoutStatus) error
	SetOrder(ctx context.Context, id, orderID string, status domain.CheckoutStatus) error
	SetPayment(ctx context.Context, id string, status domain.CheckoutStatus, paymentIntentID string) error
	CompleteCheckoutSession(ctx context.Context, id string, payload []byte, status domain.CheckoutStatus) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	GetStuckSessions(ctx context.Context, olderThan time.Duration) ([]*CheckoutSession, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer; sqlite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
