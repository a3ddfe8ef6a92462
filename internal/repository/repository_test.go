package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

func setupTestDB(t *testing.T) *Repository {
	dbPath := filepath.Join(t.TempDir(), "checkout_test.db")

	repo, err := NewRepository(dbPath)
	require.NoError(t, err)

	err = repo.RunMigrations("../../migrations")
	require.NoError(t, err)

	t.Cleanup(func() { repo.Close() })
	return repo
}

func newSession(t *testing.T) *CheckoutSession {
	snapshot, err := json.Marshal([]domain.CartLine{{ProductID: "A", Quantity: 1}})
	require.NoError(t, err)
	customer, err := json.Marshal(domain.Customer{Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)

	return &CheckoutSession{
		ID:             uuid.NewString(),
		IdempotencyKey: uuid.NewString(),
		SessionID:      "session-1",
		Status:         domain.CheckoutStatusSubmitting,
		CartSnapshot:   snapshot,
		Customer:       customer,
	}
}

func TestGetSessionByIdempotencyKey_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	session, err := repo.GetSessionByIdempotencyKey(context.Background(), "nonexistent-key")

	assert.ErrorIs(t, err, ErrIdempotencyKeyNotFound)
	assert.Nil(t, session)
}

func TestCreateAndGetSession(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, session))

	got, err := repo.GetSessionByIdempotencyKey(ctx, session.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, "session-1", got.SessionID)
	assert.Equal(t, domain.CheckoutStatusSubmitting, got.Status)
	assert.Nil(t, got.OrderID)
	assert.Nil(t, got.PaymentIntentID)
	assert.JSONEq(t, string(session.CartSnapshot), string(got.CartSnapshot))
}

func TestCreateSession_DuplicateIdempotencyKey(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, session))

	dup := newSession(t)
	dup.IdempotencyKey = session.IdempotencyKey
	assert.Error(t, repo.CreateCheckoutSession(ctx, dup))
}

func TestSetOrderAndPayment(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, session))

	require.NoError(t, repo.SetOrder(ctx, session.ID, "order-1", domain.CheckoutStatusAwaitingPayment))
	require.NoError(t, repo.SetPayment(ctx, session.ID, domain.CheckoutStatusPaymentCompleted, "pi_123"))

	got, err := repo.GetSessionByIdempotencyKey(ctx, session.IdempotencyKey)
	require.NoError(t, err)
	require.NotNil(t, got.OrderID)
	require.NotNil(t, got.PaymentIntentID)
	assert.Equal(t, "order-1", *got.OrderID)
	assert.Equal(t, "pi_123", *got.PaymentIntentID)
	assert.Equal(t, domain.CheckoutStatusPaymentCompleted, got.Status)
}

func TestCompleteCheckoutSession_StagesOutboxEvent(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, session))

	payload := []byte(`{"order_id":"order-1"}`)
	require.NoError(t, repo.CompleteCheckoutSession(ctx, session.ID, payload, domain.CheckoutStatusSucceeded))

	got, err := repo.GetSessionByIdempotencyKey(ctx, session.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutStatusSucceeded, got.Status)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, session.ID, events[0].AggregateID)
	assert.Equal(t, "checkout.completed", events[0].EventType)
	assert.JSONEq(t, string(payload), string(events[0].Payload))
}

func TestMarkEventAsProcessed(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, session))
	require.NoError(t, repo.CompleteCheckoutSession(ctx, session.ID, []byte(`{}`), domain.CheckoutStatusSucceeded))

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, repo.MarkEventAsProcessed(ctx, events[0].ID))

	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGetStuckSessions(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	// Charged but never confirmed: stuck.
	stuck := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, stuck))
	require.NoError(t, repo.SetOrder(ctx, stuck.ID, "order-1", domain.CheckoutStatusAwaitingPayment))
	require.NoError(t, repo.SetPayment(ctx, stuck.ID, domain.CheckoutStatusPaymentCompleted, "pi_123"))

	// Still submitting: not stuck.
	submitting := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, submitting))

	// Fully completed: not stuck.
	completed := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, completed))
	require.NoError(t, repo.SetPayment(ctx, completed.ID, domain.CheckoutStatusPaymentCompleted, "pi_456"))
	require.NoError(t, repo.CompleteCheckoutSession(ctx, completed.ID, []byte(`{}`), domain.CheckoutStatusSucceeded))

	time.Sleep(20 * time.Millisecond)

	sessions, err := repo.GetStuckSessions(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, stuck.ID, sessions[0].ID)
	require.NotNil(t, sessions[0].PaymentIntentID)
	assert.Equal(t, "pi_123", *sessions[0].PaymentIntentID)
}

func TestGetStuckSessions_RespectsAge(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()

	session := newSession(t)
	require.NoError(t, repo.CreateCheckoutSession(ctx, session))
	require.NoError(t, repo.SetPayment(ctx, session.ID, domain.CheckoutStatusPaymentCompleted, "pi_123"))

	// Too fresh to count as stuck yet.
	sessions, err := repo.GetStuckSessions(ctx, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
