package checkout

import (
	"context"
	"time"

	"github.com/iCADcl/IDEFWeb/internal/domain"
	"github.com/iCADcl/IDEFWeb/internal/gateway"
	"github.com/iCADcl/IDEFWeb/internal/repository"
)

// MockRepository implements repository.RepoInterface for testing
type MockRepository struct {
	SessionsByKey map[string]*repository.CheckoutSession

	Created          *repository.CheckoutSession
	StatusUpdates    []domain.CheckoutStatus
	OrderID          string
	PaymentIntentID  string
	CompletedPayload []byte
	CompletedStatus  domain.CheckoutStatus

	CreateErr     error
	GetErr        error
	SetPaymentErr error
	CompleteErr   error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{SessionsByKey: make(map[string]*repository.CheckoutSession)}
}

func (m *MockRepository) Close() error { return nil }

func (m *MockRepository) CreateCheckoutSession(_ context.Context, session *repository.CheckoutSession) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.Created = session
	return nil
}

func (m *MockRepository) GetSessionByIdempotencyKey(_ context.Context, key string) (*repository.CheckoutSession, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if session, ok := m.SessionsByKey[key]; ok {
		return session, nil
	}
	return nil, repository.ErrIdempotencyKeyNotFound
}

func (m *MockRepository) UpdateCheckoutSessionStatus(_ context.Context, _ string, status domain.CheckoutStatus) error {
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

func (m *MockRepository) SetOrder(_ context.Context, _, orderID string, status domain.CheckoutStatus) error {
	m.OrderID = orderID
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

func (m *MockRepository) SetPayment(_ context.Context, _ string, status domain.CheckoutStatus, paymentIntentID string) error {
	if m.SetPaymentErr != nil {
		return m.SetPaymentErr
	}
	m.PaymentIntentID = paymentIntentID
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

func (m *MockRepository) CompleteCheckoutSession(_ context.Context, _ string, payload []byte, status domain.CheckoutStatus) error {
	if m.CompleteErr != nil {
		return m.CompleteErr
	}
	m.CompletedPayload = payload
	m.CompletedStatus = status
	m.StatusUpdates = append(m.StatusUpdates, status)
	return nil
}

func (m *MockRepository) GetUnprocessedEvents(_ context.Context, _ int) ([]*repository.OutboxEvent, error) {
	return nil, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, _ int64) error { return nil }

func (m *MockRepository) GetStuckSessions(_ context.Context, _ time.Duration) ([]*repository.CheckoutSession, error) {
	return nil, nil
}

// MockOrderAPI implements OrderAPI for testing
type MockOrderAPI struct {
	Intent     *domain.PaymentIntent
	CreateErr  error
	ConfirmErr error

	CreateCalls  int
	ConfirmCalls int
	CreatedDraft domain.OrderDraft

	ConfirmedOrderID         string
	ConfirmedPaymentIntentID string
}

func (m *MockOrderAPI) CreatePaymentIntent(_ context.Context, draft domain.OrderDraft) (*domain.PaymentIntent, error) {
	m.CreateCalls++
	m.CreatedDraft = draft
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	return m.Intent, nil
}

func (m *MockOrderAPI) ConfirmOrder(_ context.Context, orderID, paymentIntentID string) error {
	m.ConfirmCalls++
	m.ConfirmedOrderID = orderID
	m.ConfirmedPaymentIntentID = paymentIntentID
	return m.ConfirmErr
}

// MockGateway implements PaymentGateway for testing
type MockGateway struct {
	Result *gateway.ConfirmResult
	Err    error

	Calls     int
	GotSecret string

	// Entered/Release let a test hold a confirmation open to exercise the
	// busy flag.
	Entered chan struct{}
	Release chan struct{}
}

func (m *MockGateway) ConfirmCardPayment(_ context.Context, clientSecret string, _ gateway.CardDetails) (*gateway.ConfirmResult, error) {
	m.Calls++
	m.GotSecret = clientSecret
	if m.Entered != nil {
		m.Entered <- struct{}{}
		<-m.Release
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}
