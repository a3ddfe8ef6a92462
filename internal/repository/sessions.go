package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

func (r *Repository) CreateCheckoutSession(ctx context.Context, session *CheckoutSession) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO checkout_sessions
			(id, idempotency_key, session_id, status, cart_snapshot, customer, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.IdempotencyKey, session.SessionID, string(session.Status),
		session.CartSnapshot, session.Customer, now, now)
	if err != nil {
		return fmt.Errorf("failed to create checkout session: %w", err)
	}
	session.CreatedAt = now
	session.UpdatedAt = now
	return nil
}

func (r *Repository) GetSessionByIdempotencyKey(ctx context.Context, key string) (*CheckoutSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, idempotency_key, session_id, order_id, payment_intent_id,
		       status, cart_snapshot, customer, created_at, updated_at
		FROM checkout_sessions WHERE idempotency_key = ?`, key)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkout session: %w", err)
	}
	return session, nil
}

func (r *Repository) UpdateCheckoutSessionStatus(ctx context.Context, id string, status domain.CheckoutStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE checkout_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update checkout session status: %w", err)
	}
	return nil
}

func (r *Repository) SetOrder(ctx context.Context, id, orderID string, status domain.CheckoutStatus) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE checkout_sessions SET order_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		orderID, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set order on checkout session: %w", err)
	}
	return nil
}

func (r *Repository) SetPayment(ctx context.Context, id string, status domain.CheckoutStatus, paymentIntentID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE checkout_sessions SET payment_intent_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		paymentIntentID, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set payment on checkout session: %w", err)
	}
	return nil
}

// CompleteCheckoutSession marks the session finished and stages the
// completed-checkout event in the outbox inside one transaction, so either
// both land or neither does.
func (r *Repository) CompleteCheckoutSession(ctx context.Context, id string, payload []byte, status domain.CheckoutStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `
		UPDATE checkout_sessions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), now, id); err != nil {
		return fmt.Errorf("failed to complete checkout session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		id, "checkout.completed", payload, now); err != nil {
		return fmt.Errorf("failed to stage outbox event: %w", err)
	}

	return tx.Commit()
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events WHERE processed = 0 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return nil
}

// GetStuckSessions returns sessions whose card was charged but whose backend
// confirmation never landed. These must be finalized, never re-charged.
func (r *Repository) GetStuckSessions(ctx context.Context, olderThan time.Duration) ([]*CheckoutSession, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, idempotency_key, session_id, order_id, payment_intent_id,
		       status, cart_snapshot, customer, created_at, updated_at
		FROM checkout_sessions
		WHERE status = ? AND payment_intent_id IS NOT NULL AND updated_at < ?`,
		string(domain.CheckoutStatusPaymentCompleted), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*CheckoutSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stuck session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*CheckoutSession, error) {
	var (
		s      CheckoutSession
		status string
	)
	err := row.Scan(&s.ID, &s.IdempotencyKey, &s.SessionID, &s.OrderID, &s.PaymentIntentID,
		&status, &s.CartSnapshot, &s.Customer, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Status = domain.CheckoutStatus(status)
	return &s, nil
}
