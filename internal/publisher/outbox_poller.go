package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/iCADcl/IDEFWeb/internal/checkout"
	"github.com/iCADcl/IDEFWeb/internal/domain"
	"github.com/iCADcl/IDEFWeb/internal/repository"
)

// MessageWriter is the slice of kafka.Writer the poller needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller drains staging from the checkout repository on two tickers:
// one publishes completed-checkout events to Kafka, the other finalizes
// sessions whose card was charged but whose backend confirmation never
// landed. Recovery retries the confirmation only; it never re-charges.
type OutboxPoller struct {
	timeout      time.Duration
	eventTick    time.Duration
	recoveryTick time.Duration
	stuckAfter   time.Duration
	repo         repository.RepoInterface
	orders       checkout.OrderAPI
	writer       MessageWriter
	log          *zap.Logger
}

func NewOutboxPoller(repo repository.RepoInterface, orders checkout.OrderAPI, log *zap.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "checkout-completed",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		timeout:      5 * time.Second,
		eventTick:    time.Second,
		recoveryTick: 5 * time.Second,
		stuckAfter:   30 * time.Second,
		repo:         repo,
		orders:       orders,
		writer:       w,
		log:          log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSessions(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, 100)
	if err != nil {
		p.log.Error("failed to fetch outbox events", zap.Error(err))
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			p.log.Error("failed to publish outbox event",
				zap.Int64("event_id", event.ID), zap.Error(errPublish))
			continue
		}

		if errMark := p.repo.MarkEventAsProcessed(ctx, event.ID); errMark != nil {
			p.log.Error("failed to mark outbox event processed",
				zap.Int64("event_id", event.ID), zap.Error(errMark))
		}
	}
}

// recoverStuckSessions finishes checkouts interrupted between the gateway
// charge and the backend confirmation.
func (p *OutboxPoller) recoverStuckSessions(ctx context.Context) {
	sessions, err := p.repo.GetStuckSessions(ctx, p.stuckAfter)
	if err != nil {
		p.log.Error("failed to get stuck checkout sessions", zap.Error(err))
		return
	}

	for _, session := range sessions {
		if session.OrderID == nil || session.PaymentIntentID == nil {
			continue
		}
		p.log.Info("recovering paid-but-unconfirmed checkout",
			zap.String("checkout_id", session.ID),
			zap.String("order_id", *session.OrderID))

		confirmCtx, cancel := context.WithTimeout(ctx, p.timeout)
		errConfirm := p.orders.ConfirmOrder(confirmCtx, *session.OrderID, *session.PaymentIntentID)
		cancel()
		if errConfirm != nil {
			p.log.Warn("order confirmation retry failed",
				zap.String("checkout_id", session.ID), zap.Error(errConfirm))
			continue
		}

		var lines []domain.CartLine
		if errUnmarshal := json.Unmarshal(session.CartSnapshot, &lines); errUnmarshal != nil {
			p.log.Error("failed to unmarshal cart snapshot",
				zap.String("checkout_id", session.ID), zap.Error(errUnmarshal))
			continue
		}

		payload, errPayload := recoveryPayload(session, lines)
		if errPayload != nil {
			p.log.Error("failed to build recovery payload",
				zap.String("checkout_id", session.ID), zap.Error(errPayload))
			continue
		}

		if errComplete := p.repo.CompleteCheckoutSession(ctx, session.ID, payload, domain.CheckoutStatusSucceeded); errComplete != nil {
			p.log.Error("failed to complete recovered checkout",
				zap.String("checkout_id", session.ID), zap.Error(errComplete))
			continue
		}

		p.log.Info("checkout session recovered", zap.String("checkout_id", session.ID))
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // checkout_id for ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(writeCtx, msg)
}

func recoveryPayload(session *repository.CheckoutSession, lines []domain.CartLine) ([]byte, error) {
	total := "0.00"
	if len(lines) > 0 {
		sum := lines[0].Subtotal()
		for _, line := range lines[1:] {
			sum = sum.Add(line.Subtotal())
		}
		total = sum.StringFixed(2)
	}

	return json.Marshal(map[string]interface{}{
		"checkout_id":  session.ID,
		"session_id":   session.SessionID,
		"order_id":     *session.OrderID,
		"items":        lines,
		"total_amount": total,
		"currency":     "USD",
		"completed_at": time.Now().UTC(),
	})
}
