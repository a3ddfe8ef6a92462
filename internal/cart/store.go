package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Store owns the authoritative cart for one session. Every mutation is
// written through to storage before it is visible to readers, so a reload
// always sees the last acknowledged change.
type Store struct {
	mu        sync.Mutex
	storage   Storage
	sessionID string
	cart      *domain.Cart
}

// NewStore rehydrates the session's cart from storage, or starts empty when
// nothing is persisted yet.
func NewStore(ctx context.Context, storage Storage, sessionID string) (*Store, error) {
	cart, err := storage.Load(ctx, sessionID)
	if errors.Is(err, ErrCartNotFound) {
		now := time.Now()
		cart = &domain.Cart{
			SessionID: sessionID,
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else if err != nil {
		return nil, err
	}

	return &Store{
		storage:   storage,
		sessionID: sessionID,
		cart:      cart,
	}, nil
}

// AddItem appends a line for the product, or increments the existing line's
// quantity when the product is already in the cart. Name, price and
// presentation fields are snapshotted from the product at this moment.
func (s *Store) AddItem(ctx context.Context, product domain.Product, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := cloneLines(s.cart.Lines)
	found := false
	for i := range lines {
		if lines[i].ProductID == product.ID {
			lines[i].Quantity += quantity
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
			ImageURL:  product.ImageURL,
			Duration:  product.Duration,
		})
	}

	return s.commit(ctx, lines)
}

// RemoveItem deletes the line unconditionally. Removing an absent product is
// a no-op, not an error.
func (s *Store) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]domain.CartLine, 0, len(s.cart.Lines))
	for _, line := range s.cart.Lines {
		if line.ProductID != productID {
			lines = append(lines, line)
		}
	}
	if len(lines) == len(s.cart.Lines) {
		return nil
	}

	return s.commit(ctx, lines)
}

// UpdateQuantity sets the line's quantity exactly. A quantity of zero or less
// removes the line. Updating an absent product is a silent no-op, matching
// how the storefront UI behaves when a line disappeared under the user.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lines := cloneLines(s.cart.Lines)
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			return s.commit(ctx, lines)
		}
	}
	return nil
}

// Clear empties the cart and drops the persisted blob.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Delete(ctx, s.sessionID); err != nil {
		return err
	}
	s.cart.Lines = nil
	s.cart.UpdatedAt = time.Now()
	return nil
}

// Total returns the sum of unit price times quantity over all lines at full
// precision. Rounding to two digits happens only at the presentation edge.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, line := range s.cart.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// ItemCount returns the sum of quantities across all lines, not the number
// of distinct lines. Drives the cart badge.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, line := range s.cart.Lines {
		count += line.Quantity
	}
	return count
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Store) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneLines(s.cart.Lines)
}

// commit persists the new lines and only then makes them visible. Caller
// must hold s.mu.
func (s *Store) commit(ctx context.Context, lines []domain.CartLine) error {
	next := *s.cart
	next.Lines = lines
	next.UpdatedAt = time.Now()

	if err := s.storage.Save(ctx, s.sessionID, &next); err != nil {
		return err
	}
	s.cart = &next
	return nil
}

func cloneLines(lines []domain.CartLine) []domain.CartLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]domain.CartLine, len(lines))
	copy(out, lines)
	return out
}
