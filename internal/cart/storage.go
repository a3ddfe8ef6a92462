package cart

import (
	"context"
	"errors"

	"github.com/iCADcl/IDEFWeb/internal/domain"
)

// Storage persists carts by session id. The Store is the consumer of this
// interface; implementations live alongside it.
type Storage interface {
	Load(ctx context.Context, sessionID string) (*domain.Cart, error)
	Save(ctx context.Context, sessionID string, cart *domain.Cart) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrCartNotFound = errors.New("cart not found")
