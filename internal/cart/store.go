package cart

import (
	"context"
	"errors"
)

var ErrCartNotFound = errors.New("cart not found")

// Store persists cart sessions between requests. Get returns ErrCartNotFound
// for unknown session ids.
type Store interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}
