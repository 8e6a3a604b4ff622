package commerce

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/store"
)

// conflictRetries is how many times a cart write is re-applied after losing
// a version race.
const conflictRetries = 3

// Carts applies cart mutations with optimistic versioning.
type Carts struct {
	store   *store.Store
	catalog *Catalog
	now     func() time.Time
}

func NewCarts(s *store.Store, catalog *Catalog) *Carts {
	return &Carts{store: s, catalog: catalog, now: time.Now}
}

// mutate loads the cart, applies fn to a copy and writes it back, retrying
// when a concurrent writer bumped the version in between.
func (c *Carts) mutate(ctx context.Context, userID string, fn func(cart *store.Cart) error) (*store.Cart, error) {
	for attempt := 1; attempt <= conflictRetries; attempt++ {
		current, err := c.store.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		saved, err := c.store.SaveCart(ctx, next)
		if errors.Is(err, store.ErrVersionConflict) {
			slog.Debug("cart version conflict", "user", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return saved, nil
	}
	return nil, apperr.Conflict("the cart was changed by another request, please try again")
}

// View returns the user's current cart.
func (c *Carts) View(ctx context.Context, userID string) (*store.Cart, error) {
	return c.store.GetCart(ctx, userID)
}

// AddItem adds qty units of an active catalog item.
func (c *Carts) AddItem(ctx context.Context, userID, itemID string, qty int) (*store.Cart, error) {
	if qty < store.MinLineQuantity || qty > store.MaxLineQuantity {
		return nil, apperr.CartLimit("quantity must be between %d and %d", store.MinLineQuantity, store.MaxLineQuantity)
	}
	item, err := c.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != store.ItemActive {
		return nil, apperr.Validation("item %s is not available for purchase", itemID)
	}
	now := c.now().Unix()
	return c.mutate(ctx, userID, func(cart *store.Cart) error {
		return cart.AddLine(item, qty, now)
	})
}

// UpdateQuantity sets the quantity of a cart line; zero removes it.
func (c *Carts) UpdateQuantity(ctx context.Context, userID, itemID string, qty int) (*store.Cart, error) {
	if qty < 0 || qty > store.MaxLineQuantity {
		return nil, apperr.CartLimit("quantity must be between 0 and %d", store.MaxLineQuantity)
	}
	return c.mutate(ctx, userID, func(cart *store.Cart) error {
		return cart.SetQuantity(itemID, qty)
	})
}

// RemoveItem deletes a cart line.
func (c *Carts) RemoveItem(ctx context.Context, userID, itemID string) (*store.Cart, error) {
	return c.mutate(ctx, userID, func(cart *store.Cart) error {
		return cart.RemoveLine(itemID)
	})
}

// Clear empties the cart.
func (c *Carts) Clear(ctx context.Context, userID string) (*store.Cart, error) {
	return c.mutate(ctx, userID, func(cart *store.Cart) error {
		cart.Items = nil
		return nil
	})
}
