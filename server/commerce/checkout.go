package commerce

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/store"
)

const (
	MaxShippingAddressLength = 500
	MaxPaymentMethodLength   = 100
)

// CheckoutInput carries the optional order details.
type CheckoutInput struct {
	UserID          string
	ShippingAddress string
	PaymentMethod   string
}

// Purchasing turns carts into purchase requests.
type Purchasing struct {
	store *store.Store
	now   func() time.Time
}

func NewPurchasing(s *store.Store) *Purchasing {
	return &Purchasing{store: s, now: time.Now}
}

// Checkout converts the user's cart into a submitted purchase request and
// empties the cart in one transaction. On any failure the cart is untouched.
func (p *Purchasing) Checkout(ctx context.Context, input CheckoutInput) (*store.PurchaseRequest, error) {
	input.ShippingAddress = strings.TrimSpace(input.ShippingAddress)
	input.PaymentMethod = strings.TrimSpace(input.PaymentMethod)
	if len(input.ShippingAddress) > MaxShippingAddressLength {
		return nil, apperr.FieldValidation("shippingAddress", "must be at most %d characters", MaxShippingAddressLength)
	}
	if len(input.PaymentMethod) > MaxPaymentMethodLength {
		return nil, apperr.FieldValidation("paymentMethod", "must be at most %d characters", MaxPaymentMethodLength)
	}

	for attempt := 1; attempt <= conflictRetries; attempt++ {
		cart, err := p.store.GetCart(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		if len(cart.Items) == 0 {
			return nil, apperr.EmptyCart()
		}

		pr, err := p.store.CheckoutCart(ctx, &store.CheckoutCart{
			UID:             shortuuid.New(),
			UserID:          input.UserID,
			CartVersion:     cart.Version,
			Year:            p.now().Year(),
			Items:           store.SnapshotCart(cart),
			TotalCost:       cart.TotalCost(),
			ShippingAddress: input.ShippingAddress,
			PaymentMethod:   input.PaymentMethod,
		})
		if errors.Is(err, store.ErrVersionConflict) {
			slog.Debug("checkout cart version conflict", "user", input.UserID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to check out cart")
		}
		slog.Info("purchase request submitted", "request", pr.RequestNumber, "user", input.UserID,
			"items", len(pr.Items), "total", pr.TotalCost)
		return pr, nil
	}
	return nil, apperr.Conflict("the cart was changed during checkout, please try again")
}

// ListPurchaseRequests returns the user's purchase requests, newest first.
func (p *Purchasing) ListPurchaseRequests(ctx context.Context, userID string, limit int) ([]*store.PurchaseRequest, error) {
	find := &store.FindPurchaseRequest{UserID: &userID}
	if limit > 0 {
		find.Limit = &limit
	}
	return p.store.ListPurchaseRequests(ctx, find)
}

// GetPurchaseRequest returns one of the user's purchase requests by uid.
func (p *Purchasing) GetPurchaseRequest(ctx context.Context, userID, uid string) (*store.PurchaseRequest, error) {
	list, err := p.store.ListPurchaseRequests(ctx, &store.FindPurchaseRequest{UID: &uid, UserID: &userID})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("purchase request %s not found", uid)
	}
	return list[0], nil
}
