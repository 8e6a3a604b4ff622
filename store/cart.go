package store

import (
	"math"

	"github.com/pkg/errors"

	"github.com/procura/procura/internal/apperr"
)

const (
	MinLineQuantity = 1
	MaxLineQuantity = 999
)

// ErrVersionConflict is returned by SaveCart and CheckoutCart when the stored
// cart version no longer matches the version that was read.
var ErrVersionConflict = errors.New("cart version conflict")

// Cart is the single cart of a user. Version increments on every write and
// guards against lost updates.
type Cart struct {
	ID        int32
	UserID    string
	Items     []*CartItem
	Version   int64
	UpdatedTs int64
}

// CartItem is a cart line. Name and UnitPrice are snapshots taken when the
// line was first added.
type CartItem struct {
	ItemID    string
	Name      string
	UnitPrice float64
	Quantity  int
	Subtotal  float64
	AddedTs   int64
}

// RoundCents rounds an amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// TotalCost is the sum of line subtotals.
func (c *Cart) TotalCost() float64 {
	var total float64
	for _, line := range c.Items {
		total += line.Subtotal
	}
	return RoundCents(total)
}

// TotalQuantity is the number of units across all lines.
func (c *Cart) TotalQuantity() int {
	n := 0
	for _, line := range c.Items {
		n += line.Quantity
	}
	return n
}

// Line returns the line for itemID, or nil.
func (c *Cart) Line(itemID string) *CartItem {
	for _, line := range c.Items {
		if line.ItemID == itemID {
			return line
		}
	}
	return nil
}

// Clone returns a deep copy so a failed mutation never touches the original.
func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = make([]*CartItem, 0, len(c.Items))
	for _, line := range c.Items {
		l := *line
		clone.Items = append(clone.Items, &l)
	}
	return &clone
}

func checkLineQuantity(qty int) error {
	if qty < MinLineQuantity || qty > MaxLineQuantity {
		return apperr.CartLimit("quantity must be between %d and %d", MinLineQuantity, MaxLineQuantity)
	}
	return nil
}

// AddLine adds qty units of item. An existing line keeps its original price
// and name snapshot; only its quantity grows.
func (c *Cart) AddLine(item *Item, qty int, now int64) error {
	if err := checkLineQuantity(qty); err != nil {
		return err
	}
	if line := c.Line(item.ID); line != nil {
		if err := checkLineQuantity(line.Quantity + qty); err != nil {
			return err
		}
		line.Quantity += qty
		line.Subtotal = RoundCents(line.UnitPrice * float64(line.Quantity))
		return nil
	}
	c.Items = append(c.Items, &CartItem{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.Price,
		Quantity:  qty,
		Subtotal:  RoundCents(item.Price * float64(qty)),
		AddedTs:   now,
	})
	return nil
}

// SetQuantity sets the quantity of an existing line; zero removes the line.
func (c *Cart) SetQuantity(itemID string, qty int) error {
	if qty == 0 {
		return c.RemoveLine(itemID)
	}
	if err := checkLineQuantity(qty); err != nil {
		return err
	}
	line := c.Line(itemID)
	if line == nil {
		return apperr.NotFound("item %s is not in the cart", itemID)
	}
	line.Quantity = qty
	line.Subtotal = RoundCents(line.UnitPrice * float64(qty))
	return nil
}

// RemoveLine removes the line for itemID.
func (c *Cart) RemoveLine(itemID string) error {
	for i, line := range c.Items {
		if line.ItemID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("item %s is not in the cart", itemID)
}
