package store

import (
	"fmt"
)

// PurchaseRequestStatus is the approval state of a purchase request.
type PurchaseRequestStatus string

const (
	PurchaseRequestSubmitted PurchaseRequestStatus = "SUBMITTED"
	PurchaseRequestApproved  PurchaseRequestStatus = "APPROVED"
	PurchaseRequestRejected  PurchaseRequestStatus = "REJECTED"
)

// PurchaseRequest is created by checkout. Items are snapshots of the cart
// lines and do not follow later catalog changes.
type PurchaseRequest struct {
	ID              int32
	UID             string
	RequestNumber   string
	UserID          string
	Status          PurchaseRequestStatus
	Items           []*PurchaseRequestItem
	TotalCost       float64
	ShippingAddress string
	PaymentMethod   string
	CreatedTs       int64
}

// PurchaseRequestItem is an immutable snapshot of a cart line.
type PurchaseRequestItem struct {
	ItemID    string
	Name      string
	UnitPrice float64
	Quantity  int
	Subtotal  float64
}

// CheckoutCart is the payload for the atomic cart-to-request conversion.
// Drivers allocate the request number for Year, insert the request and clear
// the cart in one transaction, failing with ErrVersionConflict when the cart
// version moved.
type CheckoutCart struct {
	UID             string
	UserID          string
	CartVersion     int64
	Year            int
	Items           []*PurchaseRequestItem
	TotalCost       float64
	ShippingAddress string
	PaymentMethod   string
}

// FindPurchaseRequest filters for ListPurchaseRequests.
type FindPurchaseRequest struct {
	UID    *string
	UserID *string
	Limit  *int
}

// FormatRequestNumber renders the human-facing request number.
func FormatRequestNumber(year, seq int) string {
	return fmt.Sprintf("PR-%04d-%04d", year, seq)
}

// SnapshotCart copies cart lines into purchase request items.
func SnapshotCart(cart *Cart) []*PurchaseRequestItem {
	items := make([]*PurchaseRequestItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, &PurchaseRequestItem{
			ItemID:    line.ItemID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  RoundCents(line.UnitPrice * float64(line.Quantity)),
		})
	}
	return items
}
