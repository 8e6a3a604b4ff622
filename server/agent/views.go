package agent

import (
	"github.com/procura/procura/store"
)

// JSON projections attached to agent messages as metadata and returned by
// tool calls.

type ItemView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Status      string  `json:"status"`
}

type CartLineView struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type CartView struct {
	Items         []CartLineView `json:"items"`
	TotalQuantity int            `json:"totalQuantity"`
	TotalCost     float64        `json:"totalCost"`
	Version       int64          `json:"version"`
}

type PurchaseRequestItemView struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type PurchaseRequestView struct {
	UID             string                    `json:"uid"`
	RequestNumber   string                    `json:"requestNumber"`
	Status          string                    `json:"status"`
	Items           []PurchaseRequestItemView `json:"items"`
	TotalCost       float64                   `json:"totalCost"`
	ShippingAddress string                    `json:"shippingAddress,omitempty"`
	PaymentMethod   string                    `json:"paymentMethod,omitempty"`
	CreatedTs       int64                     `json:"createdTs"`
}

func NewItemView(item *store.Item) ItemView {
	return ItemView{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Description: item.Description,
		Price:       item.Price,
		Status:      string(item.Status),
	}
}

func NewCartView(cart *store.Cart) CartView {
	view := CartView{
		Items:         make([]CartLineView, 0, len(cart.Items)),
		TotalQuantity: cart.TotalQuantity(),
		TotalCost:     cart.TotalCost(),
		Version:       cart.Version,
	}
	for _, line := range cart.Items {
		view.Items = append(view.Items, CartLineView{
			ItemID:    line.ItemID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal,
		})
	}
	return view
}

func NewPurchaseRequestView(pr *store.PurchaseRequest) PurchaseRequestView {
	view := PurchaseRequestView{
		UID:             pr.UID,
		RequestNumber:   pr.RequestNumber,
		Status:          string(pr.Status),
		Items:           make([]PurchaseRequestItemView, 0, len(pr.Items)),
		TotalCost:       pr.TotalCost,
		ShippingAddress: pr.ShippingAddress,
		PaymentMethod:   pr.PaymentMethod,
		CreatedTs:       pr.CreatedTs,
	}
	for _, item := range pr.Items {
		view.Items = append(view.Items, PurchaseRequestItemView{
			ItemID:    item.ItemID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	return view
}
