package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testItemID = "0123456789abcdef01234567"

func price(v float64) *float64 { return &v }

func TestRoute(t *testing.T) {
	tests := []struct {
		message string
		want    Intent
	}{
		{"search for office chairs", SearchIntent{Query: "office chairs"}},
		{"Find me a stapler under $20", SearchIntent{Query: "a stapler", MaxPrice: price(20)}},
		{"do you have monitors over 100, under 300?", SearchIntent{Query: "monitors", MinPrice: price(100), MaxPrice: price(300)}},
		{"search", ClarifyIntent{Question: "What would you like me to search the catalog for?"}},
		{"add " + testItemID, AddToCartIntent{ItemID: testItemID, Quantity: 1}},
		{"add 3 " + testItemID, AddToCartIntent{ItemID: testItemID, Quantity: 3}},
		{"please add " + testItemID + " qty: 4", AddToCartIntent{ItemID: testItemID, Quantity: 4}},
		{"Add " + "0123456789ABCDEF01234567" + " x2", AddToCartIntent{ItemID: testItemID, Quantity: 2}},
		{"remove " + testItemID, RemoveFromCartIntent{ItemID: testItemID}},
		{"update " + testItemID + " quantity: 0", UpdateQuantityIntent{ItemID: testItemID, Quantity: 0}},
		{"view my cart", ViewCartIntent{}},
		{"cart", ViewCartIntent{}},
		{"tell me about " + testItemID, ItemDetailsIntent{ItemID: testItemID}},
		{testItemID, ItemDetailsIntent{ItemID: testItemID}},
		{"checkout", CheckoutIntent{}},
		{"Checkout now, confirm. Ship to 5 Elm Rd; pay with invoice", CheckoutIntent{Confirmed: true, ShippingAddress: "5 Elm Rd", PaymentMethod: "invoice"}},
		{"please do not checkout yet, I need to confirm prices first", CheckoutIntent{}},
		{"don't place my order, I'll confirm tomorrow", CheckoutIntent{}},
		{
			"register item name: Desk lamp, category: Furniture, price: 35",
			RegisterItemIntent{Name: "Desk lamp", Category: "Furniture", Price: 35},
		},
		{
			`register item name: "Desk lamp", category: Furniture, price: $35.50, description: LED; confirm`,
			RegisterItemIntent{Name: "Desk lamp", Category: "Furniture", Price: 35.5, Description: "LED", ConfirmDuplicate: true},
		},
		{"hello there", ChatIntent{}},
		{"what can you do?", ChatIntent{}},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Route(tt.message, nil))
		})
	}
}

func TestRouteClarifiesMissingDetails(t *testing.T) {
	for _, message := range []string{
		"add a stapler",
		"remove the chair",
		"update quantity of my cart",
		"register item name: Lamp",
		"register item name: Lamp, category: Lights, price: cheap",
	} {
		_, ok := Route(message, nil).(ClarifyIntent)
		assert.True(t, ok, message)
	}
}

func TestRoutePendingCheckout(t *testing.T) {
	pending := &CheckoutIntent{ShippingAddress: "1 Main St", PaymentMethod: "card"}

	got := Route("yes", pending)
	assert.Equal(t, CheckoutIntent{Confirmed: true, ShippingAddress: "1 Main St", PaymentMethod: "card"}, got)

	got = Route("Confirm, but ship to 9 Oak Ave", pending)
	assert.Equal(t, CheckoutIntent{Confirmed: true, ShippingAddress: "9 Oak Ave", PaymentMethod: "card"}, got)

	_, declined := Route("no, not yet", pending).(CheckoutIntent)
	assert.False(t, declined)
	assert.Equal(t, ChatIntent{}, Route("don't do it", pending))

	// Without a pending confirmation a bare "yes" is just chat.
	assert.Equal(t, ChatIntent{}, Route("yes", nil))
}

func TestRouteNegationIsWholeWord(t *testing.T) {
	pending := &CheckoutIntent{}
	got := Route("yes, know what, proceed now", pending)
	require.IsType(t, CheckoutIntent{}, got)
	assert.True(t, got.(CheckoutIntent).Confirmed)
}

func TestExtractQuantity(t *testing.T) {
	tests := []struct {
		message string
		want    int
		ok      bool
	}{
		{"add " + testItemID, 0, false},
		{"add " + testItemID + " quantity: 12", 12, true},
		{"add " + testItemID + " qty=-1", -1, true},
		{"5x " + testItemID, 5, true},
		{"add " + testItemID + " x 7", 7, true},
		{"add " + testItemID + " quantity: 99999999999999999999", math.MaxInt32, true},
	}
	for _, tt := range tests {
		got, ok := extractQuantity(tt.message)
		assert.Equal(t, tt.ok, ok, tt.message)
		assert.Equal(t, tt.want, got, tt.message)
	}
}
