package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/internal/apperr"
	"github.com/procura/procura/store"
)

func TestSynthesize(t *testing.T) {
	widget := &store.Item{ID: testItemID, Name: "Widget", Category: "Parts", Price: 10, Status: store.ItemActive}

	reply := Synthesize(&ToolResult{Type: ResultSearch, Query: "widget", Items: []*store.Item{widget}})
	assert.Contains(t, reply.Text, "**Widget**")
	assert.Contains(t, reply.Text, "$10.00")
	assert.Contains(t, reply.Text, testItemID)

	reply = Synthesize(&ToolResult{Type: ResultSearch, Query: "gizmo"})
	assert.Contains(t, reply.Text, `couldn't find any items matching "gizmo"`)

	cart := &store.Cart{UserID: "u", Items: []*store.CartItem{{ItemID: testItemID, Name: "Widget", UnitPrice: 10, Quantity: 2, Subtotal: 20}}}
	reply = Synthesize(&ToolResult{Type: ResultCart, Cart: cart})
	assert.Contains(t, reply.Text, "Total: $20.00 for 2 unit(s).")

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply.MetadataJSON()), &meta))
	assert.Equal(t, ResultCart, meta["type"])

	reply = Synthesize(&ToolResult{Type: ResultCart, Cart: &store.Cart{}})
	assert.Equal(t, "Your cart is empty.", reply.Text)
}

func TestConfirmCheckout(t *testing.T) {
	cart := &store.Cart{Items: []*store.CartItem{{ItemID: testItemID, Name: "Widget", UnitPrice: 10, Quantity: 1, Subtotal: 10}}}
	reply := ConfirmCheckout(cart, CheckoutIntent{ShippingAddress: "1 Main St"})
	assert.Contains(t, reply.Text, `Reply "confirm"`)
	assert.Contains(t, reply.Text, "Shipping to: 1 Main St")

	var meta map[string]any
	require.NoError(t, json.Unmarshal([]byte(reply.MetadataJSON()), &meta))
	assert.Equal(t, ResultCheckoutConfirmation, meta["type"])
	assert.Equal(t, "1 Main St", meta["shippingAddress"])
}

func TestSynthesizeError(t *testing.T) {
	reply := SynthesizeError(ToolAddToCart, apperr.CartLimit("quantity must be between 1 and 999"))
	assert.Equal(t, "Quantity must be between 1 and 999.", reply.Text)

	reply = SynthesizeError(ToolRegisterItem, apperr.Duplicate([]apperr.Candidate{{ID: testItemID, Name: "Widget", Category: "Parts"}}))
	assert.Contains(t, reply.Text, "**Widget**")
	assert.Contains(t, reply.Text, `"confirm"`)

	secret := "dial tcp 10.0.0.5:5432: connection refused"
	reply = SynthesizeError(ToolViewCart, errors.New(secret))
	assert.NotContains(t, reply.Text, secret)
	assert.Contains(t, reply.Text, "view cart")
	assert.Contains(t, reply.MetadataJSON(), string(apperr.KindInternal))
}

func TestToolCall(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(ctx, t, nil)
	widget := env.register(ctx, t, "Widget", 10)
	tools := NewTools(env.svc, "u1")
	require.Len(t, tools, len(ToolNames()))

	out, err := tools[ToolSearchCatalog].Call(ctx, `{"query":"widget"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"search_results"`)
	assert.Contains(t, out, widget.ID)

	out, err = tools[ToolAddToCart].Call(ctx, `{"itemId":"`+widget.ID+`","quantity":2}`)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"totalCost":20`))

	_, err = tools[ToolAddToCart].Call(ctx, `{"itemId":"`+widget.ID+`","quantity":2,"userId":"u2"}`)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	other, err := env.svc.Carts.View(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, other.Items)
}
