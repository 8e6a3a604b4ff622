package test

import (
	"context"
	"regexp"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/store"
)

func createItem(ctx context.Context, t *testing.T, ts *store.Store, name, category string, price float64) *store.Item {
	t.Helper()
	item, err := ts.CreateItem(ctx, &store.Item{Name: name, Category: category, Price: price, Description: name + " for the office"})
	require.NoError(t, err)
	return item
}

func TestItemStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	widget := createItem(ctx, t, ts, "Widget", "Parts", 10)
	createItem(ctx, t, ts, "Stapler", "Office", 7.5)
	assert.Regexp(t, `^[0-9a-f]{24}$`, widget.ID)
	assert.Equal(t, store.ItemActive, widget.Status)

	got, err := ts.GetItem(ctx, widget.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Widget", got.Name)

	list, err := ts.ListItems(ctx, &store.FindItem{Words: []string{"STAPLER"}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Stapler", list[0].Name)

	list, err = ts.ListItems(ctx, &store.FindItem{Words: []string{"office"}})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	inactive := store.ItemInactive
	price := 12.0
	updated, err := ts.UpdateItem(ctx, &store.UpdateItem{ID: widget.ID, Price: &price, Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, 12.0, updated.Price)

	active := store.ItemActive
	list, err = ts.ListItems(ctx, &store.FindItem{Status: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Stapler", list[0].Name)
}

func TestCartVersioning(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	widget := createItem(ctx, t, ts, "Widget", "Parts", 10)

	cart, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Zero(t, cart.Version)
	assert.Empty(t, cart.Items)

	require.NoError(t, cart.AddLine(widget, 2, 1))
	saved, err := ts.SaveCart(ctx, cart)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	// A writer holding the stale version loses.
	_, err = ts.SaveCart(ctx, cart)
	assert.True(t, errors.Is(err, store.ErrVersionConflict))

	reloaded, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, reloaded.Items, 1)
	assert.Equal(t, 2, reloaded.Items[0].Quantity)
	assert.Equal(t, 20.0, reloaded.TotalCost())

	require.NoError(t, reloaded.SetQuantity(widget.ID, 3))
	saved, err = ts.SaveCart(ctx, reloaded)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	_, err = ts.SaveCart(ctx, reloaded)
	assert.True(t, errors.Is(err, store.ErrVersionConflict))
}

func TestCheckoutCart(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	widget := createItem(ctx, t, ts, "Widget", "Parts", 10)
	stapler := createItem(ctx, t, ts, "Stapler", "Office", 7.5)

	cart, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, cart.AddLine(widget, 2, 1))
	require.NoError(t, cart.AddLine(stapler, 1, 1))
	cart, err = ts.SaveCart(ctx, cart)
	require.NoError(t, err)

	pr, err := ts.CheckoutCart(ctx, &store.CheckoutCart{
		UID:         "pr-1",
		UserID:      "user-1",
		CartVersion: cart.Version,
		Year:        2026,
		Items:       store.SnapshotCart(cart),
		TotalCost:   cart.TotalCost(),
	})
	require.NoError(t, err)
	assert.Equal(t, "PR-2026-0001", pr.RequestNumber)
	assert.Regexp(t, regexp.MustCompile(`^PR-\d{4}-\d+$`), pr.RequestNumber)
	assert.Equal(t, store.PurchaseRequestSubmitted, pr.Status)
	assert.Equal(t, 27.5, pr.TotalCost)

	after, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.Equal(t, cart.Version+1, after.Version)

	user := "user-1"
	list, err := ts.ListPurchaseRequests(ctx, &store.FindPurchaseRequest{UserID: &user})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Items, 2)
	assert.Equal(t, "Widget", list[0].Items[0].Name)
	assert.Equal(t, 20.0, list[0].Items[0].Subtotal)

	// Catalog edits do not reach the snapshot.
	name := "Widget v2"
	_, err = ts.UpdateItem(ctx, &store.UpdateItem{ID: widget.ID, Name: &name})
	require.NoError(t, err)
	list, err = ts.ListPurchaseRequests(ctx, &store.FindPurchaseRequest{UserID: &user})
	require.NoError(t, err)
	assert.Equal(t, "Widget", list[0].Items[0].Name)

	// Second request in the same year gets the next number.
	require.NoError(t, after.AddLine(stapler, 1, 2))
	after, err = ts.SaveCart(ctx, after)
	require.NoError(t, err)
	pr2, err := ts.CheckoutCart(ctx, &store.CheckoutCart{
		UID: "pr-2", UserID: "user-1", CartVersion: after.Version, Year: 2026,
		Items: store.SnapshotCart(after), TotalCost: after.TotalCost(),
	})
	require.NoError(t, err)
	assert.Equal(t, "PR-2026-0002", pr2.RequestNumber)
}

func TestCheckoutCartStaleVersionLeavesCartUntouched(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	widget := createItem(ctx, t, ts, "Widget", "Parts", 10)

	cart, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, cart.AddLine(widget, 1, 1))
	cart, err = ts.SaveCart(ctx, cart)
	require.NoError(t, err)

	_, err = ts.CheckoutCart(ctx, &store.CheckoutCart{
		UID: "pr-x", UserID: "user-1", CartVersion: cart.Version - 1, Year: 2026,
		Items: store.SnapshotCart(cart), TotalCost: cart.TotalCost(),
	})
	assert.True(t, errors.Is(err, store.ErrVersionConflict))

	after, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, after.Items, 1)
	assert.Equal(t, cart.Version, after.Version)

	user := "user-1"
	list, err := ts.ListPurchaseRequests(ctx, &store.FindPurchaseRequest{UserID: &user})
	require.NoError(t, err)
	assert.Empty(t, list)
}
