package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/internal/apperr"
)

func widget() *Item {
	return &Item{ID: "aaaaaaaaaaaaaaaaaaaaaaaa", Name: "Widget", Category: "Parts", Price: 10}
}

func TestAddLineSnapshotsPrice(t *testing.T) {
	cart := &Cart{UserID: "u1"}
	item := widget()
	require.NoError(t, cart.AddLine(item, 2, 100))

	item.Price = 99
	item.Name = "Renamed"
	require.NoError(t, cart.AddLine(item, 1, 200))

	require.Len(t, cart.Items, 1)
	line := cart.Items[0]
	assert.Equal(t, "Widget", line.Name)
	assert.Equal(t, 10.0, line.UnitPrice)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 30.0, line.Subtotal)
	assert.Equal(t, int64(100), line.AddedTs)
	assert.Equal(t, 30.0, cart.TotalCost())
}

func TestAddLineQuantityBounds(t *testing.T) {
	for _, qty := range []int{-1, 0, 1000, 5000} {
		cart := &Cart{}
		err := cart.AddLine(widget(), qty, 0)
		assert.True(t, apperr.Is(err, apperr.KindCartLimit), "qty %d", qty)
		assert.Empty(t, cart.Items)
	}

	cart := &Cart{}
	require.NoError(t, cart.AddLine(widget(), 998, 0))
	err := cart.AddLine(widget(), 2, 0)
	assert.True(t, apperr.Is(err, apperr.KindCartLimit))
	assert.Equal(t, 998, cart.Items[0].Quantity)
}

func TestSetQuantity(t *testing.T) {
	cart := &Cart{}
	require.NoError(t, cart.AddLine(widget(), 2, 0))

	require.NoError(t, cart.SetQuantity(widget().ID, 5))
	assert.Equal(t, 50.0, cart.TotalCost())

	err := cart.SetQuantity(widget().ID, 1000)
	assert.True(t, apperr.Is(err, apperr.KindCartLimit))
	assert.Equal(t, 5, cart.Items[0].Quantity)

	err = cart.SetQuantity("bbbbbbbbbbbbbbbbbbbbbbbb", 1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, cart.SetQuantity(widget().ID, 0))
	assert.Empty(t, cart.Items)
	assert.Equal(t, 0.0, cart.TotalCost())
}

func TestRemoveLine(t *testing.T) {
	cart := &Cart{}
	require.NoError(t, cart.AddLine(widget(), 1, 0))
	require.NoError(t, cart.RemoveLine(widget().ID))
	assert.True(t, apperr.Is(cart.RemoveLine(widget().ID), apperr.KindNotFound))
}

func TestCloneIsDeep(t *testing.T) {
	cart := &Cart{}
	require.NoError(t, cart.AddLine(widget(), 1, 0))
	clone := cart.Clone()
	require.NoError(t, clone.SetQuantity(widget().ID, 4))
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestSnapshotCart(t *testing.T) {
	cart := &Cart{}
	require.NoError(t, cart.AddLine(widget(), 2, 0))
	items := SnapshotCart(cart)
	require.Len(t, items, 1)
	assert.Equal(t, 20.0, items[0].Subtotal)

	cart.Items[0].Name = "changed"
	assert.Equal(t, "Widget", items[0].Name)
}

func TestFormatRequestNumber(t *testing.T) {
	assert.Equal(t, "PR-2026-0007", FormatRequestNumber(2026, 7))
	assert.Equal(t, "PR-2026-12345", FormatRequestNumber(2026, 12345))
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 0.3, RoundCents(0.1+0.2))
	assert.Equal(t, 33.33, RoundCents(100.0/3))
}
