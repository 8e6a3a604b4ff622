package vectorstore

import (
	"context"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procura/procura/store"
)

// bagOfWords hashes each lowercase word into a fixed-size vector.
func bagOfWords(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 64)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,")))
		vec[h.Sum32()%64]++
	}
	vec[63] += 0.01
	return vec, nil
}

func TestSearchSimilar(t *testing.T) {
	ctx := context.Background()
	vs, err := NewInMemory(bagOfWords)
	require.NoError(t, err)

	items := []*store.Item{
		{ID: "aaaaaaaaaaaaaaaaaaaaaaaa", Name: "Office chair", Category: "Furniture", Description: "ergonomic mesh chair", Status: store.ItemActive},
		{ID: "bbbbbbbbbbbbbbbbbbbbbbbb", Name: "Laptop charger", Category: "Electronics", Description: "usb-c power adapter", Status: store.ItemActive},
		{ID: "cccccccccccccccccccccccc", Name: "Stapler", Category: "Office", Description: "heavy duty stapler", Status: store.ItemActive},
	}
	for _, item := range items {
		require.NoError(t, vs.UpsertItem(ctx, item))
	}
	assert.Equal(t, 3, vs.Count())

	results, err := vs.SearchSimilar(ctx, "ergonomic chair", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "aaaaaaaaaaaaaaaaaaaaaaaa", results[0].ItemID)

	// k larger than the collection is clamped.
	results, err = vs.SearchSimilar(ctx, "stapler", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "cccccccccccccccccccccccc", results[0].ItemID)
}

func TestUpsertItemRemovesInactive(t *testing.T) {
	ctx := context.Background()
	vs, err := NewInMemory(bagOfWords)
	require.NoError(t, err)

	item := &store.Item{ID: "dddddddddddddddddddddddd", Name: "Desk lamp", Category: "Furniture", Status: store.ItemActive}
	require.NoError(t, vs.UpsertItem(ctx, item))
	require.NoError(t, vs.UpsertItem(ctx, item))
	assert.Equal(t, 1, vs.Count())

	item.Status = store.ItemInactive
	require.NoError(t, vs.UpsertItem(ctx, item))
	assert.Zero(t, vs.Count())

	results, err := vs.SearchSimilar(ctx, "lamp", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
