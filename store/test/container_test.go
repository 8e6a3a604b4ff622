package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/procura/procura/internal/profile"
	"github.com/procura/procura/store"
)

func requireContainers(t *testing.T) {
	t.Helper()
	if os.Getenv("PROCURA_TEST_CONTAINERS") != "1" {
		t.Skip("set PROCURA_TEST_CONTAINERS=1 to run driver tests against docker")
	}
}

// exerciseDriver runs the cart/checkout round trip every driver must support.
func exerciseDriver(ctx context.Context, t *testing.T, ts *store.Store) {
	item, err := ts.CreateItem(ctx, &store.Item{Name: "Widget", Category: "Parts", Price: 10})
	require.NoError(t, err)

	cart, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, cart.AddLine(item, 2, time.Now().Unix()))
	cart, err = ts.SaveCart(ctx, cart)
	require.NoError(t, err)

	pr, err := ts.CheckoutCart(ctx, &store.CheckoutCart{
		UID: "pr-1", UserID: "user-1", CartVersion: cart.Version, Year: 2026,
		Items: store.SnapshotCart(cart), TotalCost: cart.TotalCost(),
	})
	require.NoError(t, err)
	assert.Equal(t, "PR-2026-0001", pr.RequestNumber)
	assert.Equal(t, 20.0, pr.TotalCost)

	after, err := ts.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, after.Items)

	conv, err := ts.CreateConversation(ctx, &store.Conversation{UID: "conv-1", UserID: "user-1", Title: "t"})
	require.NoError(t, err)
	_, err = ts.CreateMessage(ctx, &store.CreateMessage{ConversationID: conv.ID, Sender: store.SenderUser, Content: "hi"})
	require.NoError(t, err)
	n, err := ts.CountMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPostgresDriver(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("procura"),
		postgres.WithUsername("procura"),
		postgres.WithPassword("procura"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	ts := NewStoreFromProfile(ctx, t, &profile.Profile{Mode: "dev", Driver: "postgres", DSN: dsn})
	exerciseDriver(ctx, t, ts)
}

func TestMySQLDriver(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()

	ctr, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("procura"),
		mysql.WithUsername("procura"),
		mysql.WithPassword("procura"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	ts := NewStoreFromProfile(ctx, t, &profile.Profile{Mode: "dev", Driver: "mysql", DSN: dsn})
	exerciseDriver(ctx, t, ts)
}
