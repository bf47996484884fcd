package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/pkg/bootstrap"
	"orderflow/internal/service/order/infrastructure/memory"
)

func TestSeed_InsertsOnceAndKeepsStock(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seed := bootstrap.SeedConfig{
		Users:    []bootstrap.SeedUser{{ID: "u-1", Name: "Ada", Email: "ada@example.com"}},
		Products: []bootstrap.SeedProduct{{ID: "p-1", Name: "Widget", Price: "9.99", Stock: 10}},
	}
	require.NoError(t, Seed(ctx, store, seed))

	p, err := store.Products().FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "9.99", p.Price.StringFixed(2))
	p.Stock = 3
	require.NoError(t, store.Products().Save(ctx, p))

	require.NoError(t, Seed(ctx, store, seed))
	p, err = store.Products().FindByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	u, err := store.Users().FindByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestSeed_InvalidPriceRollsBack(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	err := Seed(ctx, store, bootstrap.SeedConfig{
		Users:    []bootstrap.SeedUser{{ID: "u-1", Name: "Ada", Email: "ada@example.com"}},
		Products: []bootstrap.SeedProduct{{ID: "p-1", Name: "Widget", Price: "cheap", Stock: 1}},
	})
	require.Error(t, err)

	_, err = store.Users().FindByID(ctx, "u-1")
	assert.Error(t, err)
}
