package backend

import (
	"context"
	"testing"

	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/store"
	"github.com/safar/storefront/internal/store/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenFileBackendResolvesRepositories(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.BackendFile, DataDir: t.TempDir(), NodeID: 1}}

	s, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.BackendFile, s.Backend())

	repo, err := s.Resolve(store.NameProducts)
	require.NoError(t, err)
	assert.IsType(t, &filestore.ProductRepository{}, repo)

	for _, name := range []string{store.NameCategories, store.NameClients, store.NameCart, store.NameOrders} {
		repo, err := s.Resolve(name)
		require.NoError(t, err, name)
		assert.NotNil(t, repo, name)
	}

	_, err = s.Resolve("invoices")
	assert.ErrorIs(t, err, store.ErrUnknownRepository)

	repos, err := s.ResolveAll()
	require.NoError(t, err)
	assert.IsType(t, &filestore.ClientRepository{}, repos.Clients)
	assert.IsType(t, &filestore.OrderRepository{}, repos.Orders)

	_, err = store.Lookup[store.CartRepository](s, store.NameProducts)
	assert.Error(t, err)
	_, err = store.Lookup[store.CartRepository](s, "invoices")
	assert.ErrorIs(t, err, store.ErrUnknownRepository)
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "mongo", NodeID: 1}}
	_, err := Open(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
