// Package filestore keeps every collection in a JSON document on local disk.
// It serves development and fallback deployments.
package filestore

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/safar/storefront/internal/idgen"
	"github.com/safar/storefront/internal/models"
)

type Store struct {
	dir string
	ids idgen.Generator
	now func() time.Time

	// Lock order when more than one collection is held:
	// orders, products, categories, cart, clients.
	orders     *collection[models.Order]
	products   *collection[models.Product]
	categories *collection[models.Category]
	cart       *collection[models.CartItem]
	clients    *collection[clientRecord]
}

func Open(dir string, ids idgen.Generator) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}
	return &Store{
		dir:        dir,
		ids:        ids,
		now:        time.Now,
		orders:     newCollection[models.Order](dir, "orders"),
		products:   newCollection[models.Product](dir, "products"),
		categories: newCollection[models.Category](dir, "categories"),
		cart:       newCollection[models.CartItem](dir, "cart"),
		clients:    newCollection[clientRecord](dir, "clients"),
	}, nil
}

func (s *Store) Products() *ProductRepository   { return &ProductRepository{s: s} }
func (s *Store) Categories() *CategoryRepository { return &CategoryRepository{s: s} }
func (s *Store) Clients() *ClientRepository     { return &ClientRepository{s: s} }
func (s *Store) Cart() *CartRepository          { return &CartRepository{s: s} }
func (s *Store) Orders() *OrderRepository       { return &OrderRepository{s: s} }

func (s *Store) Close() error { return nil }
