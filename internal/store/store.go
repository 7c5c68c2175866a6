package store

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Logical repository names accepted by Resolve.
const (
	NameProducts   = "products"
	NameCategories = "categories"
	NameClients    = "clients"
	NameCart       = "cart"
	NameOrders     = "orders"
)

var ErrUnknownRepository = errors.New("unknown repository")

type Repositories struct {
	Products   ProductRepository
	Categories CategoryRepository
	Clients    ClientRepository
	Cart       CartRepository
	Orders     OrderRepository
}

// Store is the set of repositories of the backend selected at startup.
type Store struct {
	Repositories
	backend string
	closer  io.Closer
}

func NewStore(backend string, repos Repositories, closer io.Closer) *Store {
	return &Store{Repositories: repos, backend: backend, closer: closer}
}

func (s *Store) Backend() string { return s.backend }

// Resolve maps a logical repository name to the selected implementation.
func (s *Store) Resolve(name string) (any, error) {
	switch name {
	case NameProducts:
		return s.Products, nil
	case NameCategories:
		return s.Categories, nil
	case NameClients:
		return s.Clients, nil
	case NameCart:
		return s.Cart, nil
	case NameOrders:
		return s.Orders, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRepository, name)
}

// Lookup resolves name and checks it against the repository type the caller
// expects.
func Lookup[T any](s *Store, name string) (T, error) {
	var zero T
	repo, err := s.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := repo.(T)
	if !ok {
		return zero, fmt.Errorf("repository %q has unexpected type %T", name, repo)
	}
	return typed, nil
}

// ResolveAll resolves every logical repository by name.
func (s *Store) ResolveAll() (Repositories, error) {
	var (
		repos Repositories
		err   error
	)
	if repos.Products, err = Lookup[ProductRepository](s, NameProducts); err != nil {
		return Repositories{}, err
	}
	if repos.Categories, err = Lookup[CategoryRepository](s, NameCategories); err != nil {
		return Repositories{}, err
	}
	if repos.Clients, err = Lookup[ClientRepository](s, NameClients); err != nil {
		return Repositories{}, err
	}
	if repos.Cart, err = Lookup[CartRepository](s, NameCart); err != nil {
		return Repositories{}, err
	}
	if repos.Orders, err = Lookup[OrderRepository](s, NameOrders); err != nil {
		return Repositories{}, err
	}
	return repos, nil
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
