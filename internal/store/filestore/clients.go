package filestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/security"
	"github.com/safar/storefront/internal/store"
)

// clientRecord is the on-disk shape of a client. models.Client hides the
// hash from JSON, so it is persisted explicitly here.
type clientRecord struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Phone        string      `json:"phone,omitempty"`
	Address      string      `json:"address,omitempty"`
	PasswordHash string      `json:"passwordHash,omitempty"`
	Role         models.Role `json:"role"`
	Active       bool        `json:"active"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (c clientRecord) model() models.Client {
	return models.Client{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Address:      c.Address,
		PasswordHash: c.PasswordHash,
		Role:         c.Role,
		Active:       c.Active,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type ClientRepository struct {
	s *Store
}

func (r *ClientRepository) List(ctx context.Context) ([]models.Client, error) {
	records, err := r.s.clients.view()
	if err != nil {
		return nil, err
	}
	out := make([]models.Client, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.model().Public())
	}
	return out, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	records, err := r.s.clients.view()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.ID == id {
			c := rec.model().Public()
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ClientRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	email = store.NormalizeEmail(email)
	records, err := r.s.clients.view()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.Email == email {
			c := rec.model()
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ClientRepository) Create(ctx context.Context, in models.ClientInput) (*models.Client, error) {
	now := r.s.now()
	rec := clientRecord{
		ID:        r.s.ids.NewID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     store.NormalizeEmail(in.Email),
		Phone:     in.Phone,
		Address:   in.Address,
		Role:      in.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if rec.Role == "" {
		rec.Role = models.RoleUser
	}
	if in.Password != "" {
		hash, err := security.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		rec.PasswordHash = hash
	}

	err := r.s.clients.mutate(func(records []clientRecord) ([]clientRecord, error) {
		for _, existing := range records {
			if existing.Email == rec.Email {
				return nil, database.ErrDuplicate
			}
		}
		return append(records, rec), nil
	})
	if err != nil {
		return nil, err
	}
	c := rec.model().Public()
	return &c, nil
}

func (r *ClientRepository) Update(ctx context.Context, id string, patch models.ClientPatch) (*models.Client, error) {
	var hash string
	if patch.Password != nil && *patch.Password != "" {
		h, err := security.HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	var updated *models.Client
	err := r.s.clients.mutate(func(records []clientRecord) ([]clientRecord, error) {
		idx := -1
		for i := range records {
			if records[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return records, nil
		}

		rec := &records[idx]
		if patch.Email != nil {
			email := store.NormalizeEmail(*patch.Email)
			for i := range records {
				if i != idx && records[i].Email == email {
					return nil, database.ErrDuplicate
				}
			}
			rec.Email = email
		}
		if patch.Name != nil {
			rec.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Phone != nil {
			rec.Phone = *patch.Phone
		}
		if patch.Address != nil {
			rec.Address = *patch.Address
		}
		if patch.Role != nil {
			rec.Role = *patch.Role
		}
		if patch.Active != nil {
			rec.Active = *patch.Active
		}
		if hash != "" {
			rec.PasswordHash = hash
		}
		rec.UpdatedAt = r.s.now()

		c := rec.model().Public()
		updated = &c
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete refuses to remove a client that still has orders and drops the
// client's cart lines along with the record.
func (r *ClientRepository) Delete(ctx context.Context, id string) (bool, error) {
	s := r.s
	s.orders.mu.RLock()
	defer s.orders.mu.RUnlock()
	s.cart.mu.Lock()
	defer s.cart.mu.Unlock()
	s.clients.mu.Lock()
	defer s.clients.mu.Unlock()

	records, err := s.clients.load()
	if err != nil {
		return false, err
	}
	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	orders, err := s.orders.load()
	if err != nil {
		return false, err
	}
	for _, o := range orders {
		if o.ClientID == id {
			return false, fmt.Errorf("client %s has orders: %w", id, database.ErrReferenced)
		}
	}

	items, err := s.cart.load()
	if err != nil {
		return false, err
	}
	kept, removedLines := withoutUser(items, id)
	if removedLines > 0 {
		if err := s.cart.store(kept); err != nil {
			return false, err
		}
	}

	records = append(records[:idx], records[idx+1:]...)
	if err := s.clients.store(records); err != nil {
		if removedLines > 0 {
			return false, restore(err, func() error { return s.cart.store(items) })
		}
		return false, err
	}
	return true, nil
}
