package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/security"
	"github.com/safar/storefront/internal/store"
)

type ClientRepository struct {
	s *Store
}

func (r *ClientRepository) List(ctx context.Context) ([]models.Client, error) {
	var rows []clientRow
	if err := r.s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", database.TranslateError(err))
	}
	out := make([]models.Client, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model().Public())
	}
	return out, nil
}

func (r *ClientRepository) first(ctx context.Context, query string, args ...any) (*models.Client, error) {
	var rows []clientRow
	if err := r.s.db.WithContext(ctx).Where(query, args...).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get client: %w", database.TranslateError(err))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	c := rows[0].model()
	return &c, nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id string) (*models.Client, error) {
	c, err := r.first(ctx, "id = ?", id)
	if err != nil || c == nil {
		return nil, err
	}
	public := c.Public()
	return &public, nil
}

func (r *ClientRepository) GetByEmail(ctx context.Context, email string) (*models.Client, error) {
	return r.first(ctx, "email = ?", store.NormalizeEmail(email))
}

func (r *ClientRepository) Create(ctx context.Context, in models.ClientInput) (*models.Client, error) {
	now := r.s.now()
	row := clientRow{
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
	if row.Role == "" {
		row.Role = models.RoleUser
	}
	if in.Password != "" {
		hash, err := security.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		row.PasswordHash = hash
	}

	if err := r.s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", database.TranslateError(err))
	}
	c := row.model().Public()
	return &c, nil
}

func (r *ClientRepository) Update(ctx context.Context, id string, patch models.ClientPatch) (*models.Client, error) {
	changes := map[string]any{"updated_at": r.s.now()}
	if patch.Name != nil {
		changes["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		changes["email"] = store.NormalizeEmail(*patch.Email)
	}
	if patch.Phone != nil {
		changes["phone"] = *patch.Phone
	}
	if patch.Address != nil {
		changes["address"] = *patch.Address
	}
	if patch.Role != nil {
		changes["role"] = *patch.Role
	}
	if patch.Active != nil {
		changes["active"] = *patch.Active
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := security.HashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = hash
	}

	res := r.s.db.WithContext(ctx).Model(&clientRow{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return nil, fmt.Errorf("update client: %w", database.TranslateError(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *ClientRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.s.db.WithContext(ctx).Where("id = ?", id).Delete(&clientRow{})
	if res.Error != nil {
		return false, fmt.Errorf("delete client: %w", database.TranslateDeleteError(res.Error))
	}
	return res.RowsAffected > 0, nil
}
