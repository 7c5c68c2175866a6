package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/security"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

const (
	minPasswordLength = 6

	RedirectAdmin = "/admin.html"
	RedirectUser  = "/index.html"
)

type RegisterInput struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Password string
}

type SessionUser struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role models.Role `json:"role"`
}

type LoginResult struct {
	Token    string      `json:"token"`
	User     SessionUser `json:"user"`
	Redirect string      `json:"redirect"`
}

type Accounts struct {
	clients store.ClientRepository
	tokens  *auth.Tokens
	logger  *zap.Logger
}

func NewAccounts(clients store.ClientRepository, tokens *auth.Tokens, logger *zap.Logger) *Accounts {
	return &Accounts{clients: clients, tokens: tokens, logger: logger}
}

// Register creates a regular user. The role is never taken from the caller,
// and a missing name defaults to the local part of the email.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*models.Client, error) {
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		in.Name, _, _ = strings.Cut(strings.TrimSpace(in.Email), "@")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least 6 characters")
	}

	c, err := a.clients.Create(ctx, models.ClientInput{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    strings.TrimSpace(in.Phone),
		Address:  strings.TrimSpace(in.Address),
		Password: in.Password,
		Role:     models.RoleUser,
	})
	if err != nil {
		return nil, apperr.FromStore(err, "email")
	}

	a.logger.Info("client registered", zap.String("client_id", c.ID))
	public := c.Public()
	return &public, nil
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	c, err := a.clients.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.FromStore(err, "client")
	}
	if c == nil {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if err := security.ComparePassword(c.PasswordHash, password); err != nil {
		return nil, apperr.Unauthenticated("invalid email or password")
	}
	if !c.Active {
		return nil, apperr.Forbidden("account is inactive")
	}

	token, err := a.tokens.Issue(c)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "could not issue token", err)
	}

	redirect := RedirectUser
	if c.Role == models.RoleAdmin {
		redirect = RedirectAdmin
	}
	return &LoginResult{
		Token:    token,
		User:     SessionUser{ID: c.ID, Name: c.Name, Role: c.Role},
		Redirect: redirect,
	}, nil
}

func (a *Accounts) Me(ctx context.Context, id string) (*models.Client, error) {
	c, err := a.clients.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.FromStore(err, "client")
	}
	if c == nil {
		return nil, apperr.NotFound("client not found")
	}
	return c, nil
}

func (a *Accounts) List(ctx context.Context) ([]models.Client, error) {
	clients, err := a.clients.List(ctx)
	return clients, apperr.FromStore(err, "client")
}

func (a *Accounts) Update(ctx context.Context, id string, patch models.ClientPatch) (*models.Client, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name must not be empty")
		}
		patch.Name = &name
	}
	if patch.Email != nil {
		if err := validateEmail(*patch.Email); err != nil {
			return nil, err
		}
	}
	if patch.Password != nil && len(*patch.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least 6 characters")
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return nil, apperr.Validation("role must be user or admin")
	}

	c, err := a.clients.Update(ctx, id, patch)
	if err != nil {
		return nil, apperr.FromStore(err, "email")
	}
	if c == nil {
		return nil, apperr.NotFound("client not found")
	}
	return c, nil
}

func (a *Accounts) Delete(ctx context.Context, id string) error {
	removed, err := a.clients.Delete(ctx, id)
	if errors.Is(err, database.ErrReferenced) {
		return apperr.Wrap(apperr.CodeConflict, "client has orders, deactivate the account instead", err)
	}
	if err != nil {
		return apperr.FromStore(err, "client")
	}
	if !removed {
		return apperr.NotFound("client not found")
	}
	return nil
}

// EnsureAdmin creates the administrator account, or promotes and reactivates
// an existing client with that email. An empty email is a no-op.
func (a *Accounts) EnsureAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}

	existing, err := a.clients.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role == models.RoleAdmin && existing.Active {
			return nil
		}
		role, active := models.RoleAdmin, true
		if _, err := a.clients.Update(ctx, existing.ID, models.ClientPatch{Role: &role, Active: &active}); err != nil {
			return err
		}
		a.logger.Info("promoted administrator", zap.String("client_id", existing.ID))
		return nil
	}

	if len(password) < minPasswordLength {
		return errors.New("admin password must be at least 6 characters")
	}
	c, err := a.clients.Create(ctx, models.ClientInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return err
	}
	a.logger.Info("created administrator", zap.String("client_id", c.ID))
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperr.Validation("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Validation("email is not valid")
	}
	return nil
}
