package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/models"
)

// Identity is what authenticated handlers know about the caller.
type Identity struct {
	ID    string
	Email string
	Role  models.Role
	Name  string
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type ClientLookup interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
}

// ErrorWriter renders a rejection. The HTTP layer supplies its envelope writer.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type Middleware struct {
	tokens  *Tokens
	clients ClientLookup
	fail    ErrorWriter
}

func NewMiddleware(tokens *Tokens, clients ClientLookup, fail ErrorWriter) *Middleware {
	return &Middleware{tokens: tokens, clients: clients, fail: fail}
}

// Authenticate verifies the bearer token and loads the referenced client.
// Unknown clients are rejected with 401 and inactive ones with 403.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			m.fail(w, r, apperr.Unauthenticated("missing bearer token"))
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			m.fail(w, r, apperr.Wrap(apperr.CodeUnauthenticated, "invalid or expired token", err))
			return
		}

		client, err := m.clients.GetByID(r.Context(), claims.UserID)
		if err != nil {
			m.fail(w, r, apperr.FromStore(err, "client"))
			return
		}
		if client == nil {
			m.fail(w, r, apperr.Unauthenticated("account no longer exists"))
			return
		}
		if !client.Active {
			m.fail(w, r, apperr.Forbidden("account is inactive"))
			return
		}

		id := Identity{ID: client.ID, Email: client.Email, Role: client.Role, Name: client.Name}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireAdmin must run after Authenticate.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			m.fail(w, r, apperr.Unauthenticated("authentication required"))
			return
		}
		if !id.IsAdmin() {
			m.fail(w, r, apperr.Forbidden("administrator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
