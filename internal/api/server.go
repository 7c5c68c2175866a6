// Package api exposes the storefront over HTTP. Every response uses the
// {success, data, error, message} envelope.
package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/safar/storefront/internal/apperr"
	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/service"
	"go.uber.org/zap"
)

type Deps struct {
	Catalog   *service.Catalog
	Accounts  *service.Accounts
	Cart      *service.Cart
	Checkout  *service.Checkout
	Assistant *service.Assistant
	Tokens    *auth.Tokens
	Clients   auth.ClientLookup
	Logger    *zap.Logger
}

type Server struct {
	catalog   *service.Catalog
	accounts  *service.Accounts
	cart      *service.Cart
	checkout  *service.Checkout
	assistant *service.Assistant
	auth      *auth.Middleware
	validate  *validator.Validate
	logger    *zap.Logger
	router    *mux.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		catalog:   d.Catalog,
		accounts:  d.Accounts,
		cart:      d.Cart,
		checkout:  d.Checkout,
		assistant: d.Assistant,
		validate:  newValidator(),
		logger:    d.Logger,
	}
	s.auth = auth.NewMiddleware(d.Tokens, d.Clients, s.respondError)
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverer, s.accessLog)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, r, apperr.NotFound("route not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, envelope{Success: false, Error: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// public
	api.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/famous", s.handleFeaturedProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/category/{category}", s.handleProductsByCategory).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", s.handleGetProduct).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/clients/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/clients/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.auth.Authenticate, s.auth.RequireAdmin)
	admin.HandleFunc("/products", s.handleCreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", s.handleUpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}", s.handleDeleteProduct).Methods(http.MethodDelete)
	admin.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	admin.HandleFunc("/clients", s.handleListClients).Methods(http.MethodGet)
	admin.HandleFunc("/clients/{id}", s.handleUpdateClient).Methods(http.MethodPut)
	admin.HandleFunc("/clients/{id}", s.handleDeleteClient).Methods(http.MethodDelete)

	user := api.NewRoute().Subrouter()
	user.Use(s.auth.Authenticate)
	user.HandleFunc("/clients/me", s.handleMe).Methods(http.MethodGet)
	user.HandleFunc("/cart/add", s.handleAddToCart).Methods(http.MethodPost)
	user.HandleFunc("/cart/update/{userId}/{productId}", s.handleUpdateCartItem).Methods(http.MethodPut)
	user.HandleFunc("/cart/remove/{userId}/{productId}", s.handleRemoveCartItem).Methods(http.MethodDelete)
	user.HandleFunc("/cart/clear/{userId}", s.handleClearCart).Methods(http.MethodDelete)
	user.HandleFunc("/cart/{userId}", s.handleGetCart).Methods(http.MethodGet)
	user.HandleFunc("/orders", s.handleListOrders).Methods(http.MethodGet)
	user.HandleFunc("/orders/create", s.handleCreateOrder).Methods(http.MethodPost)
	user.HandleFunc("/orders/capture", s.handleCaptureOrder).Methods(http.MethodPost)
	user.HandleFunc("/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actor returns the authenticated caller. Routes that call it are always
// behind Authenticate.
func actor(r *http.Request) (auth.Identity, service.Actor) {
	id, _ := auth.IdentityFrom(r.Context())
	return id, service.Actor{ID: id.ID, Admin: id.IsAdmin()}
}
