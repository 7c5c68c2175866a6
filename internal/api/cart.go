package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safar/storefront/internal/apperr"
)

type addToCartRequest struct {
	UserID    string `json:"userId" validate:"required"`
	ProductID string `json:"productId" validate:"required"`
	// Quantity is a delta; a negative value decrements the line.
	Quantity int `json:"quantity" validate:"required"`
}

type updateCartRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

// ownCart rejects access to another user's cart unless the caller is an
// administrator.
func ownCart(r *http.Request, userID string) error {
	id, _ := actor(r)
	if id.ID != userID && !id.IsAdmin() {
		return apperr.Forbidden("cart belongs to another client")
	}
	return nil
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if err := ownCart(r, userID); err != nil {
		s.respondError(w, r, err)
		return
	}

	cart, err := s.cart.Get(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cart)
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := ownCart(r, req.UserID); err != nil {
		s.respondError(w, r, err)
		return
	}

	cart, err := s.cart.AddItem(r.Context(), req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cart)
}

func (s *Server) handleUpdateCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := ownCart(r, vars["userId"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	var req updateCartRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	cart, err := s.cart.SetQuantity(r.Context(), vars["userId"], vars["productId"], *req.Quantity)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cart)
}

func (s *Server) handleRemoveCartItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := ownCart(r, vars["userId"]); err != nil {
		s.respondError(w, r, err)
		return
	}

	removed, err := s.cart.RemoveItem(r.Context(), vars["userId"], vars["productId"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if err := ownCart(r, userID); err != nil {
		s.respondError(w, r, err)
		return
	}

	n, err := s.cart.Clear(r.Context(), userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]int{"removed": n})
}
