package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safar/storefront/internal/models"
)

type createProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Price       *int64 `json:"price" validate:"required,min=1"`
	Stock       *int   `json:"stock" validate:"required,min=0"`
	Category    string `json:"category" validate:"max=100"`
	Description string `json:"description" validate:"max=2000"`
	Image       string `json:"image" validate:"max=2048"`
	Famous      bool   `json:"famous"`
}

type updateProductRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Price       *int64  `json:"price" validate:"omitempty,min=1"`
	Stock       *int    `json:"stock" validate:"omitempty,min=0"`
	Category    *string `json:"category" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Image       *string `json:"image" validate:"omitempty,max=2048"`
	Famous      *bool   `json:"famous"`
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// handleListProducts serves the catalog, optionally narrowed by ?q= or
// ?category=.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		products []models.Product
		err      error
	)
	switch {
	case q.Get("category") != "":
		products, err = s.catalog.ByCategory(r.Context(), q.Get("category"))
	case q.Get("q") != "":
		products, err = s.catalog.Search(r.Context(), q.Get("q"))
	default:
		products, err = s.catalog.List(r.Context())
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, products)
}

func (s *Server) handleFeaturedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.Featured(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, products)
}

func (s *Server) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := s.catalog.ByCategory(r.Context(), mux.Vars(r)["category"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.catalog.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, p)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.catalog.Create(r.Context(), models.ProductInput{
		Name:        req.Name,
		Price:       *req.Price,
		Stock:       *req.Stock,
		Category:    req.Category,
		Description: req.Description,
		Image:       req.Image,
		Famous:      req.Famous,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	p, err := s.catalog.Update(r.Context(), mux.Vars(r)["id"], models.ProductPatch{
		Name:        req.Name,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		Description: req.Description,
		Image:       req.Image,
		Famous:      req.Famous,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondMessage(w, http.StatusOK, "product deleted", nil)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.Categories(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	cat, err := s.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, cat)
}
