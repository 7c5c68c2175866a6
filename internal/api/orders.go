package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/service"
)

type orderLineRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// createOrderRequest keeps the storefront's delivery field names.
type createOrderRequest struct {
	Items       []orderLineRequest `json:"items" validate:"omitempty,max=100,dive"`
	Direccion   string             `json:"direccion" validate:"required,max=300"`
	Region      string             `json:"region" validate:"required,max=100"`
	Comuna      string             `json:"comuna" validate:"required,max=100"`
	Comentarios string             `json:"comentarios" validate:"max=500"`
	Total       *int64             `json:"total"`
}

type captureOrderRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	lines := make([]service.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, service.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	_, who := actor(r)
	created, err := s.checkout.CreateOrder(r.Context(), who, service.CreateOrderInput{
		Items: lines,
		Delivery: models.Delivery{
			Address:  req.Direccion,
			Region:   req.Region,
			Commune:  req.Comuna,
			Comments: req.Comentarios,
		},
		ClientTotal: req.Total,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusCreated, created)
}

func (s *Server) handleCaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req captureOrderRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	_, who := actor(r)
	out, err := s.checkout.CaptureOrder(r.Context(), who, req.OrderID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, out)
}

// handleGetOrder returns one order; ?refresh=true first asks the payment
// provider about a pending order.
func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	_, who := actor(r)
	id := mux.Vars(r)["id"]

	var (
		order *models.Order
		err   error
	)
	if r.URL.Query().Get("refresh") == "true" {
		order, err = s.checkout.RefreshOrder(r.Context(), who, id)
	} else {
		order, err = s.checkout.GetOrder(r.Context(), who, id)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	_, who := actor(r)
	page, err := s.checkout.ListOrders(r.Context(), who, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, page)
}
