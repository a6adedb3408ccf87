package httpapi

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/safar/hive-store/internal/checkout"
	"github.com/safar/hive-store/internal/store"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	views, err := h.catalog.ListProducts(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, views)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID)
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, view)
}

func (h *Handler) RateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.catalog.RateProduct(r.Context(), chi.URLParam(r, "id"), identityFrom(r.Context()).UserID, toInt(req.Rating, math.Round))
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, view)
}

type orderItemRequest struct {
	ProductID string   `json:"productId"`
	Quantity  *float64 `json:"quantity"`
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []orderItemRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, h.log, http.StatusBadRequest, "Items required")
		return
	}

	items := make([]checkout.ItemRequest, 0, len(req.Items))
	for _, it := range req.Items {
		qty := 1.0
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		items = append(items, checkout.ItemRequest{ProductID: it.ProductID, Quantity: qty})
	}

	order, err := h.checkout.PlaceOrder(r.Context(), identityFrom(r.Context()).UserID, items)
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusCreated, order)
}

func (h *Handler) SendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Phone == "" {
		respondError(w, h.log, http.StatusBadRequest, "Phone number required")
		return
	}

	if err := h.verification.Issue(r.Context(), req.Phone); err != nil {
		respondStoreError(w, h.log, err, "Not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, map[string]string{"message": "Verification code sent"})
}

func (h *Handler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Phone == "" || req.Code == "" {
		respondError(w, h.log, http.StatusBadRequest, "Phone and code required")
		return
	}

	if err := h.verification.Consume(r.Context(), req.Phone, req.Code); err != nil {
		respondStoreError(w, h.log, err, "Not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, map[string]bool{"verified": true})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.stats.GetStats(r.Context())
	if err != nil {
		respondStoreError(w, h.log, err, "Not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, s)
}

// ListOrders returns every order newest first. With page or page_size in the
// query it returns one OffsetPage instead of the bare list.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), store.NewestFirst)
	if err != nil {
		respondStoreError(w, h.log, err, "Not found")
		return
	}

	if page, pageSize, ok := parsePage(r); ok {
		respondJSON(w, h.log, http.StatusOK, paginate(orders, page, pageSize))
		return
	}
	respondJSON(w, h.log, http.StatusOK, orders)
}

func (h *Handler) AdminProducts(w http.ResponseWriter, r *http.Request) {
	views, err := h.catalog.AdminProducts(r.Context())
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, views)
}

func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stock float64 `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := h.catalog.SetStock(r.Context(), chi.URLParam(r, "id"), toInt(req.Stock, math.Floor))
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusOK, product)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string              `json:"name"`
		Price       decimal.NullDecimal `json:"price"`
		Description string              `json:"description"`
		Category    string              `json:"category"`
		Colors      []string            `json:"colors"`
		Stock       float64             `json:"stock"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || !req.Price.Valid {
		respondError(w, h.log, http.StatusBadRequest, "Name and price required")
		return
	}

	product, err := h.catalog.CreateProduct(r.Context(), store.NewProduct{
		Name:        req.Name,
		Price:       req.Price.Decimal,
		Description: req.Description,
		Category:    req.Category,
		Colors:      req.Colors,
		Stock:       toInt(req.Stock, math.Floor),
	})
	if err != nil {
		respondStoreError(w, h.log, err, "Product not found")
		return
	}
	respondJSON(w, h.log, http.StatusCreated, product)
}

// toInt converts a JSON number to int with the given rounding, saturating at
// the int32 range.
func toInt(v float64, round func(float64) float64) int {
	v = round(v)
	switch {
	case math.IsNaN(v):
		return 0
	case v > math.MaxInt32:
		return math.MaxInt32
	case v < math.MinInt32:
		return math.MinInt32
	}
	return int(v)
}
