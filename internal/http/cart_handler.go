package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/cart/service"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type CartService interface {
	GetCart(ctx context.Context, customerID string) (*domain.Cart, error)
	AddItem(ctx context.Context, customerID string, productID, variantID int64, quantity int) (*domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, customerID, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, customerID, itemID string) (*domain.Cart, error)
	SetShippingAddress(ctx context.Context, customerID, addressID string) (*domain.Cart, error)
	SetBillingAddress(ctx context.Context, customerID, addressID string) (*domain.Cart, error)
	MergeGuestCart(ctx context.Context, guestCartID, customerID string) (*service.MergeResult, error)
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     logrus.FieldLogger
}

func NewCartHandler(carts CartService, timeout time.Duration, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type AddressRequestDTO struct {
	AddressID string `json:"address_id"`
}

type MergeRequestDTO struct {
	GuestCartID string `json:"guest_cart_id"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, customerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	cart, err := h.carts.AddItem(ctx, customerIDFromContext(r.Context()), req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, cart)
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateQuantityRequestDTO
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart, err := h.carts.UpdateItemQuantity(ctx, customerIDFromContext(r.Context()), chi.URLParam(r, "item_id"), req.Quantity)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.RemoveItem(ctx, customerIDFromContext(r.Context()), chi.URLParam(r, "item_id"))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// PUT /api/v1/cart/shipping-address
func (h *CartHandler) SetShippingAddress(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.carts.SetShippingAddress)
}

// PUT /api/v1/cart/billing-address
func (h *CartHandler) SetBillingAddress(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.carts.SetBillingAddress)
}

func (h *CartHandler) setAddress(
	w http.ResponseWriter,
	r *http.Request,
	set func(ctx context.Context, customerID, addressID string) (*domain.Cart, error),
) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddressRequestDTO
	if err := decodeBody(r, &req); err != nil || req.AddressID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "address_id is required")
		return
	}

	cart, err := set(ctx, customerIDFromContext(r.Context()), req.AddressID)
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, cart)
}

// POST /api/v1/cart/merge
func (h *CartHandler) MergeGuestCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req MergeRequestDTO
	if err := decodeBody(r, &req); err != nil || req.GuestCartID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "guest_cart_id is required")
		return
	}

	result, err := h.carts.MergeGuestCart(ctx, req.GuestCartID, customerIDFromContext(r.Context()))
	if err != nil {
		handleError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
