package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"quickpay-bridge/internal/hooks"
	"quickpay-bridge/internal/logger"
	"quickpay-bridge/internal/quickpay"

	"go.uber.org/zap"
)

// Handler serves the shop-facing payment start endpoint and the admin view
// of recorded payments.
type Handler struct {
	repo        Repository
	factory     hooks.Factory
	integration string
}

func NewHandler(repo Repository, factory hooks.Factory, integration string) *Handler {
	return &Handler{repo: repo, factory: factory, integration: integration}
}

type paymentLinkResponse struct {
	OrderNumber string `json:"order_number"`
	PaymentID   int64  `json:"payment_id"`
	URL         string `json:"url"`
}

// StartPayment creates a QuickPay payment for the order and returns the
// payment window URL. Route: POST /orders/{number}/quickpay.
func (h *Handler) StartPayment(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	ctx := logger.WithOrderNumber(r.Context(), number)
	log := logger.FromCtx(ctx)

	o, err := h.repo.GetByNumber(ctx, number)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	if o.Status != StatusPaymentPending {
		http.Error(w, "order is not awaiting payment", http.StatusConflict)
		return
	}

	client, err := h.factory.CreateClient(ctx, number)
	if err != nil {
		log.Error("Failed to create QuickPay client", zap.Error(err))
		if errors.Is(err, quickpay.ErrConfigurationMissing) {
			http.Error(w, "payment method not configured", http.StatusServiceUnavailable)
			return
		}
		writeOrderError(w, err)
		return
	}

	payment, err := client.CreatePayment(ctx, number)
	if err != nil {
		http.Error(w, "failed to create payment", http.StatusBadGateway)
		return
	}

	link, err := client.CreatePaymentLink(ctx, payment.ID, o.Total, map[string]string{
		"integration": h.integration,
	})
	if err != nil {
		http.Error(w, "failed to create payment link", http.StatusBadGateway)
		return
	}

	log.Info("QuickPay payment link created", zap.Int64("payment_id", payment.ID))
	writeJSON(w, http.StatusCreated, paymentLinkResponse{
		OrderNumber: number,
		PaymentID:   payment.ID,
		URL:         link.URL,
	})
}

// ListPayments returns the payment entries of an order.
// Route: GET /admin/orders/{number}/payments.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	number := r.PathValue("number")
	ctx := logger.WithOrderNumber(r.Context(), number)

	if _, err := h.repo.GetByNumber(ctx, number); err != nil {
		writeOrderError(w, err)
		return
	}

	entries, err := h.repo.ListPayments(ctx, number)
	if err != nil {
		logger.FromCtx(ctx).Error("Failed to list payments", zap.Error(err))
		http.Error(w, "failed to list payments", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidNumber):
		http.Error(w, "invalid order number", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
