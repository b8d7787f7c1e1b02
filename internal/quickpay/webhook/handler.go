package webhook

import (
	"errors"
	"io"
	"net/http"

	"quickpay-bridge/internal/hooks"
	"quickpay-bridge/internal/logger"
	"quickpay-bridge/internal/metrics"
	"quickpay-bridge/internal/quickpay"

	"go.uber.org/zap"
)

// maxBodyBytes caps callback bodies; QuickPay payloads are a few KB.
const maxBodyBytes = 1 << 20

type Handler struct {
	registry *hooks.Registry
	repo     quickpay.Repository
	stats    *metrics.Callbacks
}

func NewHandler(registry *hooks.Registry, repo quickpay.Repository, stats *metrics.Callbacks) *Handler {
	if stats == nil {
		stats = &metrics.Callbacks{}
	}
	return &Handler{
		registry: registry,
		repo:     repo,
		stats:    stats,
	}
}

// CallbackHandler receives QuickPay callbacks on
// POST /quickpay/callback/{integration} and hands successful verification
// over to the integration's Callback hook.
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	h.stats.Received.Inc()
	name := r.PathValue("integration")
	log := logger.FromCtx(r.Context()).With(zap.String("integration", name))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.reject(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	txn, err := quickpay.ParseTransaction(body)
	if err != nil {
		log.Warn("Invalid QuickPay callback payload", zap.Error(err))
		h.reject(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ctx := logger.WithOrderNumber(r.Context(), txn.OrderID)
	log = log.With(
		zap.String("order_number", txn.OrderID),
		zap.Int64("payment_id", txn.ID),
	)

	integration, err := h.registry.Lookup(name)
	if err != nil {
		log.Warn("Callback for unknown integration")
		h.reject(w, "unknown integration", http.StatusNotFound)
		return
	}

	client, err := integration.CreateClient(ctx, txn.OrderID)
	if err != nil {
		log.Error("Cannot build QuickPay client for callback", zap.Error(err))
		h.reject(w, "payment configuration unavailable", http.StatusInternalServerError)
		return
	}

	if err := client.VerifyChecksum(body, r.Header.Get(quickpay.ChecksumHeader)); err != nil {
		log.Warn("QuickPay checksum mismatch")
		h.reject(w, "invalid checksum", http.StatusUnauthorized)
		return
	}

	callbackID, isDuplicate, err := h.repo.SaveCallback(
		ctx, name, txn.EventID(), txn.EventType(), txn.OrderID, body, true,
	)
	if errors.Is(err, quickpay.ErrCallbackInFlight) {
		h.stats.InFlight.Inc()
		log.Info("QuickPay callback already being processed", zap.String("event_id", txn.EventID()))
		http.Error(w, "callback in progress", http.StatusConflict)
		return
	}
	if err != nil {
		log.Error("Failed to record callback", zap.Error(err))
		http.Error(w, "failed to record callback", http.StatusInternalServerError)
		return
	}
	if isDuplicate {
		h.stats.Duplicate.Inc()
		log.Info("Duplicate QuickPay callback ignored", zap.String("event_id", txn.EventID()))
		w.WriteHeader(http.StatusOK)
		return
	}

	timer := metrics.StartTimer()
	err = integration.OnCallback(ctx, txn.OrderID, txn)
	h.stats.ObserveDispatch(timer)

	if err != nil {
		h.stats.Failed.Inc()
		log.Error("Callback hook failed", zap.Error(err), zap.Duration("duration", timer.Duration()))
		if markErr := h.repo.MarkCallbackFailed(ctx, callbackID, err.Error()); markErr != nil {
			log.Error("Failed to mark callback failed", zap.Error(markErr))
		}
		http.Error(w, "failed to process callback", http.StatusInternalServerError)
		return
	}

	if err := h.repo.MarkCallbackProcessed(ctx, callbackID); err != nil {
		log.Error("Failed to mark callback processed", zap.Error(err))
	}
	h.stats.Processed.Inc()

	log.Info("QuickPay callback processed",
		zap.Bool("success", txn.Success()),
		zap.Duration("duration", timer.Duration()),
	)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) reject(w http.ResponseWriter, msg string, status int) {
	h.stats.Rejected.Inc()
	http.Error(w, msg, status)
}
