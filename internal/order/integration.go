package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"quickpay-bridge/internal/logger"
	"quickpay-bridge/internal/quickpay"

	"go.uber.org/zap"
)

// Integration connects the order store to QuickPay. It is the hooks.Integration
// the shop registers for its own checkout.
type Integration struct {
	repo            Repository
	store           quickpay.TransactionStore
	defaults        quickpay.Settings
	commentTemplate string
	clientOpts      []quickpay.Option
}

type IntegrationOption func(*Integration)

// WithCommentTemplate overrides the payment-received comment template.
func WithCommentTemplate(tmpl string) IntegrationOption {
	return func(i *Integration) { i.commentTemplate = tmpl }
}

func WithClientOptions(opts ...quickpay.Option) IntegrationOption {
	return func(i *Integration) { i.clientOpts = append(i.clientOpts, opts...) }
}

// NewIntegration builds the shop integration. defaults is used for any order
// whose payment method has no QuickPay settings of its own.
func NewIntegration(repo Repository, store quickpay.TransactionStore, defaults quickpay.Settings, opts ...IntegrationOption) *Integration {
	i := &Integration{
		repo:     repo,
		store:    store,
		defaults: defaults,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// CreateClient returns a client configured from the order's payment method.
// It fails with ErrOrderNotFound for unknown orders and with an error wrapping
// quickpay.ErrConfigurationMissing when no credentials are available.
func (i *Integration) CreateClient(ctx context.Context, orderNumber string) (*quickpay.Client, error) {
	ctx = logger.WithOrderNumber(ctx, orderNumber)
	log := logger.FromCtx(ctx)

	o, err := i.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		log.Warn("Failed to load order for QuickPay client", zap.Error(err))
		return nil, err
	}

	settings, err := i.settingsFor(ctx, o)
	if err != nil {
		return nil, err
	}

	client, err := quickpay.NewClient(settings, i.clientOpts...)
	if err != nil {
		log.Error("No usable QuickPay configuration", zap.Error(err))
		return nil, fmt.Errorf("order %s: %w", orderNumber, err)
	}
	return client, nil
}

// settingsFor merges the order's payment-method settings over the defaults.
func (i *Integration) settingsFor(ctx context.Context, o *Order) (quickpay.Settings, error) {
	var settings quickpay.Settings
	if o.PaymentMethod != "" {
		s, err := i.repo.GetPaymentMethodSettings(ctx, o.PaymentMethod)
		switch {
		case err == nil:
			settings = *s
		case errors.Is(err, ErrPaymentNotFound):
			logger.FromCtx(ctx).Debug("Payment method has no QuickPay settings, using defaults",
				zap.String("payment_method", o.PaymentMethod),
			)
		default:
			logger.FromCtx(ctx).Error("Failed to load payment method settings", zap.Error(err))
			return quickpay.Settings{}, err
		}
	}
	return settings.WithDefaults(i.defaults), nil
}

// OnCallback records a successful authorization on the order. Unsuccessful
// transactions are ignored.
func (i *Integration) OnCallback(ctx context.Context, orderNumber string, txn quickpay.Transaction) error {
	ctx = logger.WithOrderNumber(ctx, orderNumber)
	log := logger.FromCtx(ctx).With(zap.Int64("payment_id", txn.ID))

	if !txn.Success() {
		log.Info("QuickPay transaction not successful, order left untouched",
			zap.Bool("accepted", txn.Accepted),
			zap.String("state", txn.State),
		)
		return nil
	}

	o, err := i.repo.GetByNumber(ctx, orderNumber)
	if err != nil {
		log.Error("Failed to load order", zap.Error(err))
		return err
	}

	settings, err := i.settingsFor(ctx, o)
	if err != nil {
		return err
	}

	txnID, err := i.store.Store(ctx, txn)
	if err != nil {
		log.Error("Failed to store QuickPay transaction", zap.Error(err))
		return fmt.Errorf("store transaction: %w", err)
	}

	payment := &PaymentData{
		Type:  PaymentTypeQuickpayReady,
		TxnID: txnID,
		Txn:   txn,
	}
	public := settings.Public()
	o.Data.Payment = payment
	o.Data.QuickpayTxnID = txnID
	o.Data.QuickpaySettings = &public
	o.Status = nextStatus(o.Status, txn)

	data, err := json.Marshal(payment)
	if err != nil {
		return fmt.Errorf("encode payment data: %w", err)
	}

	// Amounts are tracked on the QuickPay transaction itself.
	entry := &PaymentEntry{
		OrderNumber: orderNumber,
		Method:      PaymentMethodQuickpay,
		Amount:      0,
		Data:        data,
		Comment:     quickpay.RenderComment(i.commentTemplate, txn),
	}
	if err := i.repo.RecordPayment(ctx, o, entry); err != nil {
		log.Error("Failed to record payment on order", zap.Error(err))
		return err
	}

	log.Info("QuickPay payment recorded",
		zap.String("txn_id", txnID),
		zap.String("status", string(o.Status)),
	)
	return nil
}

// nextStatus moves an order out of payment_pending once authorized. An
// autocaptured payment completes it.
func nextStatus(current OrderStatus, txn quickpay.Transaction) OrderStatus {
	if current != StatusPaymentPending {
		return current
	}
	if txn.Captured() {
		return StatusCompleted
	}
	return StatusPending
}
