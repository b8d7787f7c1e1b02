// Package hooks defines the extension points a payment-initiating module
// implements to use QuickPay, and the registry they are wired into.
package hooks

import (
	"context"
	"errors"

	"quickpay-bridge/internal/quickpay"
)

var (
	ErrIntegrationNotFound  = errors.New("quickpay integration not registered")
	ErrDuplicateIntegration = errors.New("quickpay integration already registered")
	ErrInvalidName          = errors.New("integration name must not be empty")

	// ErrConfigurationMissing is what a Factory returns (wrapped) when it has
	// no usable QuickPay settings for an order.
	ErrConfigurationMissing = quickpay.ErrConfigurationMissing
)

// Factory supplies a client configured for the payment method of the given
// order. Implementations should return the same configuration for the same
// order as long as their settings do not change.
type Factory interface {
	CreateClient(ctx context.Context, orderNumber string) (*quickpay.Client, error)
}

// Callback reacts to QuickPay reporting a transaction's authentication
// result. A transaction whose Success() is false must leave the order
// untouched and return nil.
type Callback interface {
	OnCallback(ctx context.Context, orderNumber string, txn quickpay.Transaction) error
}

type Integration interface {
	Factory
	Callback
}

// Funcs adapts two plain functions to Integration.
type Funcs struct {
	CreateClientFunc func(ctx context.Context, orderNumber string) (*quickpay.Client, error)
	OnCallbackFunc   func(ctx context.Context, orderNumber string, txn quickpay.Transaction) error
}

func (f Funcs) CreateClient(ctx context.Context, orderNumber string) (*quickpay.Client, error) {
	if f.CreateClientFunc == nil {
		return nil, ErrConfigurationMissing
	}
	return f.CreateClientFunc(ctx, orderNumber)
}

func (f Funcs) OnCallback(ctx context.Context, orderNumber string, txn quickpay.Transaction) error {
	if f.OnCallbackFunc == nil || !txn.Success() {
		return nil
	}
	return f.OnCallbackFunc(ctx, orderNumber, txn)
}
