package order

import (
	"context"

	"quickpay-bridge/internal/quickpay"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) Save(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) EnterPayment(ctx context.Context, entry *PaymentEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRepository) RecordPayment(ctx context.Context, o *Order, entry *PaymentEntry) error {
	args := m.Called(ctx, o, entry)
	return args.Error(0)
}

func (m *MockRepository) ListPayments(ctx context.Context, number string) ([]PaymentEntry, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PaymentEntry), args.Error(1)
}

func (m *MockRepository) GetPaymentMethodSettings(ctx context.Context, method string) (*quickpay.Settings, error) {
	args := m.Called(ctx, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quickpay.Settings), args.Error(1)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Store(ctx context.Context, txn quickpay.Transaction) (string, error) {
	args := m.Called(ctx, txn)
	return args.String(0), args.Error(1)
}
