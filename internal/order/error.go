package order

import "errors"

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidNumber   = errors.New("order number must not be empty")
	ErrPaymentNotFound = errors.New("payment method settings not found")
)
