package quickpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status code QuickPay puts on an approved operation.
const StatusApproved = "20000"

// Operation types as reported in Transaction.Operations.
const (
	OperationAuthorize = "authorize"
	OperationCapture   = "capture"
	OperationRefund    = "refund"
	OperationCancel    = "cancel"
)

type Operation struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	Pending      bool      `json:"pending"`
	QPStatusCode string    `json:"qp_status_code"`
	QPStatusMsg  string    `json:"qp_status_msg"`
	AQStatusCode string    `json:"aq_status_code"`
	AQStatusMsg  string    `json:"aq_status_msg"`
	CreatedAt    time.Time `json:"created_at"`
}

func (o Operation) Approved() bool {
	return o.QPStatusCode == StatusApproved
}

type CardMetadata struct {
	Type     string `json:"type"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	Country  string `json:"country"`
	Is3DS    bool   `json:"is_3d_secure"`
	Fraud    bool   `json:"fraud_suspected"`
}

// Transaction is the gateway's view of a payment, as delivered in callbacks
// or returned by GetPayment. It has no behavior beyond inspecting itself;
// persisting it is the job of a TransactionStore.
type Transaction struct {
	ID         int64             `json:"id"`
	MerchantID int64             `json:"merchant_id"`
	OrderID    string            `json:"order_id"`
	Accepted   bool              `json:"accepted"`
	Type       string            `json:"type"`
	State      string            `json:"state"`
	Currency   string            `json:"currency"`
	TestMode   bool              `json:"test_mode"`
	Variables  map[string]string `json:"variables,omitempty"`
	Metadata   CardMetadata      `json:"metadata"`
	Operations []Operation       `json:"operations"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// LatestOperation returns the most recent operation, if any.
func (t Transaction) LatestOperation() (Operation, bool) {
	if len(t.Operations) == 0 {
		return Operation{}, false
	}
	return t.Operations[len(t.Operations)-1], true
}

// Success reports whether the gateway accepted the payment and the last
// operation on it went through.
func (t Transaction) Success() bool {
	if !t.Accepted {
		return false
	}
	op, ok := t.LatestOperation()
	if !ok {
		return true
	}
	return op.Approved()
}

// AuthorizedAmount sums approved authorize operations, in minor units.
func (t Transaction) AuthorizedAmount() int64 {
	var total int64
	for _, op := range t.Operations {
		if op.Type == OperationAuthorize && op.Approved() {
			total += op.Amount
		}
	}
	return total
}

// Captured reports whether an approved capture exists, which is the case for
// autocaptured payments.
func (t Transaction) Captured() bool {
	for _, op := range t.Operations {
		if op.Type == OperationCapture && op.Approved() {
			return true
		}
	}
	return false
}

// EventID identifies one callback delivery: the same payment is reported
// again for every new operation on it.
func (t Transaction) EventID() string {
	op, ok := t.LatestOperation()
	if !ok {
		return fmt.Sprintf("%d", t.ID)
	}
	return fmt.Sprintf("%d:%d", t.ID, op.ID)
}

// EventType is the latest operation type, or "payment" without operations.
func (t Transaction) EventType() string {
	if op, ok := t.LatestOperation(); ok {
		return op.Type
	}
	return "payment"
}

// ParseTransaction decodes a callback body.
func ParseTransaction(body []byte) (Transaction, error) {
	var txn Transaction
	if err := json.Unmarshal(body, &txn); err != nil {
		return Transaction{}, fmt.Errorf("decode quickpay transaction: %w", err)
	}
	if txn.OrderID == "" {
		return Transaction{}, errors.New("quickpay transaction has no order_id")
	}
	return txn, nil
}

// TransactionStore persists a transaction and returns the identifier it was
// stored under.
type TransactionStore interface {
	Store(ctx context.Context, txn Transaction) (string, error)
}
