package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"quickpay-bridge/internal/quickpay"
)

type OrderStatus string

const (
	StatusPaymentPending OrderStatus = "payment_pending"
	StatusPending        OrderStatus = "pending"
	StatusCompleted      OrderStatus = "completed"
	StatusCanceled       OrderStatus = "canceled"
)

// PaymentTypeQuickpayReady tags payment data attached after a successful
// QuickPay authorization.
const PaymentTypeQuickpayReady = "quickpay_txn_ready"

const PaymentMethodQuickpay = "quickpay"

type Order struct {
	ID            uint
	Number        string
	Status        OrderStatus
	PaymentMethod string
	Total         int64
	Currency      string
	Data          Data
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const (
	dataKeyTxnID    = "quickpay_txn_id"
	dataKeyPayment  = "payment"
	dataKeySettings = "quickpay_settings"
)

// Data is the free-form part of an order, stored as JSONB. Only the QuickPay
// keys are typed; everything else the shop keeps there lives in Extra and is
// written back unchanged.
type Data struct {
	QuickpayTxnID    string
	Payment          *PaymentData
	QuickpaySettings *quickpay.Settings
	Extra            map[string]json.RawMessage
}

type PaymentData struct {
	Type  string               `json:"type"`
	TxnID string               `json:"txn_id"`
	Txn   quickpay.Transaction `json:"txn"`
}

func (d Data) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+3)
	for k, v := range d.Extra {
		out[k] = v
	}
	if d.QuickpayTxnID != "" {
		out[dataKeyTxnID] = d.QuickpayTxnID
	}
	if d.Payment != nil {
		out[dataKeyPayment] = d.Payment
	}
	if d.QuickpaySettings != nil {
		out[dataKeySettings] = d.QuickpaySettings
	}
	return json.Marshal(out)
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*d = Data{}
	typed := []struct {
		key string
		dst interface{}
	}{
		{dataKeyTxnID, &d.QuickpayTxnID},
		{dataKeyPayment, &d.Payment},
		{dataKeySettings, &d.QuickpaySettings},
	}
	for _, f := range typed {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("order data %s: %w", f.key, err)
		}
		delete(raw, f.key)
	}

	if len(raw) > 0 {
		d.Extra = raw
	}
	return nil
}

func (d Data) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *Data) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Data{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("order data: unsupported column type")
	}
	if len(raw) == 0 {
		*d = Data{}
		return nil
	}
	return json.Unmarshal(raw, d)
}

// PaymentEntry records money or an authorization received against an order.
type PaymentEntry struct {
	ID          uint            `json:"id"`
	OrderNumber string          `json:"order_number"`
	Method      string          `json:"method"`
	Amount      int64           `json:"amount"`
	UserID      uint            `json:"user_id"`
	Data        json.RawMessage `json:"data,omitempty"`
	Comment     string          `json:"comment,omitempty"`
	ReceivedAt  time.Time       `json:"received_at"`
}
