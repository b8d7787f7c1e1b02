package order

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonArg matches a JSON column argument by decoding it into Data.
type jsonArg struct {
	check func(Data) bool
}

func (a jsonArg) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		return false
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return false
	}
	return a.check(d)
}

var orderColumns = []string{
	"id", "number", "status", "payment_method", "total", "currency", "data", "created_at", "updated_at",
}

func TestRepository_GetByNumber(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows(orderColumns).AddRow(
			7, "1042", "payment_pending", "quickpay_card", 12550, "DKK",
			[]byte(`{"quickpay_txn_id":"12"}`), now, now,
		)
		mock.ExpectQuery(`SELECT .* FROM orders WHERE number = \$1`).
			WithArgs("1042").
			WillReturnRows(rows)

		o, err := repo.GetByNumber(context.Background(), "1042")
		require.NoError(t, err)
		assert.Equal(t, uint(7), o.ID)
		assert.Equal(t, StatusPaymentPending, o.Status)
		assert.Equal(t, "12", o.Data.QuickpayTxnID)
		assert.Nil(t, o.Data.Payment)
	})

	t.Run("NullData", func(t *testing.T) {
		rows := sqlmock.NewRows(orderColumns).AddRow(
			7, "1042", "pending", "", 0, "DKK", nil, now, now,
		)
		mock.ExpectQuery(`SELECT .* FROM orders`).
			WithArgs("1042").
			WillReturnRows(rows)

		o, err := repo.GetByNumber(context.Background(), "1042")
		require.NoError(t, err)
		assert.Equal(t, Data{}, o.Data)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .* FROM orders`).
			WithArgs("404").
			WillReturnError(sql.ErrNoRows)

		o, err := repo.GetByNumber(context.Background(), "404")
		assert.Nil(t, o)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("EmptyNumber", func(t *testing.T) {
		_, err := repo.GetByNumber(context.Background(), "")
		assert.ErrorIs(t, err, ErrInvalidNumber)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	o := &Order{
		ID:     7,
		Number: "1042",
		Status: StatusPending,
		Data: Data{
			QuickpayTxnID: "txn_998",
			Payment:       &PaymentData{Type: PaymentTypeQuickpayReady, TxnID: "txn_998"},
		},
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders SET status = \$1, data = orders.data \|\| \$2::jsonb`).
			WithArgs("pending", jsonArg{check: func(d Data) bool {
				return d.QuickpayTxnID == "txn_998" && d.Payment != nil && d.Payment.Type == PaymentTypeQuickpayReady
			}}, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.Save(context.Background(), o))
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Save(context.Background(), o), ErrOrderNotFound)
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WillReturnError(errors.New("db error"))

		assert.Error(t, repo.Save(context.Background(), o))
	})

	t.Run("RowsAffectedError", func(t *testing.T) {
		mock.ExpectExec(`UPDATE orders`).
			WillReturnResult(sqlmock.NewErrorResult(errors.New("rows unavailable")))

		err := repo.Save(context.Background(), o)
		assert.ErrorContains(t, err, "rows unavailable")
		assert.NotErrorIs(t, err, ErrOrderNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestData_KeepsUnknownKeys(t *testing.T) {
	var d Data
	require.NoError(t, d.Scan([]byte(`{"shipping":{"carrier":"gls"},"gift":true,"quickpay_txn_id":"12"}`)))

	assert.Equal(t, "12", d.QuickpayTxnID)
	assert.Len(t, d.Extra, 2)

	d.QuickpayTxnID = "txn_998"
	d.Payment = &PaymentData{Type: PaymentTypeQuickpayReady, TxnID: "txn_998"}

	v, err := d.Value()
	require.NoError(t, err)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(v.([]byte), &out))
	assert.JSONEq(t, `{"carrier":"gls"}`, string(out["shipping"]))
	assert.JSONEq(t, `true`, string(out["gift"]))
	assert.JSONEq(t, `"txn_998"`, string(out["quickpay_txn_id"]))
	assert.Contains(t, out, "payment")
	assert.NotContains(t, out, "quickpay_settings")

	t.Run("BadTypedKey", func(t *testing.T) {
		var bad Data
		assert.Error(t, bad.Scan([]byte(`{"quickpay_txn_id":42}`)))
	})

	t.Run("EmptyObject", func(t *testing.T) {
		v, err := Data{}.Value()
		require.NoError(t, err)
		assert.Equal(t, []byte(`{}`), v)
	})
}

func TestRepository_RecordPayment(t *testing.T) {
	o := &Order{
		ID:     7,
		Number: "1042",
		Status: StatusPending,
		Data: Data{
			QuickpayTxnID: "txn_998",
			Extra:         map[string]json.RawMessage{"shipping": json.RawMessage(`"express"`)},
		},
	}
	entry := func() *PaymentEntry {
		return &PaymentEntry{OrderNumber: "1042", Method: PaymentMethodQuickpay, Comment: "authorized"}
	}

	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE orders SET status = \$1`).
			WithArgs("pending", jsonArg{check: func(d Data) bool {
				return d.QuickpayTxnID == "txn_998" && string(d.Extra["shipping"]) == `"express"`
			}}, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO order_payments`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "received_at"}).AddRow(5, time.Now()))
		mock.ExpectCommit()

		e := entry()
		require.NoError(t, NewRepository(db).RecordPayment(context.Background(), o, e))
		assert.Equal(t, uint(5), e.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EnterPaymentFails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO order_payments`).WillReturnError(errors.New("db error"))
		mock.ExpectRollback()

		err = NewRepository(db).RecordPayment(context.Background(), o, entry())
		assert.ErrorContains(t, err, "failed to enter payment")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("OrderMissing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE orders`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = NewRepository(db).RecordPayment(context.Background(), o, entry())
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFails", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		assert.Error(t, NewRepository(db).RecordPayment(context.Background(), o, entry()))
	})
}

func TestRepository_EnterPayment(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	t.Run("Success", func(t *testing.T) {
		entry := &PaymentEntry{
			OrderNumber: "1042",
			Method:      PaymentMethodQuickpay,
			Data:        json.RawMessage(`{"type":"quickpay_txn_ready"}`),
			Comment:     "authorized",
		}

		mock.ExpectQuery(`INSERT INTO order_payments`).
			WithArgs("1042", "quickpay", int64(0), 0, []byte(`{"type":"quickpay_txn_ready"}`), "authorized").
			WillReturnRows(sqlmock.NewRows([]string{"id", "received_at"}).AddRow(3, now))

		require.NoError(t, repo.EnterPayment(context.Background(), entry))
		assert.Equal(t, uint(3), entry.ID)
		assert.Equal(t, now, entry.ReceivedAt)
	})

	t.Run("EmptyData", func(t *testing.T) {
		entry := &PaymentEntry{OrderNumber: "1042", Method: PaymentMethodQuickpay}

		mock.ExpectQuery(`INSERT INTO order_payments`).
			WithArgs("1042", "quickpay", int64(0), 0, []byte(`{}`), "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "received_at"}).AddRow(4, now))

		require.NoError(t, repo.EnterPayment(context.Background(), entry))
	})

	t.Run("DBError", func(t *testing.T) {
		mock.ExpectQuery(`INSERT INTO order_payments`).
			WillReturnError(errors.New("db error"))

		assert.Error(t, repo.EnterPayment(context.Background(), &PaymentEntry{OrderNumber: "1042"}))
	})
}

func TestRepository_ListPayments(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "order_number", "method", "amount", "user_id", "data", "comment", "received_at"}).
		AddRow(1, "1042", "quickpay", 0, 0, []byte(`{}`), "first", now).
		AddRow(2, "1042", "quickpay", 0, 0, []byte(`{}`), "second", now)

	mock.ExpectQuery(`SELECT .* FROM order_payments WHERE order_number = \$1`).
		WithArgs("1042").
		WillReturnRows(rows)

	entries, err := repo.ListPayments(context.Background(), "1042")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[1].Comment)
}

func TestRepository_GetPaymentMethodSettings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(`SELECT settings FROM payment_methods WHERE id = \$1`).
			WithArgs("quickpay_card").
			WillReturnRows(sqlmock.NewRows([]string{"settings"}).
				AddRow([]byte(`{"merchant_id":"1","api_key":"k","private_key":"p","currency":"EUR","autocapture":true}`)))

		s, err := repo.GetPaymentMethodSettings(context.Background(), "quickpay_card")
		require.NoError(t, err)
		assert.Equal(t, "EUR", s.Currency)
		assert.True(t, s.Autocapture)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(`SELECT settings FROM payment_methods`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetPaymentMethodSettings(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		mock.ExpectQuery(`SELECT settings FROM payment_methods`).
			WithArgs("broken").
			WillReturnRows(sqlmock.NewRows([]string{"settings"}).AddRow([]byte(`{`)))

		_, err := repo.GetPaymentMethodSettings(context.Background(), "broken")
		assert.Error(t, err)
	})
}
