package quickpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderComment(t *testing.T) {
	txn := Transaction{
		ID:       998,
		OrderID:  "1042",
		Currency: "DKK",
		Metadata: CardMetadata{Brand: "visa", Last4: "4242"},
		Operations: []Operation{
			{ID: 1, Type: OperationAuthorize, Amount: 12550, QPStatusCode: StatusApproved},
		},
	}

	t.Run("DefaultTemplate", func(t *testing.T) {
		got := RenderComment("", txn)
		assert.Equal(t, "QuickPay transaction 998 authorized: 125.50 DKK (visa ending in 4242)", got)
	})

	t.Run("CustomTemplate", func(t *testing.T) {
		got := RenderComment("Order {{order_id}} paid via {{brand}}", txn)
		assert.Equal(t, "Order 1042 paid via visa", got)
	})

	t.Run("MissingCardMetadata", func(t *testing.T) {
		bare := txn
		bare.Metadata = CardMetadata{}
		got := RenderComment("{{brand}}/{{last4}}", bare)
		assert.Equal(t, "card/****", got)
	})
}

func TestInjectVariables(t *testing.T) {
	t.Run("ReplacesPlaceholders", func(t *testing.T) {
		got := InjectVariables("Pay {{amount}} {{currency}}", CommentVars{"amount": "10.00", "currency": "EUR"})
		assert.Equal(t, "Pay 10.00 EUR", got)
	})

	t.Run("LeavesUnknownPlaceholders", func(t *testing.T) {
		got := InjectVariables("Pay {{amount}}", CommentVars{})
		assert.Contains(t, got, "{{amount}}")
	})

	t.Run("ValuesAreNotExpandedAgain", func(t *testing.T) {
		vars := CommentVars{"order_id": "{{txn_id}}", "txn_id": "7001", "amount": "{{order_id}}"}
		for n := 0; n < 50; n++ {
			got := InjectVariables("order {{order_id}} txn {{txn_id}} amount {{amount}}", vars)
			require.Equal(t, "order {{txn_id}} txn 7001 amount {{order_id}}", got)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "1.05", FormatAmount(105))
	assert.Equal(t, "-2.50", FormatAmount(-250))
}
