package quickpay

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultAuthorizedComment is used for the payment-received comment when the
// integration does not provide its own template.
const DefaultAuthorizedComment = "QuickPay transaction {{txn_id}} authorized: {{amount}} {{currency}} ({{brand}} ending in {{last4}})"

type CommentVars map[string]string

// CommentVarsFor exposes the transaction fields a comment template can use.
func CommentVarsFor(txn Transaction) CommentVars {
	vars := CommentVars{
		"txn_id":   fmt.Sprintf("%d", txn.ID),
		"order_id": txn.OrderID,
		"amount":   FormatAmount(txn.AuthorizedAmount()),
		"currency": txn.Currency,
		"brand":    txn.Metadata.Brand,
		"last4":    txn.Metadata.Last4,
		"state":    txn.State,
	}
	if vars["brand"] == "" {
		vars["brand"] = "card"
	}
	if vars["last4"] == "" {
		vars["last4"] = "****"
	}
	return vars
}

// InjectVariables replaces {{key}} placeholders in template in a single pass,
// so placeholders inside substituted values stay literal. Unknown placeholders
// are left as they are.
func InjectVariables(template string, vars CommentVars) string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, "{{"+key+"}}", vars[key])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RenderComment fills template for txn. An empty template selects
// DefaultAuthorizedComment.
func RenderComment(template string, txn Transaction) string {
	if template == "" {
		template = DefaultAuthorizedComment
	}
	return InjectVariables(template, CommentVarsFor(txn))
}

// FormatAmount renders minor units as a decimal amount, e.g. 12550 -> "125.50".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
