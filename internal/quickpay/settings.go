package quickpay

import (
	"errors"
	"strings"
)

var (
	ErrConfigurationMissing = errors.New("quickpay configuration missing")
	ErrInvalidChecksum      = errors.New("invalid quickpay checksum")
	ErrPaymentNotFound      = errors.New("quickpay payment not found")
	ErrCallbackInFlight     = errors.New("quickpay callback already being processed")
)

// Settings holds everything needed to talk to QuickPay on behalf of one
// merchant agreement.
type Settings struct {
	MerchantID     string   `json:"merchant_id"`
	AgreementID    string   `json:"agreement_id"`
	APIKey         string   `json:"api_key"`
	PrivateKey     string   `json:"private_key"`
	Currency       string   `json:"currency"`
	Language       string   `json:"language"`
	Autocapture    bool     `json:"autocapture"`
	TestMode       bool     `json:"test_mode"`
	PaymentMethods []string `json:"payment_methods,omitempty"`
	ContinueURL    string   `json:"continue_url,omitempty"`
	CancelURL      string   `json:"cancel_url,omitempty"`
	CallbackURL    string   `json:"callback_url,omitempty"`
}

// Validate reports ErrConfigurationMissing when the credentials needed for
// API calls and callback verification are absent.
func (s Settings) Validate() error {
	var missing []string
	if strings.TrimSpace(s.APIKey) == "" {
		missing = append(missing, "api_key")
	}
	if strings.TrimSpace(s.PrivateKey) == "" {
		missing = append(missing, "private_key")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// WithDefaults fills empty fields from def. Credentials are never mixed:
// when s carries an API key, def's keys are ignored.
func (s Settings) WithDefaults(def Settings) Settings {
	if s.APIKey == "" && s.PrivateKey == "" {
		s.MerchantID = def.MerchantID
		s.AgreementID = def.AgreementID
		s.APIKey = def.APIKey
		s.PrivateKey = def.PrivateKey
	}
	if s.Currency == "" {
		s.Currency = def.Currency
	}
	if s.Language == "" {
		s.Language = def.Language
	}
	if len(s.PaymentMethods) == 0 {
		s.PaymentMethods = def.PaymentMethods
	}
	if s.ContinueURL == "" {
		s.ContinueURL = def.ContinueURL
	}
	if s.CancelURL == "" {
		s.CancelURL = def.CancelURL
	}
	if s.CallbackURL == "" {
		s.CallbackURL = def.CallbackURL
	}
	return s
}

// Public returns a copy without the API key and private key, safe to keep
// next to order data.
func (s Settings) Public() Settings {
	s.APIKey = ""
	s.PrivateKey = ""
	if s.PaymentMethods != nil {
		s.PaymentMethods = append([]string(nil), s.PaymentMethods...)
	}
	return s
}

type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return ErrConfigurationMissing.Error() + ": " + strings.Join(e.Missing, ", ")
}

func (e *ConfigError) Unwrap() error { return ErrConfigurationMissing }
