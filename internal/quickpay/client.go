package quickpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quickpay-bridge/internal/logger"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.quickpay.net"
	apiVersion     = "v10"

	// ChecksumHeader carries the hex HMAC-SHA256 of a callback body.
	ChecksumHeader = "QuickPay-Checksum-Sha256"
)

// Client talks to the QuickPay REST API with one set of Settings.
type Client struct {
	settings   Settings
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

// NewClient validates settings and returns a configured client.
func NewClient(settings Settings, opts ...Option) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		settings: settings,
		baseURL:  DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Settings returns a copy of the client's configuration.
func (c *Client) Settings() Settings {
	s := c.settings
	s.PaymentMethods = append([]string(nil), c.settings.PaymentMethods...)
	return s
}

type PaymentLink struct {
	URL string `json:"url"`
}

// CreatePayment registers a new payment for an order and returns it.
func (c *Client) CreatePayment(ctx context.Context, orderNumber string) (*Transaction, error) {
	body := map[string]interface{}{
		"order_id": orderNumber,
		"currency": c.settings.Currency,
	}

	var txn Transaction
	if err := c.do(ctx, http.MethodPost, "/payments", body, &txn, http.StatusCreated); err != nil {
		return nil, err
	}
	return &txn, nil
}

// CreatePaymentLink returns the hosted payment window URL for a payment.
func (c *Client) CreatePaymentLink(ctx context.Context, paymentID int64, amount int64, variables map[string]string) (*PaymentLink, error) {
	body := map[string]interface{}{
		"amount":      amount,
		"language":    c.settings.Language,
		"autocapture": c.settings.Autocapture,
	}
	if c.settings.ContinueURL != "" {
		body["continue_url"] = c.settings.ContinueURL
	}
	if c.settings.CancelURL != "" {
		body["cancel_url"] = c.settings.CancelURL
	}
	if c.settings.CallbackURL != "" {
		body["callback_url"] = c.settings.CallbackURL
	}
	if len(c.settings.PaymentMethods) > 0 {
		body["payment_methods"] = strings.Join(c.settings.PaymentMethods, ",")
	}
	if len(variables) > 0 {
		body["variables"] = variables
	}

	var link PaymentLink
	path := fmt.Sprintf("/payments/%d/link", paymentID)
	if err := c.do(ctx, http.MethodPut, path, body, &link, http.StatusOK); err != nil {
		return nil, err
	}
	return &link, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID int64) (*Transaction, error) {
	var txn Transaction
	path := fmt.Sprintf("/payments/%d", paymentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &txn, http.StatusOK); err != nil {
		return nil, err
	}
	return &txn, nil
}

// Capture captures amount (minor units) of an authorized payment.
func (c *Client) Capture(ctx context.Context, paymentID int64, amount int64) (*Transaction, error) {
	var txn Transaction
	path := fmt.Sprintf("/payments/%d/capture", paymentID)
	body := map[string]interface{}{"amount": amount}
	if err := c.do(ctx, http.MethodPost, path, body, &txn, http.StatusAccepted, http.StatusOK); err != nil {
		return nil, err
	}
	return &txn, nil
}

// VerifyChecksum checks a callback body against the checksum QuickPay sent.
func (c *Client) VerifyChecksum(body []byte, checksum string) error {
	if checksum == "" {
		return ErrInvalidChecksum
	}
	expected := Checksum(body, c.settings.PrivateKey)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(checksum))) {
		return ErrInvalidChecksum
	}
	return nil
}

// Checksum computes the callback signature QuickPay uses for body.
func Checksum(body []byte, privateKey string) string {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}, okStatus ...int) error {
	log := logger.FromCtx(ctx).With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("merchant_id", c.settings.MerchantID),
	)

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			log.Error("Failed to marshal quickpay request", zap.Error(err))
			return err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return err
	}
	req.SetBasicAuth("", c.settings.APIKey)
	req.Header.Set("Accept-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("QuickPay request failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return fmt.Errorf("failed to read quickpay response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		log.Warn("QuickPay payment not found")
		return ErrPaymentNotFound
	}
	if !statusIn(resp.StatusCode, okStatus) {
		log.Error("QuickPay returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody),
		)
		return fmt.Errorf("quickpay error (%d): %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		log.Error("Failed decoding QuickPay response", zap.Error(err))
		return err
	}
	return nil
}

func statusIn(code int, allowed []int) bool {
	for _, c := range allowed {
		if code == c {
			return true
		}
	}
	return false
}
