package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
)

const (
	defaultBaseURL = "https://api.chapa.co/v1"
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20

	StatusSuccess = "success"
)

// ErrMissingSecret is returned by every call when no secret key is configured.
var ErrMissingSecret = errors.New("chapa secret key is not configured")

// APIError is a non-2xx response from Chapa.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chapa api error (%d): %s", e.StatusCode, e.Message)
}

// UpstreamStatus exposes the Chapa HTTP status to error logging.
func (e *APIError) UpstreamStatus() int { return e.StatusCode }

// IsUnavailable reports whether err is an outage (transport or 5xx) rather than a rejection.
func IsUnavailable(err error) bool {
	if err == nil || errors.Is(err, ErrMissingSecret) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// Client wraps the Chapa REST API with bearer auth and request logging.
type Client struct {
	httpClient *http.Client
	secretKey  string
	baseURL    string
	logger     *logger.Logger
}

func NewClient(cfg config.ChapaConfig, logg *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		secretKey:  strings.TrimSpace(cfg.SecretKey),
		baseURL:    baseURL,
		logger:     logg,
	}
}

// Configured reports whether a secret key is present.
func (c *Client) Configured() bool {
	return c != nil && c.secretKey != ""
}

// Initialize opens a hosted checkout for params.TxRef.
func (c *Client) Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	c.log(ctx, "request", "initialize", map[string]any{"tx_ref": params.TxRef, "amount": params.Amount.String(), "currency": params.Currency})

	var env envelope[struct {
		CheckoutURL string `json:"checkout_url"`
	}]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", params.toRequest(), &env); err != nil {
		c.log(ctx, "error", "initialize", map[string]any{"tx_ref": params.TxRef, "error": err.Error()})
		return nil, err
	}
	if env.Data.CheckoutURL == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "initialize response missing checkout_url"}
	}

	c.log(ctx, "response", "initialize", map[string]any{"tx_ref": params.TxRef})
	return &InitializeResult{CheckoutURL: env.Data.CheckoutURL}, nil
}

// Verify fetches Chapa's own view of a transaction.
func (c *Client) Verify(ctx context.Context, txRef string) (*Transaction, error) {
	txRef = strings.TrimSpace(txRef)
	if txRef == "" {
		return nil, errors.New("tx_ref is required")
	}
	c.log(ctx, "request", "verify", map[string]any{"tx_ref": txRef})

	var env envelope[Transaction]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(txRef), nil, &env); err != nil {
		c.log(ctx, "error", "verify", map[string]any{"tx_ref": txRef, "error": err.Error()})
		return nil, err
	}

	tx := env.Data
	if tx.TxRef == "" {
		tx.TxRef = txRef
	}
	c.log(ctx, "response", "verify", map[string]any{"tx_ref": txRef, "status": tx.Status, "reference": tx.Reference})
	return &tx, nil
}

type envelope[T any] struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    T               `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if !c.Configured() {
		return ErrMissingSecret
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode chapa request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build chapa request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chapa request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read chapa response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode chapa response: %w", err)
	}
	return nil
}

// errorMessage flattens Chapa's message field, which is a string or a field->errors map.
func errorMessage(raw []byte) string {
	var body struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Message) == 0 {
		return strings.TrimSpace(string(raw))
	}
	var text string
	if err := json.Unmarshal(body.Message, &text); err == nil {
		return text
	}
	return string(body.Message)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = v
	}
	ctx = c.logger.WithFields(ctx, logFields)
	if phase == "error" {
		c.logger.Warn(ctx, "chapa."+op+".failed")
		return
	}
	c.logger.Debug(ctx, "chapa."+op)
}
