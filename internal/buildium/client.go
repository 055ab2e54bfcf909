package buildium

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rentfolio/propsync/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("buildium: API error: %d %s. %s", e.StatusCode, e.Status, e.Body)
	}
	return fmt.Sprintf("buildium: API error: %d %s", e.StatusCode, e.Status)
}

// ErrInvalidResponse marks a 2xx response whose body did not match the
// expected shape. Retrying cannot fix it.
var ErrInvalidResponse = errors.New("buildium: invalid response body")

// Config holds client construction parameters.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
}

// Client talks to the Buildium Open API. Authentication is the
// client-id/client-secret header pair; any non-2xx response or network
// failure is retried with linear backoff inside each call.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	maxAttempts  int
	baseDelay    time.Duration
	logger       *logging.Logger
}

func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		maxAttempts:  cfg.MaxAttempts,
		baseDelay:    cfg.BaseDelay,
		logger:       logger,
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("buildium: marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = c.doOnce(ctx, method, endpoint, payload, out)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == c.maxAttempts {
			return lastErr
		}

		delay := c.baseDelay * time.Duration(attempt)
		c.logger.Warn("buildium request failed, retrying",
			"method", method, "endpoint", endpoint, "attempt", attempt, "delay", delay, "error", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("buildium: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-buildium-client-id", c.clientID)
	req.Header.Set("x-buildium-client-secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("buildium: %s %s: %w", method, endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyText, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(bodyText)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, endpoint, err)
	}
	return nil
}

// retryable treats every failure as retryable except a response-shape
// violation: the remote already answered 2xx, so re-asking cannot help.
func retryable(err error) bool {
	return !errors.Is(err, ErrInvalidResponse)
}

func (c *Client) GetProperty(ctx context.Context, id int64) (*Property, error) {
	var out Property
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/rentals/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOwner(ctx context.Context, id int64) (*Owner, error) {
	var out Owner
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/rentals/owners/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLease(ctx context.Context, id int64) (*Lease, error) {
	var out Lease
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/leases/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLeaseTransaction(ctx context.Context, leaseID, id int64) (*LeaseTransaction, error) {
	var out LeaseTransaction
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/leases/%d/transactions/%d", leaseID, id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetGLAccount(ctx context.Context, id int64) (*GLAccount, error) {
	var out GLAccount
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/glaccounts/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetGeneralLedgerTransaction(ctx context.Context, id int64) (*BankTransaction, error) {
	var out BankTransaction
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/generalledger/transactions/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBankAccount(ctx context.Context, id int64) (*BankAccount, error) {
	var out BankAccount
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/bankaccounts/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBankDeposit(ctx context.Context, bankAccountID, depositID int64) (*BankTransaction, error) {
	var out BankTransaction
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/bankaccounts/%d/deposits/%d", bankAccountID, depositID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetBankTransaction(ctx context.Context, bankAccountID, transactionID int64) (*BankTransaction, error) {
	var out BankTransaction
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/bankaccounts/%d/transactions/%d", bankAccountID, transactionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateLeasePayment submits a payment against a lease ledger.
func (c *Client) CreateLeasePayment(ctx context.Context, leaseID int64, req LeasePaymentRequest) (*LeasePayment, error) {
	var out LeasePayment
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/leases/%d/payments", leaseID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
