package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Minter issues a payout of amount sats. Failures are reported, never retried here.
// Repeated calls with the same key must mint at most once.
type Minter interface {
	Mint(ctx context.Context, key string, amount int64, memo string) error
}

type mintRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Amount         int64  `json:"amount"`
	Memo           string `json:"memo,omitempty"`
}

// Client posts mint requests to the wallet service over HTTP.
type Client struct {
	url     string
	timeout time.Duration
}

func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{url: url, timeout: timeout}
}

func (c *Client) Mint(ctx context.Context, key string, amount int64, memo string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("mint amount must be positive, got %d", amount)
	}
	if key == "" {
		return errors.New("mint idempotency key is required")
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.url)
	agent.Set("Idempotency-Key", key)
	agent.JSON(mintRequest{IdempotencyKey: key, Amount: amount, Memo: memo})
	agent.Timeout(timeout)

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("mint request: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("mint rejected: status %d: %s", code, body)
	}
	return nil
}
