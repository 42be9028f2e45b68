package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	rpcTimeout    = 10 * time.Second
	maxRetries    = 3
	retryInterval = 500 * time.Millisecond
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"payable":false,"stateMutability":"view","type":"function"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"}
]`

// Client wraps Ethereum RPC access with endpoint failover. It implements the
// account-fetching side of the sync pipeline.
type Client struct {
	failover  *failover
	parsedABI abi.ABI
}

// NewClient connects to the given RPC endpoints.
func NewClient(rpcURLs []string) (*Client, error) {
	fo, err := newFailover(rpcURLs)
	if err != nil {
		return nil, err
	}

	parsedABI, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	return &Client{failover: fo, parsedABI: parsedABI}, nil
}

// Close closes all RPC connections.
func (c *Client) Close() {
	c.failover.close()
}

// Healthy reports whether at least one RPC endpoint currently serves.
func (c *Client) Healthy() bool {
	_, _, err := c.failover.get()
	return err == nil
}

// retryWithBackoff executes fn with exponential backoff, failing over to
// another endpoint between attempts.
func (c *Client) retryWithBackoff(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := range maxRetries {
		if attempt > 0 {
			backoff := retryInterval * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, url, err := c.failover.get()
		if err != nil {
			lastErr = err
			continue
		}

		if err := fn(); err != nil {
			lastErr = err
			c.failover.markUnhealthy(url, err)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// HumanBalance converts a raw smallest-unit balance to a decimal string.
func HumanBalance(rawBalance *big.Int, decimals uint8) string {
	if rawBalance == nil || rawBalance.Sign() == 0 {
		return "0"
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	intPart := new(big.Int).Div(rawBalance, divisor)
	remainder := new(big.Int).Mod(rawBalance, divisor)

	if remainder.Sign() == 0 {
		return intPart.String()
	}

	fracStr := fmt.Sprintf("%0*s", int(decimals), remainder.String())
	fracStr = strings.TrimRight(fracStr, "0")
	return fmt.Sprintf("%s.%s", intPart.String(), fracStr)
}
