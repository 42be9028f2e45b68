package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/openwalletd/yieldfold/internal/token"
	"github.com/shopspring/decimal"
)

const (
	oracleTimeout = 10 * time.Second
	maxRetries    = 3
	retryInterval = 500 * time.Millisecond
)

// Quote is one current-rate answer from the oracle. Rate is expressed in
// whole-token terms (1 derivative token = Rate underlying tokens); magnitude
// normalization happens in the Converter.
type Quote struct {
	Rate      decimal.Decimal
	SupplyAPY string
}

// Oracle serves current and historical exchange rates for derivative tokens.
// Implementations own their retry policy; the Converter never retries.
type Oracle interface {
	FetchCurrentRate(ctx context.Context, tok *token.Token) (Quote, error)
	FetchHistoricalRate(ctx context.Context, tok *token.Token, date time.Time) (decimal.Decimal, error)
}

// HTTPOracle queries a lending-market rates API over JSON.
type HTTPOracle struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPOracle creates an oracle client for the given API base URL.
func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: oracleTimeout,
		},
	}
}

type reserveResponse struct {
	Reserve struct {
		LiquidityRate string `json:"liquidityRate"`
		SupplyAPY     string `json:"supplyAPY"`
	} `json:"reserve"`
}

type historyResponse struct {
	Rate string `json:"rate"`
}

// FetchCurrentRate returns the latest exchange rate and supply APY for one
// reserve.
func (o *HTTPOracle) FetchCurrentRate(ctx context.Context, tok *token.Token) (Quote, error) {
	endpoint := fmt.Sprintf("%s/reserves/%s", o.baseURL, url.PathEscape(tok.RateFeed))

	var resp reserveResponse
	if err := o.getJSON(ctx, endpoint, &resp); err != nil {
		return Quote{}, err
	}

	rate, err := decimal.NewFromString(resp.Reserve.LiquidityRate)
	if err != nil {
		return Quote{}, fmt.Errorf("malformed rate for %s: %w", tok.ID, err)
	}

	return Quote{Rate: rate, SupplyAPY: resp.Reserve.SupplyAPY}, nil
}

// FetchHistoricalRate returns the exchange rate for one reserve at one date.
func (o *HTTPOracle) FetchHistoricalRate(ctx context.Context, tok *token.Token, date time.Time) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/reserves/%s/history?at=%d",
		o.baseURL, url.PathEscape(tok.RateFeed), date.Unix())

	var resp historyResponse
	if err := o.getJSON(ctx, endpoint, &resp); err != nil {
		return decimal.Zero, err
	}

	rate, err := decimal.NewFromString(resp.Rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("malformed historical rate for %s: %w", tok.ID, err)
	}
	return rate, nil
}

// getJSON performs a GET with retry and exponential backoff.
func (o *HTTPOracle) getJSON(ctx context.Context, endpoint string, out any) error {
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

		if lastErr = o.doGetJSON(ctx, endpoint, out); lastErr == nil {
			return nil
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (o *HTTPOracle) doGetJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
