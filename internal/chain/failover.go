package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	unhealthyCooldown  = 5 * time.Minute
	healthCheckTimeout = 5 * time.Second
)

type endpoint struct {
	url       string
	client    *ethclient.Client
	healthy   bool
	lastError time.Time
}

// failover rotates across RPC endpoints, skipping unhealthy ones until their
// cooldown expires.
type failover struct {
	mu        sync.Mutex
	endpoints []*endpoint
	current   int
}

func newFailover(urls []string) (*failover, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one RPC URL is required")
	}

	f := &failover{}
	healthy := 0
	for _, url := range urls {
		client, err := dialAndVerify(url)
		if err != nil {
			slog.Warn("RPC endpoint unreachable, will retry later", "url", url, "error", err)
			f.endpoints = append(f.endpoints, &endpoint{url: url, lastError: time.Now()})
			continue
		}
		slog.Info("Connected to RPC endpoint", "url", url)
		f.endpoints = append(f.endpoints, &endpoint{url: url, client: client, healthy: true})
		healthy++
	}

	if healthy == 0 {
		return nil, fmt.Errorf("no healthy RPC endpoints available")
	}
	return f, nil
}

func dialAndVerify(url string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// get returns a healthy client, reconnecting cooled-down endpoints on the
// way.
func (f *failover) get() (*ethclient.Client, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.endpoints {
		idx := (f.current + i) % len(f.endpoints)
		ep := f.endpoints[idx]

		if ep.healthy && ep.client != nil {
			f.current = idx
			return ep.client, ep.url, nil
		}

		if !ep.healthy && time.Since(ep.lastError) > unhealthyCooldown {
			client, err := dialAndVerify(ep.url)
			if err != nil {
				ep.lastError = time.Now()
				continue
			}
			if ep.client != nil {
				ep.client.Close()
			}
			ep.client = client
			ep.healthy = true
			f.current = idx
			slog.Info("Reconnected to RPC endpoint", "url", ep.url)
			return client, ep.url, nil
		}
	}

	return nil, "", fmt.Errorf("no healthy RPC endpoints available")
}

// markUnhealthy drops an endpoint until its cooldown expires.
func (f *failover) markUnhealthy(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ep := range f.endpoints {
		if ep.url != url {
			continue
		}
		ep.healthy = false
		ep.lastError = time.Now()
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
		slog.Warn("Marked RPC endpoint as unhealthy",
			"url", url,
			"error", err,
			"retry_after", unhealthyCooldown)
		return
	}
}

func (f *failover) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.endpoints {
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
	}
}
