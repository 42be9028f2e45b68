package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Pinger is the slice of the storage layer the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RPCReporter reports whether any chain RPC endpoint currently serves.
type RPCReporter interface {
	Healthy() bool
}

// CheckStatus represents the health status of a component
type CheckStatus string

const (
	StatusOK       CheckStatus = "ok"
	StatusDegraded CheckStatus = "degraded"
	StatusError    CheckStatus = "error"
)

// CheckDetail contains details about a specific health check
type CheckDetail struct {
	Status  CheckStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Response is the JSON response structure
type Response struct {
	Status    CheckStatus            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckDetail `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

var startTime = time.Now()

// Checker performs health checks on application dependencies
type Checker struct {
	store      Pinger
	rpc        RPCReporter
	oracleURL  string
	httpClient *http.Client
	interval   time.Duration

	mu             sync.RWMutex
	lastRunTime    time.Time
	lastRunSuccess bool
}

// NewChecker creates a new health checker. interval is the expected gap
// between refresh runs, used to judge last-run freshness.
func NewChecker(store Pinger, rpc RPCReporter, oracleURL string, interval time.Duration) *Checker {
	return &Checker{
		store:      store,
		rpc:        rpc,
		oracleURL:  oracleURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		interval:   interval,
	}
}

// UpdateLastRun updates the timestamp and status of the last execution
func (c *Checker) UpdateLastRun(success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastRunTime = time.Now()
	c.lastRunSuccess = success
}

// Check performs all health checks and returns the aggregated status
func (c *Checker) Check(ctx context.Context) Response {
	checks := make(map[string]CheckDetail)
	overall := StatusOK

	db := c.checkDatabase(ctx)
	checks["database"] = db
	if db.Status != StatusOK {
		overall = StatusError
	}

	rpc := c.checkRPC()
	checks["rpc"] = rpc
	if rpc.Status != StatusOK && overall == StatusOK {
		overall = StatusDegraded
	}

	oracle := c.checkOracle(ctx)
	checks["oracle"] = oracle
	if oracle.Status != StatusOK && overall == StatusOK {
		// Digestion degrades to zero rates without the oracle, it does
		// not fail.
		overall = StatusDegraded
	}

	run := c.checkLastRun()
	checks["last_run"] = run
	if run.Status == StatusError {
		overall = StatusError
	} else if run.Status == StatusDegraded && overall == StatusOK {
		overall = StatusDegraded
	}

	return Response{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}
}

func (c *Checker) checkDatabase(ctx context.Context) CheckDetail {
	if c.store == nil {
		return CheckDetail{Status: StatusOK, Message: "storage disabled"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.store.Ping(pingCtx); err != nil {
		return CheckDetail{Status: StatusError, Message: err.Error()}
	}
	return CheckDetail{Status: StatusOK}
}

func (c *Checker) checkRPC() CheckDetail {
	if !c.rpc.Healthy() {
		return CheckDetail{Status: StatusError, Message: "no healthy RPC endpoint"}
	}
	return CheckDetail{Status: StatusOK}
}

func (c *Checker) checkOracle(ctx context.Context) CheckDetail {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.oracleURL, nil)
	if err != nil {
		return CheckDetail{Status: StatusError, Message: err.Error()}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CheckDetail{Status: StatusError, Message: err.Error()}
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return CheckDetail{Status: StatusError, Message: fmt.Sprintf("oracle returned %d", resp.StatusCode)}
	}
	return CheckDetail{Status: StatusOK}
}

func (c *Checker) checkLastRun() CheckDetail {
	c.mu.RLock()
	lastRun := c.lastRunTime
	success := c.lastRunSuccess
	c.mu.RUnlock()

	if lastRun.IsZero() {
		return CheckDetail{Status: StatusDegraded, Message: "no run recorded yet"}
	}

	// Grace of one extra interval before an overdue run is an error.
	if age := time.Since(lastRun); age > 2*c.interval {
		return CheckDetail{
			Status:  StatusError,
			Message: fmt.Sprintf("last run %s ago, expected every %s", age.Round(time.Second), c.interval),
		}
	}
	if !success {
		return CheckDetail{Status: StatusDegraded, Message: "last run failed"}
	}
	return CheckDetail{Status: StatusOK}
}

// Router returns the HTTP routes serving health checks.
func (c *Checker) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		resp := c.Check(req.Context())

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == StatusError {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("Failed to encode health response", "error", err)
		}
	})
	return r
}
