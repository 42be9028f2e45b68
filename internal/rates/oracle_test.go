package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openwalletd/yieldfold/internal/token"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracleToken(t *testing.T) *token.Token {
	t.Helper()
	reg, err := token.NewStaticRegistry([]token.Spec{
		{ID: "WXDAI", Magnitude: 18, BaseCurrency: "gnosis"},
		{ID: "armmWXDAI", Magnitude: 8, UnderlyingID: "WXDAI", RateFeed: "reserve-1", BaseCurrency: "gnosis"},
	})
	require.NoError(t, err)
	tok, err := reg.ByID("armmWXDAI")
	require.NoError(t, err)
	return tok
}

func TestHTTPOracleFetchCurrentRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reserves/reserve-1", r.URL.Path)
		w.Write([]byte(`{"reserve":{"liquidityRate":"1.0215","supplyAPY":"2.91%"}}`))
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	quote, err := oracle.FetchCurrentRate(context.Background(), oracleToken(t))
	require.NoError(t, err)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("1.0215")))
	assert.Equal(t, "2.91%", quote.SupplyAPY)
}

func TestHTTPOracleFetchHistoricalRate(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reserves/reserve-1/history", r.URL.Path)
		assert.Equal(t, "1700000000", r.URL.Query().Get("at"))
		w.Write([]byte(`{"rate":"1.0114"}`))
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	rate, err := oracle.FetchHistoricalRate(context.Background(), oracleToken(t), at)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("1.0114")))
}

func TestHTTPOracleMalformedRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reserve":{"liquidityRate":"not-a-number"}}`))
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	_, err := oracle.FetchCurrentRate(context.Background(), oracleToken(t))
	require.Error(t, err)
}

func TestHTTPOracleRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"reserve":{"liquidityRate":"1.5","supplyAPY":""}}`))
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	quote, err := oracle.FetchCurrentRate(context.Background(), oracleToken(t))
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, quote.Rate.Equal(decimal.RequireFromString("1.5")))
}

func TestHTTPOracleGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	oracle := NewHTTPOracle(srv.URL)
	_, err := oracle.FetchCurrentRate(context.Background(), oracleToken(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after")
}
