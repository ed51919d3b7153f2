package polymarket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcaf784d7bf4f2ff80"

func newTestSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	s, err := crypto.NewSigner(testKey, 137)
	require.NoError(t, err)
	return s
}

// ─── GetQuote ──────────────────────────────────────────────────────────────

func TestGetQuote_UsesPriceEndpoint(t *testing.T) {
	var bookCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price":
			assert.Equal(t, "tok", r.URL.Query().Get("token_id"))
			if r.URL.Query().Get("side") == "BUY" {
				_, _ = w.Write([]byte(`{"price":"0.85"}`))
			} else {
				_, _ = w.Write([]byte(`{"price":"0.83"}`))
			}
		case "/book":
			bookCalls.Add(1)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, time.Second, nil, crypto.APICreds{})
	q, err := c.GetQuote(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 0.85, q.BestAsk)
	assert.Equal(t, 0.83, q.BestBid)
	assert.Equal(t, "tok", q.TokenID)
	assert.Zero(t, bookCalls.Load())
}

func TestGetQuote_FallsBackToBook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price":
			w.WriteHeader(http.StatusInternalServerError)
		case "/book":
			_, _ = w.Write([]byte(`{"asset_id":"tok",
				"bids":[{"price":"0.40","size":"10"},{"price":"0.45","size":"3"}],
				"asks":[{"price":"0.60","size":"5"},{"price":"0.52","size":"1"}]}`))
		}
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, time.Second, nil, crypto.APICreds{})
	q, err := c.GetQuote(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 0.45, q.BestBid)
	assert.Equal(t, 0.52, q.BestAsk)
}

func TestGetQuote_ZeroAskFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price":
			_, _ = w.Write([]byte(`{"price":"0"}`))
		case "/book":
			_, _ = w.Write([]byte(`{"bids":[],"asks":[{"price":"0.91","size":"2"}]}`))
		}
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, time.Second, nil, crypto.APICreds{})
	q, err := c.GetQuote(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 0.91, q.BestAsk)
	assert.Zero(t, q.BestBid)
}

func TestGetQuote_RateLimitedSkipsFallback(t *testing.T) {
	var bookCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/book" {
			bookCalls.Add(1)
		}
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, time.Second, nil, crypto.APICreds{})
	_, err := c.GetQuote(context.Background(), "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Zero(t, bookCalls.Load())
}

// ─── Authenticated endpoints ───────────────────────────────────────────────

func TestGetBalance_ScalesCollateral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balance-allowance", r.URL.Path)
		assert.Equal(t, "COLLATERAL", r.URL.Query().Get("asset_type"))
		assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
		assert.Equal(t, "key", r.Header.Get("POLY_API_KEY"))
		_, _ = w.Write([]byte(`{"balance":"12500000"}`))
	}))
	defer srv.Close()

	creds := crypto.APICreds{Key: "key", Secret: "c2VjcmV0", Passphrase: "pass"}
	c := NewClobClient(srv.URL, time.Second, newTestSigner(t), creds)
	bal, err := c.GetBalance(context.Background(), 0)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, bal.AvailableUSD, 1e-9)
}

func TestGetBalance_NoSigner(t *testing.T) {
	c := NewClobClient("http://127.0.0.1:0", time.Second, nil, crypto.APICreds{})
	_, err := c.GetBalance(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestDeriveAPIKey_StoresCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/derive-api-key", r.URL.Path)
		assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", r.Header.Get("POLY_ADDRESS"))
		assert.Equal(t, "0", r.Header.Get("POLY_NONCE"))
		_, _ = w.Write([]byte(`{"apiKey":"k","secret":"s","passphrase":"p"}`))
	}))
	defer srv.Close()

	c := NewClobClient(srv.URL, time.Second, newTestSigner(t), crypto.APICreds{})
	assert.False(t, c.HasCredentials())
	require.NoError(t, c.DeriveAPIKey(context.Background()))
	assert.True(t, c.HasCredentials())
}

func TestPostOrder_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GTC", body["orderType"])
		_, _ = w.Write([]byte(`{"success":false,"errorMsg":"not enough balance"}`))
	}))
	defer srv.Close()

	creds := crypto.APICreds{Key: "key", Secret: "c2VjcmV0", Passphrase: "pass"}
	c := NewClobClient(srv.URL, time.Second, newTestSigner(t), creds)
	res, err := c.PostOrder(context.Background(), crypto.OrderPayload{Salt: "1"}, "0xsig", domain.OrderTypeGTC)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.False(t, res.Success)
	assert.Equal(t, "not enough balance", res.Message)
}

// ─── Status mapping ────────────────────────────────────────────────────────

func TestCheckHTTPStatus(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(204, nil))
	assert.ErrorIs(t, checkHTTPStatus(404, nil), domain.ErrNotFound)
	assert.ErrorIs(t, checkHTTPStatus(401, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(403, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(429, nil), domain.ErrRateLimited)
	assert.EqualError(t, checkHTTPStatus(502, []byte("bad gateway")), "HTTP 502: bad gateway")
}
