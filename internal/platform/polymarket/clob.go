package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. Quotes are public; orders and balances need a signer and
// L2 credentials.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer

	mu    sync.RWMutex
	creds crypto.APICreds
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com". signer
// may be nil for a quote-only client.
func NewClobClient(baseURL string, timeout time.Duration, signer *crypto.Signer, creds crypto.APICreds) *ClobClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClobClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		creds:      creds,
	}
}

// GetQuote returns the best bid and ask for tokenID. It asks /price for both
// sides first and falls back to the order book when /price fails or has no
// ask. A rate-limit response is returned as is so callers can back off.
func (c *ClobClient) GetQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	ask, askErr := c.GetPrice(ctx, tokenID, domain.OrderSideBuy)
	if errors.Is(askErr, domain.ErrRateLimited) {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: quote %s: %w", tokenID, askErr)
	}
	bid, bidErr := c.GetPrice(ctx, tokenID, domain.OrderSideSell)
	if errors.Is(bidErr, domain.ErrRateLimited) {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: quote %s: %w", tokenID, bidErr)
	}

	if askErr == nil && bidErr == nil && ask > 0 {
		return domain.Quote{TokenID: tokenID, BestBid: bid, BestAsk: ask, FetchedAt: time.Now()}, nil
	}

	book, err := c.GetOrderBook(ctx, tokenID)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket/clob: quote %s: %w", tokenID, err)
	}
	bookBid, bookAsk := book.BestBidAsk()
	if askErr == nil && ask > 0 {
		bookAsk = ask
	}
	if bidErr == nil && bid > 0 {
		bookBid = bid
	}
	return domain.Quote{TokenID: tokenID, BestBid: bookBid, BestAsk: bookAsk, FetchedAt: time.Now()}, nil
}

// GetPrice returns the /price value for one side of tokenID's book. BUY is
// the price a buyer pays (the ask), SELL the price a seller receives.
func (c *ClobClient) GetPrice(ctx context.Context, tokenID string, side domain.OrderSide) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", string(side))

	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/price?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/clob: get price: %w", err)
	}

	var p APIPrice
	if err := json.Unmarshal(body, &p); err != nil {
		return 0, fmt.Errorf("polymarket/clob: decode price: %w", err)
	}
	return float64(p.Price), nil
}

// GetOrderBook returns the order book for tokenID.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (APIBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := getJSON(ctx, c.httpClient, c.baseURL+"/book?"+params.Encode())
	if err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: get book: %w", err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return APIBook{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book, nil
}

// PostOrder submits a signed order and returns the venue's verdict.
func (c *ClobClient) PostOrder(ctx context.Context, order crypto.OrderPayload, signature string, orderType domain.OrderType) (domain.OrderResult, error) {
	side := "BUY"
	if order.Side == 1 {
		side = "SELL"
	}
	salt, _ := strconv.ParseInt(order.Salt, 10, 64)

	c.mu.RLock()
	owner := c.creds.Key
	c.mu.RUnlock()

	body := map[string]any{
		"order": map[string]any{
			"salt":          salt,
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount,
			"takerAmount":   order.TakerAmount,
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          side,
			"signatureType": order.SignatureType,
			"signature":     signature,
		},
		"owner":     owner,
		"orderType": string(orderType),
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("polymarket/clob: order rejected: %w: %s", domain.ErrInvalidOrder, result.Message)
	}
	return result, nil
}

// GetBalance returns the wallet's available collateral in USD.
func (c *ClobClient) GetBalance(ctx context.Context, signatureType int) (domain.Balance, error) {
	params := url.Values{}
	params.Set("asset_type", "COLLATERAL")
	params.Set("signature_type", strconv.Itoa(signatureType))

	// L2 signatures cover the path only, not the query string.
	respBody, err := c.doAuthenticatedRequestQuery(ctx, http.MethodGet, "/balance-allowance", params.Encode(), nil)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("polymarket/clob: get balance: %w", err)
	}

	var ba APIBalanceAllowance
	if err := json.Unmarshal(respBody, &ba); err != nil {
		return domain.Balance{}, fmt.Errorf("polymarket/clob: decode balance: %w", err)
	}
	return domain.Balance{
		AvailableUSD: float64(ba.Balance) / 1e6,
		UpdatedAt:    time.Now(),
	}, nil
}

// DeriveAPIKey performs the L1 auth flow to obtain L2 credentials and stores
// them on the client.
func (c *ClobClient) DeriveAPIKey(ctx context.Context) error {
	if c.signer == nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", domain.ErrUnauthorized)
	}
	address := c.signer.Address().Hex()
	timestamp := time.Now().Unix()

	sig, err := c.signer.SignClobAuth(timestamp, 0)
	if err != nil {
		return fmt.Errorf("polymarket/clob: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket/clob: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("POLY_NONCE", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket/clob: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: read auth response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return fmt.Errorf("polymarket/clob: derive api key: %w", err)
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket/clob: decode auth response: %w", err)
	}

	c.mu.Lock()
	c.creds = crypto.APICreds{Key: authResp.APIKey, Secret: authResp.Secret, Passphrase: authResp.Passphrase}
	c.mu.Unlock()
	return nil
}

// HasCredentials reports whether L2 credentials are available.
func (c *ClobClient) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.creds.Empty()
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	return c.doAuthenticatedRequestQuery(ctx, method, path, "", body)
}

// doAuthenticatedRequestQuery builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequestQuery(ctx context.Context, method, path, rawQuery string, body any) ([]byte, error) {
	if c.signer == nil {
		return nil, domain.ErrUnauthorized
	}

	var bodyReader io.Reader
	var bodyStr string
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	target := c.baseURL + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	creds := c.creds
	c.mu.RUnlock()
	for k, v := range creds.L2Headers(c.signer.Address().Hex(), method, path, bodyStr) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	if len(bodyStr) > 256 {
		bodyStr = bodyStr[:256]
	}
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
