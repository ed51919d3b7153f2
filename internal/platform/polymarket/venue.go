package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polytrade/internal/crypto"
	"github.com/alanyoungcy/polytrade/internal/domain"
)

var usdcScale = decimal.New(1, 6)

// Venue is the Polymarket implementation of domain.TradingVenue. Quotes and
// orders go to the CLOB, holdings come from the Data API.
type Venue struct {
	clob          *ClobClient
	data          *DataClient
	signer        *crypto.Signer
	funder        string
	signatureType int
	logger        *slog.Logger

	balances   domain.BalanceCache
	balanceTTL time.Duration
	now        func() time.Time
}

// NewVenue wires the CLOB and Data clients into a trading venue. funder is the
// proxy wallet holding the funds; empty means the signer's own address.
func NewVenue(clob *ClobClient, data *DataClient, signer *crypto.Signer, funder string, signatureType int, logger *slog.Logger) *Venue {
	return &Venue{
		clob:          clob,
		data:          data,
		signer:        signer,
		funder:        funder,
		signatureType: signatureType,
		logger:        logger.With(slog.String("component", "polymarket_venue")),
		now:           time.Now,
	}
}

// WithBalanceCache serves Balance from cache for ttl and falls back to the
// last cached value when the CLOB call fails.
func (v *Venue) WithBalanceCache(cache domain.BalanceCache, ttl time.Duration) *Venue {
	v.balances = cache
	v.balanceTTL = ttl
	return v
}

// GetQuote implements domain.QuoteSource.
func (v *Venue) GetQuote(ctx context.Context, tokenID string) (domain.Quote, error) {
	return v.clob.GetQuote(ctx, tokenID)
}

// Balance returns the available collateral.
func (v *Venue) Balance(ctx context.Context) (domain.Balance, error) {
	wallet := v.makerAddress()
	if v.balances == nil || wallet == "" {
		return v.clob.GetBalance(ctx, v.signatureType)
	}

	cached, cacheErr := v.balances.GetBalance(ctx, wallet)
	if cacheErr == nil && v.now().Sub(cached.UpdatedAt) <= v.balanceTTL {
		return cached, nil
	}

	b, err := v.clob.GetBalance(ctx, v.signatureType)
	if err != nil {
		if cacheErr == nil {
			v.logger.WarnContext(ctx, "balance fetch failed, using cached value",
				slog.Time("cached_at", cached.UpdatedAt),
				slog.String("error", err.Error()),
			)
			return cached, nil
		}
		return domain.Balance{}, err
	}

	b.UpdatedAt = v.now().UTC()
	if err := v.balances.SetBalance(ctx, wallet, b); err != nil {
		v.logger.WarnContext(ctx, "cache balance failed", slog.String("error", err.Error()))
	}
	return b, nil
}

// Positions returns the holdings of the funding wallet.
func (v *Venue) Positions(ctx context.Context) ([]domain.VenuePosition, error) {
	addr := v.makerAddress()
	if addr == "" {
		return nil, fmt.Errorf("polymarket/venue: %w: no wallet address", domain.ErrUnauthorized)
	}
	return v.data.Positions(ctx, addr)
}

// PlaceOrder builds, signs and posts a limit order.
func (v *Venue) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if v.signer == nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/venue: %w: no signing key", domain.ErrUnauthorized)
	}
	if !v.clob.HasCredentials() {
		if err := v.clob.DeriveAPIKey(ctx); err != nil {
			return domain.OrderResult{}, fmt.Errorf("polymarket/venue: %w", err)
		}
	}

	payload, err := v.buildOrder(req)
	if err != nil {
		return domain.OrderResult{}, err
	}

	exchange := crypto.CTFExchange
	if req.NegRisk {
		exchange = crypto.NegRiskCTFExchange
	}
	sig, err := v.signer.SignOrder(payload, exchange)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/venue: %w: %v", domain.ErrSigningFailed, err)
	}

	orderType := req.Type
	if orderType == "" {
		orderType = domain.OrderTypeGTC
	}

	v.logger.InfoContext(ctx, "posting order",
		slog.String("token_id", req.TokenID),
		slog.String("side", string(req.Side)),
		slog.Float64("price", req.Price),
		slog.Float64("size", req.Size),
		slog.Bool("neg_risk", req.NegRisk),
	)
	res, err := v.clob.PostOrder(ctx, payload, sig, orderType)
	if err == nil && v.balances != nil {
		if ierr := v.balances.InvalidateBalance(ctx, v.makerAddress()); ierr != nil {
			v.logger.WarnContext(ctx, "invalidate balance failed", slog.String("error", ierr.Error()))
		}
	}
	return res, err
}

func (v *Venue) buildOrder(req domain.OrderRequest) (crypto.OrderPayload, error) {
	if req.TokenID == "" {
		return crypto.OrderPayload{}, fmt.Errorf("polymarket/venue: %w: token id required", domain.ErrInvalidOrder)
	}
	if req.Price <= 0 || req.Price >= 1 {
		return crypto.OrderPayload{}, fmt.Errorf("polymarket/venue: %w: price %v outside (0,1)", domain.ErrInvalidOrder, req.Price)
	}
	if req.Size <= 0 {
		return crypto.OrderPayload{}, fmt.Errorf("polymarket/venue: %w: size must be positive", domain.ErrInvalidOrder)
	}

	makerAmt, takerAmt, side := OrderAmounts(req.Side, req.Price, req.Size)
	return crypto.OrderPayload{
		Salt:          strconv.FormatInt(rand.Int64N(1<<53), 10),
		Maker:         v.makerAddress(),
		Signer:        v.signer.Address().Hex(),
		Taker:         common.Address{}.Hex(),
		TokenID:       req.TokenID,
		MakerAmount:   makerAmt,
		TakerAmount:   takerAmt,
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          side,
		SignatureType: v.signatureType,
	}, nil
}

func (v *Venue) makerAddress() string {
	if v.funder != "" {
		return v.funder
	}
	if v.signer != nil {
		return v.signer.Address().Hex()
	}
	return ""
}

// OrderAmounts returns the maker and taker amounts in base units (6 decimals)
// and the signed side value. A buyer gives price*size collateral for size
// shares; a seller gives size shares for price*size collateral.
func OrderAmounts(side domain.OrderSide, price, size float64) (maker, taker string, sideValue int) {
	shares := decimal.NewFromFloat(size).Mul(usdcScale).Floor()
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(size)).Mul(usdcScale).Floor()
	if side == domain.OrderSideSell {
		return shares.String(), notional.String(), 1
	}
	return notional.String(), shares.String(), 0
}
