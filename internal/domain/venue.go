package domain

import "context"

// MarketSource lists markets page by page.
type MarketSource interface {
	ListPage(ctx context.Context, q PageQuery) ([]MarketRecord, error)
}

// SportsTagSource returns the tag ids the market source uses for sports.
type SportsTagSource interface {
	SportsTagIDs(ctx context.Context) ([]string, error)
}

// QuoteSource returns the top of book for a token. A rate-limit response
// must be reported as an error wrapping ErrRateLimited.
type QuoteSource interface {
	GetQuote(ctx context.Context, tokenID string) (Quote, error)
}

// TradingVenue is the exchange used to execute and close trades.
type TradingVenue interface {
	QuoteSource
	Balance(ctx context.Context) (Balance, error)
	Positions(ctx context.Context) ([]VenuePosition, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
