package domain

import "time"

// Quote is the top of book for one token at fetch time. BestAsk == 0 means
// no ask is available; it is never a real zero price.
type Quote struct {
	TokenID   string
	BestBid   float64
	BestAsk   float64
	FetchedAt time.Time
}

// HasAsk reports whether the quote carries a usable ask.
func (q Quote) HasAsk() bool {
	return q.BestAsk > 0
}

// Mid returns the midpoint of bid and ask.
func (q Quote) Mid() float64 {
	return (q.BestBid + q.BestAsk) / 2
}
