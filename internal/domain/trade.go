package domain

import "time"

// TradeStatus tracks the lifecycle of a trade opened from a suggestion.
type TradeStatus string

const (
	TradeStatusOpen TradeStatus = "OPEN"
	// TradeStatusClosing marks a trade whose exit order may be on the venue
	// but whose close has not been stored yet.
	TradeStatusClosing TradeStatus = "CLOSING"
	TradeStatusClosed  TradeStatus = "CLOSED"
	TradeStatusFailed  TradeStatus = "FAILED"
)

// CloseReason records why the monitor closed a trade.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "STOP_LOSS"
	CloseReasonTakeProfit CloseReason = "TAKE_PROFIT"
)

// Trade is a position opened on the venue from a suggestion.
type Trade struct {
	ID            string      `json:"id"`
	SuggestionID  string      `json:"suggestion_id"`
	TokenID       string      `json:"token_id"`
	MarketID      string      `json:"market_id"`
	Title         string      `json:"title"`
	Side          string      `json:"side"`
	Size          float64     `json:"size"`
	EntryPrice    float64     `json:"entry_price"`
	Status        TradeStatus `json:"status"`
	StopLossPct   float64     `json:"stop_loss_pct"`
	TakeProfitPct float64     `json:"take_profit_pct"`
	OrderID       string      `json:"order_id"`
	ExitOrderID   string      `json:"exit_order_id,omitempty"`
	ExitPrice     float64     `json:"exit_price"`
	PnL           float64     `json:"pnl"`
	PnLPct        float64     `json:"pnl_pct"`
	CloseReason   CloseReason `json:"close_reason"`
	CreatedAt     time.Time   `json:"created_at"`
	ClosedAt      *time.Time  `json:"closed_at,omitempty"`
}

// IsBuy reports whether the trade was opened on the buy side.
func (t Trade) IsBuy() bool {
	return len(t.Side) >= 3 && t.Side[:3] == "BUY"
}

// TradeEventType classifies an entry in the trade event log.
type TradeEventType string

const (
	TradeEventCreated TradeEventType = "CREATED"
	TradeEventClosed  TradeEventType = "CLOSED"
	TradeEventFailed  TradeEventType = "FAILED"
)

// TradeEvent is an append-only audit record for a trade.
type TradeEvent struct {
	ID        string         `json:"id"`
	TradeID   string         `json:"trade_id"`
	Type      TradeEventType `json:"type"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	PnL       float64        `json:"pnl"`
	PnLPct    float64        `json:"pnl_pct"`
	CreatedAt time.Time      `json:"created_at"`
}
