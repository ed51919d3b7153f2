package domain

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType indicates the time-in-force policy.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC" // Good-Till-Cancelled
	OrderTypeFOK OrderType = "FOK" // Fill-Or-Kill
)

// OrderRequest is a limit order to be signed and posted by the venue.
type OrderRequest struct {
	TokenID string
	Side    OrderSide
	Price   float64
	Size    float64
	Type    OrderType
	NegRisk bool
}

// OrderResult is the venue's response to a posted order.
type OrderResult struct {
	Success bool
	OrderID string
	Status  string
	Message string
}
