package domain

import "time"

// VenuePosition is a holding reported by the venue for a wallet.
type VenuePosition struct {
	Asset        string
	ConditionID  string
	Title        string
	Outcome      string
	Size         float64
	AvgPrice     float64
	CurrentValue float64
}

// Balance is the collateral available for new orders.
type Balance struct {
	AvailableUSD float64   `json:"available_usd"`
	UpdatedAt    time.Time `json:"updated_at"`
}
