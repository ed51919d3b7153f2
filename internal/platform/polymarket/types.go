package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat accepts a JSON number, a numeric string or null. Unparseable
// strings decode to zero rather than failing the enclosing record.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		v = 0
	}
	*f = flexFloat(v)
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Gamma /markets endpoint.
type APIMarket struct {
	ID              flexString        `json:"id"`
	Question        string            `json:"question"`
	ConditionID     string            `json:"conditionId"`
	Slug            string            `json:"slug"`
	Outcomes        domain.StringList `json:"outcomes"`     // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	ClobTokenIDs    domain.TokenList  `json:"clobTokenIds"` // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Liquidity       flexFloat         `json:"liquidity"`
	LiquidityClob   flexFloat         `json:"liquidityClob"`
	Volume24hr      flexFloat         `json:"volume24hr"`
	GameStartTime   string            `json:"gameStartTime"`
	EventStartTime  string            `json:"eventStartTime"`
	EndDate         string            `json:"endDate"`
	Closed          flexBool          `json:"closed"`
	Active          flexBool          `json:"active"`
	AcceptingOrders flexBool          `json:"acceptingOrders"`
	NegRisk         flexBool          `json:"negRisk"`
	Tags            []APITag          `json:"tags"`
}

// APITag is a category tag attached to a Gamma market.
type APITag struct {
	ID    flexString `json:"id"`
	Label string     `json:"label"`
}

// APISport is one entry of the Gamma /sports listing.
type APISport struct {
	ID    flexString `json:"id"`
	Sport string     `json:"sport"`
	Tags  string     `json:"tags"` // comma separated tag ids
}

// ToDomainMarketRecord converts an APIMarket to a domain.MarketRecord. The
// CLOB liquidity figure is preferred over the aggregate one.
func (m *APIMarket) ToDomainMarketRecord() domain.MarketRecord {
	liquidity := float64(m.LiquidityClob)
	if liquidity == 0 {
		liquidity = float64(m.Liquidity)
	}

	tagIDs := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		if t.ID != "" {
			tagIDs = append(tagIDs, string(t.ID))
		}
	}

	return domain.MarketRecord{
		ID:              string(m.ID),
		ConditionID:     m.ConditionID,
		Slug:            m.Slug,
		Question:        m.Question,
		Outcomes:        m.Outcomes,
		TokenIDs:        m.ClobTokenIDs,
		Liquidity:       liquidity,
		Volume24h:       float64(m.Volume24hr),
		GameStartTime:   m.GameStartTime,
		EventStartTime:  m.EventStartTime,
		EndDate:         m.EndDate,
		Closed:          bool(m.Closed),
		Active:          bool(m.Active),
		AcceptingOrders: bool(m.AcceptingOrders),
		NegRisk:         bool(m.NegRisk),
		TagIDs:          tagIDs,
	}
}

// TagIDs returns the tag ids a sport is filed under, falling back to the
// sport's own id when it lists none.
func (s *APISport) TagIDs() []string {
	var out []string
	for _, part := range strings.Split(s.Tags, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 && s.ID != "" {
		out = append(out, string(s.ID))
	}
	return out
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPrice is the response of the CLOB /price endpoint.
type APIPrice struct {
	Price flexFloat `json:"price"`
}

// APIBookLevel is one price level of an order book.
type APIBookLevel struct {
	Price flexFloat `json:"price"`
	Size  flexFloat `json:"size"`
}

// APIBook is the response of the CLOB /book endpoint.
type APIBook struct {
	AssetID string         `json:"asset_id"`
	Bids    []APIBookLevel `json:"bids"`
	Asks    []APIBookLevel `json:"asks"`
}

// BestBidAsk returns the highest bid and lowest ask in the book; zero when a
// side is empty. Levels are scanned rather than trusting their order.
func (b *APIBook) BestBidAsk() (bid, ask float64) {
	for _, l := range b.Bids {
		if p := float64(l.Price); p > bid {
			bid = p
		}
	}
	for _, l := range b.Asks {
		if p := float64(l.Price); p > 0 && (ask == 0 || p < ask) {
			ask = p
		}
	}
	return bid, ask
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ToDomainOrderResult converts an APIOrderResult to a domain.OrderResult.
func (r *APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	return domain.OrderResult{
		Success: r.Success,
		OrderID: r.OrderID,
		Status:  r.Status,
		Message: r.ErrorMsg,
	}
}

// APIBalanceAllowance is the response of /balance-allowance. Balance is in
// collateral base units (6 decimals).
type APIBalanceAllowance struct {
	Balance flexFloat `json:"balance"`
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIPosition is one holding from the Data API /positions endpoint.
type APIPosition struct {
	Asset        string    `json:"asset"`
	ConditionID  string    `json:"conditionId"`
	Title        string    `json:"title"`
	Outcome      string    `json:"outcome"`
	Size         flexFloat `json:"size"`
	AvgPrice     flexFloat `json:"avgPrice"`
	CurrentValue flexFloat `json:"currentValue"`
}

// ToDomainPosition converts an APIPosition to a domain.VenuePosition.
func (p *APIPosition) ToDomainPosition() domain.VenuePosition {
	return domain.VenuePosition{
		Asset:        p.Asset,
		ConditionID:  p.ConditionID,
		Title:        p.Title,
		Outcome:      p.Outcome,
		Size:         float64(p.Size),
		AvgPrice:     float64(p.AvgPrice),
		CurrentValue: float64(p.CurrentValue),
	}
}
