package domain

import (
	"encoding/json"
	"strings"
)

// MarketRecord is one market as listed by the market source. It is rebuilt
// on every discovery run and carries no identity beyond ID.
type MarketRecord struct {
	ID          string
	ConditionID string
	Slug        string
	Question    string
	Outcomes    []string
	TokenIDs    TokenList
	Liquidity   float64
	Volume24h   float64

	// Raw timestamp strings. Which one is authoritative is decided by the
	// discovery resolver.
	GameStartTime  string
	EventStartTime string
	EndDate        string

	Closed          bool
	Active          bool
	AcceptingOrders bool
	NegRisk         bool
	TagIDs          []string
}

// OutcomeName returns the outcome label at index i, or "" when absent.
func (m MarketRecord) OutcomeName(i int) string {
	if i < 0 || i >= len(m.Outcomes) {
		return ""
	}
	return m.Outcomes[i]
}

// PageQuery selects one page of markets from the market source.
type PageQuery struct {
	Offset    int
	Limit     int
	Order     string
	Ascending bool
	Closed    bool
}

// TokenList is a list of CLOB token ids. The market source encodes it either
// as a JSON array or as a string holding a JSON array; both decode here.
// Anything else decodes to an empty list instead of failing the record.
type TokenList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TokenList) UnmarshalJSON(data []byte) error {
	*t = decodeStringList(data)
	return nil
}

// StringList has the same tolerant decoding as TokenList and is used for
// outcome labels.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *StringList) UnmarshalJSON(data []byte) error {
	*s = decodeStringList(data)
	return nil
}

func decodeStringList(data []byte) []string {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list
	}

	var inner string
	if err := json.Unmarshal(data, &inner); err != nil {
		return nil
	}
	inner = strings.TrimSpace(inner)
	if inner == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(inner), &list); err != nil {
		return nil
	}
	return list
}
