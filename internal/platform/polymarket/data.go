package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// DataClient reads wallet holdings from the Polymarket Data API.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a Data API client for baseURL, e.g.
// "https://data-api.polymarket.com".
func NewDataClient(baseURL string, timeout time.Duration) *DataClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &DataClient{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// Positions returns every non-zero position held by user.
func (d *DataClient) Positions(ctx context.Context, user string) ([]domain.VenuePosition, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("sizeThreshold", "0")

	body, err := getJSON(ctx, d.httpClient, d.baseURL+"/positions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: positions: %w", err)
	}

	var apiPositions []APIPosition
	if err := json.Unmarshal(body, &apiPositions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	out := make([]domain.VenuePosition, 0, len(apiPositions))
	for i := range apiPositions {
		if p := apiPositions[i].ToDomainPosition(); p.Size > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}
