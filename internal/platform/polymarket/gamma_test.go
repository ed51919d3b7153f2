package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

func TestListPage_QueryAndDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "false", q.Get("closed"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "200", q.Get("offset"))
		assert.Equal(t, "volume24hr", q.Get("order"))
		assert.Equal(t, "false", q.Get("ascending"))
		_, _ = w.Write([]byte(`[{
			"id": 512,
			"question": "Lakers vs Celtics",
			"conditionId": "0xabc",
			"outcomes": "[\"Lakers\",\"Celtics\"]",
			"clobTokenIds": "[\"111\",\"222\"]",
			"liquidity": "900.5",
			"liquidityClob": 1500,
			"volume24hr": "2500",
			"gameStartTime": "2026-03-01 19:00:00+00",
			"active": "true",
			"negRisk": true,
			"tags": [{"id": "745", "label": "NBA"}]
		}]`))
	}))
	defer srv.Close()

	g := NewGammaClient(srv.URL, time.Second)
	recs, err := g.ListPage(context.Background(), domain.PageQuery{
		Offset: 200, Limit: 100, Order: "volume24hr", Ascending: false,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)

	m := recs[0]
	assert.Equal(t, "512", m.ID)
	assert.Equal(t, []string{"Lakers", "Celtics"}, []string(m.Outcomes))
	assert.Equal(t, []string{"111", "222"}, []string(m.TokenIDs))
	assert.Equal(t, 1500.0, m.Liquidity)
	assert.Equal(t, 2500.0, m.Volume24h)
	assert.True(t, m.Active)
	assert.True(t, m.NegRisk)
	assert.Equal(t, []string{"745"}, m.TagIDs)
}

func TestListPage_MalformedTokenIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1","clobTokenIds":"not json","liquidity":null}]`))
	}))
	defer srv.Close()

	recs, err := NewGammaClient(srv.URL, time.Second).ListPage(context.Background(), domain.PageQuery{Limit: 10})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].TokenIDs)
	assert.Zero(t, recs[0].Liquidity)
}

func TestListPage_StatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewGammaClient(srv.URL, time.Second).ListPage(context.Background(), domain.PageQuery{Limit: 10})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestSportsTagIDs_Dedupes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sports", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"id": 1, "sport": "nba", "tags": "1, 745,100639"},
			{"id": 2, "sport": "nfl", "tags": "1,450"},
			{"id": 9, "sport": "cricket", "tags": ""}
		]`))
	}))
	defer srv.Close()

	ids, err := NewGammaClient(srv.URL, time.Second).SportsTagIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "745", "100639", "450", "9"}, ids)
}
