package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	name  string
	err   error
	calls []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.calls = append(r.calls, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

// ─── Notifier ──────────────────────────────────────────────────────────────

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventTradeClosed}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventSuggestions, "ignored", ""))
	require.NoError(t, n.Notify(context.Background(), EventTradeClosed, "sent", ""))
	assert.Equal(t, []string{"sent"}, s.calls)
}

func TestNotifier_OneFailingSenderDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventError, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.calls, 1)
}

func TestNotifier_NilIsDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))
}

// ─── Telegram ──────────────────────────────────────────────────────────────

func TestTelegramSender_PostsHTML(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL, "TOKEN", "42")
	require.NoError(t, s.Send(context.Background(), "5 urgent suggestion(s)", "Lakers <vs> Celtics"))

	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>5 urgent suggestion(s)</b>\nLakers &lt;vs&gt; Celtics", got["text"])
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	err := NewTelegramSender(srv.URL, "T", "1").Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestDiscordSender_Posts(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), "Title", "body"))
	assert.Equal(t, "**Title**\n```\nbody\n```", got["content"])
}

// ─── Formatting ────────────────────────────────────────────────────────────

func TestFormatSuggestions_TopN(t *testing.T) {
	var list []domain.Suggestion
	for i := 0; i < 12; i++ {
		list = append(list, domain.Suggestion{
			Title: "Game", Side: "BUY_YES", Price: 0.85, EdgeBps: -238.1,
			Liquidity: 12345.678, Volume24h: 1000, SizeHint: 10, HoursUntil: -1,
		})
	}
	title, body := FormatSuggestions("live", list, 10)
	assert.Equal(t, "12 live suggestion(s)", title)
	assert.Contains(t, body, "1. Game")
	assert.Contains(t, body, "10. Game")
	assert.NotContains(t, body, "11. Game")
	assert.Contains(t, body, "... and 2 more")
	assert.Contains(t, body, "BUY_YES @ 0.8500 (85.0%)  edge -238.1 bps")
	assert.Contains(t, body, "liquidity $12,345.68")
	assert.Contains(t, body, "started 1.0h ago")
}

func TestFormatSuggestions_Empty(t *testing.T) {
	title, body := FormatSuggestions("urgent", nil, 0)
	assert.Equal(t, "0 urgent suggestion(s)", title)
	assert.Contains(t, body, "No markets matched")
}

func TestFormatTradeClosed(t *testing.T) {
	closed := time.Now()
	title, body := FormatTradeClosed(domain.Trade{
		ID: "t-1", Title: "Lakers vs Celtics", EntryPrice: 0.80, ExitPrice: 0.66,
		PnL: -0.14, PnLPct: -0.175, CloseReason: domain.CloseReasonStopLoss, ClosedAt: &closed,
	})
	assert.Equal(t, "Stop loss hit", title)
	assert.Contains(t, body, "P&L -$0.14 (-17.50%)")
	assert.Contains(t, body, "trade t-1")

	title, _ = FormatTradeClosed(domain.Trade{CloseReason: domain.CloseReasonTakeProfit})
	assert.Equal(t, "Take profit hit", title)
}

func TestMoneyAndTruncate(t *testing.T) {
	assert.Equal(t, "0.50", money(0.5))
	assert.Equal(t, "1,000.00", money(1000))
	assert.Equal(t, "-1,234,567.10", money(-1234567.1))

	assert.Equal(t, "short", truncate("short", 10))
	out := truncate(strings.Repeat("é", 10), 8)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 8)
}
