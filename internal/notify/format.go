package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// DefaultSuggestionLimit is how many suggestions one message lists.
const DefaultSuggestionLimit = 10

// FormatSuggestions renders the first limit suggestions of a run. It returns
// the title and body for Notifier.Notify.
func FormatSuggestions(profile string, suggestions []domain.Suggestion, limit int) (string, string) {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	title := fmt.Sprintf("%d %s suggestion(s)", len(suggestions), profile)
	if len(suggestions) == 0 {
		return title, "No markets matched the price band and liquidity floor."
	}

	var b strings.Builder
	shown := suggestions
	if len(shown) > limit {
		shown = shown[:limit]
	}
	for i, s := range shown {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
		fmt.Fprintf(&b, "   %s @ %.4f (%.1f%%)  edge %.1f bps\n", s.Side, s.Price, s.Price*100, s.EdgeBps)
		fmt.Fprintf(&b, "   liquidity $%s  vol24h $%s  size %.2f\n", money(s.Liquidity), money(s.Volume24h), s.SizeHint)
		fmt.Fprintf(&b, "   %s\n", startsIn(s.HoursUntil))
	}
	if extra := len(suggestions) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "... and %d more\n", extra)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// FormatTradeOpened renders an executed suggestion.
func FormatTradeOpened(t domain.Trade) (string, string) {
	title := "Trade opened"
	body := fmt.Sprintf("%s\n%s %.2f @ %.4f\nSL %.0f%%  TP %.0f%%\ntrade %s",
		t.Title, t.Side, t.Size, t.EntryPrice, t.StopLossPct*100, t.TakeProfitPct*100, t.ID)
	return title, body
}

// FormatTradeClosed renders a monitor close.
func FormatTradeClosed(t domain.Trade) (string, string) {
	reason := "Closed"
	switch t.CloseReason {
	case domain.CloseReasonStopLoss:
		reason = "Stop loss"
	case domain.CloseReasonTakeProfit:
		reason = "Take profit"
	}
	title := reason + " hit"
	body := fmt.Sprintf("%s\nentry %.4f  exit %.4f\nP&L %s$%.2f (%+.2f%%)\ntrade %s",
		t.Title, t.EntryPrice, t.ExitPrice, sign(t.PnL), abs(t.PnL), t.PnLPct*100, t.ID)
	return title, body
}

func startsIn(hours float64) string {
	if hours < 0 {
		return fmt.Sprintf("started %.1fh ago", -hours)
	}
	return fmt.Sprintf("starts in %.1fh", hours)
}

// money formats v with thousands separators and two decimals.
func money(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func sign(v float64) string {
	if v < 0 {
		return "-"
	}
	return "+"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
