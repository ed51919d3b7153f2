package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

// Envelope is the frame published on the signal bus and relayed verbatim to
// websocket clients.
type Envelope struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`
	Data  any       `json:"data"`
}

// publish marshals an envelope onto channel. A nil bus is a no-op and
// failures are only logged.
func publish(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel, event string, data any) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, At: time.Now().UTC(), Data: data})
	if err != nil {
		logger.WarnContext(ctx, "marshal event failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
