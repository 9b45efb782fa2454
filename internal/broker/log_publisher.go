package broker

import (
	"context"
	"encoding/json"
	"log/slog"
)

// LogPublisher writes messages to the log instead of a broker. It is the
// fallback when no REDIS_ADDR is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Emit(ctx context.Context, topic string, msg Message) error {
	value, err := json.Marshal(msg.Value)
	if err != nil {
		return err
	}

	p.log.InfoContext(ctx, "broker.emit", "topic", topic, "key", msg.Key, "value", string(value))
	return nil
}
