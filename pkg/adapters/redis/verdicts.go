package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/afo-kingdom/chancellor/internal/logging"
	"github.com/afo-kingdom/chancellor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultVerdictChannel is the pub/sub channel the SSE stream listens on.
const DefaultVerdictChannel = "afo:verdicts"

// VerdictLog publishes verdicts on a pub/sub channel and keeps a capped list
// of recent ones at <channel>:recent so late readers can catch up.
// It implements ports.VerdictLog.
type VerdictLog struct {
	client  *backend.Client
	channel string
	keep    int64
	logger  *slog.Logger
}

// VerdictOption configures the VerdictLog.
type VerdictOption func(*VerdictLog)

// WithChannel overrides the channel name.
func WithChannel(channel string) VerdictOption {
	return func(l *VerdictLog) {
		l.channel = channel
	}
}

// WithRecent sets how many verdicts the recent list keeps.
func WithRecent(n int64) VerdictOption {
	return func(l *VerdictLog) {
		l.keep = n
	}
}

// WithLogger sets the logger used by subscriptions.
func WithLogger(logger *slog.Logger) VerdictOption {
	return func(l *VerdictLog) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewVerdictLog creates a Redis verdict publisher.
func NewVerdictLog(client *backend.Client, opts ...VerdictOption) *VerdictLog {
	l := &VerdictLog{
		client:  client,
		channel: DefaultVerdictChannel,
		keep:    1000,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Channel returns the pub/sub channel name.
func (l *VerdictLog) Channel() string {
	return l.channel
}

func (l *VerdictLog) recentKey() string {
	return l.channel + ":recent"
}

// Publish broadcasts the verdict and records it in the recent list.
func (l *VerdictLog) Publish(ctx context.Context, event domain.VerdictEvent) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal verdict: %w", err)
	}

	pipe := l.client.Pipeline()
	pipe.LPush(ctx, l.recentKey(), data)
	pipe.LTrim(ctx, l.recentKey(), 0, l.keep-1)
	pipe.Publish(ctx, l.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish verdict: %w", err)
	}
	return nil
}

// Verdicts reads the recent list, newest last.
func (l *VerdictLog) Verdicts(ctx context.Context, traceID string, limit int) ([]domain.VerdictEvent, error) {
	raw, err := l.client.LRange(ctx, l.recentKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read verdicts: %w", err)
	}
	// The list is newest first.
	slices.Reverse(raw)

	var out []domain.VerdictEvent
	for _, item := range raw {
		var v domain.VerdictEvent
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, fmt.Errorf("failed to decode verdict: %w", err)
		}
		if traceID == "" || v.TraceID == traceID {
			out = append(out, v)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Subscribe streams verdicts published on the channel until ctx is done.
// The returned channel is closed when the subscription ends. Undecodable
// payloads are logged and skipped.
func (l *VerdictLog) Subscribe(ctx context.Context) (<-chan domain.VerdictEvent, error) {
	sub := l.client.Subscribe(ctx, l.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", l.channel, err)
	}

	out := make(chan domain.VerdictEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var v domain.VerdictEvent
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					l.logger.Warn("dropping malformed verdict", "channel", msg.Channel, "err", err)
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
