package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run subscribes to the channel and applies every update it carries until
// the context is cancelled, which is a clean exit. Payloads that do not
// decode are logged and skipped; rejected updates are logged at debug
// level since a feed routinely covers more roads than one extract holds.
func (u *Updater) Run(ctx context.Context, client *redis.Client, channel string) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("feed: subscribe %q: %w", channel, err)
	}
	u.logger.Info("feed subscribed", zap.String("channel", channel))

	updates := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			var up Update
			if err := json.Unmarshal([]byte(msg.Payload), &up); err != nil {
				u.logger.Warn("malformed update", zap.Error(err))
				continue
			}
			if err := u.Apply(up); err != nil {
				u.logger.Debug("update rejected",
					zap.Stringer("edge", up.Edge),
					zap.Error(err))
			}
		}
	}
}
