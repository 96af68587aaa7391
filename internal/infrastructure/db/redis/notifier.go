package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// MembersChannel is the pub/sub channel announcing directory changes.
const MembersChannel = "members:changed"

// ChangeNotifier fans directory changes out to every instance through Redis
// pub/sub. Messages carry no payload: watchers reload the list.
type ChangeNotifier struct {
	client  *redis.Client
	channel string
}

func NewChangeNotifier(client *redis.Client) *ChangeNotifier {
	return &ChangeNotifier{client: client, channel: MembersChannel}
}

func (n *ChangeNotifier) NotifyChanged(ctx context.Context) error {
	if err := n.client.Publish(ctx, n.channel, "1").Err(); err != nil {
		return fmt.Errorf("publish member change: %w", err)
	}
	return nil
}

// Watch subscribes to the channel. Consecutive changes that arrive while the
// previous signal is unread are merged into one.
func (n *ChangeNotifier) Watch(ctx context.Context) (<-chan struct{}, func(), error) {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe member changes: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan struct{}, 1)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, cancel, nil
}
