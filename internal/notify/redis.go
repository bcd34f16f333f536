package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	rd "github.com/redis/go-redis/v9"
)

// RedisPublisher broadcasts events over Redis pub/sub, once per channel.
type RedisPublisher struct {
	rdb      *rd.Client
	channels []string
}

// NewRedisPublisher publishes on the given channels, or on orders and admin-notifications when none are given.
func NewRedisPublisher(rdb *rd.Client, channels ...string) *RedisPublisher {
	if len(channels) == 0 {
		channels = []string{ChannelOrders, ChannelAdmin}
	}
	return &RedisPublisher{rdb: rdb, channels: channels}
}

func (p *RedisPublisher) Emit(ctx context.Context, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	var errs []error
	for _, ch := range p.channels {
		if err := p.rdb.Publish(ctx, ch, b).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", ch, err))
		}
	}
	return errors.Join(errs...)
}
