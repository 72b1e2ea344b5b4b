package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/uw-ssec/ca-biositing-sub000/internal/platform/logger"
)

// Publisher fans view refresh events out on a pub/sub channel so readers
// can drop cached query results.
type Publisher struct {
	rdb     *goredis.Client
	log     *logger.Logger
	channel string
}

func NewPublisher(rdb *goredis.Client, channel string, log *logger.Logger) *Publisher {
	if channel == "" {
		channel = "biositing.views"
	}
	return &Publisher{rdb: rdb, log: log.With("service", "RedisPublisher"), channel: channel}
}

func (p *Publisher) Channel() string { return p.channel }

// Publish sends v as JSON.
func (p *Publisher) Publish(ctx context.Context, v interface{}) error {
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

// Subscribe calls onMsg for every payload until ctx ends.
func (p *Publisher) Subscribe(ctx context.Context, onMsg func(payload []byte)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	if p == nil || p.rdb == nil {
		return fmt.Errorf("redis publisher not initialized")
	}
	sub := p.rdb.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				onMsg([]byte(m.Payload))
			}
		}
	}()
	return nil
}
