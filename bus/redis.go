package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis publishes every hub channel to <prefix><channel> and pattern-subscribes
// to <prefix>* so an instance receives traffic for connections it holds no
// matter which instance produced it.
type Redis struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

func NewRedis(rdb *redis.Client, prefix string, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, log: log}
}

// DialRedis connects and pings before returning.
func DialRedis(ctx context.Context, addr, password string, db int, prefix string, log *zap.Logger) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return NewRedis(rdb, prefix, log), nil
}

func (b *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, b.prefix+channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (b *Redis) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.mu.Unlock()

	ps := b.rdb.PSubscribe(ctx, b.prefix+"*")
	// Wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("psubscribe %s*: %w", b.prefix, err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, ps)
	b.mu.Unlock()

	ch := ps.Channel()
	go func() {
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				channel := strings.TrimPrefix(msg.Channel, b.prefix)
				h(channel, []byte(msg.Payload))
			}
		}
	}()
	b.log.Info("bus subscribed", zap.String("pattern", b.prefix+"*"))
	return nil
}

func (b *Redis) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	return b.rdb.Close()
}
