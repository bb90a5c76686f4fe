package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/socialnet/socket/src/types"
)

// RedisIngest subscribes to Redis pub/sub channels on which the REST API
// publishes private messages and notifications, and dispatches them to
// online recipients. Events for offline users are dropped like any other.
type RedisIngest struct {
	client *redis.Client
	prefix string
	target Dispatcher
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	active bool
}

// NewRedisIngest creates an ingest listening on <prefix>messages and
// <prefix>notifications. The client is owned by the caller.
func NewRedisIngest(client *redis.Client, prefix string, target Dispatcher, logger zerolog.Logger) *RedisIngest {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisIngest{
		client: client,
		prefix: prefix,
		target: target,
		logger: logger.With().Str("component", "redis-ingest").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// MessagesChannel is the channel carrying privateMessage payloads.
func (b *RedisIngest) MessagesChannel() string { return b.prefix + "messages" }

// NotificationsChannel is the channel carrying notification payloads.
func (b *RedisIngest) NotificationsChannel() string { return b.prefix + "notifications" }

// Start subscribes and begins dispatching.
func (b *RedisIngest) Start() error {
	if err := b.client.Ping(b.ctx).Err(); err != nil {
		return err
	}

	sub := b.client.Subscribe(b.ctx, b.MessagesChannel(), b.NotificationsChannel())

	// Wait for subscription confirmation.
	if _, err := sub.Receive(b.ctx); err != nil {
		_ = sub.Close()
		return err
	}

	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.listen(sub)

	b.logger.Info().
		Str("messages", b.MessagesChannel()).
		Str("notifications", b.NotificationsChannel()).
		Msg("redis ingest started")
	return nil
}

// Stop unsubscribes and waits for the listener to exit.
func (b *RedisIngest) Stop() error {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	return nil
}

// Available reports whether the ingest is subscribed.
func (b *RedisIngest) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

func (b *RedisIngest) listen(sub *redis.PubSub) {
	defer b.wg.Done()
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := b.handle(msg.Channel, []byte(msg.Payload)); err != nil {
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping bridged event")
			}
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *RedisIngest) handle(channel string, payload []byte) error {
	switch channel {
	case b.MessagesChannel():
		var pm types.PrivateMessage
		if err := json.Unmarshal(payload, &pm); err != nil {
			return err
		}
		if pm.From == "" || pm.To == "" {
			return errors.New("missing from or to")
		}
		return b.target.SendMessage(pm.From, pm.To, pm.Message)
	case b.NotificationsChannel():
		var n types.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			return err
		}
		if n.To == "" {
			return errors.New("missing to")
		}
		return b.target.Notify(n.To, n.Type, n.Content)
	}
	return nil
}
