package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/starsky/internal/model"
)

// DefaultChannel задаёт канал Redis для событий неба.
const DefaultChannel = "starsky:events"

// NewRedisClient подключается к Redis по URL и проверяет соединение.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// RedisBroker публикует события в Redis, чтобы их получили все экземпляры сервиса,
// и пересылает полученные события в локальный Hub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   *Hub
	logger  *zap.Logger
}

// NewRedisBroker создаёт брокер поверх существующего клиента Redis.
func NewRedisBroker(client *redis.Client, channel string, local *Hub, logger *zap.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With(zap.String("component", "redis-broker")),
	}
}

// Publish отправляет событие в канал Redis.
func (b *RedisBroker) Publish(ctx context.Context, ev model.StarEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run подписывается на канал и пересылает события в локальный Hub до отмены контекста.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev model.StarEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.logger.Warn("malformed star event", zap.Error(err))
				continue
			}
			if err := b.local.Publish(ctx, ev); err != nil {
				b.logger.Warn("relay star event", zap.Error(err))
			}
		}
	}
}

// Close закрывает соединение с Redis.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
