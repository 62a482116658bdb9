package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// PubSubProvider определяет интерфейс для провайдеров публикации/подписки.
// Гарантируется порядок доставки в пределах одного канала; между каналами
// порядок не гарантируется.
type PubSubProvider interface {
	// Publish публикует сообщение в указанный канал
	Publish(channel string, message []byte) error

	// Subscribe подписывается на указанный канал и возвращает канал для сообщений
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	// Close закрывает все соединения и освобождает ресурсы
	Close() error
}

// MemoryPubSub реализует PubSubProvider для одиночного режима работы:
// сообщения раздаются локальным подписчикам внутри процесса. Используется,
// когда Redis не сконфигурирован, и в тестах.
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[string][]chan []byte
	closed bool
}

// NewMemoryPubSub создает внутрипроцессный Pub/Sub провайдер
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{
		subs: make(map[string][]chan []byte),
	}
}

// Publish раздает сообщение всем локальным подписчикам канала
func (p *MemoryPubSub) Publish(channel string, message []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.New("memory pubsub is closed")
	}

	for _, ch := range p.subs[channel] {
		select {
		case ch <- message:
		default:
			// Подписчик не успевает разбирать буфер - сообщение отбрасывается,
			// как это сделал бы и внешний брокер
			log.Printf("MemoryPubSub: subscriber buffer full on channel '%s', dropping message", channel)
		}
	}
	return nil
}

// Subscribe подписывается на канал; подписка снимается отменой контекста
func (p *MemoryPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New("memory pubsub is closed")
	}

	msgCh := make(chan []byte, 100)
	p.subs[channel] = append(p.subs[channel], msgCh)

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		subscribers := p.subs[channel]
		for i, ch := range subscribers {
			if ch == msgCh {
				p.subs[channel] = append(subscribers[:i], subscribers[i+1:]...)
				close(msgCh)
				break
			}
		}
	}()

	return msgCh, nil
}

// Close закрывает провайдер и все подписки
func (p *MemoryPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for channel, subscribers := range p.subs {
		for _, ch := range subscribers {
			close(ch)
		}
		delete(p.subs, channel)
	}
	return nil
}

// RedisPubSub реализует PubSubProvider с использованием Redis
type RedisPubSub struct {
	client        redis.UniversalClient
	ctx           context.Context
	cancel        context.CancelFunc
	subscriptions sync.Map // channel -> *redis.PubSub
	mu            sync.Mutex
}

// NewRedisPubSub создает новый Redis Pub/Sub провайдер, используя существующий UniversalClient.
func NewRedisPubSub(client redis.UniversalClient) (*RedisPubSub, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil for RedisPubSub")
	}

	// Проверяем соединение клиента перед использованием
	ctx, cancelCheck := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelCheck()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("provided redis client failed ping check: %w", err)
	}

	ctxPubSub, cancelPubSub := context.WithCancel(context.Background())

	rp := &RedisPubSub{
		client: client,
		ctx:    ctxPubSub,
		cancel: cancelPubSub,
	}

	log.Println("RedisPubSub provider created using existing client.")
	return rp, nil
}

// Publish публикует сообщение в указанный канал
func (p *RedisPubSub) Publish(channel string, message []byte) error {
	cmd := p.client.Publish(p.ctx, channel, message)
	if err := cmd.Err(); err != nil {
		log.Printf("RedisPubSub: Error publishing to channel '%s': %v", channel, err)
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe подписывается на указанный канал Redis
func (p *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Printf("RedisPubSub: Subscribing to channel '%s'", channel)

	pubsub := p.client.Subscribe(p.ctx, channel)

	// Ждем подтверждения подписки
	if _, err := pubsub.Receive(p.ctx); err != nil {
		pubsub.Close()
		log.Printf("RedisPubSub: Error receiving subscription confirmation for channel '%s': %v", channel, err)
		return nil, fmt.Errorf("failed to subscribe to Redis channel %s: %w", channel, err)
	}

	p.subscriptions.Store(pubsub, channel)

	msgCh := make(chan []byte, 100)

	// Горутина читает сообщения из Redis и пересылает их подписчику
	go func() {
		defer func() {
			p.subscriptions.Delete(pubsub)
			pubsub.Close()
			close(msgCh)
			log.Printf("RedisPubSub: Unsubscribed and closed channel '%s'", channel)
		}()

		redisCh := pubsub.Channel()
		for {
			select {
			case msg, ok := <-redisCh:
				if !ok {
					log.Printf("RedisPubSub: Redis channel '%s' closed by server.", channel)
					return
				}
				select {
				case msgCh <- []byte(msg.Payload):
				case <-p.ctx.Done():
					return
				case <-ctx.Done():
					return
				}
			case <-p.ctx.Done():
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return msgCh, nil
}

// Close закрывает все активные подписки и клиента Redis
func (p *RedisPubSub) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Println("RedisPubSub: Closing Redis client and all subscriptions...")
	p.cancel()

	var lastErr error

	p.subscriptions.Range(func(key, value interface{}) bool {
		if pubsub, ok := key.(*redis.PubSub); ok {
			if err := pubsub.Close(); err != nil {
				log.Printf("RedisPubSub: Error closing subscription to channel '%v': %v", value, err)
				lastErr = err
			}
		}
		return true
	})

	if p.client != nil {
		if err := p.client.Close(); err != nil {
			log.Printf("RedisPubSub: Error closing Redis client: %v", err)
			lastErr = err
		}
	}

	log.Println("RedisPubSub: Closed.")
	return lastErr
}
