package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// Имена логических каналов сессии. Широковещательный канал видят все
// участники; канал адресных сообщений разбирается хабом по получателю.
const (
	broadcastChannelPrefix = "session:broadcast:"
	directChannelPrefix    = "session:direct:"
)

// SessionBroadcastChannel возвращает имя широковещательного канала сессии
func SessionBroadcastChannel(sessionID string) string {
	return broadcastChannelPrefix + sessionID
}

// SessionDirectChannel возвращает имя канала адресных сообщений сессии
func SessionDirectChannel(sessionID string) string {
	return directChannelPrefix + sessionID
}

// EnvelopeHandler обрабатывает конверт, полученный из подписанного канала
type EnvelopeHandler func(env *Envelope)

// ChannelClient - клиент логических каналов поверх PubSubProvider.
// Один клиент соответствует одному логическому участнику (движку сессии или
// соединению). Обработчики одного клиента вызываются последовательно: порядок
// сообщений в пределах канала сохраняется.
type ChannelClient struct {
	provider PubSubProvider

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	connected bool
	handlers  map[string]EnvelopeHandler

	// Все сообщения всех подписок клиента проходят через одну очередь,
	// чтобы обработчики не выполнялись конкурентно
	inbox chan inboundMessage
	wg    sync.WaitGroup

	onError func(err error)
}

type inboundMessage struct {
	channel string
	payload []byte
}

// NewChannelClient создает клиента каналов поверх провайдера
func NewChannelClient(provider PubSubProvider) *ChannelClient {
	return &ChannelClient{
		provider: provider,
		handlers: make(map[string]EnvelopeHandler),
		inbox:    make(chan inboundMessage, 256),
	}
}

// Connect запускает цикл доставки. onConnected вызывается после запуска,
// onError - при ошибках разбора входящих сообщений.
func (c *ChannelClient) Connect(onConnected func(), onError func(err error)) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return errors.New("channel client already connected")
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.connected = true
	c.onError = onError
	c.mu.Unlock()

	c.wg.Add(1)
	go c.deliverLoop()

	if onConnected != nil {
		onConnected()
	}
	return nil
}

// Subscribe подписывает клиента на канал. Повторная подписка на тот же канал
// заменяет обработчик, но не создает вторую подписку у провайдера.
func (c *ChannelClient) Subscribe(channel string, handler EnvelopeHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return errors.New("channel client is not connected")
	}
	if _, exists := c.handlers[channel]; exists {
		c.handlers[channel] = handler
		return nil
	}

	msgCh, err := c.provider.Subscribe(c.ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}
	c.handlers[channel] = handler

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case payload, ok := <-msgCh:
				if !ok {
					return
				}
				select {
				case c.inbox <- inboundMessage{channel: channel, payload: payload}:
				case <-c.ctx.Done():
					return
				}
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Publish публикует конверт в канал
func (c *ChannelClient) Publish(channel string, env *Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return c.provider.Publish(channel, data)
}

// Disconnect снимает все подписки и останавливает доставку
func (c *ChannelClient) Disconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.handlers = make(map[string]EnvelopeHandler)
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *ChannelClient) deliverLoop() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.inbox:
			env, err := ParseEnvelope(msg.payload)
			if err != nil {
				log.Printf("ChannelClient: Error parsing envelope from channel '%s': %v", msg.channel, err)
				if c.onError != nil {
					c.onError(err)
				}
				continue
			}
			c.mu.Lock()
			handler := c.handlers[msg.channel]
			c.mu.Unlock()
			if handler != nil {
				handler(env)
			}
		case <-c.ctx.Done():
			return
		}
	}
}
