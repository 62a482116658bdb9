package websocket

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания pong-ответа от клиента
	pongWait = 60 * time.Second

	// Период отправки ping-сообщений (должен быть меньше pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения
	maxMessageSize = 8192
)

// Client представляет подключенного по WebSocket участника сессии
type Client struct {
	// Идентификатор клиента в рамках сессии
	CID string

	// Идентификатор сессии, к которой привязано соединение
	SessionID string

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал исходящих сообщений
	send chan []byte
}

// NewClient создает клиента для установленного соединения
func NewClient(hub *Hub, conn *websocket.Conn, sessionID, cid string) *Client {
	return &Client{
		CID:       cid,
		SessionID: sessionID,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
	}
}

// Send ставит сообщение в очередь отправки. Возвращает false, если буфер
// клиента переполнен и соединение подлежит закрытию.
func (c *Client) Send(message []byte) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

// StartPumps запускает насосы чтения и записи
func (c *Client) StartPumps() {
	go c.writePump()
	go c.readPump()
}

// readPump читает сообщения из WebSocket и передает их хабу
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("[Client %s] Неожиданная ошибка чтения: %v", c.CID, err)
			}
			break
		}
		c.hub.inbound <- &InboundFrame{Client: c, Payload: message}
	}
}

// writePump пишет сообщения из очереди в WebSocket и поддерживает ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Хаб закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client %s] Ошибка записи: %v", c.CID, err)
				return
			}

			// Отправляем накопившиеся сообщения одним заходом
			n := len(c.send)
			for i := 0; i < n; i++ {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
