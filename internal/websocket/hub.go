package websocket

import (
	"context"
	"log"
	"sync"
)

// InboundFrame - сырой кадр, прочитанный из WebSocket-соединения клиента
type InboundFrame struct {
	Client  *Client
	Payload []byte
}

// InboundHandler обрабатывает конверт, пришедший от подключенного клиента
type InboundHandler func(sessionID, cid string, env *Envelope)

// DisconnectHandler вызывается, когда соединение клиента окончательно закрыто
// (при переподключении того же клиента обработчик не вызывается)
type DisconnectHandler func(sessionID, cid string)

// Hub связывает WebSocket-соединения с логическими каналами сессий.
// Широковещательные конверты рассылаются всем соединениям сессии; конверты
// адресного канала доставляются только получателю, указанному в записи.
type Hub struct {
	provider PubSubProvider

	register   chan *Client
	unregister chan *Client
	inbound    chan *InboundFrame

	// sessionID -> (cid -> client)
	mu       sync.RWMutex
	sessions map[string]map[string]*Client

	// Отмена подписок на каналы сессии
	subscriptions map[string]context.CancelFunc

	onInbound    InboundHandler
	onDisconnect DisconnectHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает хаб поверх провайдера Pub/Sub
func NewHub(provider PubSubProvider, onInbound InboundHandler) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		provider:      provider,
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		inbound:       make(chan *InboundFrame, 256),
		sessions:      make(map[string]map[string]*Client),
		subscriptions: make(map[string]context.CancelFunc),
		onInbound:     onInbound,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetDisconnectHandler задает обработчик отключений. Вызывается до Run.
func (h *Hub) SetDisconnectHandler(fn DisconnectHandler) {
	h.onDisconnect = fn
}

// Run запускает главный цикл хаба
func (h *Hub) Run() {
	log.Println("[Hub] Запуск главного цикла")
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case frame := <-h.inbound:
			h.handleInbound(frame)
		case <-h.ctx.Done():
			log.Println("[Hub] Главный цикл остановлен")
			return
		}
	}
}

// Register ставит клиента в очередь на регистрацию
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister ставит клиента в очередь на удаление
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount возвращает число подключенных клиентов сессии
func (h *Hub) ClientCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Close останавливает хаб и закрывает все соединения
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	for sessionID, clients := range h.sessions {
		for _, client := range clients {
			close(client.send)
		}
		delete(h.sessions, sessionID)
	}
	for sessionID, cancelSub := range h.subscriptions {
		cancelSub()
		delete(h.subscriptions, sessionID)
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	clients, exists := h.sessions[client.SessionID]
	if !exists {
		clients = make(map[string]*Client)
		h.sessions[client.SessionID] = clients
	}
	// Повторное подключение того же CID вытесняет старое соединение
	if old, ok := clients[client.CID]; ok {
		close(old.send)
	}
	clients[client.CID] = client
	needSubscribe := !exists
	h.mu.Unlock()

	if needSubscribe {
		h.subscribeSession(client.SessionID)
	}

	log.Printf("[Hub] Клиент %s зарегистрирован в сессии %s", client.CID, client.SessionID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, exists := h.sessions[client.SessionID]
	if !exists {
		return
	}
	// Удаляем только если это то же самое соединение
	if current, ok := clients[client.CID]; ok && current == client {
		delete(clients, client.CID)
		close(client.send)
		log.Printf("[Hub] Клиент %s отключен от сессии %s", client.CID, client.SessionID)
		if h.onDisconnect != nil {
			// Вне блокировки хаба: обработчик может обращаться к хабу
			go h.onDisconnect(client.SessionID, client.CID)
		}
	}
	if len(clients) == 0 {
		delete(h.sessions, client.SessionID)
		if cancelSub, ok := h.subscriptions[client.SessionID]; ok {
			cancelSub()
			delete(h.subscriptions, client.SessionID)
		}
	}
}

// subscribeSession подписывает хаб на оба канала сессии
func (h *Hub) subscribeSession(sessionID string) {
	subCtx, cancelSub := context.WithCancel(h.ctx)

	broadcastCh, err := h.provider.Subscribe(subCtx, SessionBroadcastChannel(sessionID))
	if err != nil {
		log.Printf("[Hub] Ошибка подписки на широковещательный канал сессии %s: %v", sessionID, err)
		cancelSub()
		return
	}
	directCh, err := h.provider.Subscribe(subCtx, SessionDirectChannel(sessionID))
	if err != nil {
		log.Printf("[Hub] Ошибка подписки на адресный канал сессии %s: %v", sessionID, err)
		cancelSub()
		return
	}

	h.mu.Lock()
	h.subscriptions[sessionID] = cancelSub
	h.mu.Unlock()

	go h.forwardBroadcast(sessionID, broadcastCh)
	go h.forwardDirect(sessionID, directCh)
}

// forwardBroadcast рассылает сообщения широковещательного канала всем
// соединениям сессии без разбора содержимого
func (h *Hub) forwardBroadcast(sessionID string, msgCh <-chan []byte) {
	for payload := range msgCh {
		h.mu.RLock()
		for _, client := range h.sessions[sessionID] {
			if !client.Send(payload) {
				log.Printf("[Hub] Буфер клиента %s переполнен, сообщение отброшено", client.CID)
			}
		}
		h.mu.RUnlock()
	}
}

// forwardDirect доставляет записи адресного канала только их получателям
func (h *Hub) forwardDirect(sessionID string, msgCh <-chan []byte) {
	for payload := range msgCh {
		env, err := ParseEnvelope(payload)
		if err != nil {
			log.Printf("[Hub] Ошибка разбора конверта адресного канала сессии %s: %v", sessionID, err)
			continue
		}

		// Группируем записи по получателю, чтобы отправить один кадр на клиента
		byRecipient := make(map[string][]Entry)
		for _, entry := range env.Entries {
			if entry.CID == "" {
				continue
			}
			byRecipient[entry.CID] = append(byRecipient[entry.CID], entry)
		}

		h.mu.RLock()
		for cid, entries := range byRecipient {
			client, ok := h.sessions[sessionID][cid]
			if !ok {
				continue
			}
			data, err := (&Envelope{Entries: entries}).Marshal()
			if err != nil {
				continue
			}
			if !client.Send(data) {
				log.Printf("[Hub] Буфер клиента %s переполнен, адресное сообщение отброшено", cid)
			}
		}
		h.mu.RUnlock()
	}
}

// handleInbound разбирает кадр клиента и передает его обработчику
func (h *Hub) handleInbound(frame *InboundFrame) {
	env, err := ParseEnvelope(frame.Payload)
	if err != nil {
		log.Printf("[Hub] Ошибка разбора входящего кадра от клиента %s: %v", frame.Client.CID, err)
		return
	}
	if h.onInbound != nil {
		h.onInbound(frame.Client.SessionID, frame.Client.CID, env)
	}
}
