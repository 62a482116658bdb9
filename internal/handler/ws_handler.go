package handler

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/yourusername/gameshow-api/internal/service"
	"github.com/yourusername/gameshow-api/internal/websocket"
	"github.com/yourusername/gameshow-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения участников сессии
type WSHandler struct {
	hub        *websocket.Hub
	jwtService *auth.JWTService
}

// NewWSHandler создает новый обработчик WebSocket
func NewWSHandler(hub *websocket.Hub, jwtService *auth.JWTService) *WSHandler {
	return &WSHandler{
		hub:        hub,
		jwtService: jwtService,
	}
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  4096, // Увеличено с 1024 для лучшей производительности при 10k+ пользователей
	WriteBufferSize: 4096, // Увеличено с 1024 для лучшей производительности при 10k+ пользователей
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		// Если Origin пустой - это не браузерный клиент (мобильное приложение, curl и т.д.)
		// Разрешаем такие подключения
		if origin == "" {
			return true
		}

		// Список разрешенных origin (синхронизирован с CORS в main.go)
		// При добавлении новых доменов - добавьте их также в CORS config
		allowedOrigins := []string{
			"http://localhost:5173",
			"http://localhost:8000",
			"http://localhost:3000",
		}

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				return true
			}
		}

		log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
		return false
	},
	EnableCompression: true,
}

// HandleConnection обрабатывает входящее WebSocket соединение.
// Аутентификация выполняется по одноразовому тикету (?ticket=...),
// выданному через REST до открытия соединения.
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// НЕ логируем тикет - это секретные данные аутентификации
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter"})
		return
	}

	// Проверяем тикет с использованием специальной функции ParseWSTicket
	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket"})
		return
	}

	if claims.SessionID == "" || claims.CID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Ticket is not bound to a session"})
		return
	}

	// Устанавливаем соединение
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to upgrade: %v", err)})
		return
	}

	log.Printf("WebSocket: Connection upgraded for CID %s в сессии %s", claims.CID, claims.SessionID)

	// Создаем клиента и регистрируем его в хабе.
	// Хаб сам подпишется на каналы сессии при первом клиенте.
	client := websocket.NewClient(h.hub, conn, claims.SessionID, claims.CID)
	h.hub.Register(client)
	client.StartPumps()
}

// MessageRouter направляет входящие конверты клиентов сервису сессий
type MessageRouter struct {
	sessions *service.SessionService
}

// NewMessageRouter создает маршрутизатор входящих сообщений
func NewMessageRouter(sessions *service.SessionService) *MessageRouter {
	return &MessageRouter{sessions: sessions}
}

// Route обрабатывает конверт, пришедший от подключенного клиента.
// Ошибки обработки логируются, но не закрывают соединение.
func (r *MessageRouter) Route(sessionID, cid string, env *websocket.Envelope) {
	for _, entry := range env.Entries {
		switch entry.Kind {
		case websocket.KindJoin:
			var payload websocket.JoinPayload
			if err := entry.Decode(&payload); err != nil {
				log.Printf("[MessageRouter] Ошибка парсинга запроса входа от %s: %v", cid, err)
				continue
			}
			if err := r.sessions.HandleJoin(sessionID, cid, payload); err != nil {
				log.Printf("[MessageRouter] Ошибка входа клиента %s в сессию %s: %v", cid, sessionID, err)
			}

		case websocket.KindAnswer:
			var payload websocket.AnswerPayload
			if err := entry.Decode(&payload); err != nil {
				log.Printf("[MessageRouter] Ошибка парсинга ответа от %s: %v", cid, err)
				continue
			}
			if err := r.sessions.HandleAnswer(sessionID, cid, payload); err != nil {
				log.Printf("[MessageRouter] Ошибка обработки ответа клиента %s: %v", cid, err)
			}

		default:
			log.Printf("[MessageRouter] Неизвестный тип записи %d от клиента %s", entry.Kind, cid)
		}
	}
}

// HandleDisconnect уведомляет сервис сессий об окончательном отключении клиента
func (r *MessageRouter) HandleDisconnect(sessionID, cid string) {
	r.sessions.HandleDisconnect(sessionID, cid)
}
