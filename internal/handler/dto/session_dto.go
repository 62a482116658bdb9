package dto

import (
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// CreateSessionRequest представляет запрос хоста на запуск живой сессии
type CreateSessionRequest struct {
	GameID uint `json:"game_id" binding:"required"`
}

// SessionCreatedResponse возвращается хосту после создания сессии
type SessionCreatedResponse struct {
	SessionID string `json:"session_id"`
	PIN       string `json:"pin"`
}

// ResolvePinRequest представляет запрос игрока на резолв PIN-кода
type ResolvePinRequest struct {
	PIN string `json:"pin" binding:"required"`
}

// ResolvePinResponse возвращает идентификатор сессии по PIN
type ResolvePinResponse struct {
	SessionID string `json:"session_id"`
}

// ActiveSessionsResponse перечисляет живые сессии хоста
type ActiveSessionsResponse struct {
	SessionIDs []string `json:"session_ids"`
}

// TicketResponse содержит одноразовый тикет для открытия WebSocket соединения
type TicketResponse struct {
	Ticket    string `json:"ticket"`
	SessionID string `json:"session_id"`
	CID       string `json:"cid"`
}

// BackgroundRequest представляет команду хоста на смену фона зала ожидания
type BackgroundRequest struct {
	URL string `json:"url" binding:"required"`
}

// AutoStartRequest представляет команду хоста на изменение таймера автостарта
type AutoStartRequest struct {
	Seconds int `json:"seconds"`
}

// FinalizedSessionResponse представляет сохраненную запись финализации
// в сокращенном виде для списков
type FinalizedSessionResponse struct {
	ID          uint      `json:"id"`
	SessionID   string    `json:"session_id"`
	GameID      uint      `json:"game_id"`
	FinalStatus string    `json:"final_status"`
	PlayerCount int       `json:"player_count"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewFinalizedSessionResponse создает DTO для записи финализации
func NewFinalizedSessionResponse(fs *entity.FinalizedSession) *FinalizedSessionResponse {
	return &FinalizedSessionResponse{
		ID:          fs.ID,
		SessionID:   fs.SessionID,
		GameID:      fs.GameID,
		FinalStatus: fs.FinalStatus,
		PlayerCount: fs.PlayerCount,
		StartedAt:   fs.StartedAt,
		EndedAt:     fs.EndedAt,
		CreatedAt:   fs.CreatedAt,
	}
}
