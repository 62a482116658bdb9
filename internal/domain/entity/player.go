package entity

import (
	"fmt"
	"time"
)

// Статусы игрока в рамках сессии
const (
	PlayerStatusJoining      = "JOINING"
	PlayerStatusPlaying      = "PLAYING"
	PlayerStatusFinished     = "FINISHED"
	PlayerStatusDisconnected = "DISCONNECTED"
	PlayerStatusKicked       = "KICKED"
)

// Player представляет участника сессии, идентифицируемого эфемерным
// client id соединения (не учетной записью). Игрок никогда физически
// не удаляется из ростера во время сессии: кик и отключение меняют
// только статус, чтобы статистика и финализация оставались полными.
type Player struct {
	ClientID         string         `json:"client_id"`
	Nickname         string         `json:"nickname"`
	AccountID        *uint          `json:"account_id,omitempty"`
	Status           string         `json:"status"`
	Connected        bool           `json:"connected"`
	JoinedAt         time.Time      `json:"joined_at"`
	JoinedAtPosition int            `json:"joined_at_position"`
	LastActivityAt   time.Time      `json:"last_activity_at"`
	Rank             int            `json:"rank"`
	CurrentStreak    int            `json:"current_streak"`
	MaxStreak        int            `json:"max_streak"`
	Answers          []PlayerAnswer `json:"answers"`
}

// Score возвращает суммарный счет игрока как чистую свертку его записей
// об ответах. Счет нигде не хранится и не мутируется напрямую.
func (p *Player) Score() int {
	total := 0
	for _, a := range p.Answers {
		total += a.FinalPoints
	}
	return total
}

// CorrectCount возвращает число верных ответов
func (p *Player) CorrectCount() int {
	count := 0
	for _, a := range p.Answers {
		if a.IsCorrect() {
			count++
		}
	}
	return count
}

// HasAnswered проверяет, отвечал ли игрок на слайд с данной позицией
func (p *Player) HasAnswered(position int) bool {
	for _, a := range p.Answers {
		if a.BlockPosition == position {
			return true
		}
	}
	return false
}

// AppendAnswer добавляет запись об ответе, соблюдая инвариант
// "не более одной записи на (игрок, позиция слайда)".
func (p *Player) AppendAnswer(answer PlayerAnswer) error {
	if p.HasAnswered(answer.BlockPosition) {
		return fmt.Errorf("player %s already answered block %d", p.ClientID, answer.BlockPosition)
	}

	p.Answers = append(p.Answers, answer)
	p.CurrentStreak = answer.StreakAfter
	if p.CurrentStreak > p.MaxStreak {
		// Максимальный стрик - монотонная отметка, переживающая сбросы
		p.MaxStreak = p.CurrentStreak
	}
	return nil
}

// IsKicked проверяет, был ли игрок исключен хостом
func (p *Player) IsKicked() bool {
	return p.Status == PlayerStatusKicked
}

// IsActive проверяет, участвует ли игрок в игре (не кикнут и не отключен)
func (p *Player) IsActive() bool {
	return p.Status == PlayerStatusJoining || p.Status == PlayerStatusPlaying
}
