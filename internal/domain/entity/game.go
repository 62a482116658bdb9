package entity

import (
	"time"
)

// Game представляет определение игры (набор слайдов), из которого хост
// запускает живые сессии. Само определение неизменно во время сессии.
type Game struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	HostID           uint      `gorm:"not null;index" json:"host_id"`
	Title            string    `gorm:"size:100;not null" json:"title"`
	Description      string    `gorm:"size:500;not null;default:''" json:"description"`
	AllowLateJoin    bool      `gorm:"not null;default:false" json:"allow_late_join"`
	PowerUpsEnabled  bool      `gorm:"not null;default:false" json:"power_ups_enabled"`
	AutoStartSeconds int       `gorm:"not null;default:0" json:"auto_start_seconds"`
	BackgroundURL    string    `gorm:"size:255;not null;default:''" json:"background_url"`
	Blocks           []Block   `gorm:"foreignKey:GameID" json:"blocks,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Game) TableName() string {
	return "games"
}

// BlockAt возвращает блок по позиции или nil, если данных для позиции нет.
// Позиции считаются от нуля в порядке следования слайдов.
func (g *Game) BlockAt(position int) *Block {
	if position < 0 || position >= len(g.Blocks) {
		return nil
	}
	return &g.Blocks[position]
}

// BlockCount возвращает количество слайдов в игре
func (g *Game) BlockCount() int {
	return len(g.Blocks)
}
