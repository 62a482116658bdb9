package sessionmanager

import (
	"time"

	"github.com/yourusername/gameshow-api/internal/websocket"
)

// Constants for default values
const (
	DefaultBasePoints = 1000
)

// Config содержит настройки для всех компонентов SessionManager
type Config struct {
	// Таймауты и интервалы
	CountdownTick time.Duration // Интервал тика обратного отсчета автостарта
	RetryInterval time.Duration // Интервал между повторными попытками отправки

	// Настройки подсчета очков
	BasePoints        int     // Базовые очки за мгновенный правильный ответ
	SpeedFloorRatio   float64 // Доля базовых очков на границе лимита времени
	StreakBonusRatio  float64 // Надбавка за каждый шаг серии правильных ответов
	StreakBonusCap    int     // Максимальное число шагов серии, дающих надбавку

	// Настройки подиума
	PodiumSize int // Сколько игроков показывать на подиуме

	// Максимальное количество попыток отправки финализации
	MaxRetries int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		CountdownTick:    time.Second,
		RetryInterval:    500 * time.Millisecond,
		BasePoints:       DefaultBasePoints,
		SpeedFloorRatio:  0.5,
		StreakBonusRatio: 0.1,
		StreakBonusCap:   5,
		PodiumSize:       5,
		MaxRetries:       3,
	}
}

// ChannelPublisher публикует конверты в логические каналы сессии.
// Реализуется клиентом каналов; в тестах подменяется на запись в память.
type ChannelPublisher interface {
	Publish(channel string, env *websocket.Envelope) error
}
