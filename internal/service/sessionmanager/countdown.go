package sessionmanager

import (
	"log"
	"sync"
	"time"
)

// Countdown - таймер автостарта сессии. Активен только пока сессия в LOBBY,
// автостарт включен и в зале есть хотя бы один игрок; нарушение любого
// условия снимает таймер. Владелец состояния сессии следит за условиями
// и вызывает Start/Cancel; сам таймер условий не знает.
type Countdown struct {
	config *Config

	mu        sync.Mutex
	remaining int
	cancelCh  chan struct{}
	running   bool
}

// NewCountdown создает новый таймер автостарта
func NewCountdown(config *Config) *Countdown {
	return &Countdown{config: config}
}

// Start запускает отсчет с указанной длительности. Если отсчет уже идет,
// он сбрасывается на новую длительность без двойного срабатывания.
// onTick вызывается на каждом тике с числом оставшихся секунд,
// onFire - ровно один раз при достижении нуля.
func (c *Countdown) Start(seconds int, onTick func(remaining int), onFire func()) {
	if seconds <= 0 {
		return
	}

	c.mu.Lock()
	if c.running {
		// Перезапуск с новой длительностью: старый цикл снимается
		close(c.cancelCh)
	}
	cancelCh := make(chan struct{})
	c.cancelCh = cancelCh
	c.remaining = seconds
	c.running = true
	c.mu.Unlock()

	log.Printf("[Countdown] Отсчет автостарта запущен: %d сек", seconds)

	go c.run(cancelCh, onTick, onFire)
}

func (c *Countdown) run(cancelCh chan struct{}, onTick func(remaining int), onFire func()) {
	ticker := time.NewTicker(c.config.CountdownTick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			// Цикл мог быть вытеснен перезапуском между тиком и захватом
			if c.cancelCh != cancelCh {
				c.mu.Unlock()
				return
			}
			c.remaining--
			remaining := c.remaining
			fired := remaining <= 0
			if fired {
				c.running = false
			}
			c.mu.Unlock()

			if fired {
				log.Println("[Countdown] Отсчет завершен, запускаем сессию")
				onFire()
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
		case <-cancelCh:
			return
		}
	}
}

// Cancel снимает активный отсчет. Счетчик очищается: повторный запуск
// начинается с настроенной длительности, а не с места остановки.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.cancelCh)
	c.cancelCh = nil
	c.running = false
	c.remaining = 0
	log.Println("[Countdown] Отсчет автостарта отменен")
}

// Active сообщает, идет ли отсчет
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Remaining возвращает оставшиеся секунды (0, если отсчет не идет)
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return 0
	}
	return c.remaining
}
