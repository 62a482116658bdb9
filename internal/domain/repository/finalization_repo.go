package repository

import (
	"context"
	"errors"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

var (
	// ErrSessionAlreadyFinalized означает, что запись финализации для этой
	// сессии уже сохранена (повторная попытка после успешной не нужна).
	ErrSessionAlreadyFinalized = errors.New("session is already finalized")
)

// FinalizationRepository определяет методы для устойчивого хранения
// записей финализации сессий
type FinalizationRepository interface {
	Save(record *entity.SessionRecord) error
	GetBySessionID(sessionID string) (*entity.FinalizedSession, error)
	ListByHost(hostID uint, limit, offset int) ([]entity.FinalizedSession, error)
}

// FinalizationPublisher отправляет запись финализации во внешнюю систему
// хранения одним запросом. Вызов повторяем: при ошибке состояние сессии
// не отбрасывается, хост может повторить отправку той же записи.
type FinalizationPublisher interface {
	Publish(ctx context.Context, record *entity.SessionRecord) error
}
