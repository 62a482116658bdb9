package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/domain/repository"
	apperrors "github.com/yourusername/gameshow-api/internal/pkg/errors"
)

// FinalizationRepo реализует repository.FinalizationRepository
type FinalizationRepo struct {
	db *gorm.DB
}

// NewFinalizationRepo создает новый репозиторий финализаций
func NewFinalizationRepo(db *gorm.DB) *FinalizationRepo {
	return &FinalizationRepo{db: db}
}

// Save сохраняет запись финализации. Уникальный индекс по session_id
// делает сохранение идемпотентным: повторная попытка для уже сохраненной
// сессии возвращает ErrSessionAlreadyFinalized.
func (r *FinalizationRepo) Save(record *entity.SessionRecord) error {
	row := &entity.FinalizedSession{
		SessionID:   record.SessionID,
		GameID:      record.GameID,
		HostID:      record.HostID,
		FinalStatus: record.FinalStatus,
		PlayerCount: record.PlayerCount,
		StartedAt:   record.StartedAt,
		EndedAt:     record.EndedAt,
		Record:      entity.SessionRecordJSON(*record),
	}

	if err := r.db.Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return repository.ErrSessionAlreadyFinalized
		}
		return err
	}
	return nil
}

// GetBySessionID возвращает сохраненную финализацию сессии
func (r *FinalizationRepo) GetBySessionID(sessionID string) (*entity.FinalizedSession, error) {
	var row entity.FinalizedSession
	err := r.db.Where("session_id = ?", sessionID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

// ListByHost возвращает финализации сессий хоста с пагинацией
func (r *FinalizationRepo) ListByHost(hostID uint, limit, offset int) ([]entity.FinalizedSession, error) {
	var rows []entity.FinalizedSession
	err := r.db.Where("host_id = ?", hostID).
		Order("ended_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	return rows, err
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}

	// lib/pq driver (pq.Error)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
