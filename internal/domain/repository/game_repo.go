package repository

import (
	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// GameRepository определяет методы для работы с определениями игр
type GameRepository interface {
	Create(game *entity.Game) error
	GetByID(id uint) (*entity.Game, error)
	// GetWithBlocks возвращает игру вместе со слайдами, упорядоченными по позиции
	GetWithBlocks(id uint) (*entity.Game, error)
	Update(game *entity.Game) error
	List(hostID uint, limit, offset int) ([]entity.Game, error)
	Delete(id uint) error
}
