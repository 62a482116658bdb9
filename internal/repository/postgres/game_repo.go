package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	apperrors "github.com/yourusername/gameshow-api/internal/pkg/errors"
)

// GameRepo реализует repository.GameRepository
type GameRepo struct {
	db *gorm.DB
}

// NewGameRepo создает новый репозиторий игр
func NewGameRepo(db *gorm.DB) *GameRepo {
	return &GameRepo{db: db}
}

// Create создает новую игру вместе со слайдами
func (r *GameRepo) Create(game *entity.Game) error {
	return r.db.Create(game).Error
}

// GetByID возвращает игру по ID без слайдов
func (r *GameRepo) GetByID(id uint) (*entity.Game, error) {
	var game entity.Game
	err := r.db.First(&game, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// GetWithBlocks возвращает игру вместе со слайдами, упорядоченными по позиции
func (r *GameRepo) GetWithBlocks(id uint) (*entity.Game, error) {
	var game entity.Game
	err := r.db.Preload("Blocks", func(db *gorm.DB) *gorm.DB {
		return db.Order("blocks.position ASC")
	}).First(&game, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &game, nil
}

// Update обновляет игру и пересохраняет ее слайды
func (r *GameRepo) Update(game *entity.Game) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(game).Error; err != nil {
			return err
		}
		// Слайды заменяются целиком: позиции должны оставаться плотными
		if err := tx.Where("game_id = ?", game.ID).Delete(&entity.Block{}).Error; err != nil {
			return err
		}
		if len(game.Blocks) == 0 {
			return nil
		}
		for i := range game.Blocks {
			game.Blocks[i].ID = 0
			game.Blocks[i].GameID = game.ID
		}
		return tx.Create(&game.Blocks).Error
	})
}

// List возвращает игры хоста с пагинацией
func (r *GameRepo) List(hostID uint, limit, offset int) ([]entity.Game, error) {
	var games []entity.Game
	err := r.db.Where("host_id = ?", hostID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&games).Error
	return games, err
}

// Delete удаляет игру вместе со слайдами
func (r *GameRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("game_id = ?", id).Delete(&entity.Block{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&entity.Game{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}
