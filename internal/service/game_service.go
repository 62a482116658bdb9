package service

import (
	"fmt"
	"strings"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/domain/repository"
	apperrors "github.com/yourusername/gameshow-api/internal/pkg/errors"
)

const (
	maxGameTitleLength  = 100
	maxBlocksPerGame    = 100
	minBlockTimeLimitMs = 1000
	maxBlockTimeLimitMs = 240000
)

// GameService предоставляет методы для работы с определениями игр
type GameService struct {
	gameRepo repository.GameRepository
}

// NewGameService создает новый сервис игр
func NewGameService(gameRepo repository.GameRepository) *GameService {
	return &GameService{gameRepo: gameRepo}
}

// CreateGame валидирует и сохраняет новое определение игры
func (s *GameService) CreateGame(hostID uint, game *entity.Game) (*entity.Game, error) {
	game.ID = 0
	game.HostID = hostID

	if err := s.validateGame(game); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	normalizeBlockPositions(game)

	if err := s.gameRepo.Create(game); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	return game, nil
}

// GetGame возвращает игру вместе со слайдами.
// Хост видит игру целиком, включая данные о правильных ответах.
func (s *GameService) GetGame(gameID, hostID uint) (*entity.Game, error) {
	game, err := s.gameRepo.GetWithBlocks(gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID != hostID {
		return nil, apperrors.ErrForbidden
	}
	return game, nil
}

// ListGames возвращает страницу игр хоста
func (s *GameService) ListGames(hostID uint, limit, offset int) ([]entity.Game, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.gameRepo.List(hostID, limit, offset)
}

// UpdateGame заменяет определение игры целиком, включая слайды
func (s *GameService) UpdateGame(gameID, hostID uint, game *entity.Game) (*entity.Game, error) {
	existing, err := s.gameRepo.GetByID(gameID)
	if err != nil {
		return nil, err
	}
	if existing.HostID != hostID {
		return nil, apperrors.ErrForbidden
	}

	game.ID = gameID
	game.HostID = hostID
	if err := s.validateGame(game); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	normalizeBlockPositions(game)

	if err := s.gameRepo.Update(game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}
	return game, nil
}

// DeleteGame удаляет игру хоста вместе со слайдами
func (s *GameService) DeleteGame(gameID, hostID uint) error {
	existing, err := s.gameRepo.GetByID(gameID)
	if err != nil {
		return err
	}
	if existing.HostID != hostID {
		return apperrors.ErrForbidden
	}
	return s.gameRepo.Delete(gameID)
}

// validateGame проверяет определение игры перед сохранением
func (s *GameService) validateGame(game *entity.Game) error {
	game.Title = strings.TrimSpace(game.Title)
	if game.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(game.Title) > maxGameTitleLength {
		return fmt.Errorf("title must be at most %d characters", maxGameTitleLength)
	}
	if len(game.Blocks) > maxBlocksPerGame {
		return fmt.Errorf("game must have at most %d blocks", maxBlocksPerGame)
	}
	if game.AutoStartSeconds < 0 {
		return fmt.Errorf("auto start seconds must not be negative")
	}

	for i := range game.Blocks {
		if err := validateBlock(&game.Blocks[i]); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

// validateBlock проверяет один слайд в зависимости от его типа
func validateBlock(block *entity.Block) error {
	block.Text = strings.TrimSpace(block.Text)
	if block.Text == "" {
		return fmt.Errorf("text is required")
	}

	switch block.Kind {
	case entity.BlockKindContent:
		// Контентный слайд не имеет ни вариантов, ни таймера
		return nil

	case entity.BlockKindQuiz:
		if len(block.Choices) < 2 {
			return fmt.Errorf("quiz block requires at least 2 choices")
		}
		if len(block.CorrectChoices) == 0 {
			return fmt.Errorf("quiz block requires at least one correct choice")
		}
		for _, c := range block.CorrectChoices {
			if !block.IsValidChoice(c) {
				return fmt.Errorf("correct choice %d is out of range", c)
			}
		}

	case entity.BlockKindJumble:
		if len(block.Choices) < 2 {
			return fmt.Errorf("jumble block requires at least 2 choices")
		}
		if len(block.CorrectChoices) != len(block.Choices) {
			return fmt.Errorf("jumble block requires a full ordering of its choices")
		}
		for _, c := range block.CorrectChoices {
			if !block.IsValidChoice(c) {
				return fmt.Errorf("ordering index %d is out of range", c)
			}
		}

	case entity.BlockKindOpenEnded:
		if len(block.AcceptedAnswers) == 0 {
			return fmt.Errorf("open ended block requires at least one accepted answer")
		}

	case entity.BlockKindSurvey:
		if len(block.Choices) < 2 {
			return fmt.Errorf("survey block requires at least 2 choices")
		}

	default:
		return fmt.Errorf("unknown block kind %q", block.Kind)
	}

	if block.TimeLimitMs < minBlockTimeLimitMs || block.TimeLimitMs > maxBlockTimeLimitMs {
		return fmt.Errorf("time limit must be between %d and %d ms", minBlockTimeLimitMs, maxBlockTimeLimitMs)
	}
	if block.PointsMultiplier < 0 || block.PointsMultiplier > 10 {
		return fmt.Errorf("points multiplier must be between 0 and 10")
	}
	return nil
}

// normalizeBlockPositions выставляет позиции слайдов в порядке следования
func normalizeBlockPositions(game *entity.Game) {
	for i := range game.Blocks {
		game.Blocks[i].Position = i
	}
}
