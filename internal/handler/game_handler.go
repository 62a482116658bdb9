package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/gameshow-api/internal/handler/dto"
	apperrors "github.com/yourusername/gameshow-api/internal/pkg/errors"
	"github.com/yourusername/gameshow-api/internal/service"
)

// GameHandler обрабатывает запросы, связанные с определениями игр
type GameHandler struct {
	gameService *service.GameService
}

// NewGameHandler создает новый обработчик игр
func NewGameHandler(gameService *service.GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

// CreateGame обрабатывает запрос на создание игры
// POST /api/games
func (h *GameHandler) CreateGame(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)

	var req dto.GameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.CreateGame(hostID, req.ToEntity())
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.NewGameResponse(game, true))
}

// GetGame возвращает игру хоста вместе со слайдами
// GET /api/games/:id
func (h *GameHandler) GetGame(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	gameID := c.MustGet("gameID").(uint)

	game, err := h.gameService.GetGame(gameID, hostID)
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewGameResponse(game, true))
}

// ListGames возвращает страницу игр хоста
// GET /api/games?limit=20&offset=0
func (h *GameHandler) ListGames(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	games, err := h.gameService.ListGames(hostID, limit, offset)
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	resp := dto.GameListResponse{
		Games:  make([]*dto.GameResponse, 0, len(games)),
		Limit:  limit,
		Offset: offset,
	}
	for i := range games {
		resp.Games = append(resp.Games, dto.NewGameResponse(&games[i], false))
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateGame заменяет определение игры целиком
// PUT /api/games/:id
func (h *GameHandler) UpdateGame(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	gameID := c.MustGet("gameID").(uint)

	var req dto.GameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	game, err := h.gameService.UpdateGame(gameID, hostID, req.ToEntity())
	if err != nil {
		h.handleGameError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewGameResponse(game, true))
}

// DeleteGame удаляет игру хоста
// DELETE /api/games/:id
func (h *GameHandler) DeleteGame(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	gameID := c.MustGet("gameID").(uint)

	if err := h.gameService.DeleteGame(gameID, hostID); err != nil {
		h.handleGameError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// handleGameError преобразует ошибки сервиса в HTTP-ответы
func (h *GameHandler) handleGameError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in GameHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
