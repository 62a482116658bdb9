package dto

import (
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/handler/helper"
)

// BlockRequest представляет слайд игры в запросе создания или обновления
type BlockRequest struct {
	Kind             string   `json:"kind" binding:"required"`
	Text             string   `json:"text" binding:"required"`
	Choices          []string `json:"choices"`
	CorrectChoices   []int    `json:"correct_choices"`
	AcceptedAnswers  []string `json:"accepted_answers"`
	TimeLimitMs      int64    `json:"time_limit_ms"`
	PointsMultiplier int      `json:"points_multiplier"`
	MediaURL         string   `json:"media_url"`
}

// GameRequest представляет определение игры в запросе создания или обновления
type GameRequest struct {
	Title            string         `json:"title" binding:"required"`
	Description      string         `json:"description"`
	AllowLateJoin    bool           `json:"allow_late_join"`
	PowerUpsEnabled  bool           `json:"power_ups_enabled"`
	AutoStartSeconds int            `json:"auto_start_seconds"`
	BackgroundURL    string         `json:"background_url"`
	Blocks           []BlockRequest `json:"blocks"`
}

// ToEntity преобразует запрос в доменную сущность.
// Позиции слайдов выставляются по порядку следования в запросе.
func (r *GameRequest) ToEntity() *entity.Game {
	game := &entity.Game{
		Title:            r.Title,
		Description:      r.Description,
		AllowLateJoin:    r.AllowLateJoin,
		PowerUpsEnabled:  r.PowerUpsEnabled,
		AutoStartSeconds: r.AutoStartSeconds,
		BackgroundURL:    r.BackgroundURL,
	}
	for i, b := range r.Blocks {
		block := entity.Block{
			Position:         i,
			Kind:             b.Kind,
			Text:             b.Text,
			Choices:          entity.StringArray(b.Choices),
			CorrectChoices:   entity.IntArray(b.CorrectChoices),
			AcceptedAnswers:  entity.StringArray(b.AcceptedAnswers),
			TimeLimitMs:      b.TimeLimitMs,
			PointsMultiplier: b.PointsMultiplier,
			MediaURL:         b.MediaURL,
		}
		if block.TimeLimitMs == 0 {
			block.TimeLimitMs = 20000
		}
		if block.PointsMultiplier == 0 && block.Kind != entity.BlockKindContent && block.Kind != entity.BlockKindSurvey {
			block.PointsMultiplier = 1
		}
		game.Blocks = append(game.Blocks, block)
	}
	return game
}

// BlockResponse представляет слайд в формате для ответа хосту.
// В отличие от проекции игрока включает данные о правильных ответах.
type BlockResponse struct {
	ID               uint                  `json:"id"`
	Position         int                   `json:"position"`
	Kind             string                `json:"kind"`
	Text             string                `json:"text"`
	Choices          []helper.ChoiceOption `json:"choices"`
	CorrectChoices   []int                 `json:"correct_choices"`
	AcceptedAnswers  []string              `json:"accepted_answers,omitempty"`
	TimeLimitMs      int64                 `json:"time_limit_ms"`
	PointsMultiplier int                   `json:"points_multiplier"`
	MediaURL         string                `json:"media_url,omitempty"`
}

// GameResponse представляет игру в формате для ответа хосту
type GameResponse struct {
	ID               uint            `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	AllowLateJoin    bool            `json:"allow_late_join"`
	PowerUpsEnabled  bool            `json:"power_ups_enabled"`
	AutoStartSeconds int             `json:"auto_start_seconds"`
	BackgroundURL    string          `json:"background_url,omitempty"`
	BlockCount       int             `json:"block_count"`
	Blocks           []BlockResponse `json:"blocks,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewBlockResponse создает DTO для слайда
func NewBlockResponse(b *entity.Block) BlockResponse {
	return BlockResponse{
		ID:               b.ID,
		Position:         b.Position,
		Kind:             b.Kind,
		Text:             b.Text,
		Choices:          helper.ConvertChoicesToObjects(b.Choices),
		CorrectChoices:   []int(b.CorrectChoices),
		AcceptedAnswers:  []string(b.AcceptedAnswers),
		TimeLimitMs:      b.TimeLimitMs,
		PointsMultiplier: b.PointsMultiplier,
		MediaURL:         b.MediaURL,
	}
}

// NewGameResponse создает DTO для игры
func NewGameResponse(game *entity.Game, includeBlocks bool) *GameResponse {
	resp := &GameResponse{
		ID:               game.ID,
		Title:            game.Title,
		Description:      game.Description,
		AllowLateJoin:    game.AllowLateJoin,
		PowerUpsEnabled:  game.PowerUpsEnabled,
		AutoStartSeconds: game.AutoStartSeconds,
		BackgroundURL:    game.BackgroundURL,
		BlockCount:       game.BlockCount(),
		CreatedAt:        game.CreatedAt,
		UpdatedAt:        game.UpdatedAt,
	}
	if includeBlocks {
		resp.Blocks = make([]BlockResponse, 0, len(game.Blocks))
		for i := range game.Blocks {
			resp.Blocks = append(resp.Blocks, NewBlockResponse(&game.Blocks[i]))
		}
	}
	return resp
}

// GameListResponse представляет страницу списка игр хоста
type GameListResponse struct {
	Games  []*GameResponse `json:"games"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}
