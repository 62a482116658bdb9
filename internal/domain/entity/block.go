package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math/rand"
	"time"
)

// StringArray - пользовательский тип для работы с JSONB
type StringArray []string

// Scan реализует интерфейс sql.Scanner для StringArray
// Используется GORM для чтения JSONB данных из базы
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// IntArray - аналогичный тип для массива индексов в JSONB
type IntArray []int

// Scan реализует интерфейс sql.Scanner для IntArray
func (o *IntArray) Scan(value interface{}) error {
	if value == nil {
		*o = IntArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = IntArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value реализует интерфейс driver.Valuer для IntArray
func (o IntArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(o)
}

// Виды блоков (слайдов) игры
const (
	// BlockKindContent - информационный слайд, не оценивается и не принимает ответов
	BlockKindContent = "content"

	// BlockKindQuiz - вопрос с выбором варианта (одиночным или множественным)
	BlockKindQuiz = "quiz"

	// BlockKindJumble - вопрос на упорядочивание вариантов
	BlockKindJumble = "jumble"

	// BlockKindOpenEnded - вопрос со свободным текстовым ответом
	BlockKindOpenEnded = "open_ended"

	// BlockKindSurvey - опрос мнений, никогда не оценивается
	BlockKindSurvey = "survey"
)

// Block представляет один слайд игры: контент или вопрос одного из пяти видов.
// Это "хостовая" форма — она содержит данные о правильности и никогда
// не отправляется игрокам напрямую (см. PlayerView).
type Block struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	GameID           uint        `gorm:"not null;index" json:"game_id"`
	Position         int         `gorm:"not null" json:"position"`
	Kind             string      `gorm:"size:20;not null;default:'quiz'" json:"kind"`
	Text             string      `gorm:"size:500;not null" json:"text"`
	Choices          StringArray `gorm:"type:jsonb;not null" json:"choices"`
	CorrectChoices   IntArray    `gorm:"type:jsonb;not null" json:"-"` // Скрыто от клиента
	AcceptedAnswers  StringArray `gorm:"type:jsonb;not null" json:"-"` // Скрыто от клиента
	TimeLimitMs      int64       `gorm:"not null;default:20000" json:"time_limit_ms"`
	PointsMultiplier int         `gorm:"not null;default:1" json:"points_multiplier"`
	MediaURL         string      `gorm:"size:255;not null;default:''" json:"media_url,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Block) TableName() string {
	return "blocks"
}

// IsAnswerable проверяет, принимает ли блок ответы игроков
func (b *Block) IsAnswerable() bool {
	return b.Kind != BlockKindContent
}

// IsScored проверяет, начисляются ли за блок очки.
// Контент и опросы имеют нулевой множитель по определению.
func (b *Block) IsScored() bool {
	switch b.Kind {
	case BlockKindContent, BlockKindSurvey:
		return false
	default:
		return b.PointsMultiplier > 0
	}
}

// IsValidChoice проверяет, является ли индекс варианта допустимым
func (b *Block) IsValidChoice(choice int) bool {
	return choice >= 0 && choice < len(b.Choices)
}

// ChoiceView представляет вариант ответа в проекции для игрока
type ChoiceView struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// PlayerBlockView - производная проекция блока без данных о правильности.
// Только эта форма уходит в широковещательный канал сессии.
type PlayerBlockView struct {
	Position         int          `json:"position"`
	Kind             string       `json:"kind"`
	Text             string       `json:"text"`
	Choices          []ChoiceView `json:"choices"`
	TimeLimitMs      int64        `json:"time_limit_ms"`
	PointsMultiplier int          `json:"points_multiplier"`
	MediaURL         string       `json:"media_url,omitempty"`
	TotalBlocks      int          `json:"total_blocks"`
}

// PlayerView строит проекцию блока для игроков.
// Для jumble-блоков порядок вариантов перемешивается при каждом вызове:
// канонический порядок живет только в хостовой форме и никогда не сохраняется
// в проекции. rng передается снаружи, чтобы тесты были детерминированными.
func (b *Block) PlayerView(totalBlocks int, rng *rand.Rand) PlayerBlockView {
	choices := make([]ChoiceView, len(b.Choices))
	for i, text := range b.Choices {
		choices[i] = ChoiceView{ID: i, Text: text}
	}

	if b.Kind == BlockKindJumble && rng != nil {
		rng.Shuffle(len(choices), func(i, j int) {
			choices[i], choices[j] = choices[j], choices[i]
		})
	}

	multiplier := b.PointsMultiplier
	if !b.IsScored() {
		multiplier = 0
	}

	return PlayerBlockView{
		Position:         b.Position,
		Kind:             b.Kind,
		Text:             b.Text,
		Choices:          choices,
		TimeLimitMs:      b.TimeLimitMs,
		PointsMultiplier: multiplier,
		MediaURL:         b.MediaURL,
		TotalBlocks:      totalBlocks,
	}
}
