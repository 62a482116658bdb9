package entity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlock_PlayerView_StripsCorrectness(t *testing.T) {
	// Arrange
	block := &Block{
		Position:         0,
		Kind:             BlockKindQuiz,
		Text:             "Столица Перу?",
		Choices:          StringArray{"Лима", "Куско", "Арекипа"},
		CorrectChoices:   IntArray{0},
		AcceptedAnswers:  StringArray{},
		TimeLimitMs:      20000,
		PointsMultiplier: 2,
	}

	// Act
	view := block.PlayerView(5, rand.New(rand.NewSource(1)))

	// Assert: проекция не содержит данных о правильности
	assert.Equal(t, BlockKindQuiz, view.Kind)
	assert.Equal(t, "Столица Перу?", view.Text)
	assert.Len(t, view.Choices, 3, "Все варианты должны присутствовать")
	assert.Equal(t, 5, view.TotalBlocks)
	assert.Equal(t, 2, view.PointsMultiplier)
}

func TestBlock_PlayerView_JumbleIsPermuted(t *testing.T) {
	// Arrange
	block := &Block{
		Kind:           BlockKindJumble,
		Text:           "Расставьте события по порядку",
		Choices:        StringArray{"a", "b", "c", "d", "e", "f", "g", "h"},
		CorrectChoices: IntArray{0, 1, 2, 3, 4, 5, 6, 7},
	}

	// Act: два вызова с разными источниками случайности
	first := block.PlayerView(1, rand.New(rand.NewSource(1)))
	second := block.PlayerView(1, rand.New(rand.NewSource(99)))

	// Assert: каждый вариант сохраняет канонический ID
	seen := make(map[int]string)
	for _, c := range first.Choices {
		seen[c.ID] = c.Text
	}
	require.Len(t, seen, 8, "Перестановка не должна терять варианты")
	for id, text := range seen {
		assert.Equal(t, block.Choices[id], text, "Текст должен соответствовать каноническому индексу")
	}

	// Перестановки из разных источников должны различаться хотя бы в одной позиции
	different := false
	for i := range first.Choices {
		if first.Choices[i].ID != second.Choices[i].ID {
			different = true
			break
		}
	}
	assert.True(t, different, "Разные источники случайности должны давать разные перестановки")
}

func TestBlock_IsScored(t *testing.T) {
	// Act & Assert
	assert.False(t, (&Block{Kind: BlockKindContent, PointsMultiplier: 1}).IsScored(), "Контент не оценивается")
	assert.False(t, (&Block{Kind: BlockKindSurvey, PointsMultiplier: 1}).IsScored(), "Опрос не оценивается")
	assert.True(t, (&Block{Kind: BlockKindQuiz, PointsMultiplier: 1}).IsScored())
	assert.True(t, (&Block{Kind: BlockKindJumble, PointsMultiplier: 2}).IsScored())
	assert.False(t, (&Block{Kind: BlockKindQuiz, PointsMultiplier: 0}).IsScored(), "Нулевой множитель отключает очки")
}

func TestBlock_IsAnswerable(t *testing.T) {
	assert.False(t, (&Block{Kind: BlockKindContent}).IsAnswerable(), "Контент не принимает ответов")
	assert.True(t, (&Block{Kind: BlockKindSurvey}).IsAnswerable(), "Опрос принимает ответы, хоть и не оценивается")
	assert.True(t, (&Block{Kind: BlockKindOpenEnded}).IsAnswerable())
}
