package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayer_Score_IsFoldOverAnswers(t *testing.T) {
	// Arrange
	player := &Player{ClientID: "c1", Nickname: "alpha"}
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 0, Verdict: AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 1}))
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 1, Verdict: AnswerVerdictIncorrect, FinalPoints: 0, StreakAfter: 0}))
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 2, Verdict: AnswerVerdictCorrect, FinalPoints: 750, StreakAfter: 1}))

	// Act & Assert
	assert.Equal(t, 1650, player.Score(), "Счет должен быть суммой FinalPoints всех записей")
	assert.Equal(t, 2, player.CorrectCount())
}

func TestPlayer_AppendAnswer_RejectsDuplicate(t *testing.T) {
	// Arrange
	player := &Player{ClientID: "c1"}
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 3, FinalPoints: 100}))

	// Act
	err := player.AppendAnswer(PlayerAnswer{BlockPosition: 3, FinalPoints: 999})

	// Assert: первая запись побеждает, вторая отклоняется
	assert.Error(t, err, "Повторный ответ на ту же позицию должен быть отклонен")
	assert.Len(t, player.Answers, 1, "Должна остаться ровно одна запись")
	assert.Equal(t, 100, player.Answers[0].FinalPoints)
}

func TestPlayer_MaxStreak_IsHighWaterMark(t *testing.T) {
	// Arrange
	player := &Player{ClientID: "c1"}

	// Act: стрик растет до 3, затем сбрасывается
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 0, StreakAfter: 1}))
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 1, StreakAfter: 2}))
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 2, StreakAfter: 3}))
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 3, StreakAfter: 0}))
	require.NoError(t, player.AppendAnswer(PlayerAnswer{BlockPosition: 4, StreakAfter: 1}))

	// Assert: максимум переживает сброс
	assert.Equal(t, 1, player.CurrentStreak)
	assert.Equal(t, 3, player.MaxStreak, "MaxStreak должен сохранять пиковое значение после сброса")
}

func TestPlayer_IsActive(t *testing.T) {
	assert.True(t, (&Player{Status: PlayerStatusPlaying}).IsActive())
	assert.True(t, (&Player{Status: PlayerStatusJoining}).IsActive())
	assert.False(t, (&Player{Status: PlayerStatusKicked}).IsActive())
	assert.False(t, (&Player{Status: PlayerStatusDisconnected}).IsActive())
}
