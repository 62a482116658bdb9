package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(allowLateJoin bool) *Session {
	game := &Game{ID: 7, HostID: 42, AllowLateJoin: allowLateJoin}
	return NewSession("sess-1", "482913", game)
}

func TestSession_QuestionBroadcast_IdempotentPerIndex(t *testing.T) {
	// Arrange
	session := newTestSession(false)
	session.Status = SessionStatusQuestionShow
	session.CurrentQuestionIndex = 0

	// Act & Assert: первый вход требует отправки
	require.True(t, session.NeedsQuestionBroadcast(), "Первый вход в QUESTION_SHOW должен требовать отправки")
	session.MarkQuestionBroadcast()

	// Повторная оценка того же индекса не должна отправлять снова
	assert.False(t, session.NeedsQuestionBroadcast(), "Повторный вход с тем же маркером не должен требовать отправки")

	// Переход к следующему индексу снова требует отправки
	session.CurrentQuestionIndex = 1
	assert.True(t, session.NeedsQuestionBroadcast())
}

func TestSession_KickNotification_AtMostOnce(t *testing.T) {
	// Arrange
	session := newTestSession(false)

	// Act & Assert
	assert.True(t, session.MarkKickNotified("c1"), "Первая отметка должна пройти")
	assert.False(t, session.MarkKickNotified("c1"), "Повторная отметка для того же игрока должна быть отклонена")
	assert.True(t, session.MarkKickNotified("c2"), "Отметка для другого игрока независима")

	// Возврат в LOBBY очищает множество
	session.ResetKickNotifications()
	assert.True(t, session.MarkKickNotified("c1"), "После сброса отметка снова возможна")
}

func TestSession_IsJoinable(t *testing.T) {
	// Без позднего входа присоединение возможно только в LOBBY
	session := newTestSession(false)
	assert.True(t, session.IsJoinable())

	session.Status = SessionStatusQuestionShow
	assert.False(t, session.IsJoinable(), "Без late-join вход после старта запрещен")

	// С поздним входом - до терминального состояния
	late := newTestSession(true)
	late.Status = SessionStatusQuestionShow
	assert.True(t, late.IsJoinable())

	late.Status = SessionStatusPodium
	assert.False(t, late.IsJoinable(), "В терминальном состоянии вход невозможен")
}

func TestSession_SlideTimings(t *testing.T) {
	// Arrange
	session := newTestSession(false)

	// Act
	session.MarkSlideStarted(0, 1000)
	session.MarkSlideStarted(0, 2000) // повторная отметка игнорируется
	session.MarkSlideEnded(0, 21000)

	// Assert
	assert.Equal(t, int64(1000), session.SlideStartMs(0), "Время старта фиксируется один раз")
	assert.Equal(t, int64(21000), session.SlideTimings[0].EndedAtMs)
	assert.Equal(t, int64(0), session.SlideStartMs(5), "Непоказанный слайд не имеет времени старта")
}
