package sessionmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

func lobbySession() *entity.Session {
	game := &entity.Game{
		ID:     1,
		HostID: 7,
		Blocks: []entity.Block{*quizBlock(0)},
	}
	return entity.NewSession("sess-1", "123456", game)
}

func TestRoster_JoinAndReactivate(t *testing.T) {
	// Arrange
	roster := NewRoster()
	session := lobbySession()

	player, err := roster.Join("cid-1", "Алиса", nil, session)
	require.NoError(t, err)
	require.NotNil(t, player)
	assert.Equal(t, entity.PlayerStatusJoining, player.Status)

	record := entity.PlayerAnswer{BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 800, StreakAfter: 1}
	require.NoError(t, player.AppendAnswer(record))
	roster.MarkDisconnected("cid-1")
	assert.False(t, player.Connected)

	// Act: возврат после отключения
	returned, err := roster.Join("cid-1", "Алиса", nil, session)

	// Assert: исторические ответы и счет сохранены
	require.NoError(t, err)
	require.Same(t, player, returned)
	assert.True(t, returned.Connected)
	assert.Equal(t, entity.PlayerStatusPlaying, returned.Status)
	assert.Equal(t, 800, returned.Score())
	assert.Equal(t, 1, roster.Size(), "Возврат не должен создавать второго игрока")
}

func TestRoster_JoinEmptyNickname(t *testing.T) {
	roster := NewRoster()
	session := lobbySession()

	player, err := roster.Join("cid-1", "   ", nil, session)

	assert.Error(t, err)
	assert.Nil(t, player)
	assert.Zero(t, roster.Size())
}

func TestRoster_LateJoinRejectedSilently(t *testing.T) {
	// Поздний вход при запрете - не ошибка, состояние не меняется
	roster := NewRoster()
	session := lobbySession()
	session.Status = entity.SessionStatusQuestionShow
	session.AllowLateJoin = false

	player, err := roster.Join("cid-late", "Опоздавший", nil, session)

	assert.NoError(t, err)
	assert.Nil(t, player)
	assert.Zero(t, roster.Size())
}

func TestRoster_LateJoinAllowed(t *testing.T) {
	roster := NewRoster()
	session := lobbySession()
	session.Status = entity.SessionStatusQuestionShow
	session.CurrentQuestionIndex = 2
	session.AllowLateJoin = true

	player, err := roster.Join("cid-late", "Опоздавший", nil, session)

	require.NoError(t, err)
	require.NotNil(t, player)
	assert.Equal(t, entity.PlayerStatusPlaying, player.Status)
	assert.Equal(t, 2, player.JoinedAtPosition, "Позиция входа нужна для обработки поздних игроков")
}

func TestRoster_KickRetainsPlayer(t *testing.T) {
	roster := NewRoster()
	session := lobbySession()
	_, err := roster.Join("cid-1", "Алиса", nil, session)
	require.NoError(t, err)

	// Act
	kicked, err := roster.Kick("cid-1")

	// Assert: игрок не удаляется из ростера
	require.NoError(t, err)
	assert.Equal(t, entity.PlayerStatusKicked, kicked.Status)
	assert.Equal(t, 1, roster.Size())
	assert.Zero(t, roster.ActiveCount())

	// Кикнутый игрок не может вернуться через join
	_, err = roster.Join("cid-1", "Алиса", nil, session)
	assert.Error(t, err)
}

func TestRoster_KickUnknownPlayer(t *testing.T) {
	roster := NewRoster()

	_, err := roster.Kick("cid-ghost")

	assert.Error(t, err)
}

func TestRoster_RankingsTieBrokenByJoinOrder(t *testing.T) {
	// Arrange: три игрока, у первых двух равный счет
	roster := NewRoster()
	session := lobbySession()

	first, _ := roster.Join("cid-1", "Первый", nil, session)
	second, _ := roster.Join("cid-2", "Второй", nil, session)
	third, _ := roster.Join("cid-3", "Третий", nil, session)

	require.NoError(t, first.AppendAnswer(entity.PlayerAnswer{BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 500, StreakAfter: 1}))
	require.NoError(t, second.AppendAnswer(entity.PlayerAnswer{BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 500, StreakAfter: 1}))
	require.NoError(t, third.AppendAnswer(entity.PlayerAnswer{BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 1}))

	// Act
	ranked := roster.Rankings()

	// Assert: равный счет разрешается порядком присоединения
	require.Len(t, ranked, 3)
	assert.Equal(t, "Третий", ranked[0].Nickname)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, "Первый", ranked[1].Nickname)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, "Второй", ranked[2].Nickname)
	assert.Equal(t, 3, ranked[2].Rank)
}

func TestRoster_AllIncludesKickedAndDisconnected(t *testing.T) {
	roster := NewRoster()
	session := lobbySession()

	roster.Join("cid-1", "Алиса", nil, session)
	roster.Join("cid-2", "Боб", nil, session)
	roster.Join("cid-3", "Ева", nil, session)
	roster.Kick("cid-2")
	roster.MarkDisconnected("cid-3")

	all := roster.All()

	require.Len(t, all, 3, "Кикнутые и отключившиеся остаются в ростере")
	assert.Equal(t, 1, roster.ActiveCount())
}

func TestRoster_CloseQuestionResetsMissedStreaks(t *testing.T) {
	// Arrange: оба игрока верно ответили на слайд #0, на слайде #1
	// отвечает только первый
	roster := NewRoster()
	session := lobbySession()

	answered, err := roster.Join("cid-a", "Алиса", nil, session)
	require.NoError(t, err)
	silent, err := roster.Join("cid-b", "Боб", nil, session)
	require.NoError(t, err)

	require.NoError(t, answered.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 1}))
	require.NoError(t, silent.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 1}))
	require.NoError(t, answered.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 1, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 2}))

	// Act
	roster.CloseQuestion(quizBlock(1))

	// Assert: молчание оценивается как таймаут
	assert.Equal(t, 2, answered.CurrentStreak, "Ответивший сохраняет серию")
	assert.Zero(t, silent.CurrentStreak, "Промолчавший теряет серию")
	assert.Equal(t, 1, silent.MaxStreak, "Максимум серии переживает сброс")
}

func TestRoster_CloseQuestionIgnoresUnscoredBlocks(t *testing.T) {
	roster := NewRoster()
	session := lobbySession()

	player, err := roster.Join("cid-a", "Алиса", nil, session)
	require.NoError(t, err)
	require.NoError(t, player.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 1}))

	roster.CloseQuestion(&entity.Block{Position: 1, Kind: entity.BlockKindSurvey})
	roster.CloseQuestion(&entity.Block{Position: 2, Kind: entity.BlockKindContent})

	assert.Equal(t, 1, player.CurrentStreak, "Опрос и контент серию не трогают")
}

func TestRoster_ResetForReplay(t *testing.T) {
	roster := NewRoster()
	session := lobbySession()

	player, err := roster.Join("cid-a", "Алиса", nil, session)
	require.NoError(t, err)
	kicked, err := roster.Join("cid-b", "Боб", nil, session)
	require.NoError(t, err)
	require.NoError(t, player.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 0, Verdict: entity.AnswerVerdictCorrect, FinalPoints: 900, StreakAfter: 1}))
	_, err = roster.Kick("cid-b")
	require.NoError(t, err)

	roster.ResetForReplay()

	assert.Empty(t, player.Answers)
	assert.Zero(t, player.Score())
	assert.Zero(t, player.CurrentStreak)
	assert.Zero(t, player.MaxStreak)
	assert.False(t, player.HasAnswered(0), "Слайды можно разыграть заново")
	assert.Equal(t, entity.PlayerStatusJoining, player.Status)
	assert.True(t, kicked.IsKicked(), "Кик переживает сброс")
	assert.Equal(t, 2, roster.Size(), "Состав ростера не меняется")
}
