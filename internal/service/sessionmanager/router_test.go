package sessionmanager

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/websocket"
)

func newTestRouter() *Router {
	return NewRouter(DefaultConfig(), rand.New(rand.NewSource(42)))
}

func routerFixture(t *testing.T) (*entity.Session, *entity.Game, *Roster) {
	t.Helper()

	game := &entity.Game{
		ID:     1,
		HostID: 7,
		Blocks: []entity.Block{*quizBlock(0)},
	}
	session := entity.NewSession("sess-1", "123456", game)
	roster := NewRoster()

	alice, err := roster.Join("cid-alice", "Алиса", nil, session)
	require.NoError(t, err)
	bob, err := roster.Join("cid-bob", "Боб", nil, session)
	require.NoError(t, err)

	require.NoError(t, alice.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 0, ChoiceIDs: []int{0}, ReactionTimeMs: 2000,
		Verdict: entity.AnswerVerdictCorrect, BasePoints: 950, FinalPoints: 950, StreakAfter: 1,
	}))
	require.NoError(t, bob.AppendAnswer(entity.PlayerAnswer{
		BlockPosition: 0, ChoiceIDs: []int{1}, ReactionTimeMs: 18000,
		Verdict: entity.AnswerVerdictIncorrect, StreakAfter: 0,
	}))

	return session, game, roster
}

func broadcastOnly(out []Outbound, sessionID string) []Outbound {
	var result []Outbound
	for _, o := range out {
		if o.Channel == websocket.SessionBroadcastChannel(sessionID) {
			result = append(result, o)
		}
	}
	return result
}

// ====================================================================
// Разделение каналов (широковещательный / адресный)
// ====================================================================

func TestRouter_BroadcastNeverLeaksPrivateData(t *testing.T) {
	// Для всех состояний сессии: в широковещательном канале нет флагов
	// правильности, личных счетов и уведомлений о кике
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	roster.Kick("cid-bob")

	statuses := []string{
		entity.SessionStatusLobby,
		entity.SessionStatusGetReady,
		entity.SessionStatusQuestionShow,
		entity.SessionStatusQuestionResult,
		entity.SessionStatusPodium,
		entity.SessionStatusEnded,
	}

	for _, status := range statuses {
		session.Status = status
		session.CurrentQuestionIndex = 0
		session.LastBroadcastQuestionIndex = -1

		out := router.EvaluateState(session, game, roster)

		for _, o := range broadcastOnly(out, session.ID) {
			raw, err := o.Envelope.Marshal()
			require.NoError(t, err)
			body := string(raw)

			assert.NotContains(t, body, "is_correct", "Состояние %s: флаг правильности в широковещательном канале", status)
			assert.NotContains(t, body, "correct_choices", "Состояние %s: эталонные индексы в широковещательном канале", status)
			assert.NotContains(t, body, "total_score", "Состояние %s: личный счет в широковещательном канале", status)
			assert.NotContains(t, body, `"score"`, "Состояние %s: счет в широковещательном канале", status)
			for _, entry := range o.Envelope.Entries {
				assert.NotEqual(t, websocket.KindKick, entry.Kind, "Состояние %s: уведомление о кике в широковещательном канале", status)
				assert.NotEqual(t, websocket.KindQuestionResult, entry.Kind, "Состояние %s: результат в широковещательном канале", status)
			}
		}
	}
}

func TestRouter_ResultsAreAddressedPerPlayer(t *testing.T) {
	// Arrange
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusQuestionResult
	session.CurrentQuestionIndex = 0

	// Act
	out := router.EvaluateState(session, game, roster)

	// Assert: единственный конверт в адресном канале, по записи на игрока
	require.Len(t, out, 1)
	assert.Equal(t, websocket.SessionDirectChannel("sess-1"), out[0].Channel)
	require.Len(t, out[0].Envelope.Entries, 2)

	results := make(map[string]websocket.ResultPayload)
	for _, entry := range out[0].Envelope.Entries {
		require.Equal(t, websocket.KindQuestionResult, entry.Kind)
		require.NotEmpty(t, entry.CID, "Запись результата должна быть адресной")
		var payload websocket.ResultPayload
		require.NoError(t, entry.Decode(&payload))
		results[entry.CID] = payload
	}

	alice := results["cid-alice"]
	assert.True(t, alice.IsCorrect)
	assert.Equal(t, 950, alice.PointsDelta)
	assert.Equal(t, 1, alice.Rank)
	assert.Equal(t, []int{0}, alice.CorrectChoices)

	bob := results["cid-bob"]
	assert.False(t, bob.IsCorrect)
	assert.Zero(t, bob.PointsDelta)
	assert.Equal(t, 2, bob.Rank)
}

// ====================================================================
// Идемпотентность и порядок отправки
// ====================================================================

func TestRouter_QuestionBroadcastIdempotent(t *testing.T) {
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusQuestionShow
	session.CurrentQuestionIndex = 0

	first := router.EvaluateState(session, game, roster)
	require.Len(t, first, 1, "Первое вычисление должно отправить вопрос")
	assert.Equal(t, websocket.KindQuestionStart, first[0].Envelope.Entries[0].Kind)

	// Повторное вычисление того же состояния ничего не отправляет
	second := router.EvaluateState(session, game, roster)
	assert.Empty(t, second)
}

func TestRouter_QuestionProjectionStripped(t *testing.T) {
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusQuestionShow
	session.CurrentQuestionIndex = 0

	out := router.EvaluateState(session, game, roster)
	require.Len(t, out, 1)

	var view map[string]json.RawMessage
	require.NoError(t, out[0].Envelope.Entries[0].Decode(&view))
	_, hasCorrect := view["correct_choices"]
	assert.False(t, hasCorrect, "Проекция вопроса не должна содержать эталонных индексов")
	_, hasAccepted := view["accepted_answers"]
	assert.False(t, hasAccepted)
}

func TestRouter_KickNoticeAtMostOnceAndFirst(t *testing.T) {
	// Arrange
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusQuestionShow
	session.CurrentQuestionIndex = 0
	roster.Kick("cid-bob")

	// Act: первое вычисление
	out := router.EvaluateState(session, game, roster)

	// Assert: уведомление о кике идет раньше вопроса
	require.Len(t, out, 2)
	assert.Equal(t, websocket.SessionDirectChannel("sess-1"), out[0].Channel)
	assert.Equal(t, websocket.KindKick, out[0].Envelope.Entries[0].Kind)
	assert.Equal(t, "cid-bob", out[0].Envelope.Entries[0].CID)
	assert.Equal(t, websocket.KindQuestionStart, out[1].Envelope.Entries[0].Kind)

	// Повторные вычисления не дублируют уведомление
	for i := 0; i < 3; i++ {
		again := router.EvaluateState(session, game, roster)
		for _, o := range again {
			for _, entry := range o.Envelope.Entries {
				assert.NotEqual(t, websocket.KindKick, entry.Kind,
					"Уведомление о кике должно доставляться не более одного раза")
			}
		}
	}
}

// ====================================================================
// Подиум
// ====================================================================

func TestRouter_PodiumBroadcastWithoutScores(t *testing.T) {
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusPodium

	out := router.EvaluateState(session, game, roster)
	require.Len(t, out, 2)

	// Широковещательная форма: ники и ранги, без очков
	broadcast := out[0]
	assert.Equal(t, websocket.SessionBroadcastChannel("sess-1"), broadcast.Channel)
	var podium websocket.PodiumPayload
	require.NoError(t, broadcast.Envelope.Entries[0].Decode(&podium))
	require.Len(t, podium.Entries, 2)
	assert.Equal(t, "Алиса", podium.Entries[0].Nickname)
	assert.Equal(t, 1, podium.Entries[0].Rank)
	raw, _ := broadcast.Envelope.Marshal()
	assert.False(t, strings.Contains(string(raw), `"score"`),
		"Широковещательный подиум не должен содержать очков")

	// Личные итоги уходят адресно
	direct := out[1]
	assert.Equal(t, websocket.SessionDirectChannel("sess-1"), direct.Channel)
	require.Len(t, direct.Envelope.Entries, 2)
	var standing websocket.FinalStandingPayload
	for _, entry := range direct.Envelope.Entries {
		if entry.CID == "cid-alice" {
			require.NoError(t, entry.Decode(&standing))
		}
	}
	assert.Equal(t, 950, standing.TotalScore)
	assert.Equal(t, 1, standing.Rank)
}

// ====================================================================
// Снимок состояния при переподключении
// ====================================================================

func TestRouter_StateSyncIsDirectOnly(t *testing.T) {
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusQuestionShow
	session.CurrentQuestionIndex = 0
	session.MarkSlideStarted(0, time.Now().UnixMilli())

	out := router.StateSync(session, game, roster, "cid-alice")
	require.NotNil(t, out)
	assert.Equal(t, websocket.SessionDirectChannel("sess-1"), out.Channel,
		"Снимок состояния должен уходить только в адресный канал")

	require.Len(t, out.Envelope.Entries, 1)
	entry := out.Envelope.Entries[0]
	assert.Equal(t, websocket.KindStateSync, entry.Kind)
	assert.Equal(t, "cid-alice", entry.CID)

	var payload websocket.StateSyncPayload
	require.NoError(t, entry.Decode(&payload))
	assert.Equal(t, entity.SessionStatusQuestionShow, payload.Status)
	assert.Equal(t, 950, payload.TotalScore)
	assert.Equal(t, 1, payload.Rank)
	require.NotNil(t, payload.Question, "На активном вопросе снимок содержит его проекцию")
	assert.Positive(t, payload.SecondsLeft)

	raw, err := json.Marshal(payload.Question)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct",
		"Проекция вопроса в снимке не должна содержать эталонов")
}

func TestRouter_StateSyncWithoutActiveQuestion(t *testing.T) {
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusLobby

	out := router.StateSync(session, game, roster, "cid-bob")
	require.NotNil(t, out)

	var payload websocket.StateSyncPayload
	require.NoError(t, out.Envelope.Entries[0].Decode(&payload))
	assert.Equal(t, entity.SessionStatusLobby, payload.Status)
	assert.Nil(t, payload.Question, "Вне показа вопроса проекция не отправляется")
	assert.Zero(t, payload.SecondsLeft)
}

func TestRouter_StateSyncUnknownOrKickedPlayer(t *testing.T) {
	router := newTestRouter()
	session, game, roster := routerFixture(t)

	assert.Nil(t, router.StateSync(session, game, roster, "cid-ghost"),
		"Неизвестный клиент не получает снимок")

	_, err := roster.Kick("cid-bob")
	require.NoError(t, err)
	assert.Nil(t, router.StateSync(session, game, roster, "cid-bob"),
		"Кикнутый игрок не получает снимок")
}

func TestRouter_ResultsIncludeDisconnectedPlayers(t *testing.T) {
	// Отключившийся игрок получает адресную запись наравне с остальными:
	// недоставляемые записи отбрасывает хаб, а ростер остается полным
	router := newTestRouter()
	session, game, roster := routerFixture(t)
	session.Status = entity.SessionStatusQuestionResult
	session.CurrentQuestionIndex = 0
	roster.MarkDisconnected("cid-bob")

	out := router.EvaluateState(session, game, roster)
	require.Len(t, out, 1)
	assert.Equal(t, websocket.SessionDirectChannel("sess-1"), out[0].Channel)

	cids := make([]string, 0, len(out[0].Envelope.Entries))
	for _, entry := range out[0].Envelope.Entries {
		cids = append(cids, entry.CID)
	}
	assert.ElementsMatch(t, []string{"cid-alice", "cid-bob"}, cids)
}
