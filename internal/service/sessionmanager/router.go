package sessionmanager

import (
	"log"
	"math/rand"
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/websocket"
)

// Outbound - одно исходящее сообщение: логический канал и конверт
type Outbound struct {
	Channel  string
	Envelope *websocket.Envelope
}

// Router превращает текущее состояние сессии в список исходящих сообщений.
// Правило маршрутизации - жесткий инвариант честности: контент вопросов
// (без данных о правильности) уходит в широковещательный канал, а
// результаты, личные счета и уведомления о кике - только в адресный.
// Роутер вызывается исключительно владельцем состояния сессии.
type Router struct {
	config *Config

	// Источник случайности для перетасовки jumble-вопросов;
	// внедряется извне ради детерминизма в тестах
	rng *rand.Rand
}

// NewRouter создает новый маршрутизатор сообщений
func NewRouter(config *Config, rng *rand.Rand) *Router {
	return &Router{config: config, rng: rng}
}

// EvaluateState вычисляет исходящие сообщения для текущего состояния.
// Уведомления об исключении всегда идут первыми: кикнутый игрок должен
// перестать ждать игровой контент до любых следующих рассылок.
func (rt *Router) EvaluateState(session *entity.Session, game *entity.Game, roster *Roster) []Outbound {
	var out []Outbound

	out = append(out, rt.kickNotices(session, roster)...)

	switch session.Status {
	case entity.SessionStatusGetReady:
		out = append(out, rt.getReadyBroadcast(session, game)...)
	case entity.SessionStatusQuestionShow:
		out = append(out, rt.questionBroadcast(session, game)...)
	case entity.SessionStatusQuestionResult:
		out = append(out, rt.questionResults(session, game, roster)...)
	case entity.SessionStatusPodium:
		out = append(out, rt.podium(session, roster)...)
	case entity.SessionStatusEnded:
		out = append(out, rt.gameOver(session)...)
	}

	return out
}

// kickNotices формирует адресные уведомления об исключении.
// Доставка at-most-once обеспечивается маркером в состоянии сессии:
// повторные вычисления состояния не порождают повторных уведомлений.
func (rt *Router) kickNotices(session *entity.Session, roster *Roster) []Outbound {
	var entries []websocket.Entry
	for _, player := range roster.All() {
		if !player.IsKicked() {
			continue
		}
		if !session.MarkKickNotified(player.ClientID) {
			continue
		}
		entry, err := websocket.NewEntry(websocket.KindKick, player.ClientID, websocket.KickPayload{
			Reason: "removed by host",
		})
		if err != nil {
			log.Printf("[Router] Ошибка сборки уведомления о кике для %s: %v", player.ClientID, err)
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil
	}
	return []Outbound{{
		Channel:  websocket.SessionDirectChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: entries},
	}}
}

func (rt *Router) getReadyBroadcast(session *entity.Session, game *entity.Game) []Outbound {
	block := game.BlockAt(session.CurrentQuestionIndex)
	if block == nil {
		log.Printf("[Router] Слайд #%d не найден в игре #%d", session.CurrentQuestionIndex, game.ID)
		return nil
	}
	entry, err := websocket.NewEntry(websocket.KindGetReady, "", websocket.GetReadyPayload{
		BlockPosition: block.Position,
		Kind:          block.Kind,
		TotalBlocks:   game.BlockCount(),
	})
	if err != nil {
		log.Printf("[Router] Ошибка сборки анонса слайда #%d: %v", block.Position, err)
		return nil
	}
	return []Outbound{{
		Channel:  websocket.SessionBroadcastChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: []websocket.Entry{entry}},
	}}
}

// questionBroadcast отправляет игрокам проекцию вопроса без данных о
// правильности. Маркер последней отправленной позиции делает рассылку
// идемпотентной: повторный вход в QUESTION_SHOW той же позиции ничего
// не отправляет.
func (rt *Router) questionBroadcast(session *entity.Session, game *entity.Game) []Outbound {
	if !session.NeedsQuestionBroadcast() {
		return nil
	}
	block := game.BlockAt(session.CurrentQuestionIndex)
	if block == nil {
		log.Printf("[Router] Слайд #%d не найден в игре #%d", session.CurrentQuestionIndex, game.ID)
		return nil
	}

	view := block.PlayerView(game.BlockCount(), rt.rng)
	entry, err := websocket.NewEntry(websocket.KindQuestionStart, "", view)
	if err != nil {
		log.Printf("[Router] Ошибка сборки вопроса #%d: %v", block.Position, err)
		return nil
	}

	session.MarkQuestionBroadcast()
	return []Outbound{{
		Channel:  websocket.SessionBroadcastChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: []websocket.Entry{entry}},
	}}
}

// StateSync собирает адресный снимок состояния для переподключившегося
// игрока: фаза, проекция активного вопроса и собственный счет. Снимок
// никогда не уходит в широковещательный канал. Порядок вариантов
// jumble-слайда в снимке может отличаться от исходной рассылки.
func (rt *Router) StateSync(session *entity.Session, game *entity.Game, roster *Roster, clientID string) *Outbound {
	player, ok := roster.Get(clientID)
	if !ok || player.IsKicked() {
		return nil
	}
	roster.Rankings()

	payload := websocket.StateSyncPayload{
		Status:        session.Status,
		TotalScore:    player.Score(),
		Rank:          player.Rank,
		CurrentStreak: player.CurrentStreak,
	}
	if session.Status == entity.SessionStatusQuestionShow {
		if block := game.BlockAt(session.CurrentQuestionIndex); block != nil {
			payload.Question = block.PlayerView(game.BlockCount(), rt.rng)
			elapsedMs := time.Now().UnixMilli() - session.SlideStartMs(block.Position)
			if left := (block.TimeLimitMs - elapsedMs) / 1000; left > 0 {
				payload.SecondsLeft = int(left)
			}
		}
	}

	entry, err := websocket.NewEntry(websocket.KindStateSync, clientID, payload)
	if err != nil {
		log.Printf("[Router] Ошибка сборки снимка состояния для %s: %v", clientID, err)
		return nil
	}
	return &Outbound{
		Channel:  websocket.SessionDirectChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: []websocket.Entry{entry}},
	}
}

// questionResults формирует адресные результаты слайда. Каждый игрок видит
// только собственный вердикт, дельту очков, суммарный счет и ранг.
func (rt *Router) questionResults(session *entity.Session, game *entity.Game, roster *Roster) []Outbound {
	block := game.BlockAt(session.CurrentQuestionIndex)
	if block == nil {
		return nil
	}

	// Ранги пересчитываются по полному ростеру до сборки конвертов
	roster.Rankings()

	var entries []websocket.Entry
	for _, player := range roster.All() {
		// Отключившиеся получают запись наравне с остальными: хаб молча
		// отбрасывает недоставляемые адресные записи, а вернувшийся
		// игрок в любом случае получит снимок состояния
		if player.IsKicked() {
			continue
		}

		payload := websocket.ResultPayload{
			BlockPosition: block.Position,
			Verdict:       entity.AnswerVerdictTimeout,
			TotalScore:    player.Score(),
			Rank:          player.Rank,
			CurrentStreak: player.CurrentStreak,
			Nickname:      player.Nickname,
		}
		for i := range player.Answers {
			if player.Answers[i].BlockPosition == block.Position {
				answer := &player.Answers[i]
				payload.Verdict = answer.Verdict
				payload.IsCorrect = answer.IsCorrect()
				payload.PointsDelta = answer.FinalPoints
				break
			}
		}
		// Эталонные индексы раскрываются только в адресной записи
		// и только для оцениваемых видов слайдов
		if block.IsScored() && block.Kind != entity.BlockKindOpenEnded {
			payload.CorrectChoices = block.CorrectChoices
		}

		entry, err := websocket.NewEntry(websocket.KindQuestionResult, player.ClientID, payload)
		if err != nil {
			log.Printf("[Router] Ошибка сборки результата для %s: %v", player.ClientID, err)
			continue
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil
	}
	return []Outbound{{
		Channel:  websocket.SessionDirectChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: entries},
	}}
}

// podium формирует финальный подиум. Широковещательная форма содержит
// только ники и ранги; личный итог с очками каждый игрок получает
// адресной записью.
func (rt *Router) podium(session *entity.Session, roster *Roster) []Outbound {
	ranked := roster.Rankings()

	podiumSize := rt.config.PodiumSize
	if podiumSize > len(ranked) {
		podiumSize = len(ranked)
	}
	podiumEntries := make([]websocket.PodiumEntry, 0, podiumSize)
	for _, player := range ranked[:podiumSize] {
		podiumEntries = append(podiumEntries, websocket.PodiumEntry{
			Nickname: player.Nickname,
			Rank:     player.Rank,
		})
	}

	broadcastEntry, err := websocket.NewEntry(websocket.KindPodium, "", websocket.PodiumPayload{Entries: podiumEntries})
	if err != nil {
		log.Printf("[Router] Ошибка сборки подиума: %v", err)
		return nil
	}
	out := []Outbound{{
		Channel:  websocket.SessionBroadcastChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: []websocket.Entry{broadcastEntry}},
	}}

	var directEntries []websocket.Entry
	for _, player := range ranked {
		// Личный итог строится и для отключившихся: недоставляемые
		// записи хаб отбрасывает, а ростер остается полным
		if player.IsKicked() {
			continue
		}
		entry, err := websocket.NewEntry(websocket.KindPodium, player.ClientID, websocket.FinalStandingPayload{
			Rank:         player.Rank,
			TotalScore:   player.Score(),
			CorrectCount: player.CorrectCount(),
			MaxStreak:    player.MaxStreak,
			Nickname:     player.Nickname,
		})
		if err != nil {
			continue
		}
		directEntries = append(directEntries, entry)
	}
	if len(directEntries) > 0 {
		out = append(out, Outbound{
			Channel:  websocket.SessionDirectChannel(session.ID),
			Envelope: &websocket.Envelope{Entries: directEntries},
		})
	}
	return out
}

func (rt *Router) gameOver(session *entity.Session) []Outbound {
	entry, err := websocket.NewEntry(websocket.KindGameOver, "", struct{}{})
	if err != nil {
		return nil
	}
	return []Outbound{{
		Channel:  websocket.SessionBroadcastChannel(session.ID),
		Envelope: &websocket.Envelope{Entries: []websocket.Entry{entry}},
	}}
}
