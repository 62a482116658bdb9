package entity

import (
	"time"
)

// Статусы живой сессии
const (
	SessionStatusLobby          = "LOBBY"
	SessionStatusGetReady       = "QUESTION_GET_READY"
	SessionStatusQuestionShow   = "QUESTION_SHOW"
	SessionStatusQuestionResult = "QUESTION_RESULT"
	SessionStatusPodium         = "PODIUM"
	SessionStatusEnded          = "ENDED"
)

// SlideTiming хранит фактические времена показа одного слайда (Unix ms).
// Слайд с ненулевым EndedAtMs считается завершенным при финализации.
type SlideTiming struct {
	StartedAtMs int64 `json:"started_at_ms"`
	EndedAtMs   int64 `json:"ended_at_ms"`
}

// Session представляет одну живую игровую сессию. Агрегат принадлежит
// исключительно циклу состояний сессии: никакой другой компонент не
// мутирует его напрямую.
type Session struct {
	ID     string `json:"id"`
	PIN    string `json:"pin"`
	GameID uint   `json:"game_id"`
	HostID uint   `json:"host_id"`

	Status               string `json:"status"`
	CurrentQuestionIndex int    `json:"current_question_index"`

	StartedAt       time.Time            `json:"started_at"`
	EndedAt         time.Time            `json:"ended_at"`
	SlideTimings    map[int]*SlideTiming `json:"slide_timings"`
	AllowLateJoin   bool                 `json:"allow_late_join"`
	PowerUpsEnabled bool                 `json:"power_ups_enabled"`

	// Маркеры идемпотентности исходящих событий. Раньше они жили в
	// замыканиях обработчиков; здесь они - явная часть состояния,
	// чтобы инварианты были проверяемы изолированно.
	LastBroadcastQuestionIndex int                 `json:"last_broadcast_question_index"`
	NotifiedKicks              map[string]struct{} `json:"-"`
}

// NewSession создает сессию в состоянии LOBBY
func NewSession(id, pin string, game *Game) *Session {
	return &Session{
		ID:                         id,
		PIN:                        pin,
		GameID:                     game.ID,
		HostID:                     game.HostID,
		Status:                     SessionStatusLobby,
		CurrentQuestionIndex:       -1,
		StartedAt:                  time.Now(),
		SlideTimings:               make(map[int]*SlideTiming),
		AllowLateJoin:              game.AllowLateJoin,
		PowerUpsEnabled:            game.PowerUpsEnabled,
		LastBroadcastQuestionIndex: -1,
		NotifiedKicks:              make(map[string]struct{}),
	}
}

// IsTerminal проверяет, завершена ли сессия для потока вопросов
func (s *Session) IsTerminal() bool {
	return s.Status == SessionStatusPodium || s.Status == SessionStatusEnded
}

// InLobby проверяет, находится ли сессия в зале ожидания
func (s *Session) InLobby() bool {
	return s.Status == SessionStatusLobby
}

// IsJoinable проверяет, может ли новый игрок присоединиться сейчас
func (s *Session) IsJoinable() bool {
	if s.InLobby() {
		return true
	}
	return s.AllowLateJoin && !s.IsTerminal()
}

// MarkSlideStarted фиксирует время начала показа слайда
func (s *Session) MarkSlideStarted(position int, nowMs int64) {
	timing, ok := s.SlideTimings[position]
	if !ok {
		timing = &SlideTiming{}
		s.SlideTimings[position] = timing
	}
	if timing.StartedAtMs == 0 {
		timing.StartedAtMs = nowMs
	}
}

// MarkSlideEnded фиксирует время завершения показа слайда
func (s *Session) MarkSlideEnded(position int, nowMs int64) {
	timing, ok := s.SlideTimings[position]
	if !ok {
		timing = &SlideTiming{}
		s.SlideTimings[position] = timing
	}
	if timing.EndedAtMs == 0 {
		timing.EndedAtMs = nowMs
	}
}

// SlideStartMs возвращает время начала показа слайда (0, если слайд не показывался)
func (s *Session) SlideStartMs(position int) int64 {
	if timing, ok := s.SlideTimings[position]; ok {
		return timing.StartedAtMs
	}
	return 0
}

// NeedsQuestionBroadcast проверяет, требуется ли широковещательная отправка
// вопроса для текущей позиции. Повторный вход в то же состояние с тем же
// маркером не вызывает повторной отправки.
func (s *Session) NeedsQuestionBroadcast() bool {
	return s.Status == SessionStatusQuestionShow &&
		s.LastBroadcastQuestionIndex < s.CurrentQuestionIndex
}

// MarkQuestionBroadcast отмечает вопрос текущей позиции как отправленный
func (s *Session) MarkQuestionBroadcast() {
	if s.CurrentQuestionIndex > s.LastBroadcastQuestionIndex {
		s.LastBroadcastQuestionIndex = s.CurrentQuestionIndex
	}
}

// MarkKickNotified отмечает, что игроку отправлено уведомление о кике.
// Возвращает false, если уведомление уже отправлялось (гарантия at-most-once).
func (s *Session) MarkKickNotified(clientID string) bool {
	if _, ok := s.NotifiedKicks[clientID]; ok {
		return false
	}
	s.NotifiedKicks[clientID] = struct{}{}
	return true
}

// ResetKickNotifications очищает множество отправленных уведомлений.
// Вызывается при возврате сессии в LOBBY.
func (s *Session) ResetKickNotifications() {
	s.NotifiedKicks = make(map[string]struct{})
}
