package websocket

import (
	"encoding/json"
	"fmt"
)

// Числовые идентификаторы записей конверта. Пространство идентификаторов -
// поверхность совместимости с существующими клиентами игроков: значения
// для вопроса, результата и кика менять нельзя.
const (
	// KindGetReady - анонс следующего вопроса ("приготовьтесь")
	KindGetReady = 1

	// KindQuestionStart - контент вопроса (проекция без данных о правильности)
	KindQuestionStart = 2

	// KindGameOver - завершение игры
	KindGameOver = 3

	// KindTimeUp - время на вопрос истекло
	KindTimeUp = 4

	// KindJoin - вход игрока в сессию
	KindJoin = 6

	// KindQuestionResult - индивидуальный результат игрока за вопрос
	KindQuestionResult = 8

	// KindKick - команда исключения игрока
	KindKick = 10

	// KindPodium - финальный подиум
	KindPodium = 13

	// KindStateSync - адресный снимок состояния для переподключившегося игрока
	KindStateSync = 17

	// KindBackgroundChange - смена фона/ассета зала ожидания
	KindBackgroundChange = 35

	// KindAnswer - ответ игрока на вопрос
	KindAnswer = 45

	// KindLobbyCountdown - тики обратного отсчета автостарта
	KindLobbyCountdown = 46

	// KindError - адресное сообщение об отклоненной команде игрока
	KindError = 47
)

// Entry - одна запись конверта: числовой вид, опциональный адресат
// (для записей приватного канала) и полезная нагрузка.
type Entry struct {
	Kind int             `json:"kind"`
	CID  string          `json:"cid,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Envelope - упорядоченная коллекция записей, передаваемая одним
// сообщением канала. Порядок записей внутри конверта сохраняется.
type Envelope struct {
	Entries []Entry `json:"entries"`
}

// NewEntry сериализует полезную нагрузку и строит запись конверта
func NewEntry(kind int, cid string, payload interface{}) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal entry payload (kind %d): %w", kind, err)
	}
	return Entry{Kind: kind, CID: cid, Data: data}, nil
}

// Decode разбирает полезную нагрузку записи в типизированную структуру.
// Декодирование выполняется один раз на границе; дальше по коду ходят
// только типизированные значения.
func (e Entry) Decode(dest interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("entry (kind %d) has no payload", e.Kind)
	}
	if err := json.Unmarshal(e.Data, dest); err != nil {
		return fmt.Errorf("failed to decode entry payload (kind %d): %w", e.Kind, err)
	}
	return nil
}

// Marshal сериализует конверт для публикации в канал
func (env *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(env)
}

// ParseEnvelope разбирает входящее сообщение канала
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if len(env.Entries) == 0 {
		return nil, fmt.Errorf("envelope has no entries")
	}
	return &env, nil
}

// --- Типизированные полезные нагрузки записей ---

// JoinPayload - запрос игрока на вход в сессию
type JoinPayload struct {
	Nickname  string `json:"nickname"`
	AccountID *uint  `json:"account_id,omitempty"`
}

// AnswerPayload - ответ игрока на текущий вопрос
type AnswerPayload struct {
	BlockPosition int    `json:"block_position"`
	ChoiceIDs     []int  `json:"choice_ids,omitempty"`
	Text          string `json:"text,omitempty"`
}

// GetReadyPayload - анонс вопроса перед показом
type GetReadyPayload struct {
	BlockPosition int    `json:"block_position"`
	Kind          string `json:"kind"`
	TotalBlocks   int    `json:"total_blocks"`
}

// ResultPayload - индивидуальный результат игрока за вопрос.
// Уходит только в приватный канал.
type ResultPayload struct {
	BlockPosition  int    `json:"block_position"`
	Verdict        string `json:"verdict"`
	IsCorrect      bool   `json:"is_correct"`
	CorrectChoices []int  `json:"correct_choices,omitempty"`
	PointsDelta    int    `json:"points_delta"`
	TotalScore     int    `json:"total_score"`
	Rank           int    `json:"rank"`
	CurrentStreak  int    `json:"current_streak"`
	Nickname       string `json:"nickname"`
}

// KickPayload - уведомление об исключении. Уходит только в приватный канал.
type KickPayload struct {
	Reason string `json:"reason"`
}

// PodiumEntry - одна строка финального подиума. В широковещательной форме
// счет опускается: чужие очки не публикуются в общий канал, каждый игрок
// получает свой итог адресной записью.
type PodiumEntry struct {
	Nickname string `json:"nickname"`
	Score    int    `json:"score,omitempty"`
	Rank     int    `json:"rank"`
}

// PodiumPayload - финальный подиум (топ игроков, без данных о правильности)
type PodiumPayload struct {
	Entries []PodiumEntry `json:"entries"`
}

// FinalStandingPayload - личный итог игрока, уходит только в приватный канал
type FinalStandingPayload struct {
	Rank         int    `json:"rank"`
	TotalScore   int    `json:"total_score"`
	CorrectCount int    `json:"correct_count"`
	MaxStreak    int    `json:"max_streak"`
	Nickname     string `json:"nickname"`
}

// StateSyncPayload - снимок текущего состояния для переподключившегося
// игрока: проекция активного вопроса и собственный счет, без повторной
// широковещательной рассылки. Уходит только в приватный канал.
type StateSyncPayload struct {
	Status        string      `json:"status"`
	Question      interface{} `json:"question,omitempty"`
	TotalScore    int         `json:"total_score"`
	Rank          int         `json:"rank"`
	CurrentStreak int         `json:"current_streak"`
	SecondsLeft   int         `json:"seconds_left,omitempty"`
}

// BackgroundPayload - смена фона зала ожидания
type BackgroundPayload struct {
	URL string `json:"url"`
}

// CountdownPayload - тик обратного отсчета автостарта
type CountdownPayload struct {
	SecondsLeft int `json:"seconds_left"`
}

// ErrorPayload - адресное уведомление об отклоненной команде
type ErrorPayload struct {
	Message string `json:"message"`
}

// JoinedPayload - подтверждение входа, рассылаемое в широковещательный канал
type JoinedPayload struct {
	CID         string `json:"cid"`
	Nickname    string `json:"nickname"`
	PlayerCount int    `json:"player_count"`
}
