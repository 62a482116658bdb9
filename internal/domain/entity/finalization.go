package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Итоговые статусы сессии и слайдов в записи финализации
const (
	FinalStatusEnded   = "ENDED"
	FinalStatusAborted = "ABORTED"

	SlideStatusEnded   = "ENDED"
	SlideStatusSkipped = "SKIPPED"
	SlideStatusPending = "PENDING"
)

// PlayerSummary - итоговая сводка по одному игроку.
// В списке игроков финализации присутствует каждый, кто когда-либо
// присоединялся, включая кикнутых и отключившихся.
type PlayerSummary struct {
	ClientID      string         `json:"client_id"`
	Nickname      string         `json:"nickname"`
	AccountID     *uint          `json:"account_id,omitempty"`
	Status        string         `json:"status"`
	Score         int            `json:"score"`
	Rank          int            `json:"rank"`
	CorrectCount  int            `json:"correct_count"`
	MaxStreak     int            `json:"max_streak"`
	JoinedAt      time.Time      `json:"joined_at"`
	AnswerRecords []PlayerAnswer `json:"answer_records"`
}

// SlideRecord - итоговая сводка по одному слайду: оригинальное
// определение блока и все ответы на него, ключованные по client id.
type SlideRecord struct {
	Position    int                     `json:"position"`
	Status      string                  `json:"status"`
	Block       Block                   `json:"block"`
	StartedAtMs int64                   `json:"started_at_ms"`
	EndedAtMs   int64                   `json:"ended_at_ms"`
	Answers     map[string]PlayerAnswer `json:"answers"`
}

// SessionRecord - единственная запись, в которую сворачивается все
// эфемерное состояние сессии при завершении. Отгружается во внешнее
// хранилище одним POST-запросом и сохраняется локально.
type SessionRecord struct {
	SessionID   string          `json:"session_id"`
	GameID      uint            `json:"game_id"`
	HostID      uint            `json:"host_id"`
	PIN         string          `json:"pin"`
	FinalStatus string          `json:"final_status"`
	StartedAt   time.Time       `json:"started_at"`
	EndedAt     time.Time       `json:"ended_at"`
	PlayerCount int             `json:"player_count"`
	Players     []PlayerSummary `json:"players"`
	Slides      []SlideRecord   `json:"slides"`
}

// SessionRecordJSON - JSONB-обертка для хранения полной записи в Postgres
type SessionRecordJSON SessionRecord

// Scan реализует интерфейс sql.Scanner
func (r *SessionRecordJSON) Scan(value interface{}) error {
	if value == nil {
		*r = SessionRecordJSON{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}
	return json.Unmarshal(bytes, r)
}

// Value реализует интерфейс driver.Valuer
func (r SessionRecordJSON) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// FinalizedSession - строка таблицы с устойчивой копией записи финализации.
// Сводные колонки дублируют ключевые поля для выборок, полная запись
// лежит в JSONB.
type FinalizedSession struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	SessionID   string            `gorm:"size:64;not null;uniqueIndex" json:"session_id"`
	GameID      uint              `gorm:"not null;index" json:"game_id"`
	HostID      uint              `gorm:"not null;index" json:"host_id"`
	FinalStatus string            `gorm:"size:20;not null" json:"final_status"`
	PlayerCount int               `gorm:"not null;default:0" json:"player_count"`
	StartedAt   time.Time         `gorm:"not null" json:"started_at"`
	EndedAt     time.Time         `gorm:"not null" json:"ended_at"`
	Record      SessionRecordJSON `gorm:"type:jsonb;not null" json:"record"`
	CreatedAt   time.Time         `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (FinalizedSession) TableName() string {
	return "finalized_sessions"
}
