package sessionmanager

import (
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// Finalizer сворачивает эфемерное состояние завершенной сессии в одну
// запись финализации. Свертка чистая: состояние сессии не изменяется,
// поэтому повторная отправка после ошибки хранилища строит ту же запись.
type Finalizer struct {
	config *Config
}

// NewFinalizer создает новый финализатор сессий
func NewFinalizer(config *Config) *Finalizer {
	return &Finalizer{config: config}
}

// Finalize строит запись финализации из сессии, определения игры и ростера
func (f *Finalizer) Finalize(
	session *entity.Session,
	game *entity.Game,
	roster *Roster,
	finalStatus string,
) *entity.SessionRecord {
	ranked := roster.Rankings()

	players := make([]entity.PlayerSummary, 0, len(ranked))
	for _, player := range ranked {
		players = append(players, entity.PlayerSummary{
			ClientID:      player.ClientID,
			Nickname:      player.Nickname,
			AccountID:     player.AccountID,
			Status:        player.Status,
			Score:         player.Score(),
			Rank:          player.Rank,
			CorrectCount:  player.CorrectCount(),
			MaxStreak:     player.MaxStreak,
			JoinedAt:      player.JoinedAt,
			AnswerRecords: player.Answers,
		})
	}

	slides := make([]entity.SlideRecord, 0, game.BlockCount())
	for i := range game.Blocks {
		block := &game.Blocks[i]
		slide := entity.SlideRecord{
			Position: block.Position,
			Status:   entity.SlideStatusPending,
			Block:    *block,
			Answers:  make(map[string]entity.PlayerAnswer),
		}

		if timing, ok := session.SlideTimings[block.Position]; ok {
			slide.StartedAtMs = timing.StartedAtMs
			slide.EndedAtMs = timing.EndedAtMs
			if timing.EndedAtMs > 0 {
				slide.Status = entity.SlideStatusEnded
			} else if timing.StartedAtMs > 0 {
				slide.Status = entity.SlideStatusSkipped
			}
		}

		for _, player := range ranked {
			for j := range player.Answers {
				if player.Answers[j].BlockPosition == block.Position {
					slide.Answers[player.ClientID] = player.Answers[j]
					break
				}
			}
		}

		slides = append(slides, slide)
	}

	endedAt := session.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}

	return &entity.SessionRecord{
		SessionID:   session.ID,
		GameID:      game.ID,
		HostID:      session.HostID,
		PIN:         session.PIN,
		FinalStatus: finalStatus,
		StartedAt:   session.StartedAt,
		EndedAt:     endedAt,
		PlayerCount: len(players),
		Players:     players,
		Slides:      slides,
	}
}
