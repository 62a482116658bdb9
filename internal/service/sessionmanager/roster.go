package sessionmanager

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// Roster владеет списком игроков одной сессии. Структура не потокобезопасна:
// доступ к ней имеет только цикл состояний сессии.
type Roster struct {
	players map[string]*entity.Player

	// Порядок присоединения, используется для стабильного разрешения
	// равных счетов при ранжировании
	order []string
}

// NewRoster создает пустой ростер
func NewRoster() *Roster {
	return &Roster{
		players: make(map[string]*entity.Player),
	}
}

// Join добавляет нового игрока или возвращает отключившегося.
// При возврате исторические ответы и счет сохраняются.
func (r *Roster) Join(clientID, nickname string, accountID *uint, session *entity.Session) (*entity.Player, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("nickname cannot be empty")
	}

	if existing, ok := r.players[clientID]; ok {
		if existing.IsKicked() {
			// Кикнутый игрок не может вернуться через join
			return nil, fmt.Errorf("player %s was kicked from the session", clientID)
		}
		log.Printf("[Roster] Игрок %s (%s) вернулся в сессию %s", clientID, existing.Nickname, session.ID)
		existing.Connected = true
		existing.Status = entity.PlayerStatusPlaying
		existing.LastActivityAt = time.Now()
		return existing, nil
	}

	if !session.IsJoinable() {
		// Не ошибка протокола: просто фиксируем и не меняем состояние
		log.Printf("[Roster] Вход %s (%s) отклонен: сессия %s в состоянии %s, поздний вход запрещен",
			clientID, nickname, session.ID, session.Status)
		return nil, nil
	}

	player := &entity.Player{
		ClientID:         clientID,
		Nickname:         nickname,
		AccountID:        accountID,
		Status:           entity.PlayerStatusJoining,
		Connected:        true,
		JoinedAt:         time.Now(),
		JoinedAtPosition: session.CurrentQuestionIndex,
		LastActivityAt:   time.Now(),
	}
	if !session.InLobby() {
		player.Status = entity.PlayerStatusPlaying
	}

	r.players[clientID] = player
	r.order = append(r.order, clientID)
	log.Printf("[Roster] Игрок %s (%s) присоединился к сессии %s (всего: %d)",
		clientID, nickname, session.ID, len(r.order))
	return player, nil
}

// Get возвращает игрока по client id
func (r *Roster) Get(clientID string) (*entity.Player, bool) {
	player, ok := r.players[clientID]
	return player, ok
}

// MarkDisconnected помечает игрока отключившимся, сохраняя его в ростере
func (r *Roster) MarkDisconnected(clientID string) {
	player, ok := r.players[clientID]
	if !ok {
		return
	}
	player.Connected = false
	if !player.IsKicked() {
		player.Status = entity.PlayerStatusDisconnected
	}
	log.Printf("[Roster] Игрок %s (%s) отключился", clientID, player.Nickname)
}

// Kick исключает игрока. Игрок остается в ростере со статусом KICKED:
// статистика и финализация продолжают ссылаться на него.
func (r *Roster) Kick(clientID string) (*entity.Player, error) {
	player, ok := r.players[clientID]
	if !ok {
		return nil, fmt.Errorf("player %s not found in roster", clientID)
	}
	player.Status = entity.PlayerStatusKicked
	log.Printf("[Roster] Игрок %s (%s) исключен хостом", clientID, player.Nickname)
	return player, nil
}

// CloseQuestion фиксирует закрытие оцениваемого слайда: у каждого
// неисключенного игрока без записи об ответе серия сбрасывается -
// молчание оценивается так же, как опоздание. Контентные слайды и
// опросы серию не трогают.
func (r *Roster) CloseQuestion(block *entity.Block) {
	if block.Kind == entity.BlockKindContent || block.Kind == entity.BlockKindSurvey {
		return
	}
	for _, player := range r.players {
		if player.IsKicked() || player.HasAnswered(block.Position) {
			continue
		}
		if player.CurrentStreak > 0 {
			log.Printf("[Roster] Игрок %s (%s) пропустил слайд #%d, серия %d сброшена",
				player.ClientID, player.Nickname, block.Position, player.CurrentStreak)
		}
		player.CurrentStreak = 0
	}
}

// RecordActivity обновляет отметку последней активности игрока
func (r *Roster) RecordActivity(clientID string) {
	if player, ok := r.players[clientID]; ok {
		player.LastActivityAt = time.Now()
	}
}

// All возвращает всех когда-либо присоединявшихся игроков в порядке входа
// (включая кикнутых и отключившихся)
func (r *Roster) All() []*entity.Player {
	result := make([]*entity.Player, 0, len(r.order))
	for _, clientID := range r.order {
		result = append(result, r.players[clientID])
	}
	return result
}

// ActiveCount возвращает число подключенных неисключенных игроков
func (r *Roster) ActiveCount() int {
	count := 0
	for _, player := range r.players {
		if player.Connected && !player.IsKicked() {
			count++
		}
	}
	return count
}

// Size возвращает полный размер ростера
func (r *Roster) Size() int {
	return len(r.order)
}

// Rankings пересчитывает и проставляет ранги всех игроков по убыванию счета.
// Равные счета разрешаются порядком присоединения (стабильная сортировка).
func (r *Roster) Rankings() []*entity.Player {
	ranked := r.All()
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	for i, player := range ranked {
		player.Rank = i + 1
	}
	return ranked
}

// MarkAllFinished переводит активных игроков в статус FINISHED
// при завершении игры
func (r *Roster) MarkAllFinished() {
	for _, player := range r.players {
		if player.IsActive() {
			player.Status = entity.PlayerStatusFinished
		}
	}
}

// ResetForReplay очищает игровую статистику всех игроков перед повторной
// партией тем же составом: записи об ответах, серии и ранги обнуляются,
// чтобы слайды можно было разыграть заново. Кик необратим и переживает
// сброс.
func (r *Roster) ResetForReplay() {
	for _, player := range r.players {
		player.Answers = nil
		player.CurrentStreak = 0
		player.MaxStreak = 0
		player.Rank = 0
		if player.IsKicked() {
			continue
		}
		if player.Connected {
			player.Status = entity.PlayerStatusJoining
		} else {
			player.Status = entity.PlayerStatusDisconnected
		}
	}
	log.Printf("[Roster] Статистика %d игроков сброшена для повторной партии", len(r.players))
}
