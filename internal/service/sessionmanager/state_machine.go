package sessionmanager

import (
	"fmt"
	"log"
	"time"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// StateMachine владеет статусом сессии и указателем текущего вопроса.
// Указатель движется только вперед; откат возможен лишь явным завершением
// сессии. Все переходы синхронны и не блокируют.
type StateMachine struct {
	config *Config
}

// NewStateMachine создает новый автомат состояний сессии
func NewStateMachine(config *Config) *StateMachine {
	return &StateMachine{config: config}
}

// StartGame выводит сессию из зала ожидания к анонсу первого вопроса
func (sm *StateMachine) StartGame(session *entity.Session, game *entity.Game) error {
	if !session.InLobby() {
		return fmt.Errorf("cannot start game: session %s is in state %s", session.ID, session.Status)
	}
	if game.BlockCount() == 0 {
		return fmt.Errorf("cannot start game: game %d has no blocks", game.ID)
	}

	session.CurrentQuestionIndex = 0
	session.Status = entity.SessionStatusGetReady
	log.Printf("[StateMachine] Сессия %s: LOBBY -> %s (слайд #0)", session.ID, session.Status)
	return nil
}

// ShowQuestion переводит сессию от анонса к показу вопроса и фиксирует
// время начала показа - от него считается время реакции игроков
func (sm *StateMachine) ShowQuestion(session *entity.Session) error {
	if session.Status != entity.SessionStatusGetReady {
		return fmt.Errorf("cannot show question: session %s is in state %s", session.ID, session.Status)
	}

	session.Status = entity.SessionStatusQuestionShow
	session.MarkSlideStarted(session.CurrentQuestionIndex, time.Now().UnixMilli())
	log.Printf("[StateMachine] Сессия %s: показ слайда #%d", session.ID, session.CurrentQuestionIndex)
	return nil
}

// ShowResults закрывает вопрос и переводит сессию к показу результатов
func (sm *StateMachine) ShowResults(session *entity.Session) error {
	if session.Status != entity.SessionStatusQuestionShow {
		return fmt.Errorf("cannot show results: session %s is in state %s", session.ID, session.Status)
	}

	session.MarkSlideEnded(session.CurrentQuestionIndex, time.Now().UnixMilli())
	session.Status = entity.SessionStatusQuestionResult
	log.Printf("[StateMachine] Сессия %s: результаты слайда #%d", session.ID, session.CurrentQuestionIndex)
	return nil
}

// Advance двигает сессию дальше из показа результатов: либо к анонсу
// следующего слайда, либо к подиуму, если слайды закончились
func (sm *StateMachine) Advance(session *entity.Session, game *entity.Game) error {
	if session.Status != entity.SessionStatusQuestionResult {
		return fmt.Errorf("cannot advance: session %s is in state %s", session.ID, session.Status)
	}

	next := session.CurrentQuestionIndex + 1
	if next >= game.BlockCount() {
		session.Status = entity.SessionStatusPodium
		log.Printf("[StateMachine] Сессия %s: слайды закончились, PODIUM", session.ID)
		return nil
	}

	session.CurrentQuestionIndex = next
	session.Status = entity.SessionStatusGetReady
	log.Printf("[StateMachine] Сессия %s: анонс слайда #%d", session.ID, next)
	return nil
}

// Finish завершает сессию после подиума
func (sm *StateMachine) Finish(session *entity.Session) error {
	if session.Status != entity.SessionStatusPodium {
		return fmt.Errorf("cannot finish: session %s is in state %s", session.ID, session.Status)
	}

	session.Status = entity.SessionStatusEnded
	session.EndedAt = time.Now()
	log.Printf("[StateMachine] Сессия %s завершена", session.ID)
	return nil
}

// Abort принудительно завершает сессию из любого незавершенного состояния
func (sm *StateMachine) Abort(session *entity.Session) error {
	if session.Status == entity.SessionStatusEnded {
		return fmt.Errorf("session %s is already ended", session.ID)
	}

	// Незакрытый слайд фиксируется, чтобы финализация различила
	// показанные и пропущенные слайды
	if session.CurrentQuestionIndex >= 0 {
		session.MarkSlideEnded(session.CurrentQuestionIndex, time.Now().UnixMilli())
	}
	session.Status = entity.SessionStatusEnded
	session.EndedAt = time.Now()
	log.Printf("[StateMachine] Сессия %s прервана хостом", session.ID)
	return nil
}

// ReturnToLobby возвращает сессию в зал ожидания (доступно только с подиума,
// для повторной игры тем же составом). Маркеры уведомлений о кике
// сбрасываются вместе с указателем вопроса.
func (sm *StateMachine) ReturnToLobby(session *entity.Session) error {
	if session.Status != entity.SessionStatusPodium {
		return fmt.Errorf("cannot return to lobby: session %s is in state %s", session.ID, session.Status)
	}

	session.Status = entity.SessionStatusLobby
	session.CurrentQuestionIndex = -1
	session.LastBroadcastQuestionIndex = -1
	session.SlideTimings = make(map[int]*entity.SlideTiming)
	session.ResetKickNotifications()
	log.Printf("[StateMachine] Сессия %s вернулась в LOBBY", session.ID)
	return nil
}
