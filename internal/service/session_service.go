package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/domain/repository"
	apperrors "github.com/yourusername/gameshow-api/internal/pkg/errors"
	"github.com/yourusername/gameshow-api/internal/service/sessionmanager"
	"github.com/yourusername/gameshow-api/internal/websocket"
)

// Ключи кэша: поиск сессии по PIN-коду и множество активных сессий хоста
const (
	sessionPinKeyPrefix = "session:pin:"
	hostSessionsPrefix  = "sessions:host:"
	sessionPinTTL       = 24 * time.Hour
	pinReserveAttempts  = 100
)

// SessionSnapshot - снимок состояния сессии для хоста и переподключившихся
// клиентов. Содержит только данные, безопасные для запрашивающего.
type SessionSnapshot struct {
	SessionID            string `json:"session_id"`
	PIN                  string `json:"pin"`
	Status               string `json:"status"`
	CurrentQuestionIndex int    `json:"current_question_index"`
	PlayerCount          int    `json:"player_count"`
	ActivePlayers        int    `json:"active_players"`
	CountdownRemaining   int    `json:"countdown_remaining,omitempty"`
	FinalizationPending  bool   `json:"finalization_pending"`
}

// sessionRuntime - один запущенный экземпляр сессии. Все мутации состояния
// проходят через очередь команд, которую разбирает единственная горутина:
// ростер и сессия имеют ровно одного логического владельца.
type sessionRuntime struct {
	session   *entity.Session
	game      *entity.Game
	roster    *sessionmanager.Roster
	countdown *sessionmanager.Countdown

	// Последняя построенная запись финализации, ожидающая отправки.
	// Хранится до успеха, чтобы повтор использовал ту же запись.
	pendingRecord *entity.SessionRecord

	commands chan func()
	quit     chan struct{}
	done     chan struct{}
}

// lockedSource делает rand.Rand пригодным для использования из
// нескольких циклов сессий одновременно
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// SessionService координирует живые игровые сессии: состояние, ростер,
// подсчет очков, маршрутизацию сообщений и финализацию
type SessionService struct {
	// Компоненты движка сессий
	stateMachine *sessionmanager.StateMachine
	scoring      *sessionmanager.ScoringEngine
	router       *sessionmanager.Router
	finalizer    *sessionmanager.Finalizer

	// Репозитории и транспорт
	gameRepo         repository.GameRepository
	finalizationRepo repository.FinalizationRepository
	publisher        repository.FinalizationPublisher
	cacheRepo        repository.CacheRepository
	channels         sessionmanager.ChannelPublisher

	config *sessionmanager.Config

	// Активные сессии
	mu       sync.RWMutex
	runtimes map[string]*sessionRuntime

	rng *rand.Rand
}

// NewSessionService создает новый сервис игровых сессий
func NewSessionService(
	gameRepo repository.GameRepository,
	finalizationRepo repository.FinalizationRepository,
	publisher repository.FinalizationPublisher,
	cacheRepo repository.CacheRepository,
	channels sessionmanager.ChannelPublisher,
	config *sessionmanager.Config,
) *SessionService {
	if config == nil {
		config = sessionmanager.DefaultConfig()
	}

	rng := rand.New(&lockedSource{src: rand.NewSource(time.Now().UnixNano())})

	s := &SessionService{
		stateMachine:     sessionmanager.NewStateMachine(config),
		scoring:          sessionmanager.NewScoringEngine(config),
		router:           sessionmanager.NewRouter(config, rng),
		finalizer:        sessionmanager.NewFinalizer(config),
		gameRepo:         gameRepo,
		finalizationRepo: finalizationRepo,
		publisher:        publisher,
		cacheRepo:        cacheRepo,
		channels:         channels,
		config:           config,
		runtimes:         make(map[string]*sessionRuntime),
		rng:              rng,
	}

	log.Println("[SessionService] Сервис игровых сессий инициализирован")
	return s
}

// CreateSession создает живую сессию для игры и запускает ее цикл.
// На игру допускается одна активная сессия одновременно.
func (s *SessionService) CreateSession(ctx context.Context, gameID, hostID uint) (*entity.Session, error) {
	game, err := s.gameRepo.GetWithBlocks(gameID)
	if err != nil {
		return nil, err
	}
	if game.HostID != hostID {
		return nil, apperrors.ErrForbidden
	}
	if game.BlockCount() == 0 {
		return nil, fmt.Errorf("%w: game has no blocks", apperrors.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rt := range s.runtimes {
		if rt.session.GameID == gameID && rt.session.Status != entity.SessionStatusEnded {
			return nil, fmt.Errorf("%w: game %d already has an active session", apperrors.ErrConflict, gameID)
		}
	}

	sessionID := uuid.New().String()
	pin, err := s.reservePIN(sessionID)
	if err != nil {
		return nil, err
	}
	session := entity.NewSession(sessionID, pin, game)

	rt := &sessionRuntime{
		session:   session,
		game:      game,
		roster:    sessionmanager.NewRoster(),
		countdown: sessionmanager.NewCountdown(s.config),
		commands:  make(chan func(), 256),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.runtimes[session.ID] = rt
	go s.runLoop(rt)

	if err := s.cacheRepo.SAdd(hostSessionsKey(hostID), session.ID); err != nil {
		log.Printf("[SessionService] Ошибка учета сессии %s за хостом #%d: %v", session.ID, hostID, err)
	}

	log.Printf("[SessionService] Сессия %s (PIN %s) создана для игры #%d", session.ID, session.PIN, gameID)
	return session, nil
}

// ActiveSessions возвращает идентификаторы живых сессий хоста.
// Множество в кэше переживает рестарт процесса, поэтому записи без
// работающего цикла вычищаются лениво при чтении.
func (s *SessionService) ActiveSessions(hostID uint) []string {
	ids, err := s.cacheRepo.SMembers(hostSessionsKey(hostID))
	if err != nil {
		log.Printf("[SessionService] Ошибка чтения сессий хоста #%d: %v", hostID, err)
		return nil
	}

	alive := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := s.runtime(id); err != nil {
			if err := s.cacheRepo.SRem(hostSessionsKey(hostID), id); err != nil {
				log.Printf("[SessionService] Ошибка очистки сессии %s хоста #%d: %v", id, hostID, err)
			}
			continue
		}
		alive = append(alive, id)
	}
	sort.Strings(alive)
	return alive
}

// ResolvePIN возвращает идентификатор сессии по шестизначному PIN-коду
func (s *SessionService) ResolvePIN(pin string) (string, error) {
	sessionID, err := s.cacheRepo.Get(sessionPinKeyPrefix + pin)
	if err != nil || sessionID == "" {
		return "", apperrors.ErrNotFound
	}
	if _, err := s.runtime(sessionID); err != nil {
		return "", apperrors.ErrNotFound
	}
	return sessionID, nil
}

// runLoop - единственный владелец состояния сессии
func (s *SessionService) runLoop(rt *sessionRuntime) {
	defer close(rt.done)
	for {
		select {
		case cmd := <-rt.commands:
			cmd()
		case <-rt.quit:
			return
		}
	}
}

// do выполняет команду в цикле сессии и дожидается результата
func (s *SessionService) do(rt *sessionRuntime, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case rt.commands <- func() { reply <- fn() }:
	case <-rt.done:
		return fmt.Errorf("%w: session loop stopped", apperrors.ErrConflict)
	}
	select {
	case err := <-reply:
		return err
	case <-rt.done:
		// Цикл мог остановиться сразу после выполнения команды
		select {
		case err := <-reply:
			return err
		default:
		}
		return fmt.Errorf("%w: session loop stopped", apperrors.ErrConflict)
	}
}

func (s *SessionService) runtime(sessionID string) (*sessionRuntime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.runtimes[sessionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return rt, nil
}

// ====================================================================
// Входящие сообщения игроков
// ====================================================================

// HandleJoin обрабатывает запрос игрока на вход в сессию
func (s *SessionService) HandleJoin(sessionID, clientID string, payload websocket.JoinPayload) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		_, rejoining := rt.roster.Get(clientID)

		player, err := rt.roster.Join(clientID, payload.Nickname, payload.AccountID, rt.session)
		if err != nil {
			// Ошибка валидации уходит только инициатору
			s.sendPrivateError(rt.session.ID, clientID, err.Error())
			return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		if player == nil {
			// Молчаливый отказ: сессия не принимает новых игроков
			return nil
		}

		s.broadcastJoined(rt, player)
		if rejoining {
			// Вернувшийся игрок получает адресный снимок состояния:
			// активный вопрос и собственный счет без повтора рассылок
			if out := s.router.StateSync(rt.session, rt.game, rt.roster, clientID); out != nil {
				s.publish(out.Channel, out.Envelope)
			}
		}
		s.refreshCountdown(rt)
		s.dispatch(rt)
		return nil
	})
}

// HandleAnswer обрабатывает ответ игрока на текущий вопрос
func (s *SessionService) HandleAnswer(sessionID, clientID string, payload websocket.AnswerPayload) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		session := rt.session
		player, ok := rt.roster.Get(clientID)
		if !ok || player.IsKicked() {
			log.Printf("[SessionService] Ответ от неизвестного или исключенного клиента %s отброшен", clientID)
			return nil
		}
		rt.roster.RecordActivity(clientID)

		// Ответ принимается только на активный вопрос; все остальное -
		// ошибка протокола, отбрасываемая без мутации состояния
		if session.Status != entity.SessionStatusQuestionShow ||
			payload.BlockPosition != session.CurrentQuestionIndex {
			log.Printf("[SessionService] Ответ %s на слайд #%d вне последовательности (текущий #%d, статус %s)",
				clientID, payload.BlockPosition, session.CurrentQuestionIndex, session.Status)
			return nil
		}

		block := rt.game.BlockAt(payload.BlockPosition)
		if block == nil || !block.IsAnswerable() {
			log.Printf("[SessionService] Слайд #%d не принимает ответов", payload.BlockPosition)
			return nil
		}

		if player.HasAnswered(payload.BlockPosition) {
			// Идемпотентность: первый ответ побеждает
			s.sendPrivateError(session.ID, clientID, "answer already submitted")
			return nil
		}

		reactionTimeMs := time.Now().UnixMilli() - session.SlideStartMs(payload.BlockPosition)
		record := s.scoring.Evaluate(block, sessionmanager.SubmittedAnswer{
			BlockPosition: payload.BlockPosition,
			ChoiceIDs:     payload.ChoiceIDs,
			Text:          payload.Text,
		}, reactionTimeMs, player.CurrentStreak)

		if err := player.AppendAnswer(record); err != nil {
			return nil
		}
		log.Printf("[SessionService] Ответ %s на слайд #%d: %s (%d очков, %d мс)",
			clientID, payload.BlockPosition, record.Verdict, record.FinalPoints, record.ReactionTimeMs)
		return nil
	})
}

// HandleDisconnect помечает игрока отключившимся, сохраняя его статистику
func (s *SessionService) HandleDisconnect(sessionID, clientID string) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return
	}
	_ = s.do(rt, func() error {
		rt.roster.MarkDisconnected(clientID)
		s.refreshCountdown(rt)
		return nil
	})
}

// ====================================================================
// Команды хоста
// ====================================================================

// StartSession запускает игру из зала ожидания
func (s *SessionService) StartSession(sessionID string, hostID uint) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		return s.startLocked(rt)
	})
}

// AdvanceSession продвигает сессию к следующему состоянию по команде хоста:
// анонс -> показ -> результаты -> следующий слайд или подиум -> завершение
func (s *SessionService) AdvanceSession(sessionID string, hostID uint) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}

		session := rt.session
		var transitionErr error
		switch session.Status {
		case entity.SessionStatusLobby:
			return s.startLocked(rt)
		case entity.SessionStatusGetReady:
			transitionErr = s.stateMachine.ShowQuestion(session)
		case entity.SessionStatusQuestionShow:
			transitionErr = s.stateMachine.ShowResults(session)
			if transitionErr == nil {
				// Промолчавшие теряют серию наравне с опоздавшими
				if block := rt.game.BlockAt(session.CurrentQuestionIndex); block != nil {
					rt.roster.CloseQuestion(block)
				}
			}
		case entity.SessionStatusQuestionResult:
			transitionErr = s.stateMachine.Advance(session, rt.game)
		case entity.SessionStatusPodium:
			if err := s.stateMachine.Finish(session); err != nil {
				return err
			}
			rt.roster.MarkAllFinished()
			s.dispatch(rt)
			return s.finalizeLocked(rt, entity.FinalStatusEnded)
		default:
			return fmt.Errorf("%w: session %s is already ended", apperrors.ErrConflict, session.ID)
		}

		if transitionErr != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, transitionErr)
		}
		s.dispatch(rt)
		return nil
	})
}

// KickPlayer исключает игрока из сессии по команде хоста
func (s *SessionService) KickPlayer(sessionID string, hostID uint, clientID string) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		if _, err := rt.roster.Kick(clientID); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrNotFound, err)
		}
		s.refreshCountdown(rt)
		s.dispatch(rt)
		return nil
	})
}

// AbortSession прерывает сессию: игрокам уходит завершение игры,
// состояние сворачивается в запись со статусом ABORTED
func (s *SessionService) AbortSession(sessionID string, hostID uint) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		if err := s.stateMachine.Abort(rt.session); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		rt.countdown.Cancel()
		s.dispatch(rt)
		return s.finalizeLocked(rt, entity.FinalStatusAborted)
	})
}

// ReturnToLobby возвращает сессию с подиума в зал ожидания для повторной
// партии тем же составом. Статистика прошлой партии сбрасывается без
// финализации; каждому подключенному игроку уходит адресный снимок
// нового состояния.
func (s *SessionService) ReturnToLobby(sessionID string, hostID uint) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		if err := s.stateMachine.ReturnToLobby(rt.session); err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
		}
		rt.roster.ResetForReplay()
		for _, player := range rt.roster.All() {
			if player.IsKicked() || !player.Connected {
				continue
			}
			if out := s.router.StateSync(rt.session, rt.game, rt.roster, player.ClientID); out != nil {
				s.publish(out.Channel, out.Envelope)
			}
		}
		s.refreshCountdown(rt)
		return nil
	})
}

// RetryFinalization повторяет отправку записи финализации после ошибки
// хранилища. Запись и состояние сессии хранятся до успеха.
func (s *SessionService) RetryFinalization(ctx context.Context, sessionID string, hostID uint) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		if rt.pendingRecord == nil {
			return fmt.Errorf("%w: no pending finalization for session %s", apperrors.ErrConflict, sessionID)
		}
		return s.persistRecord(rt)
	})
}

// ChangeBackground меняет фон зала ожидания для всех игроков
func (s *SessionService) ChangeBackground(sessionID string, hostID uint, url string) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		entry, err := websocket.NewEntry(websocket.KindBackgroundChange, "", websocket.BackgroundPayload{URL: url})
		if err != nil {
			return err
		}
		s.publish(websocket.SessionBroadcastChannel(sessionID), &websocket.Envelope{Entries: []websocket.Entry{entry}})
		return nil
	})
}

// SetAutoStart включает или выключает автостарт и меняет его длительность.
// Смена длительности на активном отсчете перезапускает его с новой величины.
func (s *SessionService) SetAutoStart(sessionID string, hostID uint, seconds int) error {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return err
	}
	return s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		rt.game.AutoStartSeconds = seconds
		rt.countdown.Cancel()
		s.refreshCountdown(rt)
		return nil
	})
}

// SessionLoaded проверяет, что сессия загружена и принимает подключения
func (s *SessionService) SessionLoaded(sessionID string) error {
	_, err := s.runtime(sessionID)
	return err
}

// Snapshot возвращает снимок состояния сессии для панели хоста
func (s *SessionService) Snapshot(sessionID string, hostID uint) (*SessionSnapshot, error) {
	rt, err := s.runtime(sessionID)
	if err != nil {
		return nil, err
	}
	var snapshot *SessionSnapshot
	err = s.do(rt, func() error {
		if err := s.authorizeHost(rt, hostID); err != nil {
			return err
		}
		snapshot = &SessionSnapshot{
			SessionID:            rt.session.ID,
			PIN:                  rt.session.PIN,
			Status:               rt.session.Status,
			CurrentQuestionIndex: rt.session.CurrentQuestionIndex,
			PlayerCount:          rt.roster.Size(),
			ActivePlayers:        rt.roster.ActiveCount(),
			CountdownRemaining:   rt.countdown.Remaining(),
			FinalizationPending:  rt.pendingRecord != nil,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// ====================================================================
// Внутренние операции (вызываются только из цикла сессии)
// ====================================================================

func (s *SessionService) authorizeHost(rt *sessionRuntime, hostID uint) error {
	if rt.session.HostID != hostID {
		return apperrors.ErrForbidden
	}
	return nil
}

func (s *SessionService) startLocked(rt *sessionRuntime) error {
	rt.countdown.Cancel()
	if err := s.stateMachine.StartGame(rt.session, rt.game); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConflict, err)
	}
	s.dispatch(rt)
	return nil
}

// dispatch вычисляет исходящие сообщения для текущего состояния
// и публикует их в каналы сессии
func (s *SessionService) dispatch(rt *sessionRuntime) {
	for _, out := range s.router.EvaluateState(rt.session, rt.game, rt.roster) {
		s.publish(out.Channel, out.Envelope)
	}
}

func (s *SessionService) publish(channel string, env *websocket.Envelope) {
	if err := s.channels.Publish(channel, env); err != nil {
		// Транспорт восстановится сам; исходящее состояние выводится
		// заново из текущего, а не проигрывается из журнала
		log.Printf("[SessionService] Ошибка публикации в канал %s: %v", channel, err)
	}
}

func (s *SessionService) broadcastJoined(rt *sessionRuntime, player *entity.Player) {
	entry, err := websocket.NewEntry(websocket.KindJoin, "", websocket.JoinedPayload{
		CID:         player.ClientID,
		Nickname:    player.Nickname,
		PlayerCount: rt.roster.Size(),
	})
	if err != nil {
		return
	}
	s.publish(websocket.SessionBroadcastChannel(rt.session.ID), &websocket.Envelope{Entries: []websocket.Entry{entry}})
}

func (s *SessionService) sendPrivateError(sessionID, clientID, message string) {
	entry, err := websocket.NewEntry(websocket.KindError, clientID, websocket.ErrorPayload{Message: message})
	if err != nil {
		return
	}
	s.publish(websocket.SessionDirectChannel(sessionID), &websocket.Envelope{Entries: []websocket.Entry{entry}})
}

// refreshCountdown сверяет условия автостарта с текущим состоянием:
// отсчет идет только в LOBBY при включенном автостарте и непустом зале
func (s *SessionService) refreshCountdown(rt *sessionRuntime) {
	shouldRun := rt.session.InLobby() &&
		rt.game.AutoStartSeconds > 0 &&
		rt.roster.ActiveCount() > 0

	if !shouldRun {
		rt.countdown.Cancel()
		return
	}
	if rt.countdown.Active() {
		return
	}

	sessionID := rt.session.ID
	rt.countdown.Start(rt.game.AutoStartSeconds,
		func(remaining int) {
			entry, err := websocket.NewEntry(websocket.KindLobbyCountdown, "", websocket.CountdownPayload{SecondsLeft: remaining})
			if err != nil {
				return
			}
			s.publish(websocket.SessionBroadcastChannel(sessionID), &websocket.Envelope{Entries: []websocket.Entry{entry}})
		},
		func() {
			// Срабатывание приходит из горутины таймера: запуск игры
			// ставится в очередь команд владельца состояния
			select {
			case rt.commands <- func() {
				if rt.session.InLobby() {
					if err := s.startLocked(rt); err != nil {
						log.Printf("[SessionService] Ошибка автостарта сессии %s: %v", sessionID, err)
					}
				}
			}:
			case <-rt.done:
			}
		})
}

// finalizeLocked сворачивает состояние сессии в запись финализации
// и отправляет ее в хранилища
func (s *SessionService) finalizeLocked(rt *sessionRuntime, finalStatus string) error {
	rt.countdown.Cancel()
	rt.pendingRecord = s.finalizer.Finalize(rt.session, rt.game, rt.roster, finalStatus)
	log.Printf("[SessionService] Сессия %s финализирована (%s): %d игроков, %d слайдов",
		rt.session.ID, finalStatus, rt.pendingRecord.PlayerCount, len(rt.pendingRecord.Slides))
	return s.persistRecord(rt)
}

// persistRecord сохраняет запись локально и отправляет во внешнее хранилище.
// При ошибке запись остается в pendingRecord для повтора хостом.
func (s *SessionService) persistRecord(rt *sessionRuntime) error {
	record := rt.pendingRecord

	if err := s.finalizationRepo.Save(record); err != nil {
		if err != repository.ErrSessionAlreadyFinalized {
			log.Printf("[SessionService] Ошибка локального сохранения финализации %s: %v", record.SessionID, err)
			return fmt.Errorf("failed to save finalization record: %w", err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= s.config.MaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		lastErr = s.publisher.Publish(ctx, record)
		cancel()
		if lastErr == nil {
			break
		}
		log.Printf("[SessionService] Попытка %d/%d отправки финализации %s не удалась: %v",
			attempt, s.config.MaxRetries, record.SessionID, lastErr)
		time.Sleep(s.config.RetryInterval)
	}
	if lastErr != nil {
		// Состояние не отбрасывается: хост может повторить отправку
		return fmt.Errorf("failed to publish finalization record: %w", lastErr)
	}

	rt.pendingRecord = nil
	s.teardown(rt)
	return nil
}

// teardown освобождает ресурсы завершенной сессии
func (s *SessionService) teardown(rt *sessionRuntime) {
	sessionID := rt.session.ID

	if err := s.cacheRepo.Delete(sessionPinKeyPrefix + rt.session.PIN); err != nil {
		log.Printf("[SessionService] Ошибка удаления PIN %s из кэша: %v", rt.session.PIN, err)
	}
	if err := s.cacheRepo.SRem(hostSessionsKey(rt.session.HostID), sessionID); err != nil {
		log.Printf("[SessionService] Ошибка снятия учета сессии %s: %v", sessionID, err)
	}

	s.mu.Lock()
	delete(s.runtimes, sessionID)
	s.mu.Unlock()

	close(rt.quit)
	log.Printf("[SessionService] Сессия %s выгружена", sessionID)
}

// reservePIN подбирает шестизначный PIN и атомарно занимает его в кэше:
// два процесса не могут раздать один PIN одновременно. Бронь живет
// вместе с записью PIN -> сессия и снимается при выгрузке сессии.
func (s *SessionService) reservePIN(sessionID string) (string, error) {
	for attempt := 0; attempt < pinReserveAttempts; attempt++ {
		pin := fmt.Sprintf("%06d", s.rng.Intn(1000000))
		ok, err := s.cacheRepo.SetNX(sessionPinKeyPrefix+pin, sessionID, sessionPinTTL)
		if err != nil {
			return "", fmt.Errorf("failed to reserve session pin: %w", err)
		}
		if ok {
			return pin, nil
		}
	}
	return "", fmt.Errorf("failed to reserve session pin: no free pin after %d attempts", pinReserveAttempts)
}

func hostSessionsKey(hostID uint) string {
	return fmt.Sprintf("%s%d", hostSessionsPrefix, hostID)
}
