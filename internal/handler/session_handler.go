package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"github.com/yourusername/gameshow-api/internal/domain/entity"
	"github.com/yourusername/gameshow-api/internal/domain/repository"
	"github.com/yourusername/gameshow-api/internal/handler/dto"
	apperrors "github.com/yourusername/gameshow-api/internal/pkg/errors"
	"github.com/yourusername/gameshow-api/internal/service"
	"github.com/yourusername/gameshow-api/pkg/auth"
)

// SessionHandler обрабатывает запросы хостов и игроков к живым сессиям
type SessionHandler struct {
	sessionService   *service.SessionService
	finalizationRepo repository.FinalizationRepository
	jwtService       *auth.JWTService
}

// NewSessionHandler создает новый обработчик сессий
func NewSessionHandler(
	sessionService *service.SessionService,
	finalizationRepo repository.FinalizationRepository,
	jwtService *auth.JWTService,
) *SessionHandler {
	return &SessionHandler{
		sessionService:   sessionService,
		finalizationRepo: finalizationRepo,
		jwtService:       jwtService,
	}
}

// CreateSession запускает живую сессию для игры хоста
// POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)

	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessionService.CreateSession(c.Request.Context(), req.GameID, hostID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.SessionCreatedResponse{
		SessionID: session.ID,
		PIN:       session.PIN,
	})
}

// GetSession возвращает снимок состояния сессии для панели хоста
// GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	snapshot, err := h.sessionService.Snapshot(sessionID, hostID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// ResolvePIN возвращает идентификатор сессии по PIN-коду.
// Публичный endpoint, защищен rate limiter'ом от перебора.
// POST /api/sessions/resolve
func (h *SessionHandler) ResolvePIN(c *gin.Context) {
	var req dto.ResolvePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID, err := h.sessionService.ResolvePIN(req.PIN)
	if err != nil {
		// Не раскрываем, существует PIN или нет, сверх 404
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	c.JSON(http.StatusOK, dto.ResolvePinResponse{SessionID: sessionID})
}

// IssuePlayerTicket выдает игроку одноразовый тикет для WebSocket.
// Идентификатор клиента генерируется сервером: он же становится
// ключом игрока в ростере на все время сессии.
// POST /api/sessions/:id/ticket
func (h *SessionHandler) IssuePlayerTicket(c *gin.Context) {
	sessionID := c.Param("id")

	// Проверяем, что сессия загружена, до выдачи тикета
	if err := h.sessionService.SessionLoaded(sessionID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	cid := uuid.New().String()
	ticket, err := h.jwtService.GenerateWSTicket(0, sessionID, cid)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка генерации тикета для сессии %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue ticket"})
		return
	}

	c.JSON(http.StatusOK, dto.TicketResponse{Ticket: ticket, SessionID: sessionID, CID: cid})
}

// IssueHostTicket выдает хосту тикет для наблюдения за каналами сессии
// POST /api/sessions/:id/host-ticket
func (h *SessionHandler) IssueHostTicket(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	// Снимок заодно проверяет владение сессией
	if _, err := h.sessionService.Snapshot(sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}

	cid := fmt.Sprintf("host-%d", hostID)
	ticket, err := h.jwtService.GenerateWSTicket(hostID, sessionID, cid)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка генерации тикета хоста для сессии %s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue ticket"})
		return
	}

	c.JSON(http.StatusOK, dto.TicketResponse{Ticket: ticket, SessionID: sessionID, CID: cid})
}

// StartSession переводит сессию из лобби к первому вопросу
// POST /api/sessions/:id/start
func (h *SessionHandler) StartSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	if err := h.sessionService.StartSession(sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

// AdvanceSession продвигает сессию к следующей фазе
// POST /api/sessions/:id/advance
func (h *SessionHandler) AdvanceSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	if err := h.sessionService.AdvanceSession(sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "advanced"})
}

// KickPlayer исключает игрока из сессии
// POST /api/sessions/:id/players/:cid/kick
func (h *SessionHandler) KickPlayer(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")
	clientID := c.Param("cid")

	if err := h.sessionService.KickPlayer(sessionID, hostID, clientID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "kicked"})
}

// AbortSession досрочно завершает сессию
// POST /api/sessions/:id/abort
func (h *SessionHandler) AbortSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	if err := h.sessionService.AbortSession(sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aborted"})
}

// ReturnToLobby возвращает сессию с подиума в зал ожидания
// для повторной партии тем же составом
// POST /api/sessions/:id/lobby
func (h *SessionHandler) ReturnToLobby(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	if err := h.sessionService.ReturnToLobby(sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "lobby"})
}

// RetryFinalization повторяет отправку записи финализации
// POST /api/sessions/:id/finalization/retry
func (h *SessionHandler) RetryFinalization(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	if err := h.sessionService.RetryFinalization(c.Request.Context(), sessionID, hostID); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "finalized"})
}

// ChangeBackground меняет фон зала ожидания
// POST /api/sessions/:id/background
func (h *SessionHandler) ChangeBackground(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	var req dto.BackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.ChangeBackground(sessionID, hostID, req.URL); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "changed"})
}

// SetAutoStart меняет таймер автостарта лобби
// POST /api/sessions/:id/auto-start
func (h *SessionHandler) SetAutoStart(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("id")

	var req dto.AutoStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessionService.SetAutoStart(sessionID, hostID, req.Seconds); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// ListActiveSessions возвращает идентификаторы живых сессий хоста
// GET /api/sessions/active
func (h *SessionHandler) ListActiveSessions(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	c.JSON(http.StatusOK, dto.ActiveSessionsResponse{
		SessionIDs: h.sessionService.ActiveSessions(hostID),
	})
}

// ListFinalizedSessions возвращает страницу записей финализации хоста
// GET /api/sessions/finalized?limit=20&offset=0
func (h *SessionHandler) ListFinalizedSessions(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.finalizationRepo.ListByHost(hostID, limit, offset)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	resp := make([]*dto.FinalizedSessionResponse, 0, len(records))
	for i := range records {
		resp = append(resp, dto.NewFinalizedSessionResponse(&records[i]))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": resp, "limit": limit, "offset": offset})
}

// GetFinalizedSession возвращает полную запись финализации
// GET /api/sessions/finalized/:sid
func (h *SessionHandler) GetFinalizedSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("sid")

	record, err := h.finalizationRepo.GetBySessionID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	if record.HostID != hostID {
		c.JSON(http.StatusForbidden, gin.H{"error": apperrors.ErrForbidden.Error()})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ExportFinalizedSession экспортирует итоги сессии в CSV или Excel формате
// GET /api/sessions/finalized/:sid/export?format=csv|xlsx
func (h *SessionHandler) ExportFinalizedSession(c *gin.Context) {
	hostID := c.MustGet("user_id").(uint)
	sessionID := c.Param("sid")
	format := c.DefaultQuery("format", "csv")

	record, err := h.finalizationRepo.GetBySessionID(sessionID)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	if record.HostID != hostID {
		c.JSON(http.StatusForbidden, gin.H{"error": apperrors.ErrForbidden.Error()})
		return
	}

	players := record.Record.Players
	filename := fmt.Sprintf("session_%s_results_%s", sessionID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, players, filename)
	default:
		h.exportCSV(c, players, filename)
	}
}

// exportCSV экспортирует итоги в CSV с правильным экранированием спецсимволов
func (h *SessionHandler) exportCSV(c *gin.Context, players []entity.PlayerSummary, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	// Используем encoding/csv для правильного экранирования запятых/кавычек
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// Заголовки
	writer.Write([]string{"Место", "Никнейм", "Очки", "Правильных", "Лучшая серия", "Статус"})

	// Данные
	for _, p := range players {
		writer.Write([]string{
			strconv.Itoa(p.Rank),
			sanitizeForExcel(p.Nickname),
			strconv.Itoa(p.Score),
			strconv.Itoa(p.CorrectCount),
			strconv.Itoa(p.MaxStreak),
			translatePlayerStatus(p.Status),
		})
	}
}

// exportXLSX экспортирует итоги в Excel с использованием StreamWriter
func (h *SessionHandler) exportXLSX(c *gin.Context, players []entity.PlayerSummary, filename string) {
	// Используем StreamWriter для эффективной работы с большими файлами
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Итоги"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[SessionHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	// Заголовки
	headers := []interface{}{"Место", "Никнейм", "Очки", "Правильных", "Лучшая серия", "Статус"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[SessionHandler] Ошибка записи заголовков: %v", err)
	}

	// Данные
	for i, p := range players {
		rowNum := i + 2 // Начинаем с 2 строки (1 - заголовки)
		cell := fmt.Sprintf("A%d", rowNum)

		row := []interface{}{p.Rank, sanitizeForExcel(p.Nickname), p.Score, p.CorrectCount, p.MaxStreak, translatePlayerStatus(p.Status)}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[SessionHandler] Ошибка записи строки %d: %v", rowNum, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[SessionHandler] Ошибка при Flush: %v", err)
	}

	// Записываем в response
	if err := f.Write(c.Writer); err != nil {
		log.Printf("[SessionHandler] Ошибка записи Excel в response: %v", err)
	}
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// translatePlayerStatus переводит итоговый статус игрока на русский
func translatePlayerStatus(status string) string {
	switch status {
	case entity.PlayerStatusFinished:
		return "Доиграл"
	case entity.PlayerStatusKicked:
		return "Исключен"
	case entity.PlayerStatusDisconnected:
		return "Отключился"
	default:
		return status
	}
}

// handleSessionError преобразует ошибки сервиса в HTTP-ответы
func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else if errors.Is(err, repository.ErrSessionAlreadyFinalized) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in SessionHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
