package sessionmanager

import (
	"log"
	"strings"

	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// SubmittedAnswer - типизированный ответ игрока, уже разобранный на границе
// транспорта
type SubmittedAnswer struct {
	BlockPosition int
	ChoiceIDs     []int
	Text          string
}

// ScoringEngine отвечает за оценку ответов и начисление очков.
// Движок полностью чистый: он не трогает ростер и сессию, а возвращает
// готовую запись об ответе, которую применяет владелец состояния.
type ScoringEngine struct {
	config *Config
}

// NewScoringEngine создает новый движок подсчета очков
func NewScoringEngine(config *Config) *ScoringEngine {
	return &ScoringEngine{config: config}
}

// Evaluate оценивает ответ игрока на слайд. reactionTimeMs - время от начала
// показа слайда до получения ответа сервером; currentStreak - серия игрока
// до этого ответа.
func (se *ScoringEngine) Evaluate(
	block *entity.Block,
	answer SubmittedAnswer,
	reactionTimeMs int64,
	currentStreak int,
) entity.PlayerAnswer {
	record := entity.PlayerAnswer{
		BlockPosition:  block.Position,
		ChoiceIDs:      answer.ChoiceIDs,
		Text:           answer.Text,
		ReactionTimeMs: reactionTimeMs,
	}

	// Опросы собирают мнения, а не оценивают: очков нет, правильность
	// не определена, серия не меняется
	if block.Kind == entity.BlockKindSurvey {
		record.Verdict = entity.AnswerVerdictSurvey
		record.StreakAfter = currentStreak
		return record
	}

	// Лимит времени проверяется в момент оценки по фактическому времени
	// реакции, а не серверным таймером: опоздавший ответ - таймаут
	// независимо от содержимого
	if reactionTimeMs > block.TimeLimitMs {
		log.Printf("[ScoringEngine] Ответ на слайд #%d получен после дедлайна (%d мс > %d мс)",
			block.Position, reactionTimeMs, block.TimeLimitMs)
		record.Verdict = entity.AnswerVerdictTimeout
		record.StreakAfter = 0
		return record
	}

	correct := se.isCorrect(block, answer)
	if !correct {
		record.Verdict = entity.AnswerVerdictIncorrect
		record.StreakAfter = 0
		return record
	}

	record.Verdict = entity.AnswerVerdictCorrect
	record.StreakAfter = currentStreak + 1
	record.BasePoints = se.speedPoints(reactionTimeMs, block.TimeLimitMs)
	record.FinalPoints = se.applyBonuses(record.BasePoints, block.PointsMultiplier, record.StreakAfter)
	return record
}

// isCorrect проверяет правильность ответа с учетом вида слайда
func (se *ScoringEngine) isCorrect(block *entity.Block, answer SubmittedAnswer) bool {
	switch block.Kind {
	case entity.BlockKindQuiz:
		return se.choicesMatch(block.CorrectChoices, answer.ChoiceIDs, false)
	case entity.BlockKindJumble:
		// Для упорядочивания засчитывается только точное совпадение
		// перестановки, частичных очков нет
		return se.choicesMatch(block.CorrectChoices, answer.ChoiceIDs, true)
	case entity.BlockKindOpenEnded:
		return se.textMatches(block.AcceptedAnswers, answer.Text)
	default:
		return false
	}
}

// choicesMatch сравнивает выбранные индексы с эталонными.
// ordered=true требует точного совпадения последовательности;
// иначе сравниваются множества.
func (se *ScoringEngine) choicesMatch(correct []int, submitted []int, ordered bool) bool {
	if len(submitted) == 0 || len(submitted) != len(correct) {
		return false
	}
	if ordered {
		for i, id := range submitted {
			if id != correct[i] {
				return false
			}
		}
		return true
	}

	expected := make(map[int]struct{}, len(correct))
	for _, id := range correct {
		expected[id] = struct{}{}
	}
	for _, id := range submitted {
		if _, ok := expected[id]; !ok {
			return false
		}
		delete(expected, id)
	}
	return len(expected) == 0
}

// textMatches сравнивает текстовый ответ с допустимыми вариантами
// без учета регистра и краевых пробелов
func (se *ScoringEngine) textMatches(accepted []string, text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	for _, candidate := range accepted {
		if strings.ToLower(strings.TrimSpace(candidate)) == normalized {
			return true
		}
	}
	return false
}

// speedPoints начисляет базовые очки за скорость: полная стоимость при
// мгновенном ответе, линейный спад до нижней границы на краю лимита времени.
// Быстрый правильный ответ всегда стоит не меньше медленного.
func (se *ScoringEngine) speedPoints(reactionTimeMs, timeLimitMs int64) int {
	base := float64(se.config.BasePoints)
	floor := base * se.config.SpeedFloorRatio

	if timeLimitMs <= 0 {
		return int(floor)
	}
	if reactionTimeMs < 0 {
		reactionTimeMs = 0
	}
	if reactionTimeMs > timeLimitMs {
		reactionTimeMs = timeLimitMs
	}

	fraction := float64(reactionTimeMs) / float64(timeLimitMs)
	return int(base - (base-floor)*fraction)
}

// applyBonuses применяет множитель слайда и надбавку за серию
func (se *ScoringEngine) applyBonuses(basePoints, multiplier, streak int) int {
	points := basePoints * multiplier

	bonusSteps := streak - 1
	if bonusSteps < 0 {
		bonusSteps = 0
	}
	if bonusSteps > se.config.StreakBonusCap {
		bonusSteps = se.config.StreakBonusCap
	}

	return points + int(float64(points)*se.config.StreakBonusRatio*float64(bonusSteps))
}
