package entity

// Классификация результата ответа
const (
	// AnswerVerdictCorrect - ответ верный и засчитан
	AnswerVerdictCorrect = "correct"

	// AnswerVerdictIncorrect - ответ неверный
	AnswerVerdictIncorrect = "incorrect"

	// AnswerVerdictTimeout - ответ пришел после истечения лимита времени
	AnswerVerdictTimeout = "timeout"

	// AnswerVerdictSurvey - ответ на опрос, правильность не определена
	AnswerVerdictSurvey = "survey"
)

// PlayerAnswer представляет один ответ игрока на один слайд.
// Запись неизменна после создания; на пару (игрок, позиция слайда)
// существует не более одной записи.
type PlayerAnswer struct {
	BlockPosition  int    `json:"block_position"`
	ChoiceIDs      []int  `json:"choice_ids,omitempty"`
	Text           string `json:"text,omitempty"`
	ReactionTimeMs int64  `json:"reaction_time_ms"`
	Verdict        string `json:"verdict"`
	BasePoints     int    `json:"base_points"`
	FinalPoints    int    `json:"final_points"`
	StreakAfter    int    `json:"streak_after"`
}

// IsCorrect возвращает true только для засчитанного верного ответа.
// Для survey-ответов правильность не определена и считается false.
func (a *PlayerAnswer) IsCorrect() bool {
	return a.Verdict == AnswerVerdictCorrect
}
