package helper

import (
	"github.com/yourusername/gameshow-api/internal/domain/entity"
)

// ChoiceOption представляет вариант ответа для фронтенда
type ChoiceOption struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ConvertChoicesToObjects преобразует массив строк в массив объектов с id и text.
// ID использует 0-based индексацию для совместимости с CorrectChoices в базе данных.
func ConvertChoicesToObjects(choices entity.StringArray) []ChoiceOption {
	converted := make([]ChoiceOption, len(choices))
	for i, choice := range choices {
		// Добавляем дополнительную проверку на пустые строки
		if choice == "" {
			choice = "(пустой вариант)"
		}
		converted[i] = ChoiceOption{ID: i, Text: choice}
	}
	return converted
}
