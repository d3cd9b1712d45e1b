package bot

import (
	"errors"

	"barbershop/internal/database"
	"barbershop/internal/models"
	"barbershop/internal/service"
)

const msgInternalError = "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, database.ErrNotFound):
		return "⚠️ Запись не найдена."
	case errors.Is(err, service.ErrAlreadyFinal):
		return "⚠️ Запись уже отменена или завершена."
	case errors.Is(err, service.ErrInvalidTransition):
		return "⚠️ Нельзя перевести запись в этот статус."
	case errors.Is(err, database.ErrConcurrentModification):
		return "⚠️ Произошла ошибка при сохранении (конфликт версий). Пожалуйста, попробуйте еще раз."
	case errors.Is(err, models.ErrInvalidDate):
		return "⚠️ Дата должна быть в формате ГГГГ-ММ-ДД."
	case errors.Is(err, models.ErrInvalidWeekday):
		return "⚠️ День недели: число от 0 (воскресенье) до 6 (суббота)."
	}

	return msgInternalError
}
