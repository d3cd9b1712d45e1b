package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"barbershop/internal/models"
	"barbershop/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const helpText = `Команды мастера:
/today - записи на сегодня
/tomorrow - записи на завтра
/day ГГГГ-ММ-ДД - записи на дату
/slots [ГГГГ-ММ-ДД] - свободное время
/off N, /on N - выключить или включить день недели (0 - воскресенье)
/waitlist [ГГГГ-ММ-ДД] - лист ожидания
/confirm ID - подтвердить запись
/cancel ID - отменить запись

Администратор может добавить ID мастера первым аргументом.`

var weekdayNames = [...]string{"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	command := msg.Command()
	if command == "" {
		b.sendMessage(msg.Chat.ID, helpText)
		return
	}
	if b.metrics != nil {
		b.metrics.CommandsProcessed.WithLabelValues(command).Inc()
	}
	args := strings.Fields(msg.CommandArguments())

	if command == "start" || command == "help" {
		b.sendMessage(msg.Chat.ID, helpText)
		return
	}

	barber, args, err := b.barberFor(ctx, msg, args)
	if err != nil {
		b.reply(ctx, msg.Chat.ID, err)
		return
	}
	if barber == nil {
		b.sendMessage(msg.Chat.ID, "Этот чат не привязан ни к одному мастеру.")
		return
	}

	today := models.StartOfDay(b.now().In(b.loc))
	switch command {
	case "today":
		b.sendAgenda(ctx, msg.Chat.ID, barber, today)
	case "tomorrow":
		b.sendAgenda(ctx, msg.Chat.ID, barber, today.AddDate(0, 0, 1))
	case "day":
		date, err := b.dateArg(args, today)
		if err != nil {
			b.reply(ctx, msg.Chat.ID, err)
			return
		}
		b.sendAgenda(ctx, msg.Chat.ID, barber, date)
	case "slots":
		date, err := b.dateArg(args, today)
		if err != nil {
			b.reply(ctx, msg.Chat.ID, err)
			return
		}
		b.sendSlots(ctx, msg.Chat.ID, barber, date)
	case "off", "on":
		b.toggleDay(ctx, msg.Chat.ID, barber, args, command == "on")
	case "waitlist":
		date := time.Time{}
		if len(args) > 0 {
			if date, err = models.ParseDay(args[0], b.loc); err != nil {
				b.reply(ctx, msg.Chat.ID, err)
				return
			}
		}
		b.sendWaitlist(ctx, msg.Chat.ID, barber, date)
	case "confirm", "cancel":
		b.changeStatus(ctx, msg.Chat.ID, barber, args, command == "cancel")
	default:
		b.sendMessage(msg.Chat.ID, "Неизвестная команда.\n\n"+helpText)
	}
}

// barberFor finds the barber linked to the chat. Admins may name any barber in the first
// argument instead.
func (b *Bot) barberFor(ctx context.Context, msg *tgbotapi.Message, args []string) (*models.Barber, []string, error) {
	barbers, err := b.svc.Barbers.List(ctx)
	if err != nil {
		return nil, args, err
	}
	if b.isAdmin(msg.From.ID) && len(args) > 0 {
		for _, br := range barbers {
			if br.ID == args[0] {
				return br, args[1:], nil
			}
		}
	}
	for _, br := range barbers {
		if br.TelegramChatID != 0 && br.TelegramChatID == msg.Chat.ID {
			return br, args, nil
		}
	}
	return nil, args, nil
}

func (b *Bot) dateArg(args []string, def time.Time) (time.Time, error) {
	if len(args) == 0 {
		return def, nil
	}
	return models.ParseDay(args[0], b.loc)
}

func (b *Bot) sendAgenda(ctx context.Context, chatID int64, barber *models.Barber, date time.Time) {
	day, err := b.svc.Schedules.ResolveDay(ctx, barber.ID, date)
	if err != nil {
		b.reply(ctx, chatID, err)
		return
	}
	appts, err := b.svc.Booking.AppointmentsForDay(ctx, barber.ID, date)
	if err != nil {
		b.reply(ctx, chatID, err)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s, %s\n", weekdayNames[date.Weekday()], models.DayKey(date))
	if !day.IsOpen {
		sb.WriteString("Выходной.\n")
	} else {
		fmt.Fprintf(&sb, "Работа: %s-%s", models.ClockOf(day.Start), models.ClockOf(day.End))
		if day.HasBreak {
			fmt.Fprintf(&sb, ", перерыв %s-%s", models.ClockOf(day.BreakStart), models.ClockOf(day.BreakEnd))
		}
		sb.WriteString("\n")
	}

	if len(appts) == 0 {
		sb.WriteString("\nЗаписей нет.")
		b.sendMessage(chatID, sb.String())
		return
	}
	sb.WriteString("\n")
	for _, a := range appts {
		start := a.Date.In(b.loc)
		fmt.Fprintf(&sb, "%s-%s %s", models.ClockOf(start), models.ClockOf(a.End().In(b.loc)), clientName(a))
		if a.Status == models.StatusPending {
			sb.WriteString(" (ожидает подтверждения)")
		}
		fmt.Fprintf(&sb, "\nID: %s\n", a.ID)
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) sendSlots(ctx context.Context, chatID int64, barber *models.Barber, date time.Time) {
	slots, err := b.svc.Schedules.AvailableSlots(ctx, barber.ID, date)
	if err != nil {
		b.reply(ctx, chatID, err)
		return
	}
	if len(slots) == 0 {
		b.sendMessage(chatID, fmt.Sprintf("На %s свободного времени нет.", models.DayKey(date)))
		return
	}
	times := make([]string, 0, len(slots))
	for _, s := range slots {
		times = append(times, models.ClockOf(s).String())
	}
	b.sendMessage(chatID, fmt.Sprintf("Свободно %s:\n%s", models.DayKey(date), strings.Join(times, " ")))
}

func (b *Bot) toggleDay(ctx context.Context, chatID int64, barber *models.Barber, args []string, available bool) {
	if len(args) == 0 {
		b.sendMessage(chatID, "Укажите день недели: число от 0 (воскресенье) до 6 (суббота).")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		n = -1
	}
	weekday := time.Weekday(n)
	if _, err := b.svc.Schedules.ToggleDay(ctx, barber.ID, weekday, available); err != nil {
		b.reply(ctx, chatID, err)
		return
	}
	state := "выходной"
	if available {
		state = "рабочий день"
	}
	b.sendMessage(chatID, fmt.Sprintf("✅ %s теперь %s.", weekdayNames[weekday], state))
}

func (b *Bot) sendWaitlist(ctx context.Context, chatID int64, barber *models.Barber, date time.Time) {
	entries, err := b.svc.Waitlist.List(ctx, barber.ID, date, models.WaitlistWaiting)
	if err != nil {
		b.reply(ctx, chatID, err)
		return
	}
	if len(entries) == 0 {
		b.sendMessage(chatID, "Лист ожидания пуст.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Лист ожидания:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s %s-%s %s", models.DayKey(e.Date.In(b.loc)), e.From, e.To, e.ClientName)
		if e.ClientPhone != "" {
			fmt.Fprintf(&sb, " %s", e.ClientPhone)
		}
		sb.WriteString("\n")
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) changeStatus(ctx context.Context, chatID int64, barber *models.Barber, args []string, cancel bool) {
	if len(args) == 0 {
		b.sendMessage(chatID, "Укажите ID записи.")
		return
	}
	appt, err := b.svc.Booking.Get(ctx, args[0])
	if err != nil {
		b.reply(ctx, chatID, err)
		return
	}
	if appt.BarberID != barber.ID {
		b.sendMessage(chatID, "⚠️ Запись не найдена.")
		return
	}

	if cancel {
		_, err = b.svc.Booking.Cancel(ctx, service.CancelRequest{AppointmentID: appt.ID, By: models.CancelledByBarber})
	} else {
		_, err = b.svc.Booking.UpdateStatus(ctx, appt.ID, models.StatusConfirmed, models.CancelledByBarber)
	}
	if err != nil {
		b.reply(ctx, chatID, err)
		return
	}
	if cancel {
		b.sendMessage(chatID, "✅ Запись отменена.")
		return
	}
	b.sendMessage(chatID, "✅ Запись подтверждена.")
}

// reply reports err to the chat and logs anything that is not a user mistake.
func (b *Bot) reply(ctx context.Context, chatID int64, err error) {
	text := b.getErrorMessage(err)
	if strings.HasPrefix(text, "❌") {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Command failed")
	}
	b.sendMessage(chatID, text)
}

func clientName(a models.Appointment) string {
	if a.ClientName != "" {
		return a.ClientName
	}
	return a.UserID
}
