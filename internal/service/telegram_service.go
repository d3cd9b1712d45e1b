package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"barbershop/internal/domain"
	"barbershop/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends schedule notices to barbers' Telegram chats. Barbers without
// a chat are skipped silently.
type TelegramNotifier struct {
	bot domain.TelegramSender
	loc *time.Location
}

func NewTelegramNotifier(bot domain.TelegramSender, loc *time.Location) *TelegramNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &TelegramNotifier{
		bot: bot,
		loc: loc,
	}
}

func (n *TelegramNotifier) SendMessage(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	return n.bot.Send(msg)
}

func (n *TelegramNotifier) send(barber *models.Barber, text string) error {
	if barber == nil || barber.TelegramChatID == 0 {
		return nil
	}
	if _, err := n.SendMessage(barber.TelegramChatID, text); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (n *TelegramNotifier) AppointmentCreated(_ context.Context, barber *models.Barber, a *models.Appointment) error {
	text := fmt.Sprintf("📅 <b>Новая запись</b>\n%s\n%s, %d мин.",
		n.when(a.Date), clientLabel(a), a.Duration)
	if a.Status == models.StatusPending {
		text += "\nОжидает подтверждения"
	}
	return n.send(barber, text)
}

func (n *TelegramNotifier) AppointmentCancelled(_ context.Context, barber *models.Barber, a *models.Appointment) error {
	text := fmt.Sprintf("❌ <b>Запись отменена</b>\n%s\n%s", n.when(a.Date), clientLabel(a))
	return n.send(barber, text)
}

func (n *TelegramNotifier) WaitlistSlotOpened(_ context.Context, barber *models.Barber, e *models.WaitlistEntry) error {
	name := e.ClientName
	if name == "" {
		name = e.UserID
	}
	text := fmt.Sprintf("🔔 <b>Освободилось время</b>\n%s %s–%s\nЛист ожидания: %s",
		e.Date.In(n.loc).Format("02.01.2006"), e.From, e.To, html.EscapeString(name))
	if e.ClientPhone != "" {
		text += "\n📞 " + html.EscapeString(e.ClientPhone)
	}
	return n.send(barber, text)
}

// DailyAgenda sends the list of the barber's appointments on date.
func (n *TelegramNotifier) DailyAgenda(_ context.Context, barber *models.Barber, date time.Time, appts []*models.Appointment) error {
	var b strings.Builder
	fmt.Fprintf(&b, "🗓 <b>Записи на %s</b>\n", date.In(n.loc).Format("02.01.2006"))
	for _, a := range appts {
		fmt.Fprintf(&b, "\n%s (%d мин.) %s", a.Date.In(n.loc).Format("15:04"), a.Duration, clientLabel(a))
	}
	return n.send(barber, b.String())
}

func (n *TelegramNotifier) when(t time.Time) string {
	return t.In(n.loc).Format("02.01.2006 15:04")
}

func clientLabel(a *models.Appointment) string {
	name := a.ClientName
	if name == "" {
		name = a.UserID
	}
	label := html.EscapeString(name)
	if a.ClientPhone != "" {
		label += " " + html.EscapeString(a.ClientPhone)
	}
	return label
}
