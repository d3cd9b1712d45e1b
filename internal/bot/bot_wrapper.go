package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageRunes is Telegram's limit for one text message.
const maxMessageRunes = 4096

// BotWrapper adapts *tgbotapi.BotAPI to TelegramAPI. Long texts go out as several messages.
type BotWrapper struct {
	*tgbotapi.BotAPI
}

func NewBotWrapper(bot *tgbotapi.BotAPI) *BotWrapper {
	return &BotWrapper{BotAPI: bot}
}

func (w *BotWrapper) GetSelf() tgbotapi.User {
	return w.Self
}

func (w *BotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return w.BotAPI.Send(c)
	}
	var sent tgbotapi.Message
	for _, part := range splitMessage(msg.Text, maxMessageRunes) {
		msg.Text = part
		m, err := w.BotAPI.Send(msg)
		if err != nil {
			return m, err
		}
		sent = m
	}
	return sent, nil
}

// splitMessage cuts text into parts of at most limit runes, breaking after a newline when
// one is available.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		if i := strings.LastIndex(string(runes[:limit]), "\n"); i > 0 {
			cut = len([]rune(string(runes[:limit])[:i])) + 1
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
