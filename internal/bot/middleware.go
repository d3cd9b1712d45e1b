package bot

import (
	"context"
	"runtime/debug"
	"strconv"

	"github.com/rs/zerolog"
)

// withRecovery runs handler and turns a panic into a logged error and, when chatID is set,
// a generic reply.
func (b *Bot) withRecovery(ctx context.Context, chatID int64, handler func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if b.metrics != nil {
			b.metrics.ErrorsTotal.Inc()
		}
		zerolog.Ctx(ctx).Error().
			Interface("panic", r).
			Bytes("stack", debug.Stack()).
			Msg("Recovered from panic in update handler")
		if chatID != 0 {
			b.sendMessage(chatID, msgInternalError)
		}
	}()
	handler()
}

// allowed applies the per-user message limit. Admins are never limited, and a failing
// limiter lets the message through.
func (b *Bot) allowed(ctx context.Context, userID int64) bool {
	if b.isAdmin(userID) || b.limits == nil || b.config.RateLimitMessages <= 0 {
		return true
	}
	ok, err := b.limits.CheckRateLimit(ctx, "tg:"+strconv.FormatInt(userID, 10), b.config.RateLimitMessages, b.config.RateLimitWindow)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
		return true
	}
	return ok
}
