package handler

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	botpkg "danmakubot/bot"
	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/db"
	"danmakubot/bot/resolver"
	"danmakubot/bot/store"
	"danmakubot/bot/telegram"
)

// Deps carries everything the command handlers share.
type Deps struct {
	Danmaku       *danmaku.Client
	Library       *danmaku.LibraryCache
	Resolvers     *resolver.Chain
	Conversations *conversation.Manager
	Users         botpkg.UserStore
	Blacklist     *store.Blacklist
	Identify      *store.Identify
	Repo          *db.Repository
	Limiter       *telegram.RateLimiter
	Logger        botpkg.Logger
}

func (d *Deps) reply(ctx context.Context, b *telego.Bot, msg *telego.Message, text string) *telego.Message {
	sent, err := telegram.SendMessageWithRetry(ctx, d.Limiter, b, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: msg.Chat.ID},
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{MessageID: msg.MessageID},
	})
	if err != nil {
		d.Logger.Warn("handler: send failed", "chat_id", msg.Chat.ID, "error", err)
	}
	return sent
}

func (d *Deps) send(ctx context.Context, b *telego.Bot, chatID int64, text string) *telego.Message {
	sent, err := telegram.SendMessageWithRetry(ctx, d.Limiter, b, &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: chatID},
		Text:   text,
	})
	if err != nil {
		d.Logger.Warn("handler: send failed", "chat_id", chatID, "error", err)
	}
	return sent
}

func (d *Deps) sendMarkdown(ctx context.Context, b *telego.Bot, chatID int64, text string, keyboard *telego.InlineKeyboardMarkup) *telego.Message {
	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: telego.ModeMarkdownV2,
	}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	sent, err := telegram.SendMessageWithRetry(ctx, d.Limiter, b, params)
	if err != nil {
		d.Logger.Warn("handler: send failed", "chat_id", chatID, "error", err)
	}
	return sent
}

func (d *Deps) sendKeyboard(ctx context.Context, b *telego.Bot, chatID int64, text string, keyboard *telego.InlineKeyboardMarkup) *telego.Message {
	sent, err := telegram.SendMessageWithRetry(ctx, d.Limiter, b, &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: chatID},
		Text:        text,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		d.Logger.Warn("handler: send failed", "chat_id", chatID, "error", err)
	}
	return sent
}

// showResults replaces the progress message with a markdown result
// list, falling back to a fresh message when editing is not possible.
func (d *Deps) showResults(ctx context.Context, b *telego.Bot, chatID int64, progress *telego.Message, text string, kb *telego.InlineKeyboardMarkup) {
	if progress != nil {
		_, err := telegram.EditMessageTextWithRetry(ctx, d.Limiter, b, &telego.EditMessageTextParams{
			ChatID:      telego.ChatID{ID: chatID},
			MessageID:   progress.MessageID,
			Text:        text,
			ParseMode:   telego.ModeMarkdownV2,
			ReplyMarkup: kb,
		})
		if err == nil || telegram.IsMessageNotModified(err) {
			return
		}
		d.Logger.Warn("handler: edit failed, sending fresh message", "chat_id", chatID, "error", err)
	}
	d.sendMarkdown(ctx, b, chatID, text, kb)
}

func (d *Deps) edit(ctx context.Context, b *telego.Bot, chatID int64, messageID int, text string) {
	_, err := telegram.EditMessageTextWithRetry(ctx, d.Limiter, b, &telego.EditMessageTextParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: messageID,
		Text:      text,
	})
	if err != nil && !telegram.IsMessageNotModified(err) {
		d.Logger.Warn("handler: edit failed", "chat_id", chatID, "error", err)
	}
}

func (d *Deps) answer(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, text string) {
	_ = telegram.AnswerCallbackQueryWithRetry(ctx, d.Limiter, b, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            text,
	})
}

// apiFail reports a remote failure to the user and ends the
// conversation. Remote errors are terminal for the current flow.
func (d *Deps) apiFail(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key, err error) {
	d.Logger.Warn("handler: api call failed", "chat_id", chatID, "error", err)
	d.Conversations.End(key)
	d.send(ctx, b, chatID, danmaku.UserMessage(err))
}

// recordImport logs an import attempt, best effort.
func (d *Deps) recordImport(ctx context.Context, rec *db.ImportRecord) {
	if d.Repo == nil {
		return
	}
	if err := d.Repo.RecordImport(ctx, rec); err != nil {
		d.Logger.Warn("handler: record import failed", "error", err)
	}
}

func taskSubmitted(task *danmaku.TaskRef) string {
	if task == nil || task.TaskID == "" {
		return fmt.Sprintf(taskSubmittedText, "ok")
	}
	return fmt.Sprintf(taskSubmittedText, task.TaskID)
}

func convKey(msg *telego.Message) conversation.Key {
	key := conversation.Key{ChatID: msg.Chat.ID}
	if msg.From != nil {
		key.UserID = msg.From.ID
	}
	return key
}

func callbackKey(query *telego.CallbackQuery) (conversation.Key, int64, bool) {
	if query.Message == nil {
		return conversation.Key{}, 0, false
	}
	msg := query.Message.Message()
	if msg == nil {
		return conversation.Key{}, 0, false
	}
	return conversation.Key{ChatID: msg.Chat.ID, UserID: query.From.ID}, msg.Chat.ID, true
}
