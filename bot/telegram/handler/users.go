package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/conversation"
)

// UsersHandler manages the allowed-user list. Admin only.
type UsersHandler struct {
	deps *Deps
}

func (h *UsersHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key) {
	h.deps.Conversations.Begin(key, "users")
	h.showList(ctx, b, msg.Chat.ID)
}

func (h *UsersHandler) showList(ctx context.Context, b *telego.Bot, chatID int64) {
	var text strings.Builder
	text.WriteString(usersHeaderText)

	text.WriteString("*管理员*\n")
	for _, id := range h.deps.Users.Admins() {
		text.WriteString(fmt.Sprintf("  `%d`\n", id))
	}

	allowed := h.deps.Users.Allowed()
	text.WriteString("\n*授权用户*\n")
	if len(allowed) == 0 {
		text.WriteString("  无\n")
	}
	for _, id := range allowed {
		text.WriteString(fmt.Sprintf("  `%d`\n", id))
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(allowed)+1)
	for _, id := range allowed {
		rows = append(rows, []telego.InlineKeyboardButton{
			btn(fmt.Sprintf("➖ 移除 %d", id), fmt.Sprintf("us:rm:%d", id)),
		})
	}
	rows = append(rows, []telego.InlineKeyboardButton{btn("➕ 添加用户", "us:add:")})

	h.deps.sendMarkdown(ctx, b, chatID, text.String(), keyboard(rows...))
}

func (h *UsersHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	if state.Step != "add" {
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(msg.Text), 10, 64)
	if err != nil || id <= 0 {
		h.deps.reply(ctx, b, msg, invalidNumberText)
		return
	}

	added, err := h.deps.Users.Add(id)
	if err != nil {
		h.deps.Logger.Error("users: add failed", "user_id", id, "error", err)
		h.deps.reply(ctx, b, msg, danmakuPersistFailed)
		return
	}
	h.deps.Conversations.End(key)
	if added {
		h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(userAddedText, id))
	} else {
		h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(userExistsText, id))
	}
}

func (h *UsersHandler) OnCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, data string) {
	key, chatID, ok := callbackKey(query)
	if !ok {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case "add":
		state := h.deps.Conversations.Begin(key, "users")
		state.Step = "add"
		h.deps.answer(ctx, b, query, "")
		h.deps.send(ctx, b, chatID, inputUserIDText)

	case "rm":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			h.deps.answer(ctx, b, query, "")
			return
		}
		h.deps.answer(ctx, b, query, "")
		h.deps.sendKeyboard(ctx, b, chatID, fmt.Sprintf(confirmRemoveText, id), keyboard(
			[]telego.InlineKeyboardButton{
				btn("✅ 确认", fmt.Sprintf("us:rmc:%d", id)),
				btn("❌ 取消", "us:noop:"),
			},
		))

	case "rmc":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			h.deps.answer(ctx, b, query, "")
			return
		}
		removed, err := h.deps.Users.Remove(id)
		if err != nil {
			h.deps.answer(ctx, b, query, adminImmutableText)
			return
		}
		if !removed {
			h.deps.answer(ctx, b, query, "")
			return
		}
		h.deps.answer(ctx, b, query, "")
		h.deps.send(ctx, b, chatID, fmt.Sprintf(userRemovedText, id))
		h.showList(ctx, b, chatID)

	default:
		h.deps.answer(ctx, b, query, "")
	}
}
