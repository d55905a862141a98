package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
)

// TokensHandler manages the remote API tokens: listing, toggling,
// deletion and the two-step creation flow.
type TokensHandler struct {
	deps *Deps
}

func (h *TokensHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key) {
	h.deps.Conversations.Begin(key, "tokens")
	h.showList(ctx, b, msg.Chat.ID, key)
}

func (h *TokensHandler) showList(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key) {
	tokens, err := h.deps.Danmaku.Tokens(ctx)
	if err != nil {
		h.deps.apiFail(ctx, b, chatID, key, err)
		return
	}

	var text strings.Builder
	text.WriteString(tokensHeaderText)
	for i, token := range tokens {
		status := "✅"
		if !token.IsEnabled {
			status = "🚫"
		}
		expires := token.ExpiresAt
		if expires == "" {
			expires = "永久"
		}
		text.WriteString(fmt.Sprintf("%d\\. %s %s\n   有效期至: %s\n",
			i+1, status,
			mdV2Replacer.Replace(token.Name),
			mdV2Replacer.Replace(expires),
		))
	}
	if len(tokens) == 0 {
		text.WriteString("暂无 Token\n")
	}

	rows := make([][]telego.InlineKeyboardButton, 0, len(tokens)+1)
	for i, token := range tokens {
		rows = append(rows, []telego.InlineKeyboardButton{
			btn(fmt.Sprintf("%d 🔃 切换", i+1), "tk:tog:"+token.ID),
			btn(fmt.Sprintf("%d 🗑 删除", i+1), "tk:del:"+token.ID),
		})
	}
	rows = append(rows, []telego.InlineKeyboardButton{btn("➕ 添加 Token", "tk:add:")})

	h.deps.sendMarkdown(ctx, b, chatID, text.String(), keyboard(rows...))
}

func (h *TokensHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	if state.Step != "name" {
		return
	}
	name := strings.TrimSpace(msg.Text)
	if name == "" {
		h.deps.reply(ctx, b, msg, inputTokenNameText)
		return
	}
	state.Data["name"] = name
	state.Step = "validity"
	h.deps.Conversations.Touch(key)

	rows := make([][]telego.InlineKeyboardButton, 0, len(danmaku.TokenValidities))
	for _, v := range danmaku.TokenValidities {
		rows = append(rows, []telego.InlineKeyboardButton{btn(v.Label, "tk:val:"+v.Value)})
	}
	h.deps.sendKeyboard(ctx, b, msg.Chat.ID, chooseValidityText, keyboard(rows...))
}

func (h *TokensHandler) OnCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, data string) {
	key, chatID, ok := callbackKey(query)
	if !ok {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case "add":
		state := h.deps.Conversations.Begin(key, "tokens")
		state.Step = "name"
		h.deps.answer(ctx, b, query, "")
		h.deps.send(ctx, b, chatID, inputTokenNameText)

	case "tog":
		if err := h.deps.Danmaku.ToggleToken(ctx, arg); err != nil {
			h.deps.answer(ctx, b, query, danmaku.UserMessage(err))
			return
		}
		h.deps.answer(ctx, b, query, tokenToggledText)
		h.showList(ctx, b, chatID, key)

	case "del":
		if err := h.deps.Danmaku.DeleteToken(ctx, arg); err != nil {
			h.deps.answer(ctx, b, query, danmaku.UserMessage(err))
			return
		}
		h.deps.answer(ctx, b, query, tokenDeletedText)
		h.showList(ctx, b, chatID, key)

	case "val":
		state := h.deps.Conversations.Get(key)
		if state == nil || state.Command != "tokens" || state.Step != "validity" {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		token, err := h.deps.Danmaku.CreateToken(ctx, state.Data["name"], arg)
		if err != nil {
			h.deps.apiFail(ctx, b, chatID, key, err)
			return
		}
		h.deps.Conversations.End(key)
		value := ""
		if token != nil {
			value = token.Token
		}
		h.deps.sendMarkdown(ctx, b, chatID,
			fmt.Sprintf(tokenCreatedText, mdV2Replacer.Replace(value)), nil)

	default:
		h.deps.answer(ctx, b, query, "")
	}
}
