package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/conversation"
)

// BlacklistHandler manages blocked title fragments. Admin only.
type BlacklistHandler struct {
	deps *Deps
}

func (h *BlacklistHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key) {
	state := h.deps.Conversations.Begin(key, "blacklist")
	state.Step = "name"

	names := h.deps.Blacklist.Names()
	var text strings.Builder
	text.WriteString(fmt.Sprintf(blacklistHeaderText, len(names)))
	if len(names) > 0 {
		text.WriteString("\n\n")
		for i := 0; i < truncateList(len(names)); i++ {
			text.WriteString(fmt.Sprintf("%d. %s\n", i+1, names[i]))
		}
		if len(names) > maxListedResults {
			text.WriteString(fmt.Sprintf("... 等 %d 条\n", len(names)))
		}
	}
	h.deps.send(ctx, b, msg.Chat.ID, text.String())
}

func (h *BlacklistHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	if state.Step != "name" {
		return
	}
	name := strings.TrimSpace(msg.Text)
	added, err := h.deps.Blacklist.Add(name)
	if err != nil {
		h.deps.reply(ctx, b, msg, invalidNumberText)
		return
	}
	h.deps.Conversations.End(key)
	if added {
		h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(blacklistAddedText, name))
	} else {
		h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(blacklistExistsText, name))
	}
}
