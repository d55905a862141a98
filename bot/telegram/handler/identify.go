package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/conversation"
)

// IdentifyHandler manages identify-word rules through a four-step
// conversation. Admin only.
type IdentifyHandler struct {
	deps *Deps
}

func (h *IdentifyHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key) {
	state := h.deps.Conversations.Begin(key, "identify")
	state.Step = "src_name"

	rules := h.deps.Identify.Rules()
	if len(rules) > 0 {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("当前识别词 (%d 条):\n", len(rules)))
		for i := 0; i < truncateList(len(rules)); i++ {
			rule := rules[i]
			text.WriteString(fmt.Sprintf("%s => %s S%02d\n", rule.Pattern, rule.Name, rule.Season))
		}
		h.deps.send(ctx, b, msg.Chat.ID, text.String())
	}
	h.deps.reply(ctx, b, msg, identifyStep1Text)
}

func (h *IdentifyHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	text := strings.TrimSpace(msg.Text)

	switch state.Step {
	case "src_name":
		if text == "" {
			h.deps.reply(ctx, b, msg, identifyStep1Text)
			return
		}
		state.Data["src_name"] = text
		state.Step = "src_season"
		h.deps.Conversations.Touch(key)
		h.deps.reply(ctx, b, msg, identifyStep2Text)

	case "src_season":
		season, ok := parsePositiveInt(text)
		if !ok {
			h.deps.reply(ctx, b, msg, invalidNumberText)
			return
		}
		state.Data["src_season"] = fmt.Sprintf("%d", season)
		state.Step = "dst_name"
		h.deps.Conversations.Touch(key)
		h.deps.reply(ctx, b, msg, identifyStep3Text)

	case "dst_name":
		if text == "" {
			h.deps.reply(ctx, b, msg, identifyStep3Text)
			return
		}
		state.Data["dst_name"] = text
		state.Step = "dst_season"
		h.deps.Conversations.Touch(key)
		h.deps.reply(ctx, b, msg, identifyStep4Text)

	case "dst_season":
		dstSeason, ok := parsePositiveInt(text)
		if !ok {
			h.deps.reply(ctx, b, msg, invalidNumberText)
			return
		}
		srcSeason, _ := parsePositiveInt(state.Data["src_season"])
		srcName := state.Data["src_name"]
		dstName := state.Data["dst_name"]

		if err := h.deps.Identify.Add(srcName, srcSeason, dstName, dstSeason); err != nil {
			h.deps.Conversations.End(key)
			h.deps.send(ctx, b, msg.Chat.ID, err.Error())
			return
		}
		h.deps.Conversations.End(key)
		h.deps.send(ctx, b, msg.Chat.ID,
			fmt.Sprintf(identifyAddedText, srcName, srcSeason, dstName, dstSeason))
	}
}
