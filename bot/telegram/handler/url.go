package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/db"
)

// URLHandler implements /url: import danmaku for one episode of an
// existing source from an external page URL.
type URLHandler struct {
	deps *Deps
}

func (h *URLHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key) {
	state := h.deps.Conversations.Begin(key, "url")
	state.Step = "url"
	h.deps.reply(ctx, b, msg, inputURLText)
}

func (h *URLHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	switch state.Step {
	case "url":
		text := strings.TrimSpace(msg.Text)
		if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
			h.deps.reply(ctx, b, msg, inputURLText)
			return
		}
		state.Data["url"] = text
		state.Step = "keyword"
		h.deps.Conversations.Touch(key)
		h.deps.reply(ctx, b, msg, inputLibKeywordText)

	case "keyword":
		h.pickAnime(ctx, b, msg, key, state)

	case "episode":
		index, ok := parsePositiveInt(msg.Text)
		if !ok {
			h.deps.reply(ctx, b, msg, invalidNumberText)
			return
		}
		sourceID, _ := strconv.ParseInt(state.Data["source_id"], 10, 64)
		err := h.deps.Danmaku.ImportURL(ctx, danmaku.ImportURLRequest{
			SourceID:     sourceID,
			EpisodeIndex: index,
			URL:          state.Data["url"],
		})
		if err != nil {
			h.deps.apiFail(ctx, b, msg.Chat.ID, key, err)
			return
		}
		h.deps.Conversations.End(key)
		h.deps.recordImport(ctx, &db.ImportRecord{
			Kind:       "url",
			SearchTerm: state.Data["url"],
			Episode:    index,
			Status:     "submitted",
			ChatID:     msg.Chat.ID,
			UserID:     key.UserID,
		})
		h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(taskSubmittedText, fmt.Sprintf("第 %d 集", index)))
	}
}

func (h *URLHandler) pickAnime(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	matches, err := h.deps.Library.SearchKeyword(ctx, msg.Text)
	if err != nil {
		h.deps.apiFail(ctx, b, msg.Chat.ID, key, err)
		return
	}
	if len(matches) == 0 {
		h.deps.reply(ctx, b, msg, noResultsText)
		return
	}

	state.Step = "anime"
	state.Matches = matches
	h.deps.Conversations.Touch(key)

	rows := make([][]telego.InlineKeyboardButton, 0, maxListedResults)
	for i := 0; i < truncateList(len(matches)); i++ {
		item := matches[i]
		label := fmt.Sprintf("%s (%s)", item.Title, formatYear(item.Year))
		rows = append(rows, []telego.InlineKeyboardButton{btn(label, fmt.Sprintf("ur:an:%d", i))})
	}
	h.deps.sendKeyboard(ctx, b, msg.Chat.ID, chooseAnimeText, keyboard(rows...))
}

func (h *URLHandler) OnCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, data string) {
	key, chatID, ok := callbackKey(query)
	if !ok {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}
	state := h.deps.Conversations.Get(key)
	if state == nil || state.Command != "url" {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	action, idxText, _ := strings.Cut(data, ":")
	idx, err := strconv.Atoi(idxText)
	if err != nil || idx < 0 {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	switch action {
	case "an":
		if state.Step != "anime" || idx >= len(state.Matches) {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		anime := state.Matches[idx]
		sources, err := h.deps.Danmaku.Sources(ctx, anime.AnimeID)
		if err != nil {
			h.deps.apiFail(ctx, b, chatID, key, err)
			return
		}
		if len(sources) == 0 {
			h.deps.Conversations.End(key)
			h.deps.send(ctx, b, chatID, noSourcesText)
			return
		}

		state.Step = "source"
		state.Sources = sources
		h.deps.Conversations.Touch(key)

		rows := make([][]telego.InlineKeyboardButton, 0, len(sources))
		for i, src := range sources {
			label := fmt.Sprintf("%s (%d集)", src.ProviderName, src.EpisodeCount)
			rows = append(rows, []telego.InlineKeyboardButton{btn(label, fmt.Sprintf("ur:src:%d", i))})
		}
		h.deps.sendKeyboard(ctx, b, chatID, chooseSourceText, keyboard(rows...))

	case "src":
		if state.Step != "source" || idx >= len(state.Sources) {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		state.Step = "episode"
		state.Data["source_id"] = strconv.FormatInt(state.Sources[idx].SourceID, 10)
		h.deps.Conversations.Touch(key)
		h.deps.send(ctx, b, chatID, inputEpIndexText)

	default:
		h.deps.answer(ctx, b, query, "")
	}
}
