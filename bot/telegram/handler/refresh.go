package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/conversation"
	"danmakubot/bot/db"
)

// RefreshHandler implements /refresh: re-fetch danmaku for a whole
// source or a range of its episodes.
type RefreshHandler struct {
	deps *Deps
}

func (h *RefreshHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, args string) {
	state := h.deps.Conversations.Begin(key, "refresh")
	if strings.TrimSpace(args) == "" {
		state.Step = "keyword"
		h.deps.reply(ctx, b, msg, inputLibKeywordText)
		return
	}
	h.pickAnime(ctx, b, msg.Chat.ID, key, state, args)
}

func (h *RefreshHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	switch state.Step {
	case "keyword":
		h.pickAnime(ctx, b, msg.Chat.ID, key, state, msg.Text)
	case "range":
		h.refreshRange(ctx, b, msg, key, state)
	}
}

func (h *RefreshHandler) pickAnime(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key, state *conversation.State, keyword string) {
	keyword = strings.TrimSpace(keyword)

	items, err := h.deps.Library.SearchKeyword(ctx, keyword)
	if err != nil {
		h.deps.apiFail(ctx, b, chatID, key, err)
		return
	}
	if len(items) == 0 {
		// Fall back to the whole library so the user can pick.
		items, err = h.deps.Library.Get(ctx)
		if err != nil {
			h.deps.apiFail(ctx, b, chatID, key, err)
			return
		}
	}
	if len(items) == 0 {
		h.deps.Conversations.End(key)
		h.deps.send(ctx, b, chatID, libraryEmptyText)
		return
	}

	state.Step = "anime"
	state.Matches = items
	h.deps.Conversations.Touch(key)

	rows := make([][]telego.InlineKeyboardButton, 0, maxListedResults)
	for i := 0; i < truncateList(len(items)); i++ {
		item := items[i]
		label := fmt.Sprintf("%s (%s, %d集)", item.Title, formatYear(item.Year), item.EpisodeCount)
		rows = append(rows, []telego.InlineKeyboardButton{btn(label, fmt.Sprintf("rf:an:%d", i))})
	}
	h.deps.sendKeyboard(ctx, b, chatID, chooseAnimeText, keyboard(rows...))
}

func (h *RefreshHandler) OnCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, data string) {
	key, chatID, ok := callbackKey(query)
	if !ok {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}
	state := h.deps.Conversations.Get(key)
	if state == nil || state.Command != "refresh" {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	action, arg, _ := strings.Cut(data, ":")
	switch action {
	case "an":
		idx, err := strconv.Atoi(arg)
		if state.Step != "anime" || err != nil || idx < 0 || idx >= len(state.Matches) {
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
		state.Data["title"] = anime.Title
		h.deps.Conversations.Touch(key)

		rows := make([][]telego.InlineKeyboardButton, 0, len(sources))
		for i, src := range sources {
			label := fmt.Sprintf("%s (%d集)", src.ProviderName, src.EpisodeCount)
			rows = append(rows, []telego.InlineKeyboardButton{btn(label, fmt.Sprintf("rf:src:%d", i))})
		}
		h.deps.sendKeyboard(ctx, b, chatID, chooseSourceText, keyboard(rows...))

	case "src":
		idx, err := strconv.Atoi(arg)
		if state.Step != "source" || err != nil || idx < 0 || idx >= len(state.Sources) {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		state.Step = "mode"
		state.Data["source_id"] = strconv.FormatInt(state.Sources[idx].SourceID, 10)
		h.deps.Conversations.Touch(key)
		h.deps.sendKeyboard(ctx, b, chatID, chooseRefreshText, keyboard(
			[]telego.InlineKeyboardButton{btn("🔄 整源刷新", "rf:full:0")},
			[]telego.InlineKeyboardButton{btn("🎯 按集刷新", "rf:part:0")},
		))

	case "full":
		if state.Step != "mode" {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		sourceID, _ := strconv.ParseInt(state.Data["source_id"], 10, 64)
		if err := h.deps.Danmaku.RefreshSource(ctx, sourceID); err != nil {
			h.deps.apiFail(ctx, b, chatID, key, err)
			return
		}
		h.deps.Conversations.End(key)
		h.deps.recordImport(ctx, &db.ImportRecord{
			Kind:       "refresh",
			SearchTerm: state.Data["title"],
			Status:     "submitted",
			ChatID:     chatID,
			UserID:     key.UserID,
		})
		h.deps.send(ctx, b, chatID, refreshSourceText)

	case "part":
		if state.Step != "mode" {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		state.Step = "range"
		h.deps.Conversations.Touch(key)
		h.deps.send(ctx, b, chatID, refreshRangeText)

	default:
		h.deps.answer(ctx, b, query, "")
	}
}

func (h *RefreshHandler) refreshRange(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	sourceID, _ := strconv.ParseInt(state.Data["source_id"], 10, 64)

	episodes, err := h.deps.Danmaku.Episodes(ctx, sourceID)
	if err != nil {
		h.deps.apiFail(ctx, b, msg.Chat.ID, key, err)
		return
	}

	indexes, ok := parseEpisodeRange(msg.Text, len(episodes))
	if !ok {
		h.deps.reply(ctx, b, msg, invalidRangeText)
		return
	}
	wanted := make(map[int]bool, len(indexes))
	for _, n := range indexes {
		wanted[n] = true
	}

	refreshed := 0
	for _, ep := range episodes {
		if !wanted[ep.EpisodeIndex] {
			continue
		}
		if err := h.deps.Danmaku.RefreshEpisode(ctx, ep.EpisodeID); err != nil {
			h.deps.apiFail(ctx, b, msg.Chat.ID, key, err)
			return
		}
		refreshed++
	}
	if refreshed == 0 {
		h.deps.reply(ctx, b, msg, invalidRangeText)
		return
	}

	h.deps.Conversations.End(key)
	h.deps.recordImport(ctx, &db.ImportRecord{
		Kind:       "refresh",
		SearchTerm: state.Data["title"],
		Status:     "submitted",
		Detail:     fmt.Sprintf("%d episodes", refreshed),
		ChatID:     msg.Chat.ID,
		UserID:     key.UserID,
	})
	h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(refreshDoneText, refreshed))
}
