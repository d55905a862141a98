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

// SearchHandler implements the /search flow: keyword, result pick,
// then direct or per-episode import.
type SearchHandler struct {
	deps *Deps
}

func (h *SearchHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, args string) {
	state := h.deps.Conversations.Begin(key, "search")
	if strings.TrimSpace(args) == "" {
		state.Step = "keyword"
		h.deps.reply(ctx, b, msg, inputKeywordText)
		return
	}
	h.runSearch(ctx, b, msg.Chat.ID, key, state, args)
}

func (h *SearchHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	switch state.Step {
	case "keyword":
		h.runSearch(ctx, b, msg.Chat.ID, key, state, msg.Text)
	case "range":
		h.importRange(ctx, b, msg, key, state)
	}
}

func (h *SearchHandler) runSearch(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key, state *conversation.State, keyword string) {
	keyword = strings.TrimSpace(keyword)
	progress := h.deps.send(ctx, b, chatID, searchingText)

	resp, err := h.deps.Danmaku.Search(ctx, keyword)
	if err != nil {
		h.deps.apiFail(ctx, b, chatID, key, err)
		return
	}
	if resp == nil || len(resp.Results) == 0 {
		h.deps.Conversations.End(key)
		if progress != nil {
			h.deps.edit(ctx, b, chatID, progress.MessageID, noResultsText)
		}
		return
	}

	state.Step = "pick"
	state.SearchID = resp.SearchID
	state.Results = resp.Results
	state.Data["keyword"] = keyword
	h.deps.Conversations.Touch(key)

	var text strings.Builder
	text.WriteString(fmt.Sprintf("🔍 *%s* 搜索结果\n\n", mdV2Replacer.Replace(keyword)))

	rows := make([][]telego.InlineKeyboardButton, 0, maxListedResults)
	for i := 0; i < truncateList(len(resp.Results)); i++ {
		item := resp.Results[i]
		text.WriteString(fmt.Sprintf("%d\\. %s \\(%s, %s, %d集\\)\n",
			i+1,
			mdV2Replacer.Replace(item.Title),
			mdV2Replacer.Replace(item.Provider),
			mdV2Replacer.Replace(formatYear(item.Year)),
			item.EpisodeCount,
		))
		rows = append(rows, []telego.InlineKeyboardButton{
			btn(fmt.Sprintf("%d ⚡ 立即导入", i+1), fmt.Sprintf("se:imp:%d", i)),
			btn(fmt.Sprintf("%d 🎬 分集导入", i+1), fmt.Sprintf("se:ep:%d", i)),
		})
	}

	h.deps.showResults(ctx, b, chatID, progress, text.String(), keyboard(rows...))
}

func (h *SearchHandler) OnCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, data string) {
	key, chatID, ok := callbackKey(query)
	if !ok {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}
	state := h.deps.Conversations.Get(key)
	if state == nil || state.Command != "search" || state.Step != "pick" {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	action, idxText, _ := strings.Cut(data, ":")
	idx, err := strconv.Atoi(idxText)
	if err != nil || idx < 0 || idx >= len(state.Results) {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}
	item := state.Results[idx]

	switch action {
	case "imp":
		h.deps.answer(ctx, b, query, "")
		task, err := h.deps.Danmaku.ImportDirect(ctx, danmaku.ImportDirectRequest{
			SearchID:    state.SearchID,
			ResultIndex: idx,
		})
		if err != nil {
			h.deps.apiFail(ctx, b, chatID, key, err)
			return
		}
		h.deps.Conversations.End(key)
		h.deps.Library.Invalidate()
		h.deps.recordImport(ctx, &db.ImportRecord{
			Kind:       "search",
			Provider:   item.Provider,
			SearchTerm: item.Title,
			MediaType:  item.Type,
			Season:     item.Season,
			Status:     "submitted",
			ChatID:     chatID,
			UserID:     key.UserID,
		})
		h.deps.send(ctx, b, chatID, taskSubmitted(task))

	case "ep":
		h.deps.answer(ctx, b, query, "")
		episodes, err := h.deps.Danmaku.SearchEpisodes(ctx, state.SearchID, idx)
		if err != nil {
			h.deps.apiFail(ctx, b, chatID, key, err)
			return
		}
		if len(episodes) == 0 {
			h.deps.Conversations.End(key)
			h.deps.send(ctx, b, chatID, noResultsText)
			return
		}
		state.Step = "range"
		state.SearchEpisodes = episodes
		state.Data["result_index"] = idxText
		h.deps.Conversations.Touch(key)
		h.deps.send(ctx, b, chatID, fmt.Sprintf(episodesRangeText, len(episodes)))
	}
}

func (h *SearchHandler) importRange(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	indexes, ok := parseEpisodeRange(msg.Text, len(state.SearchEpisodes))
	if !ok {
		h.deps.reply(ctx, b, msg, invalidRangeText)
		return
	}

	wanted := make(map[int]bool, len(indexes))
	for _, n := range indexes {
		wanted[n] = true
	}
	picked := make([]danmaku.SearchEpisode, 0, len(indexes))
	for _, ep := range state.SearchEpisodes {
		if wanted[ep.EpisodeIndex] {
			picked = append(picked, ep)
		}
	}
	if len(picked) == 0 {
		h.deps.reply(ctx, b, msg, invalidRangeText)
		return
	}

	resultIndex, _ := strconv.Atoi(state.Data["result_index"])
	if _, err := h.deps.Danmaku.ImportEdited(ctx, danmaku.ImportEditedRequest{
		SearchID:    state.SearchID,
		ResultIndex: resultIndex,
		Episodes:    picked,
	}); err != nil {
		h.deps.apiFail(ctx, b, msg.Chat.ID, key, err)
		return
	}
	h.deps.Conversations.End(key)
	h.deps.Library.Invalidate()
	h.deps.recordImport(ctx, &db.ImportRecord{
		Kind:       "search",
		SearchTerm: state.Data["keyword"],
		Status:     "submitted",
		Detail:     fmt.Sprintf("%d episodes", len(picked)),
		ChatID:     msg.Chat.ID,
		UserID:     key.UserID,
	})
	h.deps.send(ctx, b, msg.Chat.ID, fmt.Sprintf(importEditedText, len(picked)))
}
