package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	botpkg "danmakubot/bot"
	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/db"
	"danmakubot/bot/resolver"
)

// AutoHandler implements /auto: fully automatic import from a keyword
// or a provider link/ID, with metadata assistance from the resolver
// chain.
type AutoHandler struct {
	deps *Deps
}

// searchType values the import API accepts per provider.
var providerSearchTypes = map[string]string{
	"tmdb":   "tmdb",
	"imdb":   "imdb",
	"tvdb":   "tvdb",
	"bgm":    "bangumi",
	"douban": "douban",
}

func (h *AutoHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key) {
	state := h.deps.Conversations.Begin(key, "auto")
	state.Step = "term"
	h.deps.sendKeyboard(ctx, b, msg.Chat.ID, inputAutoText, keyboard(
		[]telego.InlineKeyboardButton{btn("🔍 关键词搜索", "au:st:kw")},
		[]telego.InlineKeyboardButton{btn("🆔 链接 / ID", "au:st:id")},
	))
}

func (h *AutoHandler) OnText(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	switch state.Step {
	case "term":
		h.handleTerm(ctx, b, msg, key, state)
	case "season":
		season, ok := parsePositiveInt(msg.Text)
		if !ok {
			h.deps.reply(ctx, b, msg, invalidNumberText)
			return
		}
		state.Data["season"] = fmt.Sprintf("%d", season)
		state.Step = "episode"
		h.deps.Conversations.Touch(key)
		h.deps.reply(ctx, b, msg, inputEpText)
	case "episode":
		text := strings.TrimSpace(strings.ToLower(msg.Text))
		if text != "all" {
			episode, ok := parsePositiveInt(text)
			if !ok {
				h.deps.reply(ctx, b, msg, invalidNumberText)
				return
			}
			state.Data["episode"] = fmt.Sprintf("%d", episode)
		}
		h.submit(ctx, b, msg.Chat.ID, key, state)
	}
}

func (h *AutoHandler) handleTerm(ctx context.Context, b *telego.Bot, msg *telego.Message, key conversation.Key, state *conversation.State) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		h.deps.reply(ctx, b, msg, inputTermText)
		return
	}

	// Provider links and IDs win over keyword interpretation.
	if r, match, ok := h.deps.Resolvers.Match(text); ok {
		searchType, known := providerSearchTypes[r.Name()]
		if !known {
			searchType = r.Name()
		}
		state.Data["searchType"] = searchType
		state.Data["searchTerm"] = match.ID

		candidate, _ := h.deps.Resolvers.ResolveInput(ctx, text)
		switch {
		case candidate != nil && candidate.MediaType != "":
			state.MediaType = candidate.MediaType
			state.Data["title"] = candidate.Title
		case match.MediaType != "":
			state.MediaType = match.MediaType
		}

		if state.MediaType == "" {
			h.askType(ctx, b, msg.Chat.ID, key, state)
			return
		}
		h.afterType(ctx, b, msg.Chat.ID, key, state)
		return
	}

	if state.Data["mode"] == "id" {
		h.deps.reply(ctx, b, msg, inputIDText)
		return
	}

	state.Data["searchType"] = "keyword"
	state.Data["searchTerm"] = text

	// TMDB suggests the media type; a failed lookup just means the
	// user picks it by hand.
	candidates, err := h.deps.Resolvers.Search(ctx, text)
	if err != nil {
		h.deps.Logger.Warn("auto: metadata search failed", "error", err)
	}
	state.Candidates = candidates
	if mt, ok := resolver.DominantType(candidates); ok {
		state.MediaType = mt
		h.afterType(ctx, b, msg.Chat.ID, key, state)
		return
	}
	h.askType(ctx, b, msg.Chat.ID, key, state)
}

func (h *AutoHandler) askType(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key, state *conversation.State) {
	state.Step = "type"
	h.deps.Conversations.Touch(key)
	h.deps.sendKeyboard(ctx, b, chatID, chooseTypeText, keyboard(
		[]telego.InlineKeyboardButton{btn("📺 电视剧/动漫", "au:mt:tv")},
		[]telego.InlineKeyboardButton{btn("🎬 电影", "au:mt:movie")},
	))
}

func (h *AutoHandler) afterType(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key, state *conversation.State) {
	// Once the type is fixed, candidates of the other type are out of the
	// running and the strongest survivor names the submission.
	if best, ok := resolver.BestMatch(resolver.FilterType(state.Candidates, state.MediaType)); ok {
		state.Data["title"] = best.Title
		h.deps.send(ctx, b, chatID, fmt.Sprintf(matchedTitleText, best.Title, formatYear(best.Year)))
	}
	if state.MediaType == botpkg.MediaTypeMovie {
		h.submit(ctx, b, chatID, key, state)
		return
	}
	state.Step = "season"
	h.deps.Conversations.Touch(key)
	h.deps.send(ctx, b, chatID, inputSeasonText)
}

func (h *AutoHandler) OnCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery, data string) {
	key, chatID, ok := callbackKey(query)
	if !ok {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}
	state := h.deps.Conversations.Get(key)
	if state == nil || state.Command != "auto" {
		h.deps.answer(ctx, b, query, sessionExpiredText)
		return
	}

	action, value, _ := strings.Cut(data, ":")
	switch action {
	case "st":
		h.deps.answer(ctx, b, query, "")
		if value == "id" {
			state.Data["mode"] = "id"
			h.deps.Conversations.Touch(key)
			h.deps.send(ctx, b, chatID, inputIDText)
			return
		}
		h.deps.Conversations.Touch(key)
		h.deps.send(ctx, b, chatID, inputKeywordText)

	case "mt":
		if state.Step != "type" {
			h.deps.answer(ctx, b, query, sessionExpiredText)
			return
		}
		h.deps.answer(ctx, b, query, "")
		if value == "movie" {
			state.MediaType = botpkg.MediaTypeMovie
		} else {
			state.MediaType = botpkg.MediaTypeTVSeries
		}
		h.afterType(ctx, b, chatID, key, state)

	default:
		h.deps.answer(ctx, b, query, "")
	}
}

func (h *AutoHandler) submit(ctx context.Context, b *telego.Bot, chatID int64, key conversation.Key, state *conversation.State) {
	req := danmaku.ImportAutoRequest{
		SearchType: state.Data["searchType"],
		SearchTerm: state.Data["searchTerm"],
		MediaType:  state.MediaType,
	}
	if season, ok := parsePositiveInt(state.Data["season"]); ok {
		req.Season = season
	}
	if episode, ok := parsePositiveInt(state.Data["episode"]); ok {
		req.Episode = episode
	}

	if err := h.deps.Danmaku.ImportAuto(ctx, req); err != nil {
		h.deps.apiFail(ctx, b, chatID, key, err)
		h.deps.recordImport(ctx, &db.ImportRecord{
			Kind:       "auto",
			Provider:   req.SearchType,
			SearchTerm: req.SearchTerm,
			MediaType:  string(req.MediaType),
			Season:     req.Season,
			Episode:    req.Episode,
			Status:     "failed",
			Detail:     danmaku.UserMessage(err),
			ChatID:     chatID,
			UserID:     key.UserID,
		})
		return
	}

	h.deps.Conversations.End(key)
	h.deps.Library.Invalidate()
	h.deps.recordImport(ctx, &db.ImportRecord{
		Kind:       "auto",
		Provider:   req.SearchType,
		SearchTerm: req.SearchTerm,
		MediaType:  string(req.MediaType),
		Season:     req.Season,
		Episode:    req.Episode,
		Status:     "submitted",
		ChatID:     chatID,
		UserID:     key.UserID,
	})

	label := req.SearchTerm
	if title := state.Data["title"]; title != "" {
		label = title
	}
	h.deps.send(ctx, b, chatID, fmt.Sprintf(taskSubmittedText, label))
}
