package handler

import (
	"context"
	"strings"

	"github.com/mymmrac/telego"
)

// Router receives polled updates, gates them through the permission
// check and hands them to the feature handlers. Plain text is routed
// to the active conversation of the sender.
type Router struct {
	deps    *Deps
	botName string

	search    *SearchHandler
	auto      *AutoHandler
	url       *URLHandler
	refresh   *RefreshHandler
	tokens    *TokensHandler
	users     *UsersHandler
	blacklist *BlacklistHandler
	identify  *IdentifyHandler
	tasks     *TasksHandler
}

// adminCommands may only be issued by an admin user.
var adminCommands = map[string]bool{
	"users":     true,
	"blacklist": true,
	"identify":  true,
}

// NewRouter wires the feature handlers around the shared dependencies.
func NewRouter(deps *Deps, botName string) *Router {
	return &Router{
		deps:      deps,
		botName:   botName,
		search:    &SearchHandler{deps},
		auto:      &AutoHandler{deps},
		url:       &URLHandler{deps},
		refresh:   &RefreshHandler{deps},
		tokens:    &TokensHandler{deps},
		users:     &UsersHandler{deps},
		blacklist: &BlacklistHandler{deps},
		identify:  &IdentifyHandler{deps},
		tasks:     &TasksHandler{deps},
	}
}

// Handle implements telegram.Handler.
func (r *Router) Handle(ctx context.Context, b *telego.Bot, update telego.Update) {
	switch {
	case update.Message != nil && update.Message.Text != "":
		r.handleMessage(ctx, b, update.Message)
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, b, update.CallbackQuery)
	}
}

func (r *Router) handleMessage(ctx context.Context, b *telego.Bot, msg *telego.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	name := commandName(msg.Text, r.botName)

	// /start and /help answer everyone so strangers learn what the bot is.
	if name == "start" || name == "help" {
		r.deps.sendMarkdown(ctx, b, msg.Chat.ID, helpText, nil)
		return
	}

	if !r.deps.Users.IsAllowed(userID) {
		r.deps.Logger.Info("router: rejected unauthorized user", "user_id", userID)
		r.deps.reply(ctx, b, msg, deniedText)
		return
	}

	if name != "" {
		if adminCommands[name] && !r.deps.Users.IsAdmin(userID) {
			r.deps.reply(ctx, b, msg, adminOnlyText)
			return
		}
		r.dispatchCommand(ctx, b, msg, name, commandArguments(msg.Text))
		return
	}

	// Plain text belongs to whatever flow the sender has going.
	key := convKey(msg)
	state := r.deps.Conversations.Get(key)
	if state == nil {
		if msg.Chat.Type == "private" {
			r.deps.reply(ctx, b, msg, sessionExpiredText)
		}
		return
	}

	switch state.Command {
	case "search":
		r.search.OnText(ctx, b, msg, key, state)
	case "auto":
		r.auto.OnText(ctx, b, msg, key, state)
	case "url":
		r.url.OnText(ctx, b, msg, key, state)
	case "refresh":
		r.refresh.OnText(ctx, b, msg, key, state)
	case "tokens":
		r.tokens.OnText(ctx, b, msg, key, state)
	case "users":
		r.users.OnText(ctx, b, msg, key, state)
	case "blacklist":
		r.blacklist.OnText(ctx, b, msg, key, state)
	case "identify":
		r.identify.OnText(ctx, b, msg, key, state)
	default:
		r.deps.Conversations.End(key)
	}
}

func (r *Router) dispatchCommand(ctx context.Context, b *telego.Bot, msg *telego.Message, name, args string) {
	key := convKey(msg)

	switch name {
	case "cancel":
		if r.deps.Conversations.End(key) {
			r.deps.reply(ctx, b, msg, canceledText)
		} else {
			r.deps.reply(ctx, b, msg, nothingToCancelText)
		}
	case "search":
		r.search.Start(ctx, b, msg, key, args)
	case "auto":
		r.auto.Start(ctx, b, msg, key)
	case "url":
		r.url.Start(ctx, b, msg, key)
	case "refresh":
		r.refresh.Start(ctx, b, msg, key, args)
	case "tokens":
		r.tokens.Start(ctx, b, msg, key)
	case "users":
		r.users.Start(ctx, b, msg, key)
	case "blacklist":
		r.blacklist.Start(ctx, b, msg, key)
	case "identify":
		r.identify.Start(ctx, b, msg, key)
	case "tasks":
		r.tasks.Start(ctx, b, msg, args)
	}
}

func (r *Router) handleCallback(ctx context.Context, b *telego.Bot, query *telego.CallbackQuery) {
	if !r.deps.Users.IsAllowed(query.From.ID) {
		r.deps.answer(ctx, b, query, deniedText)
		return
	}

	prefix, rest, _ := strings.Cut(query.Data, ":")
	if adminCallbackPrefixes[prefix] && !r.deps.Users.IsAdmin(query.From.ID) {
		r.deps.answer(ctx, b, query, adminOnlyText)
		return
	}

	switch prefix {
	case "se":
		r.search.OnCallback(ctx, b, query, rest)
	case "au":
		r.auto.OnCallback(ctx, b, query, rest)
	case "ur":
		r.url.OnCallback(ctx, b, query, rest)
	case "rf":
		r.refresh.OnCallback(ctx, b, query, rest)
	case "tk":
		r.tokens.OnCallback(ctx, b, query, rest)
	case "us":
		r.users.OnCallback(ctx, b, query, rest)
	default:
		r.deps.answer(ctx, b, query, "")
	}
}

var adminCallbackPrefixes = map[string]bool{
	"us": true,
}

func commandArguments(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	parts := strings.SplitN(text, " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func commandName(text, botName string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	parts := strings.SplitN(text, " ", 2)
	command := strings.TrimPrefix(parts[0], "/")
	if command == "" {
		return ""
	}
	if strings.Contains(command, "@") {
		seg := strings.SplitN(command, "@", 2)
		command = seg[0]
		if botName != "" && len(seg) > 1 && seg[1] != "" && seg[1] != botName {
			return ""
		}
	}
	return command
}
