package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mymmrac/telego"

	botpkg "danmakubot/bot"
	"danmakubot/bot/config"
)

// Handler consumes one Telegram update.
type Handler interface {
	Handle(ctx context.Context, b *telego.Bot, update telego.Update)
}

// Bot wraps telego with application configuration and the polling loop.
type Bot struct {
	client  *telego.Bot
	config  *config.Config
	logger  botpkg.Logger
	pool    botpkg.WorkerPool
	handler Handler
}

// New creates a new Telegram bot client.
func New(cfg *config.Config, logger botpkg.Logger, pool botpkg.WorkerPool) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	pollClient := &http.Client{
		Timeout:   2 * time.Minute,
		Transport: newTransport(),
	}

	options := []telego.BotOption{
		telego.WithHTTPClient(pollClient),
		telego.WithLogger(telegoLogger{logger: logger}),
	}
	if cfg.GetString("TELEGRAM_API_SERVER") != "" {
		options = append(options, telego.WithAPIServer(cfg.GetString("TELEGRAM_API_SERVER")))
	}
	if cfg.GetBool("TELEGRAM_DEBUG") {
		options = append(options, telego.WithDebugMode())
	}

	client, err := telego.NewBot(cfg.GetString("TELEGRAM_BOT_TOKEN"), options...)
	if err != nil {
		return nil, err
	}

	return &Bot{client: client, config: cfg, logger: logger, pool: pool}, nil
}

// newTransport builds the HTTP transport for Bot API traffic. Proxy
// settings come from the environment, same as the other outbound
// clients.
func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// SetHandler installs the update handler. Must be called before Start.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Start begins long polling and blocks until the context is canceled.
// Each update is dispatched on the worker pool so a slow API call does
// not stall the poll loop.
func (b *Bot) Start(ctx context.Context) error {
	if b.handler == nil {
		return fmt.Errorf("telegram: no handler installed")
	}

	updates, err := b.client.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
		AllowedUpdates: []string{
			telego.MessageUpdates,
			telego.CallbackQueryUpdates,
		},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	b.logger.Info("telegram: polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			u := update
			task := func() { b.handler.Handle(ctx, b.client, u) }
			if b.pool != nil {
				if err := b.pool.Submit(task); err != nil {
					b.logger.Warn("telegram: worker pool rejected update", "error", err)
					go task()
				}
			} else {
				go task()
			}
		}
	}
}

// Client exposes the underlying bot client.
func (b *Bot) Client() *telego.Bot {
	return b.client
}

// GetMe retrieves bot info.
func (b *Bot) GetMe(ctx context.Context) (*telego.User, error) {
	return b.client.GetMe(ctx)
}

// SendMessage is a convenience wrapper for sending a text message.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) (*telego.Message, error) {
	params := &telego.SendMessageParams{ChatID: telego.ChatID{ID: chatID}, Text: text}
	return b.client.SendMessage(ctx, params)
}

type telegoLogger struct {
	logger botpkg.Logger
}

func (l telegoLogger) Debugf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l telegoLogger) Errorf(format string, args ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Error(fmt.Sprintf(format, args...))
}

// WithTimeout returns a context with timeout for Telegram requests.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
