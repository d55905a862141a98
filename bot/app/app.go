package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	gormlogger "gorm.io/gorm/logger"

	"danmakubot/bot/config"
	"danmakubot/bot/conversation"
	"danmakubot/bot/danmaku"
	"danmakubot/bot/db"
	logpkg "danmakubot/bot/logger"
	"danmakubot/bot/resolver"
	"danmakubot/bot/store"
	"danmakubot/bot/telegram"
	"danmakubot/bot/telegram/handler"
	"danmakubot/bot/webhook"
	"danmakubot/bot/worker"
)

// App wires all application dependencies.
type App struct {
	Config        *config.Config
	Logger        *logpkg.Logger
	Repo          *db.Repository
	Pool          *worker.Pool
	Danmaku       *danmaku.Client
	Library       *danmaku.LibraryCache
	Resolvers     *resolver.Chain
	Conversations *conversation.Manager
	Users         *store.Users
	Blacklist     *store.Blacklist
	Identify      *store.Identify
	Telegram      *telegram.Bot
	Limiter       *telegram.RateLimiter
	Webhook       *webhook.Server
	Build         BuildInfo
}

// BuildInfo provides build-time metadata.
type BuildInfo struct {
	RuntimeVer string
	BinVersion string
	CommitSHA  string
	BuildTime  string
	BuildArch  string
}

// New builds the application container.
func New(ctx context.Context, configPath string, build BuildInfo) (*App, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logpkg.New(
		conf.GetString("LOG_LEVEL"),
		conf.GetString("LOG_FORMAT"),
		conf.GetString("LOG_DIR"),
		conf.GetBool("LOG_SOURCE"),
	)
	if err != nil {
		return nil, err
	}

	users, err := store.NewUsers(
		conf.GetString("USER_CONFIG_PATH"),
		conf.GetInt64Slice("ALLOWED_USER_IDS"),
		conf.GetInt64Slice("ADMIN_USER_IDS"),
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("init user store: %w", err)
	}
	blacklist, err := store.NewBlacklist(conf.GetString("BLACKLIST_PATH"), log)
	if err != nil {
		return nil, fmt.Errorf("init blacklist: %w", err)
	}
	identify, err := store.NewIdentify(conf.GetString("IDENTIFY_PATH"), log)
	if err != nil {
		return nil, fmt.Errorf("init identify store: %w", err)
	}

	gormLogger := logpkg.NewGormLogger(log.Slog(), mapGormLogLevel(conf.GetString("GORM_LOG_LEVEL")))
	repo, err := db.NewSQLiteRepository(conf.GetString("DATABASE"), gormLogger)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}

	apiTimeout := time.Duration(conf.GetInt("API_TIMEOUT")) * time.Second
	client := danmaku.New(conf.GetString("DANMAKU_API_BASE_URL"), conf.GetString("DANMAKU_API_KEY"), apiTimeout, log)

	cacheTTL := time.Duration(conf.GetInt("LIBRARY_CACHE_TTL_MINUTES")) * time.Minute
	library := danmaku.NewLibraryCache(client, cacheTTL, log)

	chain := resolver.NewChain(log)
	if key := strings.TrimSpace(conf.GetString("TMDB_API_KEY")); key != "" {
		chain.Register(resolver.NewTMDB(key, conf.TMDBAPIBase(), log))
	}
	if key := strings.TrimSpace(conf.GetString("TVDB_API_KEY")); key != "" {
		chain.Register(resolver.NewTVDB(key, log))
	}
	chain.Register(resolver.NewBGM(conf.GetString("BGM_ACCESS_TOKEN"), log))
	chain.Register(resolver.NewIMDB(log))
	chain.Register(resolver.NewDouban(log))
	log.Info("resolvers registered", "providers", chain.Names())

	pool := worker.New(conf.GetInt("WORKER_POOL_SIZE"))

	tele, err := telegram.New(conf, log, pool)
	if err != nil {
		return nil, fmt.Errorf("init telegram: %w", err)
	}

	limiter := telegram.NewRateLimiter(conf.GetFloat64("RATE_LIMIT_PER_SECOND"), conf.GetInt("RATE_LIMIT_BURST"))
	limiter.SetLogger(log)

	manager := conversation.NewManager(0, log)

	var callbackChatID int64
	if conf.GetBool("WEBHOOK_CALLBACK_ENABLED") {
		callbackChatID = int64(conf.GetInt("WEBHOOK_CALLBACK_CHAT_ID"))
	}
	processor := webhook.NewEmbyProcessor(client, library, identify, blacklist, repo, pool, tele, callbackChatID, log)

	var server *webhook.Server
	if key := strings.TrimSpace(conf.GetString("WEBHOOK_API_KEY")); key != "" {
		server = webhook.NewServer(conf.GetInt("WEBHOOK_PORT"), key, processor, log)
	} else {
		log.Info("webhook server disabled, WEBHOOK_API_KEY not set")
	}

	return &App{
		Config:        conf,
		Logger:        log,
		Repo:          repo,
		Pool:          pool,
		Danmaku:       client,
		Library:       library,
		Resolvers:     chain,
		Conversations: manager,
		Users:         users,
		Blacklist:     blacklist,
		Identify:      identify,
		Telegram:      tele,
		Limiter:       limiter,
		Webhook:       server,
		Build:         build,
	}, nil
}

// Start wires the update router and launches the webhook server and the
// polling loop.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("starting",
		"version", a.Build.BinVersion, "commit", a.Build.CommitSHA,
		"runtime", a.Build.RuntimeVer, "arch", a.Build.BuildArch)

	meCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	me, err := a.Telegram.GetMe(meCtx)
	if err != nil {
		a.Logger.Error("getMe failed", "error", err)
	}
	botName := ""
	if me != nil {
		botName = me.Username
	}

	deps := &handler.Deps{
		Danmaku:       a.Danmaku,
		Library:       a.Library,
		Resolvers:     a.Resolvers,
		Conversations: a.Conversations,
		Users:         a.Users,
		Blacklist:     a.Blacklist,
		Identify:      a.Identify,
		Repo:          a.Repo,
		Limiter:       a.Limiter,
		Logger:        a.Logger,
	}
	a.Telegram.SetHandler(handler.NewRouter(deps, botName))

	// Warm the library cache so the first webhook event does not pay
	// the fetch. Failure here is not fatal.
	go func() {
		seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := a.Library.Get(seedCtx); err != nil {
			a.Logger.Warn("library cache seed failed", "error", err)
		}
	}()

	commands := []telego.BotCommand{
		{Command: "start", Description: "开始使用"},
		{Command: "help", Description: "帮助信息"},
		{Command: "search", Description: "搜索并导入弹幕"},
		{Command: "auto", Description: "自动导入 (关键词或 ID)"},
		{Command: "url", Description: "从视频链接导入弹幕"},
		{Command: "refresh", Description: "刷新弹幕"},
		{Command: "tokens", Description: "管理 API Token"},
		{Command: "tasks", Description: "查看任务状态"},
		{Command: "cancel", Description: "取消当前会话"},
	}
	if err := a.Telegram.Client().SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		a.Logger.Warn("setMyCommands failed", "error", err)
	}

	if a.Webhook != nil {
		go func() {
			if err := a.Webhook.Start(); err != nil {
				a.Logger.Error("webhook server stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := a.Telegram.Start(ctx); err != nil && ctx.Err() == nil {
			a.Logger.Error("polling stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error

	if a.Webhook != nil {
		if err := a.Webhook.Shutdown(ctx); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown webhook server: %w", err)
			}
		}
	}

	if a.Conversations != nil {
		a.Conversations.Close()
	}

	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Pool.StopNow()
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown worker pool: %w", err)
			}
		}
	}

	if a.Repo != nil {
		if err := a.Repo.Close(); err != nil {
			a.Logger.Error("failed to close database", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("close database: %w", err)
			}
		}
	}

	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("close logger: %w", err)
			}
		}
	}

	return firstErr
}

func mapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	case "warn", "warning":
		fallthrough
	default:
		return gormlogger.Warn
	}
}
