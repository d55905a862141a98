package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// Config wraps viper and provides typed accessors.
// Values are resolved from the environment first, then from an
// optional INI file, then from built-in defaults.
type Config struct {
	v *viper.Viper
}

// Required keys without which the bot cannot operate.
var requiredKeys = []string{
	"TELEGRAM_BOT_TOKEN",
	"ALLOWED_USER_IDS",
	"DANMAKU_API_BASE_URL",
	"DANMAKU_API_KEY",
}

// Load reads .env (when present), an optional INI config file, and the
// process environment. Missing required keys are a fatal error.
func Load(path string) (*Config, error) {
	// Best effort; the environment itself is authoritative.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" && strings.EqualFold(filepath.Ext(path), ".ini") {
		if err := loadINI(v, path); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c := &Config{v: v}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_TIMEOUT", 60)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_DIR", "app/logs")
	v.SetDefault("LOG_SOURCE", false)
	v.SetDefault("GORM_LOG_LEVEL", "warn")
	v.SetDefault("DATABASE", "app/config/activity.db")
	v.SetDefault("USER_CONFIG_PATH", "app/config/user.json")
	v.SetDefault("BLACKLIST_PATH", "app/config/blacklist.txt")
	v.SetDefault("IDENTIFY_PATH", "app/config/identify.txt")
	v.SetDefault("WEBHOOK_PORT", 7768)
	v.SetDefault("WEBHOOK_CALLBACK_ENABLED", false)
	v.SetDefault("WORKER_POOL_SIZE", 4)
	v.SetDefault("RATE_LIMIT_PER_SECOND", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 3)
	v.SetDefault("LIBRARY_CACHE_TTL_MINUTES", 60)
	v.SetDefault("TELEGRAM_API_SERVER", "")
	v.SetDefault("TELEGRAM_POLL_TIMEOUT", 30)
	v.SetDefault("TELEGRAM_CONNECT_TIMEOUT", 20)
	v.SetDefault("TELEGRAM_READ_TIMEOUT", 120)
	v.SetDefault("TELEGRAM_POOL_SIZE", 8)
	v.SetDefault("BOT_DEBUG", false)
}

func (c *Config) validate() error {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(c.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required options: %s", strings.Join(missing, ", "))
	}
	if len(c.GetInt64Slice("ALLOWED_USER_IDS")) == 0 {
		return fmt.Errorf("config: ALLOWED_USER_IDS contains no valid ids")
	}
	return nil
}

// GetString returns a string value.
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an int value.
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 returns a float64 value.
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool returns a bool value.
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetInt64Slice parses a comma-separated list of int64 values.
// Entries that do not parse are skipped.
func (c *Config) GetInt64Slice(key string) []int64 {
	raw := c.v.GetString(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// TMDBAPIBase returns the TMDB API v3 base URL, honoring TMDB_PROXY_URL.
// A proxy URL gets the /3 version path appended unless it already carries it.
func (c *Config) TMDBAPIBase() string {
	proxy := strings.TrimSpace(c.GetString("TMDB_PROXY_URL"))
	if proxy == "" {
		return "https://api.themoviedb.org/3"
	}
	proxy = strings.TrimRight(proxy, "/")
	if strings.HasSuffix(proxy, "/3") {
		return proxy
	}
	return proxy + "/3"
}

func loadINI(v *viper.Viper, path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}

	for _, key := range cfg.Section("").Keys() {
		name := key.Name()
		// viper.Set outranks AutomaticEnv, so the file only fills keys
		// the environment leaves empty.
		if _, ok := os.LookupEnv(strings.ToUpper(name)); ok {
			continue
		}
		v.Set(name, key.Value())
	}
	return nil
}
