package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("ALLOWED_USER_IDS", "100,200")
	t.Setenv("DANMAKU_API_BASE_URL", "https://danmaku.example.com/api/control")
	t.Setenv("DANMAKU_API_KEY", "secret")
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)

	conf, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if conf.GetString("TELEGRAM_BOT_TOKEN") != "123456:test-token" {
		t.Errorf("unexpected token: %s", conf.GetString("TELEGRAM_BOT_TOKEN"))
	}
	if conf.GetInt("API_TIMEOUT") != 60 {
		t.Errorf("expected default API_TIMEOUT=60, got %d", conf.GetInt("API_TIMEOUT"))
	}
	if conf.GetInt("WEBHOOK_PORT") != 7768 {
		t.Errorf("expected default WEBHOOK_PORT=7768, got %d", conf.GetInt("WEBHOOK_PORT"))
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123456:test-token")
	t.Setenv("ALLOWED_USER_IDS", "")
	t.Setenv("DANMAKU_API_BASE_URL", "")
	t.Setenv("DANMAKU_API_KEY", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing required options")
	}
}

func TestGetInt64Slice(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_USER_IDS", " 42, abc ,7000000001 ")

	conf, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ids := conf.GetInt64Slice("ADMIN_USER_IDS")
	if len(ids) != 2 || ids[0] != 42 || ids[1] != 7000000001 {
		t.Errorf("unexpected ids: %v", ids)
	}
}

func TestTMDBAPIBase(t *testing.T) {
	setRequiredEnv(t)

	cases := []struct {
		proxy string
		want  string
	}{
		{"", "https://api.themoviedb.org/3"},
		{"https://proxy.example.com", "https://proxy.example.com/3"},
		{"https://proxy.example.com/", "https://proxy.example.com/3"},
		{"https://proxy.example.com/3", "https://proxy.example.com/3"},
	}

	for _, tc := range cases {
		t.Setenv("TMDB_PROXY_URL", tc.proxy)
		conf, err := Load("")
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if got := conf.TMDBAPIBase(); got != tc.want {
			t.Errorf("proxy %q: expected %q, got %q", tc.proxy, tc.want, got)
		}
	}
}

func TestINIFillsMissingKeys(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("WEBHOOK_API_KEY", "from-env")

	tmpFile, err := os.CreateTemp("", "test_config_*.ini")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	configContent := `WEBHOOK_API_KEY = from-file
TVDB_API_KEY = tvdb-file-key
`
	if _, err := tmpFile.WriteString(configContent); err != nil {
		t.Fatalf("write config: %v", err)
	}
	tmpFile.Close()

	conf, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if conf.GetString("WEBHOOK_API_KEY") != "from-env" {
		t.Errorf("environment should win over file, got %s", conf.GetString("WEBHOOK_API_KEY"))
	}
	if conf.GetString("TVDB_API_KEY") != "tvdb-file-key" {
		t.Errorf("file should fill unset keys, got %s", conf.GetString("TVDB_API_KEY"))
	}
}
