package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"danmakubot/bot"
)

const blacklistTemplate = `# 黑名单影视名称文件
# 每行一个影视名称，包含该名称的影视将被阻止导入
# - 以 # 开头的行为注释
# - 空行会被忽略
# - 匹配时不区分大小写
`

// Blacklist is a line-oriented list of blocked title fragments backed
// by app/config/blacklist.txt.
type Blacklist struct {
	mu     sync.RWMutex
	path   string
	names  []string
	logger bot.Logger
}

// NewBlacklist loads the blacklist file, creating it with a template
// header on first run.
func NewBlacklist(path string, logger bot.Logger) (*Blacklist, error) {
	b := &Blacklist{path: path, logger: logger}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(blacklistTemplate), 0644); err != nil {
			return nil, fmt.Errorf("create blacklist file: %w", err)
		}
	}

	if err := b.reload(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Blacklist) reload() error {
	file, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("open blacklist: %w", err)
	}
	defer file.Close()

	var names []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	b.names = names
	b.mu.Unlock()
	return nil
}

// Contains reports whether the title hits any blacklist entry.
// Matching is substring based and case-insensitive.
func (b *Blacklist) Contains(title string) (string, bool) {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" {
		return "", false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, name := range b.names {
		if strings.Contains(title, strings.ToLower(name)) {
			return name, true
		}
	}
	return "", false
}

// Add appends a name to the blacklist file. Re-adding an existing name
// is a no-op success.
func (b *Blacklist) Add(name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "#") {
		return false, fmt.Errorf("store: invalid blacklist entry")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.names {
		if strings.EqualFold(existing, name) {
			return false, nil
		}
	}

	file, err := os.OpenFile(b.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return false, fmt.Errorf("open blacklist: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(name + "\n"); err != nil {
		return false, err
	}

	b.names = append(b.names, name)
	return true, nil
}

// Names returns the current entries.
func (b *Blacklist) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.names))
	copy(out, b.names)
	return out
}
