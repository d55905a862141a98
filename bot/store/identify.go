package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"danmakubot/bot"
)

const identifyTemplate = `# 影视名称自定义识别词文件
# 格式：原始名称 S季度 => 转换后名称 S季度
# 示例：中餐厅 S09 => 中餐厅·非洲创业季 S01
# - 每行一个映射规则
# - 使用 " => " 分隔符
# - 以 # 开头的行为注释
# - 空行会被忽略
`

var identifyTargetPattern = regexp.MustCompile(`^(.+?)\s+S(\d+)$`)

// IdentifyRule maps a series name and season reported by the media
// server onto the name and season the library actually uses.
type IdentifyRule struct {
	Pattern string // e.g. "中餐厅 S09"
	Name    string
	Season  int
}

// Identify manages the identify-word mappings in app/config/identify.txt.
type Identify struct {
	mu     sync.RWMutex
	path   string
	rules  map[string]IdentifyRule
	logger bot.Logger
}

// NewIdentify loads identify.txt, creating it with a template header
// on first run.
func NewIdentify(path string, logger bot.Logger) (*Identify, error) {
	i := &Identify{path: path, logger: logger}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(identifyTemplate), 0644); err != nil {
			return nil, fmt.Errorf("create identify file: %w", err)
		}
	}

	if err := i.reload(); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *Identify) reload() error {
	file, err := os.Open(i.path)
	if err != nil {
		return fmt.Errorf("open identify config: %w", err)
	}
	defer file.Close()

	rules := make(map[string]IdentifyRule)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || !strings.Contains(line, " => ") {
			continue
		}
		parts := strings.SplitN(line, " => ", 2)
		left := strings.TrimSpace(parts[0])
		right := strings.TrimSpace(parts[1])

		target := identifyTargetPattern.FindStringSubmatch(right)
		if target == nil {
			if i.logger != nil {
				i.logger.Warn("store: skipping malformed identify rule", "line", line)
			}
			continue
		}
		var season int
		fmt.Sscanf(target[2], "%d", &season)
		rules[left] = IdentifyRule{Pattern: left, Name: strings.TrimSpace(target[1]), Season: season}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	i.rules = rules
	i.mu.Unlock()
	return nil
}

// Lookup converts a reported series name and season. Both the padded
// ("S09") and unpadded ("S9") spellings of the season are tried.
func (i *Identify) Lookup(seriesName string, season int) (IdentifyRule, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	keys := []string{
		fmt.Sprintf("%s S%d", seriesName, season),
		fmt.Sprintf("%s S%02d", seriesName, season),
	}
	for _, key := range keys {
		if rule, ok := i.rules[key]; ok {
			return rule, true
		}
	}
	return IdentifyRule{}, false
}

// Add appends a rule and persists it. An existing rule for the same
// source pattern is an error so stale mappings are not shadowed.
func (i *Identify) Add(srcName string, srcSeason int, dstName string, dstSeason int) error {
	srcName = strings.TrimSpace(srcName)
	dstName = strings.TrimSpace(dstName)
	if srcName == "" || dstName == "" {
		return fmt.Errorf("store: identify rule names must not be empty")
	}

	pattern := fmt.Sprintf("%s S%02d", srcName, srcSeason)

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.rules[pattern]; exists {
		return fmt.Errorf("store: identify rule for %q already exists", pattern)
	}

	line := fmt.Sprintf("%s => %s S%02d\n", pattern, dstName, dstSeason)
	file, err := os.OpenFile(i.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open identify config: %w", err)
	}
	defer file.Close()
	if _, err := file.WriteString(line); err != nil {
		return err
	}

	i.rules[pattern] = IdentifyRule{Pattern: pattern, Name: dstName, Season: dstSeason}
	return nil
}

// Rules returns all mappings, for display.
func (i *Identify) Rules() []IdentifyRule {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]IdentifyRule, 0, len(i.rules))
	for _, rule := range i.rules {
		out = append(out, rule)
	}
	return out
}
