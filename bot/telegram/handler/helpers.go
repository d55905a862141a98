package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
)

const maxListedResults = 8

func btn(text, data string) telego.InlineKeyboardButton {
	return telego.InlineKeyboardButton{Text: text, CallbackData: data}
}

func keyboard(rows ...[]telego.InlineKeyboardButton) *telego.InlineKeyboardMarkup {
	return &telego.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func parsePositiveInt(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseEpisodeRange understands "all", a single episode number, and
// "from-to" ranges clamped to [1, total].
func parseEpisodeRange(text string, total int) ([]int, bool) {
	text = strings.TrimSpace(strings.ToLower(text))
	if text == "" {
		return nil, false
	}

	if text == "all" {
		episodes := make([]int, 0, total)
		for i := 1; i <= total; i++ {
			episodes = append(episodes, i)
		}
		return episodes, true
	}

	from, to := 0, 0
	if left, right, found := strings.Cut(text, "-"); found {
		var okL, okR bool
		from, okL = parsePositiveInt(left)
		to, okR = parsePositiveInt(right)
		if !okL || !okR || from > to {
			return nil, false
		}
	} else {
		n, ok := parsePositiveInt(text)
		if !ok {
			return nil, false
		}
		from, to = n, n
	}

	if total > 0 && to > total {
		to = total
	}
	if from > to {
		return nil, false
	}
	episodes := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		episodes = append(episodes, i)
	}
	return episodes, true
}

func truncateList(n int) int {
	if n > maxListedResults {
		return maxListedResults
	}
	return n
}

func formatYear(year int) string {
	if year <= 0 {
		return "----"
	}
	return fmt.Sprintf("%d", year)
}
