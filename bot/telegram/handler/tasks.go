package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"

	"danmakubot/bot/danmaku"
)

// TasksHandler shows the remote task queue plus recent local activity.
type TasksHandler struct {
	deps *Deps
}

func (h *TasksHandler) Start(ctx context.Context, b *telego.Bot, msg *telego.Message, args string) {
	status := "in_progress"
	for _, field := range strings.Fields(args) {
		if value, ok := strings.CutPrefix(field, "status="); ok && value != "" {
			status = value
		}
	}

	tasks, err := h.deps.Danmaku.Tasks(ctx, status)
	if err != nil {
		h.deps.reply(ctx, b, msg, danmaku.UserMessage(err))
		return
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf(tasksHeaderText, mdV2Replacer.Replace(status)))
	if len(tasks) == 0 {
		text.WriteString(mdV2Replacer.Replace(tasksEmptyText) + "\n")
	}
	for i, task := range tasks {
		if i >= maxListedResults {
			text.WriteString(fmt.Sprintf("\\.\\.\\. 等 %d 个任务\n", len(tasks)))
			break
		}
		text.WriteString(fmt.Sprintf("%d\\. %s \\- %d%%\n   %s\n",
			i+1,
			mdV2Replacer.Replace(task.Title),
			task.Progress,
			mdV2Replacer.Replace(task.Description),
		))
	}

	// Surface a server-side throttle so the user knows why imports queue up.
	if rl, err := h.deps.Danmaku.RateLimitStatus(ctx); err == nil && rl.GlobalEnabled && rl.SecondsUntilReset > 0 {
		text.WriteString(fmt.Sprintf("\n⏳ 服务端限流中，%d 秒后重置\n", rl.SecondsUntilReset))
	}

	if h.deps.Repo != nil {
		if recent, err := h.deps.Repo.RecentImports(ctx, "", 5); err == nil && len(recent) > 0 {
			text.WriteString(recentHeaderText)
			for _, rec := range recent {
				text.WriteString(fmt.Sprintf("• \\[%s\\] %s \\(%s\\)\n",
					mdV2Replacer.Replace(rec.Kind),
					mdV2Replacer.Replace(rec.SearchTerm),
					mdV2Replacer.Replace(rec.Status),
				))
			}
		}
	}

	h.deps.sendMarkdown(ctx, b, msg.Chat.ID, text.String(), nil)
}
