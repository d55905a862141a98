package handler

import "strings"

var mdV2Replacer = strings.NewReplacer(
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(",
	"\\(", ")", "\\)", "~", "\\~", "`", "\\`", ">", "\\>",
	"#", "\\#", "+", "\\+", "-", "\\-", "=", "\\=", "|",
	"\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)

var (
	helpText = "欢迎使用弹幕库管理机器人 \\!\n" +
		"通过对话即可搜索、导入、刷新弹幕库中的影视条目\n\n" +
		"使用方法:\n" +
		"`/search` \\<关键词\\> \\- 搜索媒体库并导入\n" +
		"`/auto` \\- 全自动导入 \\(支持关键词与 TMDB/IMDB/TVDB/BGM/豆瓣 链接\\)\n" +
		"`/url` \\- 从指定 URL 导入弹幕\n" +
		"`/refresh` \\<关键词\\> \\- 刷新已导入的弹幕源\n" +
		"`/tokens` \\- 管理 API Token\n" +
		"`/tasks` \\- 查看任务列表\n" +
		"`/users` \\- 管理授权用户 \\(管理员\\)\n" +
		"`/blacklist` \\- 管理黑名单 \\(管理员\\)\n" +
		"`/identify` \\- 管理识别词 \\(管理员\\)\n" +
		"`/cancel` \\- 取消当前会话\n\n" +
		"示例:\n" +
		"`/search 葬送的芙莉莲`\n" +
		"`/auto` 后发送 `https://www.themoviedb.org/tv/209867`"

	deniedText          = "你没有权限使用此机器人"
	adminOnlyText       = "此命令仅管理员可用"
	canceledText        = "已取消当前会话"
	nothingToCancelText = "当前没有进行中的会话"
	sessionExpiredText  = "会话已过期，请重新发起命令"
	taskSubmittedText   = "任务已提交: %s"

	inputKeywordText  = "请输入搜索关键词"
	searchingText     = "搜索中..."
	noResultsText     = "未找到结果"
	invalidNumberText = "请输入有效的数字"
	invalidRangeText  = "请输入有效的集数范围，如 1-12，或发送 all"

	inputAutoText    = "请选择导入方式"
	inputTermText    = "请发送 关键词 或 TMDB/IMDB/TVDB/BGM/豆瓣 链接"
	inputIDText      = "请发送媒体链接或 ID (如 tt0903747)"
	chooseTypeText   = "无法确定媒体类型，请选择:"
	inputSeasonText  = "请输入季度 (数字)"
	inputEpText      = "请输入集数 (数字，发送 all 导入全季)"
	matchedTitleText = "已识别: %s (%s)"

	inputURLText        = "请发送弹幕源 URL"
	inputLibKeywordText = "请输入库内作品关键词"
	chooseAnimeText     = "请选择作品:"
	chooseSourceText    = "请选择弹幕源:"
	inputEpIndexText    = "请输入目标集数 (数字)"
	noSourcesText       = "该作品没有已导入的弹幕源"

	chooseRefreshText = "请选择刷新方式:"
	refreshRangeText  = "请输入要刷新的集数范围，如 1-12"
	refreshDoneText   = "刷新任务已提交 (%d 集)"
	refreshSourceText = "整源刷新任务已提交"
	episodesRangeText = "共 %d 集，请输入要导入的集数范围，如 1-12，或发送 all"
	importEditedText  = "分集导入任务已提交 (%d 集)"
	libraryEmptyText  = "媒体库为空"

	tokensHeaderText   = "*API Token 列表*\n\n"
	tokenCreatedText   = "Token 已创建:\n`%s`"
	tokenDeletedText   = "Token 已删除"
	tokenToggledText   = "Token 状态已切换"
	inputTokenNameText = "请输入新 Token 的名称"
	chooseValidityText = "请选择有效期:"

	usersHeaderText      = "*用户列表*\n\n"
	danmakuPersistFailed = "保存失败，请稍后重试"
	inputUserIDText      = "请输入要添加的用户 ID"
	userAddedText        = "用户 %d 已添加"
	userExistsText       = "用户 %d 已在列表中"
	userRemovedText      = "用户 %d 已移除"
	adminImmutableText   = "管理员不可移除"
	confirmRemoveText    = "确认移除用户 %d ?"

	blacklistHeaderText = "黑名单 (共 %d 条)\n发送名称即可添加，包含该名称的影视将被阻止导入"
	blacklistAddedText  = "已添加黑名单: %s"
	blacklistExistsText = "黑名单中已存在: %s"

	identifyStep1Text = "请输入原始名称 (媒体服务器上报的剧名)"
	identifyStep2Text = "请输入原始季度 (数字)"
	identifyStep3Text = "请输入转换后名称"
	identifyStep4Text = "请输入转换后季度 (数字)"
	identifyAddedText = "识别词已添加: %s S%02d => %s S%02d"

	tasksHeaderText  = "*任务列表* \\(%s\\)\n\n"
	tasksEmptyText   = "暂无任务"
	recentHeaderText = "\n*最近操作*\n"
)
