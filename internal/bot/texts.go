package bot

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

const (
	cbRegen         = "regen"
	cbRetry         = "retry"
	cbRewriteSocial = "rewrite_social"
)

const (
	textStart = "<b>XCard Bot</b>\n\n" +
		"貼一個 X/Twitter 推文連結，我就幫你生成：\n" +
		"  - XCard 圖片（翻譯 + 排版）\n" +
		"  - AI 社群文案\n\n" +
		"輸入 /help 查看所有指令。"

	textHelp = "<b>指令列表</b>\n\n" +
		"直接貼連結 — 生成 XCard 圖片 + AI 文案\n" +
		"/rewrite &lt;連結&gt; — 只重寫 AI 社群文案\n" +
		"/help — 顯示此說明\n\n" +
		"<b>圖片按鈕</b>\n" +
		"🔄 重新生成 — 重新產生卡片\n" +
		"✍️ 重寫文案 — 重新產生 AI 文案"

	textInProgress    = "⏳ 另一張 XCard 正在生成中，請稍候..."
	textGenerating    = "⏳ 生成 XCard 中..."
	textCardFailed    = "❌ XCard 生成失敗，請確認連結是否為有效推文。"
	textRewriteUsage  = "用法：/rewrite &lt;推文連結&gt;\n\n例如：\n/rewrite https://x.com/xxx/status/123"
	textInvalidURL    = "❌ 請提供有效的 X/Twitter 推文連結。"
	textAIMissing     = "❌ 未設定 AI，無法生成文案。"
	textRewriting     = "✍️ AI 文案生成中..."
	textAIFailed      = "❌ AI 文案生成失敗，請再試一次。"
	textRewriteFailed = "❌ 文案生成失敗，請確認連結是否為有效推文。"
	textUnknown       = "請貼一個推文連結或使用 /help 查看指令。"
	answerNoRegen     = "沒有可重新生成的推文"
	answerNoRewrite   = "沒有可重寫的推文"
	answerAIMissing   = "未設定 AI，無法生成文案"
	answerRewriting   = "✍️ 重新生成文案中..."
)

var commands = []tgbotapi.BotCommand{
	{Command: "rewrite", Description: "重寫 AI 社群文案（後接推文連結）"},
	{Command: "help", Description: "顯示指令列表"},
}

func photoKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 重新生成", cbRegen),
			tgbotapi.NewInlineKeyboardButtonData("✍️ 重寫文案", cbRewriteSocial),
		),
	)
	return &kb
}

func retryKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 重試", cbRetry),
		),
	)
	return &kb
}
