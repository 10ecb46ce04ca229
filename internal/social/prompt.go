package social

import (
	"regexp"
	"strings"

	"xcard-backend/internal/model"
)

const SystemPrompt = `你是社群文案寫手。根據推文內容和搜尋到的背景資料，寫一段簡短的繁體中文社群貼文。

嚴格規則：
- 50 到 100 字（不含連結）
- 只寫你有根據的事實，禁止自己編造、腦補、延伸推測
- 口語化，像跟朋友講話，不要文謅謅
- 直接講重點，不要廢話開場
- 最多 1 個 emoji
- 不要 hashtag
- 結尾附推文連結（純網址，不要 markdown）
- 禁止用「看到一則推文」「分享一下」「最近注意到」這類 AI 味開頭`

const queryTextMax = 80

var linkRe = regexp.MustCompile(`https?://\S+`)

// BuildSearchQuery 作者名 + 去掉链接后的前 80 个字符
func BuildSearchQuery(post *model.PostData) string {
	text := strings.TrimSpace(linkRe.ReplaceAllString(post.Text, ""))
	if r := []rune(text); len(r) > queryTextMax {
		text = string(r[:queryTextMax])
	}
	return post.DisplayName + " " + text
}

// BuildPrompt 组装发给模型的用户消息
func BuildPrompt(post *model.PostData, searchContext string) string {
	parts := []string{
		"推文作者：" + post.DisplayName + " (" + post.Handle + ")",
		"推文內容：" + post.Text,
		"連結：" + post.TweetURL,
	}
	if post.Likes != "" {
		parts = append(parts, "按讚數："+post.Likes)
	}
	if post.Retweets != "" {
		parts = append(parts, "轉推數："+post.Retweets)
	}
	if searchContext != "" {
		parts = append(parts, "", "--- 搜尋到的背景資料 ---", searchContext)
		parts = append(parts, "", "（請根據以上背景資料理解推文脈絡，但只寫你確定的事實）")
	}
	return strings.Join(parts, "\n")
}
