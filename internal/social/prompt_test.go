package social

import (
	"strings"
	"testing"

	"xcard-backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestBuildSearchQuery(t *testing.T) {
	post := &model.PostData{
		DisplayName: "Jack",
		Text:        "  check https://t.co/abc this out " + strings.Repeat("a", 100),
	}
	q := BuildSearchQuery(post)
	assert.True(t, strings.HasPrefix(q, "Jack check  this out "))
	assert.NotContains(t, q, "https://")
	assert.Equal(t, len("Jack ")+80, len(q))
}

func TestBuildPrompt(t *testing.T) {
	post := &model.PostData{
		DisplayName: "Jack",
		Handle:      "@jack",
		Text:        "hello",
		TweetURL:    "https://x.com/jack/status/20",
		Likes:       "1.2K",
	}

	got := BuildPrompt(post, "")
	assert.Equal(t, "推文作者：Jack (@jack)\n推文內容：hello\n連結：https://x.com/jack/status/20\n按讚數：1.2K", got)
	assert.NotContains(t, got, "轉推數")
	assert.NotContains(t, got, "背景資料")

	got = BuildPrompt(post, "snippet one\nsnippet two")
	assert.Contains(t, got, "\n\n--- 搜尋到的背景資料 ---\nsnippet one\nsnippet two\n\n（請根據以上背景資料理解推文脈絡，但只寫你確定的事實）")
}
