package card

import (
	"strings"
	"testing"

	"xcard-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compose(t *testing.T, post *model.PostData, translated string) string {
	t.Helper()
	doc, err := Compose(post, translated, "")
	require.NoError(t, err)
	assert.Equal(t, StageSelector, doc.Selector)
	return doc.HTML
}

func TestCompose_BlankLinesAreDropped(t *testing.T) {
	html := compose(t, &model.PostData{Text: "hello\n\nworld"}, "")
	assert.Contains(t, html, `<span class="tm-hl">hello</span><br><span class="tm-hl">world</span>`)
}

func TestCompose_CollapsesAndTrims(t *testing.T) {
	html := compose(t, &model.PostData{Text: "\n\n  a\n\n\n\n\n  b  \n"}, "")
	assert.Contains(t, html, `<span class="tm-hl">a</span><br><span class="tm-hl">  b</span>`)
}

func TestCompose_PrefersTranslatedText(t *testing.T) {
	html := compose(t, &model.PostData{Text: "good morning"}, "早安")
	assert.Contains(t, html, `<span class="tm-hl">早安</span>`)
	assert.NotContains(t, html, "good morning")
}

func TestCompose_EscapesUserText(t *testing.T) {
	post := &model.PostData{
		Text:        `<b>"Tom" & 'Jerry'</b>`,
		DisplayName: `<script>alert(1)</script>`,
		Handle:      `@a"b`,
	}
	html := compose(t, post, "")

	assert.Contains(t, html, `&lt;b&gt;&#34;Tom&#34; &amp; &#39;Jerry&#39;&lt;/b&gt;`)
	assert.Contains(t, html, `&lt;script&gt;alert(1)&lt;/script&gt;`)
	assert.Contains(t, html, `@a&#34;b`)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<b>")
}

func TestCompose_UnknownDisplayName(t *testing.T) {
	html := compose(t, &model.PostData{Text: "x"}, "")
	assert.Contains(t, html, `<div class="tm-xpng-name">Unknown</div>`)
	assert.Contains(t, html, `<div class="tm-xpng-watermark">XCard</div>`)
}

func TestCompose_Stats(t *testing.T) {
	t.Run("all empty", func(t *testing.T) {
		html := compose(t, &model.PostData{Text: "x"}, "")
		assert.NotContains(t, html, `<div class="tm-xpng-stats">`)
		assert.NotContains(t, html, "Replies")
	})

	t.Run("fixed order, empties skipped", func(t *testing.T) {
		html := compose(t, &model.PostData{Text: "x", Views: "9.9K", Replies: "3", Likes: "1.2M"}, "")
		require.Contains(t, html, `<div class="tm-xpng-stats">`)
		assert.NotContains(t, html, "Reposts")

		replies := strings.Index(html, `3</span>Replies`)
		likes := strings.Index(html, `1.2M</span>Likes`)
		views := strings.Index(html, `9.9K</span>Views`)
		require.True(t, replies > 0 && likes > 0 && views > 0)
		assert.Less(t, replies, likes)
		assert.Less(t, likes, views)
	})
}

func TestCompose_Media(t *testing.T) {
	html := compose(t, &model.PostData{Text: "x"}, "")
	assert.NotContains(t, html, `<div class="tm-xpng-media`)

	html = compose(t, &model.PostData{Text: "x", Images: []model.Image{{Src: "https://img/1.jpg"}}}, "")
	assert.Contains(t, html, `<div class="tm-xpng-media cols-1"><img src="https://img/1.jpg"></div>`)

	html = compose(t, &model.PostData{Text: "x", Images: []model.Image{
		{Src: "https://img/1.jpg"}, {Src: "https://img/2.jpg"}, {Src: "https://img/3.jpg"},
	}}, "")
	assert.Contains(t, html, `<div class="tm-xpng-media cols-2">`)
	assert.Equal(t, 3, strings.Count(html, `<img src="https://img/`))
}

func TestCompose_QRCode(t *testing.T) {
	html := compose(t, &model.PostData{Text: "x", TweetURL: "https://x.com/a/status/1"}, "")
	assert.Contains(t, html, `<div class="tm-xpng-qr"><img src="data:image/png;base64,`)

	html = compose(t, &model.PostData{Text: "x"}, "")
	assert.NotContains(t, html, `<div class="tm-xpng-qr">`)
}

func TestCompose_QuoteBlock(t *testing.T) {
	post := &model.PostData{
		Text: "main",
		QuoteTweet: &model.PostData{
			Text:        "quoted line\n\nsecond",
			DisplayName: "Quoter",
			Handle:      "@quoter",
		},
	}

	doc, err := Compose(post, "", "引用")
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, `<div class="tm-xpng-quote-name">Quoter</div>`)
	assert.Contains(t, doc.HTML, `<div class="tm-xpng-quote-body"><span class="tm-hl">引用</span></div>`)
	assert.NotContains(t, doc.HTML, `tm-xpng-quote-avatar"><img`)

	doc, err = Compose(post, "", "")
	require.NoError(t, err)
	assert.Contains(t, doc.HTML, `<span class="tm-hl">quoted line</span><br><span class="tm-hl">second</span>`)
}
