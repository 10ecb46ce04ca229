package card

import (
	_ "embed"
	"encoding/base64"
	"html/template"
	"regexp"
	"strings"

	"xcard-backend/internal/model"
	"xcard-backend/pkg/logger"

	qrcode "github.com/skip2/go-qrcode"
)

// StageSelector 截图区域
const StageSelector = ".tm-xpng-stage"

const qrSize = 256

//go:embed card.html
var cardHTML string

var cardTmpl = template.Must(template.New("card").Parse(cardHTML))

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// Document 是一次渲染的输入：完整 HTML 和截图区域
type Document struct {
	HTML     string
	Selector string
}

type stat struct {
	Value string
	Label string
}

type quoteView struct {
	DisplayName string
	Handle      string
	AvatarURL   string
	Lines       []string
}

type cardView struct {
	QRDataURL   template.URL
	AvatarURL   string
	DisplayName string
	Handle      string
	TimeText    string
	Lines       []string
	Images      []model.Image
	MediaCols   string
	Quote       *quoteView
	Stats       []stat
}

// Compose 生成卡片 HTML。translated 为空时使用原文
func Compose(post *model.PostData, translated, quoteTranslated string) (Document, error) {
	view := cardView{
		QRDataURL:   qrDataURL(post.TweetURL),
		AvatarURL:   post.AvatarURL,
		DisplayName: post.DisplayName,
		Handle:      post.Handle,
		TimeText:    post.TimeText,
		Lines:       bodyLines(firstNonEmpty(translated, post.Text)),
		Images:      post.Images,
		Stats:       stats(post),
	}
	if view.DisplayName == "" {
		view.DisplayName = "Unknown"
	}
	if len(post.Images) == 1 {
		view.MediaCols = "cols-1"
	} else {
		view.MediaCols = "cols-2"
	}
	if q := post.QuoteTweet; q != nil {
		view.Quote = &quoteView{
			DisplayName: q.DisplayName,
			Handle:      q.Handle,
			AvatarURL:   q.AvatarURL,
			Lines:       bodyLines(firstNonEmpty(quoteTranslated, q.Text)),
		}
	}

	var sb strings.Builder
	if err := cardTmpl.Execute(&sb, view); err != nil {
		return Document{}, err
	}
	return Document{HTML: sb.String(), Selector: StageSelector}, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// bodyLines 去掉首尾空白，压缩连续空行，只保留非空行
func bodyLines(text string) []string {
	text = blankRunRe.ReplaceAllString(strings.TrimSpace(text), "\n\n")
	if text == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// stats 固定顺序：Replies, Reposts, Likes, Views
func stats(post *model.PostData) []stat {
	if !post.HasStats() {
		return nil
	}
	all := []stat{
		{post.Replies, "Replies"},
		{post.Retweets, "Reposts"},
		{post.Likes, "Likes"},
		{post.Views, "Views"},
	}
	var out []stat
	for _, s := range all {
		if s.Value != "" {
			out = append(out, s)
		}
	}
	return out
}

func qrDataURL(target string) template.URL {
	if target == "" {
		return ""
	}
	qr, err := qrcode.New(target, qrcode.Medium)
	if err != nil {
		logger.Warnf("qr encode failed: %v", err)
		return ""
	}
	qr.DisableBorder = true
	png, err := qr.PNG(qrSize)
	if err != nil {
		logger.Warnf("qr encode failed: %v", err)
		return ""
	}
	// 内容由本进程生成，可以安全地标记为 URL
	return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
}
