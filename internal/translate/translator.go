package translate

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf16"

	"xcard-backend/pkg/logger"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultChunkMax    = 800
	DefaultConcurrency = 4
	DefaultCacheSize   = 512
	DefaultTargetLang  = "zh-TW"
)

// Backend 翻译单个分块
type Backend interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

type Translator struct {
	backend     Backend
	targetLang  string
	chunkMax    int
	concurrency int
	cacheSize   int
	cache       *lru.Cache[string, string]
}

type Option func(*Translator)

func WithTargetLang(lang string) Option {
	return func(t *Translator) {
		if lang != "" {
			t.targetLang = lang
		}
	}
}

func WithChunkMax(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.chunkMax = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.concurrency = n
		}
	}
}

// WithCacheSize 设置分块缓存容量，<= 0 关闭缓存
func WithCacheSize(n int) Option {
	return func(t *Translator) { t.cacheSize = n }
}

func New(backend Backend, opts ...Option) *Translator {
	t := &Translator{
		backend:     backend,
		targetLang:  DefaultTargetLang,
		chunkMax:    DefaultChunkMax,
		concurrency: DefaultConcurrency,
		cacheSize:   DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.cacheSize > 0 {
		// 只有 size <= 0 时才会返回错误
		t.cache, _ = lru.New[string, string](t.cacheSize)
	}
	return t
}

// Translate 翻译整段文本。失败的分块保留原文，不会返回错误
func (t *Translator) Translate(ctx context.Context, text string) string {
	if text == "" {
		return ""
	}

	chunks := Chunk(text, t.chunkMax)
	if len(chunks) == 1 {
		return t.translateChunk(ctx, chunks[0])
	}

	results := make([]string, len(chunks))
	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = t.translateChunk(ctx, chunk)
			return nil
		})
	}
	_ = g.Wait()

	return strings.Join(results, "")
}

func (t *Translator) translateChunk(ctx context.Context, chunk string) string {
	key := t.targetLang + "\x00" + chunk
	if t.cache != nil {
		if v, ok := t.cache.Get(key); ok {
			return v
		}
	}

	out, err := t.backend.Translate(ctx, chunk, t.targetLang)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"lang":  t.targetLang,
			"units": utf16Len(chunk),
		}).WithError(err).Warn("translate chunk failed, keeping original text")
		return chunk
	}

	if t.cache != nil {
		t.cache.Add(key, out)
	}
	return out
}

// Chunk 按句子边界把文本打包成不超过 limit 个 UTF-16 单元的分块。
// 所有分块按顺序拼接后与输入完全一致。
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf16Len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var buf strings.Builder
	bufLen := 0
	for _, frag := range splitSentences(text) {
		for _, piece := range hardSplit(frag, limit) {
			n := utf16Len(piece)
			if bufLen+n > limit && bufLen > 0 {
				chunks = append(chunks, buf.String())
				buf.Reset()
				bufLen = 0
			}
			buf.WriteString(piece)
			bufLen += n
		}
	}
	if bufLen > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '\n':
		return true
	}
	return false
}

// splitSentences 在一串结束符及其后的空白之后切分
func splitSentences(text string) []string {
	var out []string
	start := 0
	inTail := false
	for i, r := range text {
		if isTerminator(r) {
			inTail = true
			continue
		}
		if inTail && !unicode.IsSpace(r) {
			out = append(out, text[start:i])
			start = i
			inTail = false
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// hardSplit 按 rune 边界切开超长的句子
func hardSplit(s string, limit int) []string {
	if utf16Len(s) <= limit {
		return []string{s}
	}
	var out []string
	start, n := 0, 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if n+w > limit {
			out = append(out, s[start:i])
			start, n = i, 0
		}
		n += w
	}
	return append(out, s[start:])
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if w := utf16.RuneLen(r); w > 0 {
			n += w
		} else {
			n++
		}
	}
	return n
}
