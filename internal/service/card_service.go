package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xcard-backend/internal/card"
	"xcard-backend/internal/model"
	"xcard-backend/pkg/logger"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// 依赖方定义的接口
type Fetcher interface {
	Fetch(ctx context.Context, tweetURL string) (*model.PostData, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) string
}

type Renderer interface {
	Render(ctx context.Context, doc card.Document) ([]byte, error)
}

type Writer interface {
	Write(ctx context.Context, post *model.PostData) (string, error)
}

// CardService 把抓取、翻译、排版、渲染串起来，bot 和 HTTP 接口共用
type CardService struct {
	fetcher    Fetcher
	translator Translator
	renderer   Renderer
	writer     Writer
}

type CardOption func(*CardService)

func WithFetcher(f Fetcher) CardOption {
	return func(s *CardService) { s.fetcher = f }
}

func WithTranslator(t Translator) CardOption {
	return func(s *CardService) { s.translator = t }
}

func WithRenderer(r Renderer) CardOption {
	return func(s *CardService) { s.renderer = r }
}

// WithWriter 设置文案生成器，未配置 AI 时不设置
func WithWriter(w Writer) CardOption {
	return func(s *CardService) { s.writer = w }
}

func NewCardService(opts ...CardOption) *CardService {
	s := &CardService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CardService) Fetch(ctx context.Context, tweetURL string) (*model.PostData, error) {
	return s.fetcher.Fetch(ctx, tweetURL)
}

// Render 翻译正文和引用推文后渲染卡片
func (s *CardService) Render(ctx context.Context, post *model.PostData) ([]byte, error) {
	start := time.Now()

	var translated, quoteTranslated string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		translated = s.translate(gctx, post.Text)
		return nil
	})
	if post.QuoteTweet != nil {
		g.Go(func() error {
			quoteTranslated = s.translate(gctx, post.QuoteTweet.Text)
			return nil
		})
	}
	_ = g.Wait()

	doc, err := card.Compose(post, translated, quoteTranslated)
	if err != nil {
		return nil, fmt.Errorf("%w: compose: %v", model.ErrRenderFailed, err)
	}

	img, err := s.renderer.Render(ctx, doc)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"url":     post.TweetURL,
		"bytes":   len(img),
		"elapsed": time.Since(start).String(),
	}).Info("card rendered")
	return img, nil
}

func (s *CardService) translate(ctx context.Context, text string) string {
	if s.translator == nil || text == "" {
		return ""
	}
	return s.translator.Translate(ctx, text)
}

// Generate 抓取并渲染。渲染失败时仍返回已抓到的数据
func (s *CardService) Generate(ctx context.Context, tweetURL string) (*model.PostData, []byte, error) {
	post, err := s.Fetch(ctx, tweetURL)
	if err != nil {
		return nil, nil, err
	}
	img, err := s.Render(ctx, post)
	if err != nil {
		return post, nil, err
	}
	return post, img, nil
}

func (s *CardService) SocialEnabled() bool {
	return s.writer != nil
}

// Social 为已抓取的推文生成文案
func (s *CardService) Social(ctx context.Context, post *model.PostData) (string, error) {
	if s.writer == nil {
		return "", model.ErrAINotConfigured
	}
	text, err := s.writer.Write(ctx, post)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", fmt.Errorf("social post: %w", err)
	}
	return text, nil
}

// SocialFromURL 抓取后生成文案
func (s *CardService) SocialFromURL(ctx context.Context, tweetURL string) (*model.PostData, string, error) {
	if s.writer == nil {
		return nil, "", model.ErrAINotConfigured
	}
	post, err := s.Fetch(ctx, tweetURL)
	if err != nil {
		return nil, "", err
	}
	text, err := s.Social(ctx, post)
	if err != nil {
		return post, "", err
	}
	return post, text, nil
}
