package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"xcard-backend/internal/model"
	"xcard-backend/pkg/logger"

	"github.com/cloudwego/eino/callbacks"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

const (
	DefaultTemperature float32 = 0.4
	DefaultMaxTokens           = 300
)

var errEmptyPost = errors.New("model returned an empty post")

// Writer 根据推文生成一段社群文案
type Writer struct {
	searcher    Searcher
	temperature float32
	maxTokens   int
	runnable    compose.Runnable[*model.PostData, string]
	cbHandler   callbacks.Handler
}

type Option func(*Writer)

// WithSearcher 设置背景资料来源，nil 表示不搜索
func WithSearcher(s Searcher) Option {
	return func(w *Writer) { w.searcher = s }
}

func WithTemperature(t float32) Option {
	return func(w *Writer) { w.temperature = t }
}

func WithMaxTokens(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.maxTokens = n
		}
	}
}

func NewWriter(ctx context.Context, cm einoModel.BaseChatModel, opts ...Option) (*Writer, error) {
	if cm == nil {
		return nil, model.ErrAINotConfigured
	}

	w := &Writer{
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		cbHandler:   logCallback(),
	}
	for _, opt := range opts {
		opt(w)
	}

	r, err := w.compose(ctx, cm)
	if err != nil {
		return nil, fmt.Errorf("failed to compose social graph: %w", err)
	}
	w.runnable = r
	return w, nil
}

func newSocialPrompt() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(SystemPrompt),
		schema.UserMessage("{prompt}"),
	)
}

// compose 搜索背景 -> 模板 -> 模型 -> 清理输出
func (w *Writer) compose(ctx context.Context, cm einoModel.BaseChatModel) (compose.Runnable[*model.PostData, string], error) {
	g := compose.NewGraph[*model.PostData, string]()

	buildPrompt := compose.InvokableLambda(func(ctx context.Context, post *model.PostData) (map[string]any, error) {
		return map[string]any{"prompt": BuildPrompt(post, w.searchContext(ctx, post))}, nil
	})
	cleanPost := compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (string, error) {
		out := strings.TrimSpace(msg.Content)
		if out == "" {
			return "", errEmptyPost
		}
		return out, nil
	})

	if err := g.AddLambdaNode("BuildPrompt", buildPrompt); err != nil {
		return nil, err
	}
	if err := g.AddChatTemplateNode("SocialTemplate", newSocialPrompt()); err != nil {
		return nil, err
	}
	if err := g.AddChatModelNode("SocialModel", cm); err != nil {
		return nil, err
	}
	if err := g.AddLambdaNode("CleanPost", cleanPost); err != nil {
		return nil, err
	}

	edges := [][2]string{
		{compose.START, "BuildPrompt"},
		{"BuildPrompt", "SocialTemplate"},
		{"SocialTemplate", "SocialModel"},
		{"SocialModel", "CleanPost"},
		{"CleanPost", compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, err
		}
	}

	return g.Compile(ctx)
}

// searchContext 搜索失败时返回空串，不影响生成
func (w *Writer) searchContext(ctx context.Context, post *model.PostData) string {
	if w.searcher == nil {
		return ""
	}
	snippets, err := w.searcher.Search(ctx, BuildSearchQuery(post))
	if err != nil {
		logger.Warnf("social search failed: %v", err)
		return ""
	}
	if len(snippets) == 0 {
		logger.Info("no search results, generating without context")
		return ""
	}
	logger.Infof("found %d search results for context", len(snippets))
	return strings.Join(snippets, "\n")
}

// Write 生成文案
func (w *Writer) Write(ctx context.Context, post *model.PostData) (string, error) {
	if post == nil {
		return "", model.ErrInvalidInput
	}
	return w.runnable.Invoke(ctx, post,
		compose.WithChatModelOption(
			einoModel.WithTemperature(w.temperature),
			einoModel.WithMaxTokens(w.maxTokens),
		),
		compose.WithCallbacks(w.cbHandler),
	)
}

func logCallback() callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
			logger.WithFields(logrus.Fields{"node": info.Name, "component": info.Component}).Debug("social node start")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			logger.WithFields(logrus.Fields{"node": info.Name, "component": info.Component}).WithError(err).Warn("social node failed")
			return ctx
		}).
		Build()
}
