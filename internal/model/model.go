package model

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"xcard-backend/internal/config"
	"xcard-backend/pkg/logger"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

const defaultQwenBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// openaiCompatible 兼容 OpenAI 协议的服务商：默认 base url 和模型
var openaiCompatible = map[string]struct {
	baseURL string
	model   string
}{
	"openai":   {"https://api.openai.com/v1", "gpt-4o-mini"},
	"chatgpt":  {"https://api.openai.com/v1", "gpt-4o-mini"},
	"deepseek": {"https://api.deepseek.com/v1", "deepseek-chat"},
	"groq":     {"https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	"grok":     {"https://api.groq.com/openai/v1", "llama-3.3-70b-versatile"},
	"gemini":   {"https://generativelanguage.googleapis.com/v1beta/openai", "gemini-2.0-flash"},
}

// NewChatModel 根据 ai.provider 创建文案模型
func NewChatModel(ctx context.Context, cfg config.AIConfig) (einoModel.ChatModel, error) {
	if !cfg.Enabled() {
		return nil, ErrAINotConfigured
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "doubao", "ark":
		return createDoubaoModel(ctx, cfg)
	case "qwen":
		return createQwenModel(ctx, cfg)
	}

	preset, ok := openaiCompatible[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = preset.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = preset.model
	}
	return createOpenAIModel(ctx, cfg)
}

func maskKey(key string) string {
	if len(key) > 10 {
		return key[:10] + "..."
	}
	return "***"
}

func createDoubaoModel(ctx context.Context, cfg config.AIConfig) (einoModel.ChatModel, error) {
	logger.Infof("Using Doubao API Key: %s, Model: %s", maskKey(cfg.APIKey), cfg.Model)

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create doubao model: %w", err)
	}

	return chatModel, nil
}

func createQwenModel(ctx context.Context, cfg config.AIConfig) (einoModel.ChatModel, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultQwenBaseURL
	}
	logger.Infof("Using Qwen Model: %s, BaseURL: %s", cfg.Model, cfg.BaseURL)

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qwen model: %w", err)
	}

	return chatModel, nil
}

func createOpenAIModel(ctx context.Context, cfg config.AIConfig) (einoModel.ChatModel, error) {
	logger.Infof("Using OpenAI-compatible provider %s, Model: %s", cfg.Provider, cfg.Model)
	return newOpenAIChatModel(ctx, cfg)
}
