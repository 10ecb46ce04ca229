package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	"xcard-backend/internal/config"
	"xcard-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
)

type openaiChatModel struct {
	client *openai.Client
	opts   *einoModel.Options
}

func newOpenAIChatModel(ctx context.Context, cfg config.AIConfig) (*openaiChatModel, error) {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &openaiChatModel{
		client: openai.NewClientWithConfig(clientConfig),
		opts: &einoModel.Options{
			Model:       &cfg.Model,
			MaxTokens:   &cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			TopP:        &cfg.TopP,
		},
	}, nil
}

func (m *openaiChatModel) request(messages []*schema.Message, opts ...einoModel.Option) openai.ChatCompletionRequest {
	options := einoModel.GetCommonOptions(&einoModel.Options{
		Model:       m.opts.Model,
		MaxTokens:   m.opts.MaxTokens,
		Temperature: m.opts.Temperature,
		TopP:        m.opts.TopP,
	}, opts...)

	req := openai.ChatCompletionRequest{Messages: m.convertMessages(messages)}
	if options.Model != nil {
		req.Model = *options.Model
	}
	if options.MaxTokens != nil {
		req.MaxTokens = *options.MaxTokens
	}
	if options.Temperature != nil {
		req.Temperature = *options.Temperature
	}
	if options.TopP != nil {
		req.TopP = *options.TopP
	}
	return req
}

// 实现eino.ChatModel接口
func (m *openaiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.Message, error) {
	req := m.request(messages, opts...)
	logger.Debugf("OpenAI Generate - 模型: %s, 消息数量: %d", req.Model, len(req.Messages))

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from %s", req.Model)
	}

	return &schema.Message{
		Role:    schema.Assistant,
		Content: resp.Choices[0].Message.Content,
	}, nil
}

func (m *openaiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...einoModel.Option) (*schema.StreamReader[*schema.Message], error) {
	req := m.request(messages, opts...)
	req.Stream = true

	stream, err := m.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}

	reader, writer := schema.Pipe[*schema.Message](100)

	go func() {
		defer writer.Close()
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					writer.Send(nil, err)
				}
				return
			}

			if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
				writer.Send(&schema.Message{
					Role:    schema.Assistant,
					Content: response.Choices[0].Delta.Content,
				}, nil)
			}
		}
	}()

	return reader, nil
}

// 文案生成不需要工具调用
func (m *openaiChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

// 消息格式转换
func (m *openaiChatModel) convertMessages(messages []*schema.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		case schema.System:
			role = openai.ChatMessageRoleSystem
		}

		// 跳过空的assistant消息，这些消息可能导致API错误
		if msg.Content == "" && role == openai.ChatMessageRoleAssistant {
			continue
		}

		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}
