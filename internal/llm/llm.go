package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "gpt-4o-mini"
	// DefaultVisionModel is used when Config.VisionModel is empty.
	DefaultVisionModel = "gpt-4o-mini"
	// DefaultAnalyzePrompt 用户没有填写问题时使用
	DefaultAnalyzePrompt = "Please analyze this file"

	visionMaxTokens = 500
)

// ErrEmptyCompletion is returned when the model answers with no content.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Completer 根据 system prompt 和用户输入生成一次回复
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// VisionCompleter 针对一张图片回答问题
type VisionCompleter interface {
	CompleteImage(ctx context.Context, prompt, imageURL string) (string, error)
}

// Config 是 OpenAI 客户端配置，空字段使用默认值
type Config struct {
	APIKey      string
	Model       string
	VisionModel string
	BaseURL     string
	MaxRetries  int
}

// Client is a Completer and VisionCompleter backed by the OpenAI chat
// completions API.
type Client struct {
	api         openai.Client
	model       string
	visionModel string
}

var (
	_ Completer       = (*Client)(nil)
	_ VisionCompleter = (*Client)(nil)
)

// NewClient 创建 OpenAI 客户端；BaseURL 为空时使用官方地址
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &Client{
		api:         openai.NewClient(opts...),
		model:       defaultIfEmpty(cfg.Model, DefaultModel),
		visionModel: defaultIfEmpty(cfg.VisionModel, DefaultVisionModel),
	}
}

// Model returns the chat model name.
func (c *Client) Model() string {
	return c.model
}

// Complete 发送一次 system + user 对话，返回第一条回复
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", c.model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteImage 发送文字问题和一张图片（URL 或 data URL）
func (c *Client) CompleteImage(ctx context.Context, prompt, imageURL string) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(defaultIfEmpty(strings.TrimSpace(prompt), DefaultAnalyzePrompt)),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: imageURL}),
	}
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(c.visionModel),
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(parts)},
		MaxCompletionTokens: openai.Int(visionMaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("vision completion (%s): %w", c.visionModel, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Run 使用 task 对应的 prompt 完成一次请求
func Run(ctx context.Context, c Completer, task Task, input string) (string, error) {
	return c.Complete(ctx, task.SystemPrompt(), task.UserPrompt(input))
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
