package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/mledur/quill/pkg/ai"
	"github.com/mledur/quill/pkg/config"
	"github.com/mledur/quill/pkg/events"
	"github.com/mledur/quill/pkg/logging"
	"github.com/mledur/quill/pkg/template"
)

var (
	errMissingAPIKey        = errors.New("openai backend not configured")
	_                ai.Gen = (*Client)(nil)
)

type chatCompletionClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Option configures the OpenAI client.
type Option func(*Client)

// WithConfigManager injects a custom configuration manager (useful for tests).
func WithConfigManager(manager config.Manager) Option {
	return func(c *Client) {
		if manager != nil {
			c.config = manager
		}
	}
}

// WithTemplateEngine injects a custom template engine.
func WithTemplateEngine(engine template.Engine) Option {
	return func(c *Client) {
		if engine != nil {
			c.template = engine
		}
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithChatClient injects a custom Chat Completions client (primarily for tests).
func WithChatClient(chat chatCompletionClient) Option {
	return func(c *Client) {
		if chat != nil {
			c.chatCompletions = chat
		}
	}
}

// Client provides an ai.Gen implementation backed by OpenAI Chat Completions.
type Client struct {
	mu sync.Mutex

	config    config.Manager
	template  template.Engine
	publisher events.Publisher
	logger    logging.Logger

	apiClient       *openai.Client
	chatCompletions chatCompletionClient

	initialized bool
	initErr     error
}

// NewClient builds a new OpenAI-backed ai.Gen implementation.
func NewClient(publisher events.Publisher, opts ...Option) (ai.Gen, error) {
	client := &Client{
		config:    config.NewManager(),
		template:  template.NewEngine(),
		publisher: publisher,
		logger:    logging.NewAPILogger("openai"),
	}

	if client.publisher == nil {
		client.publisher = &events.NoOpPublisher{}
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// GenerateContent renders the prompt with the given attributes and executes it.
func (c *Client) GenerateContent(ctx context.Context, prompt ai.Prompt, attrs ...ai.Attr) (string, error) {
	if err := c.ensureInitialized(ctx); err != nil {
		return "", err
	}

	rendered, err := c.renderPrompt(prompt, attrs)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	return c.generateWithPrompt(ctx, *rendered)
}

// CountTokens renders the prompt and estimates its token usage locally.
func (c *Client) CountTokens(ctx context.Context, prompt ai.Prompt, attrs ...ai.Attr) (*ai.TokenCount, error) {
	rendered, err := c.renderPrompt(prompt, attrs)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	modelName := c.resolveModelName(rendered.ModelName)
	_, tokenMessages := c.buildMessages(*rendered)

	total, err := countTokensForMessages(tokenMessages, modelName)
	if err != nil {
		return nil, fmt.Errorf("counting tokens: %w", err)
	}

	tokenCount := &ai.TokenCount{
		TotalTokens: int32(total),
		InputTokens: int32(total),
	}
	c.publishTokenCount(tokenCount)

	return tokenCount, nil
}

// GetStatus reports whether mandatory configuration is available and which model is configured.
func (c *Client) GetStatus() *ai.Status {
	model := c.config.GetModelConfig()
	modelStr := fmt.Sprintf("%s, Temperature: %.2f, Max Tokens: %d", model.ModelName, model.Temperature, model.MaxTokens)

	apiKey := strings.TrimSpace(c.config.GetStringWithDefault("OPENAI_API_KEY", ""))
	if apiKey == "" {
		return &ai.Status{
			Model:     modelStr,
			Backend:   "openai",
			Connected: false,
			Message:   "OPENAI_API_KEY not configured",
		}
	}

	message := "OpenAI configured"
	if baseURL := strings.TrimSpace(c.config.GetStringWithDefault("OPENAI_BASE_URL", "")); baseURL != "" {
		message = fmt.Sprintf("OpenAI configured (custom endpoint: %s)", baseURL)
	}

	return &ai.Status{
		Model:     modelStr,
		Backend:   "openai",
		Connected: true,
		Message:   message,
	}
}

func (c *Client) ensureInitialized(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return c.initErr
	}

	if c.chatCompletions != nil {
		c.initialized = true
		return nil
	}

	apiKey := strings.TrimSpace(c.config.GetStringWithDefault("OPENAI_API_KEY", ""))
	if apiKey == "" {
		c.initErr = fmt.Errorf("%w: please export OPENAI_API_KEY (and optionally OPENAI_BASE_URL or OPENAI_ORG_ID)", errMissingAPIKey)
		return c.initErr
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := strings.TrimSpace(c.config.GetStringWithDefault("OPENAI_BASE_URL", "")); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if orgID := strings.TrimSpace(c.config.GetStringWithDefault("OPENAI_ORG_ID", "")); orgID != "" {
		opts = append(opts, option.WithOrganization(orgID))
	}
	if project := strings.TrimSpace(c.config.GetStringWithDefault("OPENAI_PROJECT_ID", "")); project != "" {
		opts = append(opts, option.WithProject(project))
	}

	client := openai.NewClient(opts...)
	service := client.Chat.Completions

	c.apiClient = &client
	c.chatCompletions = &service
	c.initialized = true
	c.initErr = nil
	return nil
}

func (c *Client) generateWithPrompt(ctx context.Context, prompt ai.Prompt) (string, error) {
	modelName := c.resolveModelName(prompt.ModelName)
	messages, _ := c.buildMessages(prompt)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelName),
		Messages: messages,
	}
	c.applyGenerationConfig(&params, prompt)

	resp, err := c.chatCompletions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	c.publishUsage(resp.Usage)

	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) resolveModelName(promptModel string) string {
	if strings.TrimSpace(promptModel) != "" {
		return promptModel
	}

	model := c.config.GetModelConfig()
	if strings.TrimSpace(model.ModelName) != "" {
		return model.ModelName
	}

	return string(shared.ChatModelGPT4oMini)
}

func (c *Client) buildMessages(prompt ai.Prompt) ([]openai.ChatCompletionMessageParamUnion, []tokenMessage) {
	var messages []openai.ChatCompletionMessageParamUnion
	var tokenMessages []tokenMessage

	if instruction := strings.TrimSpace(prompt.Instruction); instruction != "" {
		messages = append(messages, openai.SystemMessage(instruction))
		tokenMessages = append(tokenMessages, tokenMessage{
			Role:    "system",
			Content: instruction,
		})
	}

	text := strings.TrimSpace(prompt.Text)
	messages = append(messages, openai.UserMessage(text))
	tokenMessages = append(tokenMessages, tokenMessage{
		Role:    "user",
		Content: text,
	})

	return messages, tokenMessages
}

func (c *Client) applyGenerationConfig(params *openai.ChatCompletionNewParams, prompt ai.Prompt) {
	modelCfg := c.config.GetModelConfig()
	targetModel := string(params.Model)
	allowSampling := allowsSamplingParams(targetModel)

	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = modelCfg.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}

	if allowSampling {
		temperature := prompt.Temperature
		if temperature <= 0 {
			temperature = modelCfg.Temperature
		}
		if temperature > 0 {
			params.Temperature = openai.Float(float64(temperature))
			topP := prompt.TopP
			if supportsTopP(targetModel) && topP > 0 && math.Abs(float64(topP)-1.0) > 1e-6 {
				params.TopP = openai.Float(float64(topP))
			} else if topP > 0 && math.Abs(float64(topP)-1.0) > 1e-6 {
				c.logger.Debug("top_p not supported for model; using default", "model", targetModel)
			}
		}
	} else {
		if prompt.Temperature > 0 && prompt.Temperature != 1.0 {
			c.logger.Debug("temperature not supported for model; using default", "model", targetModel)
		}
		if prompt.TopP > 0 && prompt.TopP != 1.0 {
			c.logger.Debug("top_p not supported for model; using default", "model", targetModel)
		}
	}
}

func (c *Client) renderPrompt(prompt ai.Prompt, attrs []ai.Attr) (*ai.Prompt, error) {
	data := ai.AttrsToMap(attrs)

	instruction, err := c.template.RenderString(prompt.Instruction, data)
	if err != nil {
		return nil, fmt.Errorf("rendering instruction: %w", err)
	}

	text, err := c.template.RenderString(prompt.Text, data)
	if err != nil {
		return nil, fmt.Errorf("rendering text: %w", err)
	}

	rendered := prompt
	rendered.Instruction = instruction
	rendered.Text = text
	return &rendered, nil
}

func (c *Client) publishUsage(usage openai.CompletionUsage) {
	if usage.TotalTokens == 0 && usage.PromptTokens == 0 && usage.CompletionTokens == 0 {
		return
	}

	event := events.TokenCountEvent{
		InputTokens:  int32(usage.PromptTokens),
		OutputTokens: int32(usage.CompletionTokens),
		TotalTokens:  int32(usage.TotalTokens),
	}
	c.publisher.Publish(event.Topic(), event)
}

func (c *Client) publishTokenCount(tokenCount *ai.TokenCount) {
	if tokenCount == nil {
		return
	}
	event := events.TokenCountEvent{
		InputTokens:  tokenCount.InputTokens,
		OutputTokens: tokenCount.OutputTokens,
		TotalTokens:  tokenCount.TotalTokens,
	}
	c.publisher.Publish(event.Topic(), event)
}

func allowsSamplingParams(model string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return false
	default:
		return true
	}
}

func supportsTopP(model string) bool {
	model = strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4-turbo"),
		strings.HasPrefix(model, "gpt-4-"),
		strings.HasPrefix(model, "gpt-3.5"):
		return true
	default:
		return false
	}
}
