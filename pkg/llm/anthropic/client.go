package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	anthropic_sdk "github.com/anthropics/anthropic-sdk-go"
	anthropic_option "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mledur/quill/pkg/ai"
	"github.com/mledur/quill/pkg/config"
	"github.com/mledur/quill/pkg/events"
	"github.com/mledur/quill/pkg/logging"
	"github.com/mledur/quill/pkg/template"
)

const defaultClaudeModel = "claude-3-5-sonnet-20241022"

var (
	errMissingAPIKey        = errors.New("anthropic backend not configured")
	_                ai.Gen = (*Client)(nil)
)

type messageClient interface {
	New(ctx context.Context, body anthropic_sdk.MessageNewParams, opts ...anthropic_option.RequestOption) (*anthropic_sdk.Message, error)
	CountTokens(ctx context.Context, body anthropic_sdk.MessageCountTokensParams, opts ...anthropic_option.RequestOption) (*anthropic_sdk.MessageTokensCount, error)
}

// Option configures the Anthropic client.
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

// WithMessageClient injects a pre-built message client (primarily for tests).
func WithMessageClient(client messageClient) Option {
	return func(c *Client) {
		if client != nil {
			c.messages = client
		}
	}
}

// Client provides an ai.Gen implementation backed by the Anthropic Messages API.
type Client struct {
	mu sync.Mutex

	config    config.Manager
	template  template.Engine
	publisher events.Publisher
	logger    logging.Logger

	apiClient *anthropic_sdk.Client
	messages  messageClient

	initialized bool
	initErr     error
}

// NewClient builds a new Anthropic-backed ai.Gen implementation.
func NewClient(publisher events.Publisher, opts ...Option) (ai.Gen, error) {
	client := &Client{
		config:    config.NewManager(),
		template:  template.NewEngine(),
		publisher: publisher,
		logger:    logging.NewAPILogger("anthropic"),
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

// CountTokens renders the prompt and calls the token counting API.
func (c *Client) CountTokens(ctx context.Context, prompt ai.Prompt, attrs ...ai.Attr) (*ai.TokenCount, error) {
	if err := c.ensureInitialized(ctx); err != nil {
		return nil, err
	}

	rendered, err := c.renderPrompt(prompt, attrs)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	params := c.buildCountTokensParams(*rendered)

	result, err := c.messages.CountTokens(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic count tokens: %w", err)
	}

	tokenCount := &ai.TokenCount{
		TotalTokens: int32(result.InputTokens),
		InputTokens: int32(result.InputTokens),
	}
	c.publishTokenCount(tokenCount)
	return tokenCount, nil
}

// GetStatus reports whether mandatory configuration is available and which model is configured.
func (c *Client) GetStatus() *ai.Status {
	model := c.config.GetModelConfig()
	modelStr := fmt.Sprintf("%s, Temperature: %.2f, Max Tokens: %d", model.ModelName, model.Temperature, model.MaxTokens)

	apiKey := strings.TrimSpace(c.config.GetStringWithDefault("ANTHROPIC_API_KEY", ""))
	if apiKey == "" {
		return &ai.Status{
			Model:     modelStr,
			Backend:   "anthropic",
			Connected: false,
			Message:   "ANTHROPIC_API_KEY not configured",
		}
	}

	message := "Anthropic configured"
	if baseURL := strings.TrimSpace(c.config.GetStringWithDefault("ANTHROPIC_BASE_URL", "")); baseURL != "" {
		message = fmt.Sprintf("Anthropic configured (custom endpoint: %s)", baseURL)
	}

	return &ai.Status{
		Model:     modelStr,
		Backend:   "anthropic",
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

	if c.messages != nil {
		c.initialized = true
		c.initErr = nil
		return nil
	}

	apiKey := strings.TrimSpace(c.config.GetStringWithDefault("ANTHROPIC_API_KEY", ""))
	if apiKey == "" {
		c.initErr = fmt.Errorf("%w: please export ANTHROPIC_API_KEY (and optionally ANTHROPIC_BASE_URL or ANTHROPIC_AUTH_TOKEN)", errMissingAPIKey)
		return c.initErr
	}

	opts := []anthropic_option.RequestOption{
		anthropic_option.WithAPIKey(apiKey),
	}
	if baseURL := strings.TrimSpace(c.config.GetStringWithDefault("ANTHROPIC_BASE_URL", "")); baseURL != "" {
		opts = append(opts, anthropic_option.WithBaseURL(baseURL))
	}
	if authToken := strings.TrimSpace(c.config.GetStringWithDefault("ANTHROPIC_AUTH_TOKEN", "")); authToken != "" {
		opts = append(opts, anthropic_option.WithAuthToken(authToken))
	}

	client := anthropic_sdk.NewClient(opts...)
	service := client.Messages

	c.apiClient = &client
	c.messages = &service
	c.initialized = true
	c.initErr = nil
	return nil
}

func (c *Client) generateWithPrompt(ctx context.Context, prompt ai.Prompt) (string, error) {
	systemBlocks := c.buildSystemBlocks(prompt)
	messageParams := c.buildMessages(prompt)

	modelName := c.resolveModelName(prompt.ModelName)
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.config.GetModelConfig().MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic_sdk.MessageNewParams{
		Model:     anthropic_sdk.Model(modelName),
		MaxTokens: int64(maxTokens),
		Messages:  messageParams,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	c.applyGenerationConfig(&params, prompt)

	resp, err := c.messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	c.publishUsage(resp.Usage)

	return parseResponse(resp), nil
}

func parseResponse(resp *anthropic_sdk.Message) string {
	var textBuilder strings.Builder

	for _, block := range resp.Content {
		if block.Type != "text" || strings.TrimSpace(block.Text) == "" {
			continue
		}
		if textBuilder.Len() > 0 {
			textBuilder.WriteString("\n")
		}
		textBuilder.WriteString(block.Text)
	}

	return strings.TrimSpace(textBuilder.String())
}

func (c *Client) applyGenerationConfig(params *anthropic_sdk.MessageNewParams, prompt ai.Prompt) {
	modelCfg := c.config.GetModelConfig()

	if prompt.Temperature > 0 {
		params.Temperature = anthropic_sdk.Float(float64(prompt.Temperature))
	} else if modelCfg.Temperature > 0 {
		params.Temperature = anthropic_sdk.Float(float64(modelCfg.Temperature))
	}

	if prompt.TopP > 0 {
		params.TopP = anthropic_sdk.Float(float64(prompt.TopP))
	} else if modelCfg.TopP > 0 {
		params.TopP = anthropic_sdk.Float(float64(modelCfg.TopP))
	}
}

func (c *Client) buildSystemBlocks(prompt ai.Prompt) []anthropic_sdk.TextBlockParam {
	var blocks []anthropic_sdk.TextBlockParam

	if strings.TrimSpace(prompt.Instruction) != "" {
		blocks = append(blocks, anthropic_sdk.TextBlockParam{Text: prompt.Instruction})
	}

	return blocks
}

func (c *Client) buildMessages(prompt ai.Prompt) []anthropic_sdk.MessageParam {
	text := strings.TrimSpace(prompt.Text)
	blocks := []anthropic_sdk.ContentBlockParamUnion{anthropic_sdk.NewTextBlock(text)}
	return []anthropic_sdk.MessageParam{anthropic_sdk.NewUserMessage(blocks...)}
}

func (c *Client) buildCountTokensParams(prompt ai.Prompt) anthropic_sdk.MessageCountTokensParams {
	modelName := c.resolveModelName(prompt.ModelName)
	params := anthropic_sdk.MessageCountTokensParams{
		Model:    anthropic_sdk.Model(modelName),
		Messages: c.buildMessages(prompt),
	}

	systemBlocks := c.buildSystemBlocks(prompt)
	if len(systemBlocks) > 0 {
		params.System = anthropic_sdk.MessageCountTokensParamsSystemUnion{
			OfTextBlockArray: systemBlocks,
		}
	}

	return params
}

func (c *Client) resolveModelName(promptModel string) string {
	if strings.TrimSpace(promptModel) != "" {
		return promptModel
	}

	model := c.config.GetModelConfig()
	if strings.TrimSpace(model.ModelName) != "" {
		return model.ModelName
	}

	return defaultClaudeModel
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

func (c *Client) publishUsage(usage anthropic_sdk.Usage) {
	event := events.TokenCountEvent{
		InputTokens:  int32(usage.InputTokens),
		OutputTokens: int32(usage.OutputTokens),
		TotalTokens:  int32(usage.InputTokens + usage.OutputTokens),
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
