package openai

import (
	"context"
	"errors"
	"sync"
	"testing"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mledur/quill/pkg/ai"
	"github.com/mledur/quill/pkg/events"
)

type mockChatCompletions struct {
	t         *testing.T
	mu        sync.Mutex
	requests  []openai.ChatCompletionNewParams
	responses []*openai.ChatCompletion
	err       error
}

func (m *mockChatCompletions) New(ctx context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, params)

	if m.err != nil {
		return nil, m.err
	}

	if len(m.responses) == 0 {
		require.FailNow(m.t, "mock chat completions received more calls than configured responses")
	}

	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func newChatCompletion(content string, usage openai.CompletionUsage) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		ID:     "test",
		Object: constant.ChatCompletion(""),
		Choices: []openai.ChatCompletionChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: openai.ChatCompletionMessage{
					Role:    constant.Assistant(""),
					Content: content,
				},
			},
		},
		Usage: usage,
	}
}

func TestClient_GenerateContent_SimpleResponse(t *testing.T) {
	mockAPI := &mockChatCompletions{
		t: t,
		responses: []*openai.ChatCompletion{
			newChatCompletion("Hello there!", openai.CompletionUsage{}),
		},
	}

	rawClient, err := NewClient(&events.NoOpPublisher{}, WithChatClient(mockAPI))
	require.NoError(t, err)
	client := rawClient.(*Client)

	prompt := ai.Prompt{
		Name:        "greeting",
		Instruction: "You are a helpful assistant.",
		Text:        "Say hello.",
		ModelName:   string(shared.ChatModelGPT4oMini),
	}

	resp, err := client.GenerateContent(context.Background(), prompt)
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp)

	mockAPI.mu.Lock()
	defer mockAPI.mu.Unlock()
	require.Len(t, mockAPI.requests, 1)
	request := mockAPI.requests[0]
	assert.Equal(t, shared.ChatModelGPT4oMini, request.Model)
	require.Len(t, request.Messages, 2)
	require.NotNil(t, request.Messages[0].OfSystem)
	require.True(t, request.Messages[0].OfSystem.Content.OfString.Valid())
	assert.Equal(t, "You are a helpful assistant.", request.Messages[0].OfSystem.Content.OfString.Value)
	require.NotNil(t, request.Messages[1].OfUser)
	assert.Equal(t, "Say hello.", request.Messages[1].OfUser.Content.OfString.Value)
}

func TestClient_GenerateContent_RendersTemplates(t *testing.T) {
	mockAPI := &mockChatCompletions{
		t:         t,
		responses: []*openai.ChatCompletion{newChatCompletion("done", openai.CompletionUsage{})},
	}

	rawClient, err := NewClient(&events.NoOpPublisher{}, WithChatClient(mockAPI))
	require.NoError(t, err)
	client := rawClient.(*Client)

	prompt := ai.Prompt{
		Text:      "Answer this: {{.message}}",
		ModelName: "gpt-4o",
	}

	_, err = client.GenerateContent(context.Background(), prompt,
		ai.Attr{Key: "message", Value: "what time is it?"})
	require.NoError(t, err)

	mockAPI.mu.Lock()
	defer mockAPI.mu.Unlock()
	require.Len(t, mockAPI.requests, 1)
	assert.Equal(t, "Answer this: what time is it?", mockAPI.requests[0].Messages[0].OfUser.Content.OfString.Value)
}

func TestClient_GenerateContent_AppliesSamplingConfig(t *testing.T) {
	mockAPI := &mockChatCompletions{
		t:         t,
		responses: []*openai.ChatCompletion{newChatCompletion("ok", openai.CompletionUsage{})},
	}

	rawClient, err := NewClient(&events.NoOpPublisher{}, WithChatClient(mockAPI))
	require.NoError(t, err)
	client := rawClient.(*Client)

	prompt := ai.Prompt{
		Text:        "hello",
		ModelName:   "gpt-4o",
		MaxTokens:   256,
		Temperature: 0.7,
		TopP:        0.9,
	}

	_, err = client.GenerateContent(context.Background(), prompt)
	require.NoError(t, err)

	mockAPI.mu.Lock()
	defer mockAPI.mu.Unlock()
	request := mockAPI.requests[0]
	assert.Equal(t, int64(256), request.MaxCompletionTokens.Value)
	assert.InDelta(t, 0.7, request.Temperature.Value, 1e-6)
	assert.InDelta(t, 0.9, request.TopP.Value, 1e-6)
}

func TestClient_GenerateContent_ReasoningModelSkipsSampling(t *testing.T) {
	mockAPI := &mockChatCompletions{
		t:         t,
		responses: []*openai.ChatCompletion{newChatCompletion("ok", openai.CompletionUsage{})},
	}

	rawClient, err := NewClient(&events.NoOpPublisher{}, WithChatClient(mockAPI))
	require.NoError(t, err)
	client := rawClient.(*Client)

	prompt := ai.Prompt{
		Text:        "hello",
		ModelName:   "o3-mini",
		Temperature: 0.7,
		TopP:        0.9,
	}

	_, err = client.GenerateContent(context.Background(), prompt)
	require.NoError(t, err)

	mockAPI.mu.Lock()
	defer mockAPI.mu.Unlock()
	request := mockAPI.requests[0]
	assert.False(t, request.Temperature.Valid())
	assert.False(t, request.TopP.Valid())
}

func TestClient_GenerateContent_PublishesUsage(t *testing.T) {
	mockAPI := &mockChatCompletions{
		t: t,
		responses: []*openai.ChatCompletion{
			newChatCompletion("ok", openai.CompletionUsage{
				PromptTokens:     10,
				CompletionTokens: 5,
				TotalTokens:      15,
			}),
		},
	}

	bus := events.NewEventBus()
	defer bus.(*events.InMemoryBus).Shutdown()
	received := make(chan events.TokenCountEvent, 1)
	bus.Subscribe("tokens.counted", func(event interface{}) {
		if tc, ok := event.(events.TokenCountEvent); ok {
			received <- tc
		}
	})

	rawClient, err := NewClient(bus, WithChatClient(mockAPI))
	require.NoError(t, err)
	client := rawClient.(*Client)

	_, err = client.GenerateContent(context.Background(), ai.Prompt{Text: "hi", ModelName: "gpt-4o"})
	require.NoError(t, err)

	event := <-received
	assert.Equal(t, int32(10), event.InputTokens)
	assert.Equal(t, int32(5), event.OutputTokens)
	assert.Equal(t, int32(15), event.TotalTokens)
}

func TestClient_GenerateContent_APIError(t *testing.T) {
	mockAPI := &mockChatCompletions{t: t, err: errors.New("rate limited")}

	rawClient, err := NewClient(&events.NoOpPublisher{}, WithChatClient(mockAPI))
	require.NoError(t, err)
	client := rawClient.(*Client)

	_, err = client.GenerateContent(context.Background(), ai.Prompt{Text: "hi"})
	assert.ErrorContains(t, err, "openai chat completion")
}

func TestClient_GenerateContent_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	rawClient, err := NewClient(&events.NoOpPublisher{})
	require.NoError(t, err)

	_, err = rawClient.GenerateContent(context.Background(), ai.Prompt{Text: "hi"})
	assert.ErrorIs(t, err, errMissingAPIKey)
}

func TestClient_ResolveModelName_Defaults(t *testing.T) {
	t.Setenv("QUILL_MODEL", "")

	rawClient, err := NewClient(&events.NoOpPublisher{})
	require.NoError(t, err)
	client := rawClient.(*Client)

	assert.Equal(t, "gpt-4-turbo", client.resolveModelName("gpt-4-turbo"))
	assert.Equal(t, string(shared.ChatModelGPT4oMini), client.resolveModelName(""))
}

func TestClient_GetStatus(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	rawClient, err := NewClient(&events.NoOpPublisher{})
	require.NoError(t, err)

	status := rawClient.GetStatus()
	assert.Equal(t, "openai", status.Backend)
	assert.False(t, status.Connected)

	t.Setenv("OPENAI_API_KEY", "sk-test")
	status = rawClient.GetStatus()
	assert.True(t, status.Connected)
}
