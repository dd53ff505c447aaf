package prompts

import (
	"context"
	"errors"
	"testing"

	"github.com/mledur/quill/pkg/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGen captures the prompt and attrs passed to it
type recordingGen struct {
	lastPrompt ai.Prompt
	lastAttrs  []ai.Attr
	response   string
	err        error
}

func (g *recordingGen) GenerateContent(ctx context.Context, p ai.Prompt, attrs ...ai.Attr) (string, error) {
	g.lastPrompt = p
	g.lastAttrs = attrs
	return g.response, g.err
}

func (g *recordingGen) CountTokens(ctx context.Context, p ai.Prompt, attrs ...ai.Attr) (*ai.TokenCount, error) {
	return &ai.TokenCount{TotalTokens: 1}, nil
}

func (g *recordingGen) GetStatus() *ai.Status {
	return &ai.Status{Backend: "recording", Connected: true}
}

// countingLoader tracks how many times each prompt is loaded
type countingLoader struct {
	loads  int
	prompt ai.Prompt
	err    error
}

func (l *countingLoader) LoadPrompt(promptName string) (ai.Prompt, error) {
	l.loads++
	return l.prompt, l.err
}

func TestExecute_PassesPromptAndAttrs(t *testing.T) {
	gen := &recordingGen{response: "answer"}
	loader := &countingLoader{prompt: ai.Prompt{Name: "conversation", Text: "{{.message}}"}}
	executor := NewWithLoader(gen, loader)

	result, err := executor.Execute(context.Background(), "conversation",
		ai.Attr{Key: "message", Value: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "answer", result)
	assert.Equal(t, "conversation", gen.lastPrompt.Name)
	assert.Equal(t, []ai.Attr{{Key: "message", Value: "hello"}}, gen.lastAttrs)
}

func TestExecute_CachesLoadedPrompts(t *testing.T) {
	gen := &recordingGen{response: "ok"}
	loader := &countingLoader{prompt: ai.Prompt{Name: "conversation"}}
	executor := NewWithLoader(gen, loader)

	for i := 0; i < 3; i++ {
		_, err := executor.Execute(context.Background(), "conversation")
		require.NoError(t, err)
	}

	assert.Equal(t, 1, loader.loads)
	assert.Equal(t, 1, executor.CacheSize())
}

func TestExecute_LoaderErrorSurfaces(t *testing.T) {
	executor := NewWithLoader(&recordingGen{}, &countingLoader{err: errors.New("no such prompt")})

	_, err := executor.Execute(context.Background(), "missing")
	assert.ErrorContains(t, err, "no such prompt")
	assert.Equal(t, 0, executor.CacheSize())
}

func TestExecute_GenErrorIsWrapped(t *testing.T) {
	gen := &recordingGen{err: errors.New("backend down")}
	executor := NewWithLoader(gen, &countingLoader{prompt: ai.Prompt{Name: "conversation"}})

	_, err := executor.Execute(context.Background(), "conversation")
	assert.ErrorContains(t, err, "error generating content")
}
