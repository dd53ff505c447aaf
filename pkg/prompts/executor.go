package prompts

import (
	"context"
	"fmt"
	"sync"

	"github.com/mledur/quill/pkg/ai"
)

// Executor generates a response for a named prompt with the given attributes
type Executor interface {
	Execute(ctx context.Context, promptName string, promptData ...ai.Attr) (string, error)
	CacheSize() int // For testing purposes
}

// DefaultExecutor resolves prompts through a Loader and runs them through a Gen
type DefaultExecutor struct {
	Gen         ai.Gen
	Loader      Loader
	promptCache map[string]ai.Prompt
	cacheMutex  sync.RWMutex
}

// NewExecutor creates a new DefaultExecutor with embedded prompts
func NewExecutor(gen ai.Gen) Executor {
	return &DefaultExecutor{
		Gen:         gen,
		Loader:      &DefaultLoader{},
		promptCache: make(map[string]ai.Prompt),
	}
}

// NewFileBasedExecutor creates a new DefaultExecutor with a file-based loader
func NewFileBasedExecutor(gen ai.Gen, promptsPath string) Executor {
	return &DefaultExecutor{
		Gen:         gen,
		Loader:      &FileLoader{PromptsPath: promptsPath},
		promptCache: make(map[string]ai.Prompt),
	}
}

// NewWithLoader creates a DefaultExecutor with a custom loader (useful for testing)
func NewWithLoader(gen ai.Gen, loader Loader) Executor {
	return &DefaultExecutor{
		Gen:         gen,
		Loader:      loader,
		promptCache: make(map[string]ai.Prompt),
	}
}

// CacheSize returns the number of prompts in the cache (for testing purposes)
func (s *DefaultExecutor) CacheSize() int {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()
	return len(s.promptCache)
}

// getPrompt loads a prompt from cache or uses the loader if not cached
func (s *DefaultExecutor) getPrompt(promptName string) (ai.Prompt, error) {
	s.cacheMutex.RLock()
	prompt, exists := s.promptCache[promptName]
	s.cacheMutex.RUnlock()

	if exists {
		return prompt, nil
	}

	newPrompt, err := s.Loader.LoadPrompt(promptName)
	if err != nil {
		return ai.Prompt{}, err
	}

	s.cacheMutex.Lock()
	s.promptCache[promptName] = newPrompt
	s.cacheMutex.Unlock()

	return newPrompt, nil
}

// Execute generates a response for the named prompt
func (s *DefaultExecutor) Execute(ctx context.Context, promptName string, promptData ...ai.Attr) (string, error) {
	prompt, err := s.getPrompt(promptName)
	if err != nil {
		return "", err
	}

	result, err := s.Gen.GenerateContent(ctx, prompt, promptData...)
	if err != nil {
		return "", fmt.Errorf("error generating content: %w", err)
	}

	return result, nil
}
