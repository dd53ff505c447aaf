package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mledur/quill/pkg/ai"
	"gopkg.in/yaml.v3"
)

//go:embed prompts/*
var promptsFS embed.FS

// Loader defines how prompts are loaded
type Loader interface {
	LoadPrompt(promptName string) (ai.Prompt, error)
}

// DefaultLoader loads prompts from the embedded file system
type DefaultLoader struct{}

// LoadPrompt loads a prompt from the embedded file system
func (l *DefaultLoader) LoadPrompt(promptName string) (ai.Prompt, error) {
	data, err := promptsFS.ReadFile("prompts/" + promptName + ".yaml")
	if err != nil {
		return ai.Prompt{}, fmt.Errorf("error reading embedded prompt file: %w", err)
	}

	var prompt ai.Prompt
	if err := yaml.Unmarshal(data, &prompt); err != nil {
		return ai.Prompt{}, fmt.Errorf("error unmarshaling prompt: %w", err)
	}

	return prompt, nil
}

// FileLoader is the file-based implementation of Loader
type FileLoader struct {
	PromptsPath string
}

// LoadPrompt loads a prompt from disk
func (l *FileLoader) LoadPrompt(promptName string) (ai.Prompt, error) {
	data, err := os.ReadFile(filepath.Join(l.PromptsPath, promptName+".yaml"))
	if err != nil {
		return ai.Prompt{}, fmt.Errorf("error reading prompt file: %w", err)
	}

	var prompt ai.Prompt
	if err := yaml.Unmarshal(data, &prompt); err != nil {
		return ai.Prompt{}, fmt.Errorf("error unmarshaling prompt: %w", err)
	}

	return prompt, nil
}
