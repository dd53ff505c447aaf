package cli

import (
	"fmt"
	"strings"

	"github.com/mledur/quill/pkg/ai"
	"github.com/mledur/quill/pkg/config"
	"github.com/mledur/quill/pkg/events"
	"github.com/mledur/quill/pkg/llm/anthropic"
	"github.com/mledur/quill/pkg/llm/openai"
)

// newGen builds the configured backend, wrapped with retry middleware.
func newGen(publisher events.Publisher) (ai.Gen, error) {
	configManager := config.NewManager()

	name := strings.ToLower(strings.TrimSpace(backend))
	if name == "" {
		name = strings.ToLower(configManager.GetStringWithDefault("QUILL_BACKEND", "openai"))
	}

	var gen ai.Gen
	var err error
	switch name {
	case "openai":
		gen, err = openai.NewClient(publisher)
	case "anthropic":
		gen, err = anthropic.NewClient(publisher)
	default:
		return nil, fmt.Errorf("unknown backend %q (expected openai or anthropic)", name)
	}
	if err != nil {
		return nil, err
	}

	retryConfig := ai.GetRetryConfigFromEnv(configManager)
	if retryConfig.Enabled {
		return ai.NewRetryMiddleware(gen, retryConfig), nil
	}
	return gen, nil
}
