package openai

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

type tokenMessage struct {
	Role    string
	Content string
}

// countTokensForMessages estimates chat token usage the way OpenAI bills it:
// a fixed per-message overhead plus the encoded role and content, plus the
// three tokens priming the assistant reply.
func countTokensForMessages(messages []tokenMessage, model string) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}

	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoderFallback, fallbackErr := tiktoken.GetEncoding("cl100k_base")
		if fallbackErr != nil {
			return 0, fmt.Errorf("get encoding: %w", fallbackErr)
		}
		encoder = encoderFallback
	}

	tokensPerMessage := tokensPerMessageForModel(model)
	total := 0

	for _, msg := range messages {
		role := strings.TrimSpace(msg.Role)
		content := strings.TrimSpace(msg.Content)

		total += tokensPerMessage
		if role != "" {
			total += len(encoder.Encode(role, nil, nil))
		}
		if content != "" {
			total += len(encoder.Encode(content, nil, nil))
		}
	}

	total += 3 // Every reply is primed with <|start|>assistant
	return total, nil
}

func tokensPerMessageForModel(model string) int {
	if model == "gpt-3.5-turbo-0301" {
		return 4
	}
	return 3
}
