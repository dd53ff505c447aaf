package tokens

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackEncoding = "cl100k_base"

// Tiktoken is an Estimator backed by a real BPE tokenizer. It is slower and
// heavier than the heuristic but close to what OpenAI-family backends bill.
type Tiktoken struct {
	encoder *tiktoken.Tiktoken
}

// NewTiktoken creates a tokenizer-backed estimator for the given model name.
// Unknown models fall back to the cl100k_base encoding.
func NewTiktoken(model string) (*Tiktoken, error) {
	encoder, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoder, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("get encoding: %w", err)
		}
	}
	return &Tiktoken{encoder: encoder}, nil
}

// Estimate returns the exact token count under the selected encoding.
func (t *Tiktoken) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return len(t.encoder.Encode(text, nil, nil))
}
