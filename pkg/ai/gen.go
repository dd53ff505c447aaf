package ai

import "context"

// Gen is the provider-neutral generation surface. Implementations live in
// pkg/llm; middlewares in this package wrap any Gen transparently.
type Gen interface {
	GenerateContent(ctx context.Context, p Prompt, attrs ...Attr) (string, error)
	CountTokens(ctx context.Context, p Prompt, attrs ...Attr) (*TokenCount, error)
	GetStatus() *Status
}

// An Attr is a key-value pair substituted into prompt templates.
type Attr struct {
	Key   string
	Value string
}

// StringsToAttr converts alternating key/value strings into Attrs.
// A trailing key without a value is dropped.
func StringsToAttr(args []string) []Attr {
	attrs := make([]Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		attrs = append(attrs, Attr{Key: args[i], Value: args[i+1]})
	}
	return attrs
}

// MapToAttr converts a data map into Attrs
func MapToAttr(data map[string]string) []Attr {
	attrs := make([]Attr, 0, len(data))
	for k, v := range data {
		attrs = append(attrs, Attr{Key: k, Value: v})
	}
	return attrs
}

// AttrsToMap converts Attrs into the map form template engines consume
func AttrsToMap(attrs []Attr) map[string]string {
	data := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		data[attr.Key] = attr.Value
	}
	return data
}

// Prompt describes one request to a completion backend. Instruction and
// Text may contain Go template placeholders resolved against Attrs.
type Prompt struct {
	Name        string  `yaml:"name"`
	Instruction string  `yaml:"instruction"`
	Text        string  `yaml:"text"`
	ModelName   string  `yaml:"model_name"`
	MaxTokens   int32   `yaml:"max_tokens"`
	Temperature float32 `yaml:"temperature"`
	TopP        float32 `yaml:"top_p"`
}

// TokenCount reports token usage for a prompt or response
type TokenCount struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Status describes a backend's configuration state
type Status struct {
	Model     string
	Backend   string
	Connected bool
	Message   string
}
