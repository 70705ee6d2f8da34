package llms

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// contextLimiter refuses requests whose estimated token count exceeds the
// provider's context window before any bytes leave the process.
type contextLimiter struct {
	model string
	limit int

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// contextWindowFor maps known model families to their context sizes. Unknown
// models get a conservative default.
func contextWindowFor(model string) int {
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"):
		return 128_000
	case strings.HasPrefix(model, "gpt-4"):
		return 8_192
	case strings.HasPrefix(model, "gpt-3.5"):
		return 16_385
	default:
		return 32_768
	}
}

func newContextLimiter(model string, override int) *contextLimiter {
	limit := override
	if limit <= 0 {
		limit = contextWindowFor(model)
	}
	return &contextLimiter{model: model, limit: limit}
}

// Check estimates the prompt size and returns a context_overflow error when
// it exceeds the window. Estimation uses tiktoken when an encoding exists
// for the model, otherwise a bytes/4 heuristic.
func (l *contextLimiter) Check(messages []Message, tools []ToolDefinition) error {
	estimated := l.estimate(messages, tools)
	if estimated > l.limit {
		return overflowErr(fmt.Sprintf(
			"estimated %d prompt tokens exceeds the %d token context window for %s; reduce the transaction description or upstream agent output",
			estimated, l.limit, l.model))
	}
	return nil
}

func (l *contextLimiter) estimate(messages []Message, tools []ToolDefinition) int {
	l.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(l.model)
		if err != nil {
			// cl100k_base covers the OpenAI-compatible family well enough
			// for a pre-flight bound.
			enc, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				enc = nil
			}
		}
		l.enc = enc
	})

	var text strings.Builder
	for _, m := range messages {
		text.WriteString(m.Content)
		text.WriteByte('\n')
	}
	for _, t := range tools {
		text.WriteString(t.Name)
		text.WriteString(t.Description)
	}

	// Per-message framing overhead.
	overhead := 4 * (len(messages) + len(tools))

	if l.enc == nil {
		return len(text.String())/4 + overhead
	}
	return len(l.enc.Encode(text.String(), nil, nil)) + overhead
}
