package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
)

// ErrSchema is returned when a model response cannot be decoded into the
// role's output type or violates its constraints.
var ErrSchema = errors.New("response does not match schema")

// Options are shared by every role agent.
type Options struct {
	Logger *slog.Logger
	// MaxAttempts is the number of LLM calls made before giving up. Values
	// below 1 mean a single attempt.
	MaxAttempts int
	// CallOptions are appended to every request, e.g. llms.WithTemperature.
	CallOptions []llms.CallOption
}

type caller struct {
	name     string
	llm      llms.Model
	logger   *slog.Logger
	attempts int
	options  []llms.CallOption
}

func newCaller(name string, llm llms.Model, opts Options) caller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return caller{
		name:     name,
		llm:      llm,
		logger:   logger.With("agent", name),
		attempts: attempts,
		options:  opts.CallOptions,
	}
}

// generateWithRetry calls the model and hands the text to validator. The call
// is repeated, with linear backoff, until validator accepts it or the attempt
// budget is spent.
func (c caller) generateWithRetry(ctx context.Context, prompts []llms.MessageContent, jsonMode bool, validator func(string) error) (string, error) {
	options := c.options
	if jsonMode {
		options = append(append([]llms.CallOption(nil), options...), llms.WithJSONMode())
	}

	var lastErr error
	for i := 0; i < c.attempts; i++ {
		if i > 0 {
			c.logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(i)):
			}
		}

		resp, err := c.llm.GenerateContent(ctx, prompts, options...)
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			if ctx.Err() != nil {
				return "", lastErr
			}
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = err
			continue
		}
		return content, nil
	}

	if c.attempts == 1 {
		return "", lastErr
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", c.name, c.attempts, lastErr)
}

// generateJSON asks for a JSON object and decodes it into a fresh T on every
// attempt, then runs check on it. Decode and check failures wrap ErrSchema.
func generateJSON[T any](ctx context.Context, c caller, system, schema, input string, check func(*T) error) (T, error) {
	prompts := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system+"\n\n# Response Format: \n\n"+schema),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}

	var out T
	_, err := c.generateWithRetry(ctx, prompts, true, func(content string) error {
		var v T
		if err := json.Unmarshal([]byte(extractJSON(content)), &v); err != nil {
			return fmt.Errorf("%w: json parse error: %v", ErrSchema, err)
		}
		if check != nil {
			if err := check(&v); err != nil {
				return fmt.Errorf("%w: %v", ErrSchema, err)
			}
		}
		out = v
		return nil
	})
	return out, err
}

// generateText asks for free text and rejects blank answers.
func (c caller) generateText(ctx context.Context, system, input string) (string, error) {
	prompts := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}
	out, err := c.generateWithRetry(ctx, prompts, false, func(content string) error {
		if strings.TrimSpace(content) == "" {
			return errors.New("llm returned empty text")
		}
		return nil
	})
	return strings.TrimSpace(out), err
}

// extractJSON strips markdown code fences some models wrap around JSON output.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// Back off to a rune boundary.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func bullets(items []string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}
