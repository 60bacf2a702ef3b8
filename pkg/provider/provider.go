// Package provider implements the model-backend adapters. Each adapter
// owns the tool-calling loop for its wire format: it translates the
// normalized history and action catalog into the backend's native request
// shape, executes requested tools through the supplied executor, feeds the
// results back, and repeats until the model produces a final text answer.
//
// The loop lives in each adapter on purpose. The response shapes, content
// models, and stop signals differ enough between backends that a shared
// loop would have to re-derive every backend's semantics anyway.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"

	"github.com/adrianliechti/bookman/pkg/catalog"
	"github.com/adrianliechti/bookman/pkg/config"
	"github.com/adrianliechti/bookman/pkg/logging"
)

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a model-requested action invocation. ID is the opaque,
// provider-assigned identifier that correlates the eventual result.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Message is one turn in the normalized conversation format shared by all
// adapters. Assistant turns may carry ToolCalls; tool turns carry the
// ToolCallID they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Executor runs one requested action and returns a JSON-marshalable result.
// It must never fail at the language level; execution errors are encoded in
// the returned value so the model can read and recover from them.
type Executor func(ctx context.Context, name string, args map[string]any) any

// Provider is one model-backend integration.
//
// Send drives the tool-calling loop to completion and returns the
// transcript of normalized messages produced during this turn: assistant
// turns carrying tool calls, the correlated tool results in request order,
// and the final assistant text as the last message. Backend transport
// errors propagate to the caller.
type Provider interface {
	Send(ctx context.Context, history []Message, tools []catalog.Tool, exec Executor) ([]Message, error)
}

// ErrToolRounds reports that a configured tool-round cap was exhausted
// before the model produced a final answer.
var ErrToolRounds = errors.New("tool call rounds exhausted")

// FinalText extracts the terminal answer from a Send transcript.
func FinalText(transcript []Message) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == RoleAssistant && len(transcript[i].ToolCalls) == 0 {
			return transcript[i].Content
		}
	}

	return ""
}

type settings struct {
	maxRounds int
	logger    *slog.Logger
}

// Option configures an adapter.
type Option func(*settings)

// WithMaxRounds caps the number of request rounds per Send call. Zero (the
// default) leaves the loop unbounded; the model decides when to stop.
func WithMaxRounds(n int) Option {
	return func(s *settings) { s.maxRounds = n }
}

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

func newSettings(opts []Option) settings {
	s := settings{logger: logging.NewNop()}

	for _, opt := range opts {
		opt(&s)
	}

	return s
}

// New builds the adapter selected by cfg.AIProvider.
func New(cfg *config.Config, opts ...Option) (Provider, error) {
	opts = append([]Option{WithMaxRounds(cfg.MaxToolRounds)}, opts...)

	switch cfg.AIProvider {
	case "openai":
		client := openaisdk.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		return NewOpenAI(client, cfg.OpenAIModel, opts...), nil

	case "azure":
		clientOpts := []option.RequestOption{azure.WithEndpoint(cfg.AzureEndpoint, cfg.AzureAPIVersion)}

		if cfg.AzureAPIKey != "" {
			clientOpts = append(clientOpts, azure.WithAPIKey(cfg.AzureAPIKey))
		} else {
			var cred azcore.TokenCredential

			cred, err := azidentity.NewDefaultAzureCredential(nil)

			if err != nil {
				return nil, fmt.Errorf("azure credential: %w", err)
			}

			clientOpts = append(clientOpts, azure.WithTokenCredential(cred))
		}

		client := openaisdk.NewClient(clientOpts...)
		return NewOpenAI(client, cfg.OpenAIModel, opts...), nil

	case "anthropic":
		client := anthropicsdk.NewClient(anthropicopt.WithAPIKey(cfg.AnthropicAPIKey))
		return NewAnthropic(client, cfg.AnthropicModel, opts...), nil

	case "ollama":
		// Ollama speaks the OpenAI-compatible API; the key is required but unused.
		client := openaisdk.NewClient(
			option.WithBaseURL(cfg.OllamaURL+"/v1"),
			option.WithAPIKey("ollama"),
		)
		return NewOpenAI(client, cfg.OllamaModel, opts...), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}
}

// marshalResult encodes an executor result for insertion into the
// conversation as a tool-result turn.
func marshalResult(v any) string {
	raw, err := json.Marshal(v)

	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":%q}`, "unencodable tool result: "+err.Error())
	}

	return string(raw)
}

// decodeArguments loosely parses a provider's raw argument payload. A
// payload that is not a JSON object yields an error the adapter converts
// into a tool execution failure rather than a crash.
func decodeArguments(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var args map[string]any

	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

func logToolCall(logger *slog.Logger, name string, args map[string]any) {
	raw, _ := json.Marshal(args)
	logger.Info("tool call", "tool", name, "args", string(raw))
}

func logToolResult(logger *slog.Logger, name, content string) {
	preview := content

	if len(preview) > 200 {
		preview = preview[:200] + "…"
	}

	logger.Info("tool result", "tool", name, "result", preview)
}
