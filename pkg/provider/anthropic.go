package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/adrianliechti/bookman/pkg/catalog"
)

const anthropicMaxTokens = 4096

// Anthropic adapts the Anthropic Messages wire format: the system turn is
// a dedicated request field, assistant responses are multi-block (text and
// tool_use), and tool results travel as user-turn tool_result blocks.
type Anthropic struct {
	settings

	client anthropic.Client
	model  string
}

// NewAnthropic creates an adapter around an already-configured client.
func NewAnthropic(client anthropic.Client, model string, opts ...Option) *Anthropic {
	return &Anthropic{
		settings: newSettings(opts),

		client: client,
		model:  model,
	}
}

// Send implements Provider.
func (p *Anthropic) Send(ctx context.Context, history []Message, tools []catalog.Tool, exec Executor) ([]Message, error) {
	system, msgs := toAnthropicMessages(history)
	toolParams := toAnthropicTools(tools)

	var transcript []Message

	for round := 0; ; round++ {
		if p.maxRounds > 0 && round >= p.maxRounds {
			return transcript, fmt.Errorf("%w after %d rounds", ErrToolRounds, round)
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(p.model),
			MaxTokens: anthropicMaxTokens,
			Messages:  msgs,
		}

		if system != "" {
			params.System = []anthropic.TextBlockParam{{Text: system}}
		}

		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		msg, err := p.client.Messages.New(ctx, params)

		if err != nil {
			return transcript, err
		}

		var texts []string
		var uses []anthropic.ContentBlockUnion

		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				texts = append(texts, block.Text)
			case "tool_use":
				uses = append(uses, block)
			}
		}

		if msg.StopReason == anthropic.StopReasonToolUse || len(uses) > 0 {
			msgs = append(msgs, msg.ToParam())

			assistant := Message{Role: RoleAssistant, Content: strings.Join(texts, "\n")}

			for _, u := range uses {
				call := ToolCall{ID: u.ID, Name: u.Name}

				if args, err := decodeArguments(u.Input); err == nil {
					call.Arguments = args
				}

				assistant.ToolCalls = append(assistant.ToolCalls, call)
			}

			transcript = append(transcript, assistant)

			var results []anthropic.ContentBlockParamUnion

			for _, call := range assistant.ToolCalls {
				logToolCall(p.logger, call.Name, call.Arguments)

				var result any

				if call.Arguments == nil {
					result = map[string]any{"success": false, "error": "invalid tool arguments"}
				} else {
					result = exec(ctx, call.Name, call.Arguments)
				}

				content := marshalResult(result)
				logToolResult(p.logger, call.Name, content)

				results = append(results, anthropic.NewToolResultBlock(call.ID, content, false))
				transcript = append(transcript, Message{Role: RoleTool, ToolCallID: call.ID, Content: content})
			}

			msgs = append(msgs, anthropic.NewUserMessage(results...))

			continue
		}

		text := strings.Join(texts, "\n")

		p.logger.Info("final reply", "chars", len(text))
		transcript = append(transcript, Message{Role: RoleAssistant, Content: text})

		return transcript, nil
	}
}

// toAnthropicMessages splits out the system text and converts the rest.
// Consecutive tool messages are grouped into a single user turn of
// tool_result blocks, as the Messages API requires.
func toAnthropicMessages(history []Message) (string, []anthropic.MessageParam) {
	var system []string
	var msgs []anthropic.MessageParam

	i := 0

	for i < len(history) {
		m := history[i]

		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
			i++

		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion

			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}

			for _, tc := range m.ToolCalls {
				input, _ := json.Marshal(tc.Arguments)
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(input), tc.Name))
			}

			msgs = append(msgs, anthropic.NewAssistantMessage(blocks...))
			i++

		case RoleTool:
			var blocks []anthropic.ContentBlockParamUnion

			for i < len(history) && history[i].Role == RoleTool {
				blocks = append(blocks, anthropic.NewToolResultBlock(history[i].ToolCallID, history[i].Content, false))
				i++
			}

			msgs = append(msgs, anthropic.NewUserMessage(blocks...))

		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			i++
		}
	}

	return strings.TrimSpace(strings.Join(system, "\n")), msgs
}

func toAnthropicTools(tools []catalog.Tool) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, t := range tools {
		tp := anthropic.ToolUnionParamOfTool(
			anthropic.ToolInputSchemaParam{
				Properties: t.Parameters["properties"],
				Required:   requiredFields(t.Parameters),
			},
			t.Name,
		)

		tp.OfTool.Description = param.NewOpt(t.Description)
		params = append(params, tp)
	}

	return params
}

func requiredFields(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []any:
		fields := make([]string, 0, len(v))

		for _, f := range v {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}

		return fields
	default:
		return nil
	}
}
