package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"

	"github.com/adrianliechti/bookman/pkg/catalog"
)

// OpenAI adapts the OpenAI Chat Completions wire format. It also serves
// Azure OpenAI deployments and Ollama's OpenAI-compatible endpoint; only
// the client construction differs.
type OpenAI struct {
	settings

	client openai.Client
	model  string
}

// NewOpenAI creates an adapter around an already-configured client.
func NewOpenAI(client openai.Client, model string, opts ...Option) *OpenAI {
	return &OpenAI{
		settings: newSettings(opts),

		client: client,
		model:  model,
	}
}

// Send implements Provider.
func (p *OpenAI) Send(ctx context.Context, history []Message, tools []catalog.Tool, exec Executor) ([]Message, error) {
	msgs := toOpenAIMessages(history)
	toolParams := toOpenAITools(tools)

	var transcript []Message

	for round := 0; ; round++ {
		if p.maxRounds > 0 && round >= p.maxRounds {
			return transcript, fmt.Errorf("%w after %d rounds", ErrToolRounds, round)
		}

		params := openai.ChatCompletionNewParams{
			Model:    shared.ChatModel(p.model),
			Messages: msgs,
		}

		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		resp, err := p.client.Chat.Completions.New(ctx, params)

		if err != nil {
			return transcript, err
		}

		if len(resp.Choices) == 0 {
			return transcript, fmt.Errorf("openai: response contained no choices")
		}

		choice := resp.Choices[0]

		if choice.FinishReason == "tool_calls" || len(choice.Message.ToolCalls) > 0 {
			msgs = append(msgs, choice.Message.ToParam())
			assistant, calls := decodeOpenAICalls(choice.Message)
			transcript = append(transcript, assistant)

			for i, tc := range choice.Message.ToolCalls {
				call := calls[i]
				logToolCall(p.logger, call.Name, call.Arguments)

				var result any

				if call.Arguments == nil {
					result = map[string]any{"success": false, "error": "invalid tool arguments: " + tc.Function.Arguments}
				} else {
					result = exec(ctx, call.Name, call.Arguments)
				}

				content := marshalResult(result)
				logToolResult(p.logger, call.Name, content)

				msgs = append(msgs, openai.ToolMessage(content, tc.ID))
				transcript = append(transcript, Message{Role: RoleTool, ToolCallID: tc.ID, Content: content})
			}

			continue
		}

		text := choice.Message.Content

		p.logger.Info("final reply", "chars", len(text))
		transcript = append(transcript, Message{Role: RoleAssistant, Content: text})

		return transcript, nil
	}
}

// decodeOpenAICalls normalizes a tool-calling assistant message. Calls
// whose arguments fail to parse keep a nil Arguments map; the loop turns
// those into tool execution failures instead of dispatching them.
func decodeOpenAICalls(msg openai.ChatCompletionMessage) (Message, []ToolCall) {
	assistant := Message{Role: RoleAssistant, Content: msg.Content}
	calls := make([]ToolCall, 0, len(msg.ToolCalls))

	for _, tc := range msg.ToolCalls {
		call := ToolCall{ID: tc.ID, Name: tc.Function.Name}

		if args, err := decodeArguments([]byte(tc.Function.Arguments)); err == nil {
			call.Arguments = args
		}

		calls = append(calls, call)
		assistant.ToolCalls = append(assistant.ToolCalls, call)
	}

	return assistant, calls
}

func toOpenAIMessages(history []Message) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))

	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))

		case RoleAssistant:
			if len(m.ToolCalls) == 0 {
				msgs = append(msgs, openai.AssistantMessage(m.Content))
				continue
			}

			assistant := openai.ChatCompletionAssistantMessageParam{}

			if m.Content != "" {
				assistant.Content.OfString = openai.String(m.Content)
			}

			for _, tc := range m.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: marshalResult(tc.Arguments),
						},
					},
				})
			}

			msgs = append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case RoleTool:
			msgs = append(msgs, openai.ToolMessage(m.Content, m.ToolCallID))

		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	return msgs
}

func toOpenAITools(tools []catalog.Tool) []openai.ChatCompletionToolUnionParam {
	params := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))

	for _, t := range tools {
		params = append(params, openai.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: openai.String(t.Description),
			Parameters:  shared.FunctionParameters(t.Parameters),
		}))
	}

	return params
}
