package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/adrianliechti/bookman/pkg/catalog"
)

type fakeAnthropic struct {
	t         *testing.T
	responses []string
	requests  []map[string]any
}

func (f *fakeAnthropic) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any

		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.requests = append(f.requests, body)

		require.NotEmpty(f.t, f.responses, "more requests than scripted responses")

		next := f.responses[0]
		f.responses = f.responses[1:]

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(next))
	})
}

func anthropicToolUseResponse(id, name, input string) string {
	return fmt.Sprintf(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [
			{"type": "text", "text": "Let me look that up."},
			{"type": "tool_use", "id": %q, "name": %q, "input": %s}
		],
		"stop_reason": "tool_use",
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 10}
	}`, id, name, input)
}

func anthropicTextResponse(text string) string {
	return fmt.Sprintf(`{
		"id": "msg_2",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": [{"type": "text", "text": %q}],
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"usage": {"input_tokens": 10, "output_tokens": 10}
	}`, text)
}

func newFakeAnthropic(t *testing.T, responses ...string) (*fakeAnthropic, *Anthropic) {
	fake := &fakeAnthropic{t: t, responses: responses}

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"))

	return fake, NewAnthropic(client, "claude-sonnet-4-20250514")
}

func TestAnthropicDirectAnswer(t *testing.T) {
	_, p := newFakeAnthropic(t, anthropicTextResponse("All invoices are paid."))

	history := []Message{
		{Role: RoleSystem, Content: "You are a bookkeeping assistant."},
		{Role: RoleUser, Content: "Any unpaid invoices?"},
	}

	transcript, err := p.Send(context.Background(), history, catalog.Tools, nil)
	require.NoError(t, err)

	require.Len(t, transcript, 1)
	require.Equal(t, "All invoices are paid.", FinalText(transcript))
}

func TestAnthropicSystemExtraction(t *testing.T) {
	fake, p := newFakeAnthropic(t, anthropicTextResponse("ok"))

	history := []Message{
		{Role: RoleSystem, Content: "You are a bookkeeping assistant."},
		{Role: RoleUser, Content: "hi"},
	}

	_, err := p.Send(context.Background(), history, nil, nil)
	require.NoError(t, err)

	req := fake.requests[0]

	system := req["system"].([]any)
	require.Equal(t, "You are a bookkeeping assistant.", system[0].(map[string]any)["text"])

	msgs := req["messages"].([]any)
	require.Len(t, msgs, 1)
	require.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestAnthropicToolRoundTrip(t *testing.T) {
	fake, p := newFakeAnthropic(t,
		anthropicToolUseResponse("toolu_1", "search_link", `{"doctype":"Customer","query":"ACME"}`),
		anthropicTextResponse("Found ACME Corp."),
	)

	var executed []string
	var gotArgs map[string]any

	exec := func(ctx context.Context, name string, args map[string]any) any {
		executed = append(executed, name)
		gotArgs = args
		return map[string]any{"success": true, "data": []map[string]any{{"name": "ACME Corp"}}}
	}

	transcript, err := p.Send(context.Background(), []Message{{Role: RoleUser, Content: "find acme"}}, catalog.Tools, exec)
	require.NoError(t, err)

	require.Equal(t, []string{"search_link"}, executed)
	require.Equal(t, map[string]any{"doctype": "Customer", "query": "ACME"}, gotArgs)

	require.Len(t, transcript, 3)
	require.Equal(t, RoleAssistant, transcript[0].Role)
	require.Equal(t, "Let me look that up.", transcript[0].Content)
	require.Equal(t, "toolu_1", transcript[0].ToolCalls[0].ID)
	require.Equal(t, RoleTool, transcript[1].Role)
	require.Equal(t, "toolu_1", transcript[1].ToolCallID)
	require.Equal(t, "Found ACME Corp.", FinalText(transcript))

	// Second request: assistant turn echoed back, then a user turn whose
	// blocks are the tool results.
	msgs := fake.requests[1]["messages"].([]any)
	require.Len(t, msgs, 3)

	last := msgs[2].(map[string]any)
	require.Equal(t, "user", last["role"])

	blocks := last["content"].([]any)
	result := blocks[0].(map[string]any)
	require.Equal(t, "tool_result", result["type"])
	require.Equal(t, "toolu_1", result["tool_use_id"])
}

func TestAnthropicGroupsToolResults(t *testing.T) {
	fake, p := newFakeAnthropic(t, anthropicTextResponse("ok"))

	history := []Message{
		{Role: RoleUser, Content: "question"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "toolu_1", Name: "get_companies", Arguments: map[string]any{}},
			{ID: "toolu_2", Name: "get_customers", Arguments: map[string]any{}},
		}},
		{Role: RoleTool, ToolCallID: "toolu_1", Content: `{"success":true}`},
		{Role: RoleTool, ToolCallID: "toolu_2", Content: `{"success":true}`},
	}

	_, err := p.Send(context.Background(), history, nil, nil)
	require.NoError(t, err)

	msgs := fake.requests[0]["messages"].([]any)

	// user, assistant, then ONE user turn holding both tool results.
	require.Len(t, msgs, 3)

	last := msgs[2].(map[string]any)
	require.Equal(t, "user", last["role"])

	blocks := last["content"].([]any)
	require.Len(t, blocks, 2)
	require.Equal(t, "toolu_1", blocks[0].(map[string]any)["tool_use_id"])
	require.Equal(t, "toolu_2", blocks[1].(map[string]any)["tool_use_id"])
}

func TestAnthropicToolDeclarations(t *testing.T) {
	fake, p := newFakeAnthropic(t, anthropicTextResponse("ok"))

	_, err := p.Send(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, catalog.Tools, nil)
	require.NoError(t, err)

	tools := fake.requests[0]["tools"].([]any)
	require.Len(t, tools, len(catalog.Tools))

	first := tools[0].(map[string]any)
	require.Equal(t, "list_documents", first["name"])

	schema := first["input_schema"].(map[string]any)
	require.Equal(t, "object", schema["type"])
	require.Contains(t, schema["properties"], "doctype")
}

func TestAnthropicMaxRounds(t *testing.T) {
	fake := &fakeAnthropic{t: t, responses: []string{
		anthropicToolUseResponse("toolu_1", "get_companies", `{}`),
		anthropicToolUseResponse("toolu_2", "get_companies", `{}`),
	}}

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := anthropic.NewClient(option.WithBaseURL(srv.URL), option.WithAPIKey("test"))
	p := NewAnthropic(client, "claude-sonnet-4-20250514", WithMaxRounds(1))

	exec := func(ctx context.Context, name string, args map[string]any) any {
		return map[string]any{"success": true}
	}

	_, err := p.Send(context.Background(), []Message{{Role: RoleUser, Content: "loop"}}, catalog.Tools, exec)
	require.ErrorIs(t, err, ErrToolRounds)
}
