package oracle

import (
	"fmt"
	"net/http"

	"github.com/kaptinlin/jsonrepair"
	"github.com/segmentio/ksuid"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/shared/jsonx"
)

// openAICodec speaks the chat-completions wire format: tool calls ride on an
// assistant message as a tool_calls array with JSON-string arguments, and
// action results go back as role "tool" messages keyed by tool_call_id.
type openAICodec struct{}

func (openAICodec) endpoint(baseURL string) string {
	return baseURL + "/chat/completions"
}

func (openAICodec) headers(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (openAICodec) encode(model string, oreq ports.OracleRequest) ([]byte, error) {
	messages := make([]openAIMessage, 0, len(oreq.Turns))
	for _, turn := range oreq.Turns {
		switch turn.Role {
		case task.RoleSystem:
			role := "user"
			if turn.Seq == 0 {
				role = "system"
			}
			messages = append(messages, openAIMessage{Role: role, Content: turn.Content})
		case task.RoleOracle:
			msg := openAIMessage{Role: "assistant", Content: turn.Content}
			for _, action := range turn.Actions {
				args, err := jsonx.Marshal(action.Arguments)
				if err != nil {
					return nil, err
				}
				msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
					ID:       action.ID,
					Type:     "function",
					Function: openAIFunction{Name: action.Name, Arguments: string(args)},
				})
			}
			messages = append(messages, msg)
		case task.RoleResult:
			callID := ""
			if len(turn.Actions) > 0 {
				callID = turn.Actions[0].ID
			}
			messages = append(messages, openAIMessage{Role: "tool", Content: turn.Content, ToolCallID: callID})
		}
	}

	type toolSpec struct {
		Type     string               `json:"type"`
		Function ports.ToolDefinition `json:"function"`
	}
	tools := make([]toolSpec, 0, len(oreq.Tools))
	for _, def := range oreq.Tools {
		tools = append(tools, toolSpec{Type: "function", Function: def})
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}
	return jsonx.Marshal(payload)
}

func (openAICodec) decode(body []byte) (*ports.OracleResponse, error) {
	var wire struct {
		Choices []struct {
			Message struct {
				Content   string           `json:"content"`
				ToolCalls []openAIToolCall `json:"tool_calls"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := jsonx.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	msg := wire.Choices[0].Message
	resp := &ports.OracleResponse{Message: msg.Content}
	for _, call := range msg.ToolCalls {
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %s has malformed arguments: %w", call.Function.Name, err)
		}
		id := call.ID
		if id == "" {
			id = ksuid.New().String()
		}
		resp.Actions = append(resp.Actions, ports.ToolCall{ID: id, Name: call.Function.Name, Arguments: args})
	}
	return resp, nil
}

// decodeArguments parses a JSON-string arguments payload. Models emit
// slightly broken JSON often enough (trailing commas, single quotes,
// unquoted keys) that a repair pass runs before the call is rejected.
func decodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	err := jsonx.Unmarshal([]byte(raw), &args)
	if err == nil {
		return args, nil
	}
	repaired, repairErr := jsonrepair.JSONRepair(raw)
	if repairErr != nil {
		return nil, err
	}
	args = map[string]any{} // the failed parse may have partially filled it
	if jsonx.Unmarshal([]byte(repaired), &args) != nil {
		return nil, err
	}
	return args, nil
}
