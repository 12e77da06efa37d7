package oracle

import (
	"fmt"
	"net/http"

	"github.com/segmentio/ksuid"

	"otto/internal/domain/ports"
	"otto/internal/domain/task"
	"otto/internal/shared/jsonx"
)

const anthropicVersion = "2023-06-01"

// anthropicCodec speaks the messages wire format: assistant turns are content
// block arrays mixing text and tool_use blocks, and action results return as
// user-role tool_result blocks.
type anthropicCodec struct{}

func (anthropicCodec) endpoint(baseURL string) string {
	return baseURL + "/messages"
}

func (anthropicCodec) headers(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type anthropicBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

func (anthropicCodec) encode(model string, oreq ports.OracleRequest) ([]byte, error) {
	var (
		system   string
		messages []anthropicMessage
	)
	for _, turn := range oreq.Turns {
		switch turn.Role {
		case task.RoleSystem:
			if turn.Seq == 0 {
				system = turn.Content
				continue
			}
			messages = append(messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: turn.Content}},
			})
		case task.RoleOracle:
			var blocks []anthropicBlock
			if turn.Content != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: turn.Content})
			}
			for _, action := range turn.Actions {
				input := action.Arguments
				if input == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    action.ID,
					Name:  action.Name,
					Input: input,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			messages = append(messages, anthropicMessage{Role: "assistant", Content: blocks})
		case task.RoleResult:
			callID := ""
			if len(turn.Actions) > 0 {
				callID = turn.Actions[0].ID
			}
			messages = append(messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "tool_result", ToolUseID: callID, Content: turn.Content}},
			})
		}
	}

	type toolSpec struct {
		Name        string                `json:"name"`
		Description string                `json:"description"`
		InputSchema ports.ParameterSchema `json:"input_schema"`
	}
	tools := make([]toolSpec, 0, len(oreq.Tools))
	for _, def := range oreq.Tools {
		tools = append(tools, toolSpec{Name: def.Name, Description: def.Description, InputSchema: def.Parameters})
	}

	payload := map[string]any{
		"model":      model,
		"max_tokens": 8192,
		"messages":   messages,
	}
	if system != "" {
		payload["system"] = system
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}
	return jsonx.Marshal(payload)
}

func (anthropicCodec) decode(body []byte) (*ports.OracleResponse, error) {
	var wire struct {
		Content []anthropicBlock `json:"content"`
	}
	if err := jsonx.Unmarshal(body, &wire); err != nil {
		return nil, err
	}
	if len(wire.Content) == 0 {
		return nil, fmt.Errorf("empty content in response")
	}

	resp := &ports.OracleResponse{}
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			if resp.Message != "" && block.Text != "" {
				resp.Message += "\n"
			}
			resp.Message += block.Text
		case "tool_use":
			id := block.ID
			if id == "" {
				id = ksuid.New().String()
			}
			args := block.Input
			if args == nil {
				args = map[string]any{}
			}
			resp.Actions = append(resp.Actions, ports.ToolCall{ID: id, Name: block.Name, Arguments: args})
		}
	}
	return resp, nil
}
