package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stackmesh/shopagent/internal/agent"
	"github.com/stackmesh/shopagent/pkg/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// Anthropic talks to the Messages API through the official SDK.
type Anthropic struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(cfg Config) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}, nil
}

func (p *Anthropic) Name() string        { return "anthropic" }
func (p *Anthropic) SupportsTools() bool { return true }

func (p *Anthropic) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  anthropicMessages(req.Messages),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := anthropicTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", err)
		}
		params.Tools = tools
	}

	var msg *anthropic.Message
	err := retryWithBackoff(ctx, defaultMaxRetries, defaultRetryDelay, isTransient, func() error {
		var callErr error
		msg, callErr = p.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	completion := &agent.Completion{}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			completion.Text += variant.Text
		case anthropic.ToolUseBlock:
			var input map[string]any
			if err := json.Unmarshal(variant.Input, &input); err != nil {
				input = map[string]any{}
			}
			completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
				ID:     variant.ID,
				Name:   variant.Name,
				Params: input,
			})
		}
	}
	return completion, nil
}

// anthropicMessages maps the transcript onto content-block messages.
// A tool-result turn becomes an assistant tool_use block paired with a
// user tool_result block carrying the same call ID.
func anthropicMessages(turns []models.Turn) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(turn.Content)))
		case models.RoleAssistant:
			result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(turn.Content)))
		case models.RoleToolResult:
			if turn.ToolCall == nil {
				continue
			}
			isError := turn.ToolResult != nil && !turn.ToolResult.OK
			result = append(result,
				anthropic.NewAssistantMessage(anthropic.NewToolUseBlock(
					turn.ToolCall.ID, turn.ToolCall.Params, turn.ToolCall.Name)),
				anthropic.NewUserMessage(anthropic.NewToolResultBlock(
					turn.ToolCall.ID, turn.Content, isError)),
			)
		}
	}
	return result
}

func anthropicTools(descriptors []models.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(descriptors))
	for _, d := range descriptors {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(d.Schema, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", d.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, d.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", d.Name)
		}
		param.OfTool.Description = anthropic.String(d.Description)
		result = append(result, param)
	}
	return result, nil
}
