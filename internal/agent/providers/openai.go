package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/stackmesh/shopagent/internal/agent"
	"github.com/stackmesh/shopagent/pkg/models"
)

const defaultOpenAIModel = openai.GPT4o

// OpenAI talks to the Chat Completions API.
type OpenAI struct {
	client *openai.Client
	model  string
}

func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(cfg.APIKey), model: model}, nil
}

func (p *OpenAI) Name() string        { return "openai" }
func (p *OpenAI) SupportsTools() bool { return true }

func (p *OpenAI) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    p.model,
		Messages: openaiMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = openaiTools(req.Tools)
	}

	var resp openai.ChatCompletionResponse
	err := retryWithBackoff(ctx, defaultMaxRetries, defaultRetryDelay, isTransient, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, chatReq)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: response carried no choices")
	}

	choice := resp.Choices[0].Message
	completion := &agent.Completion{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		var params map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &params); err != nil {
			params = map[string]any{}
		}
		completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
			ID:     tc.ID,
			Name:   tc.Function.Name,
			Params: params,
		})
	}
	return completion, nil
}

// openaiMessages maps the transcript onto chat messages. A tool-result
// turn becomes an assistant message carrying the tool call plus a tool
// message answering it.
func openaiMessages(system string, turns []models.Turn) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Content,
			})
		case models.RoleAssistant:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: turn.Content,
			})
		case models.RoleToolResult:
			if turn.ToolCall == nil {
				continue
			}
			args, err := json.Marshal(turn.ToolCall.Params)
			if err != nil {
				args = []byte("{}")
			}
			result = append(result,
				openai.ChatCompletionMessage{
					Role: openai.ChatMessageRoleAssistant,
					ToolCalls: []openai.ToolCall{{
						ID:   turn.ToolCall.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      turn.ToolCall.Name,
							Arguments: string(args),
						},
					}},
				},
				openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: turn.ToolCall.ID,
					Content:    turn.Content,
				},
			)
		}
	}
	return result
}

func openaiTools(descriptors []models.ToolDescriptor) []openai.Tool {
	result := make([]openai.Tool, len(descriptors))
	for i, d := range descriptors {
		var params map[string]any
		if err := json.Unmarshal(d.Schema, &params); err != nil {
			params = map[string]any{"type": "object"}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  params,
			},
		}
	}
	return result
}
