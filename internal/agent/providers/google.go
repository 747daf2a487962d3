package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/stackmesh/shopagent/internal/agent"
	"github.com/stackmesh/shopagent/pkg/models"
)

const defaultGeminiModel = "gemini-2.0-flash"

// Google talks to the Gemini API through the Google Gen AI SDK.
type Google struct {
	client *genai.Client
	model  string
}

func NewGoogle(ctx context.Context, cfg Config) (*Google, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Google{client: client, model: model}, nil
}

func (p *Google) Name() string        { return "google" }
func (p *Google) SupportsTools() bool { return true }

func (p *Google) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.Completion, error) {
	contents := geminiContents(req.Messages)
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(min(req.MaxTokens, 1<<31-1))
	}
	if len(req.Tools) > 0 {
		config.Tools = geminiTools(req.Tools)
	}

	var resp *genai.GenerateContentResponse
	err := retryWithBackoff(ctx, defaultMaxRetries, defaultRetryDelay, isTransient, func() error {
		var callErr error
		resp, callErr = p.client.Models.GenerateContent(ctx, p.model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("google: %w", err)
	}

	completion := &agent.Completion{}
	var text strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.FunctionCall != nil {
				completion.ToolCalls = append(completion.ToolCalls, models.ToolCall{
					ID:     fmt.Sprintf("call_%s_%d", part.FunctionCall.Name, time.Now().UnixNano()),
					Name:   part.FunctionCall.Name,
					Params: part.FunctionCall.Args,
				})
			}
		}
	}
	completion.Text = text.String()
	return completion, nil
}

// geminiContents maps the transcript onto Gemini's content format.
// A tool-result turn expands into a model function-call part followed
// by a user function-response part so the API sees the full exchange.
func geminiContents(turns []models.Turn) []*genai.Content {
	var result []*genai.Content
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleUser:
			result = append(result, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: turn.Content}},
			})
		case models.RoleAssistant:
			result = append(result, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: turn.Content}},
			})
		case models.RoleToolResult:
			if turn.ToolCall == nil {
				continue
			}
			result = append(result,
				&genai.Content{
					Role: genai.RoleModel,
					Parts: []*genai.Part{{
						FunctionCall: &genai.FunctionCall{
							Name: turn.ToolCall.Name,
							Args: turn.ToolCall.Params,
						},
					}},
				},
				&genai.Content{
					Role: genai.RoleUser,
					Parts: []*genai.Part{{
						FunctionResponse: &genai.FunctionResponse{
							Name:     turn.ToolCall.Name,
							Response: toolResponseMap(turn),
						},
					}},
				},
			)
		}
	}
	return result
}

func toolResponseMap(turn models.Turn) map[string]any {
	if turn.ToolResult != nil {
		if !turn.ToolResult.OK {
			return map[string]any{"error": turn.ToolResult.Error}
		}
		if turn.ToolResult.Payload != nil {
			return turn.ToolResult.Payload
		}
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(turn.Content), &decoded); err != nil {
		return map[string]any{"result": turn.Content}
	}
	return decoded
}

func geminiTools(descriptors []models.ToolDescriptor) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(descriptors))
	for _, d := range descriptors {
		var schemaMap map[string]any
		if err := json.Unmarshal(d.Schema, &schemaMap); err != nil {
			continue
		}
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  geminiSchema(schemaMap),
		})
	}
	if len(declarations) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// geminiSchema converts a JSON Schema document to Gemini's typed
// schema, recursing through properties and items.
func geminiSchema(schemaMap map[string]any) *genai.Schema {
	if schemaMap == nil {
		return nil
	}
	schema := &genai.Schema{}
	if t, ok := schemaMap["type"].(string); ok {
		schema.Type = genai.Type(strings.ToUpper(t))
	}
	if desc, ok := schemaMap["description"].(string); ok {
		schema.Description = desc
	}
	if props, ok := schemaMap["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			if propMap, ok := prop.(map[string]any); ok {
				schema.Properties[name] = geminiSchema(propMap)
			}
		}
	}
	if required, ok := schemaMap["required"].([]any); ok {
		for _, r := range required {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	if items, ok := schemaMap["items"].(map[string]any); ok {
		schema.Items = geminiSchema(items)
	}
	return schema
}
