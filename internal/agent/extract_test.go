package agent

import (
	"encoding/json"
	"testing"

	"github.com/stackmesh/shopagent/pkg/models"
)

func catalogForExtraction() []models.ToolDescriptor {
	return []models.ToolDescriptor{
		{
			Name: "get_customer_info",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {"customer_id": {"type": "string"}},
				"required": ["customer_id"]
			}`),
		},
		{
			Name:   "get_all_products",
			Schema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name: "execute_update",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {"query": {"type": "string"}},
				"required": ["query"]
			}`),
			Mutating: true,
		},
	}
}

func TestExtract(t *testing.T) {
	e := NewExtractor(catalogForExtraction())

	tests := []struct {
		name     string
		text     string
		wantTool string
		wantID   string
	}{
		{
			name:     "canonical phrasing",
			text:     "I'll use get_customer_info for customer ID 42",
			wantTool: "get_customer_info",
			wantID:   "42",
		},
		{
			name:     "colon form",
			text:     "Let me call get_customer_info. Customer ID: 7",
			wantTool: "get_customer_info",
			wantID:   "7",
		},
		{
			name:     "labeled id beats earlier bare number",
			text:     "Using get_customer_info to check order 3 for customer id 42",
			wantTool: "get_customer_info",
			wantID:   "42",
		},
		{
			name:     "bare number last resort",
			text:     "get_customer_info should work here, try 1234",
			wantTool: "get_customer_info",
			wantID:   "1234",
		},
		{
			name: "no tool mentioned",
			text: "The customer with id 42 seems happy.",
		},
		{
			name: "tool mentioned but no identifier anywhere",
			text: "I would need get_customer_info but have no identifier.",
		},
		{
			name: "non-identifier tool is not eligible",
			text: "I'll use execute_update on record 9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := e.Extract(tt.text)
			if tt.wantTool == "" {
				if call != nil {
					t.Fatalf("Extract = %+v, want nil", call)
				}
				return
			}
			if call == nil {
				t.Fatal("Extract = nil")
			}
			if call.Name != tt.wantTool {
				t.Errorf("tool = %s, want %s", call.Name, tt.wantTool)
			}
			if got := call.Params["customer_id"]; got != tt.wantID {
				t.Errorf("customer_id = %v, want %s", got, tt.wantID)
			}
		})
	}
}

func TestExtractCaseInsensitiveMention(t *testing.T) {
	e := NewExtractor(catalogForExtraction())
	call := e.Extract("GET_CUSTOMER_INFO, id: 5")
	if call == nil || call.Name != "get_customer_info" || call.Params["customer_id"] != "5" {
		t.Errorf("Extract = %+v", call)
	}
}
