package storetools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stackmesh/shopagent/internal/store"
)

// allProductsTool lists the whole catalog. Its formatted rendering is
// what session creation preloads into the model's context.
type allProductsTool struct {
	store *store.Store
}

func (t *allProductsTool) Name() string { return "get_all_products" }

func (t *allProductsTool) Description() string {
	return "Retrieves all products from the database."
}

func (t *allProductsTool) Mutating() bool { return false }

func (t *allProductsTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {}
	}`)
}

func (t *allProductsTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	products, err := t.store.AllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("\n--- PRODUCTS ---\n")
	for _, p := range products {
		fmt.Fprintf(&sb, "Product ID: %v\n", p["product_id"])
		fmt.Fprintf(&sb, "Name: %v\n", p["product_name"])
		fmt.Fprintf(&sb, "Price: %v\n", p["price"])
		fmt.Fprintf(&sb, "Stock: %v\n", p["stock_quantity"])
		fmt.Fprintf(&sb, "Category ID: %v\n", p["category_id"])
		fmt.Fprintf(&sb, "Color: %v\n", p["color"])
		sb.WriteString("-------------------\n")
	}

	rows := make([]any, len(products))
	for i, p := range products {
		rows[i] = p
	}

	return map[string]any{
		"products":           rows,
		"formatted_products": sb.String(),
	}, nil
}
