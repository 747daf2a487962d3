package storetools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stackmesh/shopagent/internal/store"
)

// customerInfoTool retrieves the comprehensive customer bundle and
// renders it as a report the model can work from directly.
type customerInfoTool struct {
	store *store.Store
}

func (t *customerInfoTool) Name() string { return "get_customer_info" }

func (t *customerInfoTool) Description() string {
	return "Retrieves comprehensive information about a customer including profile, orders, cart, and behavior data."
}

func (t *customerInfoTool) Mutating() bool { return false }

func (t *customerInfoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"customer_id": {"type": "string", "description": "ID of the customer to retrieve information for"}
		},
		"required": ["customer_id"]
	}`)
}

func (t *customerInfoTool) Execute(ctx context.Context, params map[string]any) (map[string]any, error) {
	customerID := stringParam(params, "customer_id")
	if customerID == "" {
		return nil, errors.New("missing customer_id parameter")
	}

	bundle, err := t.store.CustomerBundle(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return map[string]any{
		"customer_info": renderCustomerBundle(bundle),
	}, nil
}

func renderCustomerBundle(b *store.CustomerBundle) string {
	var sb strings.Builder

	sb.WriteString("\n--- CUSTOMER ---\n")
	if b.Customer != nil {
		for _, key := range []string{"customer_id", "name", "email", "phone", "username", "created_at", "updated_at"} {
			if v, ok := b.Customer[key]; ok && v != nil {
				fmt.Fprintf(&sb, "%s: %v\n", key, v)
			}
		}
		verified := "no"
		if v, ok := b.Customer["id_card_verified"].(bool); ok && v {
			verified = "yes"
		}
		fmt.Fprintf(&sb, "ID card verified: %s\n", verified)
	} else {
		sb.WriteString("No data.\n")
	}

	writeSection(&sb, "CART_ITEMS", b.CartItems, func(row map[string]any) string {
		return fmt.Sprintf("- Product: %v (ID: %v), Price: %v, Quantity: %v, Size: %v",
			row["product_name"], row["product_id"], row["price"], row["quantity"], row["size_name"])
	})

	writeSection(&sb, "ORDERS", b.Orders, func(row map[string]any) string {
		return fmt.Sprintf("- Order ID: %v, Date: %v, Total: %v, State: %v",
			row["order_id"], row["order_date"], row["total_amount"], row["order_state"])
	})

	writeSection(&sb, "ORDER_ITEMS", b.OrderItems, func(row map[string]any) string {
		return fmt.Sprintf("- OrderItem ID: %v, Order ID: %v, Product ID: %v, Quantity: %v, Price: %v",
			row["orderitem_id"], row["order_id"], row["product_id"], row["quantity"], row["price"])
	})

	writeSection(&sb, "PAYMENTS", b.Payments, rowAsLine)
	writeSection(&sb, "USER_BEHAVIOR", b.Behavior, func(row map[string]any) string {
		return fmt.Sprintf("- ProductID: %v, Action: %v, Time: %v",
			row["product_id"], row["action"], row["timestamp"])
	})
	writeSection(&sb, "REVIEWS", b.Reviews, rowAsLine)
	writeSection(&sb, "WISHLIST", b.Wishlist, rowAsLine)

	return sb.String()
}

func writeSection(sb *strings.Builder, title string, rows []map[string]any, line func(map[string]any) string) {
	fmt.Fprintf(sb, "\n--- %s ---\n", title)
	if len(rows) == 0 {
		sb.WriteString("No data.\n")
		return
	}
	for _, row := range rows {
		sb.WriteString(line(row))
		sb.WriteString("\n")
	}
}

func rowAsLine(row map[string]any) string {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Sprintf("- %v", row)
	}
	return "- " + string(data)
}
