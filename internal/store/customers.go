package store

import (
	"context"
	"fmt"
)

// CustomerBundle aggregates everything known about one customer: profile,
// cart, order history, payments, reviews, wishlist and recorded behavior.
// Sensitive credential columns (password, token) and raw ID-card data are
// never selected; only a derived verification flag is exposed.
type CustomerBundle struct {
	Customer  map[string]any   `json:"customer"`
	CartItems []map[string]any `json:"cart_items"`
	Orders    []map[string]any `json:"orders"`
	OrderItems []map[string]any `json:"order_items"`
	Payments  []map[string]any `json:"payments"`
	Reviews   []map[string]any `json:"reviews"`
	Wishlist  []map[string]any `json:"wishlist"`
	Behavior  []map[string]any `json:"user_behavior"`
}

// CustomerBundle loads the full bundle for one customer. A missing
// customer is not an error; the bundle's Customer field is nil and the
// remaining slices are empty.
func (s *Store) CustomerBundle(ctx context.Context, customerID string) (*CustomerBundle, error) {
	bundle := &CustomerBundle{}

	customers, err := s.QueryRows(ctx, `
		SELECT customer_id, name, email, phone, image, username,
		       created_at, updated_at, "roleId",
		       (id_card_front IS NOT NULL AND id_card_data IS NOT NULL) AS id_card_verified
		FROM "Customer"
		WHERE customer_id = $1
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("customer: %w", err)
	}
	if len(customers) > 0 {
		bundle.Customer = customers[0]
	}

	bundle.CartItems, err = s.QueryRows(ctx, `
		SELECT ci.cartitem_id, ci.quantity,
		       p.product_id, p.product_name, p.price,
		       s.size_id, s.name_size AS size_name
		FROM "CartItem" ci
		JOIN "Cart" c ON ci.cart_id = c.cart_id
		JOIN "Product" p ON ci.product_id = p.product_id
		JOIN "Size" s ON ci.size_id = s.size_id
		WHERE c.customer_id = $1
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("cart items: %w", err)
	}

	bundle.Orders, err = s.QueryRows(ctx, `
		SELECT order_id, customer_id, order_date, total_amount, order_state,
		       created_at, updated_at, address_id
		FROM "orders"
		WHERE customer_id = $1
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	bundle.OrderItems, err = s.QueryRows(ctx, `
		SELECT oi.*
		FROM "order_items" oi
		JOIN "orders" o ON oi.order_id = o.order_id
		WHERE o.customer_id = $1
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}

	bundle.Payments, err = s.QueryRows(ctx, `
		SELECT p.*
		FROM "payments" p
		JOIN "orders" o ON p.order_id = o.order_id
		WHERE o.customer_id = $1
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("payments: %w", err)
	}

	bundle.Reviews, err = s.QueryRows(ctx, `SELECT * FROM "Review" WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, fmt.Errorf("reviews: %w", err)
	}

	bundle.Wishlist, err = s.QueryRows(ctx, `SELECT * FROM "Wishlist" WHERE customer_id = $1`, customerID)
	if err != nil {
		return nil, fmt.Errorf("wishlist: %w", err)
	}

	bundle.Behavior, err = s.QueryRows(ctx, `SELECT * FROM "UserBehavior" WHERE "userId" = $1`, customerID)
	if err != nil {
		return nil, fmt.Errorf("user behavior: %w", err)
	}

	return bundle, nil
}
