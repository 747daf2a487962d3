package store

import (
	"context"
	"fmt"
)

// AllProducts returns every product row with its catalog details.
func (s *Store) AllProducts(ctx context.Context) ([]map[string]any, error) {
	products, err := s.QueryRows(ctx, `
		SELECT product_id, product_name, description, price, stock_quantity,
		       category_id, brand_id, created_at, updated_at,
		       season_id, rating_id, color
		FROM "Product"
	`)
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	return products, nil
}

// Column describes one column of a table, including whether it is part
// of the primary key.
type Column struct {
	Name         string `json:"column_name"`
	DataType     string `json:"data_type"`
	IsNullable   string `json:"is_nullable"`
	Default      any    `json:"column_default"`
	IsPrimaryKey bool   `json:"is_primary_key"`
}

// DescribeTable returns column metadata for schema.table from the
// information schema. An unknown table yields an empty slice.
func (s *Store) DescribeTable(ctx context.Context, schema, table string) ([]Column, error) {
	if schema == "" {
		schema = "public"
	}

	rows, err := s.QueryRows(ctx, `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	pkRows, err := s.QueryRows(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2
	`, schema, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys: %w", err)
	}

	pk := make(map[string]bool, len(pkRows))
	for _, row := range pkRows {
		if name, ok := row["column_name"].(string); ok {
			pk[name] = true
		}
	}

	out := make([]Column, 0, len(rows))
	for _, row := range rows {
		col := Column{Default: row["column_default"]}
		col.Name, _ = row["column_name"].(string)
		col.DataType, _ = row["data_type"].(string)
		col.IsNullable, _ = row["is_nullable"].(string)
		col.IsPrimaryKey = pk[col.Name]
		out = append(out, col)
	}
	return out, nil
}
