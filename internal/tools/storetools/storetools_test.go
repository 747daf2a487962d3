package storetools

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stackmesh/shopagent/internal/store"
	"github.com/stackmesh/shopagent/internal/tools"
)

func newMockTools(t *testing.T) ([]tools.Tool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return All(store.New(db, nil)), mock
}

func toolByName(t *testing.T, list []tools.Tool, name string) tools.Tool {
	t.Helper()
	for _, tool := range list {
		if tool.Name() == name {
			return tool
		}
	}
	t.Fatalf("tool %s not in set", name)
	return nil
}

func TestAllRegistersCleanly(t *testing.T) {
	list, _ := newMockTools(t)
	reg, err := tools.NewRegistry(list...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	want := []string{"describe_table", "execute_update", "get_all_products", "get_customer_info", "query_data"}
	got := reg.Names()
	if len(got) != len(want) {
		t.Fatalf("names = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestQueryDataRejectsWrites(t *testing.T) {
	list, _ := newMockTools(t)
	tool := toolByName(t, list, "query_data")

	_, err := tool.Execute(context.Background(), map[string]any{
		"query": "DELETE FROM orders",
	})
	if err == nil || !strings.Contains(err.Error(), "SELECT") {
		t.Errorf("non-SELECT accepted by read path: %v", err)
	}
}

func TestExecuteUpdatePrimaryStatement(t *testing.T) {
	list, _ := newMockTools(t)
	tool := toolByName(t, list, "execute_update")

	carrier, ok := tool.(interface {
		PrimaryStatement(map[string]any) (string, bool)
	})
	if !ok {
		t.Fatal("execute_update does not expose its primary statement")
	}
	stmt, ok := carrier.PrimaryStatement(map[string]any{"query": "UPDATE x SET y = 1"})
	if !ok || stmt != "UPDATE x SET y = 1" {
		t.Errorf("PrimaryStatement = %q, %v", stmt, ok)
	}
	if _, ok := carrier.PrimaryStatement(map[string]any{}); ok {
		t.Error("missing query reported a statement")
	}
}

func TestExecuteUpdateRunsInTransaction(t *testing.T) {
	list, mock := newMockTools(t)
	tool := toolByName(t, list, "execute_update")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "Wishlist"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	payload, err := tool.Execute(context.Background(), map[string]any{
		"query": `INSERT INTO "Wishlist" (customer_id, product_id) VALUES ($1, $2)`,
		"params": []any{"17", "3"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if payload["rows_affected"] != int64(1) {
		t.Errorf("rows_affected = %v", payload["rows_affected"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCustomerInfoRendering(t *testing.T) {
	list, mock := newMockTools(t)
	tool := toolByName(t, list, "get_customer_info")

	mock.ExpectQuery(`FROM "Customer"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "name", "email", "id_card_verified"}).
			AddRow("17", "An Tran", "an@example.com", true))
	mock.ExpectQuery(`FROM "CartItem"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"cartitem_id", "quantity", "product_id", "product_name", "price", "size_id", "size_name"}).
			AddRow(1, 2, 5, "Jacket", 120.0, 2, "M"))
	mock.ExpectQuery(`FROM "orders"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "customer_id", "order_date", "total_amount", "order_state"}).
			AddRow(9, "17", "2026-01-03", 240.0, "delivered"))
	mock.ExpectQuery(`FROM "order_items"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"orderitem_id"}))
	mock.ExpectQuery(`FROM "payments"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"payment_id"}))
	mock.ExpectQuery(`FROM "Review"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"review_id"}))
	mock.ExpectQuery(`FROM "Wishlist"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"wishlist_id"}))
	mock.ExpectQuery(`FROM "UserBehavior"`).WithArgs("17").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	payload, err := tool.Execute(context.Background(), map[string]any{"customer_id": "17"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	text, _ := payload["customer_info"].(string)
	for _, want := range []string{"--- CUSTOMER ---", "An Tran", "ID card verified: yes", "Jacket", "delivered"} {
		if !strings.Contains(text, want) {
			t.Errorf("customer_info missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "password") || strings.Contains(text, "token") {
		t.Error("sensitive fields leaked into rendering")
	}
}

func TestCustomerInfoNumericID(t *testing.T) {
	list, mock := newMockTools(t)
	tool := toolByName(t, list, "get_customer_info")

	// JSON numbers decode as float64; the tool must stringify them.
	mock.ExpectQuery(`FROM "Customer"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}))
	mock.ExpectQuery(`FROM "CartItem"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"cartitem_id"}))
	mock.ExpectQuery(`FROM "orders"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))
	mock.ExpectQuery(`FROM "order_items"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"orderitem_id"}))
	mock.ExpectQuery(`FROM "payments"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"payment_id"}))
	mock.ExpectQuery(`FROM "Review"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"review_id"}))
	mock.ExpectQuery(`FROM "Wishlist"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"wishlist_id"}))
	mock.ExpectQuery(`FROM "UserBehavior"`).WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := tool.Execute(context.Background(), map[string]any{"customer_id": float64(42)}); err != nil {
		t.Fatalf("Execute with numeric id: %v", err)
	}
}
