package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return New(db, nil), mock
}

func TestExecUpdateCommits(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE customers SET phone`).
		WithArgs("555", "17").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	affected, err := s.ExecUpdate(context.Background(), "UPDATE customers SET phone = $1 WHERE customer_id = $2", "555", "17")
	if err != nil {
		t.Fatalf("ExecUpdate: %v", err)
	}
	if affected != 2 {
		t.Errorf("affected = %d, want 2", affected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestExecUpdateRollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET order_state`).
		WillReturnError(errors.New("violates check constraint"))
	mock.ExpectRollback()

	_, err := s.ExecUpdate(context.Background(), "UPDATE orders SET order_state = 'shipped'")
	if err == nil {
		t.Fatal("expected error")
	}
	// The rollback expectation above is the point: a failing statement
	// must never commit.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestQueryRowsNormalizesValues(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT product_id, product_name`).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "product_name"}).
			AddRow(int64(1), []byte("Jacket")).
			AddRow(int64(2), []byte("Boots")))

	rows, err := s.QueryRows(context.Background(), "SELECT product_id, product_name FROM products")
	if err != nil {
		t.Fatalf("QueryRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0]["product_name"] != "Jacket" {
		t.Errorf("byte slice not normalized to string: %#v", rows[0]["product_name"])
	}
}

func TestCustomerBundleMissingCustomer(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "Customer"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "name"}))
	mock.ExpectQuery(`FROM "CartItem"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"cartitem_id"}))
	mock.ExpectQuery(`FROM "orders"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"order_id"}))
	mock.ExpectQuery(`FROM "order_items"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"orderitem_id"}))
	mock.ExpectQuery(`FROM "payments"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"payment_id"}))
	mock.ExpectQuery(`FROM "Review"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"review_id"}))
	mock.ExpectQuery(`FROM "Wishlist"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"wishlist_id"}))
	mock.ExpectQuery(`FROM "UserBehavior"`).WithArgs("999").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	bundle, err := s.CustomerBundle(context.Background(), "999")
	if err != nil {
		t.Fatalf("CustomerBundle: %v", err)
	}
	if bundle.Customer != nil {
		t.Errorf("missing customer produced profile %v", bundle.Customer)
	}
	if len(bundle.Orders) != 0 {
		t.Errorf("unexpected orders: %v", bundle.Orders)
	}
}

func TestDescribeTableMarksPrimaryKeys(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`information_schema.columns`).WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("order_id", "integer", "NO", nil).
			AddRow("total_amount", "numeric", "YES", nil))
	mock.ExpectQuery(`PRIMARY KEY`).WithArgs("public", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("order_id"))

	cols, err := s.DescribeTable(context.Background(), "", "orders")
	if err != nil {
		t.Fatalf("DescribeTable: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("got %d columns", len(cols))
	}
	if !cols[0].IsPrimaryKey || cols[0].Name != "order_id" {
		t.Errorf("order_id not marked primary key: %+v", cols[0])
	}
	if cols[1].IsPrimaryKey {
		t.Errorf("total_amount wrongly marked primary key")
	}
}
