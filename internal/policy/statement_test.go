package policy

import (
	"strings"
	"testing"
)

func TestClassifyReadOnlyRedirection(t *testing.T) {
	tests := []string{
		"SELECT * FROM orders",
		"select name from customers",
		"  \tSeLeCt 1",
	}
	for _, stmt := range tests {
		t.Run(stmt, func(t *testing.T) {
			d := Classify(stmt)
			if d.Allowed {
				t.Fatalf("Classify(%q) allowed a SELECT", stmt)
			}
			if !strings.Contains(d.Reason, "query_data") {
				t.Errorf("reason %q does not redirect to the read path", d.Reason)
			}
		})
	}
}

func TestClassifyDenyList(t *testing.T) {
	tokens := []string{"DROP", "TRUNCATE", "ALTER", "CREATE", "GRANT", "REVOKE"}
	for _, token := range tokens {
		t.Run(token, func(t *testing.T) {
			stmts := []string{
				token + " TABLE orders",
				strings.ToLower(token) + " table orders",
				"   " + token + "\t TABLE orders  ",
				"INSERT INTO audit VALUES (1); " + token + " TABLE orders",
			}
			for _, stmt := range stmts {
				d := Classify(stmt)
				if d.Allowed {
					t.Errorf("Classify(%q) allowed deny-listed token %s", stmt, token)
				}
				if !strings.Contains(d.Reason, token) {
					t.Errorf("reason %q does not name token %s", d.Reason, token)
				}
			}
		})
	}
}

func TestClassifyTokenExactNotSubstring(t *testing.T) {
	// Identifiers containing deny-listed words as substrings must pass.
	tests := []string{
		"UPDATE dropped_items SET qty = 0 WHERE id = 1",
		"INSERT INTO created_events (name) VALUES ('x')",
		"DELETE FROM granted_permissions WHERE id = 2",
		"UPDATE products SET alteration_notes = 'hem' WHERE id = 3",
	}
	for _, stmt := range tests {
		if d := Classify(stmt); !d.Allowed {
			t.Errorf("Classify(%q) rejected: %s", stmt, d.Reason)
		}
	}
}

func TestClassifyAllowsMutations(t *testing.T) {
	tests := []string{
		"INSERT INTO orders (customer_id) VALUES (17)",
		"UPDATE customers SET phone = '555' WHERE customer_id = 4",
		"DELETE FROM cart_items WHERE cart_id = 9",
	}
	for _, stmt := range tests {
		if d := Classify(stmt); !d.Allowed {
			t.Errorf("Classify(%q) rejected: %s", stmt, d.Reason)
		}
	}
}

func TestClassifyEmptyStatement(t *testing.T) {
	if d := Classify("   "); d.Allowed {
		t.Error("empty statement allowed")
	}
}
