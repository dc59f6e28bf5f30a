package db

import "testing"

func TestStatementTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		statement string
		verb      string
		table     string
	}{
		{statement: "SELECT id FROM orders WHERE id = $1", verb: "SELECT", table: "orders"},
		{statement: "INSERT INTO fulfillment_history (order_id) VALUES ($1)", verb: "INSERT", table: "fulfillment_history"},
		{statement: "update orders SET status = $1", verb: "UPDATE", table: "orders"},
		{statement: "BEGIN", verb: "BEGIN"},
	}

	for _, tt := range tests {
		verb, table := statementTarget(compactSQL(tt.statement))
		if verb != tt.verb || table != tt.table {
			t.Fatalf("statementTarget(%q) = (%q, %q), want (%q, %q)", tt.statement, verb, table, tt.verb, tt.table)
		}
	}
}

func TestCompactSQL(t *testing.T) {
	t.Parallel()

	got := compactSQL("\n\t\tUPDATE orders\n\t\tSET status = $1\n")
	if got != "UPDATE orders SET status = $1" {
		t.Fatalf("compactSQL() = %q", got)
	}
	if compactSQL("   ") != "sql.query" {
		t.Fatal("expected placeholder for empty statement")
	}
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	if got := migrateURL("postgres://u:p@localhost:5432/shop?sslmode=disable"); got != "pgx5://u:p@localhost:5432/shop?sslmode=disable" {
		t.Fatalf("migrateURL() = %q", got)
	}
	if got := migrateURL("postgresql://localhost/shop"); got != "pgx5://localhost/shop" {
		t.Fatalf("migrateURL() = %q", got)
	}
}
