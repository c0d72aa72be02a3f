package bank_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite" // driver for "sqlite"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// one connection so every query sees the same in-memory database
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	if err := db.EnsureSchema(context.Background(), conn, db.DriverSQLite); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return conn
}

func TestSQLStore(t *testing.T) {
	for _, tc := range storeCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, bank.NewSQLStore(openTestDB(t), "sqlite"))
		})
	}
}

func ExampleFallbackTitle() {
	fmt.Println(bank.FallbackTitle("   "))
	fmt.Println(bank.FallbackTitle("Short text"))
	// Output:
	// Untitled Passage
	// Short text...
}
