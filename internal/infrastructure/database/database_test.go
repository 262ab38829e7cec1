package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates nested directory and file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "mdm.db")

		db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if err := db.HealthCheck(context.Background()); err != nil {
			t.Fatalf("HealthCheck() error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("single writer pool", func(t *testing.T) {
		db := openTestDB(t)
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("MaxOpenConnections = %d, want 1", got)
		}
	})

	t.Run("foreign keys enabled", func(t *testing.T) {
		db := openTestDB(t)
		var on int
		if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&on); err != nil {
			t.Fatalf("PRAGMA foreign_keys: %v", err)
		}
		if on != 1 {
			t.Errorf("foreign_keys = %d, want 1", on)
		}
	})
}

// TestClose verifies graceful shutdown.
func TestClose(t *testing.T) {
	db, err := Open(Config{Path: filepath.Join(t.TempDir(), "close.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	db.DB = nil
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v", err)
	}
}

func TestWithTx(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE tx_test (id INTEGER PRIMARY KEY, value TEXT)"); err != nil {
		t.Fatalf("CREATE TABLE error = %v", err)
	}

	t.Run("commits on nil error", func(t *testing.T) {
		err := WithTx(ctx, db.DB, func(tx *sql.Tx) error {
			_, execErr := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", "committed")
			return execErr
		})
		if err != nil {
			t.Fatalf("WithTx() error = %v", err)
		}
		if n := countRows(t, db, "committed"); n != 1 {
			t.Errorf("committed rows = %d, want 1", n)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		sentinel := errors.New("boom")
		err := WithTx(ctx, db.DB, func(tx *sql.Tx) error {
			if _, execErr := tx.ExecContext(ctx, "INSERT INTO tx_test (value) VALUES (?)", "rolled_back"); execErr != nil {
				return execErr
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("WithTx() error = %v, want %v", err, sentinel)
		}
		if n := countRows(t, db, "rolled_back"); n != 0 {
			t.Errorf("rolled back rows = %d, want 0", n)
		}
	})
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 3, 1, 12, 30, 45, 123456000, time.FixedZone("X", 3600))

	s := FormatTime(in)
	if s != "2026-03-01T11:30:45.123456Z" {
		t.Fatalf("FormatTime() = %q", s)
	}

	out, err := ParseTime(s)
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("ParseTime() = %v, want %v", out, in)
	}

	if _, err := ParseTime("2026-03-01T11:30:45Z"); err != nil {
		t.Errorf("ParseTime(RFC3339) error = %v", err)
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime(garbage) expected error")
	}
}

func TestFormatTimeSortsLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	earlier := FormatTime(base.Add(999 * time.Microsecond))
	later := FormatTime(base.Add(time.Second))
	if earlier >= later {
		t.Errorf("%q should sort before %q", earlier, later)
	}
}

func TestNullableTime(t *testing.T) {
	if ns := NullableTime(nil); ns.Valid {
		t.Error("NullableTime(nil) should be invalid")
	}

	now := time.Now()
	ns := NullableTime(&now)
	got, err := ParseNullableTime(ns)
	if err != nil {
		t.Fatalf("ParseNullableTime() error = %v", err)
	}
	if got == nil || got.Sub(now).Abs() > time.Microsecond {
		t.Errorf("ParseNullableTime() = %v, want %v", got, now)
	}

	got, err = ParseNullableTime(sql.NullString{})
	if err != nil || got != nil {
		t.Errorf("ParseNullableTime(null) = %v, %v; want nil, nil", got, err)
	}
}

func countRows(t *testing.T, db *DB, value string) int {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM tx_test WHERE value = ?", value).Scan(&count)
	if err != nil {
		t.Fatalf("SELECT error = %v", err)
	}
	return count
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}
