package device

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-mdm/migrations"
)

// setupTestDB opens a migrated SQLite database in a temp directory.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.DB
}

// fixedClock returns a clock that advances one second per call.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func TestUpsert_CreatesEnrolledDevice(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	dev, err := repo.Upsert(ctx, "UDID-1", Fields{
		SerialNumber: String("C02XYZ"),
		DeviceName:   String("Front Desk iPad"),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if dev.UDID != "UDID-1" {
		t.Errorf("UDID = %q, want UDID-1", dev.UDID)
	}
	if dev.Status != StatusEnrolled {
		t.Errorf("Status = %q, want %q", dev.Status, StatusEnrolled)
	}
	if Deref(dev.SerialNumber) != "C02XYZ" {
		t.Errorf("SerialNumber = %q, want C02XYZ", Deref(dev.SerialNumber))
	}
	if dev.PushToken != nil {
		t.Errorf("PushToken = %q, want nil", *dev.PushToken)
	}
	if dev.EnrolledAt.IsZero() {
		t.Error("EnrolledAt not set")
	}
	if dev.LastSeen == nil {
		t.Error("LastSeen not set")
	}
}

func TestUpsert_MergeLaw(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, "u", Fields{PushToken: String("A")}); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	dev, err := repo.Upsert(ctx, "u", Fields{DeviceName: String("B")})
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	if Deref(dev.PushToken) != "A" {
		t.Errorf("PushToken = %q, want A", Deref(dev.PushToken))
	}
	if Deref(dev.DeviceName) != "B" {
		t.Errorf("DeviceName = %q, want B", Deref(dev.DeviceName))
	}
}

func TestUpsert_OverwritesSuppliedFieldsOnly(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, "u", Fields{OSVersion: String("17.1"), Model: String("iPad13,1")}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	dev, err := repo.Upsert(ctx, "u", Fields{OSVersion: String("17.2")})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if Deref(dev.OSVersion) != "17.2" {
		t.Errorf("OSVersion = %q, want 17.2", Deref(dev.OSVersion))
	}
	if Deref(dev.Model) != "iPad13,1" {
		t.Errorf("Model = %q, want iPad13,1", Deref(dev.Model))
	}
}

func TestUpsert_EmptyFieldsRefreshesLastSeen(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	repo.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "u", Fields{DeviceName: String("Kiosk")})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second, err := repo.Upsert(ctx, "u", Fields{})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if !second.LastSeen.After(*first.LastSeen) {
		t.Errorf("LastSeen not refreshed: %v then %v", first.LastSeen, second.LastSeen)
	}
	if !second.EnrolledAt.Equal(first.EnrolledAt) {
		t.Errorf("EnrolledAt changed: %v then %v", first.EnrolledAt, second.EnrolledAt)
	}
	if Deref(second.DeviceName) != "Kiosk" {
		t.Errorf("DeviceName = %q, want Kiosk", Deref(second.DeviceName))
	}
}

func TestUpsert_ReEnrolment(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, "u", Fields{SerialNumber: String("S1")}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.SetStatus(ctx, "u", StatusUnenrolled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if _, err := repo.Upsert(ctx, "u", Fields{SerialNumber: String("S1")}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("List() returned %d devices, want 1", len(devices))
	}
	if devices[0].Status != StatusEnrolled {
		t.Errorf("Status = %q, want %q", devices[0].Status, StatusEnrolled)
	}
}

func TestUpsert_EmptyUDID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.Upsert(context.Background(), "", Fields{})
	if !errors.Is(err, ErrInvalidUDID) {
		t.Errorf("Upsert(\"\") error = %v, want ErrInvalidUDID", err)
	}
}

func TestUpsert_ConcurrentDisjointFields(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := repo.Upsert(ctx, "u", Fields{PushToken: String("tok")})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := repo.Upsert(ctx, "u", Fields{SerialNumber: String("ser")})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}

	dev, err := repo.GetByUDID(ctx, "u")
	if err != nil {
		t.Fatalf("GetByUDID() error = %v", err)
	}
	if Deref(dev.PushToken) != "tok" || Deref(dev.SerialNumber) != "ser" {
		t.Errorf("lost update: PushToken=%q SerialNumber=%q", Deref(dev.PushToken), Deref(dev.SerialNumber))
	}
}

func TestSetStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.Upsert(ctx, "u", Fields{}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	t.Run("known device", func(t *testing.T) {
		if err := repo.SetStatus(ctx, "u", StatusUnenrolled); err != nil {
			t.Fatalf("SetStatus() error = %v", err)
		}
		dev, err := repo.GetByUDID(ctx, "u")
		if err != nil {
			t.Fatalf("GetByUDID() error = %v", err)
		}
		if dev.Status != StatusUnenrolled {
			t.Errorf("Status = %q, want %q", dev.Status, StatusUnenrolled)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		err := repo.SetStatus(ctx, "missing", StatusUnenrolled)
		if !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("SetStatus() error = %v, want ErrDeviceNotFound", err)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		err := repo.SetStatus(ctx, "u", Status("lost"))
		if !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("SetStatus() error = %v, want ErrInvalidStatus", err)
		}
	})
}

func TestGetByUDID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByUDID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByUDID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestList_NewestEnrolmentFirst(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	repo.now = fixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for _, udid := range []string{"first", "second", "third"} {
		if _, err := repo.Upsert(ctx, udid, Fields{}); err != nil {
			t.Fatalf("Upsert(%s) error = %v", udid, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"third", "second", "first"}
	if len(devices) != len(want) {
		t.Fatalf("List() returned %d devices, want %d", len(devices), len(want))
	}
	for i, udid := range want {
		if devices[i].UDID != udid {
			t.Errorf("devices[%d] = %q, want %q", i, devices[i].UDID, udid)
		}
	}
}

func TestCountByStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	for _, udid := range []string{"a", "b", "c"} {
		if _, err := repo.Upsert(ctx, udid, Fields{}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if err := repo.SetStatus(ctx, "b", StatusUnenrolled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	counts, err := repo.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus() error = %v", err)
	}
	if counts[StatusEnrolled] != 2 || counts[StatusUnenrolled] != 1 {
		t.Errorf("counts = %v, want enrolled=2 unenrolled=1", counts)
	}
}
