package device

import (
	"context"
	"errors"
	"testing"
)

type recordingLogger struct {
	noopLogger
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func TestRegistry_PassThrough(t *testing.T) {
	reg := NewRegistry(NewSQLiteRepository(setupTestDB(t)))
	ctx := context.Background()

	if _, err := reg.Upsert(ctx, "u", Fields{Topic: String("com.apple.mgmt.test")}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	dev, err := reg.Get(ctx, "u")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if Deref(dev.Topic) != "com.apple.mgmt.test" {
		t.Errorf("Topic = %q", Deref(dev.Topic))
	}

	devices, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("List() returned %d devices, want 1", len(devices))
	}

	counts, err := reg.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if counts[StatusEnrolled] != 1 {
		t.Errorf("enrolled count = %d, want 1", counts[StatusEnrolled])
	}
}

func TestRegistry_SetStatusLogging(t *testing.T) {
	reg := NewRegistry(NewSQLiteRepository(setupTestDB(t)))
	logger := &recordingLogger{}
	reg.SetLogger(logger)
	ctx := context.Background()

	if _, err := reg.Upsert(ctx, "u", Fields{}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := reg.SetStatus(ctx, "u", StatusUnenrolled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if len(logger.infos) != 1 {
		t.Errorf("info entries = %d, want 1", len(logger.infos))
	}

	err := reg.SetStatus(ctx, "missing", StatusUnenrolled)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetStatus(missing) error = %v, want ErrDeviceNotFound", err)
	}
	if len(logger.errors) != 0 {
		t.Errorf("not-found should not be logged as an error, got %v", logger.errors)
	}
}

func TestDeviceHelpers(t *testing.T) {
	d := &Device{UDID: "u", Status: StatusEnrolled}
	if !d.Enrolled() {
		t.Error("Enrolled() = false for enrolled device")
	}
	if d.HasPushCredentials() {
		t.Error("HasPushCredentials() = true with no token")
	}
	if d.Name() != "u" {
		t.Errorf("Name() = %q, want UDID fallback", d.Name())
	}

	d.PushToken = String("abcd")
	d.PushMagic = String("magic")
	d.DeviceName = String("Reception")
	if !d.HasPushCredentials() {
		t.Error("HasPushCredentials() = false with token and magic")
	}
	if d.Name() != "Reception" {
		t.Errorf("Name() = %q, want Reception", d.Name())
	}

	if String("") != nil {
		t.Error("String(\"\") should be nil")
	}
	if !(Fields{}).IsEmpty() {
		t.Error("zero Fields should be empty")
	}
	if (Fields{Topic: String("t")}).IsEmpty() {
		t.Error("Fields with Topic should not be empty")
	}
}
