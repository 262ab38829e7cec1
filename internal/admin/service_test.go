package admin

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"howett.net/plist"

	"github.com/nerrad567/gray-logic-mdm/internal/audit"
	"github.com/nerrad567/gray-logic-mdm/internal/command"
	"github.com/nerrad567/gray-logic-mdm/internal/device"
	"github.com/nerrad567/gray-logic-mdm/internal/events"
	"github.com/nerrad567/gray-logic-mdm/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mdm/internal/mdm"
	"github.com/nerrad567/gray-logic-mdm/internal/push"
	_ "github.com/nerrad567/gray-logic-mdm/migrations"
)

const (
	enrolledUDID = "UDID-ENROLLED"
	noTopicUDID  = "UDID-NO-TOPIC"
	defaultTopic = "com.apple.mgmt.External.default"
	profileID    = "com.example.enrollment"
)

type fakeNotifier struct {
	mu      sync.Mutex
	targets []push.Target
	err     error
}

func (n *fakeNotifier) Send(_ context.Context, t push.Target) (push.Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, t)
	if n.err != nil {
		return push.Result{}, n.err
	}
	return push.Result{Success: true, Mock: true, Message: push.MockMessage}, nil
}

func (n *fakeNotifier) Mode() string { return "fake" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ofType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	svc      *Service
	devices  *device.Registry
	commands *command.Queue
	audit    *audit.SQLiteRepository
	notifier *fakeNotifier
	events   *recordingPublisher
	protocol *mdm.Service
}

func setupService(t *testing.T) *testEnv {
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
	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	env := &testEnv{
		devices:  device.NewRegistry(device.NewSQLiteRepository(db.DB)),
		commands: command.NewQueue(command.NewSQLiteRepository(db.DB)),
		audit:    audit.NewSQLiteRepository(db.DB),
		notifier: &fakeNotifier{},
		events:   &recordingPublisher{},
	}
	env.svc = NewService(env.devices, env.commands, env.notifier, Config{
		DefaultTopic:      defaultTopic,
		ProfileIdentifier: profileID,
	})
	env.svc.SetAuditLog(env.audit)
	env.svc.SetPublisher(env.events)
	env.protocol = mdm.NewService(env.devices, env.commands)

	if _, err := env.devices.Upsert(ctx, enrolledUDID, device.Fields{
		DeviceName: device.String("Test iPhone"),
		PushToken:  device.String("a1b2c3d4"),
		PushMagic:  device.String("MAGIC-1"),
		Topic:      device.String("com.apple.mgmt.External.device"),
	}); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
	if _, err := env.devices.Upsert(ctx, noTopicUDID, device.Fields{
		PushToken: device.String("e5f6"),
		PushMagic: device.String("MAGIC-2"),
	}); err != nil {
		t.Fatalf("seeding device: %v", err)
	}
	return env
}

func TestNotify(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.Notify(ctx, enrolledUDID, command.SendMessage{Message: "Hello"})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if !res.Success || res.CommandUUID == "" {
		t.Errorf("Result = %+v", res)
	}
	if res.Message != "Push notification command queued. Device will receive it on next check-in." {
		t.Errorf("Message = %q", res.Message)
	}
	if !res.Push.Success {
		t.Errorf("Push = %+v, want success", res.Push)
	}

	cmd, err := env.commands.Get(ctx, res.CommandUUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.Type != command.KindSendMessage || cmd.Status != command.StatusPending {
		t.Errorf("command = %s/%s, want SendMessage/pending", cmd.Type, cmd.Status)
	}

	if len(env.notifier.targets) != 1 {
		t.Fatalf("pushes = %d, want 1", len(env.notifier.targets))
	}
	target := env.notifier.targets[0]
	if target.PushToken != "a1b2c3d4" || target.PushMagic != "MAGIC-1" {
		t.Errorf("target = %+v", target)
	}
	if target.Topic != "com.apple.mgmt.External.device" {
		t.Errorf("Topic = %q, want the device topic", target.Topic)
	}

	entries, err := env.audit.List(ctx, audit.Filter{EntityID: enrolledUDID})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	if entries.Total != 1 || entries.Entries[0].Action != audit.ActionNotify {
		t.Fatalf("audit = %+v", entries)
	}
	if entries.Entries[0].Details["command_uuid"] != res.CommandUUID {
		t.Errorf("audit details = %v", entries.Entries[0].Details)
	}

	pushes := env.events.ofType(events.TypePushSent)
	if len(pushes) != 1 || pushes[0].CommandUUID != res.CommandUUID {
		t.Errorf("push events = %+v", pushes)
	}
}

func TestActions_DefaultTopic(t *testing.T) {
	env := setupService(t)

	if _, err := env.svc.QueryDeviceInfo(context.Background(), noTopicUDID); err != nil {
		t.Fatalf("QueryDeviceInfo() error = %v", err)
	}
	if got := env.notifier.targets[0].Topic; got != defaultTopic {
		t.Errorf("Topic = %q, want %q", got, defaultTopic)
	}
}

func TestActions_Preconditions(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	if err := env.devices.SetStatus(ctx, noTopicUDID, device.StatusUnenrolled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	tests := []struct {
		name    string
		run     func() (*Result, error)
		wantErr error
	}{
		{
			name:    "unknown device",
			run:     func() (*Result, error) { return env.svc.QueryDeviceInfo(ctx, "missing") },
			wantErr: device.ErrDeviceNotFound,
		},
		{
			name:    "notify unenrolled",
			run:     func() (*Result, error) { return env.svc.Notify(ctx, noTopicUDID, command.SendMessage{}) },
			wantErr: ErrDeviceNotEnrolled,
		},
		{
			name: "lost mode unenrolled",
			run: func() (*Result, error) {
				return env.svc.EnableLostMode(ctx, noTopicUDID, command.EnableLostMode{})
			},
			wantErr: ErrDeviceNotEnrolled,
		},
		{
			name:    "unenroll unenrolled",
			run:     func() (*Result, error) { return env.svc.Unenroll(ctx, noTopicUDID) },
			wantErr: ErrDeviceNotEnrolled,
		},
		{
			name:    "erase unenrolled",
			run:     func() (*Result, error) { return env.svc.Erase(ctx, noTopicUDID) },
			wantErr: ErrDeviceNotEnrolled,
		},
		{
			name:    "unknown kind",
			run:     func() (*Result, error) { return env.svc.Execute(ctx, enrolledUDID, "Restart", command.Params{}) },
			wantErr: command.ErrUnknownCommandType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.run()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("Result = %+v, want nil", res)
			}
		})
	}

	if len(env.notifier.targets) != 0 {
		t.Errorf("rejected actions sent %d pushes", len(env.notifier.targets))
	}
	for _, udid := range []string{enrolledUDID, noTopicUDID} {
		cmds, err := env.commands.ListForDevice(ctx, udid)
		if err != nil {
			t.Fatalf("ListForDevice() error = %v", err)
		}
		if len(cmds) != 0 {
			t.Errorf("%s has %d commands, want 0", udid, len(cmds))
		}
	}
}

func TestDisableLostMode_AllowedWhenUnenrolled(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	if err := env.devices.SetStatus(ctx, enrolledUDID, device.StatusUnenrolled); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	res, err := env.svc.DisableLostMode(ctx, enrolledUDID)
	if err != nil {
		t.Fatalf("DisableLostMode() error = %v", err)
	}
	if res.Message != "Disable lost mode command queued." {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestPushFailureKeepsCommand(t *testing.T) {
	env := setupService(t)
	env.notifier.err = errors.New("push: delivery failed: apns status 410: Unregistered")
	ctx := context.Background()

	res, err := env.svc.QueryDeviceInfo(ctx, enrolledUDID)
	if err != nil {
		t.Fatalf("QueryDeviceInfo() error = %v", err)
	}
	if !res.Success {
		t.Error("action should succeed when only the push fails")
	}
	if res.Push.Success || res.Push.Error == "" {
		t.Errorf("Push = %+v, want failure with error", res.Push)
	}

	cmd, err := env.commands.Get(ctx, res.CommandUUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cmd.Status != command.StatusPending {
		t.Errorf("Status = %q, want pending", cmd.Status)
	}

	entries, _ := env.audit.List(ctx, audit.Filter{})
	if entries.Entries[0].Details["push_success"] != false {
		t.Errorf("audit details = %v", entries.Entries[0].Details)
	}
}

func TestUnenroll(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.Unenroll(ctx, enrolledUDID)
	if err != nil {
		t.Fatalf("Unenroll() error = %v", err)
	}

	d, err := env.devices.Get(ctx, enrolledUDID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Status != device.StatusUnenrolled {
		t.Errorf("Status = %q, want unenrolled", d.Status)
	}

	cmd, err := env.commands.Get(ctx, res.CommandUUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	decoded, err := command.Decode([]byte(cmd.Payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.RequestType() != "RemoveProfile" || decoded.Field("Identifier") != profileID {
		t.Errorf("payload = %+v, want RemoveProfile of %s", decoded.Command, profileID)
	}

	if got := env.events.ofType(events.TypeDeviceUnenrolled); len(got) != 1 {
		t.Errorf("unenrolled events = %d, want 1", len(got))
	}
}

func TestExecute(t *testing.T) {
	tests := []struct {
		kind        string
		params      command.Params
		wantType    command.Kind
		wantMessage string
	}{
		{"DeviceLock", command.Params{PIN: "123456"}, command.KindDeviceLock, "Device lock command queued."},
		{"EraseDevice", command.Params{}, command.KindEraseDevice, "Erase command queued."},
		{"EnableLostMode", command.Params{Message: "Lost"}, command.KindEnableLostMode, "Lost mode command queued."},
		{"DeviceInformation", command.Params{}, command.KindDeviceInformation, "Device information query queued."},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			env := setupService(t)
			ctx := context.Background()

			res, err := env.svc.Execute(ctx, enrolledUDID, tt.kind, tt.params)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if res.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", res.Message, tt.wantMessage)
			}
			cmd, err := env.commands.Get(ctx, res.CommandUUID)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if cmd.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", cmd.Type, tt.wantType)
			}
		})
	}
}

// Lost Mode from the admin action through delivery and acknowledgement.
func TestEnableLostMode_RoundTrip(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	res, err := env.svc.EnableLostMode(ctx, enrolledUDID, command.EnableLostMode{
		Message:     "Lost",
		PhoneNumber: "+15550100",
	})
	if err != nil {
		t.Fatalf("EnableLostMode() error = %v", err)
	}

	poll := func(m map[string]any) *command.Command {
		t.Helper()
		body, err := plist.Marshal(m, plist.XMLFormat)
		if err != nil {
			t.Fatalf("encoding poll: %v", err)
		}
		cmd, err := env.protocol.HandlePoll(ctx, body)
		if err != nil {
			t.Fatalf("HandlePoll() error = %v", err)
		}
		return cmd
	}

	delivered := poll(map[string]any{"UDID": enrolledUDID, "Status": "Idle"})
	if delivered == nil || delivered.UUID != res.CommandUUID {
		t.Fatalf("delivered %+v, want %s", delivered, res.CommandUUID)
	}
	decoded, err := command.Decode([]byte(delivered.Payload))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.Field("Message") != "Lost" ||
		decoded.Field("PhoneNumber") != "+15550100" ||
		decoded.Field("Footnote") != command.DefaultLostModeFootnote {
		t.Errorf("payload = %+v", decoded.Command)
	}

	if next := poll(map[string]any{
		"UDID":        enrolledUDID,
		"Status":      "Acknowledged",
		"CommandUUID": res.CommandUUID,
	}); next != nil {
		t.Errorf("unexpected second command %+v", next)
	}

	final, err := env.commands.Get(ctx, res.CommandUUID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if final.Status != command.StatusAcknowledged || final.Result == nil {
		t.Errorf("final = %s result %v, want acknowledged with result", final.Status, final.Result)
	}
}
