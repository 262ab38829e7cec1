package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/gray-logic-mdm/internal/events"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RecordHTTPRequest("GET", "/api/v1/health", 200, 5*time.Millisecond)

	if got := testutil.ToFloat64(a.httpRequests.WithLabelValues("GET", "/api/v1/health", "200")); got != 1 {
		t.Errorf("a requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.httpRequests.WithLabelValues("GET", "/api/v1/health", "200")); got != 0 {
		t.Errorf("b requests = %v, want 0", got)
	}
}

func TestPublish(t *testing.T) {
	m := New()
	ctx := context.Background()

	m.Publish(ctx, events.Event{Type: events.TypeDeviceCheckin, MessageType: "Authenticate"})
	m.Publish(ctx, events.Event{Type: events.TypeDeviceCheckin, MessageType: "Authenticate"})
	m.Publish(ctx, events.Event{Type: events.TypeCommandSent, CommandType: "DeviceLock", Status: "sent", Latency: time.Second})
	m.Publish(ctx, events.PushEvent("u", "c", "mock", true))
	m.Publish(ctx, events.PushEvent("u", "c", "apns", false))

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"checkins", testutil.ToFloat64(m.checkins.WithLabelValues("Authenticate")), 2},
		{"commands", testutil.ToFloat64(m.commands.WithLabelValues("DeviceLock", "sent")), 1},
		{"push ok", testutil.ToFloat64(m.pushes.WithLabelValues("mock", "true")), 1},
		{"push failed", testutil.ToFloat64(m.pushes.WithLabelValues("apns", "false")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if n := testutil.CollectAndCount(m.commandLatency); n != 1 {
		t.Errorf("latency series = %d, want 1", n)
	}
}

func TestGauges(t *testing.T) {
	m := New()

	m.SetDeviceCounts(map[string]int{"enrolled": 3, "unenrolled": 1})
	m.SetQueueDepth(map[string]int{"pending": 2, "NotNow": 1})
	m.SetQueueDepth(map[string]int{"pending": 1})

	if got := testutil.ToFloat64(m.devices.WithLabelValues("enrolled")); got != 3 {
		t.Errorf("enrolled = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.queueDepth.WithLabelValues("pending")); got != 1 {
		t.Errorf("pending = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.queueDepth); n != 1 {
		t.Errorf("queue depth series = %d, want 1 after reset", n)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("PUT", "/mdm/server", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "graylogic_mdm_http_requests_total") {
		t.Error("exposition missing http request counter")
	}
}
