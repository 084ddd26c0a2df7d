package prewarm

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// recordingServer captures each warm request's city and api key.
type recordingServer struct {
	mu    sync.Mutex
	seen  []string
	keys  []string
	fail  bool
	inner *httptest.Server
}

func newRecordingServer() *recordingServer {
	rs := &recordingServer{}
	rs.inner = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		rs.seen = append(rs.seen, r.URL.Query().Get("city"))
		rs.keys = append(rs.keys, r.Header.Get("x-api-key"))
		fail := rs.fail
		rs.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"source":"provider"}`))
	}))
	return rs
}

func (rs *recordingServer) cities() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.seen...)
}

func (rs *recordingServer) apiKeys() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.keys...)
}

// TestWarmer_Run verifies one sweep hits /weather once per configured city
// with the api key attached.
func TestWarmer_Run(t *testing.T) {
	rs := newRecordingServer()
	defer rs.inner.Close()

	w := New(rs.inner.URL, "dev-1234", []string{"jaipur", "mumbai", "delhi", "ahmedabad"}, time.Second, zap.NewNop())
	w.Run()

	seen := rs.cities()
	if len(seen) != 4 {
		t.Fatalf("requests = %d, want 4", len(seen))
	}
	want := map[string]bool{"jaipur": true, "mumbai": true, "delhi": true, "ahmedabad": true}
	for _, city := range seen {
		if !want[city] {
			t.Errorf("unexpected city %q in sweep", city)
		}
	}
	for _, key := range rs.apiKeys() {
		if key != "dev-1234" {
			t.Errorf("x-api-key = %q, want dev-1234", key)
		}
	}
}

// TestWarmer_RunSwallowsFailures verifies that error responses do not abort
// the sweep; every city is still attempted.
func TestWarmer_RunSwallowsFailures(t *testing.T) {
	rs := newRecordingServer()
	rs.fail = true
	defer rs.inner.Close()

	w := New(rs.inner.URL, "dev-1234", []string{"jaipur", "mumbai"}, time.Second, zap.NewNop())
	w.Run()

	if got := len(rs.cities()); got != 2 {
		t.Errorf("requests = %d, want 2 despite failures", got)
	}
}

// TestWarmer_RunUnreachableServer verifies that a dead endpoint does not
// panic or block the sweep.
func TestWarmer_RunUnreachableServer(t *testing.T) {
	w := New("http://127.0.0.1:1", "dev-1234", []string{"jaipur"}, 100*time.Millisecond, zap.NewNop())

	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return against an unreachable endpoint")
	}
}

// TestWarmer_StartRunsImmediately verifies Start performs a first sweep
// without waiting for the schedule.
func TestWarmer_StartRunsImmediately(t *testing.T) {
	rs := newRecordingServer()
	defer rs.inner.Close()

	w := New(rs.inner.URL, "dev-1234", []string{"jaipur"}, time.Second, zap.NewNop())
	if err := w.Start("*/15 * * * *"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	deadline := time.After(2 * time.Second)
	for len(rs.cities()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no warm request observed after Start()")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestWarmer_StartRejectsBadSchedule verifies an invalid cron expression is
// reported instead of silently never firing.
func TestWarmer_StartRejectsBadSchedule(t *testing.T) {
	w := New("http://localhost:0", "dev-1234", nil, time.Second, zap.NewNop())
	if err := w.Start("not a schedule"); err == nil {
		t.Error("Start() error = nil, want cron parse error")
	}
}
