package drivr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/drivr/internal/config"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Port:         config.DefaultPort,
		LogLevel:     config.DefaultLogLevel,
		LogPath:      filepath.Join(dir, "service.log"),
		StateDir:     dir,
		LockTimeout:  time.Second,
		ReadyTimeout: time.Second,
		Retry:        config.RetryConfig{Attempts: 2},
	}
}

func TestStartWithoutExecutableIsConfigurationError(t *testing.T) {
	m, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() { _ = m.Close() }()

	_, err = m.Start(context.Background())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration failure, got %v", err)
	}
	if _, err := m.Connect(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Connect: expected configuration failure, got %v", err)
	}
}

func TestStatusAndStopWithNothingRecorded(t *testing.T) {
	m, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()

	st, err := m.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Recorded || st.Alive {
		t.Fatalf("unexpected status %+v", st)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSessionRecordRoundTrip(t *testing.T) {
	c := testConfig(t)
	m, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(c.StateDir, "session-id.txt"), []byte("abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	id, ok, err := m.Session(ctx)
	if err != nil || !ok || id != "abc" {
		t.Fatalf("Session = %q ok=%v err=%v", id, ok, err)
	}
	if err := m.ClearSession(ctx); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	if _, ok, _ := m.Session(ctx); ok {
		t.Fatalf("session still recorded")
	}
}

func TestHistoryDSNOpensSink(t *testing.T) {
	c := testConfig(t)
	db := filepath.Join(t.TempDir(), "history.db")
	c.History.DSN = "sqlite://" + db
	m, err := New(c)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.sink == nil {
		t.Fatalf("history sink not wired")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(db); err != nil {
		t.Fatalf("history database not created: %v", err)
	}

	c.History.DSN = "mongodb://nowhere"
	if _, err := New(c); err == nil {
		t.Fatalf("expected unsupported DSN to fail")
	}
}

func TestURLUsesConfiguredPort(t *testing.T) {
	c := testConfig(t)
	c.Port = 9999
	m, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()
	if got := m.URL(); got != "http://127.0.0.1:9999" {
		t.Fatalf("URL = %q", got)
	}
}

func TestNewHTTPServerStartClose(t *testing.T) {
	c := testConfig(t)
	c.Server.BasePath = "/api"
	m, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = m.Close() }()
	srv, err := m.NewHTTPServer("127.0.0.1:0", "")
	if err != nil {
		t.Fatalf("NewHTTPServer: %v", err)
	}
	_ = srv.Close()
}

func TestRegisterMetricsIdempotent(t *testing.T) {
	if err := RegisterMetricsDefault(); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterMetricsDefault(); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestRetryVariants(t *testing.T) {
	p := RemotePolicy(3, 0)
	calls := 0
	flaky := func() (string, error) {
		calls++
		if calls < 3 {
			return "", RemoteError("flaky", errors.New("stale element"))
		}
		return "done", nil
	}
	if got, err := Retry(p, flaky); err != nil || got != "done" || calls != 3 {
		t.Fatalf("Retry = %q err=%v calls=%d", got, err, calls)
	}

	never := func() (int, error) { return 0, RemoteError("never", errors.New("gone")) }
	if _, err := Retry(p, never); !errors.Is(err, ErrRemoteOperation) {
		t.Fatalf("Retry exhausted: %v", err)
	}
	if v, ok, err := RetrySwallow(p, never); err != nil || ok || v != 0 {
		t.Fatalf("RetrySwallow exhausted = %d ok=%v err=%v", v, ok, err)
	}

	calls = 0
	if got, err := RetryWrap(p, flaky)(); err != nil || got != "done" {
		t.Fatalf("RetryWrap = %q err=%v", got, err)
	}
	half := func(n int) (int, error) { return n / 2, nil }
	if got, err := RetryCall(p, half, 84); err != nil || got != 42 {
		t.Fatalf("RetryCall = %d err=%v", got, err)
	}

	fatal := errors.New("bad input")
	calls = 0
	broken := func() (int, error) {
		calls++
		return 0, fatal
	}
	if _, _, err := RetrySwallow(p, broken); !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("untagged failure: err=%v calls=%d", err, calls)
	}
}
