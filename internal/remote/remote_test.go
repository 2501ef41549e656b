package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// fakeChromedriver speaks enough of the W3C protocol for the adapter.
type fakeChromedriver struct {
	mu        sync.Mutex
	next      int
	sessions  map[string]string // id -> current url
	creates   int
	deletes   int
	lastCaps  map[string]any
	elementTx map[string]string // xpath -> text
}

func newFakeChromedriver(t *testing.T) (*fakeChromedriver, string) {
	t.Helper()
	f := &fakeChromedriver{sessions: map[string]string{}, elementTx: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv.URL
}

func reply(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"value": v})
}

func (f *fakeChromedriver) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) == 1 && parts[0] == "session" && r.Method == http.MethodPost {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.lastCaps = body
		f.next++
		f.creates++
		id := "s" + string(rune('0'+f.next))
		f.sessions[id] = "data:,"
		reply(w, http.StatusOK, map[string]any{"sessionId": id, "capabilities": map[string]any{"browserName": "chrome"}})
		return
	}
	if len(parts) < 2 || parts[0] != "session" {
		reply(w, http.StatusNotFound, map[string]any{"error": "unknown command", "message": r.URL.Path})
		return
	}
	id := parts[1]
	url, ok := f.sessions[id]
	if !ok {
		reply(w, http.StatusNotFound, map[string]any{"error": "invalid session id", "message": "invalid session id"})
		return
	}
	rest := strings.Join(parts[2:], "/")
	switch {
	case rest == "" && r.Method == http.MethodDelete:
		delete(f.sessions, id)
		f.deletes++
		reply(w, http.StatusOK, nil)
	case rest == "url" && r.Method == http.MethodGet:
		reply(w, http.StatusOK, url)
	case rest == "url" && r.Method == http.MethodPost:
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.sessions[id] = body.URL
		reply(w, http.StatusOK, nil)
	case rest == "element" && r.Method == http.MethodPost:
		var body struct {
			Using string `json:"using"`
			Value string `json:"value"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := f.elementTx[body.Value]; !ok || body.Using != "xpath" {
			reply(w, http.StatusNotFound, map[string]any{"error": "no such element", "message": body.Value})
			return
		}
		reply(w, http.StatusOK, map[string]string{elementKey: body.Value})
	case strings.HasPrefix(rest, "element/") && strings.HasSuffix(rest, "/text"):
		xpath := strings.TrimSuffix(strings.TrimPrefix(rest, "element/"), "/text")
		reply(w, http.StatusOK, f.elementTx[xpath])
	default:
		reply(w, http.StatusNotFound, map[string]any{"error": "unknown command", "message": rest})
	}
}

func TestDialCreatesSession(t *testing.T) {
	f, url := newFakeChromedriver(t)
	c, err := NewDialer(Options{}).Dial(context.Background(), url, "")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if c.SessionID() == "" || f.creates != 1 {
		t.Fatalf("session=%q creates=%d", c.SessionID(), f.creates)
	}
	raw, _ := json.Marshal(f.lastCaps)
	for _, arg := range DefaultArgs {
		if !strings.Contains(string(raw), arg) {
			t.Fatalf("new-session request lacks %q: %s", arg, raw)
		}
	}
}

func TestDialSendsBrowserOptions(t *testing.T) {
	f, url := newFakeChromedriver(t)
	o := Options{Args: []string{"--lang=de"}, Headless: true, Binary: "/opt/chrome/chrome"}
	if _, err := NewDialer(o).Dial(context.Background(), url, ""); err != nil {
		t.Fatalf("Dial: %v", err)
	}
	raw, _ := json.Marshal(f.lastCaps)
	for _, want := range []string{"--lang=de", "--headless=new", "/opt/chrome/chrome"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("new-session request lacks %q: %s", want, raw)
		}
	}
	if strings.Contains(string(raw), "--start-maximized") {
		t.Fatalf("explicit args must replace the defaults: %s", raw)
	}
}

func TestDialWithHintAdoptsSession(t *testing.T) {
	f, url := newFakeChromedriver(t)
	d := NewDialer(Options{})
	first, err := d.Dial(context.Background(), url, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Get("https://example.test/"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	second, err := d.Dial(context.Background(), url, first.SessionID())
	if err != nil {
		t.Fatalf("Dial with hint: %v", err)
	}
	if second.SessionID() != first.SessionID() {
		t.Fatalf("adopted %q, want %q", second.SessionID(), first.SessionID())
	}
	if f.creates != 1 {
		t.Fatalf("creates = %d, hint must not open a browser", f.creates)
	}
	got, err := second.CurrentURL()
	if err != nil || got != "https://example.test/" {
		t.Fatalf("CurrentURL = %q, %v", got, err)
	}
}

func TestStaleHintFailsOnFirstUse(t *testing.T) {
	_, url := newFakeChromedriver(t)
	c, err := NewDialer(Options{}).Dial(context.Background(), url, "dead")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := c.CurrentURL(); err == nil {
		t.Fatalf("expected probe of a dead session to fail")
	}
}

func TestFindElementAndQuit(t *testing.T) {
	f, url := newFakeChromedriver(t)
	f.elementTx["title"] = "Dashboard"
	c, err := NewDialer(Options{Headless: true}).Dial(context.Background(), url, "")
	if err != nil {
		t.Fatal(err)
	}
	el, err := c.FindElement("title")
	if err != nil {
		t.Fatalf("FindElement: %v", err)
	}
	if text, err := el.Text(); err != nil || text != "Dashboard" {
		t.Fatalf("Text = %q, %v", text, err)
	}
	if _, err := c.FindElement("missing"); err == nil {
		t.Fatalf("expected no such element")
	}
	if err := c.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if f.deletes != 1 {
		t.Fatalf("deletes = %d", f.deletes)
	}
}

func TestDialHonorsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDialer(Options{}).Dial(ctx, "http://127.0.0.1:1", ""); err == nil {
		t.Fatalf("expected canceled dial to fail")
	}
}
