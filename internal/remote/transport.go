package remote

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
)

// reuseTransport answers the new-session request itself while a hint is set, so the
// client attaches to an existing session instead of opening a browser. Every other
// request goes to the driver.
type reuseTransport struct {
	base http.RoundTripper

	mu   sync.Mutex
	hint string
}

func (t *reuseTransport) set(hint string) {
	t.mu.Lock()
	t.hint = hint
	t.mu.Unlock()
}

func (t *reuseTransport) current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hint
}

func (t *reuseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	hint := t.current()
	if hint == "" || req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/session") {
		return t.base.RoundTrip(req)
	}
	if req.Body != nil {
		_, _ = io.Copy(io.Discard, req.Body)
		_ = req.Body.Close()
	}
	body, err := json.Marshal(map[string]any{
		"value": map[string]any{
			"sessionId":    hint,
			"capabilities": map[string]any{"browserName": "chrome"},
		},
	})
	if err != nil {
		return nil, err
	}
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json; charset=utf-8"}},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}
