package detector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPDetector asks a running driver for its status endpoint. A connection failure is a
// negative answer, not an error.
type HTTPDetector struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// StatusURL is the readiness endpoint of a driver listening on the loopback port.
func StatusURL(port int) string { return fmt.Sprintf("http://127.0.0.1:%d/status", port) }

func (d HTTPDetector) Alive() (bool, error) {
	c := d.Client
	if c == nil {
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		c = &http.Client{Timeout: timeout}
	}
	resp, err := c.Get(d.URL)
	if err != nil {
		return false, nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return false, nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return false, nil
	}
	// W3C drivers report {"value":{"ready":bool}}; older ones send no ready flag.
	var st struct {
		Value struct {
			Ready *bool `json:"ready"`
		} `json:"value"`
	}
	if err := json.Unmarshal(body, &st); err != nil || st.Value.Ready == nil {
		return true, nil
	}
	return *st.Value.Ready, nil
}

func (d HTTPDetector) Describe() string { return "http:" + d.URL }
