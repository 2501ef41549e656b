package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/loykin/drivr/internal/errs"
)

func TestSanitizeBase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"api", "/api"},
		{"/api", "/api"},
		{"/api/", "/api"},
		{" api ", "/api"},
		{"//api//v1/", "/api/v1"},
		{"/api/../", ""},
	}
	for _, c := range cases {
		if got := sanitizeBase(c.in); got != c.want {
			t.Fatalf("sanitizeBase(%q)=%q want %q", c.in, got, c.want)
		}
	}
}

func TestErrorResponsesAreJSON(t *testing.T) {
	h, svc, _ := setupRouter(t, "//api//")
	svc.startErr = errs.Lock("lock chromedriver.pid", errors.New("held"))
	rec := doReq(t, h, http.MethodPost, "/api/start", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type: %s", ct)
	}
	var body errorResp
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Kind != errs.KindLockTimeout.String() {
		t.Fatalf("body = %+v err=%v", body, err)
	}
}

func TestStatusForKinds(t *testing.T) {
	cases := map[errs.Kind]int{
		errs.KindConfiguration:   http.StatusBadRequest,
		errs.KindLockTimeout:     http.StatusServiceUnavailable,
		errs.KindSessionConflict: http.StatusConflict,
		errs.KindRemoteOperation: http.StatusBadGateway,
		errs.KindUnknown:         http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := statusFor(k); got != want {
			t.Fatalf("statusFor(%s) = %d want %d", k, got, want)
		}
	}
}
