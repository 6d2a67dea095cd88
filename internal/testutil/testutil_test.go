package testutil

import (
	"net/http"
	"testing"
)

func TestLocalRequest(t *testing.T) {
	t.Parallel()

	req := LocalRequest(http.MethodGet, "/debug/nav", nil)
	if req.RemoteAddr != "127.0.0.1:12345" {
		t.Errorf("RemoteAddr = %q, want loopback", req.RemoteAddr)
	}
	if req.URL.Path != "/debug/nav" {
		t.Errorf("path = %q", req.URL.Path)
	}
}

func TestServe(t *testing.T) {
	t.Parallel()

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.RemoteAddr != "127.0.0.1:12345" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	})
	rr := Serve(h, http.MethodGet, "/")
	AssertStatusCode(t, rr.Code, http.StatusTeapot)
}
