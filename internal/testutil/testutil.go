// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// LocalRequest creates a request that appears to come from localhost, which
// tsweb requires before it serves /debug/ pages.
func LocalRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// Serve runs a local request through h and returns the recorded response.
func Serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, LocalRequest(method, path, nil))
	return rr
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}
