package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClientCallSendsArgsAndToken(t *testing.T) {
	var gotPath, gotAuth, gotReqID string
	var gotArgs []any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotArgs)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"status_text":"OK","data":{"token":"T1"}}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/api/", time.Second, nil)
	c.SetToken("abc")
	res := c.Call(context.Background(), "session/signin", map[string]string{"user": "a"}, nil)

	if !res.OK || res.Status != 200 {
		t.Fatalf("unexpected response %s", res)
	}
	if gotPath != "/api/session/signin" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer abc" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReqID == "" {
		t.Fatalf("expected request id header")
	}
	if len(gotArgs) != 2 || gotArgs[1] != nil {
		t.Fatalf("unexpected args %v", gotArgs)
	}

	var data struct {
		Token string `json:"token"`
	}
	if err := res.Decode(&data); err != nil || data.Token != "T1" {
		t.Fatalf("decode data: %v %+v", err, data)
	}
}

func TestHTTPClientNoTokenNoAuthHeader(t *testing.T) {
	var gotAuth string
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	res := c.Call(context.Background(), "session/signout")
	if gotAuth != "" {
		t.Fatalf("expected no auth header, got %q", gotAuth)
	}
	if body != "[]" {
		t.Fatalf("expected empty args array, got %q", body)
	}
	if !res.OK || res.Status != http.StatusNoContent {
		t.Fatalf("unexpected response %s", res)
	}
	if err := res.Decode(&struct{}{}); err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestHTTPClientUsesHTTPStatusWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	res := NewHTTPClient(srv.URL, time.Second, nil).Call(context.Background(), "x")
	if res.OK || res.Status != http.StatusUnauthorized || !res.IsUnauthorized() {
		t.Fatalf("unexpected response %s", res)
	}
}

func TestHTTPClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := NewHTTPClient(url, time.Second, nil).Call(context.Background(), "x")
	if res.OK || res.Status != StatusTransportError {
		t.Fatalf("expected transport error, got %s", res)
	}
}

func TestHTTPClientSessionInvalidFiresSignout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":4401,"status_text":"Session Invalid"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second, nil)
	var fired int32
	unsubscribe := c.OnSignout(func() { atomic.AddInt32(&fired, 1) })

	// sin token no hay nada que invalidar
	c.Call(context.Background(), "x")
	if atomic.LoadInt32(&fired) != 0 {
		t.Fatalf("signout must not fire without a token")
	}

	c.SetToken("T1")
	res := c.Call(context.Background(), "x")
	if !res.IsUnauthorized() {
		t.Fatalf("expected unauthorized, got %s", res)
	}
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("expected one signout, got %d", fired)
	}
	if c.Token() != "" {
		t.Fatalf("token must be cleared")
	}

	unsubscribe()
	c.SetToken("T2")
	c.Call(context.Background(), "x")
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("unsubscribed handler must not fire")
	}
}

func TestNewResponse(t *testing.T) {
	if r := NewResponse(StatusSessionInvalid, "", nil); r.OK || r.StatusText != "Session Invalid" {
		t.Fatalf("unexpected %+v", r)
	}
	r, err := Result(map[string]int{"a": 1})
	if err != nil || !r.OK || string(r.Data) != `{"a":1}` {
		t.Fatalf("unexpected result %+v %v", r, err)
	}
}
