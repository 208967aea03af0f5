package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostJSONDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" || r.Header.Get("X-Player") != "p1" {
			t.Errorf("unexpected headers %v", r.Header)
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"echo": in["name"]})
	}))
	defer srv.Close()

	c := NewBaseClient(srv.Client(), srv.URL+"/")
	c.SetHeader("X-Player", "p1")

	var out struct{ Echo string }
	status, err := c.PostJSON(context.Background(), "/things", map[string]string{"name": "ana"}, &out)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if status != http.StatusCreated || out.Echo != "ana" {
		t.Fatalf("status=%d out=%+v", status, out)
	}
}

func TestNon2xxReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewBaseClient(nil, srv.URL).Get(context.Background(), "/")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest || statusErr.Body != "nope" {
		t.Fatalf("err = %v", err)
	}
}
