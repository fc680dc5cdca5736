package walletnet

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorParsing(t *testing.T) {
	ctx := t.Context()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "InvalidAddress"}`, http.StatusBadRequest)
	}))
	defer ts.Close()

	var errPayload struct {
		Error string `json:"error"`
	}
	err := Get(ctx, ts.URL, nil, WithErrorParsing(&errPayload))
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected an *HTTPError, got %v", err)
	}
	if httpErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong status code %d", httpErr.StatusCode)
	}
	if errPayload.Error != "InvalidAddress" {
		t.Fatalf("unexpected error body %+v", errPayload)
	}
}

func TestPostBody(t *testing.T) {
	ctx := t.Context()

	type req struct {
		Amount string `json:"amount"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth") != "tok" {
			http.Error(w, "no auth", http.StatusUnauthorized)
			return
		}
		var in req
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"echo": in.Amount, "method": r.Method})
	}))
	defer ts.Close()

	var resp map[string]string
	var status int
	err := Post(ctx, ts.URL, &resp, &req{Amount: "1000000"},
		WithRequestHeader("X-Auth", "tok"), WithStatusFunc(func(code int) { status = code }))
	if err != nil {
		t.Fatalf("Post error: %v", err)
	}
	if resp["echo"] != "1000000" || resp["method"] != http.MethodPost || status != http.StatusOK {
		t.Fatalf("wrong response %v, status %d", resp, status)
	}

	if err := Patch(ctx, ts.URL, &resp, &req{Amount: "5"}, WithRequestHeader("X-Auth", "tok")); err != nil {
		t.Fatalf("Patch error: %v", err)
	}
	if resp["method"] != http.MethodPatch {
		t.Fatalf("wrong method %s", resp["method"])
	}

	err = Post(ctx, ts.URL, &resp, &req{})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
}

func TestSizeLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"a":"0123456789012345678901234567890123456789"}`))
	}))
	defer ts.Close()
	var thing map[string]string
	if err := Get(t.Context(), ts.URL, &thing, WithSizeLimit(10)); err == nil {
		t.Fatalf("no error for truncated response")
	}
	if err := Get(t.Context(), ts.URL, &thing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
