package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoRawRequest(t *testing.T) {
	var gotBody []byte
	var gotContentType, gotCustom, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Custom")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"queued"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithAPIKey("k"))

	headers := http.Header{}
	headers.Set("X-Custom", "v")
	resp, err := c.DoRawRequest(context.Background(), http.MethodPost, "/api/jobs", []byte(`{"name":"x"}`), headers)
	if err != nil {
		t.Fatalf("DoRawRequest: %v", err)
	}

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("expected status 202, got %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"status":"queued"}` {
		t.Errorf("unexpected body: %s", resp.Body)
	}
	if resp.Headers.Get("X-Request-Id") != "req-42" {
		t.Errorf("expected response headers preserved, got %v", resp.Headers)
	}

	if string(gotBody) != `{"name":"x"}` {
		t.Errorf("unexpected request body: %s", gotBody)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected Content-Type defaulted to application/json, got %q", gotContentType)
	}
	if gotCustom != "v" {
		t.Errorf("expected X-Custom header forwarded, got %q", gotCustom)
	}
	if gotAuth != "Bearer k" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
}

func TestDoRawRequest_ContentTypeNotOverridden(t *testing.T) {
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithAPIKey("k"))

	headers := http.Header{}
	headers.Set("Content-Type", "text/plain")
	if _, err := c.DoRawRequest(context.Background(), http.MethodPost, "/api/notes", []byte("hello"), headers); err != nil {
		t.Fatalf("DoRawRequest: %v", err)
	}
	if gotContentType != "text/plain" {
		t.Errorf("expected caller's Content-Type kept, got %q", gotContentType)
	}
}

func TestDoRawRequest_NoBody(t *testing.T) {
	var gotContentType string
	var bodyLen int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		bodyLen = r.ContentLength
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithAPIKey("k"))

	if _, err := c.DoRawRequest(context.Background(), http.MethodGet, "/api/account", nil, nil); err != nil {
		t.Fatalf("DoRawRequest: %v", err)
	}
	if gotContentType != "" {
		t.Errorf("expected no Content-Type without a body, got %q", gotContentType)
	}
	if bodyLen > 0 {
		t.Errorf("expected empty body, got length %d", bodyLen)
	}
}

func TestDoRawRequest_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"No such job."}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, WithAPIKey("k"))

	_, err := c.DoRawRequest(context.Background(), http.MethodGet, "/api/jobs/nope", nil, nil)
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != "not_found" {
		t.Errorf("expected code 'not_found', got %q", apiErr.Code)
	}
	if apiErr.Message != "No such job." {
		t.Errorf("expected decoded message, got %q", apiErr.Message)
	}
}
