package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcher_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header to be set")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("AAA"))
	}))
	defer srv.Close()

	f := New()
	resp, err := f.Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	defer resp.Body.Close()

	if !StatusOK(resp.StatusCode) {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "AAA" {
		t.Errorf("expected body %q, got %q", "AAA", body)
	}
}

func TestHTTPFetcher_GetRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			t.Error("expected a Range header to be set")
		}
		w.WriteHeader(http.StatusPartialContent)
	}))
	defer srv.Close()

	f := New()
	resp, err := f.GetRange(context.Background(), srv.URL, 0, 0)
	if err != nil {
		t.Fatalf("GetRange() failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("expected 206, got %d", resp.StatusCode)
	}
}

func TestHTTPFetcher_NetworkError(t *testing.T) {
	f := New()
	_, err := f.Get(context.Background(), "http://127.0.0.1:1")
	if err == nil {
		t.Fatal("expected an error connecting to a closed port")
	}
}
