package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGoogleTranslator_Translate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sl") != "auto" || q.Get("tl") != "en" || q.Get("q") != "кот. собака" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`[[["cat. ","кот. ",null],["dog","собака",null]],null,"ru"]`))
	}))
	defer srv.Close()

	tr := NewGoogleTranslator()
	tr.endpoint = srv.URL
	tr.httpClient = srv.Client()

	got, err := tr.Translate(context.Background(), "кот. собака")
	if err != nil {
		t.Fatalf("Translate failed: %v", err)
	}
	if got != "cat. dog" {
		t.Errorf("Translate = %q, want %q", got, "cat. dog")
	}
}

func TestGoogleTranslator_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusTooManyRequests, ``},
		{"garbage", http.StatusOK, `<html>`},
		{"empty segments", http.StatusOK, `[[]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := NewGoogleTranslator()
			tr.endpoint = srv.URL
			if _, err := tr.Translate(context.Background(), "hi"); err == nil {
				t.Error("expected error")
			}
		})
	}
}
