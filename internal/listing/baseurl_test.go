package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestResolveBaseURL(t *testing.T) {
	const fallback = "https://fallback.example"
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"src found", 200, `<iframe src = "https://live.example/embed/index.php?x=1"></iframe>`, "https://live.example", false},
		{"compact src", 200, `<x src="http://other.example:8080/a">`, "http://other.example:8080", false},
		{"no src", 200, `<xml>nothing here</xml>`, fallback, true},
		{"not http", 200, `src = "ftp://files.example/x"`, fallback, true},
		{"server error", 500, ``, fallback, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			got, err := ResolveBaseURL(context.Background(), srv.Client(), srv.URL+"/dl.xml", fallback+"/", "test-agent", time.Second)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveBaseURL_disabled(t *testing.T) {
	got, err := ResolveBaseURL(context.Background(), nil, "", "https://fallback.example", "", time.Second)
	if err != nil || got != "https://fallback.example" {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestResolveBaseURL_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	got, err := ResolveBaseURL(context.Background(), srv.Client(), srv.URL, "https://fallback.example", "", 50*time.Millisecond)
	if err == nil || got != "https://fallback.example" {
		t.Errorf("got %q, %v", got, err)
	}
}
