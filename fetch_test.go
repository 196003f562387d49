package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchHTML_Success(t *testing.T) {
	t.Setenv("CLIPDOWN_TEST_ALLOW_LOCAL", "1")
	expected := "<html><body>Hello</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(expected))
	}))
	defer srv.Close()

	body, u, err := fetchHTML(srv.URL, 5*time.Second, defaultUA)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != expected {
		t.Errorf("got %q, want %q", string(body), expected)
	}
	if u.Host == "" {
		t.Error("expected parsed URL with host")
	}
}

func TestFetchHTML_NotFound(t *testing.T) {
	t.Setenv("CLIPDOWN_TEST_ALLOW_LOCAL", "1")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
	}))
	defer srv.Close()

	_, _, err := fetchHTML(srv.URL, 5*time.Second, defaultUA)
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected 404 in error, got: %v", err)
	}
}

func TestFetchHTML_BrowserHeaders(t *testing.T) {
	t.Setenv("CLIPDOWN_TEST_ALLOW_LOCAL", "1")
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, _, err := fetchHTML(srv.URL, 5*time.Second, "my-custom-agent/2.0")
	if err != nil {
		t.Fatal(err)
	}
	if got := headers.Get("User-Agent"); got != "my-custom-agent/2.0" {
		t.Errorf("User-Agent = %q", got)
	}
	for key, want := range map[string]string{
		"Sec-Fetch-Dest": "document",
		"Sec-Fetch-Mode": "navigate",
		"Sec-Fetch-Site": "none",
	} {
		if got := headers.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if !strings.Contains(headers.Get("Accept"), "text/html") {
		t.Errorf("Accept = %q", headers.Get("Accept"))
	}
}

func TestFetchHTML_InvalidURL(t *testing.T) {
	_, _, err := fetchHTML("://not-a-url", time.Second, defaultUA)
	if err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestReadLimited(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		limit   int64
		wantErr bool
	}{
		{"under limit", "hello", 10, false},
		{"at limit", "hello", 5, false},
		{"over limit", "hello world", 5, true},
		{"unlimited", strings.Repeat("x", 1000), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := readLimited(strings.NewReader(tt.input), tt.limit)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected size error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(data) != tt.input {
				t.Errorf("got %q, want %q", data, tt.input)
			}
		})
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512.0B"},
		{2048, "2.0KB"},
		{3 * 1024 * 1024, "3.0MB"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestHasPort(t *testing.T) {
	if !hasPort("example.com:443") {
		t.Error("example.com:443 should have a port")
	}
	if hasPort("example.com") {
		t.Error("example.com should not have a port")
	}
}
