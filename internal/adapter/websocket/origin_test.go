package websocket

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedOrigins_Allowed(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowLocalhost bool
		want           bool
	}{
		{"no origin header", "", false, true},
		{"voting page", "https://vote.example.com", false, true},
		{"voting page upper case", "https://VOTE.example.com", false, true},
		{"results board", "https://board.example.com:8443", false, true},

		{"foreign site", "https://evil.com", false, false},
		{"custom scheme", "obs://obs-studio", false, false},
		{"wrong port", "https://vote.example.com:9090", false, false},
		{"plain http", "http://vote.example.com", false, false},
		{"subdomain", "https://sub.vote.example.com", false, false},

		{"localhost when allowed", "http://localhost:8080", true, true},
		{"loopback ipv4 when allowed", "http://127.0.0.1:3000", true, true},
		{"loopback ipv6 when allowed", "http://[::1]:3000", true, true},
		{"localhost in production", "http://localhost:8080", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origins := NewFeedOrigins(tt.allowLocalhost, nil, "https://vote.example.com/", "https://board.example.com:8443/live")
			assert.Equal(t, tt.want, origins.Allowed(tt.origin))
		})
	}
}

func TestFeedOrigins_CheckOriginReportsRejections(t *testing.T) {
	var rejected []string
	origins := NewFeedOrigins(false, func(origin string) { rejected = append(rejected, origin) }, "https://vote.example.com")

	for _, origin := range []string{"https://vote.example.com", "https://evil.com", ""} {
		r, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/ws/feed", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		origins.CheckOrigin(r)
	}

	assert.Equal(t, []string{"https://evil.com"}, rejected)
}

func TestFeedOrigins_EmptyAppURLOnlyAllowsHeaderless(t *testing.T) {
	origins := NewFeedOrigins(false, nil, "")

	assert.True(t, origins.Allowed(""))
	assert.False(t, origins.Allowed("https://vote.example.com"))
}

func TestExtractOrigin(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		want   string
	}{
		{"path is dropped", "https://vote.example.com/contestants", "https://vote.example.com"},
		{"port is kept", "https://vote.example.com:8443/ws/feed", "https://vote.example.com:8443"},
		{"host is lower cased", "HTTP://Localhost:8080/", "http://localhost:8080"},
		{"empty", "", ""},
		{"no host", "mailto:jury@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractOrigin(tt.rawURL))
		})
	}
}
