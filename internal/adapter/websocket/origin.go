package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// FeedOrigins decides which browser origins may open the live feed socket. Requests without
// an Origin header come from non-browser clients and are always let through.
type FeedOrigins struct {
	allowed        map[string]struct{}
	allowLocalhost bool
	onReject       func(origin string)
}

// NewFeedOrigins allows the origins of appURLs, plus any localhost origin when allowLocalhost
// is set. onReject, when non-nil, is told about every refused origin.
func NewFeedOrigins(allowLocalhost bool, onReject func(origin string), appURLs ...string) *FeedOrigins {
	allowed := make(map[string]struct{}, len(appURLs))
	for _, raw := range appURLs {
		if origin := extractOrigin(raw); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return &FeedOrigins{allowed: allowed, allowLocalhost: allowLocalhost, onReject: onReject}
}

// Allowed reports whether origin may subscribe to the feed.
func (o *FeedOrigins) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := o.allowed[strings.ToLower(origin)]; ok {
		return true
	}
	return o.allowLocalhost && isLocalhostOrigin(origin)
}

// CheckOrigin has the signature gorilla's Upgrader expects.
func (o *FeedOrigins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if o.Allowed(origin) {
		return true
	}

	slog.WarnContext(r.Context(), "Live feed origin rejected", "origin", origin, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
	if o.onReject != nil {
		o.onReject(origin)
	}
	return false
}

// extractOrigin reduces a URL to the scheme://host[:port] form browsers send.
func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
