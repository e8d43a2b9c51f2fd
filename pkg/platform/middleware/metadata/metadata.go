// Package metadata records the caller's address and user agent. The user
// agent feeds redirection strategy selection when the resolution context
// does not carry one.
package metadata

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientMetadata struct {
	ip        string
	userAgent string
}

type contextKeyClientMetadata struct{}

// ClientMetadata stores the client IP and User-Agent in the request context.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithClientMetadata(r.Context(), ClientIPFromRequest(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithClientMetadata injects client metadata without running the middleware.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return context.WithValue(ctx, contextKeyClientMetadata{}, clientMetadata{ip: clientIP, userAgent: userAgent})
}

func GetClientIP(ctx context.Context) string {
	md, _ := ctx.Value(contextKeyClientMetadata{}).(clientMetadata)
	return md.ip
}

func GetUserAgent(ctx context.Context) string {
	md, _ := ctx.Value(contextKeyClientMetadata{}).(clientMetadata)
	return md.userAgent
}

// ClientIPFromRequest prefers the first X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
