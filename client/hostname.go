package client

import (
	"strings"

	"google.golang.org/grpc/resolver"
)

// StripHostname turns a URL such as "https://host:443/" into the "host:port" gRPC dials.
// Targets naming a scheme gRPC resolves itself ("dns:///", "passthrough:///", "unix:")
// are returned unchanged.
func StripHostname(hostname string) string {
	if i := strings.IndexByte(hostname, ':'); i > 0 && isScheme(hostname[:i]) && resolver.Get(hostname[:i]) != nil {
		return hostname
	}
	if i := strings.Index(hostname, "://"); i > 0 && isScheme(hostname[:i]) {
		hostname = hostname[i+len("://"):]
	}
	if i := strings.IndexByte(hostname, '/'); i >= 0 {
		hostname = hostname[:i]
	}
	return hostname
}

// isScheme follows RFC 3986: ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )
func isScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
