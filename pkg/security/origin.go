package security

import (
	"net"
	"net/http"
	"net/url"
	"strings"
)

func GetOriginFromRequest(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return NormalizeOrigin(origin)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		if u, err := url.Parse(referer); err == nil && u.Host != "" {
			return NormalizeOrigin(u.Scheme + "://" + u.Host)
		}
	}

	return ""
}

func NormalizeOrigin(origin string) string {
	origin = strings.ToLower(origin)
	origin = strings.TrimSuffix(origin, "/")
	return origin
}

// IsLocalhost reports whether origin points at the loopback interface.
func IsLocalhost(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func GetAllowedOrigins(additional []string) map[string]bool {
	allowed := make(map[string]bool)
	for _, origin := range additional {
		if origin != "" {
			allowed[NormalizeOrigin(origin)] = true
		}
	}
	return allowed
}
