package security

import (
	"net/http"
)

// OriginPolicy decides which browser origins may open WebSocket connections
// or call the dev server. Requests without an Origin header come from native
// runtimes and debuggers, not browsers, and are always accepted.
type OriginPolicy struct {
	config         OriginConfig
	allowedOrigins map[string]bool
}

func NewOriginPolicy(cfg OriginConfig) *OriginPolicy {
	return &OriginPolicy{
		config:         cfg,
		allowedOrigins: GetAllowedOrigins(cfg.AllowOrigins),
	}
}

// CheckOrigin has the signature websocket.Upgrader expects.
func (p *OriginPolicy) CheckOrigin(r *http.Request) bool {
	if !p.config.CheckOrigin {
		return true
	}
	origin := GetOriginFromRequest(r)
	if origin == "" {
		return true
	}
	return p.isOriginAllowed(origin)
}

func (p *OriginPolicy) isOriginAllowed(origin string) bool {
	if IsLocalhost(origin) {
		return true
	}
	return p.allowedOrigins[NormalizeOrigin(origin)]
}

// Middleware rejects requests from disallowed origins with 403.
func (p *OriginPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.CheckOrigin(r) {
			http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
