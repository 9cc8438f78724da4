package app

import (
	"net/url"
	"strings"

	"github.com/gin-contrib/cors"

	"github.com/mx-space/forms/internal/config"
)

// originPatterns matches browser origins against allowed_origins entries.
// Entries are hosts with an optional "*." subdomain wildcard or ":*" port
// wildcard.
type originPatterns []string

func newOriginPatterns(raw []string) originPatterns {
	out := make(originPatterns, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, originHost(p))
	}
	return out
}

func (p originPatterns) Allow(origin string) bool {
	host := originHost(strings.ToLower(origin))
	for _, pattern := range p {
		if hostMatches(pattern, host) {
			return true
		}
	}
	return false
}

// originHost reduces "scheme://host[:port]/" to "host[:port]".
func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(origin, "/")
	}
	return u.Host
}

func hostMatches(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, pattern[:len(pattern)-1])
	}
	return false
}

// corsConfig allows every origin in development or when allowed_origins is
// empty. Otherwise only matching origins pass.
func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
	}
	if cfg.IsDev() || len(cfg.AllowedOrigins) == 0 {
		c.AllowOriginFunc = func(string) bool { return true }
		return c
	}
	c.AllowOriginFunc = newOriginPatterns(cfg.AllowedOrigins).Allow
	return c
}
