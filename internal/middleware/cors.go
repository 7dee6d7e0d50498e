package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// AllowedMethods is the method list advertised on preflight responses.
const AllowedMethods = "GET,PUT,POST,PATCH,DELETE,HEAD,OPTIONS"

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins is a list of origins allowed to make cross-origin requests.
	// Entries may be "*" or a wildcard subdomain like "*.example.com".
	AllowedOrigins []string

	// AllowedHeaders specifies the allowed request headers.
	AllowedHeaders []string

	// ExposedHeaders specifies which headers the browser can access.
	ExposedHeaders []string

	// MaxAge is the value for Access-Control-Max-Age header (in seconds).
	MaxAge int
}

// DefaultCORSConfig returns production-safe CORS defaults.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedHeaders: []string{
			"Content-Type",
			"X-API-Key",
			"X-API-Client-Key",
			"X-Request-ID",
			"Accept",
			"Accept-Language",
		},
		ExposedHeaders: []string{
			RequestIDHeader,
			ResponseTimeHeader,
			RateLimitHeader,
			RateLimitRemainingHeader,
			RateLimitResetHeader,
		},
		MaxAge: 86400, // 24 hours
	}
}

// CORSPreflight returns a middleware that answers every OPTIONS request
// itself with 200, the Allow header and a {"Allow": ...} body. Allowed
// origins also get the Access-Control-* headers on every response.
func CORSPreflight(cfg CORSConfig) func(http.Handler) http.Handler {
	headersStr := strings.Join(cfg.AllowedHeaders, ", ")
	exposedStr := strings.Join(cfg.ExposedHeaders, ", ")
	maxAgeStr := ""
	if cfg.MaxAge > 0 {
		maxAgeStr = strconv.Itoa(cfg.MaxAge)
	}

	// Build origin lookup map for O(1) checks
	originMap := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		originMap[strings.ToLower(origin)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions

			if origin != "" && isOriginAllowed(origin, originMap, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if exposedStr != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposedStr)
				}
				if preflight {
					w.Header().Set("Access-Control-Allow-Methods", AllowedMethods)
					w.Header().Set("Access-Control-Allow-Headers", headersStr)
					if maxAgeStr != "" {
						w.Header().Set("Access-Control-Max-Age", maxAgeStr)
					}
				}
			}

			if preflight {
				w.Header().Set("Allow", AllowedMethods)
				writeJSON(w, http.StatusOK, map[string]string{"Allow": AllowedMethods})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed checks if the given origin is in the allowed list.
func isOriginAllowed(origin string, originMap map[string]bool, allowedOrigins []string) bool {
	// If no origins configured, deny all cross-origin requests
	if len(allowedOrigins) == 0 {
		return false
	}
	if originMap["*"] {
		return true
	}

	normalizedOrigin := strings.ToLower(origin)
	if originMap[normalizedOrigin] {
		return true
	}

	// Check for wildcard subdomain patterns like "*.example.com"
	for _, allowed := range allowedOrigins {
		if !strings.HasPrefix(allowed, "*.") {
			continue
		}
		suffix := strings.ToLower(strings.TrimPrefix(allowed, "*"))
		if !strings.HasSuffix(normalizedOrigin, suffix) {
			continue
		}
		// "*.example.com" matches "sub.example.com" but not "notexample.com"
		prefix := strings.TrimSuffix(normalizedOrigin, suffix)
		if strings.Contains(prefix, "://") && !strings.HasSuffix(prefix, "://") {
			return true
		}
	}

	return false
}
