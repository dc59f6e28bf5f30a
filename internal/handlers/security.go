package handlers

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/atacanet/storefront/internal/config"
	"github.com/atacanet/storefront/internal/observability"
)

// SecurityHeaders sets baseline security headers for all responses.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		headers.Set("Cross-Origin-Resource-Policy", "same-origin")
		headers.Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}

// RequireSameOrigin blocks cross-origin state-changing requests that rely on
// the access token cookie. Bearer requests carry no ambient credential and pass.
func (h *Handlers) RequireSameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !requestMutatesState(r.Method) || credentialSource(r) != "cookie" {
			next.ServeHTTP(w, r)
			return
		}

		meter := observability.MeterFromContext(r.Context())
		meter.Count("security.same_origin.checked", 1)

		if reason := h.crossOriginReason(r); reason != "" {
			logger := h.loggerFromContext(r.Context())
			observability.CountReason(meter, "security.same_origin.blocked", reason)
			logger.Warn("blocked cross-origin cookie request",
				"reason", reason,
				"origin", r.Header.Get("Origin"),
				"referer", r.Header.Get("Referer"),
			)
			writeError(w, logger, http.StatusForbidden, messageForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// crossOriginReason returns why r fails the same-origin check, or "" when it
// passes. Both Origin and Referer must match when present; one is required.
func (h *Handlers) crossOriginReason(r *http.Request) string {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	referer := strings.TrimSpace(r.Header.Get("Referer"))
	if origin == "" && referer == "" {
		return "missing_origin_and_referer"
	}

	allowed := allowedRequestHosts(h.config, r)
	if origin != "" && !hostAllowed(origin, allowed) {
		return "invalid_origin"
	}
	if referer != "" && !hostAllowed(referer, allowed) {
		return "invalid_referer"
	}
	return ""
}

func requestMutatesState(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func hostAllowed(rawURL string, allowed map[string]struct{}) bool {
	host := hostFromURL(rawURL)
	if host == "" {
		return false
	}
	_, ok := allowed[host]
	return ok
}

// allowedRequestHosts is the API's own host plus the storefront frontend.
func allowedRequestHosts(cfg *config.Config, r *http.Request) map[string]struct{} {
	hosts := map[string]struct{}{}
	if host := normalizeHost(r.Host); host != "" {
		hosts[host] = struct{}{}
	}
	if cfg != nil {
		if host := hostFromURL(cfg.FrontendURL); host != "" {
			hosts[host] = struct{}{}
		}
	}
	return hosts
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		hostport = host
	}
	return strings.ToLower(hostport)
}

func hostFromURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
