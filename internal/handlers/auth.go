package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go/attribute"

	"github.com/atacanet/storefront/internal/auth"
	"github.com/atacanet/storefront/internal/logging"
	"github.com/atacanet/storefront/internal/observability"
)

const (
	messageMissingToken = "Token de autenticação não fornecido."
	messageInvalidToken = "Token inválido ou expirado."
	messageForbidden    = "Acesso não autorizado."
)

type claimsContextKey struct{}

func withClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the verified credential of the current request.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims, ok && claims != nil
}

// RequireCustomer rejects requests without a valid bearer credential.
func (h *Handlers) RequireCustomer(next http.Handler) http.Handler {
	return h.authenticate(false, next)
}

// RequireAdmin rejects requests whose credential does not carry the admin role.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return h.authenticate(true, next)
}

func (h *Handlers) authenticate(adminOnly bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := h.loggerFromContext(ctx)
		meter := observability.MeterFromContext(ctx)
		recordRejected := func(reason string) {
			observability.CountReason(meter, "auth.rejected", reason)
		}

		token, err := auth.TokenFromRequest(r)
		if errors.Is(err, auth.ErrMissingToken) {
			recordRejected("missing_token")
			writeError(w, logger, http.StatusUnauthorized, messageMissingToken)
			return
		}

		var claims *auth.Claims
		if err == nil {
			claims, err = auth.ValidateToken(h.config.JWTSecret, token)
		}
		if err != nil {
			recordRejected("invalid_token")
			logger.Warn("rejected bearer credential", "error", err)
			writeError(w, logger, http.StatusUnauthorized, messageInvalidToken)
			return
		}

		if adminOnly && !claims.IsAdmin() {
			recordRejected("not_admin")
			logger.Warn("non-admin credential on admin route", "customer_id", claims.CustomerID)
			writeError(w, logger, http.StatusForbidden, messageForbidden)
			return
		}

		meter.SetAttributes(attribute.String("user.id", claims.CustomerID.String()))
		ctx = logging.WithAttrs(withClaims(ctx, claims), h.logger, "customer_id", claims.CustomerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
