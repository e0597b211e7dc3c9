// Package middleware carries the request wrappers for the browser-facing
// routes. The metered public API does not use these; its auth and
// metering live in the gateway.
package middleware

import (
	"github.com/valyala/fasthttp"

	"aqgateway/internal/auth"
	"aqgateway/internal/gateway"
	httpctx "aqgateway/internal/http/ctx"
)

// SessionAuth requires a logged-in browser session. API keys are not
// accepted here; key lifecycle and government routes are session-only
// so a leaked API key can never manage keys or fire alerts.
func SessionAuth(resolver *auth.Resolver) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			p := resolver.Resolve(ctx)
			if p == nil || p.Kind != auth.KindSession {
				gateway.WriteJSON(ctx, fasthttp.StatusUnauthorized, map[string]any{
					"error": "login required", "code": gateway.CodeUnauthenticated,
				})
				return
			}
			httpctx.SetPrincipal(ctx, p)
			next(ctx)
		}
	}
}

// RequireRole rejects principals whose role does not match. Apply after
// SessionAuth so the principal is already on the context.
func RequireRole(role string) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			p, ok := httpctx.PrincipalFromCtx(ctx)
			if !ok || p.Role != role {
				gateway.WriteJSON(ctx, fasthttp.StatusForbidden, map[string]any{
					"error": "insufficient permissions", "code": gateway.CodeForbidden,
				})
				return
			}
			next(ctx)
		}
	}
}
