package handlers

import (
	"encoding/json"
	"log"
	"time"

	"github.com/valyala/fasthttp"

	"aqgateway/internal/auth"
	"aqgateway/internal/gateway"
	httpctx "aqgateway/internal/http/ctx"
)

// MustPrincipal returns the authenticated principal from context, or
// sends 401 and returns (nil, false).
func MustPrincipal(ctx *fasthttp.RequestCtx) (*auth.Principal, bool) {
	p, ok := httpctx.PrincipalFromCtx(ctx)
	if !ok {
		gateway.WriteJSON(ctx, fasthttp.StatusUnauthorized, map[string]any{
			"error": "unauthorized", "code": gateway.CodeUnauthenticated,
		})
		return nil, false
	}
	return p, true
}

// decodeBody parses the JSON request body into dst. Sends 400 and
// returns false on malformed input.
func decodeBody(ctx *fasthttp.RequestCtx, dst any) bool {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		badRequest(ctx, "invalid JSON body")
		return false
	}
	return true
}

func badRequest(ctx *fasthttp.RequestCtx, msg string) {
	gateway.WriteJSON(ctx, fasthttp.StatusBadRequest, map[string]any{
		"error": msg, "code": gateway.CodeBadRequest,
	})
}

func internalError(ctx *fasthttp.RequestCtx, msg string) {
	gateway.WriteJSON(ctx, fasthttp.StatusInternalServerError, map[string]any{
		"error": msg, "code": gateway.CodeInternal,
	})
}

// RequestLogger logs every request with method, path, status, duration
// and client address.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr())
	}
}
