// Package gateway wraps priced operations with authentication and
// metering. Every public API handler goes through Metered, which
// resolves the principal, charges the fixed operation cost and shapes
// the uniform response envelope.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"aqgateway/internal/auth"
	"aqgateway/internal/forecast"
	httpctx "aqgateway/internal/http/ctx"
	"aqgateway/internal/ledger"
)

// Fixed credit costs per operation. Prices are static and known in
// advance; they are never derived from response size.
const (
	CostCredits    = 0
	CostSites      = 10
	CostSiteData   = 50
	CostForecast   = 100
	CostTimeseries = 150
)

var (
	// ErrNotFound lets an operation signal a missing resource (e.g. an
	// unknown site id) after the credit was already charged.
	ErrNotFound = errors.New("resource not found")
	// ErrBadRequest lets an operation reject malformed input. The charge
	// is not refunded; validation happens inside the priced call.
	ErrBadRequest = errors.New("bad request")
)

// Stable error codes surfaced to API clients.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeUnauthenticated     = "UNAUTHENTICATED"
	CodeForbidden           = "FORBIDDEN"
	CodeNoAccount           = "NO_ACCOUNT"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeNotFound            = "NOT_FOUND"
	CodeUpstreamFailure     = "UPSTREAM_FAILURE"
	CodeUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	CodeInternal            = "INTERNAL"
)

var (
	apiRequests     *prometheus.CounterVec
	creditsConsumed *prometheus.CounterVec
)

// InitMetrics registers the gateway counters. Call once at process start.
func InitMetrics() {
	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aqgateway",
			Name:      "api_requests_total",
			Help:      "Metered API requests, by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)
	creditsConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aqgateway",
			Name:      "credits_consumed_total",
			Help:      "Credits charged per resource.",
		},
		[]string{"resource"},
	)
	prometheus.MustRegister(apiRequests, creditsConsumed)
}

// Operation is the priced work behind a metered endpoint. It returns
// the JSON fields of the success envelope.
type Operation func(ctx *fasthttp.RequestCtx, p *auth.Principal) (map[string]any, error)

// Gateway composes the auth resolver and the credit ledger in front of
// priced operations.
type Gateway struct {
	resolver *auth.Resolver
	ledger   *ledger.Ledger
}

func New(resolver *auth.Resolver, ledger *ledger.Ledger) *Gateway {
	return &Gateway{resolver: resolver, ledger: ledger}
}

// Metered returns a handler that authenticates, charges cost credits
// and runs op.
//
// The charge is "pay on attempt": it commits before op runs, so an
// upstream failure afterwards does not refund. A failed charge leaves
// no side effects at all: 401 and 402 responses happen before any
// decrement or usage log row.
func (g *Gateway) Metered(cost int64, resource string, op Operation) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		p := g.resolver.Resolve(ctx)
		if p == nil {
			g.fail(ctx, fasthttp.StatusUnauthorized, CodeUnauthenticated,
				"missing or invalid credentials", resource, nil)
			return
		}
		httpctx.SetPrincipal(ctx, p)

		var remaining int64
		if cost > 0 {
			var err error
			remaining, err = g.ledger.CheckAndConsume(p.UserID, cost, "PUBLIC_API_CALL", resource)
			switch {
			case errors.Is(err, ledger.ErrNoAccount):
				g.fail(ctx, fasthttp.StatusPaymentRequired, CodeNoAccount,
					"no business account found, set up billing first", resource, nil)
				return
			case errors.Is(err, ledger.ErrInsufficientCredits):
				g.fail(ctx, fasthttp.StatusPaymentRequired, CodeInsufficientCredits,
					fmt.Sprintf("insufficient credits: required %d, available %d", cost, remaining),
					resource, map[string]any{"required": cost, "available": remaining})
				return
			case err != nil:
				g.fail(ctx, fasthttp.StatusInternalServerError, CodeInternal,
					"ledger unavailable, retry later", resource, nil)
				return
			}
			if creditsConsumed != nil {
				creditsConsumed.WithLabelValues(resource).Add(float64(cost))
			}
		}

		body, err := op(ctx, p)
		if err != nil {
			log.Printf("gateway: %s failed for user %d: %v", resource, p.UserID, err)
			status, code, msg := mapOperationError(err)
			g.fail(ctx, status, code, msg, resource, nil)
			return
		}

		if body == nil {
			body = map[string]any{}
		}
		if cost > 0 {
			body["credits_used"] = cost
			body["credits_remaining"] = remaining
		}

		if apiRequests != nil {
			apiRequests.WithLabelValues(resource, "ok").Inc()
		}
		WriteJSON(ctx, fasthttp.StatusOK, body)
	}
}

func (g *Gateway) fail(ctx *fasthttp.RequestCtx, status int, code, msg, resource string, extra map[string]any) {
	if apiRequests != nil {
		apiRequests.WithLabelValues(resource, code).Inc()
	}
	body := map[string]any{"error": msg, "code": code}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(ctx, status, body)
}

// mapOperationError translates operation failures into the public
// taxonomy. Internal detail stays in the server log; clients only see
// the stable code and a generic message.
func mapOperationError(err error) (int, string, string) {
	switch {
	case errors.Is(err, forecast.ErrUpstreamTimeout):
		return fasthttp.StatusGatewayTimeout, CodeUpstreamTimeout, "forecast service timed out"
	case errors.Is(err, forecast.ErrUpstreamFailure):
		return fasthttp.StatusBadGateway, CodeUpstreamFailure, "forecast service unavailable"
	case errors.Is(err, ErrNotFound):
		return fasthttp.StatusNotFound, CodeNotFound, err.Error()
	case errors.Is(err, ErrBadRequest):
		return fasthttp.StatusBadRequest, CodeBadRequest, err.Error()
	case errors.Is(err, ledger.ErrNoAccount):
		// Zero-cost operations skip the charge but may still need the
		// business account (e.g. the balance endpoint).
		return fasthttp.StatusPaymentRequired, CodeNoAccount, "no business account found, set up billing first"
	}
	return fasthttp.StatusInternalServerError, CodeInternal, "internal error"
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(ctx *fasthttp.RequestCtx, status int, body map[string]any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	raw, err := json.Marshal(body)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":"encoding failure","code":"INTERNAL"}`)
		return
	}
	ctx.SetBody(raw)
}
