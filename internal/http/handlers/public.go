package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/valyala/fasthttp"

	"aqgateway/internal/auth"
	"aqgateway/internal/forecast"
	"aqgateway/internal/gateway"
	"aqgateway/internal/ledger"
)

// Index describes the public API and its prices. Free and unmetered.
func Index() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
			"service": "air quality forecast API",
			"version": "v1",
			"endpoints": map[string]any{
				"GET /v1/credits":             map[string]any{"credits": gateway.CostCredits, "description": "account balance"},
				"GET /v1/sites":               map[string]any{"credits": gateway.CostSites, "description": "monitored sites"},
				"GET /v1/sites/{id}/data":     map[string]any{"credits": gateway.CostSiteData, "description": "recent sample rows for a site"},
				"POST /v1/forecast":           map[string]any{"credits": gateway.CostForecast, "description": "24h pollutant forecast"},
				"POST /v1/forecast/timeseries": map[string]any{"credits": gateway.CostTimeseries, "description": "forecast with historical context"},
			},
		})
	}
}

// Credits returns the caller's balance and plan. Costs nothing but
// still requires a business account.
func Credits(l *ledger.Ledger) gateway.Operation {
	return func(_ *fasthttp.RequestCtx, p *auth.Principal) (map[string]any, error) {
		credits, plan, err := l.Balance(p.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"credits": credits, "plan": plan}, nil
	}
}

// Sites proxies the monitored-site listing from the forecasting service.
func Sites(svc forecast.Service) gateway.Operation {
	return func(ctx *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		raw, err := svc.Sites(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"sites": raw}, nil
	}
}

type forecastRequest struct {
	SiteID           string           `json:"site_id"`
	Data             []map[string]any `json:"data"`
	HistoricalPoints int              `json:"historical_points"`
}

// Forecast runs a single 24h prediction for a site.
func Forecast(svc forecast.Service) gateway.Operation {
	return func(ctx *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		req, err := parseForecastRequest(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := svc.Predict(ctx, req.SiteID, req.Data)
		if err != nil {
			return nil, err
		}
		return map[string]any{"forecast": raw}, nil
	}
}

// Timeseries runs the historical+forecast timeseries for a site.
func Timeseries(svc forecast.Service) gateway.Operation {
	return func(ctx *fasthttp.RequestCtx, _ *auth.Principal) (map[string]any, error) {
		req, err := parseForecastRequest(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := svc.Timeseries(ctx, req.SiteID, req.Data, req.HistoricalPoints)
		if err != nil {
			return nil, err
		}
		return map[string]any{"timeseries": raw}, nil
	}
}

func parseForecastRequest(ctx *fasthttp.RequestCtx) (*forecastRequest, error) {
	var req forecastRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON body", gateway.ErrBadRequest)
	}
	if req.SiteID == "" {
		return nil, fmt.Errorf("%w: site_id required", gateway.ErrBadRequest)
	}
	return &req, nil
}
