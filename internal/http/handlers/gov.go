package handlers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"

	"aqgateway/internal/alerts"
	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/gateway"
	"aqgateway/internal/risk"
)

// defaultRecipients is the standing distribution list for automatic
// alerts when the request does not name departments explicitly.
var defaultRecipients = []string{
	"Health Dept",
	"Traffic Police",
	"Education Board",
	"Industrial Control",
}

type evaluateRequest struct {
	Region     string   `json:"region"`
	O3         float64  `json:"o3"`
	NO2        float64  `json:"no2"`
	Forecast   string   `json:"forecast"`
	Title      string   `json:"title"`
	Recipients []string `json:"recipients"`
}

// Evaluate classifies a pollutant reading and, when the risk reaches
// High, creates and enqueues a department alert for the region.
func Evaluate(producer *alerts.Producer) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req evaluateRequest
		if !decodeBody(ctx, &req) {
			return
		}
		if req.Region == "" {
			badRequest(ctx, "region required")
			return
		}

		assessment := risk.Classify(req.O3, req.NO2)

		title := req.Title
		if title == "" {
			title = "Critical Air Quality Alert - " + req.Region
		}
		recipients := req.Recipients
		if len(recipients) == 0 {
			recipients = defaultRecipients
		}
		message := strings.Join(assessment.RiskFactors, " ")

		alert, err := producer.Produce(ctx, req.Region, title, message, req.Forecast, assessment, recipients)
		switch {
		case errors.Is(err, alerts.ErrBelowThreshold):
			gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
				"alerted": false, "assessment": assessment,
			})
			return
		case errors.Is(err, alerts.ErrRegionCoolingDown):
			gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
				"alerted":    false,
				"reason":     "region alerted recently",
				"assessment": assessment,
			})
			return
		case err != nil && alert != nil:
			// Record created but not enqueued; it stays PENDING for a
			// manual re-enqueue.
			log.Printf("gov: alert %s created but enqueue failed: %v", alert.ID, err)
			gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
				"alerted": true, "queued": false, "alert_id": alert.ID, "assessment": assessment,
			})
			return
		case err != nil:
			internalError(ctx, "failed to create alert")
			return
		}

		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
			"alerted":    true,
			"queued":     true,
			"alert_id":   alert.ID,
			"assessment": assessment,
		})
	}
}

// ListAlerts returns the newest alert records for the command center.
func ListAlerts(store *alerts.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		recent, err := store.Recent(50)
		if err != nil {
			internalError(ctx, "database error")
			return
		}

		out := make([]map[string]any, 0, len(recent))
		for _, a := range recent {
			out = append(out, map[string]any{
				"id":            a.ID,
				"region":        a.Region,
				"title":         a.Title,
				"severity":      a.Severity,
				"status":        a.Status,
				"recipients":    a.Recipients,
				"created_at":    a.CreatedAt,
				"dispatched_at": a.DispatchedAt,
			})
		}
		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{"alerts": out})
	}
}

type broadcastRequest struct {
	Region  string `json:"region"`
	Message string `json:"message"`
}

// BroadcastEmergency pushes an SMS emergency broadcast for a region
// through the national gateway and records it as a dispatched alert.
// The gateway integration is simulated; the record keeps the audit
// trail identical to a real broadcast.
func BroadcastEmergency(store *alerts.Store) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req broadcastRequest
		if !decodeBody(ctx, &req) {
			return
		}
		if req.Region == "" || req.Message == "" {
			badRequest(ctx, "region and message required")
			return
		}

		now := time.Now().UTC()
		alert := &dbpkg.Alert{
			ID:           uuid.NewString(),
			Region:       req.Region,
			Title:        "Emergency Broadcast - " + req.Region,
			Message:      req.Message,
			Severity:     "Severe",
			Recipients:   datatypes.NewJSONSlice([]string{"NIC SMS Gateway"}),
			Status:       dbpkg.AlertSent,
			DispatchedAt: &now,
		}
		if err := store.Create(alert); err != nil {
			internalError(ctx, "failed to record broadcast")
			return
		}

		log.Printf("gov: NIC gateway broadcast to %s: %q", req.Region, req.Message)

		gateway.WriteJSON(ctx, fasthttp.StatusOK, map[string]any{
			"ok":       true,
			"alert_id": alert.ID,
			"channel":  "nic-sms-gateway",
			"region":   req.Region,
		})
	}
}
