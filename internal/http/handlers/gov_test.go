package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"aqgateway/internal/alerts"
	dbpkg "aqgateway/internal/db"
)

// memQueue collects enqueued jobs; the dispatch side is not under test
// here.
type memQueue struct {
	jobs []alerts.Job
}

func (q *memQueue) Enqueue(_ context.Context, job alerts.Job) error { q.jobs = append(q.jobs, job); return nil }
func (q *memQueue) Dequeue(_ context.Context) (*alerts.Delivery, error) {
	return nil, alerts.ErrEmpty
}
func (q *memQueue) Ack(_ context.Context, _ *alerts.Delivery) error   { return nil }
func (q *memQueue) Retry(_ context.Context, _ *alerts.Delivery) error { return nil }

func evaluateHandler(t *testing.T) (fasthttp.RequestHandler, *memQueue, *alerts.Store) {
	t.Helper()
	db := testDB(t)
	store := alerts.NewStore(db)
	queue := &memQueue{}
	producer := alerts.NewProducer(store, queue, 30*time.Minute)
	return Evaluate(producer), queue, store
}

func TestEvaluateCriticalReadingCreatesAlert(t *testing.T) {
	h, queue, store := evaluateHandler(t)

	ctx, body := jsonRequest(t, h, map[string]any{
		"region":   "Sector 12",
		"o3":       310.0,
		"no2":      120.0,
		"forecast": "O3 peaking at 18:00",
	})

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, true, body["alerted"])
	assert.Equal(t, true, body["queued"])

	assessment := body["assessment"].(map[string]any)
	assert.Equal(t, "Severe", assessment["category"])

	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, "Sector 12", job.RegionName)
	assert.Equal(t, defaultRecipients, job.Recipients)
	assert.Equal(t, body["alert_id"], job.AlertID)

	rec, err := store.Get(job.AlertID)
	require.NoError(t, err)
	assert.Equal(t, dbpkg.AlertPending, rec.Status)
}

func TestEvaluateBelowThresholdNoAlert(t *testing.T) {
	h, queue, _ := evaluateHandler(t)

	ctx, body := jsonRequest(t, h, map[string]any{
		"region": "Sector 12", "o3": 50.0, "no2": 20.0,
	})

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, false, body["alerted"])
	assessment := body["assessment"].(map[string]any)
	assert.Equal(t, "Low", assessment["category"])
	assert.Empty(t, queue.jobs)
}

func TestEvaluateRegionCooldown(t *testing.T) {
	h, queue, _ := evaluateHandler(t)

	_, first := jsonRequest(t, h, map[string]any{
		"region": "Sector 12", "o3": 310.0, "no2": 120.0,
	})
	require.Equal(t, true, first["alerted"])

	_, second := jsonRequest(t, h, map[string]any{
		"region": "Sector 12", "o3": 310.0, "no2": 120.0,
	})
	assert.Equal(t, false, second["alerted"])
	assert.Equal(t, "region alerted recently", second["reason"])

	// A different region is not affected by the cooldown.
	_, third := jsonRequest(t, h, map[string]any{
		"region": "Sector 99", "o3": 310.0, "no2": 120.0,
	})
	assert.Equal(t, true, third["alerted"])

	assert.Len(t, queue.jobs, 2)
}

func TestBroadcastEmergencyRecordsSentAlert(t *testing.T) {
	db := testDB(t)
	store := alerts.NewStore(db)

	ctx, body := jsonRequest(t, BroadcastEmergency(store), map[string]any{
		"region": "Sector 12", "message": "Stay indoors until further notice.",
	})

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "nic-sms-gateway", body["channel"])

	rec, err := store.Get(body["alert_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, dbpkg.AlertSent, rec.Status)
	assert.Equal(t, "Severe", rec.Severity)
	require.NotNil(t, rec.DispatchedAt)
}

func TestBroadcastEmergencyRequiresFields(t *testing.T) {
	db := testDB(t)
	store := alerts.NewStore(db)

	ctx, body := jsonRequest(t, BroadcastEmergency(store), map[string]any{"region": "Sector 12"})

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "BAD_REQUEST", body["code"])
}
