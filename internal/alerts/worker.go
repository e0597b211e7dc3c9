package alerts

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/notify"
)

var (
	alertsDispatched *prometheus.CounterVec
	alertDeliveries  *prometheus.CounterVec
)

// InitMetrics registers the dispatch pipeline counters. Call once at
// process start.
func InitMetrics() {
	alertsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aqgateway",
			Name:      "alerts_dispatched_total",
			Help:      "Alert jobs finalized, by terminal status.",
		},
		[]string{"status"},
	)
	alertDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aqgateway",
			Name:      "alert_deliveries_total",
			Help:      "Per-recipient delivery attempts, by outcome.",
		},
		[]string{"outcome"},
	)
	prometheus.MustRegister(alertsDispatched, alertDeliveries)
}

// Worker drains the dispatch queue: for each job it fans out one email
// per recipient department, tolerates per-recipient failures, and
// finalizes the alert record exactly once. Delivery is at-least-once;
// a redelivered job may re-send to recipients that already got the
// first attempt.
type Worker struct {
	queue    Queue
	store    *Store
	notifier notify.Notifier

	// emails maps department names to addresses.
	emails   map[string]string
	fallback string
}

func NewWorker(queue Queue, store *Store, notifier notify.Notifier, emails map[string]string) *Worker {
	return &Worker{
		queue:    queue,
		store:    store,
		notifier: notifier,
		emails:   emails,
		fallback: "alert-fallback@example.com",
	}
}

// RunForever consumes jobs until ctx is cancelled. Job-level failures
// are logged and retried by the queue; they never crash the process.
func (w *Worker) RunForever(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		d, err := w.queue.Dequeue(ctx)
		if err == ErrEmpty {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("alert worker: dequeue error: %v", err)
			continue
		}

		w.Process(ctx, d)
	}
}

// Process handles one delivery end to end, including the ack/retry
// decision. Exported so tests can drive single jobs without the loop.
func (w *Worker) Process(ctx context.Context, d *Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("alert worker: panic on alert %s: %v", d.Job.AlertID, r)
			if err := w.queue.Retry(ctx, d); err != nil {
				log.Printf("alert worker: retry after panic failed: %v", err)
			}
		}
	}()

	sent := w.fanOut(ctx, d.Job)

	status := dbpkg.AlertSent
	if sent == 0 {
		status = dbpkg.AlertFailed
	}

	if err := w.store.MarkDispatched(d.Job.AlertID, status); err != nil {
		if err == ErrNotPending {
			// Redelivered job whose record is already terminal: the
			// emails above were the at-least-once duplicates, nothing
			// left to record.
			if ackErr := w.queue.Ack(ctx, d); ackErr != nil {
				log.Printf("alert worker: ack failed for %s: %v", d.Job.AlertID, ackErr)
			}
			return
		}
		// Store unavailable: leave the record PENDING and let the
		// queue redeliver the whole job.
		log.Printf("alert worker: finalize %s failed: %v", d.Job.AlertID, err)
		if retryErr := w.queue.Retry(ctx, d); retryErr != nil {
			log.Printf("alert worker: retry failed for %s: %v", d.Job.AlertID, retryErr)
		}
		return
	}

	if alertsDispatched != nil {
		alertsDispatched.WithLabelValues(status).Inc()
	}

	if status == dbpkg.AlertFailed {
		// Every recipient failed. The record is FAILED (terminal), but
		// the job goes back for another delivery round within its
		// attempt budget; the PENDING guard keeps the status stable.
		log.Printf("alert worker: all %d deliveries failed for alert %s (attempt %d)",
			len(d.Job.Recipients), d.Job.AlertID, d.Attempt)
		if err := w.queue.Retry(ctx, d); err != nil {
			log.Printf("alert worker: retry failed for %s: %v", d.Job.AlertID, err)
		}
		return
	}

	if err := w.queue.Ack(ctx, d); err != nil {
		log.Printf("alert worker: ack failed for %s: %v", d.Job.AlertID, err)
	}
}

// fanOut attempts delivery to every recipient independently and
// returns how many succeeded. One bad mailbox never blocks the rest.
func (w *Worker) fanOut(ctx context.Context, job Job) int {
	sent := 0
	for _, department := range job.Recipients {
		if err := w.deliver(ctx, job, department); err != nil {
			log.Printf("alert worker: delivery to %q failed for alert %s: %v", department, job.AlertID, err)
			if alertDeliveries != nil {
				alertDeliveries.WithLabelValues("failed").Inc()
			}
			continue
		}
		sent++
		if alertDeliveries != nil {
			alertDeliveries.WithLabelValues("sent").Inc()
		}
	}
	return sent
}

func (w *Worker) deliver(ctx context.Context, job Job, department string) error {
	to, ok := w.emails[department]
	if !ok || to == "" {
		to = w.fallback
	}

	html, err := notify.RenderAlertEmail(notify.AlertEmail{
		Department:  department,
		Title:       job.Title,
		RegionName:  job.RegionName,
		Category:    job.Category,
		Pollutant:   job.Pollutant,
		Forecast:    job.Forecast,
		RiskFactors: job.RiskFactors,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	subject := fmt.Sprintf("[%s] %s - %s", job.Category, job.Title, job.RegionName)
	return w.notifier.Send(ctx, to, subject, html)
}
