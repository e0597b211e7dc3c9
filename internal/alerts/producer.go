package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	dbpkg "aqgateway/internal/db"
	"aqgateway/internal/risk"
)

var (
	// ErrBelowThreshold means the assessment never reached High, so no
	// alert is warranted.
	ErrBelowThreshold = errors.New("risk below alert threshold")
	// ErrRegionCoolingDown means an alert for the region was created
	// inside the cooldown window; the producer refuses duplicates.
	ErrRegionCoolingDown = errors.New("region alerted recently")
)

// Producer turns a critical risk assessment into a PENDING alert record
// plus a queued dispatch job. Enqueue returns as soon as the job is on
// the queue; delivery happens in the worker, never on the request path.
type Producer struct {
	store    *Store
	queue    Queue
	cooldown time.Duration
}

func NewProducer(store *Store, queue Queue, cooldown time.Duration) *Producer {
	return &Producer{store: store, queue: queue, cooldown: cooldown}
}

// Produce creates and enqueues an alert for a region whose assessment
// is High or above. If enqueueing fails the record stays PENDING so an
// operator can re-enqueue it; nothing is rolled back.
func (p *Producer) Produce(ctx context.Context, region, title, message, forecast string, assessment risk.Assessment, recipients []string) (*dbpkg.Alert, error) {
	if assessment.Category < risk.High {
		return nil, ErrBelowThreshold
	}
	if len(recipients) == 0 {
		return nil, errors.New("no recipients")
	}

	if p.cooldown > 0 {
		latest, err := p.store.LatestForRegion(region)
		if err != nil {
			return nil, err
		}
		if latest != nil && time.Since(latest.CreatedAt) < p.cooldown {
			return nil, ErrRegionCoolingDown
		}
	}

	alert := &dbpkg.Alert{
		ID:         uuid.NewString(),
		Region:     region,
		Title:      title,
		Message:    message,
		Severity:   assessment.CategoryLabel,
		Recipients: datatypes.NewJSONSlice(recipients),
		Status:     dbpkg.AlertPending,
	}
	if err := p.store.Create(alert); err != nil {
		return nil, err
	}

	job := Job{
		AlertID:     alert.ID,
		Recipients:  recipients,
		Category:    assessment.CategoryLabel,
		Pollutant:   assessment.DominantPollutant,
		RiskFactors: assessment.RiskFactors,
		Forecast:    forecast,
		RegionName:  region,
		Title:       title,
	}
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return alert, fmt.Errorf("alert %s created but not enqueued: %w", alert.ID, err)
	}

	return alert, nil
}
