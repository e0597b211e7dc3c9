package alerts

import (
	"errors"
	"time"

	"gorm.io/gorm"

	dbpkg "aqgateway/internal/db"
)

// ErrNotPending means a terminal-status write found no PENDING row:
// either the alert does not exist or it was already finalized.
var ErrNotPending = errors.New("alert is not pending")

// Store persists alert records. Status transitions are owned by the
// dispatch worker; everything else only reads.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Create(alert *dbpkg.Alert) error {
	return s.db.Create(alert).Error
}

func (s *Store) Get(id string) (*dbpkg.Alert, error) {
	var alert dbpkg.Alert
	if err := s.db.First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

// MarkDispatched writes the terminal status exactly once. The PENDING
// guard keeps a redelivered job from resurrecting or flipping a record
// that already reached SENT or FAILED.
func (s *Store) MarkDispatched(id, status string) error {
	now := time.Now().UTC()
	res := s.db.Model(&dbpkg.Alert{}).
		Where("id = ? AND status = ?", id, dbpkg.AlertPending).
		Updates(map[string]interface{}{
			"status":        status,
			"dispatched_at": &now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

// Recent returns the newest n alerts for the government listing.
func (s *Store) Recent(n int) ([]dbpkg.Alert, error) {
	var out []dbpkg.Alert
	err := s.db.Order("created_at DESC").Limit(n).Find(&out).Error
	return out, err
}

// LatestForRegion returns the most recent alert for a region, or nil.
func (s *Store) LatestForRegion(region string) (*dbpkg.Alert, error) {
	var alert dbpkg.Alert
	err := s.db.Where("region = ?", region).Order("created_at DESC").First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
