// Package ledger owns the business credit balance. All mutations go
// through conditional updates inside a single transaction, so a balance
// can never go negative and two concurrent calls can never both spend
// the same credits.
package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"

	dbpkg "aqgateway/internal/db"
)

var (
	// ErrNoAccount means the principal has no business account at all.
	ErrNoAccount = errors.New("no business account")
	// ErrInsufficientCredits means the account exists but the balance
	// does not cover the requested amount.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrDuplicateReference means a credit grant with the same external
	// payment reference was already applied.
	ErrDuplicateReference = errors.New("duplicate credit reference")
	// ErrInvalidAmount rejects negative amounts outright.
	ErrInvalidAmount = errors.New("amount must be non-negative")
)

// Ledger meters prepaid credits for business accounts.
type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// CheckAndConsume atomically charges amount against the account owned
// by userID and appends the matching usage log row. The decrement is a
// conditional UPDATE (credits >= amount), not a read-then-write, so
// concurrent calls are linearized by the row lock: with balance 100 and
// two concurrent 60-credit calls, exactly one succeeds.
//
// Returns the remaining balance after the charge.
func (l *Ledger) CheckAndConsume(userID uint, amount int64, operation, resource string) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}

	var remaining int64
	err := l.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&dbpkg.Business{}).
			Where("user_id = ? AND credits >= ?", userID, amount).
			Update("credits", gorm.Expr("credits - ?", amount))
		if res.Error != nil {
			return res.Error
		}

		var biz dbpkg.Business
		if err := tx.Where("user_id = ?", userID).First(&biz).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoAccount
			}
			return err
		}

		if res.RowsAffected == 0 {
			// Account exists but the conditional update didn't match.
			remaining = biz.Credits
			return ErrInsufficientCredits
		}

		remaining = biz.Credits
		entry := dbpkg.UsageLog{
			BusinessID: biz.ID,
			Amount:     amount,
			Operation:  operation,
			Resource:   resource,
			OccurredAt: time.Now().UTC(),
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return remaining, err
	}
	return remaining, nil
}

// Credit increments the account balance, keyed by the external payment
// reference. Replayed webhooks insert the same reference again, hit the
// unique index, and grant nothing.
func (l *Ledger) Credit(userID uint, amount int64, reference string) error {
	if amount < 0 {
		return ErrInvalidAmount
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		var biz dbpkg.Business
		if err := tx.Where("user_id = ?", userID).First(&biz).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoAccount
			}
			return err
		}

		var count int64
		if err := tx.Model(&dbpkg.CreditGrant{}).Where("reference = ?", reference).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateReference
		}

		grant := dbpkg.CreditGrant{
			BusinessID: biz.ID,
			Amount:     amount,
			Reference:  reference,
		}
		if err := tx.Create(&grant).Error; err != nil {
			return err
		}

		return tx.Model(&dbpkg.Business{}).
			Where("id = ?", biz.ID).
			Update("credits", gorm.Expr("credits + ?", amount)).Error
	})
}

// Balance returns the current balance and plan for the account owned by
// userID.
func (l *Ledger) Balance(userID uint) (int64, string, error) {
	var biz dbpkg.Business
	if err := l.db.Where("user_id = ?", userID).First(&biz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, "", ErrNoAccount
		}
		return 0, "", err
	}
	return biz.Credits, biz.Plan, nil
}
