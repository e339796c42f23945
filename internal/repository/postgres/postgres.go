package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiongtingping/wenpai-sub001/internal/models"
)

// StatusRepository is the durable payment-status store backed by PostgreSQL.
// It is a plain keyed map of checkout id to status record: reads and writes
// are honest, last writer wins, and no cross-record transaction is offered.
// The single-writer-per-checkout discipline is enforced by the monitor
// registry, not here.
type StatusRepository struct {
	db *gorm.DB
}

// New creates a StatusRepository using the provided GORM connection.
func New(db *gorm.DB) *StatusRepository {
	return &StatusRepository{
		db,
	}
}

// Get retrieves the record for a checkout id. A missing record is not an
// error; it returns (nil, nil).
func (r *StatusRepository) Get(ctx context.Context, checkoutID string) (*models.StatusRecord, error) {
	var record models.StatusRecord
	err := r.db.WithContext(ctx).Where("checkout_id = ?", checkoutID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Set replaces the whole record for its checkout id, inserting it if absent.
func (r *StatusRepository) Set(ctx context.Context, record *models.StatusRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(record).Error
}

// Remove deletes the record for a checkout id. Removing an absent record is
// a no-op.
func (r *StatusRepository) Remove(ctx context.Context, checkoutID string) error {
	return r.db.WithContext(ctx).
		Where("checkout_id = ?", checkoutID).
		Delete(&models.StatusRecord{}).Error
}

// ListActive returns every record whose state is non-terminal.
func (r *StatusRepository) ListActive(ctx context.Context) ([]models.StatusRecord, error) {
	terminal := []models.LifecycleState{
		models.StatePaid,
		models.StateFailed,
		models.StateExpired,
		models.StateCancelled,
	}
	var records []models.StatusRecord
	if err := r.db.WithContext(ctx).Where("state NOT IN ?", terminal).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
