package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/timmy/clearcut/internal/domain"
	"gorm.io/gorm"
)

// JobRecordRepository stores job records. Upsert is the only write path for
// status changes, shared by polling, provider callbacks and client reports.
type JobRecordRepository struct {
	db *gorm.DB
	// mu serializes writes within this process.
	mu sync.Mutex
}

// upsertColumns are the columns a snapshot can change. mirror_url is written
// only by SetMirrorURL.
var upsertColumns = []string{"format", "source", "mode", "status", "result_url", "error_message", "updated_at"}

// NewJobRecordRepository creates a new JobRecordRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *JobRecordRepository: repository instance bound to db.
func NewJobRecordRepository(db *gorm.DB) *JobRecordRepository {
	return &JobRecordRepository{db: db}
}

// Upsert inserts a record for the snapshot's job or merges the snapshot into
// the existing one. Status never moves backwards and never leaves done/failed.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - snap: observed job state.
//
// Returns:
//   - *domain.UpsertResult: the stored record after the merge and what changed.
//   - error: non-nil if the database operation fails.
func (r *JobRecordRepository) Upsert(ctx context.Context, snap domain.StatusSnapshot) (*domain.UpsertResult, error) {
	if snap.ID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		stored domain.JobRecord
		result domain.UpsertResult
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&stored, "id = ?", snap.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			stored = *domain.NewJobRecord(snap)
			result.Created = true
			result.Changed = true
			return tx.Create(&stored).Error
		case err != nil:
			return err
		}

		result.Previous = stored.Status
		if !stored.Apply(snap) {
			return nil
		}
		result.Changed = true
		return tx.Model(&stored).Select(upsertColumns).Updates(&stored).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job record %s: %w", snap.ID, err)
	}
	result.Record = &stored
	return &result, nil
}

// GetByID retrieves a job record by provider job ID.
// Returns domain.ErrNotFound when no record exists.
func (r *JobRecordRepository) GetByID(ctx context.Context, id string) (*domain.JobRecord, error) {
	var rec domain.JobRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// List returns every job record, newest first.
func (r *JobRecordRepository) List(ctx context.Context) ([]domain.JobRecord, error) {
	var records []domain.JobRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	return records, nil
}

// SetMirrorURL records where a finished result was copied to.
func (r *JobRecordRepository) SetMirrorURL(ctx context.Context, id, mirrorURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := r.db.WithContext(ctx).Model(&domain.JobRecord{}).
		Where("id = ?", id).
		Update("mirror_url", mirrorURL)
	if res.Error != nil {
		return fmt.Errorf("failed to set mirror url for %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
