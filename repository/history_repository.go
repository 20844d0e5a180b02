package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"schls/model"
)

// HistoryRepository stores download history.
type HistoryRepository interface {
	Create(ctx context.Context, record *model.DownloadRecord) error
	UpdateStatus(ctx context.Context, id, status, outputPath, errMsg string) error
	Get(ctx context.Context, id string) (*model.DownloadRecord, error)
	List(ctx context.Context, limit int) ([]*model.DownloadRecord, error)
}

// gormHistoryRepository is the GORM implementation.
type gormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a GORM-backed history repository.
func NewGormHistoryRepository(db *gorm.DB) HistoryRepository {
	return &gormHistoryRepository{db: db}
}

func (r *gormHistoryRepository) Create(ctx context.Context, record *model.DownloadRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateStatus moves a record to status; outputPath and errMsg are written
// only when non-empty.
func (r *gormHistoryRepository) UpdateStatus(ctx context.Context, id, status, outputPath, errMsg string) error {
	updates := map[string]interface{}{"status": status}
	if outputPath != "" {
		updates["output_path"] = outputPath
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	res := r.db.WithContext(ctx).Model(&model.DownloadRecord{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Get returns nil, nil when id is unknown.
func (r *gormHistoryRepository) Get(ctx context.Context, id string) (*model.DownloadRecord, error) {
	var record model.DownloadRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// List returns the newest records first.
func (r *gormHistoryRepository) List(ctx context.Context, limit int) ([]*model.DownloadRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*model.DownloadRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
