package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/resumerank/internal/domain/model"
)

// GormStore persists records in MySQL through gorm.
type GormStore struct {
	db       *gorm.DB
	settings settings
}

// OpenMySQL connects, migrates the schema and returns a store.
func OpenMySQL(dsn string, opts ...Option) (*GormStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: mysql dsn is empty", ErrInvalidRecord)
	}
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	s := NewGormStore(db, opts...)
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	return &GormStore{db: db, settings: newSettings(opts)}
}

// Migrate creates or updates the tables.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&jobPostingRow{}, &resumeRow{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *GormStore) CreateJobPosting(ctx context.Context, p model.JobPosting) (model.JobPosting, error) {
	row := postingToRow(p)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.JobPosting{}, mapGormErr("create job posting", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) CreateResume(ctx context.Context, r model.ResumeRecord) (model.ResumeRecord, error) {
	row := resumeToRow(r)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.ResumeRecord{}, mapGormErr("create resume", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) UpdateResume(ctx context.Context, id string, upd model.ResumeUpdate) (model.ResumeRecord, error) {
	var out model.ResumeRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row resumeRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return mapGormErr("load resume", err)
		}
		rec := row.toModel()
		upd.Apply(&rec, s.settings.now())
		next := resumeToRow(rec)
		next.Seq = row.Seq

		res := tx.Model(&resumeRow{}).Where("id = ?", id).Select(terminalColumns).Updates(&next)
		if res.Error != nil {
			return mapGormErr("update resume", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: resume %s", ErrNotFound, id)
		}
		out = next.toModel()
		return nil
	})
	if err != nil {
		return model.ResumeRecord{}, err
	}
	return out, nil
}

func (s *GormStore) ListResumes(ctx context.Context, ownerID string) ([]model.ResumeRecord, error) {
	var rows []resumeRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", ownerID).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, mapGormErr("list resumes", err)
	}
	return rowsToModels(rows), nil
}

func (s *GormStore) GetResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	var row resumeRow
	if err := s.db.WithContext(ctx).Where("user_id = ? AND id = ?", ownerID, id).First(&row).Error; err != nil {
		return model.ResumeRecord{}, mapGormErr("get resume", err)
	}
	return row.toModel(), nil
}

func (s *GormStore) DeleteResume(ctx context.Context, ownerID, id string) (model.ResumeRecord, error) {
	var out model.ResumeRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row resumeRow
		if err := tx.Where("user_id = ? AND id = ?", ownerID, id).First(&row).Error; err != nil {
			return mapGormErr("get resume", err)
		}
		if err := tx.Delete(&resumeRow{}, row.Seq).Error; err != nil {
			return mapGormErr("delete resume", err)
		}
		out = row.toModel()
		return nil
	})
	if err != nil {
		return model.ResumeRecord{}, err
	}
	return out, nil
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mapGormErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}
