package repository

import (
	"context"
	"errors"

	"partsreserve/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsRepository interface {
	GetOrCreate(ctx context.Context, defaults model.Settings) (*model.Settings, error)
	Save(ctx context.Context, settings *model.Settings) error
}

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetOrCreate returns the settings row, inserting defaults on first read.
// Concurrent first reads all succeed: the insert is a no-op for the losers.
func (r *settingsRepository) GetOrCreate(ctx context.Context, defaults model.Settings) (*model.Settings, error) {
	var settings model.Settings
	err := GetDB(ctx, r.db).Where("id = ?", defaults.ID).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := r.insertDefaults(ctx, defaults); err != nil {
		return nil, err
	}
	if err := GetDB(ctx, r.db).Where("id = ?", defaults.ID).First(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) insertDefaults(ctx context.Context, defaults model.Settings) error {
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error
}

func (r *settingsRepository) Save(ctx context.Context, settings *model.Settings) error {
	return GetDB(ctx, r.db).Save(settings).Error
}
