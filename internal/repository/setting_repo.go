package repository

import (
	"errors"

	"github.com/damoang/recipe-cms/internal/common"
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository key/value settings access
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the setting for key, or common.ErrNotFound
func (r *SettingRepository) Get(key string) (*domain.Setting, error) {
	var setting domain.Setting
	err := r.db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return &setting, nil
}

// Upsert inserts or replaces a setting value
func (r *SettingRepository) Upsert(key, value string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "setting_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
	}).Create(&domain.Setting{Key: key, Value: value}).Error
}

// Delete removes a setting
func (r *SettingRepository) Delete(key string) error {
	return r.db.Where("setting_key = ?", key).Delete(&domain.Setting{}).Error
}
