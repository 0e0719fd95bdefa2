package migration

import (
	"github.com/damoang/recipe-cms/internal/domain"
	"gorm.io/gorm"
)

// Run executes AutoMigrate for the editorial tables and seeds default taxonomy if empty.
func Run(db *gorm.DB) error {
	// 1. AutoMigrate - 테이블 없으면 생성, 있으면 skip
	if err := db.AutoMigrate(
		&domain.Category{},
		&domain.Tag{},
		&domain.Post{},
		&domain.ContentVersion{},
		&domain.TransitionRecord{},
		&domain.Setting{},
	); err != nil {
		return err
	}

	// 2. Seed - categories 테이블이 비어있을 때만 기본 분류 삽입
	var count int64
	if err := db.Model(&domain.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return seedCategories(db)
	}
	return nil
}

func seedCategories(db *gorm.DB) error {
	categories := []domain.Category{
		{Name: "Recipes", Slug: "recipes"},
		{Name: "Weeknight Dinners", Slug: "weeknight-dinners"},
		{Name: "Baking", Slug: "baking"},
		{Name: "Reviews", Slug: "reviews"},
		{Name: "Kitchen Guides", Slug: "kitchen-guides"},
	}
	return db.Create(&categories).Error
}
