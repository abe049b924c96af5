package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"sicupang-ai/internal/pkg/common"
)

// CatalogName 食材主檔名稱投影
type CatalogName struct {
	ID   uint   `gorm:"column:id_pangan"`
	Name string `gorm:"column:nama_pangan"`
}

// CatalogRepository 食材主檔查詢介面
type CatalogRepository interface {
	// ListNames 取回全部食材名稱，依主鍵排序
	ListNames(ctx context.Context) ([]CatalogName, error)
	// FindByID 依主鍵取回單筆食材
	FindByID(ctx context.Context, id uint) (*FoodIngredient, error)
}

// RecipeCacheRepository 配方快取存取介面
type RecipeCacheRepository interface {
	// FindByName 以修剪後的料理名稱精確查找，未命中回傳 (nil, nil)
	FindByName(ctx context.Context, dishName string) (*RecipeCache, error)
	// Create 寫入新快取；standar_porsi 必須為正
	Create(ctx context.Context, entry *RecipeCache) error
}

// ConsumptionRepository 攝取紀錄寫入介面
type ConsumptionRepository interface {
	Insert(ctx context.Context, record *HouseholdFood) error
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 建立食材主檔 repository
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ListNames(ctx context.Context) ([]CatalogName, error) {
	var rows []CatalogName
	err := r.db.WithContext(ctx).
		Model(&FoodIngredient{}).
		Select("id_pangan", "nama_pangan").
		Order("id_pangan").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list ingredient names: %w", err)
	}
	return rows, nil
}

func (r *catalogRepository) FindByID(ctx context.Context, id uint) (*FoodIngredient, error) {
	var row FoodIngredient
	err := r.db.WithContext(ctx).First(&row, "id_pangan = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ingredient %d: %w", id, err)
	}
	return &row, nil
}

type recipeCacheRepository struct {
	db *gorm.DB
}

// NewRecipeCacheRepository 建立配方快取 repository
func NewRecipeCacheRepository(db *gorm.DB) RecipeCacheRepository {
	return &recipeCacheRepository{db: db}
}

func (r *recipeCacheRepository) FindByName(ctx context.Context, dishName string) (*RecipeCache, error) {
	var row RecipeCache
	err := r.db.WithContext(ctx).First(&row, "nama_olahan = ?", strings.TrimSpace(dishName)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recipe cache %q: %w", dishName, err)
	}
	return &row, nil
}

func (r *recipeCacheRepository) Create(ctx context.Context, entry *RecipeCache) error {
	if entry.StandardPortion.Sign() <= 0 {
		return common.NewValidationError("standar_porsi 必須為正數")
	}
	entry.DishName = strings.TrimSpace(entry.DishName)
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create recipe cache %q: %w", entry.DishName, err)
	}
	return nil
}

type consumptionRepository struct {
	db *gorm.DB
}

// NewConsumptionRepository 建立攝取紀錄 repository
func NewConsumptionRepository(db *gorm.DB) ConsumptionRepository {
	return &consumptionRepository{db: db}
}

func (r *consumptionRepository) Insert(ctx context.Context, record *HouseholdFood) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("insert household food record: %w", err)
	}
	return nil
}
