package extract

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/infrastructure/persistence"
	"sicupang-ai/internal/pkg/common"
)

// IngredientResolver 食材名稱解析介面（由 catalog.Resolver 實作）
type IngredientResolver interface {
	Resolve(ctx context.Context, rawName string) (*persistence.FoodIngredient, error)
}

// Recorder 份量換算與攝取紀錄寫入
type Recorder struct {
	resolver    IngredientResolver
	consumption persistence.ConsumptionRepository
	recipeCache persistence.RecipeCacheRepository
	pool        *queue.Manager
}

// NewRecorder 創建 recorder
func NewRecorder(resolver IngredientResolver, consumption persistence.ConsumptionRepository, recipeCache persistence.RecipeCacheRepository, pool *queue.Manager) *Recorder {
	return &Recorder{
		resolver:    resolver,
		consumption: consumption,
		recipeCache: recipeCache,
		pool:        pool,
	}
}

// Record 將一道料理的成分拆解換算成家戶攝取紀錄。
// 每筆成分獨立成敗；新鮮拆解在處理完成後寫入配方快取（僅保留可解析成分）。
func (r *Recorder) Record(ctx context.Context, item FoodItem, bd *RecipeBreakdown, familyID uint, date time.Time, fromCache bool) []Outcome {
	successStatus := StatusSuccessFromExtraction
	if fromCache {
		successStatus = StatusSuccessFromCache
	}

	// 份數為零或負值時整道料理終止
	if bd.StandardPortion.Sign() <= 0 {
		return []Outcome{{
			FoodName: item.FoodName,
			Status:   StatusZeroStandardPortion,
		}}
	}

	portion := decimal.NewFromInt(int64(item.Portion))
	outcomes := make([]Outcome, 0, len(bd.Entries))
	resolved := make(persistence.BreakdownList, 0, len(bd.Entries))

	for _, entry := range bd.Entries {
		ingredientID, refWeight, canonicalName, ok := r.resolveEntry(ctx, item.FoodName, entry)
		if !ok {
			outcomes = append(outcomes, Outcome{
				FoodName:       item.FoodName,
				IngredientName: entry.IngredientName,
				Status:         StatusUnresolvedIngredient,
			})
			continue
		}

		// urt = 標準量 × 份數 ÷ 標準份數 ÷ 單位參考重量，四捨五入至小數兩位
		urt := entry.StandardQuantity.
			Mul(portion).
			Div(bd.StandardPortion).
			Div(refWeight).
			Round(2)

		entry.CatalogID = &ingredientID
		entry.ReferenceUnitWeight = refWeight
		resolved = append(resolved, entry)

		record := &persistence.HouseholdFood{
			IngredientID: ingredientID,
			FamilyID:     familyID,
			Quantity:     urt,
			Date:         date,
		}
		_, err := r.pool.Do(ctx, func(taskCtx context.Context) (interface{}, error) {
			return nil, r.consumption.Insert(taskCtx, record)
		})
		if err != nil {
			common.LogError("攝取紀錄寫入失敗",
				zap.String("food_name", item.FoodName),
				zap.String("ingredient", canonicalName),
				zap.Error(err),
			)
			outcomes = append(outcomes, Outcome{
				FoodName:       item.FoodName,
				IngredientName: canonicalName,
				IngredientID:   &ingredientID,
				Status:         StatusPersistenceFailure,
			})
			continue
		}

		outcomes = append(outcomes, Outcome{
			FoodName:       item.FoodName,
			IngredientName: canonicalName,
			IngredientID:   &ingredientID,
			LocalQuantity:  &urt,
			Status:         successStatus,
		})
	}

	// 新鮮拆解寫入配方快取；寫入失敗只記錄，不影響已完成的結果
	if !fromCache && len(resolved) > 0 {
		cacheEntry := &persistence.RecipeCache{
			DishName:        bd.DishName,
			VectorRecordID:  bd.VectorRecordID,
			Breakdown:       resolved,
			StandardPortion: bd.StandardPortion,
		}
		if err := r.recipeCache.Create(ctx, cacheEntry); err != nil {
			common.LogWarn("配方快取寫入失敗",
				zap.String("dish", bd.DishName),
				zap.Error(err),
			)
		}
	}

	return outcomes
}

// resolveEntry 取得成分對應的主檔 ID 與單位參考重量；快取條目沿用既有對應
func (r *Recorder) resolveEntry(ctx context.Context, foodName string, entry persistence.BreakdownEntry) (uint, decimal.Decimal, string, bool) {
	if entry.Resolvable() {
		return *entry.CatalogID, entry.ReferenceUnitWeight, entry.IngredientName, true
	}

	ingredient, err := r.resolver.Resolve(ctx, entry.IngredientName)
	if err != nil {
		common.LogWarn("食材解析失敗",
			zap.String("food_name", foodName),
			zap.String("ingredient", entry.IngredientName),
			zap.Error(err),
		)
		return 0, decimal.Zero, "", false
	}
	if ingredient == nil || ingredient.ReferenceUnitWeight.IsZero() {
		return 0, decimal.Zero, "", false
	}
	return ingredient.ID, ingredient.ReferenceUnitWeight, ingredient.Name, true
}
