package extract

import (
	"github.com/shopspring/decimal"

	"sicupang-ai/internal/infrastructure/persistence"
)

// 單筆食材成分的解析結果狀態
const (
	StatusSuccessFromCache      = "success-from-cache"
	StatusSuccessFromExtraction = "success-from-extraction"
	StatusNoSimilarRecipe       = "failed:no_similar_recipe_found"
	StatusMalformedModelOutput  = "failed:malformed_model_output"
	StatusZeroStandardPortion   = "failed:zero_standard_portion"
	StatusUnresolvedIngredient  = "failed:unresolved_ingredient"
	StatusPersistenceFailure    = "failed:persistence_failure"
)

// FoodItem 輸入的單筆食物回報
type FoodItem struct {
	FoodName string `json:"food_name" binding:"required"`
	Portion  int    `json:"portion" binding:"required,gt=0"`
}

// Outcome 單一食材成分的處理結果
type Outcome struct {
	FoodName       string           `json:"food_name"`
	IngredientName string           `json:"ingredient_name,omitempty"`
	IngredientID   *uint            `json:"ingredient_id,omitempty"`
	LocalQuantity  *decimal.Decimal `json:"local_quantity,omitempty"`
	Status         string           `json:"status"`
}

// RecipeBreakdown 一道料理的成分拆解
type RecipeBreakdown struct {
	DishName        string
	VectorRecordID  string
	StandardPortion decimal.Decimal
	Entries         []persistence.BreakdownEntry
}

// ExtractionResult 單一料理名稱的解析結果：成功時帶 Breakdown，失敗時帶終態狀態
type ExtractionResult struct {
	Breakdown *RecipeBreakdown
	Status    string
}
