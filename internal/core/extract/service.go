package extract

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/infrastructure/persistence"
	"sicupang-ai/internal/pkg/common"
)

// BatchExtractor 批次拆解介面（由 Extractor 實作）
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, foodNames []string) (map[string]*ExtractionResult, error)
}

// BreakdownRecorder 換算與寫入介面（由 Recorder 實作）
type BreakdownRecorder interface {
	Record(ctx context.Context, item FoodItem, bd *RecipeBreakdown, familyID uint, date time.Time, fromCache bool) []Outcome
}

// Service 批次處理協調器：快取命中直接換算，未命中整批一次拆解
type Service struct {
	cacheRepo persistence.RecipeCacheRepository
	extractor BatchExtractor
	recorder  BreakdownRecorder
	pool      *queue.Manager
}

// NewService 創建協調器
func NewService(cacheRepo persistence.RecipeCacheRepository, extractor BatchExtractor, recorder BreakdownRecorder, pool *queue.Manager) *Service {
	return &Service{
		cacheRepo: cacheRepo,
		extractor: extractor,
		recorder:  recorder,
		pool:      pool,
	}
}

// lookupResult 單筆快取查詢結果
type lookupResult struct {
	index int
	entry *persistence.RecipeCache
}

// ProcessBatch 處理一批食物回報，回傳與輸入順序對齊的結果清單。
// 單筆失敗不影響其他筆；全數失敗仍是正常回應。
func (s *Service) ProcessBatch(ctx context.Context, familyID uint, items []FoodItem, date time.Time) [][]Outcome {
	results := make([][]Outcome, len(items))

	// 名稱修剪
	trimmed := make([]FoodItem, len(items))
	for i, item := range items {
		trimmed[i] = FoodItem{
			FoodName: strings.TrimSpace(item.FoodName),
			Portion:  item.Portion,
		}
	}

	// 階段一：並行查詢配方快取
	lookupCh := make(chan lookupResult, len(trimmed))
	for i, item := range trimmed {
		i, item := i, item
		task := func(taskCtx context.Context) (interface{}, error) {
			return s.cacheRepo.FindByName(taskCtx, item.FoodName)
		}
		resultCh, err := s.pool.Enqueue(ctx, task)
		if err != nil {
			common.LogWarn("快取查詢分派失敗",
				zap.String("food_name", item.FoodName),
				zap.Error(err),
			)
			lookupCh <- lookupResult{index: i}
			continue
		}
		go func() {
			select {
			case res := <-resultCh:
				if res.Error != nil {
					// 快取查詢失敗視為未命中，交給拆解流程
					common.LogWarn("快取查詢失敗",
						zap.String("food_name", item.FoodName),
						zap.Error(res.Error),
					)
					lookupCh <- lookupResult{index: i}
					return
				}
				entry, _ := res.Value.(*persistence.RecipeCache)
				lookupCh <- lookupResult{index: i, entry: entry}
			case <-ctx.Done():
				lookupCh <- lookupResult{index: i}
			}
		}()
	}

	cached := make([]*persistence.RecipeCache, len(trimmed))
	for range trimmed {
		res := <-lookupCh
		cached[res.index] = res.entry
	}

	// 階段二：命中者直接換算；未命中者收集後整批一次拆解
	missNames := make([]string, 0, len(trimmed))
	seen := make(map[string]bool, len(trimmed))
	for i, item := range trimmed {
		if cached[i] != nil {
			entry := cached[i]
			bd := &RecipeBreakdown{
				DishName:        entry.DishName,
				VectorRecordID:  entry.VectorRecordID,
				StandardPortion: entry.StandardPortion,
				Entries:         entry.Breakdown,
			}
			results[i] = s.recorder.Record(ctx, item, bd, familyID, date, true)
			continue
		}
		if item.FoodName != "" && !seen[item.FoodName] {
			seen[item.FoodName] = true
			missNames = append(missNames, item.FoodName)
		}
	}

	var extractions map[string]*ExtractionResult
	if len(missNames) > 0 {
		var err error
		extractions, err = s.extractor.ExtractBatch(ctx, missNames)
		if err != nil {
			common.LogError("批次拆解失敗", zap.Error(err))
		}
	}

	// 階段三：將未命中者導向換算或終態失敗
	for i, item := range trimmed {
		if results[i] != nil {
			continue
		}
		extraction := extractions[item.FoodName]
		if extraction == nil {
			results[i] = []Outcome{{
				FoodName: item.FoodName,
				Status:   StatusNoSimilarRecipe,
			}}
			continue
		}
		if extraction.Status != "" {
			results[i] = []Outcome{{
				FoodName: item.FoodName,
				Status:   extraction.Status,
			}}
			continue
		}
		results[i] = s.recorder.Record(ctx, item, extraction.Breakdown, familyID, date, false)
	}

	return results
}
