package catalog

import (
	"context"
	"math"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"go.uber.org/zap"

	"sicupang-ai/internal/infrastructure/persistence"
	"sicupang-ai/internal/pkg/common"
)

// Resolver 以模糊比對將自由文字食材名稱對應到食材主檔
type Resolver struct {
	repo      persistence.CatalogRepository
	threshold int
	metric    *metrics.Levenshtein

	mu     sync.Mutex
	names  []persistence.CatalogName
	loaded bool
}

// NewResolver 創建食材名稱解析器；threshold 為 0-100 的接受門檻
func NewResolver(repo persistence.CatalogRepository, threshold int) *Resolver {
	return &Resolver{
		repo:      repo,
		threshold: threshold,
		metric:    metrics.NewLevenshtein(),
	}
}

// normalize 名稱正規化：小寫並壓縮空白
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// score 計算兩名稱的相似度（0-100）
func (r *Resolver) score(a, b string) int {
	return int(math.Round(strutil.Similarity(a, b, r.metric) * 100))
}

// load 惰性載入全部食材名稱，進程內只做一次
func (r *Resolver) load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}

	names, err := r.repo.ListNames(ctx)
	if err != nil {
		return err
	}
	r.names = names
	r.loaded = true

	common.LogInfo("食材主檔名稱已載入",
		zap.Int("count", len(names)),
	)
	return nil
}

// Resolve 解析原始食材名稱；查無符合門檻的候選時回傳 (nil, nil)
func (r *Resolver) Resolve(ctx context.Context, rawName string) (*persistence.FoodIngredient, error) {
	if err := r.load(ctx); err != nil {
		return nil, err
	}

	target := normalize(rawName)
	if target == "" {
		return nil, nil
	}

	r.mu.Lock()
	bestID := uint(0)
	bestScore := -1
	found := false
	for _, candidate := range r.names {
		s := r.score(target, normalize(candidate.Name))
		// 同分時保留先遇到的候選
		if s > bestScore {
			bestScore = s
			bestID = candidate.ID
			found = true
		}
	}
	r.mu.Unlock()

	if !found || bestScore < r.threshold {
		common.LogDebug("食材名稱無匹配",
			zap.String("raw", rawName),
			zap.Int("best_score", bestScore),
			zap.Int("threshold", r.threshold),
		)
		return nil, nil
	}

	ingredient, err := r.repo.FindByID(ctx, bestID)
	if err != nil {
		return nil, err
	}
	if ingredient != nil {
		common.LogDebug("食材名稱已匹配",
			zap.String("raw", rawName),
			zap.String("matched", ingredient.Name),
			zap.Int("score", bestScore),
		)
	}
	return ingredient, nil
}

// Invalidate 使名稱快取失效，下次 Resolve 會重新載入
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.names = nil
}
