package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sicupang-ai/internal/core/ai/provider"
	"sicupang-ai/internal/core/embedding"
	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/core/vector"
	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/infrastructure/persistence"
	"sicupang-ai/internal/pkg/common"
)

// Generator 生成模型呼叫介面（由 AI 服務實作）
type Generator interface {
	Generate(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

// Extractor 批次 RAG 食材拆解器：向量檢索取回相似配方，整批一次送交生成模型
type Extractor struct {
	gen      Generator
	embedder embedding.Embedder
	index    vector.Index
	pool     *queue.Manager
	config   *config.Config
}

// NewExtractor 創建拆解器
func NewExtractor(gen Generator, embedder embedding.Embedder, index vector.Index, pool *queue.Manager, cfg *config.Config) *Extractor {
	return &Extractor{
		gen:      gen,
		embedder: embedder,
		index:    index,
		pool:     pool,
		config:   cfg,
	}
}

// retrievedDish 單一料理的檢索結果
type retrievedDish struct {
	FoodName string
	RecordID string
	Title    string
	Content  string
}

// dishAnalysis 模型輸出中單一料理的拆解
type dishAnalysis struct {
	DishName        string          `json:"nama_olahan"`
	RecordID        string          `json:"resep_id"`
	StandardPortion decimal.Decimal `json:"standar_porsi"`
	Ingredients     []struct {
		Name     string          `json:"nama_bahan"`
		Quantity decimal.Decimal `json:"jumlah_standar"`
		Unit     string          `json:"satuan"`
	} `json:"bahan"`
}

// modelOutput 模型輸出的整體結構
type modelOutput struct {
	Analyses []dishAnalysis `json:"analisis"`
}

// 主食類詞彙：檢索前自查詢文字剔除，拆解後用於判斷是否需補上主食成分
var stapleWords = []string{"nasi", "lontong", "ketupat", "bubur"}

// carbWords 任一出現即視為拆解已含主要碳水成分
var carbWords = []string{"nasi", "beras", "lontong", "ketupat", "bubur", "mie", "bihun", "kentang", "singkong", "jagung"}

// toTasteLabels 「適量」類單位標籤
var toTasteLabels = map[string]bool{
	"secukupnya": true,
	"sejumput":   true,
	"to taste":   true,
}

// ExtractBatch 對一批料理名稱做向量檢索與單次生成呼叫，回傳每個名稱的終態結果
func (e *Extractor) ExtractBatch(ctx context.Context, foodNames []string) (map[string]*ExtractionResult, error) {
	results := make(map[string]*ExtractionResult, len(foodNames))
	if len(foodNames) == 0 {
		return results, nil
	}

	// 階段一：逐一檢索，經由 worker pool 並行分派
	type retrievalOutcome struct {
		name  string
		dish  *retrievedDish
		err   error
	}
	retrievalCh := make(chan retrievalOutcome, len(foodNames))
	for _, name := range foodNames {
		name := name
		task := func(taskCtx context.Context) (interface{}, error) {
			return e.retrieve(taskCtx, name)
		}
		resultCh, err := e.pool.Enqueue(ctx, task)
		if err != nil {
			retrievalCh <- retrievalOutcome{name: name, err: err}
			continue
		}
		go func() {
			select {
			case res := <-resultCh:
				dish, _ := res.Value.(*retrievedDish)
				retrievalCh <- retrievalOutcome{name: name, dish: dish, err: res.Error}
			case <-ctx.Done():
				retrievalCh <- retrievalOutcome{name: name, err: ctx.Err()}
			}
		}()
	}

	var retrieved []retrievedDish
	for i := 0; i < len(foodNames); i++ {
		out := <-retrievalCh
		if out.err != nil {
			common.LogWarn("配方檢索失敗",
				zap.String("food_name", out.name),
				zap.Error(out.err),
			)
			results[out.name] = &ExtractionResult{Status: StatusNoSimilarRecipe}
			continue
		}
		if out.dish == nil {
			results[out.name] = &ExtractionResult{Status: StatusNoSimilarRecipe}
			continue
		}
		retrieved = append(retrieved, *out.dish)
	}

	if len(retrieved) == 0 {
		return results, nil
	}

	// 階段二：整批一次生成呼叫
	resp, err := e.gen.Generate(ctx, &provider.Request{
		System: systemInstruction,
		Prompt: e.buildPrompt(retrieved),
	})
	if err != nil {
		common.LogError("批次拆解生成失敗", zap.Error(err))
		for _, dish := range retrieved {
			results[dish.FoodName] = &ExtractionResult{Status: StatusMalformedModelOutput}
		}
		return results, nil
	}

	// 階段三：解析與修補
	analyses, parseErr := parseModelOutput(resp.Text)
	if parseErr != nil {
		common.LogWarn("模型輸出無法解析",
			zap.Error(parseErr),
			zap.Int("retrieved", len(retrieved)),
		)
		for _, dish := range retrieved {
			results[dish.FoodName] = &ExtractionResult{Status: StatusMalformedModelOutput}
		}
		return results, nil
	}

	byRecordID := make(map[string]*dishAnalysis, len(analyses))
	byDishName := make(map[string]*dishAnalysis, len(analyses))
	for i := range analyses {
		a := &analyses[i]
		if a.RecordID != "" {
			byRecordID[a.RecordID] = a
		}
		byDishName[normalizeName(a.DishName)] = a
	}

	for _, dish := range retrieved {
		analysis := byRecordID[dish.RecordID]
		if analysis == nil {
			analysis = byDishName[normalizeName(dish.FoodName)]
		}
		if analysis == nil || len(analysis.Ingredients) == 0 {
			results[dish.FoodName] = &ExtractionResult{Status: StatusMalformedModelOutput}
			continue
		}
		results[dish.FoodName] = &ExtractionResult{
			Breakdown: e.repair(dish, analysis),
		}
	}

	return results, nil
}

// retrieve 清理查詢文字、向量化並查詢索引，無相似配方時回傳 (nil, nil)
func (e *Extractor) retrieve(ctx context.Context, foodName string) (*retrievedDish, error) {
	vec, err := e.embedder.Embed(ctx, cleanQuery(foodName))
	if err != nil {
		return nil, fmt.Errorf("embed %q: %w", foodName, err)
	}

	matches, err := e.index.Query(ctx, vec, 1)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", foodName, err)
	}
	if len(matches) == 0 || matches[0].Score < e.config.Extract.MinScore {
		return nil, nil
	}

	m := matches[0]
	return &retrievedDish{
		FoodName: foodName,
		RecordID: m.ID,
		Title:    m.Title,
		Content:  m.Content,
	}, nil
}

// cleanQuery 剔除主食類詞彙，讓檢索聚焦在料理本體
func cleanQuery(foodName string) string {
	fields := strings.Fields(strings.ToLower(foodName))
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		staple := false
		for _, w := range stapleWords {
			if f == w {
				staple = true
				break
			}
		}
		if !staple {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return strings.ToLower(strings.TrimSpace(foodName))
	}
	return strings.Join(kept, " ")
}

const systemInstruction = `Anda adalah ahli gizi yang menganalisis resep masakan Indonesia.
Balas HANYA dengan satu blok JSON valid, tanpa teks lain.`

// buildPrompt 將全部檢索結果串成單一提示詞
func (e *Extractor) buildPrompt(dishes []retrievedDish) string {
	var b strings.Builder
	b.WriteString("Untuk setiap makanan berikut, uraikan bahan-bahannya berdasarkan resep referensi.\n")
	b.WriteString("Perkirakan jumlah standar setiap bahan dalam gram atau ml untuk satu resep penuh,\n")
	b.WriteString("dan perkirakan standar_porsi (berapa porsi yang dihasilkan satu resep penuh).\n\n")

	for i, dish := range dishes {
		fmt.Fprintf(&b, "=== Makanan %d ===\n", i+1)
		fmt.Fprintf(&b, "nama_olahan: %s\n", dish.FoodName)
		fmt.Fprintf(&b, "resep_id: %s\n", dish.RecordID)
		fmt.Fprintf(&b, "judul resep: %s\n", dish.Title)
		fmt.Fprintf(&b, "bahan resep:\n%s\n\n", dish.Content)
	}

	b.WriteString("Format jawaban:\n")
	b.WriteString("```json\n")
	b.WriteString(`{"analisis": [{"nama_olahan": "...", "resep_id": "...", "standar_porsi": 4, "bahan": [{"nama_bahan": "...", "jumlah_standar": 100, "satuan": "gram"}]}]}`)
	b.WriteString("\n```\n")
	return b.String()
}

// parseModelOutput 解析模型輸出；任何解析失敗都視為整批不可信
func parseModelOutput(raw string) ([]dishAnalysis, error) {
	text := common.ExtractJSONBlock(raw)
	text = common.QuoteJSONKeys(text)

	var out modelOutput
	if err := common.ParseJSON(text, &out); err != nil {
		return nil, fmt.Errorf("parse model output: %w", err)
	}
	if len(out.Analyses) == 0 {
		return nil, fmt.Errorf("model output has no analyses")
	}
	return out.Analyses, nil
}

// normalizeName 名稱正規化
func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

var (
	thousand = decimal.NewFromInt(1000)
)

// repair 程式側驗證修補：單位正規化、份數預設、主食補項、「適量」保底、負值剔除
func (e *Extractor) repair(dish retrievedDish, analysis *dishAnalysis) *RecipeBreakdown {
	bd := &RecipeBreakdown{
		DishName:        dish.FoodName,
		VectorRecordID:  dish.RecordID,
		StandardPortion: analysis.StandardPortion,
	}

	// 份數不可推斷或非正值時預設 1
	if bd.StandardPortion.Sign() <= 0 {
		bd.StandardPortion = decimal.NewFromInt(1)
	}

	hasCarb := false
	for _, ing := range analysis.Ingredients {
		qty := ing.Quantity
		unit := strings.ToLower(strings.TrimSpace(ing.Unit))

		// 負值剔除
		if qty.Sign() < 0 {
			common.LogDebug("剔除負值成分",
				zap.String("dish", dish.FoodName),
				zap.String("ingredient", ing.Name),
			)
			continue
		}

		// 「適量」類保底估計
		if toTasteLabels[unit] {
			floor := decimal.NewFromFloat(e.config.Extract.ToTasteQuantity)
			if qty.LessThan(floor) {
				qty = floor
			}
			unit = "gram"
		}

		// 質量換算公克、容量換算毫升；符號單位保留原樣
		switch unit {
		case "kg", "kilogram":
			qty = qty.Mul(thousand)
			unit = "gram"
		case "g", "gr", "gram":
			unit = "gram"
		case "l", "liter":
			qty = qty.Mul(thousand)
			unit = "ml"
		case "ml", "mililiter", "cc":
			unit = "ml"
		}

		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		if containsAny(strings.ToLower(name), carbWords) {
			hasCarb = true
		}

		bd.Entries = append(bd.Entries, persistence.BreakdownEntry{
			IngredientName:   name,
			StandardQuantity: qty,
			UnitLabel:        unit,
		})
	}

	// 料理名稱含主食詞但拆解缺主要碳水時，於清單開頭補上一筆
	if containsAny(strings.ToLower(dish.FoodName), stapleWords) && !hasCarb {
		fallback := persistence.BreakdownEntry{
			IngredientName:   "nasi putih",
			StandardQuantity: decimal.NewFromInt(100).Mul(bd.StandardPortion),
			UnitLabel:        "gram",
		}
		bd.Entries = append([]persistence.BreakdownEntry{fallback}, bd.Entries...)
	}

	return bd
}

// containsAny 檢查字串是否含任一關鍵詞
func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
