package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sicupang-ai/internal/core/ai/provider"
	"sicupang-ai/internal/core/queue"
	"sicupang-ai/internal/core/vector"
	"sicupang-ai/internal/infrastructure/config"
)

// mockGenerator returns a canned model response and records calls.
type mockGenerator struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (m *mockGenerator) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)
	if m.err != nil {
		return nil, m.err
	}
	return &provider.Response{Text: m.response, Model: "mock"}, nil
}

// mockEmbedder returns a fixed vector.
type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// mockIndex maps nothing by default; every query returns the configured matches.
type mockIndex struct {
	matches map[string][]vector.Match
	err     error
}

func (m *mockIndex) Query(ctx context.Context, vec []float32, topK int) ([]vector.Match, error) {
	if m.err != nil {
		return nil, m.err
	}
	// 單一測試批次只含一道料理時直接回傳第一組
	for _, matches := range m.matches {
		return matches, nil
	}
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Queue:   config.QueueConfig{Workers: 2, MaxSize: 32},
		Extract: config.ExtractConfig{MatchThreshold: 80, ToTasteQuantity: 5.0},
	}
}

func newTestExtractor(gen *mockGenerator, index *mockIndex) (*Extractor, *queue.Manager) {
	cfg := testConfig()
	pool := queue.NewManager(cfg)
	return NewExtractor(gen, &mockEmbedder{}, index, pool, cfg), pool
}

func TestExtractBatchNoSimilarRecipe(t *testing.T) {
	gen := &mockGenerator{}
	extractor, pool := newTestExtractor(gen, &mockIndex{})
	defer pool.Close()

	results, err := extractor.ExtractBatch(context.Background(), []string{"makanan aneh"})
	require.NoError(t, err)
	require.Contains(t, results, "makanan aneh")
	assert.Equal(t, StatusNoSimilarRecipe, results["makanan aneh"].Status)
	// no retrieval hit means the model is never called
	assert.Equal(t, 0, gen.calls)
}

func TestExtractBatchSuccess(t *testing.T) {
	gen := &mockGenerator{
		response: "```json\n" + `{"analisis": [{"nama_olahan": "sayur asem", "resep_id": "vdb-1", "standar_porsi": 4, "bahan": [
			{"nama_bahan": "kacang panjang", "jumlah_standar": 0.2, "satuan": "kg"},
			{"nama_bahan": "garam", "jumlah_standar": 0, "satuan": "secukupnya"},
			{"nama_bahan": "asam jawa", "jumlah_standar": -5, "satuan": "gram"}
		]}]}` + "\n```",
	}
	index := &mockIndex{matches: map[string][]vector.Match{
		"sayur asem": {{ID: "vdb-1", Score: 0.9, Title: "Sayur Asem", Content: "kacang panjang, garam, asam jawa"}},
	}}
	extractor, pool := newTestExtractor(gen, index)
	defer pool.Close()

	results, err := extractor.ExtractBatch(context.Background(), []string{"sayur asem"})
	require.NoError(t, err)
	require.Contains(t, results, "sayur asem")

	res := results["sayur asem"]
	require.Empty(t, res.Status)
	require.NotNil(t, res.Breakdown)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "vdb-1", res.Breakdown.VectorRecordID)
	assert.True(t, res.Breakdown.StandardPortion.Equal(decimal.NewFromInt(4)))

	// negative quantity dropped, two entries remain
	require.Len(t, res.Breakdown.Entries, 2)

	// kg converted to grams
	assert.Equal(t, "kacang panjang", res.Breakdown.Entries[0].IngredientName)
	assert.True(t, res.Breakdown.Entries[0].StandardQuantity.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "gram", res.Breakdown.Entries[0].UnitLabel)

	// "secukupnya" floored to the configured minimum
	assert.Equal(t, "garam", res.Breakdown.Entries[1].IngredientName)
	assert.True(t, res.Breakdown.Entries[1].StandardQuantity.Equal(decimal.NewFromInt(5)))
}

func TestExtractBatchInjectsStapleFallback(t *testing.T) {
	gen := &mockGenerator{
		response: `{"analisis": [{"nama_olahan": "nasi goreng", "resep_id": "vdb-2", "standar_porsi": 0, "bahan": [
			{"nama_bahan": "telur", "jumlah_standar": 60, "satuan": "gram"}
		]}]}`,
	}
	index := &mockIndex{matches: map[string][]vector.Match{
		"nasi goreng": {{ID: "vdb-2", Score: 0.95, Title: "Nasi Goreng", Content: "telur"}},
	}}
	extractor, pool := newTestExtractor(gen, index)
	defer pool.Close()

	results, err := extractor.ExtractBatch(context.Background(), []string{"nasi goreng"})
	require.NoError(t, err)

	res := results["nasi goreng"]
	require.NotNil(t, res.Breakdown)

	// non-positive standar_porsi defaults to 1
	assert.True(t, res.Breakdown.StandardPortion.Equal(decimal.NewFromInt(1)))

	// dish name implies a rice base but the breakdown has no carbohydrate:
	// a staple entry is injected at the head
	require.Len(t, res.Breakdown.Entries, 2)
	assert.Equal(t, "nasi putih", res.Breakdown.Entries[0].IngredientName)
	assert.Equal(t, "telur", res.Breakdown.Entries[1].IngredientName)
}

func TestExtractBatchMalformedOutput(t *testing.T) {
	gen := &mockGenerator{response: "maaf, saya tidak bisa membantu"}
	index := &mockIndex{matches: map[string][]vector.Match{
		"rendang": {{ID: "vdb-3", Score: 0.9, Title: "Rendang", Content: "daging sapi"}},
	}}
	extractor, pool := newTestExtractor(gen, index)
	defer pool.Close()

	results, err := extractor.ExtractBatch(context.Background(), []string{"rendang"})
	require.NoError(t, err)
	assert.Equal(t, StatusMalformedModelOutput, results["rendang"].Status)
}

func TestExtractBatchGeneratorError(t *testing.T) {
	gen := &mockGenerator{err: errors.New("model unavailable")}
	index := &mockIndex{matches: map[string][]vector.Match{
		"rendang": {{ID: "vdb-3", Score: 0.9, Title: "Rendang", Content: "daging sapi"}},
	}}
	extractor, pool := newTestExtractor(gen, index)
	defer pool.Close()

	results, err := extractor.ExtractBatch(context.Background(), []string{"rendang"})
	require.NoError(t, err)
	assert.Equal(t, StatusMalformedModelOutput, results["rendang"].Status)
}

func TestCleanQueryStripsStapleWords(t *testing.T) {
	assert.Equal(t, "goreng ayam", cleanQuery("Nasi Goreng Ayam"))
	// a query made of staple words only keeps the original text
	assert.Equal(t, "nasi", cleanQuery("Nasi"))
}
