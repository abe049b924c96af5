package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/pkg/common"
)

// Match 向量檢索結果
type Match struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
}

// Index 向量索引查詢介面
type Index interface {
	// Query 回傳相似度最高的紀錄；無結果時回傳空切片
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// Client Pinecone query API 客戶端
type Client struct {
	http   *resty.Client
	config *config.PineconeConfig
}

// queryRequest Pinecone query 請求體
type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

// queryResponse Pinecone query 響應體
type queryResponse struct {
	Matches []struct {
		ID       string  `json:"id"`
		Score    float64 `json:"score"`
		Metadata struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"metadata"`
	} `json:"matches"`
	Message string `json:"message"`
}

// NewClient 創建 Pinecone 客戶端
func NewClient(cfg *config.PineconeConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.IndexHost).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Api-Key", cfg.APIKey)

	return &Client{
		http:   http,
		config: cfg,
	}
}

// Query 以向量查詢索引
func (c *Client) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = c.config.TopK
	}

	start := time.Now()
	var result queryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&queryRequest{
			Vector:          vector,
			TopK:            topK,
			Namespace:       c.config.Namespace,
			IncludeMetadata: true,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/query")

	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("vector query error: status %d: %s", resp.StatusCode(), result.Message)
	}

	matches := make([]Match, 0, len(result.Matches))
	for _, m := range result.Matches {
		matches = append(matches, Match{
			ID:      m.ID,
			Score:   m.Score,
			Title:   m.Metadata.Title,
			Content: m.Metadata.Content,
		})
	}

	common.LogDebug("向量檢索完成",
		zap.String("namespace", c.config.Namespace),
		zap.Int("matches", len(matches)),
		zap.Duration("耗時", time.Since(start)),
	)

	return matches, nil
}
