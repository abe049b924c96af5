package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"sicupang-ai/internal/core/ai/cache"
	"sicupang-ai/internal/core/ai/provider"
	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/pkg/common"
)

// Service AI 服務：生成模型供應商加上回應快取
type Service struct {
	generator provider.Generator
	cache     cache.Store
	config    *config.Config
}

// NewService 創建 AI 服務
func NewService(generator provider.Generator, store cache.Store, cfg *config.Config) *Service {
	return &Service{
		generator: generator,
		cache:     store,
		config:    cfg,
	}
}

// Generate 生成回應，相同提示詞在 TTL 內直接命中快取
func (s *Service) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	key := s.cacheKey(req)

	if s.cacheEnabled() {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			return &provider.Response{
				Text:     cached,
				Model:    s.generator.Name(),
				CacheHit: true,
			}, nil
		} else if !errors.Is(err, common.ErrCacheMiss) {
			// 快取後端故障不阻斷生成
			common.LogWarn("AI 回應快取讀取失敗", zap.Error(err))
		}
	}

	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, key, resp.Text); err != nil {
			common.LogWarn("AI 回應快取寫入失敗", zap.Error(err))
		}
	}

	return resp, nil
}

// cacheEnabled 判斷回應快取是否啟用
func (s *Service) cacheEnabled() bool {
	return s.config.AI.EnableCache && s.cache != nil
}

// cacheKey 以正規化後的提示詞計算快取鍵
func (s *Service) cacheKey(req *provider.Request) string {
	return common.HashKey(common.NormalizeSpace(req.System) + "\n" + common.NormalizeSpace(req.Prompt))
}
