package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"sicupang-ai/internal/infrastructure/config"
	"sicupang-ai/internal/pkg/common"
)

// Task 佇列中執行的工作
type Task func(ctx context.Context) (interface{}, error)

// Request 隊列請求
type Request struct {
	Context context.Context
	Task    Task
	Result  chan Result
}

// Result 處理結果
type Result struct {
	Value interface{}
	Error error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Manager 隊列管理器，所有對外部服務的阻塞呼叫都經由此處的 worker 執行
type Manager struct {
	config    *config.Config
	queue     chan *Request
	done      chan struct{}
	processed int64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager 創建新的隊列管理器並啟動 worker
func NewManager(cfg *config.Config) *Manager {
	m := &Manager{
		config: cfg,
		queue:  make(chan *Request, cfg.Queue.MaxSize),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.Queue.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	return m
}

// worker 持續從隊列取出工作並執行
func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case req, ok := <-m.queue:
			if !ok {
				return
			}
			value, err := req.Task(req.Context)
			atomic.AddInt64(&m.processed, 1)
			req.Result <- Result{Value: value, Error: err}
		case <-m.done:
			return
		}
	}
}

// Enqueue 將工作加入隊列，回傳結果通道
func (m *Manager) Enqueue(ctx context.Context, task Task) (chan Result, error) {
	// 檢查隊列容量
	if len(m.queue) >= m.config.Queue.MaxSize {
		return nil, common.ErrQueueFull
	}

	req := &Request{
		Context: ctx,
		Task:    task,
		Result:  make(chan Result, 1),
	}

	select {
	case m.queue <- req:
		common.LogDebug("Task enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.config.Queue.MaxSize),
		)
		return req.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.done:
		return nil, fmt.Errorf("queue manager is closed")
	}
}

// Do 將工作加入隊列並同步等待結果
func (m *Manager) Do(ctx context.Context, task Task) (interface{}, error) {
	resultCh, err := m.Enqueue(ctx, task)
	if err != nil {
		return nil, err
	}
	select {
	case result := <-resultCh:
		return result.Value, result.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(m.queue),
		ProcessedCount: int(atomic.LoadInt64(&m.processed)),
		MaxQueueSize:   m.config.Queue.MaxSize,
		Workers:        m.config.Queue.Workers,
	}
}

// Close 關閉隊列管理器並等待 worker 結束
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
	})
}
