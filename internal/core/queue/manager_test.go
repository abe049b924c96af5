package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sicupang-ai/internal/infrastructure/config"
)

func newTestManager(workers, maxSize int) *Manager {
	return NewManager(&config.Config{
		Queue: config.QueueConfig{Workers: workers, MaxSize: maxSize},
	})
}

func TestDoRunsTask(t *testing.T) {
	m := newTestManager(2, 8)
	defer m.Close()

	value, err := m.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestDoPropagatesTaskError(t *testing.T) {
	m := newTestManager(1, 8)
	defer m.Close()

	taskErr := errors.New("boom")
	_, err := m.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, taskErr
	})
	assert.ErrorIs(t, err, taskErr)
}

func TestTasksRunConcurrently(t *testing.T) {
	m := newTestManager(4, 16)
	defer m.Close()

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := 0; i < 8; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Do(context.Background(), func(ctx context.Context) (interface{}, error) {
				return i * 2, nil
			})
			require.NoError(t, err)
			results[i] = v.(int)
		}()
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		assert.Equal(t, i*2, results[i])
	}
	assert.GreaterOrEqual(t, m.GetQueueStatus().ProcessedCount, 8)
}

func TestEnqueueRejectsWhenFull(t *testing.T) {
	m := newTestManager(1, 1)
	defer m.Close()

	block := make(chan struct{})
	release := func() { close(block) }

	// occupy the single worker
	busyCh, err := m.Enqueue(context.Background(), func(ctx context.Context) (interface{}, error) {
		<-block
		return nil, nil
	})
	require.NoError(t, err)

	// fill the queue slot
	var queuedCh chan Result
	for {
		queuedCh, err = m.Enqueue(context.Background(), func(ctx context.Context) (interface{}, error) {
			return nil, nil
		})
		if err == nil {
			break
		}
	}

	// the next enqueue is rejected
	_, err = m.Enqueue(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.Error(t, err)

	release()
	<-busyCh
	<-queuedCh
}

func TestGetQueueStatus(t *testing.T) {
	m := newTestManager(3, 10)
	defer m.Close()

	status := m.GetQueueStatus()
	assert.Equal(t, 3, status.Workers)
	assert.Equal(t, 10, status.MaxQueueSize)
}
