package core

import (
	"context"
	"sync"
	"testing"

	"github.com/huangsam/pts/internal/logger"
	"github.com/stretchr/testify/assert"
)

// TestContextConcurrentAccess tests that context values can be safely accessed concurrently.
func TestContextConcurrentAccess(t *testing.T) {
	ctx := WithSuppressOutput(context.Background())
	ctx = withRunID(ctx, 12345)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			runID, ok := getRunID(ctx)
			assert.True(t, ok, "goroutine %d: run id should be set", i)
			assert.Equal(t, int64(12345), runID)
			assert.True(t, shouldSuppressOutput(ctx))
		})
	}
	wg.Wait()
}

// TestContextIsolation tests that different contexts maintain isolation.
func TestContextIsolation(t *testing.T) {
	base := context.Background()
	ctx1 := withRunID(base, 1)
	ctx2 := withRunID(base, 2)
	ctx3 := WithSuppressOutput(base)

	id1, ok1 := getRunID(ctx1)
	assert.True(t, ok1)
	assert.Equal(t, int64(1), id1)
	assert.False(t, shouldSuppressOutput(ctx1))

	id2, ok2 := getRunID(ctx2)
	assert.True(t, ok2)
	assert.Equal(t, int64(2), id2)

	id3, ok3 := getRunID(ctx3)
	assert.False(t, ok3)
	assert.Equal(t, int64(0), id3)
	assert.True(t, shouldSuppressOutput(ctx3))
}

func TestRunLogger(t *testing.T) {
	ctx := logger.WithRequest(withRunID(context.Background(), 7), "req-1")
	assert.NotNil(t, runLogger(ctx, "predictor"))
	assert.NotNil(t, runLogger(context.Background(), ""))
}
