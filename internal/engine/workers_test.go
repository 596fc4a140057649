package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mindloom/mindloom/pkg/types"
)

type countingUpserter struct {
	mu  sync.Mutex
	ids []string
}

func (c *countingUpserter) Upsert(_ context.Context, r *types.MemoryRecord) error {
	c.mu.Lock()
	c.ids = append(c.ids, r.ID)
	c.mu.Unlock()
	return nil
}

func TestUpsertPool_DrainsOnClose(t *testing.T) {
	up := &countingUpserter{}
	pool := NewUpsertPool(up, 3, 8)

	for i := 0; i < 20; i++ {
		pool.Submit(&types.MemoryRecord{ID: "mem:x", UserID: "u-1"})
	}
	pool.Close()

	assert.Len(t, up.ids, 20, "every queued record is written before Close returns")
}

func TestUpsertPool_CloseIsIdempotent(t *testing.T) {
	pool := NewUpsertPool(&countingUpserter{}, 1, 1)
	pool.Close()
	assert.NotPanics(t, pool.Close)
}

func TestUpsertPool_DefaultSizing(t *testing.T) {
	up := &countingUpserter{}
	pool := NewUpsertPool(up, 0, 0)
	pool.Submit(&types.MemoryRecord{ID: "mem:1", UserID: "u-1"})
	pool.Close()

	assert.Len(t, up.ids, 1)
}
