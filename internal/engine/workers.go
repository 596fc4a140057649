package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mindloom/mindloom/pkg/types"
)

// Upserter is the write slice of the index adapter.
type Upserter interface {
	Upsert(ctx context.Context, r *types.MemoryRecord) error
}

// upsertTimeout bounds each background write.
const upsertTimeout = 30 * time.Second

// UpsertPool writes records to the index on background workers so ingestion
// can return before the write lands. Failures are logged; the record stays
// in the report the caller already received.
type UpsertPool struct {
	upserter Upserter
	ch       chan *types.MemoryRecord
	wg       sync.WaitGroup

	closeOnce sync.Once
}

// NewUpsertPool starts workers goroutines draining a buffered queue.
// workers and queueSize fall back to 2 and 64 when non-positive.
func NewUpsertPool(upserter Upserter, workers, queueSize int) *UpsertPool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	p := &UpsertPool{
		upserter: upserter,
		ch:       make(chan *types.MemoryRecord, queueSize),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *UpsertPool) worker() {
	defer p.wg.Done()
	for r := range p.ch {
		ctx, cancel := context.WithTimeout(context.Background(), upsertTimeout)
		if err := p.upserter.Upsert(ctx, r); err != nil {
			log.Printf("engine: async upsert of %s failed: %v", r.ID, err)
		}
		cancel()
	}
}

// Submit queues a record for writing. It blocks when the queue is full,
// applying backpressure to ingestion rather than dropping writes.
func (p *UpsertPool) Submit(r *types.MemoryRecord) {
	p.ch <- r
}

// Close stops accepting records and waits for queued writes to finish.
func (p *UpsertPool) Close() {
	p.closeOnce.Do(func() { close(p.ch) })
	p.wg.Wait()
}
