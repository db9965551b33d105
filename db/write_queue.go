package db

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v2"

	"shardchain/logs"
)

type WriteTask struct {
	Key   []byte
	Value []byte
	Op    WriteOp
}

type WriteOp int

const (
	OpSet WriteOp = iota
	OpDelete
)

type flushRequest struct {
	done chan error
}

// 写队列运行统计
type writeQueueMetrics struct {
	enqueued      atomic.Uint64
	dequeued      atomic.Uint64
	flushBatches  atomic.Uint64
	flushedTasks  atomic.Uint64
	flushErrors   atomic.Uint64
	forceFlushes  atomic.Uint64
	blockedCount  atomic.Uint64
	maxQueueDepth atomic.Uint64
}

// QueueStats 对外暴露的快照
type QueueStats struct {
	Enqueued     uint64
	Dequeued     uint64
	FlushBatches uint64
	FlushedTasks uint64
	FlushErrors  uint64
	ForceFlushes uint64
	Blocked      uint64
	MaxDepth     uint64
}

func (manager *Manager) InitWriteQueue(maxBatchSize int, flushInterval time.Duration) {
	if maxBatchSize <= 0 {
		maxBatchSize = manager.cfg.Database.MaxBatchSize
	}
	if flushInterval <= 0 {
		flushInterval = manager.cfg.Database.FlushInterval
	}
	manager.maxBatchSize = maxBatchSize
	manager.flushInterval = flushInterval
	manager.writeQueueChan = make(chan WriteTask, manager.cfg.Database.WriteQueueSize)
	manager.forceFlushChan = make(chan flushRequest, 1)
	manager.stopChan = make(chan struct{})

	manager.wg.Add(1)
	go manager.runWriteQueue()
}

func (manager *Manager) Stats() QueueStats {
	m := &manager.metrics
	return QueueStats{
		Enqueued:     m.enqueued.Load(),
		Dequeued:     m.dequeued.Load(),
		FlushBatches: m.flushBatches.Load(),
		FlushedTasks: m.flushedTasks.Load(),
		FlushErrors:  m.flushErrors.Load(),
		ForceFlushes: m.forceFlushes.Load(),
		Blocked:      m.blockedCount.Load(),
		MaxDepth:     m.maxQueueDepth.Load(),
	}
}

func (manager *Manager) observeQueueDepth() {
	q := uint64(len(manager.writeQueueChan))
	for {
		old := manager.metrics.maxQueueDepth.Load()
		if q <= old || manager.metrics.maxQueueDepth.CompareAndSwap(old, q) {
			return
		}
	}
}

// 写队列的核心 goroutine
func (manager *Manager) runWriteQueue() {
	defer manager.wg.Done()

	batch := make([]WriteTask, 0, manager.maxBatchSize)
	ticker := time.NewTicker(manager.flushInterval)
	defer ticker.Stop()

	flushCurrentBatch := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := manager.flushBatch(batch)
		manager.metrics.flushBatches.Add(1)
		manager.metrics.flushedTasks.Add(uint64(len(batch)))
		if err != nil {
			manager.metrics.flushErrors.Add(1)
		}
		batch = batch[:0]
		return err
	}

	for {
		select {
		case <-manager.stopChan:
			// 退出前先排空队列，再刷掉最后一批
			batch = manager.drainWriteQueue(batch)
			err := flushCurrentBatch()
			manager.resolvePendingForceFlush(err)
			return

		case task := <-manager.writeQueueChan:
			manager.metrics.dequeued.Add(1)
			batch = append(batch, task)
			if len(batch) >= manager.maxBatchSize {
				if err := flushCurrentBatch(); err != nil {
					logs.Error("[runWriteQueue] flush by size failed: %v", err)
				}
			}

		case <-ticker.C:
			batch = manager.drainWriteQueue(batch)
			if err := flushCurrentBatch(); err != nil {
				logs.Error("[runWriteQueue] flush by ticker failed: %v", err)
			}

		case req := <-manager.forceFlushChan:
			// 同步 flush：排空已入队写请求并等待落盘完成
			manager.metrics.forceFlushes.Add(1)
			batch = manager.drainWriteQueue(batch)
			req.done <- flushCurrentBatch()
			close(req.done)
		}
	}
}

// ForceFlush 等待已入队的写请求全部落盘；写队列未启动时直接返回
func (manager *Manager) ForceFlush() error {
	if manager.forceFlushChan == nil {
		return nil
	}
	req := flushRequest{done: make(chan error, 1)}
	select {
	case manager.forceFlushChan <- req:
	case <-manager.stopChan:
		return fmt.Errorf("write queue already stopped")
	}
	return <-req.done
}

func (manager *Manager) drainWriteQueue(batch []WriteTask) []WriteTask {
	for {
		select {
		case task := <-manager.writeQueueChan:
			manager.metrics.dequeued.Add(1)
			batch = append(batch, task)
		default:
			return batch
		}
	}
}

func (manager *Manager) resolvePendingForceFlush(err error) {
	for {
		select {
		case req := <-manager.forceFlushChan:
			req.done <- err
			close(req.done)
		default:
			return
		}
	}
}

// 投递写请求

func (manager *Manager) EnqueueSet(key string, value []byte) {
	manager.enqueue(WriteTask{Key: []byte(key), Value: value, Op: OpSet})
}

func (manager *Manager) EnqueueDelete(key string) {
	manager.enqueue(WriteTask{Key: []byte(key), Op: OpDelete})
}

func (manager *Manager) enqueue(task WriteTask) {
	start := time.Now()
	manager.writeQueueChan <- task
	manager.metrics.enqueued.Add(1)
	if time.Since(start) > 100*time.Microsecond {
		manager.metrics.blockedCount.Add(1)
	}
	manager.observeQueueDepth()
}

// flushBatch 整批写入；badger 报事务过大时二分拆开重试
func (manager *Manager) flushBatch(batch []WriteTask) error {
	type sliceRange struct{ i, j int }
	stack := []sliceRange{{0, len(batch)}}
	var firstErr error

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.i >= cur.j {
			continue
		}
		ok, err := manager.tryFlushRange(batch[cur.i:cur.j])
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if ok || cur.j-cur.i <= 1 {
			continue
		}
		mid := cur.i + (cur.j-cur.i)/2
		stack = append(stack, sliceRange{mid, cur.j}, sliceRange{cur.i, mid})
	}
	return firstErr
}

func isTxnTooBig(err error) bool {
	return errors.Is(err, badger.ErrTxnTooBig) || strings.Contains(err.Error(), "Txn is too big")
}

// 返回 false 表示需要继续拆分
func (manager *Manager) tryFlushRange(sub []WriteTask) (bool, error) {
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return true, ErrClosed
	}

	wb := db.NewWriteBatch()
	defer wb.Cancel()

	for _, task := range sub {
		var err error
		switch task.Op {
		case OpSet:
			err = wb.Set(task.Key, task.Value)
		case OpDelete:
			err = wb.Delete(task.Key)
		}
		if err != nil {
			if isTxnTooBig(err) && len(sub) > 1 {
				return false, nil
			}
			manager.Logger.Error("[flushBatch] set/delete %q: %v", string(task.Key), err)
			return true, err
		}
	}

	err := wb.Flush()
	if err == nil {
		return true, nil
	}
	if isTxnTooBig(err) && len(sub) > 1 {
		return false, nil
	}
	manager.Logger.Error("[flushBatch] flush %d tasks: %v", len(sub), err)
	return true, err
}
