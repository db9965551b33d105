package sender

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"shardchain/config"
	"shardchain/logs"
	"shardchain/types"
)

var ErrQueueStopped = errors.New("sender: queue stopped")

// 任务优先级
type TaskPriority int

const (
	PriorityData    TaskPriority = iota // 区块转发等大消息
	PriorityControl                     // 共识消息
)

// Transporter 把一条消息发给一个节点
type Transporter interface {
	Send(ctx context.Context, peer types.Peer, msg []byte) error
}

// SendTask 封装一次发送所需的信息
type SendTask struct {
	Target      types.Peer
	Message     []byte
	RetryCount  int
	MaxRetries  int
	CreatedAt   time.Time // 任务创建时间，用于检测过期
	NextAttempt time.Time
	Priority    TaskPriority
}

// SendQueue 负责管理任务队列 + worker
// controlChan 放共识消息，dataChan 放区块转发
type SendQueue struct {
	controlWorkerCount int
	dataWorkerCount    int
	controlChan        chan *SendTask
	dataChan           chan *SendTask
	stopChan           chan struct{}
	stopOnce           sync.Once
	ctx                context.Context
	cancel             context.CancelFunc
	wg                 sync.WaitGroup
	transport          Transporter
	cfg                *config.Config
	Logger             logs.Logger

	delayedTimerBacklog atomic.Int64
	dropControlFull     atomic.Uint64
	dropDataFull        atomic.Uint64
	dropStale           atomic.Uint64
	retryExhausted      atomic.Uint64
	sendSuccess         atomic.Uint64
	sendError           atomic.Uint64
}

// NewSendQueue 创建并启动发送队列
func NewSendQueue(transport Transporter, logger logs.Logger, cfg *config.Config) *SendQueue {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logs.Default()
	}
	workerCount := cfg.Sender.WorkerCount
	queueCapacity := cfg.Sender.QueueCapacity

	// 控制面占 1/3 worker，最少各 1 个
	controlWorkers := workerCount / 3
	if controlWorkers < 1 {
		controlWorkers = 1
	}
	dataWorkers := workerCount - controlWorkers
	if dataWorkers < 1 {
		dataWorkers = 1
	}

	controlCapacity := queueCapacity / 4
	if controlCapacity < 64 {
		controlCapacity = 64
	}
	dataCapacity := queueCapacity - controlCapacity
	if dataCapacity < 64 {
		dataCapacity = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	sq := &SendQueue{
		controlWorkerCount: controlWorkers,
		dataWorkerCount:    dataWorkers,
		controlChan:        make(chan *SendTask, controlCapacity),
		dataChan:           make(chan *SendTask, dataCapacity),
		stopChan:           make(chan struct{}),
		ctx:                ctx,
		cancel:             cancel,
		transport:          transport,
		cfg:                cfg,
		Logger:             logger,
	}
	sq.start()
	return sq
}

func (sq *SendQueue) start() {
	sq.wg.Add(sq.controlWorkerCount + sq.dataWorkerCount)
	for i := 0; i < sq.controlWorkerCount; i++ {
		go sq.workerLoop(i, sq.controlChan, "control")
	}
	for i := 0; i < sq.dataWorkerCount; i++ {
		go sq.workerLoop(i, sq.dataChan, "data")
	}
	sq.Logger.Verbose("[SendQueue] Started with %d control workers + %d data workers",
		sq.controlWorkerCount, sq.dataWorkerCount)
}

// Stop 停止队列，等待所有 worker 退出。可重复调用。
func (sq *SendQueue) Stop() {
	sq.stopOnce.Do(func() {
		close(sq.stopChan)
		sq.cancel()
		sq.wg.Wait()
		sq.Logger.Verbose("[SendQueue] Stopped.")
	})
}

// SendMessage 以控制面优先级把 msg 发给每个非空 peer
func (sq *SendQueue) SendMessage(peers []types.Peer, msg []byte) {
	sq.Broadcast(peers, msg, PriorityControl)
}

// Broadcast 每个目标一个任务，空 peer（自己）跳过
func (sq *SendQueue) Broadcast(peers []types.Peer, msg []byte, priority TaskPriority) {
	for _, p := range peers {
		if p.IsZero() {
			continue
		}
		sq.Enqueue(&SendTask{
			Target:     p,
			Message:    msg,
			MaxRetries: sq.cfg.Sender.MaxRetries,
			Priority:   priority,
		})
	}
}

func (sq *SendQueue) Enqueue(task *SendTask) {
	if task == nil {
		return
	}
	select {
	case <-sq.stopChan:
		return
	default:
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.NextAttempt.IsZero() {
		task.NextAttempt = now
	}
	if task.NextAttempt.After(now) {
		// 未到执行时间：先等到 NextAttempt，再真正入队
		delay := task.NextAttempt.Sub(now)
		sq.delayedTimerBacklog.Add(1)
		go func(t *SendTask, d time.Duration) {
			defer sq.delayedTimerBacklog.Add(-1)
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				sq.enqueueNow(t)
			case <-sq.stopChan:
			}
		}(task, delay)
		return
	}
	sq.enqueueNow(task)
}

// 非阻塞入队，满了直接丢弃，避免阻塞共识流程
func (sq *SendQueue) enqueueNow(task *SendTask) {
	if task.Priority == PriorityControl {
		select {
		case sq.controlChan <- task:
		default:
			sq.dropControlFull.Add(1)
			sq.Logger.Warn("[SendQueue] Control queue FULL, dropping task target=%s len=%d",
				task.Target, len(sq.controlChan))
		}
		return
	}
	select {
	case sq.dataChan <- task:
	default:
		sq.dropDataFull.Add(1)
		sq.Logger.Debug("[SendQueue] Data task dropped: queue full len=%d, target=%s",
			len(sq.dataChan), task.Target)
	}
}

func (sq *SendQueue) workerLoop(workerID int, taskChan chan *SendTask, queueType string) {
	defer sq.wg.Done()

	for {
		select {
		case <-sq.stopChan:
			return
		case task := <-taskChan:
			if task == nil {
				return
			}
			if age := time.Since(task.CreatedAt); age > sq.cfg.Sender.TaskExpireTimeout {
				sq.dropStale.Add(1)
				sq.Logger.Debug("[SendQueue][%s] Dropping stale task: age=%v target=%s",
					queueType, age, task.Target)
				continue
			}
			if err := sq.doSend(task, workerID, queueType); err != nil {
				sq.handleRetry(task, err)
			}
		}
	}
}

func (sq *SendQueue) doSend(task *SendTask, workerID int, queueType string) error {
	start := time.Now()
	err := sq.transport.Send(sq.ctx, task.Target, task.Message)
	elapsed := time.Since(start)
	if err != nil {
		sq.sendError.Add(1)
		sq.Logger.Warn("[SendQueue][%s] worker=%d send to %s FAILED after %v: %v",
			queueType, workerID, task.Target, elapsed, err)
		return err
	}
	sq.sendSuccess.Add(1)
	sq.Logger.Trace("[SendQueue][%s] worker=%d send to %s success in %v",
		queueType, workerID, task.Target, elapsed)
	return nil
}

func (sq *SendQueue) handleRetry(task *SendTask, sendErr error) {
	task.RetryCount++
	if task.RetryCount > task.MaxRetries {
		sq.retryExhausted.Add(1)
		sq.Logger.Debug("[SendQueue] Exceed max retries(%d) target=%s, giving up",
			task.MaxRetries, task.Target)
		return
	}
	backoff := sq.backoff(task.RetryCount)
	task.NextAttempt = time.Now().Add(backoff)
	sq.Enqueue(task)
	sq.Logger.Debug("[SendQueue] Retry %d/%d after %v for %s (err=%v)",
		task.RetryCount, task.MaxRetries, backoff, task.Target, sendErr)
}

// backoff = base * 2^(retry-1)，封顶 MaxRetryDelay，再加 ±JitterFactor 抖动
func (sq *SendQueue) backoff(retry int) time.Duration {
	s := sq.cfg.Sender
	d := s.BaseRetryDelay * time.Duration(math.Pow(2, float64(retry-1)))
	if d > s.MaxRetryDelay {
		d = s.MaxRetryDelay
	}
	jitterRange := float64(d) * s.JitterFactor
	return d + time.Duration(jitterRange*(rand.Float64()*2-1))
}

type SendQueueRuntimeStats struct {
	DelayedTimerBacklog int64
	DropControlFull     uint64
	DropDataFull        uint64
	DropStale           uint64
	RetryExhausted      uint64
	SendSuccess         uint64
	SendError           uint64
}

func (sq *SendQueue) GetRuntimeStats() SendQueueRuntimeStats {
	if sq == nil {
		return SendQueueRuntimeStats{}
	}
	return SendQueueRuntimeStats{
		DelayedTimerBacklog: sq.delayedTimerBacklog.Load(),
		DropControlFull:     sq.dropControlFull.Load(),
		DropDataFull:        sq.dropDataFull.Load(),
		DropStale:           sq.dropStale.Load(),
		RetryExhausted:      sq.retryExhausted.Load(),
		SendSuccess:         sq.sendSuccess.Load(),
		SendError:           sq.sendError.Load(),
	}
}

// QueueLen 两个队列的总长度
func (sq *SendQueue) QueueLen() int {
	return len(sq.controlChan) + len(sq.dataChan)
}
