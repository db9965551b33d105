package db

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"

	"shardchain/config"
	"shardchain/logs"
)

var (
	ErrNotFound = errors.New("db: key not found")
	ErrClosed   = errors.New("db: database is not initialized or closed")
)

// Manager 封装 BadgerDB 的管理器
type Manager struct {
	Db *badger.DB
	mu sync.RWMutex

	// 队列通道，批量写的 goroutine 用它来取写请求
	writeQueueChan chan WriteTask
	// 强制刷盘通道
	forceFlushChan chan flushRequest
	// 用于通知写队列 goroutine 停止
	stopChan chan struct{}
	metrics  writeQueueMetrics

	maxBatchSize  int           // 累计多少条就写一次
	flushInterval time.Duration // 间隔多久强制写一次
	wg            sync.WaitGroup

	Logger logs.Logger
	cfg    *config.Config
}

// NewManager 创建 Manager，cfg 为 nil 时用默认配置
func NewManager(path string, logger logs.Logger, cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logs.Default()
	}

	var opts badger.Options
	if cfg.Database.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// badger v2 不自动创建父目录，需要手动创建
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db dir: %w", err)
		}
		opts = badger.DefaultOptions(path)
		opts.ValueLogFileSize = cfg.Database.ValueLogFileSize
		// 使用 FileIO 模式减少 mmap 内存占用
		opts.TableLoadingMode = options.FileIO
		opts.ValueLogLoadingMode = options.FileIO
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Manager{Db: db, Logger: logger, cfg: cfg}, nil
}

// Get 直接读 badger，不经过写队列
func (manager *Manager) Get(key string) ([]byte, error) {
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return nil, ErrClosed
	}

	var value []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, err
}

// put 写队列已启动时入队，否则同步写入
func (manager *Manager) put(key string, value []byte) error {
	if manager.writeQueueChan != nil {
		manager.EnqueueSet(key, value)
		return nil
	}
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return ErrClosed
	}
	return db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (manager *Manager) Close() {
	// 1. 先做一次同步 flush，确保已经入队的写请求全部落盘
	if err := manager.ForceFlush(); err != nil {
		logs.Error("[db.Close] force flush failed: %v", err)
	}

	// 2. 通知写队列 goroutine 停止
	if manager.stopChan != nil {
		select {
		case <-manager.stopChan:
		default:
			close(manager.stopChan)
		}
	}

	// 3. 等待 goroutine 退出
	manager.wg.Wait()
	manager.stopChan = nil
	manager.forceFlushChan = nil
	manager.writeQueueChan = nil

	// 4. 队列里的数据都已经 flush 完了，可以安全关闭DB
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.Db != nil {
		if err := manager.Db.Close(); err != nil {
			logs.Error("[db.Close] close badger: %v", err)
		}
		manager.Db = nil
	}
}
