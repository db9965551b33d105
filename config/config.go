// config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config 主配置结构
type Config struct {
	Consensus ConsensusConfig
	Committee CommitteeConfig
	Node      NodeConfig
	Database  DatabaseConfig
	Sender    SenderConfig
	Server    ServerConfig
	Cache     CacheConfig
}

// ConsensusConfig 共识阈值相关
type ConsensusConfig struct {
	// NumForConsensus = ceil(N * ToleranceFraction)
	ToleranceFraction float64 // 0.667
	// VC 区块计数器不连续时直接拒绝（默认只告警）
	StrictVCCounter bool // false
	// 并行预校验 VC 区块签名的 goroutine 上限
	VCVerifyParallelism int // 4
}

// CommitteeConfig DS 委员会配置
type CommitteeConfig struct {
	DSCommitteeSize int // 固定长度，轮换时保持不变
}

// NodeConfig 节点角色/广播相关
type NodeConfig struct {
	LookupNodeMode bool // false

	NumMicroBlockSenders         int // 3
	NumMicroBlockGossipReceivers int // 5

	// 每个 DS epoch 的 final block 数，最后一个是 vacuous epoch
	NumFinalBlockPerPoW uint64 // 50

	// 树形转发 DS 区块
	BroadcastTreeBasedClusterMode      bool // false
	NumForwardedBlockReceiversPerShard int  // 3
	NumOfTreeBasedChildClusters        int  // 3

	// 升级检查异步执行，超时只用于日志
	SWUpgradeCheckTimeout time.Duration // 30 * time.Second
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// BadgerDB配置
	ValueLogFileSize int64 // 64 << 20 (64MB)
	InMemory         bool  // 测试用

	// 写队列配置
	WriteQueueSize int           // 10000
	MaxBatchSize   int           // 100
	FlushInterval  time.Duration // 200 * time.Millisecond
}

// SenderConfig 发送器配置
type SenderConfig struct {
	WorkerCount   int // 8
	QueueCapacity int // 1024

	MaxRetries     int           // 3
	BaseRetryDelay time.Duration // 200 * time.Millisecond
	MaxRetryDelay  time.Duration // 5 * time.Second
	JitterFactor   float64       // 0.3，退避时间上下浮动比例

	// 入队超过这么久还没发出去的任务直接丢弃
	TaskExpireTimeout time.Duration // 10 * time.Second
	// HTTP/3 单次请求超时
	ConnectionTimeout time.Duration // 5 * time.Second
}

// ServerConfig HTTP/3 接收端
type ServerConfig struct {
	ListenAddr string // ":4001"
	// 单条消息上限
	MaxMessageSize int64 // 8 << 20
	// 每个来源地址在一个窗口内允许的请求数
	RequestLimit int           // 2000
	RateWindow   time.Duration // time.Second
	// 不活跃来源的清理周期
	CleanupInterval time.Duration // 2 * time.Minute
}

// CacheConfig LRU 缓存大小
type CacheConfig struct {
	DSBlockCacheSize      int // 64
	TxBlockCacheSize      int // 256
	AggregateKeyCacheSize int // 128
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Consensus: ConsensusConfig{
			ToleranceFraction:   0.667,
			StrictVCCounter:     false,
			VCVerifyParallelism: 4,
		},
		Committee: CommitteeConfig{
			DSCommitteeSize: 4,
		},
		Node: NodeConfig{
			LookupNodeMode:                     false,
			NumMicroBlockSenders:               3,
			NumMicroBlockGossipReceivers:       5,
			NumFinalBlockPerPoW:                50,
			BroadcastTreeBasedClusterMode:      false,
			NumForwardedBlockReceiversPerShard: 3,
			NumOfTreeBasedChildClusters:        3,
			SWUpgradeCheckTimeout:              30 * time.Second,
		},
		Database: DatabaseConfig{
			ValueLogFileSize: 64 << 20,
			WriteQueueSize:   10000,
			MaxBatchSize:     100,
			FlushInterval:    200 * time.Millisecond,
		},
		Sender: SenderConfig{
			WorkerCount:    8,
			QueueCapacity:  1024,
			MaxRetries:     3,
			BaseRetryDelay: 200 * time.Millisecond,
			MaxRetryDelay:  5 * time.Second,
			JitterFactor:   0.3,

			TaskExpireTimeout: 10 * time.Second,
			ConnectionTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			ListenAddr:      ":4001",
			MaxMessageSize:  8 << 20,
			RequestLimit:    2000,
			RateWindow:      time.Second,
			CleanupInterval: 2 * time.Minute,
		},
		Cache: CacheConfig{
			DSBlockCacheSize:      64,
			TxBlockCacheSize:      256,
			AggregateKeyCacheSize: 128,
		},
	}
}

// LoadFromFile 从 JSON 文件加载配置，path 为空时返回默认配置。
// 文件里没出现的字段保持默认值。
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 验证配置合法性
func (c *Config) Validate() error {
	if c.Consensus.ToleranceFraction <= 0 || c.Consensus.ToleranceFraction > 1 {
		return fmt.Errorf("ToleranceFraction must be in (0,1], got %v", c.Consensus.ToleranceFraction)
	}
	if c.Committee.DSCommitteeSize <= 0 {
		return fmt.Errorf("DSCommitteeSize must be positive")
	}
	if c.Node.NumMicroBlockSenders < 0 || c.Node.NumMicroBlockGossipReceivers < 0 {
		return fmt.Errorf("microblock sender/receiver counts must not be negative")
	}
	if c.Node.NumFinalBlockPerPoW == 0 {
		return fmt.Errorf("NumFinalBlockPerPoW must be positive")
	}
	if c.Node.BroadcastTreeBasedClusterMode {
		if c.Node.NumForwardedBlockReceiversPerShard <= 0 || c.Node.NumOfTreeBasedChildClusters <= 0 {
			return fmt.Errorf("tree based forwarding needs positive cluster size and child count")
		}
	}
	if c.Database.MaxBatchSize <= 0 {
		return fmt.Errorf("MaxBatchSize must be positive")
	}
	if c.Sender.WorkerCount <= 0 || c.Sender.QueueCapacity <= 0 {
		return fmt.Errorf("sender WorkerCount and QueueCapacity must be positive")
	}
	if c.Sender.JitterFactor < 0 || c.Sender.JitterFactor >= 1 {
		return fmt.Errorf("sender JitterFactor must be in [0,1), got %v", c.Sender.JitterFactor)
	}
	if c.Server.MaxMessageSize <= 0 || c.Server.RequestLimit <= 0 || c.Server.RateWindow <= 0 {
		return fmt.Errorf("server MaxMessageSize, RequestLimit and RateWindow must be positive")
	}
	return nil
}
