package interfaces

import (
	"shardchain/types"
)

// ============================================
// 外部协作者。核心只通过这些接口产生副作用。
// ============================================

// Storage 区块/元数据持久化，db.Manager 实现
type Storage interface {
	PutDSBlock(num uint64, data []byte) error
	PutTxBlock(num uint64, data []byte) error
	PutVCBlock(hash types.BlockHash, data []byte) error
	PutFallbackBlock(hash types.BlockHash, data []byte) error
	PutBlockLink(index uint64, data []byte) error
	GetBlockLink(index uint64) ([]byte, error)
	// LATESTACTIVEDSBLOCKNUM 等数值元数据
	PutLatestActiveDSBlockNum(num uint64) error
	PutLatestTxBlockNum(num uint64) error
}

// Transport 把编码好的消息交给网络层，sender.SendQueue 实现
type Transport interface {
	SendMessage(peers []types.Peer, msg []byte)
	// 树形转发：返回实际转发的节点数
	SendBlockToOtherShardNodes(msg []byte, shard []types.Peer, myIndex int) int
}

// PoW DS 区块被接受后停止本轮挖矿
type PoW interface {
	StopMining()
}

// Upgrader 软件升级，在后台 goroutine 里调用
type Upgrader interface {
	DownloadSW() bool
	GetLatestSWInfo() (types.SWInfo, bool)
}

// DirectoryService 本节点成为 DS 成员后的后续动作
type DirectoryService interface {
	// 清掉作为分片节点时创建的交易
	CleanCreatedTransaction()
	StartFirstTxEpoch()
}

// ShardEpoch 分片节点进入新 DS epoch 后的动作
type ShardEpoch interface {
	CommitTxnPacketBuffer()
	RunConsensusOnMicroBlock()
	FallbackTimerLaunch()
	FallbackTimerPulse()
}

// Rejoiner 在分片结构里找不到自己时重新加入网络
type Rejoiner interface {
	RejoinAsNormal()
}

// Lookup lookup 节点收到 DS 区块后的动作
type Lookup interface {
	ProcessEntireShardingStructure(shards types.DequeOfShard)
}
