package node

import (
	"fmt"
	"sync"

	"shardchain/blockchain"
	"shardchain/config"
	"shardchain/types"
	"shardchain/utils"
	"shardchain/wire"
)

const RandSize = 32

var (
	genesisDSRand = []byte("shardchain-genesis-ds-rand")
	genesisTxRand = []byte("shardchain-genesis-tx-rand")
)

// Context 节点进程内共享的状态，由进程构造并传给各组件。
// 委员会的读（签名校验前取快照）和写（轮换）都要持有 CommitteeMu。
type Context struct {
	SelfKey  types.KeyPair
	SelfPeer types.Peer

	CommitteeMu sync.Mutex
	Committee   *types.Committee

	DSChain    *blockchain.DSBlockChain
	TxChain    *blockchain.TxBlockChain
	BlockLinks *blockchain.BlockLinkChain

	LookupNode bool

	mu           sync.RWMutex
	currentEpoch uint64
	consensusID  uint32
	dsBlockRand  [RandSize]byte
	txBlockRand  [RandSize]byte

	vacuousMu      sync.Mutex
	isVacuousEpoch bool

	swMu      sync.Mutex
	curSWInfo types.SWInfo
}

// NewContext links 为 nil 时 block link 只保存在内存；links 支持遍历时先读回已有链接
func NewContext(cfg *config.Config, self types.KeyPair, selfPeer types.Peer, committee *types.Committee, links blockchain.LinkStore) (*Context, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if committee == nil {
		return nil, fmt.Errorf("node: nil DS committee")
	}
	ds, err := blockchain.NewDSBlockChain(cfg.Cache.DSBlockCacheSize)
	if err != nil {
		return nil, err
	}
	tx, err := blockchain.NewTxBlockChain(cfg.Cache.TxBlockCacheSize)
	if err != nil {
		return nil, err
	}
	bl, err := blockchain.LoadBlockLinkChain(links)
	if err != nil {
		return nil, err
	}
	c := &Context{
		SelfKey:    self,
		SelfPeer:   selfPeer,
		Committee:  committee,
		DSChain:    ds,
		TxChain:    tx,
		BlockLinks: bl,
		LookupNode: cfg.Node.LookupNodeMode,
	}
	c.UpdateDSBlockRand(true)
	c.UpdateTxBlockRand(true)
	return c, nil
}

func (c *Context) CurrentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentEpoch
}

func (c *Context) SetCurrentEpoch(e uint64) {
	c.mu.Lock()
	c.currentEpoch = e
	c.mu.Unlock()
}

func (c *Context) IncreaseEpochNum() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentEpoch++
	return c.currentEpoch
}

func (c *Context) ConsensusID() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consensusID
}

func (c *Context) SetConsensusID(id uint32) {
	c.mu.Lock()
	c.consensusID = id
	c.mu.Unlock()
}

func (c *Context) DSBlockRand() [RandSize]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dsBlockRand
}

func (c *Context) TxBlockRand() [RandSize]byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.txBlockRand
}

// UpdateDSBlockRand 下一轮 PoW 的随机数 = sha256(最新 DS 区块编码)
func (c *Context) UpdateDSBlockRand(isGenesis bool) {
	var r types.Hash
	last, ok := c.DSChain.GetLastBlock()
	if isGenesis || !ok {
		r = utils.Sha256Fixed(genesisDSRand)
	} else if enc, err := wire.SetDSBlock(nil, 0, last); err == nil {
		r = utils.Sha256Fixed(enc)
	} else {
		r = utils.Sha256Fixed(last.BlockHash[:])
	}
	c.mu.Lock()
	c.dsBlockRand = r
	c.mu.Unlock()
}

func (c *Context) UpdateTxBlockRand(isGenesis bool) {
	var r types.Hash
	last, ok := c.TxChain.GetLastBlock()
	if isGenesis || !ok {
		r = utils.Sha256Fixed(genesisTxRand)
	} else if enc, err := wire.SetTxBlock(nil, 0, last); err == nil {
		r = utils.Sha256Fixed(enc)
	} else {
		r = utils.Sha256Fixed(last.BlockHash[:])
	}
	c.mu.Lock()
	c.txBlockRand = r
	c.mu.Unlock()
}

// LastTxBlockHash Tx 链为空时返回零值
func (c *Context) LastTxBlockHash() types.BlockHash {
	if last, ok := c.TxChain.GetLastBlock(); ok {
		return last.BlockHash
	}
	return types.BlockHash{}
}

func (c *Context) IsVacuousEpoch() bool {
	c.vacuousMu.Lock()
	defer c.vacuousMu.Unlock()
	return c.isVacuousEpoch
}

func (c *Context) SetVacuousEpoch(v bool) {
	c.vacuousMu.Lock()
	c.isVacuousEpoch = v
	c.vacuousMu.Unlock()
}

func (c *Context) CurSWInfo() types.SWInfo {
	c.swMu.Lock()
	defer c.swMu.Unlock()
	return c.curSWInfo
}

func (c *Context) SetCurSWInfo(sw types.SWInfo) {
	c.swMu.Lock()
	c.curSWInfo = sw
	c.swMu.Unlock()
}

// rotateDSCommittee 把 PoW 胜出者依次推到委员会队头，自己那一项的 Peer 置空
func (c *Context) rotateDSCommittee(winners types.DSPoWWinners) error {
	entries := winners.Entries()
	members := make([]types.CommitteeMember, len(entries))
	for i, w := range entries {
		members[i] = types.CommitteeMember{PubKey: w.PubKey, Peer: w.Peer}
		if w.PubKey == c.SelfKey.Pub {
			members[i].Peer = types.Peer{}
		}
	}
	c.CommitteeMu.Lock()
	defer c.CommitteeMu.Unlock()
	return c.Committee.Rotate(members)
}

// CommitteeSnapshot 持锁拷贝委员会成员
func (c *Context) CommitteeSnapshot() []types.CommitteeMember {
	c.CommitteeMu.Lock()
	defer c.CommitteeMu.Unlock()
	return c.Committee.Members()
}
