package node

import (
	"fmt"
	"slices"
	"sync"

	"shardchain/config"
	"shardchain/consensus"
	"shardchain/interfaces"
	"shardchain/logs"
	"shardchain/types"
)

// Deps 外部协作者，nil 的钩子用空实现代替
type Deps struct {
	Storage   interfaces.Storage
	Transport interfaces.Transport
	PoW       interfaces.PoW
	Upgrader  interfaces.Upgrader
	DS        interfaces.DirectoryService
	Shard     interfaces.ShardEpoch
	Rejoiner  interfaces.Rejoiner
	Lookup    interfaces.Lookup
}

// ShardIdentity 本节点作为分片成员时的身份
type ShardIdentity struct {
	ShardID           uint32
	NumShards         int
	Members           types.Shard // 自己那一项的 Peer 已清零
	ConsensusMyID     uint16
	ConsensusLeaderID uint16
	IsPrimary         bool
	IsMBSender        bool
	DSMBReceivers     []types.Peer
	JustDidFallback   bool

	TxnSharingIAmSender     bool
	TxnSharingIAmForwarder  bool
	TxnSharingAssignedNodes [][]types.Peer
}

func (s ShardIdentity) clone() ShardIdentity {
	out := s
	out.Members = slices.Clone(s.Members)
	out.DSMBReceivers = slices.Clone(s.DSMBReceivers)
	out.TxnSharingAssignedNodes = make([][]types.Peer, len(s.TxnSharingAssignedNodes))
	for i, g := range s.TxnSharingAssignedNodes {
		out.TxnSharingAssignedNodes[i] = slices.Clone(g)
	}
	return out
}

// DSIdentity 本节点成为 DS 成员后的状态
type DSIdentity struct {
	Mode              Mode
	ConsensusMyID     uint16
	ConsensusLeaderID uint16
	Shards            types.DequeOfShard
	Assignments       types.TxSharingAssignments
	PubKeyToShardID   map[types.PubKey]uint32
	NodeReputation    map[types.PubKey]uint16
	IAmDSReceiver     bool
}

type Node struct {
	ctx    *Context
	cfg    *config.Config
	deps   Deps
	agg    *consensus.KeyAggregator
	Logger logs.Logger

	// DS 区块、VC 区块、fallback 区块的处理串行执行
	dsBlockMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	phase   Phase
	shard   ShardIdentity
	ds      DSIdentity
}

func New(ctx *Context, cfg *config.Config, deps Deps, logger logs.Logger) (*Node, error) {
	if ctx == nil {
		return nil, fmt.Errorf("node: nil context")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = logs.Default()
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("node: storage is required")
	}
	if deps.Transport == nil {
		deps.Transport = noopTransport{}
	}
	if deps.PoW == nil {
		deps.PoW = noopHooks{}
	}
	if deps.Upgrader == nil {
		deps.Upgrader = noopHooks{}
	}
	if deps.DS == nil {
		deps.DS = noopHooks{}
	}
	if deps.Shard == nil {
		deps.Shard = noopHooks{}
	}
	if deps.Rejoiner == nil {
		deps.Rejoiner = noopHooks{}
	}
	if deps.Lookup == nil {
		deps.Lookup = noopHooks{}
	}
	agg, err := consensus.NewKeyAggregator(cfg.Cache.AggregateKeyCacheSize)
	if err != nil {
		return nil, err
	}
	consensus.SetToleranceFraction(cfg.Consensus.ToleranceFraction)

	return &Node{
		ctx:    ctx,
		cfg:    cfg,
		deps:   deps,
		agg:    agg,
		Logger: logger,
		state:  StateWaitingDSBlock,
	}, nil
}

func (n *Node) Context() *Context { return n.ctx }

func (n *Node) State() State {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.state
}

func (n *Node) SetState(s State) {
	n.stateMu.Lock()
	old := n.state
	n.state = s
	n.stateMu.Unlock()
	if old != s {
		n.Logger.Debug("[Node] state %s -> %s", old, s)
	}
}

func (n *Node) Phase() Phase {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.phase
}

func (n *Node) setPhase(p Phase) {
	n.stateMu.Lock()
	n.phase = p
	n.stateMu.Unlock()
	n.Logger.Trace("[DSBlock] phase %s", p)
}

// CheckState 当前状态是否允许执行 action
func (n *Node) CheckState(a Action) error {
	s := n.State()
	if slices.Contains(allowedStates[a], s) {
		return nil
	}
	n.Logger.Warn("[Node] action %s not allowed in state %s", a, s)
	return fmt.Errorf("%w: %s in %s", ErrState, a, s)
}

// ShardIdentity 返回拷贝
func (n *Node) ShardIdentity() ShardIdentity {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.shard.clone()
}

// DSIdentity 返回拷贝，map 共享只读
func (n *Node) DSIdentity() DSIdentity {
	n.stateMu.RLock()
	defer n.stateMu.RUnlock()
	return n.ds
}

func (n *Node) updateShard(f func(s *ShardIdentity)) {
	n.stateMu.Lock()
	f(&n.shard)
	n.stateMu.Unlock()
}

func (n *Node) updateDS(f func(d *DSIdentity)) {
	n.stateMu.Lock()
	f(&n.ds)
	n.stateMu.Unlock()
}

type noopHooks struct{}

func (noopHooks) StopMining()                                       {}
func (noopHooks) DownloadSW() bool                                  { return false }
func (noopHooks) GetLatestSWInfo() (types.SWInfo, bool)             { return types.SWInfo{}, false }
func (noopHooks) CleanCreatedTransaction()                          {}
func (noopHooks) StartFirstTxEpoch()                                {}
func (noopHooks) CommitTxnPacketBuffer()                            {}
func (noopHooks) RunConsensusOnMicroBlock()                         {}
func (noopHooks) FallbackTimerLaunch()                              {}
func (noopHooks) FallbackTimerPulse()                               {}
func (noopHooks) RejoinAsNormal()                                   {}
func (noopHooks) ProcessEntireShardingStructure(types.DequeOfShard) {}

type noopTransport struct{}

func (noopTransport) SendMessage([]types.Peer, []byte)                         {}
func (noopTransport) SendBlockToOtherShardNodes([]byte, []types.Peer, int) int { return 0 }
