package node

import (
	"fmt"

	"shardchain/types"
	"shardchain/wire"
)

// ResetConsensusID 第一个 epoch 从 1 开始，其余从 0
func (n *Node) ResetConsensusID() {
	if n.ctx.CurrentEpoch() == 1 {
		n.ctx.SetConsensusID(1)
	} else {
		n.ctx.SetConsensusID(0)
	}
}

// becomeDSMember 本节点赢得 DS PoW：建立 DS 侧的分片索引，决定 primary/backup
func (n *Node) becomeDSMember(m *wire.VCDSBlocksMessage, myID, leaderID uint16) {
	pubKeyToShard, reputation := ProcessShardingStructure(m.Shards)
	iAmReceiver := false
	for _, p := range m.Assignments.DSReceivers {
		if p == n.ctx.SelfPeer {
			iAmReceiver = true
			break
		}
	}

	n.deps.DS.CleanCreatedTransaction()

	n.ctx.CommitteeMu.Lock()
	mode := ModeBackupDS
	if leaderID == myID {
		mode = ModePrimaryDS
	}
	n.updateDS(func(d *DSIdentity) {
		d.Mode = mode
		d.ConsensusMyID = myID
		d.ConsensusLeaderID = leaderID
		d.Shards = m.Shards
		d.Assignments = m.Assignments
		d.PubKeyToShardID = pubKeyToShard
		d.NodeReputation = reputation
		d.IAmDSReceiver = iAmReceiver
	})
	n.ctx.CommitteeMu.Unlock()

	n.Logger.Info("[DSBlock] DS leader is at %d, I am %d (%s)", leaderID, myID, mode)
	n.deps.DS.StartFirstTxEpoch()
}

// ProcessShardingStructure DS 侧索引：公钥 -> 分片号、公钥 -> 信誉
func ProcessShardingStructure(shards types.DequeOfShard) (map[types.PubKey]uint32, map[types.PubKey]uint16) {
	toShard := make(map[types.PubKey]uint32, shards.NumMembers())
	reputation := make(map[types.PubKey]uint16, shards.NumMembers())
	for i, shard := range shards {
		for _, m := range shard {
			toShard[m.PubKey] = uint32(i)
			reputation[m.PubKey] = m.Reputation
		}
	}
	return toShard, reputation
}

// LoadShardingStructure 取出本分片成员，定位自己。
// 找不到自己时走 rejoin 流程。
func (n *Node) LoadShardingStructure(shards types.DequeOfShard) error {
	if n.ctx.LookupNode {
		n.Logger.Warn("[Shard] LoadShardingStructure not expected on lookup node")
		return nil
	}
	shardID := n.ShardIdentity().ShardID
	if int(shardID) >= len(shards) {
		n.Logger.Warn("[Shard] shard ID %d >= num shards %d", shardID, len(shards))
		return fmt.Errorf("%w: shard ID %d >= num shards %d", ErrIdentityNotFound, shardID, len(shards))
	}

	members := make(types.Shard, len(shards[shardID]))
	copy(members, shards[shardID])
	myID := -1
	for i := range members {
		if members[i].Peer == n.ctx.SelfPeer {
			myID = i
			members[i].Peer = types.Peer{}
		}
		n.Logger.Trace("[Shard] member %d PubKey %s Peer %s", i, members[i].PubKey.Hex()[:16], members[i].Peer)
	}
	if myID < 0 {
		n.Logger.Warn("[Shard] I'm not in the sharding structure, rejoining")
		n.deps.Rejoiner.RejoinAsNormal()
		return fmt.Errorf("%w: shard %d", ErrIdentityNotFound, shardID)
	}

	n.updateShard(func(s *ShardIdentity) {
		s.NumShards = len(shards)
		s.Members = members
		s.ConsensusMyID = uint16(myID)
	})
	return nil
}

// LoadTxnSharingInfo 汇总交易分发指派并判断自己在本分片是否是 sender/forwarder
func (n *Node) LoadTxnSharingInfo(a *types.TxSharingAssignments) {
	if n.ctx.LookupNode {
		n.Logger.Warn("[Shard] LoadTxnSharingInfo not expected on lookup node")
		return
	}
	myShard := int(n.ShardIdentity().ShardID)
	self := n.ctx.SelfPeer

	assigned := make([][]types.Peer, 0, 1+2*len(a.ShardReceivers))
	assigned = append(assigned, append([]types.Peer(nil), a.DSReceivers...))
	iAmSender, iAmForwarder := false, false
	for i := range a.ShardReceivers {
		assigned = append(assigned, append([]types.Peer(nil), a.ShardReceivers[i]...))
		if i == myShard && containsPeer(a.ShardReceivers[i], self) {
			iAmForwarder = true
		}
		var senders []types.Peer
		if i < len(a.ShardSenders) {
			senders = a.ShardSenders[i]
		}
		assigned = append(assigned, append([]types.Peer(nil), senders...))
		if i == myShard && containsPeer(senders, self) {
			iAmSender = true
		}
	}

	n.updateShard(func(s *ShardIdentity) {
		s.TxnSharingAssignedNodes = assigned
		s.TxnSharingIAmSender = iAmSender
		s.TxnSharingIAmForwarder = iAmForwarder
	})
}

func containsPeer(ps []types.Peer, p types.Peer) bool {
	for _, x := range ps {
		if x == p {
			return true
		}
	}
	return false
}

// StartFirstTxEpoch 分片节点进入新 DS epoch：选 leader、micro block 发送者和接收者，
// 然后启动 micro block 共识和 fallback 计时器
func (n *Node) StartFirstTxEpoch() {
	if n.ctx.LookupNode {
		n.Logger.Warn("[Shard] StartFirstTxEpoch not expected on lookup node")
		return
	}
	n.ResetConsensusID()

	id := n.ShardIdentity()
	size := len(id.Members)
	if size == 0 {
		n.Logger.Error("[Shard] StartFirstTxEpoch with empty shard")
		return
	}
	leaderID := ComputeLeaderID(n.ctx.LastTxBlockHash(), size, n.ctx.CurrentEpoch())
	self := n.ctx.SelfKey.Pub
	isPrimary := id.Members[leaderID].PubKey == self

	// leader 不当 micro block 发送者
	isMBSender := false
	numSenders := min(n.cfg.Node.NumMicroBlockSenders, size)
	for i := 1; i < numSenders; i++ {
		if id.Members[i].PubKey == self {
			isMBSender = true
			break
		}
	}

	committee := n.ctx.CommitteeSnapshot()
	numReceivers := min(n.cfg.Node.NumMicroBlockGossipReceivers, len(committee))
	receivers := make([]types.Peer, numReceivers)
	for i := 0; i < numReceivers; i++ {
		receivers[i] = committee[i].Peer
	}

	n.updateShard(func(s *ShardIdentity) {
		s.ConsensusLeaderID = leaderID
		s.IsPrimary = isPrimary
		s.IsMBSender = isMBSender
		s.DSMBReceivers = receivers
		s.JustDidFallback = false
	})
	if isPrimary {
		n.Logger.Info("[IDENT][%s][%d][0] I am leader of the sharded committee", n.ctx.SelfPeer, id.ShardID)
	} else {
		n.Logger.Info("[IDENT][%s][%d][%d] I am backup member of the sharded committee",
			n.ctx.SelfPeer, id.ShardID, id.ConsensusMyID)
	}

	n.SetState(StateMicroBlockConsensusPrep)
	n.deps.Shard.CommitTxnPacketBuffer()
	go n.deps.Shard.RunConsensusOnMicroBlock()
	n.deps.Shard.FallbackTimerLaunch()
	n.deps.Shard.FallbackTimerPulse()
}

// SendDSBlockToOtherShardNodes 把收到的整条消息按树形结构转给本分片的下游
func (n *Node) SendDSBlockToOtherShardNodes(msg []byte) {
	id := n.ShardIdentity()
	peers := make([]types.Peer, len(id.Members))
	for i, m := range id.Members {
		peers[i] = m.Peer
	}
	n.Logger.Info("[Shard] primary cluster size used is %d", n.cfg.Node.NumForwardedBlockReceiversPerShard)
	n.deps.Transport.SendBlockToOtherShardNodes(msg, peers, int(id.ConsensusMyID))
}
