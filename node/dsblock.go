package node

import (
	"fmt"
	"time"

	"shardchain/consensus"
	"shardchain/types"
	"shardchain/wire"
)

// ProcessVCDSBlocksMessage 处理 DS 委员会下发的新 DS 区块（附带 VC 区块、分片结构、交易分发）。
// 任何校验失败都拒绝整条消息，节点继续等待下一个合法的 DS 区块。
func (n *Node) ProcessVCDSBlocksMessage(msg []byte, offset int, from types.Peer) (err error) {
	n.dsBlockMu.Lock()
	defer n.dsBlockMu.Unlock()

	defer func() {
		if err != nil {
			n.setPhase(PhaseAwaitingDSBlock)
		}
	}()

	lookup := n.ctx.LookupNode
	if !lookup {
		if err := n.CheckState(ActionProcessDSBlock); err != nil {
			return err
		}
	} else {
		n.Logger.Info("[DSBlock] lookup node received DS block from %s", from)
	}

	n.setPhase(PhaseValidatingDSBlock)
	m, err := wire.GetNodeVCDSBlocksMessage(msg, offset)
	if err != nil {
		n.Logger.Warn("[DSBlock] GetNodeVCDSBlocksMessage failed: %v", err)
		return err
	}
	dsblock := &m.DSBlock
	header := &dsblock.Header

	if err := n.checkDSBlockHashSet(m); err != nil {
		return err
	}

	committeeHash := wire.GetDSCommitteeHash(n.ctx.CommitteeSnapshot())
	if committeeHash != header.CommitteeHash {
		n.Logger.Warn("[DSBlock] DS committee hash mismatch. Calculated: %s Received: %s",
			committeeHash, header.CommitteeHash)
		return fmt.Errorf("%w: DS committee hash", ErrHashMismatch)
	}

	n.updateShard(func(s *ShardIdentity) { s.ShardID = m.ShardID })
	n.logReceivedDSBlock(dsblock)

	if h := wire.DSBlockHeaderHash(header); h != dsblock.BlockHash {
		n.Logger.Warn("[DSBlock] block hash mismatch. Calculated: %s Received: %s", h, dsblock.BlockHash)
		return fmt.Errorf("%w: DS block hash", ErrHashMismatch)
	}

	if err := n.CheckWhetherDSBlockNumIsLatest(header.BlockNum); err != nil {
		return err
	}

	n.setPhase(PhaseApplyingViewChanges)
	if err := n.applyViewChanges(m.VCBlocks); err != nil {
		return err
	}

	n.setPhase(PhaseVerifyingCoSignature)
	if err := n.VerifyDSBlockCoSignature(dsblock); err != nil {
		n.Logger.Warn("[DSBlock] co-sig verification failed: %v", err)
		return err
	}

	n.checkSoftwareUpgrade(header.SWInfo)

	n.setPhase(PhaseCommittingToChain)
	if err := n.StoreDSBlockToDisk(dsblock); err != nil {
		return err
	}
	n.Logger.Info("[DSBLK][%s][%d] RECEIVED DSBLOCK", n.ctx.SelfPeer, n.nextTxBlockNum())

	n.setPhase(PhaseRoleTransition)
	if err := n.UpdateDSCommitteeComposition(dsblock); err != nil {
		return err
	}

	if lookup {
		n.deps.Lookup.ProcessEntireShardingStructure(m.Shards)
		n.ResetConsensusID()
		n.deps.Shard.FallbackTimerLaunch()
		n.deps.Shard.FallbackTimerPulse()
		n.setPhase(PhaseSteadyStateShard)
		n.logCommittee()
		return nil
	}

	n.deps.PoW.StopMining()

	myDSID, isNewDSMember := n.newDSMemberID(header.PoWDSWinners)
	dsSize := n.committeeSize()
	leaderID := ComputeLeaderID(n.ctx.LastTxBlockHash(), dsSize, n.ctx.CurrentEpoch())

	if isNewDSMember {
		n.becomeDSMember(m, myDSID, leaderID)
		n.setPhase(PhaseSteadyStateDS)
		n.logCommittee()
		return nil
	}

	n.Logger.Info("[DSBlock] I lost PoW (DS level), continuing as shard node")
	if err := n.LoadShardingStructure(m.Shards); err != nil {
		return err
	}
	if n.cfg.Node.BroadcastTreeBasedClusterMode {
		n.SendDSBlockToOtherShardNodes(msg)
	}
	n.LoadTxnSharingInfo(&m.Assignments)
	n.StartFirstTxEpoch()
	n.setPhase(PhaseSteadyStateShard)
	n.logCommittee()
	return nil
}

// checkDSBlockHashSet 重新计算分片结构和交易分发的哈希，与区块头比对
func (n *Node) checkDSBlockHashSet(m *wire.VCDSBlocksMessage) error {
	hs := m.DSBlock.Header.HashSet
	shardingHash := wire.GetShardingStructureHash(m.Shards)
	if shardingHash != hs.ShardingHash {
		n.Logger.Warn("[DSBlock] sharding structure hash mismatch. Calculated: %s Received: %s",
			shardingHash, hs.ShardingHash)
		return fmt.Errorf("%w: sharding structure", ErrHashMismatch)
	}
	txSharingHash, err := wire.GetTxSharingAssignmentsHash(&m.Assignments)
	if err != nil {
		n.Logger.Warn("[DSBlock] GetTxSharingAssignmentsHash failed: %v", err)
		return err
	}
	if txSharingHash != hs.TxSharingHash {
		n.Logger.Warn("[DSBlock] tx sharing hash mismatch. Calculated: %s Received: %s",
			txSharingHash, hs.TxSharingHash)
		return fmt.Errorf("%w: tx sharing assignments", ErrHashMismatch)
	}
	return nil
}

// CheckWhetherDSBlockNumIsLatest 只接受 last+1；重复和缺块分开报告
func (n *Node) CheckWhetherDSBlockNumIsLatest(num uint64) error {
	latest, ok := n.ctx.DSChain.LastBlockNum()
	if !ok {
		n.Logger.Warn("[DSBlock] DS chain is empty, genesis block not loaded")
		return fmt.Errorf("%w: DS chain has no genesis block", ErrState)
	}
	switch {
	case num < latest+1:
		n.Logger.Warn("[DSBlock] processing duplicated block. cur block num: %d incoming block num: %d", latest, num)
		return fmt.Errorf("%w: incoming %d, latest %d", ErrDuplicateBlock, num, latest)
	case num > latest+1:
		// TODO: 缺块时向 lookup 请求补齐，目前只拒绝
		n.Logger.Warn("[DSBlock] missing some DS blocks. Requested: %d while Present: %d", num, latest)
		return fmt.Errorf("%w: incoming %d, latest %d", ErrMissingBlocks, num, latest)
	}
	return nil
}

// VerifyDSBlockCoSignature 用当前 DS 委员会校验 CS2/B2
func (n *Node) VerifyDSBlockCoSignature(blk *types.DSBlock) error {
	n.ctx.CommitteeMu.Lock()
	keys := n.ctx.Committee.PubKeys()
	n.ctx.CommitteeMu.Unlock()

	header, err := wire.SetDSBlockHeader(nil, 0, &blk.Header)
	if err != nil {
		return err
	}
	return consensus.VerifyCoSignature(keys, header, blk.CoSigs, n.agg)
}

// checkSoftwareUpgrade 版本不同时后台下载，不阻塞接收流程
func (n *Node) checkSoftwareUpgrade(sw types.SWInfo) {
	go func() {
		start := time.Now()
		n.ctx.swMu.Lock()
		defer n.ctx.swMu.Unlock()
		if n.ctx.curSWInfo == sw {
			return
		}
		n.Logger.Info("[Upgrade] DS block carries %s, running %s", sw, n.ctx.curSWInfo)
		if n.deps.Upgrader.DownloadSW() {
			if latest, ok := n.deps.Upgrader.GetLatestSWInfo(); ok {
				n.ctx.curSWInfo = latest
			}
		}
		if d := time.Since(start); d > n.cfg.Node.SWUpgradeCheckTimeout {
			n.Logger.Warn("[Upgrade] upgrade check took %v", d)
		}
	}()
}

// StoreDSBlockToDisk 上链、更新随机数、落盘、写 block link。
// 持久化失败只记日志，区块已经进入内存链。
func (n *Node) StoreDSBlockToDisk(blk *types.DSBlock) error {
	enc, err := wire.SetDSBlock(nil, 0, blk)
	if err != nil {
		return fmt.Errorf("serialize DS block %d: %w", blk.Header.BlockNum, err)
	}
	if err := n.ctx.DSChain.AddBlock(blk); err != nil {
		return err
	}
	num := blk.Header.BlockNum
	n.Logger.Info("[DSBlock] storing DS block %d, DS PoW difficulty %d, difficulty %d, timestamp %s",
		num, blk.Header.DSDifficulty, blk.Header.Difficulty, blk.Header.Timestamp.Dec())

	n.ctx.UpdateDSBlockRand(false)

	if err := n.deps.Storage.PutDSBlock(num, enc); err != nil {
		n.Logger.Error("[DSBlock] PutDSBlock %d: %v", num, err)
	}
	if err := n.deps.Storage.PutLatestActiveDSBlockNum(num); err != nil {
		n.Logger.Error("[DSBlock] put LATESTACTIVEDSBLOCKNUM %d: %v", num, err)
	}
	n.addBlockLink(num, types.BlockTypeDS, blk.BlockHash)
	return nil
}

func (n *Node) addBlockLink(dsIndex uint64, t types.BlockType, hash types.BlockHash) {
	idx := n.ctx.BlockLinks.GetLatestIndex() + 1
	if err := n.ctx.BlockLinks.AddBlockLink(idx, dsIndex, t, hash); err != nil {
		n.Logger.Error("[BlockLink] add %s link %d: %v", t, idx, err)
	}
}

// UpdateDSCommitteeComposition 把新的 PoW 胜出者依次推到委员会队头，
// 自己那一项的 Peer 置空
func (n *Node) UpdateDSCommitteeComposition(blk *types.DSBlock) error {
	if err := n.ctx.rotateDSCommittee(blk.Header.PoWDSWinners); err != nil {
		n.Logger.Warn("[DSBlock] rotate DS committee: %v", err)
		return err
	}
	return nil
}

// newDSMemberID 胜出者按顺序推入队头，所以第 i 个最终位于 len-1-i
func (n *Node) newDSMemberID(winners types.DSPoWWinners) (uint16, bool) {
	entries := winners.Entries()
	for i, w := range entries {
		if w.PubKey == n.ctx.SelfKey.Pub {
			id := uint16(len(entries) - 1 - i)
			n.Logger.Info("[DSBlock] I won DS PoW. New DS committee member with id %d", id)
			return id, true
		}
	}
	return 0, false
}

func (n *Node) committeeSize() int {
	n.ctx.CommitteeMu.Lock()
	defer n.ctx.CommitteeMu.Unlock()
	return n.ctx.Committee.Len()
}

// ComputeLeaderID 第一个 epoch 固定 0，之后取上一个 Tx 区块哈希最后两字节对 size 取模
func ComputeLeaderID(lastTxBlockHash types.BlockHash, size int, epoch uint64) uint16 {
	if size <= 0 {
		return 0
	}
	var h uint16
	if epoch > 1 {
		h = lastTxBlockHash.Last16Bits()
	}
	return uint16(int(h) % size)
}

func (n *Node) nextTxBlockNum() uint64 {
	if last, ok := n.ctx.TxChain.GetLastBlock(); ok {
		return last.Header.BlockNum + 1
	}
	return 0
}

func (n *Node) logReceivedDSBlock(blk *types.DSBlock) {
	h := &blk.Header
	n.Logger.Debug("[DSBlock] received DS block %d: prevHash %s leader %s winners %d sw %s",
		h.BlockNum, h.PrevHash, h.LeaderPubKey, h.PoWDSWinners.Len(), h.SWInfo)
}

func (n *Node) logCommittee() {
	for i, m := range n.ctx.CommitteeSnapshot() {
		n.Logger.Debug("[DSCommittee] %d %s %s", i, m.PubKey.Hex()[:16], m.Peer)
	}
}
