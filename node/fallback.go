package node

import (
	"fmt"

	"shardchain/consensus"
	"shardchain/types"
	"shardchain/wire"
)

// ProcessFallbackBlock 分片 leader 失效后由 fallback 共识产生的区块，附带当时的分片结构
func (n *Node) ProcessFallbackBlock(msg []byte, offset int, from types.Peer) error {
	n.dsBlockMu.Lock()
	defer n.dsBlockMu.Unlock()

	lookup := n.ctx.LookupNode
	if !lookup {
		if err := n.CheckState(ActionProcessFallbackBlock); err != nil {
			return err
		}
	}

	var fb types.FallbackBlock
	shards, err := wire.GetFallbackBlockWShardingStructure(msg, offset, &fb)
	if err != nil {
		n.Logger.Warn("[Fallback] GetFallbackBlockWShardingStructure from %s failed: %v", from, err)
		return err
	}
	h := &fb.Header

	lastDS, ok := n.ctx.DSChain.GetLastBlock()
	if !ok {
		return fmt.Errorf("%w: DS chain has no genesis block", ErrState)
	}
	if h.FallbackDSEpochNo != lastDS.Header.BlockNum {
		n.Logger.Warn("[Fallback] fallback DS epoch %d, latest DS block %d", h.FallbackDSEpochNo, lastDS.Header.BlockNum)
		return fmt.Errorf("%w: fallback DS epoch %d, latest DS block %d",
			consensus.ErrFieldMismatch, h.FallbackDSEpochNo, lastDS.Header.BlockNum)
	}
	if sh := wire.GetShardingStructureHash(shards); sh != lastDS.Header.HashSet.ShardingHash {
		n.Logger.Warn("[Fallback] sharding hash mismatch. Calculated: %s DS block: %s",
			sh, lastDS.Header.HashSet.ShardingHash)
		return fmt.Errorf("%w: fallback sharding structure", ErrHashMismatch)
	}

	shardID := int(h.ShardID)
	if shardID >= len(shards) {
		n.Logger.Warn("[Fallback] shard ID %d >= num shards %d", shardID, len(shards))
		return fmt.Errorf("%w: shard ID %d >= num shards %d", consensus.ErrFieldMismatch, shardID, len(shards))
	}
	shard := shards[shardID]
	if ch := wire.GetShardHash(shard); ch != h.CommitteeHash {
		n.Logger.Warn("[Fallback] shard committee hash mismatch. Calculated: %s Received: %s", ch, h.CommitteeHash)
		return fmt.Errorf("%w: fallback committee hash", ErrHashMismatch)
	}
	if bh := wire.FallbackBlockHeaderHash(h); bh != fb.BlockHash {
		n.Logger.Warn("[Fallback] block hash mismatch. Calculated: %s Received: %s", bh, fb.BlockHash)
		return fmt.Errorf("%w: fallback block hash", ErrHashMismatch)
	}
	leader := int(h.LeaderConsensusID)
	if leader >= len(shard) || shard[leader].PubKey != h.LeaderPubKey {
		n.Logger.Warn("[Fallback] leader consensus id %d does not match shard of %d", leader, len(shard))
		return fmt.Errorf("%w: fallback leader %d", consensus.ErrFieldMismatch, leader)
	}

	header, err := wire.SetFallbackBlockHeader(nil, 0, h)
	if err != nil {
		return err
	}
	if err := consensus.VerifyCoSignature(shard.PubKeys(), header, fb.CoSigs, n.agg); err != nil {
		n.Logger.Warn("[Fallback] co-sig verification failed: %v", err)
		return err
	}

	if enc, err := wire.SetFallbackBlock(nil, 0, &fb); err != nil {
		n.Logger.Error("[Fallback] serialize fallback block: %v", err)
	} else if err := n.deps.Storage.PutFallbackBlock(fb.BlockHash, enc); err != nil {
		n.Logger.Error("[Fallback] PutFallbackBlock %s: %v", fb.BlockHash, err)
	}
	n.addBlockLink(h.FallbackDSEpochNo, types.BlockTypeFB, fb.BlockHash)
	n.Logger.Info("[Fallback] shard %d fallback done, new leader %d at %s", shardID, leader, h.LeaderNetworkInfo)

	if lookup || uint32(shardID) != n.ShardIdentity().ShardID {
		return nil
	}
	n.updateShard(func(s *ShardIdentity) {
		s.ConsensusLeaderID = uint16(leader)
		s.IsPrimary = s.ConsensusMyID == uint16(leader)
		s.JustDidFallback = true
	})
	n.SetState(StateMicroBlockConsensusPrep)
	n.deps.Shard.FallbackTimerPulse()
	go n.deps.Shard.RunConsensusOnMicroBlock()
	return nil
}
