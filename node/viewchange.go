package node

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"shardchain/consensus"
	"shardchain/types"
	"shardchain/wire"
)

// verifyVCBlockFields 对照给定委员会校验 VC 区块：委员会哈希、区块哈希和候选 leader
func (n *Node) verifyVCBlockFields(vc *types.VCBlock, committee []types.CommitteeMember) error {
	h := &vc.Header
	if ch := wire.GetDSCommitteeHash(committee); ch != h.CommitteeHash {
		n.Logger.Warn("[VCBlock] DS committee hash mismatch. Calculated: %s Received: %s", ch, h.CommitteeHash)
		return fmt.Errorf("%w: VC block committee hash", ErrHashMismatch)
	}
	if bh := wire.VCBlockHeaderHash(h); bh != vc.BlockHash {
		n.Logger.Warn("[VCBlock] block hash mismatch. Calculated: %s Received: %s", bh, vc.BlockHash)
		return fmt.Errorf("%w: VC block hash", ErrHashMismatch)
	}
	idx := int(h.CandidateLeaderIndex)
	if idx >= len(committee) || committee[idx].PubKey != h.CandidateLeaderPubKey {
		n.Logger.Warn("[VCBlock] candidate leader %d does not match committee of %d", idx, len(committee))
		return fmt.Errorf("%w: candidate leader index %d", consensus.ErrFieldMismatch, idx)
	}
	return nil
}

func (n *Node) verifyVCBlockCoSig(vc *types.VCBlock, keys []types.PubKey) error {
	header, err := wire.SetVCBlockHeader(nil, 0, &vc.Header)
	if err != nil {
		return err
	}
	if err := consensus.VerifyCoSignature(keys, header, vc.CoSigs, n.agg); err != nil {
		n.Logger.Warn("[VCBlock] co-sig verification failed for counter %d: %v", vc.Header.VCCounter, err)
		return err
	}
	return nil
}

// commitVCBlock 轮换 leader，落盘，写 block link
func (n *Node) commitVCBlock(vc *types.VCBlock) {
	n.ctx.CommitteeMu.Lock()
	n.ctx.Committee.RotateLeaderToTail(int(vc.Header.CandidateLeaderIndex))
	n.ctx.CommitteeMu.Unlock()

	if enc, err := wire.SetVCBlock(nil, 0, vc); err != nil {
		n.Logger.Error("[VCBlock] serialize VC block %s: %v", vc.BlockHash, err)
	} else if err := n.deps.Storage.PutVCBlock(vc.BlockHash, enc); err != nil {
		n.Logger.Error("[VCBlock] PutVCBlock %s: %v", vc.BlockHash, err)
	}
	n.addBlockLink(vc.Header.VCDSEpochNo, types.BlockTypeVC, vc.BlockHash)
	n.Logger.Info("[VCBlock] view change completed, new DS leader %s", vc.Header.CandidateLeaderNetworkInfo)
}

// ProcessVCBlockCore 用当前 DS 委员会校验并应用一个 VC 区块
func (n *Node) ProcessVCBlockCore(vc *types.VCBlock) error {
	committee := n.ctx.CommitteeSnapshot()
	if err := n.verifyVCBlockFields(vc, committee); err != nil {
		return err
	}
	keys := make([]types.PubKey, len(committee))
	for i, m := range committee {
		keys[i] = m.PubKey
	}
	if err := n.verifyVCBlockCoSig(vc, keys); err != nil {
		return err
	}
	n.commitVCBlock(vc)
	return nil
}

// applyViewChanges 依次处理 DS 区块附带的 VC 区块。
// 先在委员会副本上逐块推演并检查哈希，再并行校验聚合签名，全部通过后按顺序应用。
func (n *Node) applyViewChanges(vcBlocks []types.VCBlock) error {
	if len(vcBlocks) == 0 {
		return nil
	}
	n.ctx.CommitteeMu.Lock()
	sim, err := types.NewCommittee(n.ctx.Committee.Cap(), n.ctx.Committee.Members())
	n.ctx.CommitteeMu.Unlock()
	if err != nil {
		return err
	}

	keys := make([][]types.PubKey, len(vcBlocks))
	expected := uint32(1)
	for i := range vcBlocks {
		vc := &vcBlocks[i]
		if got := vc.Header.VCCounter; got != expected {
			n.Logger.Warn("[VCBlock] unexpected VC block counter. Expected: %d Received: %d", expected, got)
			if n.cfg.Consensus.StrictVCCounter {
				return fmt.Errorf("%w: VC counter %d, expected %d", ErrSequencing, got, expected)
			}
		}
		if err := n.verifyVCBlockFields(vc, sim.Members()); err != nil {
			return fmt.Errorf("VC block %d: %w", i, err)
		}
		keys[i] = sim.PubKeys()
		sim.RotateLeaderToTail(int(vc.Header.CandidateLeaderIndex))
		expected++
	}

	var g errgroup.Group
	if p := n.cfg.Consensus.VCVerifyParallelism; p > 0 {
		g.SetLimit(p)
	}
	for i := range vcBlocks {
		g.Go(func() error {
			if err := n.verifyVCBlockCoSig(&vcBlocks[i], keys[i]); err != nil {
				return fmt.Errorf("VC block %d: %w", i, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range vcBlocks {
		n.commitVCBlock(&vcBlocks[i])
	}
	return nil
}

// ProcessVCBlock epoch 中途单独收到的 VC 区块
func (n *Node) ProcessVCBlock(msg []byte, offset int, from types.Peer) error {
	n.dsBlockMu.Lock()
	defer n.dsBlockMu.Unlock()

	var vc types.VCBlock
	if err := wire.GetNodeVCBlock(msg, offset, &vc); err != nil {
		n.Logger.Warn("[VCBlock] GetNodeVCBlock from %s failed: %v", from, err)
		return err
	}
	if epoch := n.ctx.CurrentEpoch(); vc.Header.VCEpochNo != epoch {
		n.Logger.Warn("[VCBlock] VC epoch %d, current epoch %d", vc.Header.VCEpochNo, epoch)
		return fmt.Errorf("%w: VC epoch %d, current %d", consensus.ErrFieldMismatch, vc.Header.VCEpochNo, epoch)
	}
	return n.ProcessVCBlockCore(&vc)
}
