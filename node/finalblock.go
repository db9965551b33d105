package node

import (
	"fmt"

	"shardchain/consensus"
	"shardchain/types"
	"shardchain/wire"
)

// ProcessFinalBlock DS 委员会广播的 Tx 区块：校验后上链，推进 epoch。
// vacuous epoch 的 final block 之后进入下一轮 PoW。
func (n *Node) ProcessFinalBlock(msg []byte, offset int, from types.Peer) error {
	n.dsBlockMu.Lock()
	defer n.dsBlockMu.Unlock()

	lookup := n.ctx.LookupNode
	if !lookup {
		if err := n.CheckState(ActionProcessFinalBlock); err != nil {
			return err
		}
	}

	m, err := wire.GetNodeFinalBlock(msg, offset)
	if err != nil {
		n.Logger.Warn("[FinalBlock] GetNodeFinalBlock from %s failed: %v", from, err)
		return err
	}
	txBlock := &m.TxBlock
	h := &txBlock.Header

	lastDS, ok := n.ctx.DSChain.LastBlockNum()
	if !ok {
		return fmt.Errorf("%w: DS chain has no genesis block", ErrState)
	}
	if m.DSBlockNumber != lastDS || h.DSBlockNum != lastDS {
		n.Logger.Warn("[FinalBlock] DS block number %d/%d, latest DS block %d", m.DSBlockNumber, h.DSBlockNum, lastDS)
		return fmt.Errorf("%w: final block DS number %d, latest %d", consensus.ErrFieldMismatch, h.DSBlockNum, lastDS)
	}

	committee := n.ctx.CommitteeSnapshot()
	if ch := wire.GetDSCommitteeHash(committee); ch != h.CommitteeHash {
		n.Logger.Warn("[FinalBlock] DS committee hash mismatch. Calculated: %s Received: %s", ch, h.CommitteeHash)
		return fmt.Errorf("%w: final block committee hash", ErrHashMismatch)
	}
	if bh := wire.TxBlockHeaderHash(h); bh != txBlock.BlockHash {
		n.Logger.Warn("[FinalBlock] block hash mismatch. Calculated: %s Received: %s", bh, txBlock.BlockHash)
		return fmt.Errorf("%w: final block hash", ErrHashMismatch)
	}
	if err := n.checkTxBlockNum(h.BlockNum); err != nil {
		return err
	}

	keys := make([]types.PubKey, len(committee))
	for i, c := range committee {
		keys[i] = c.PubKey
	}
	header, err := wire.SetTxBlockHeader(nil, 0, h)
	if err != nil {
		return err
	}
	if err := consensus.VerifyCoSignature(keys, header, txBlock.CoSigs, n.agg); err != nil {
		n.Logger.Warn("[FinalBlock] co-sig verification failed: %v", err)
		return err
	}

	enc, err := wire.SetTxBlock(nil, 0, txBlock)
	if err != nil {
		return fmt.Errorf("serialize Tx block %d: %w", h.BlockNum, err)
	}
	if err := n.ctx.TxChain.AddBlock(txBlock); err != nil {
		return err
	}
	n.ctx.UpdateTxBlockRand(false)
	if err := n.deps.Storage.PutTxBlock(h.BlockNum, enc); err != nil {
		n.Logger.Error("[FinalBlock] PutTxBlock %d: %v", h.BlockNum, err)
	}
	if err := n.deps.Storage.PutLatestTxBlockNum(h.BlockNum); err != nil {
		n.Logger.Error("[FinalBlock] put LATESTTXBLOCKNUM %d: %v", h.BlockNum, err)
	}

	epoch := n.ctx.IncreaseEpochNum()
	perPoW := n.cfg.Node.NumFinalBlockPerPoW
	n.ctx.SetVacuousEpoch(epoch%perPoW == 0)
	n.Logger.Info("[FinalBlock] stored Tx block %d with %d txs, now at epoch %d", h.BlockNum, h.NumTxs, epoch)

	if lookup {
		return nil
	}
	if h.BlockNum%perPoW == 0 {
		// 刚结束的是 vacuous epoch，开始下一轮 DS PoW
		n.SetState(StatePoWSubmission)
		return nil
	}
	n.ctx.SetConsensusID(n.ctx.ConsensusID() + 1)
	n.SetState(StateMicroBlockConsensusPrep)
	go n.deps.Shard.RunConsensusOnMicroBlock()
	return nil
}

func (n *Node) checkTxBlockNum(num uint64) error {
	last, ok := n.ctx.TxChain.GetLastBlock()
	if !ok {
		return nil
	}
	latest := last.Header.BlockNum
	switch {
	case num <= latest:
		n.Logger.Warn("[FinalBlock] duplicated Tx block. cur %d incoming %d", latest, num)
		return fmt.Errorf("%w: Tx block %d, latest %d", ErrDuplicateBlock, num, latest)
	case num > latest+1:
		n.Logger.Warn("[FinalBlock] missing Tx blocks. incoming %d while present %d", num, latest)
		return fmt.Errorf("%w: Tx block %d, latest %d", ErrMissingBlocks, num, latest)
	}
	return nil
}
