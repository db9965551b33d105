package node

import (
	"errors"
	"fmt"

	"shardchain/db"
	"shardchain/logs"
	"shardchain/types"
	"shardchain/wire"
)

// BlockReader 重启时读回已落盘的区块和元数据，db.Manager 实现
type BlockReader interface {
	GetDSBlock(num uint64) ([]byte, error)
	GetTxBlock(num uint64) ([]byte, error)
	GetVCBlock(hash types.BlockHash) ([]byte, error)
	GetLatestActiveDSBlockNum() (uint64, error)
	GetLatestTxBlockNum() (uint64, error)
}

// RestoreFromStorage 在创世区块上链之后调用。
// 按 block link 顺序重放 VC 区块（leader 移到队尾）和 DS 区块（上链并轮换委员会），
// 再把 Tx 链补到 LATESTTXBLOCKNUM，epoch 取最新 Tx 区块号。
// FB 链接只影响分片 leader，不参与重放。
func (c *Context) RestoreFromStorage(store BlockReader, logger logs.Logger) error {
	if logger == nil {
		logger = logs.Default()
	}
	var nDS, nVC int
	for _, l := range c.BlockLinks.Links() {
		switch l.Type {
		case types.BlockTypeVC:
			raw, err := store.GetVCBlock(l.Hash)
			if err != nil {
				return fmt.Errorf("restore VC block %s (link %d): %w", l.Hash, l.Index, err)
			}
			var vc types.VCBlock
			if err := wire.GetVCBlock(raw, 0, &vc); err != nil {
				return fmt.Errorf("decode VC block %s: %w", l.Hash, err)
			}
			c.CommitteeMu.Lock()
			c.Committee.RotateLeaderToTail(int(vc.Header.CandidateLeaderIndex))
			c.CommitteeMu.Unlock()
			nVC++
		case types.BlockTypeDS:
			raw, err := store.GetDSBlock(l.DSIndex)
			if err != nil {
				return fmt.Errorf("restore DS block %d (link %d): %w", l.DSIndex, l.Index, err)
			}
			blk := new(types.DSBlock)
			if err := wire.GetDSBlock(raw, 0, blk); err != nil {
				return fmt.Errorf("decode DS block %d: %w", l.DSIndex, err)
			}
			if blk.BlockHash != l.Hash {
				return fmt.Errorf("%w: DS block %d hash %s, link %d has %s",
					ErrHashMismatch, l.DSIndex, blk.BlockHash, l.Index, l.Hash)
			}
			if err := c.DSChain.AddBlock(blk); err != nil {
				return fmt.Errorf("restore DS block %d: %w", l.DSIndex, err)
			}
			if err := c.rotateDSCommittee(blk.Header.PoWDSWinners); err != nil {
				return fmt.Errorf("replay DS committee for block %d: %w", l.DSIndex, err)
			}
			nDS++
		}
	}

	lastDS, _ := c.DSChain.LastBlockNum()
	switch latest, err := store.GetLatestActiveDSBlockNum(); {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read LATESTACTIVEDSBLOCKNUM: %w", err)
	case latest != lastDS:
		logger.Warn("[Restore] LATESTACTIVEDSBLOCKNUM %d but block links end at DS block %d", latest, lastDS)
	}

	latestTx, err := store.GetLatestTxBlockNum()
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("read LATESTTXBLOCKNUM: %w", err)
	}
	var nTx int
	if err == nil {
		next := uint64(0)
		if last, ok := c.TxChain.GetLastBlock(); ok {
			next = last.Header.BlockNum + 1
		}
		for num := next; num <= latestTx; num++ {
			raw, err := store.GetTxBlock(num)
			if err != nil {
				return fmt.Errorf("restore Tx block %d: %w", num, err)
			}
			blk := new(types.TxBlock)
			if err := wire.GetTxBlock(raw, 0, blk); err != nil {
				return fmt.Errorf("decode Tx block %d: %w", num, err)
			}
			if err := c.TxChain.AddBlock(blk); err != nil {
				return fmt.Errorf("restore Tx block %d: %w", num, err)
			}
			nTx++
		}
	}

	if nDS > 0 {
		c.UpdateDSBlockRand(false)
	}
	if nTx > 0 {
		c.UpdateTxBlockRand(false)
	}
	if last, ok := c.TxChain.GetLastBlock(); ok && nTx > 0 {
		c.SetCurrentEpoch(last.Header.BlockNum)
	}
	if nDS+nVC+nTx > 0 {
		logger.Info("[Restore] replayed %d DS, %d VC, %d Tx blocks; latest DS %d, epoch %d",
			nDS, nVC, nTx, lastDS, c.CurrentEpoch())
	}
	return nil
}
