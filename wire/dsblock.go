package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// ProtoDSBlock.DSBlockHeader
const (
	dshDSDifficulty  protowire.Number = 1
	dshDifficulty    protowire.Number = 2
	dshPrevHash      protowire.Number = 3
	dshLeaderPubKey  protowire.Number = 4
	dshBlockNum      protowire.Number = 5
	dshTimestamp     protowire.Number = 6
	dshSWInfo        protowire.Number = 7
	dshDSWinners     protowire.Number = 8
	dshHash          protowire.Number = 9
	dshCommitteeHash protowire.Number = 10
)

// ProtoDSBlock.DSBlockHashSet
const (
	dshsShardingHash  protowire.Number = 1
	dshsTxSharingHash protowire.Number = 2
	dshsReserved      protowire.Number = 3
)

// 区块外层：header / cosigs / blockhash 对 DS、VC、Fallback 相同
const (
	blkHeader    protowire.Number = 1
	blkCoSigs    protowire.Number = 2
	blkBlockHash protowire.Number = 3
)

// CoSignatures
const (
	csCS1 protowire.Number = 1
	csB1  protowire.Number = 2
	csCS2 protowire.Number = 3
	csB2  protowire.Number = 4
)

func encodeDSBlockHeader(h *types.DSBlockHeader) []byte {
	var b []byte
	b = appendUint(b, dshDSDifficulty, uint64(h.DSDifficulty))
	b = appendUint(b, dshDifficulty, uint64(h.Difficulty))
	b = appendBytes(b, dshPrevHash, h.PrevHash[:])
	b = appendByteArray(b, dshLeaderPubKey, h.LeaderPubKey[:])
	b = appendUint(b, dshBlockNum, h.BlockNum)
	b = appendNumber(b, dshTimestamp, &h.Timestamp)
	b = appendByteArray(b, dshSWInfo, h.SWInfo.Bytes())
	for _, w := range h.PoWDSWinners.Entries() {
		var e []byte
		e = appendByteArray(e, 1, w.PubKey[:])
		e = appendByteArray(e, 2, w.Peer.Bytes())
		b = appendBytes(b, dshDSWinners, e)
	}
	var hs []byte
	hs = appendBytes(hs, dshsShardingHash, h.HashSet.ShardingHash[:])
	hs = appendBytes(hs, dshsTxSharingHash, h.HashSet.TxSharingHash[:])
	hs = appendBytes(hs, dshsReserved, h.HashSet.ReservedField[:])
	b = appendBytes(b, dshHash, hs)
	b = appendBytes(b, dshCommitteeHash, h.CommitteeHash[:])
	return b
}

func decodeDSBlockHeader(src []byte, h *types.DSBlockHeader) error {
	*h = types.DSBlockHeader{}
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case dshDSDifficulty:
			v, err := f.uintN(8)
			h.DSDifficulty = uint8(v)
			return err
		case dshDifficulty:
			v, err := f.uintN(8)
			h.Difficulty = uint8(v)
			return err
		case dshPrevHash:
			return f.hashInto(&h.PrevHash)
		case dshLeaderPubKey:
			return f.pubKey(&h.LeaderPubKey)
		case dshBlockNum:
			v, err := f.uint()
			h.BlockNum = v
			return err
		case dshTimestamp:
			return f.number(&h.Timestamp)
		case dshSWInfo:
			return f.swInfo(&h.SWInfo)
		case dshDSWinners:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeDSWinner(raw, &h.PoWDSWinners)
		case dshHash:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeDSBlockHashSet(raw, &h.HashSet)
		case dshCommitteeHash:
			return f.hashInto(&h.CommitteeHash)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return seen.require("DSBlockHeader", dshDSDifficulty, dshDifficulty, dshPrevHash, dshLeaderPubKey,
		dshBlockNum, dshTimestamp, dshSWInfo, dshHash, dshCommitteeHash)
}

func decodeDSWinner(src []byte, w *types.DSPoWWinners) error {
	var (
		pk   types.PubKey
		peer types.Peer
	)
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			return f.pubKey(&pk)
		case 2:
			return f.peer(&peer)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := seen.require("PowDSWinners", 1, 2); err != nil {
		return err
	}
	// 重复 key 以后出现的为准
	w.Set(pk, peer)
	return nil
}

func decodeDSBlockHashSet(src []byte, hs *types.DSBlockHashSet) error {
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case dshsShardingHash:
			return f.hashInto(&hs.ShardingHash)
		case dshsTxSharingHash:
			return f.hashInto(&hs.TxSharingHash)
		case dshsReserved:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			types.CopyTruncated(hs.ReservedField[:], raw)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return seen.require("DSBlockHashSet", dshsShardingHash, dshsTxSharingHash, dshsReserved)
}

func encodeCoSigs(c *types.CoSignatures) []byte {
	var b []byte
	b = appendByteArray(b, csCS1, c.CS1[:])
	b = appendBools(b, csB1, c.B1)
	b = appendByteArray(b, csCS2, c.CS2[:])
	b = appendBools(b, csB2, c.B2)
	return b
}

func decodeCoSigs(src []byte, c *types.CoSignatures) error {
	*c = types.CoSignatures{}
	seen, err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case csCS1:
			err = f.signature(&c.CS1)
		case csB1:
			c.B1, err = f.bools(c.B1)
		case csCS2:
			err = f.signature(&c.CS2)
		case csB2:
			c.B2, err = f.bools(c.B2)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("CoSignatures", csCS1, csCS2)
}

func encodeDSBlock(blk *types.DSBlock) []byte {
	var b []byte
	b = appendBytes(b, blkHeader, encodeDSBlockHeader(&blk.Header))
	b = appendBytes(b, blkCoSigs, encodeCoSigs(&blk.CoSigs))
	b = appendBytes(b, blkBlockHash, blk.BlockHash[:])
	return b
}

func decodeDSBlock(src []byte, blk *types.DSBlock) error {
	*blk = types.DSBlock{}
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case blkHeader:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeDSBlockHeader(raw, &blk.Header)
		case blkCoSigs:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeCoSigs(raw, &blk.CoSigs)
		case blkBlockHash:
			return f.hashInto(&blk.BlockHash)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return seen.require("DSBlock", blkHeader, blkCoSigs, blkBlockHash)
}

// SetDSBlockHeader 把区块头写到 dst[offset:]
func SetDSBlockHeader(dst []byte, offset int, h *types.DSBlockHeader) ([]byte, error) {
	if h == nil {
		return dst, fmt.Errorf("%w: nil DSBlockHeader", ErrEncode)
	}
	return place(dst, offset, encodeDSBlockHeader(h))
}

func GetDSBlockHeader(src []byte, offset int, h *types.DSBlockHeader) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeDSBlockHeader(b, h)
}

func SetDSBlock(dst []byte, offset int, blk *types.DSBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil DSBlock", ErrEncode)
	}
	return place(dst, offset, encodeDSBlock(blk))
}

func GetDSBlock(src []byte, offset int, blk *types.DSBlock) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeDSBlock(b, blk)
}
