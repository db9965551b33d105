package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// ProtoFallbackBlock.FallbackBlockHeader
const (
	fbhDSEpochNo         protowire.Number = 1
	fbhEpochNo           protowire.Number = 2
	fbhState             protowire.Number = 3
	fbhStateRootHash     protowire.Number = 4
	fbhLeaderConsensusID protowire.Number = 5
	fbhLeaderPeer        protowire.Number = 6
	fbhLeaderPubKey      protowire.Number = 7
	fbhShardID           protowire.Number = 8
	fbhTimestamp         protowire.Number = 9
	fbhCommitteeHash     protowire.Number = 10
)

func encodeFallbackBlockHeader(h *types.FallbackBlockHeader) []byte {
	var b []byte
	b = appendUint(b, fbhDSEpochNo, h.FallbackDSEpochNo)
	b = appendUint(b, fbhEpochNo, h.FallbackEpochNo)
	b = appendUint(b, fbhState, uint64(h.FallbackState))
	b = appendBytes(b, fbhStateRootHash, h.StateRootHash[:])
	b = appendUint(b, fbhLeaderConsensusID, uint64(h.LeaderConsensusID))
	b = appendByteArray(b, fbhLeaderPeer, h.LeaderNetworkInfo.Bytes())
	b = appendByteArray(b, fbhLeaderPubKey, h.LeaderPubKey[:])
	b = appendUint(b, fbhShardID, uint64(h.ShardID))
	b = appendNumber(b, fbhTimestamp, &h.Timestamp)
	b = appendBytes(b, fbhCommitteeHash, h.CommitteeHash[:])
	return b
}

func decodeFallbackBlockHeader(src []byte, h *types.FallbackBlockHeader) error {
	*h = types.FallbackBlockHeader{}
	seen, err := walk(src, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case fbhDSEpochNo:
			h.FallbackDSEpochNo, err = f.uint()
		case fbhEpochNo:
			h.FallbackEpochNo, err = f.uint()
		case fbhState:
			v, err = f.uintN(8)
			h.FallbackState = uint8(v)
		case fbhStateRootHash:
			err = f.hashInto(&h.StateRootHash)
		case fbhLeaderConsensusID:
			v, err = f.uintN(32)
			h.LeaderConsensusID = uint32(v)
		case fbhLeaderPeer:
			err = f.peer(&h.LeaderNetworkInfo)
		case fbhLeaderPubKey:
			err = f.pubKey(&h.LeaderPubKey)
		case fbhShardID:
			v, err = f.uintN(32)
			h.ShardID = uint32(v)
		case fbhTimestamp:
			err = f.number(&h.Timestamp)
		case fbhCommitteeHash:
			err = f.hashInto(&h.CommitteeHash)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("FallbackBlockHeader",
		fbhDSEpochNo, fbhEpochNo, fbhState, fbhStateRootHash, fbhLeaderConsensusID,
		fbhLeaderPeer, fbhLeaderPubKey, fbhShardID, fbhTimestamp, fbhCommitteeHash)
}

func encodeFallbackBlock(blk *types.FallbackBlock) []byte {
	var b []byte
	b = appendBytes(b, blkHeader, encodeFallbackBlockHeader(&blk.Header))
	b = appendBytes(b, blkCoSigs, encodeCoSigs(&blk.CoSigs))
	b = appendBytes(b, blkBlockHash, blk.BlockHash[:])
	return b
}

func decodeFallbackBlock(src []byte, blk *types.FallbackBlock) error {
	*blk = types.FallbackBlock{}
	seen, err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case blkHeader:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeFallbackBlockHeader(raw, &blk.Header)
			}
		case blkCoSigs:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeCoSigs(raw, &blk.CoSigs)
			}
		case blkBlockHash:
			err = f.hashInto(&blk.BlockHash)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("FallbackBlock", blkHeader, blkCoSigs, blkBlockHash)
}

func SetFallbackBlockHeader(dst []byte, offset int, h *types.FallbackBlockHeader) ([]byte, error) {
	if h == nil {
		return dst, fmt.Errorf("%w: nil FallbackBlockHeader", ErrEncode)
	}
	return place(dst, offset, encodeFallbackBlockHeader(h))
}

func GetFallbackBlockHeader(src []byte, offset int, h *types.FallbackBlockHeader) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeFallbackBlockHeader(b, h)
}

func SetFallbackBlock(dst []byte, offset int, blk *types.FallbackBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil FallbackBlock", ErrEncode)
	}
	return place(dst, offset, encodeFallbackBlock(blk))
}

func GetFallbackBlock(src []byte, offset int, blk *types.FallbackBlock) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeFallbackBlock(b, blk)
}
