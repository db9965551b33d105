package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// ProtoMicroBlock.MicroBlockHeader
const (
	mbhType            protowire.Number = 1
	mbhVersion         protowire.Number = 2
	mbhShardID         protowire.Number = 3
	mbhGasLimit        protowire.Number = 4
	mbhGasUsed         protowire.Number = 5
	mbhPrevHash        protowire.Number = 6
	mbhBlockNum        protowire.Number = 7
	mbhTimestamp       protowire.Number = 8
	mbhTxRootHash      protowire.Number = 9
	mbhNumTxs          protowire.Number = 10
	mbhMinerPubKey     protowire.Number = 11
	mbhDSBlockNum      protowire.Number = 12
	mbhDSBlockHeader   protowire.Number = 13
	mbhStateDeltaHash  protowire.Number = 14
	mbhTranReceiptHash protowire.Number = 15
	mbhCommitteeHash   protowire.Number = 16
)

// ProtoMicroBlock
const (
	mbHeader     protowire.Number = 1
	mbTranHashes protowire.Number = 2
	mbCoSigs     protowire.Number = 3
	mbBlockHash  protowire.Number = 4
)

func encodeMicroBlockHeader(h *types.MicroBlockHeader) []byte {
	var b []byte
	b = appendUint(b, mbhType, uint64(h.Type))
	b = appendUint(b, mbhVersion, uint64(h.Version))
	b = appendUint(b, mbhShardID, uint64(h.ShardID))
	b = appendNumber(b, mbhGasLimit, &h.GasLimit)
	b = appendNumber(b, mbhGasUsed, &h.GasUsed)
	b = appendBytes(b, mbhPrevHash, h.PrevHash[:])
	b = appendUint(b, mbhBlockNum, h.BlockNum)
	b = appendNumber(b, mbhTimestamp, &h.Timestamp)
	b = appendBytes(b, mbhTxRootHash, h.HashSet.TxRootHash[:])
	b = appendUint(b, mbhNumTxs, uint64(h.NumTxs))
	b = appendByteArray(b, mbhMinerPubKey, h.MinerPubKey[:])
	b = appendUint(b, mbhDSBlockNum, h.DSBlockNum)
	b = appendBytes(b, mbhDSBlockHeader, h.DSBlockHeader[:])
	b = appendBytes(b, mbhStateDeltaHash, h.HashSet.StateDeltaHash[:])
	b = appendBytes(b, mbhTranReceiptHash, h.HashSet.TranReceiptHash[:])
	b = appendBytes(b, mbhCommitteeHash, h.CommitteeHash[:])
	return b
}

func decodeMicroBlockHeader(src []byte, h *types.MicroBlockHeader) error {
	*h = types.MicroBlockHeader{}
	seen, err := walk(src, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case mbhType:
			v, err = f.uintN(8)
			h.Type = uint8(v)
		case mbhVersion:
			v, err = f.uintN(32)
			h.Version = uint32(v)
		case mbhShardID:
			v, err = f.uintN(32)
			h.ShardID = uint32(v)
		case mbhGasLimit:
			err = f.number(&h.GasLimit)
		case mbhGasUsed:
			err = f.number(&h.GasUsed)
		case mbhPrevHash:
			err = f.hashInto(&h.PrevHash)
		case mbhBlockNum:
			h.BlockNum, err = f.uint()
		case mbhTimestamp:
			err = f.number(&h.Timestamp)
		case mbhTxRootHash:
			err = f.hashInto(&h.HashSet.TxRootHash)
		case mbhNumTxs:
			v, err = f.uintN(32)
			h.NumTxs = uint32(v)
		case mbhMinerPubKey:
			err = f.pubKey(&h.MinerPubKey)
		case mbhDSBlockNum:
			h.DSBlockNum, err = f.uint()
		case mbhDSBlockHeader:
			err = f.hashInto(&h.DSBlockHeader)
		case mbhStateDeltaHash:
			err = f.hashInto(&h.HashSet.StateDeltaHash)
		case mbhTranReceiptHash:
			err = f.hashInto(&h.HashSet.TranReceiptHash)
		case mbhCommitteeHash:
			err = f.hashInto(&h.CommitteeHash)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("MicroBlockHeader",
		mbhType, mbhVersion, mbhShardID, mbhGasLimit, mbhGasUsed, mbhPrevHash, mbhBlockNum,
		mbhTimestamp, mbhTxRootHash, mbhNumTxs, mbhMinerPubKey, mbhDSBlockNum, mbhDSBlockHeader,
		mbhStateDeltaHash, mbhTranReceiptHash, mbhCommitteeHash)
}

func encodeMicroBlock(blk *types.MicroBlock) []byte {
	var b []byte
	b = appendBytes(b, mbHeader, encodeMicroBlockHeader(&blk.Header))
	for _, th := range blk.TranHashes {
		b = appendBytes(b, mbTranHashes, th[:])
	}
	b = appendBytes(b, mbCoSigs, encodeCoSigs(&blk.CoSigs))
	b = appendBytes(b, mbBlockHash, blk.BlockHash[:])
	return b
}

func decodeMicroBlock(src []byte, blk *types.MicroBlock) error {
	*blk = types.MicroBlock{}
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case mbHeader:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeMicroBlockHeader(raw, &blk.Header)
		case mbTranHashes:
			var th types.TxnHash
			if err := f.hashInto(&th); err != nil {
				return err
			}
			blk.TranHashes = append(blk.TranHashes, th)
		case mbCoSigs:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeCoSigs(raw, &blk.CoSigs)
		case mbBlockHash:
			return f.hashInto(&blk.BlockHash)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return seen.require("MicroBlock", mbHeader, mbCoSigs, mbBlockHash)
}

func SetMicroBlockHeader(dst []byte, offset int, h *types.MicroBlockHeader) ([]byte, error) {
	if h == nil {
		return dst, fmt.Errorf("%w: nil MicroBlockHeader", ErrEncode)
	}
	return place(dst, offset, encodeMicroBlockHeader(h))
}

func GetMicroBlockHeader(src []byte, offset int, h *types.MicroBlockHeader) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeMicroBlockHeader(b, h)
}

func SetMicroBlock(dst []byte, offset int, blk *types.MicroBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil MicroBlock", ErrEncode)
	}
	return place(dst, offset, encodeMicroBlock(blk))
}

func GetMicroBlock(src []byte, offset int, blk *types.MicroBlock) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeMicroBlock(b, blk)
}
