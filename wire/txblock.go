package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// ProtoTxBlock.TxBlockHeader
const (
	txhType                protowire.Number = 1
	txhVersion             protowire.Number = 2
	txhGasLimit            protowire.Number = 3
	txhGasUsed             protowire.Number = 4
	txhPrevHash            protowire.Number = 5
	txhBlockNum            protowire.Number = 6
	txhTimestamp           protowire.Number = 7
	txhHash                protowire.Number = 8
	txhNumTxs              protowire.Number = 9
	txhNumMicroBlockHashes protowire.Number = 10
	txhMinerPubKey         protowire.Number = 11
	txhDSBlockNum          protowire.Number = 12
	txhDSBlockHeader       protowire.Number = 13
	txhCommitteeHash       protowire.Number = 14
)

// ProtoTxBlock.TxBlockHashSet
const (
	txhsTxRootHash          protowire.Number = 1
	txhsStateRootHash       protowire.Number = 2
	txhsDeltaRootHash       protowire.Number = 3
	txhsStateDeltaHash      protowire.Number = 4
	txhsTranReceiptRootHash protowire.Number = 5
)

// ProtoTxBlock
const (
	txbHeader            protowire.Number = 1
	txbIsMicroBlockEmpty protowire.Number = 2
	txbMicroBlockHashes  protowire.Number = 3
	txbShardIDs          protowire.Number = 4
	txbCoSigs            protowire.Number = 5
	txbBlockHash         protowire.Number = 6
)

func encodeTxBlockHeader(h *types.TxBlockHeader) []byte {
	var b []byte
	b = appendUint(b, txhType, uint64(h.Type))
	b = appendUint(b, txhVersion, uint64(h.Version))
	b = appendNumber(b, txhGasLimit, &h.GasLimit)
	b = appendNumber(b, txhGasUsed, &h.GasUsed)
	b = appendBytes(b, txhPrevHash, h.PrevHash[:])
	b = appendUint(b, txhBlockNum, h.BlockNum)
	b = appendNumber(b, txhTimestamp, &h.Timestamp)

	var hs []byte
	hs = appendBytes(hs, txhsTxRootHash, h.HashSet.TxRootHash[:])
	hs = appendBytes(hs, txhsStateRootHash, h.HashSet.StateRootHash[:])
	hs = appendBytes(hs, txhsDeltaRootHash, h.HashSet.DeltaRootHash[:])
	hs = appendBytes(hs, txhsStateDeltaHash, h.HashSet.StateDeltaHash[:])
	hs = appendBytes(hs, txhsTranReceiptRootHash, h.HashSet.TranReceiptRootHash[:])
	b = appendBytes(b, txhHash, hs)

	b = appendUint(b, txhNumTxs, uint64(h.NumTxs))
	b = appendUint(b, txhNumMicroBlockHashes, uint64(h.NumMicroBlockHashes))
	b = appendByteArray(b, txhMinerPubKey, h.MinerPubKey[:])
	b = appendUint(b, txhDSBlockNum, h.DSBlockNum)
	b = appendBytes(b, txhDSBlockHeader, h.DSBlockHeader[:])
	b = appendBytes(b, txhCommitteeHash, h.CommitteeHash[:])
	return b
}

func decodeTxBlockHashSet(src []byte, hs *types.TxBlockHashSet) error {
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case txhsTxRootHash:
			return f.hashInto(&hs.TxRootHash)
		case txhsStateRootHash:
			return f.hashInto(&hs.StateRootHash)
		case txhsDeltaRootHash:
			return f.hashInto(&hs.DeltaRootHash)
		case txhsStateDeltaHash:
			return f.hashInto(&hs.StateDeltaHash)
		case txhsTranReceiptRootHash:
			return f.hashInto(&hs.TranReceiptRootHash)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return seen.require("TxBlockHashSet", txhsTxRootHash, txhsStateRootHash, txhsDeltaRootHash,
		txhsStateDeltaHash, txhsTranReceiptRootHash)
}

func decodeTxBlockHeader(src []byte, h *types.TxBlockHeader) error {
	*h = types.TxBlockHeader{}
	seen, err := walk(src, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case txhType:
			v, err = f.uintN(8)
			h.Type = uint8(v)
		case txhVersion:
			v, err = f.uintN(32)
			h.Version = uint32(v)
		case txhGasLimit:
			err = f.number(&h.GasLimit)
		case txhGasUsed:
			err = f.number(&h.GasUsed)
		case txhPrevHash:
			err = f.hashInto(&h.PrevHash)
		case txhBlockNum:
			h.BlockNum, err = f.uint()
		case txhTimestamp:
			err = f.number(&h.Timestamp)
		case txhHash:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeTxBlockHashSet(raw, &h.HashSet)
			}
		case txhNumTxs:
			v, err = f.uintN(32)
			h.NumTxs = uint32(v)
		case txhNumMicroBlockHashes:
			v, err = f.uintN(32)
			h.NumMicroBlockHashes = uint32(v)
		case txhMinerPubKey:
			err = f.pubKey(&h.MinerPubKey)
		case txhDSBlockNum:
			h.DSBlockNum, err = f.uint()
		case txhDSBlockHeader:
			err = f.hashInto(&h.DSBlockHeader)
		case txhCommitteeHash:
			err = f.hashInto(&h.CommitteeHash)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("TxBlockHeader",
		txhType, txhVersion, txhGasLimit, txhGasUsed, txhPrevHash, txhBlockNum, txhTimestamp,
		txhHash, txhNumTxs, txhNumMicroBlockHashes, txhMinerPubKey, txhDSBlockNum,
		txhDSBlockHeader, txhCommitteeHash)
}

func encodeMicroBlockHashSet(hs *types.MicroBlockHashSet) []byte {
	var b []byte
	b = appendBytes(b, 1, hs.TxRootHash[:])
	b = appendBytes(b, 2, hs.StateDeltaHash[:])
	b = appendBytes(b, 3, hs.TranReceiptHash[:])
	return b
}

func decodeMicroBlockHashSet(src []byte, hs *types.MicroBlockHashSet) error {
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case 1:
			return f.hashInto(&hs.TxRootHash)
		case 2:
			return f.hashInto(&hs.StateDeltaHash)
		case 3:
			return f.hashInto(&hs.TranReceiptHash)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return seen.require("MicroBlockHashSet", 1, 2, 3)
}

func encodeTxBlock(blk *types.TxBlock) []byte {
	var b []byte
	b = appendBytes(b, txbHeader, encodeTxBlockHeader(&blk.Header))
	b = appendBools(b, txbIsMicroBlockEmpty, blk.IsMicroBlockEmpty)
	for i := range blk.MicroBlockHashes {
		b = appendBytes(b, txbMicroBlockHashes, encodeMicroBlockHashSet(&blk.MicroBlockHashes[i]))
	}
	b = appendUint32s(b, txbShardIDs, blk.ShardIDs)
	b = appendBytes(b, txbCoSigs, encodeCoSigs(&blk.CoSigs))
	b = appendBytes(b, txbBlockHash, blk.BlockHash[:])
	return b
}

func decodeTxBlock(src []byte, blk *types.TxBlock) error {
	*blk = types.TxBlock{}
	seen, err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case txbHeader:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeTxBlockHeader(raw, &blk.Header)
			}
		case txbIsMicroBlockEmpty:
			blk.IsMicroBlockEmpty, err = f.bools(blk.IsMicroBlockEmpty)
		case txbMicroBlockHashes:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				var hs types.MicroBlockHashSet
				if err = decodeMicroBlockHashSet(raw, &hs); err == nil {
					blk.MicroBlockHashes = append(blk.MicroBlockHashes, hs)
				}
			}
		case txbShardIDs:
			blk.ShardIDs, err = f.uint32s(blk.ShardIDs)
		case txbCoSigs:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeCoSigs(raw, &blk.CoSigs)
			}
		case txbBlockHash:
			err = f.hashInto(&blk.BlockHash)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("TxBlock", txbHeader, txbCoSigs, txbBlockHash)
}

func SetTxBlockHeader(dst []byte, offset int, h *types.TxBlockHeader) ([]byte, error) {
	if h == nil {
		return dst, fmt.Errorf("%w: nil TxBlockHeader", ErrEncode)
	}
	return place(dst, offset, encodeTxBlockHeader(h))
}

func GetTxBlockHeader(src []byte, offset int, h *types.TxBlockHeader) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeTxBlockHeader(b, h)
}

func SetTxBlock(dst []byte, offset int, blk *types.TxBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil TxBlock", ErrEncode)
	}
	return place(dst, offset, encodeTxBlock(blk))
}

func GetTxBlock(src []byte, offset int, blk *types.TxBlock) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeTxBlock(b, blk)
}
