package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// ProtoVCBlock.VCBlockHeader
const (
	vchDSEpochNo            protowire.Number = 1
	vchEpochNo              protowire.Number = 2
	vchViewChangeState      protowire.Number = 3
	vchCandidateLeaderIndex protowire.Number = 4
	vchCandidateLeaderPeer  protowire.Number = 5
	vchCandidateLeaderKey   protowire.Number = 6
	vchVCCounter            protowire.Number = 7
	vchTimestamp            protowire.Number = 8
	vchCommitteeHash        protowire.Number = 9
)

func encodeVCBlockHeader(h *types.VCBlockHeader) []byte {
	var b []byte
	b = appendUint(b, vchDSEpochNo, h.VCDSEpochNo)
	b = appendUint(b, vchEpochNo, h.VCEpochNo)
	b = appendUint(b, vchViewChangeState, uint64(h.ViewChangeState))
	b = appendUint(b, vchCandidateLeaderIndex, uint64(h.CandidateLeaderIndex))
	b = appendByteArray(b, vchCandidateLeaderPeer, h.CandidateLeaderNetworkInfo.Bytes())
	b = appendByteArray(b, vchCandidateLeaderKey, h.CandidateLeaderPubKey[:])
	b = appendUint(b, vchVCCounter, uint64(h.VCCounter))
	b = appendNumber(b, vchTimestamp, &h.Timestamp)
	b = appendBytes(b, vchCommitteeHash, h.CommitteeHash[:])
	return b
}

func decodeVCBlockHeader(src []byte, h *types.VCBlockHeader) error {
	*h = types.VCBlockHeader{}
	seen, err := walk(src, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case vchDSEpochNo:
			h.VCDSEpochNo, err = f.uint()
		case vchEpochNo:
			h.VCEpochNo, err = f.uint()
		case vchViewChangeState:
			v, err = f.uintN(8)
			h.ViewChangeState = uint8(v)
		case vchCandidateLeaderIndex:
			v, err = f.uintN(32)
			h.CandidateLeaderIndex = uint32(v)
		case vchCandidateLeaderPeer:
			err = f.peer(&h.CandidateLeaderNetworkInfo)
		case vchCandidateLeaderKey:
			err = f.pubKey(&h.CandidateLeaderPubKey)
		case vchVCCounter:
			v, err = f.uintN(32)
			h.VCCounter = uint32(v)
		case vchTimestamp:
			err = f.number(&h.Timestamp)
		case vchCommitteeHash:
			err = f.hashInto(&h.CommitteeHash)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("VCBlockHeader",
		vchDSEpochNo, vchEpochNo, vchViewChangeState, vchCandidateLeaderIndex,
		vchCandidateLeaderPeer, vchCandidateLeaderKey, vchVCCounter, vchTimestamp, vchCommitteeHash)
}

func encodeVCBlock(blk *types.VCBlock) []byte {
	var b []byte
	b = appendBytes(b, blkHeader, encodeVCBlockHeader(&blk.Header))
	b = appendBytes(b, blkCoSigs, encodeCoSigs(&blk.CoSigs))
	b = appendBytes(b, blkBlockHash, blk.BlockHash[:])
	return b
}

func decodeVCBlock(src []byte, blk *types.VCBlock) error {
	*blk = types.VCBlock{}
	seen, err := walk(src, func(f field) error {
		var err error
		switch f.num {
		case blkHeader:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeVCBlockHeader(raw, &blk.Header)
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
	return seen.require("VCBlock", blkHeader, blkCoSigs, blkBlockHash)
}

func SetVCBlockHeader(dst []byte, offset int, h *types.VCBlockHeader) ([]byte, error) {
	if h == nil {
		return dst, fmt.Errorf("%w: nil VCBlockHeader", ErrEncode)
	}
	return place(dst, offset, encodeVCBlockHeader(h))
}

func GetVCBlockHeader(src []byte, offset int, h *types.VCBlockHeader) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeVCBlockHeader(b, h)
}

func SetVCBlock(dst []byte, offset int, blk *types.VCBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil VCBlock", ErrEncode)
	}
	return place(dst, offset, encodeVCBlock(blk))
}

func GetVCBlock(src []byte, offset int, blk *types.VCBlock) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeVCBlock(b, blk)
}
