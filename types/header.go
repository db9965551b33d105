package types

import (
	"bytes"
	"cmp"

	"github.com/holiman/uint256"
)

const DSReservedFieldSize = 128

// BlockHeaderBase 所有区块头共有字段
type BlockHeaderBase struct {
	// 出块时委员会公钥列表的哈希
	CommitteeHash CommitteeHash
}

type DSBlockHashSet struct {
	ShardingHash  ShardingHash
	TxSharingHash TxSharingHash
	ReservedField [DSReservedFieldSize]byte
}

type MicroBlockHashSet struct {
	TxRootHash      TxnHash
	StateDeltaHash  StateHash
	TranReceiptHash TxnHash
}

type TxBlockHashSet struct {
	TxRootHash          TxnHash
	StateRootHash       StateHash
	DeltaRootHash       StateHash
	StateDeltaHash      StateHash
	TranReceiptRootHash TxnHash
}

// DSBlockHeader DS 区块头
type DSBlockHeader struct {
	DSDifficulty uint8
	Difficulty   uint8
	PrevHash     BlockHash
	LeaderPubKey PubKey
	BlockNum     uint64
	Timestamp    uint256.Int
	SWInfo       SWInfo
	PoWDSWinners DSPoWWinners
	HashSet      DSBlockHashSet
	BlockHeaderBase
}

func (h DSBlockHeader) Equal(o DSBlockHeader) bool {
	return h.DSDifficulty == o.DSDifficulty &&
		h.Difficulty == o.Difficulty &&
		h.PrevHash == o.PrevHash &&
		h.LeaderPubKey == o.LeaderPubKey &&
		h.BlockNum == o.BlockNum &&
		h.Timestamp.Eq(&o.Timestamp) &&
		h.SWInfo == o.SWInfo &&
		h.PoWDSWinners.Equal(o.PoWDSWinners) &&
		h.HashSet == o.HashSet &&
		h.CommitteeHash == o.CommitteeHash
}

// Less 字段顺序字典序
func (h DSBlockHeader) Less(o DSBlockHeader) bool {
	return h.compare(o) < 0
}

func (h DSBlockHeader) compare(o DSBlockHeader) int {
	return cmp.Or(
		cmp.Compare(h.DSDifficulty, o.DSDifficulty),
		cmp.Compare(h.Difficulty, o.Difficulty),
		h.PrevHash.Compare(o.PrevHash),
		h.LeaderPubKey.Compare(o.LeaderPubKey),
		cmp.Compare(h.BlockNum, o.BlockNum),
		h.Timestamp.Cmp(&o.Timestamp),
		h.SWInfo.compare(o.SWInfo),
		h.PoWDSWinners.compare(o.PoWDSWinners),
		h.HashSet.ShardingHash.Compare(o.HashSet.ShardingHash),
		h.HashSet.TxSharingHash.Compare(o.HashSet.TxSharingHash),
		bytes.Compare(h.HashSet.ReservedField[:], o.HashSet.ReservedField[:]),
		h.CommitteeHash.Compare(o.CommitteeHash),
	)
}

func (h DSBlockHeader) Clone() DSBlockHeader {
	out := h
	out.PoWDSWinners = NewDSPoWWinners(h.PoWDSWinners.Entries()...)
	return out
}

// MicroBlockHeader 分片每个 epoch 的交易摘要
type MicroBlockHeader struct {
	Type          uint8
	Version       uint32
	ShardID       uint32
	GasLimit      uint256.Int
	GasUsed       uint256.Int
	PrevHash      BlockHash
	BlockNum      uint64
	Timestamp     uint256.Int
	HashSet       MicroBlockHashSet
	NumTxs        uint32
	MinerPubKey   PubKey
	DSBlockNum    uint64
	DSBlockHeader BlockHash
	BlockHeaderBase
}

// Equal 不比较 committeeHash
func (h MicroBlockHeader) Equal(o MicroBlockHeader) bool {
	a, b := h, o
	a.CommitteeHash, b.CommitteeHash = CommitteeHash{}, CommitteeHash{}
	return a == b
}

// Less: a < b 当且仅当 tuple(b) > tuple(a)
func (h MicroBlockHeader) Less(o MicroBlockHeader) bool {
	return o.tupleCompare(h) > 0
}

func (h MicroBlockHeader) tupleCompare(o MicroBlockHeader) int {
	return cmp.Or(
		cmp.Compare(h.Type, o.Type),
		cmp.Compare(h.Version, o.Version),
		cmp.Compare(h.ShardID, o.ShardID),
		h.GasLimit.Cmp(&o.GasLimit),
		h.GasUsed.Cmp(&o.GasUsed),
		h.PrevHash.Compare(o.PrevHash),
		cmp.Compare(h.BlockNum, o.BlockNum),
		h.Timestamp.Cmp(&o.Timestamp),
		h.HashSet.TxRootHash.Compare(o.HashSet.TxRootHash),
		h.HashSet.StateDeltaHash.Compare(o.HashSet.StateDeltaHash),
		h.HashSet.TranReceiptHash.Compare(o.HashSet.TranReceiptHash),
		cmp.Compare(h.NumTxs, o.NumTxs),
		h.MinerPubKey.Compare(o.MinerPubKey),
		cmp.Compare(h.DSBlockNum, o.DSBlockNum),
		h.DSBlockHeader.Compare(o.DSBlockHeader),
	)
}

// TxBlockHeader 汇总一个 epoch 的所有 micro block
type TxBlockHeader struct {
	Type                uint8
	Version             uint32
	GasLimit            uint256.Int
	GasUsed             uint256.Int
	PrevHash            BlockHash
	BlockNum            uint64
	Timestamp           uint256.Int
	HashSet             TxBlockHashSet
	NumTxs              uint32
	NumMicroBlockHashes uint32
	MinerPubKey         PubKey
	DSBlockNum          uint64
	DSBlockHeader       BlockHash
	BlockHeaderBase
}

func (h TxBlockHeader) Equal(o TxBlockHeader) bool { return h == o }

func (h TxBlockHeader) Less(o TxBlockHeader) bool {
	return cmp.Or(
		cmp.Compare(h.Type, o.Type),
		cmp.Compare(h.Version, o.Version),
		h.GasLimit.Cmp(&o.GasLimit),
		h.GasUsed.Cmp(&o.GasUsed),
		h.PrevHash.Compare(o.PrevHash),
		cmp.Compare(h.BlockNum, o.BlockNum),
		h.Timestamp.Cmp(&o.Timestamp),
		h.HashSet.TxRootHash.Compare(o.HashSet.TxRootHash),
		h.HashSet.StateRootHash.Compare(o.HashSet.StateRootHash),
		h.HashSet.DeltaRootHash.Compare(o.HashSet.DeltaRootHash),
		h.HashSet.StateDeltaHash.Compare(o.HashSet.StateDeltaHash),
		h.HashSet.TranReceiptRootHash.Compare(o.HashSet.TranReceiptRootHash),
		cmp.Compare(h.NumTxs, o.NumTxs),
		cmp.Compare(h.NumMicroBlockHashes, o.NumMicroBlockHashes),
		h.MinerPubKey.Compare(o.MinerPubKey),
		cmp.Compare(h.DSBlockNum, o.DSBlockNum),
		h.DSBlockHeader.Compare(o.DSBlockHeader),
		h.CommitteeHash.Compare(o.CommitteeHash),
	) < 0
}

// VCBlockHeader view change 区块头
type VCBlockHeader struct {
	VCDSEpochNo                uint64
	VCEpochNo                  uint64
	ViewChangeState            uint8
	CandidateLeaderIndex       uint32
	CandidateLeaderNetworkInfo Peer
	CandidateLeaderPubKey      PubKey
	// 同一轮 fallback 序列内从 1 开始递增
	VCCounter uint32
	Timestamp uint256.Int
	BlockHeaderBase
}

func (h VCBlockHeader) Equal(o VCBlockHeader) bool { return h == o }

// Less: a < b 当且仅当 tuple(b) > tuple(a)
func (h VCBlockHeader) Less(o VCBlockHeader) bool {
	return o.tupleCompare(h) > 0
}

func (h VCBlockHeader) tupleCompare(o VCBlockHeader) int {
	return cmp.Or(
		cmp.Compare(h.VCDSEpochNo, o.VCDSEpochNo),
		cmp.Compare(h.VCEpochNo, o.VCEpochNo),
		cmp.Compare(h.ViewChangeState, o.ViewChangeState),
		cmp.Compare(h.CandidateLeaderIndex, o.CandidateLeaderIndex),
		comparePeer(h.CandidateLeaderNetworkInfo, o.CandidateLeaderNetworkInfo),
		h.CandidateLeaderPubKey.Compare(o.CandidateLeaderPubKey),
		cmp.Compare(h.VCCounter, o.VCCounter),
		h.Timestamp.Cmp(&o.Timestamp),
		h.CommitteeHash.Compare(o.CommitteeHash),
	)
}

// FallbackBlockHeader 分片 leader 失效时选出替补 leader
type FallbackBlockHeader struct {
	FallbackDSEpochNo uint64
	FallbackEpochNo   uint64
	FallbackState     uint8
	StateRootHash     StateHash
	LeaderConsensusID uint32
	LeaderNetworkInfo Peer
	LeaderPubKey      PubKey
	ShardID           uint32
	Timestamp         uint256.Int
	BlockHeaderBase
}

func (h FallbackBlockHeader) Equal(o FallbackBlockHeader) bool { return h == o }

func (h FallbackBlockHeader) Less(o FallbackBlockHeader) bool {
	return cmp.Or(
		cmp.Compare(h.FallbackDSEpochNo, o.FallbackDSEpochNo),
		cmp.Compare(h.FallbackEpochNo, o.FallbackEpochNo),
		cmp.Compare(h.FallbackState, o.FallbackState),
		h.StateRootHash.Compare(o.StateRootHash),
		cmp.Compare(h.LeaderConsensusID, o.LeaderConsensusID),
		comparePeer(h.LeaderNetworkInfo, o.LeaderNetworkInfo),
		h.LeaderPubKey.Compare(o.LeaderPubKey),
		cmp.Compare(h.ShardID, o.ShardID),
		h.Timestamp.Cmp(&o.Timestamp),
		h.CommitteeHash.Compare(o.CommitteeHash),
	) < 0
}
