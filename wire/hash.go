package wire

import (
	"shardchain/types"
	"shardchain/utils"
)

// 结构哈希：对整个复合消息的编码做 sha256

// GetDSCommitteeHash 只覆盖公钥，顺序敏感
func GetDSCommitteeHash(members []types.CommitteeMember) types.CommitteeHash {
	keys := make([]types.PubKey, len(members))
	for i, m := range members {
		keys[i] = m.PubKey
	}
	return utils.Sha256Fixed(encodeCommittee(keys))
}

func GetShardHash(shard types.Shard) types.CommitteeHash {
	return utils.Sha256Fixed(encodeCommittee(shard.PubKeys()))
}

// GetShardingStructureHash 覆盖成员公钥、网络信息和信誉
func GetShardingStructureHash(shards types.DequeOfShard) types.ShardingHash {
	return utils.Sha256Fixed(encodeShardingStructure(shards))
}

func GetTxSharingAssignmentsHash(a *types.TxSharingAssignments) (types.TxSharingHash, error) {
	enc, err := encodeTxSharingAssignments(a)
	if err != nil {
		return types.TxSharingHash{}, err
	}
	return utils.Sha256Fixed(enc), nil
}

// 区块头自身哈希（即 blockHash）

func DSBlockHeaderHash(h *types.DSBlockHeader) types.BlockHash {
	return utils.Sha256Fixed(encodeDSBlockHeader(h))
}

func MicroBlockHeaderHash(h *types.MicroBlockHeader) types.BlockHash {
	return utils.Sha256Fixed(encodeMicroBlockHeader(h))
}

func TxBlockHeaderHash(h *types.TxBlockHeader) types.BlockHash {
	return utils.Sha256Fixed(encodeTxBlockHeader(h))
}

func VCBlockHeaderHash(h *types.VCBlockHeader) types.BlockHash {
	return utils.Sha256Fixed(encodeVCBlockHeader(h))
}

func FallbackBlockHeaderHash(h *types.FallbackBlockHeader) types.BlockHash {
	return utils.Sha256Fixed(encodeFallbackBlockHeader(h))
}
