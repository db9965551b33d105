package types

// ShardMember 分片成员 (公钥, 网络信息, 信誉)
type ShardMember struct {
	PubKey     PubKey
	Peer       Peer
	Reputation uint16
}

// Shard 有序成员列表，第一个是 leader
type Shard []ShardMember

// DequeOfShard 下标即分片 ID
type DequeOfShard []Shard

func (s Shard) PubKeys() []PubKey {
	out := make([]PubKey, len(s))
	for i, m := range s {
		out[i] = m.PubKey
	}
	return out
}

// IndexOfPeer 找不到返回 -1
func (s Shard) IndexOfPeer(p Peer) int {
	for i, m := range s {
		if m.Peer == p {
			return i
		}
	}
	return -1
}

func (d DequeOfShard) NumMembers() int {
	n := 0
	for _, s := range d {
		n += len(s)
	}
	return n
}

// TxSharingAssignments 交易分发指派
type TxSharingAssignments struct {
	DSReceivers    []Peer
	ShardReceivers [][]Peer
	ShardSenders   [][]Peer
}
