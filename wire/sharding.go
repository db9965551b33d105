package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// ProtoShardingStructure{shards{members{pubkey, peerinfo, reputation}}}
const (
	ssShards        protowire.Number = 1
	ssMembers       protowire.Number = 1
	ssMemberPubKey  protowire.Number = 1
	ssMemberPeer    protowire.Number = 2
	ssMemberRep     protowire.Number = 3
	committeeMember protowire.Number = 1
)

// ProtoTxSharingAssignments
const (
	tsaDSNodes    protowire.Number = 1
	tsaShardNodes protowire.Number = 2
	tsaReceivers  protowire.Number = 1
	tsaSenders    protowire.Number = 2
)

func encodeShardingStructure(shards types.DequeOfShard) []byte {
	var b []byte
	for _, shard := range shards {
		var sb []byte
		for _, m := range shard {
			var mb []byte
			mb = appendByteArray(mb, ssMemberPubKey, m.PubKey[:])
			mb = appendByteArray(mb, ssMemberPeer, m.Peer.Bytes())
			mb = appendUint(mb, ssMemberRep, uint64(m.Reputation))
			sb = appendBytes(sb, ssMembers, mb)
		}
		b = appendBytes(b, ssShards, sb)
	}
	return b
}

func decodeShardingStructure(src []byte) (types.DequeOfShard, error) {
	var shards types.DequeOfShard
	_, err := walk(src, func(f field) error {
		if f.num != ssShards {
			return nil
		}
		raw, err := f.bytes()
		if err != nil {
			return err
		}
		shard := types.Shard{}
		_, err = walk(raw, func(g field) error {
			if g.num != ssMembers {
				return nil
			}
			mraw, err := g.bytes()
			if err != nil {
				return err
			}
			m, err := decodeShardMember(mraw)
			if err != nil {
				return err
			}
			shard = append(shard, m)
			return nil
		})
		if err != nil {
			return err
		}
		shards = append(shards, shard)
		return nil
	})
	return shards, err
}

func decodeShardMember(src []byte) (types.ShardMember, error) {
	var m types.ShardMember
	seen, err := walk(src, func(f field) error {
		switch f.num {
		case ssMemberPubKey:
			return f.pubKey(&m.PubKey)
		case ssMemberPeer:
			return f.peer(&m.Peer)
		case ssMemberRep:
			v, err := f.uintN(16)
			m.Reputation = uint16(v)
			return err
		}
		return nil
	})
	if err != nil {
		return m, err
	}
	return m, seen.require("ShardingStructure.Member", ssMemberPubKey, ssMemberPeer, ssMemberRep)
}

func encodeTxSharingAssignments(a *types.TxSharingAssignments) ([]byte, error) {
	if len(a.ShardReceivers) != len(a.ShardSenders) {
		return nil, fmt.Errorf("%w: %d shard receiver lists but %d sender lists",
			ErrEncode, len(a.ShardReceivers), len(a.ShardSenders))
	}
	var b []byte
	for _, p := range a.DSReceivers {
		b = appendByteArray(b, tsaDSNodes, p.Bytes())
	}
	for i := range a.ShardReceivers {
		var sb []byte
		for _, p := range a.ShardReceivers[i] {
			sb = appendByteArray(sb, tsaReceivers, p.Bytes())
		}
		for _, p := range a.ShardSenders[i] {
			sb = appendByteArray(sb, tsaSenders, p.Bytes())
		}
		b = appendBytes(b, tsaShardNodes, sb)
	}
	return b, nil
}

func decodeTxSharingAssignments(src []byte, a *types.TxSharingAssignments) error {
	*a = types.TxSharingAssignments{}
	_, err := walk(src, func(f field) error {
		switch f.num {
		case tsaDSNodes:
			var p types.Peer
			if err := f.peer(&p); err != nil {
				return err
			}
			a.DSReceivers = append(a.DSReceivers, p)
		case tsaShardNodes:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			receivers, senders := []types.Peer{}, []types.Peer{}
			_, err = walk(raw, func(g field) error {
				var p types.Peer
				switch g.num {
				case tsaReceivers:
					if err := g.peer(&p); err != nil {
						return err
					}
					receivers = append(receivers, p)
				case tsaSenders:
					if err := g.peer(&p); err != nil {
						return err
					}
					senders = append(senders, p)
				}
				return nil
			})
			if err != nil {
				return err
			}
			a.ShardReceivers = append(a.ShardReceivers, receivers)
			a.ShardSenders = append(a.ShardSenders, senders)
		}
		return nil
	})
	return err
}

// encodeCommittee ProtoCommittee 只包含公钥
func encodeCommittee(keys []types.PubKey) []byte {
	var b []byte
	for _, k := range keys {
		b = appendByteArray(b, committeeMember, k[:])
	}
	return b
}

func SetShardingStructure(dst []byte, offset int, shards types.DequeOfShard) ([]byte, error) {
	return place(dst, offset, encodeShardingStructure(shards))
}

func GetShardingStructure(src []byte, offset int) (types.DequeOfShard, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	return decodeShardingStructure(b)
}

func SetTxSharingAssignments(dst []byte, offset int, a *types.TxSharingAssignments) ([]byte, error) {
	if a == nil {
		return dst, fmt.Errorf("%w: nil TxSharingAssignments", ErrEncode)
	}
	enc, err := encodeTxSharingAssignments(a)
	if err != nil {
		return dst, err
	}
	return place(dst, offset, enc)
}

func GetTxSharingAssignments(src []byte, offset int, a *types.TxSharingAssignments) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	return decodeTxSharingAssignments(b, a)
}
