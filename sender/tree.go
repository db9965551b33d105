package sender

import (
	"shardchain/interfaces"
	"shardchain/types"
)

var _ interfaces.Transport = (*SendQueue)(nil)

// 树形转发：分片成员按顺序每 clusterSize 个划成一个簇，
// 簇 k 的成员负责把区块转给簇 k*children+1 .. k*children+children。
// 簇 0 的成员由 DS 委员会直接发送。

// TreeForwardTargets 返回 myIndex 这个成员要转发的目标，空 peer 跳过
func TreeForwardTargets(shard []types.Peer, myIndex, clusterSize, children int) []types.Peer {
	n := len(shard)
	if myIndex < 0 || myIndex >= n || clusterSize <= 0 || children <= 0 {
		return nil
	}
	cluster := myIndex / clusterSize
	first := cluster*children + 1

	var out []types.Peer
	for c := first; c < first+children; c++ {
		start := c * clusterSize
		if start >= n {
			break
		}
		end := start + clusterSize
		if end > n {
			end = n
		}
		for _, p := range shard[start:end] {
			if !p.IsZero() {
				out = append(out, p)
			}
		}
	}
	return out
}

// SendBlockToOtherShardNodes 按树形结构把已收到的区块消息转发给本分片的下游成员
func (sq *SendQueue) SendBlockToOtherShardNodes(msg []byte, shard []types.Peer, myIndex int) int {
	targets := TreeForwardTargets(shard, myIndex,
		sq.cfg.Node.NumForwardedBlockReceiversPerShard, sq.cfg.Node.NumOfTreeBasedChildClusters)
	if len(targets) == 0 {
		return 0
	}
	sq.Logger.Info("[SendQueue] tree forwarding block to %d shard peers (cluster size %d)",
		len(targets), sq.cfg.Node.NumForwardedBlockReceiversPerShard)
	sq.Broadcast(targets, msg, PriorityData)
	return len(targets)
}
