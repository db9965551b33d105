package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"shardchain/consensus"
	"shardchain/db"
	"shardchain/logs"
	"shardchain/node"
	"shardchain/types"
	"shardchain/utils"
	"shardchain/wire"
)

// genesisMember 本地集群的创世 DS 成员，私钥由种子导出
type genesisMember struct {
	Key  types.KeyPair
	Peer types.Peer
}

// parsePeer "host:port" -> Peer
func parsePeer(addr string) (types.Peer, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return types.Peer{}, err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return types.Peer{}, fmt.Errorf("resolve %s: %v", host, err)
		}
		ip = ips[0]
	}
	p, err := strconv.ParseUint(port, 10, 32)
	if err != nil {
		return types.Peer{}, fmt.Errorf("bad port %q: %w", port, err)
	}
	return types.NewPeer(ip, uint32(p)), nil
}

// parseCommittee "seed@host:port,seed@host:port,..."
func parseCommittee(s string) ([]genesisMember, error) {
	var out []genesisMember
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		seed, addr, ok := strings.Cut(item, "@")
		if !ok || seed == "" {
			return nil, fmt.Errorf("committee member %q: want seed@host:port", item)
		}
		key, err := utils.KeyPairFromSeed([]byte(seed))
		if err != nil {
			return nil, err
		}
		peer, err := parsePeer(addr)
		if err != nil {
			return nil, fmt.Errorf("committee member %q: %w", item, err)
		}
		out = append(out, genesisMember{Key: key, Peer: peer})
	}
	if len(out) == 0 {
		return nil, errors.New("empty genesis committee")
	}
	return out, nil
}

// newCommittee 自己那一项的 Peer 清零
func newCommittee(capacity int, members []genesisMember, self types.PubKey) (*types.Committee, error) {
	cm := make([]types.CommitteeMember, len(members))
	for i, m := range members {
		cm[i] = types.CommitteeMember{PubKey: m.Key.Pub, Peer: m.Peer}
		if m.Key.Pub == self {
			cm[i].Peer = types.Peer{}
		}
	}
	return types.NewCommittee(max(capacity, len(cm)), cm)
}

// genesisDSBlock 所有节点用同一组种子得到同一个创世区块
func genesisDSBlock(members []genesisMember, committee []types.CommitteeMember) (*types.DSBlock, error) {
	keys := make([]types.KeyPair, len(members))
	for i, m := range members {
		keys[i] = m.Key
	}
	h := types.DSBlockHeader{
		LeaderPubKey: keys[0].Pub,
		BlockNum:     0,
		Timestamp:    *uint256.NewInt(0),
	}
	h.CommitteeHash = wire.GetDSCommitteeHash(committee)
	header, err := wire.SetDSBlockHeader(nil, 0, &h)
	if err != nil {
		return nil, err
	}
	cs, err := consensus.CoSign(header, keys, consensus.AllSigners(len(keys)), consensus.AllSigners(len(keys)))
	if err != nil {
		return nil, fmt.Errorf("co-sign genesis DS block: %w", err)
	}
	return &types.DSBlock{Header: h, CoSigs: cs, BlockHash: wire.DSBlockHeaderHash(&h)}, nil
}

func genesisTxBlock(ds *types.DSBlock) *types.TxBlock {
	h := types.TxBlockHeader{
		BlockNum:      0,
		Timestamp:     *uint256.NewInt(0),
		DSBlockNum:    0,
		DSBlockHeader: ds.BlockHash,
	}
	h.CommitteeHash = ds.Header.CommitteeHash
	return &types.TxBlock{Header: h, CoSigs: ds.CoSigs, BlockHash: wire.TxBlockHeaderHash(&h)}
}

// loadGenesis 磁盘上已有创世区块时直接用，否则生成并落盘；
// 之后按 block link 重放已落盘的区块，恢复链和委员会
func loadGenesis(ctx *node.Context, store *db.Manager, members []genesisMember, logger logs.Logger) error {
	var ds *types.DSBlock
	if raw, err := store.GetDSBlock(0); err == nil {
		ds = new(types.DSBlock)
		if err := wire.GetDSBlock(raw, 0, ds); err != nil {
			return fmt.Errorf("decode stored genesis DS block: %w", err)
		}
	} else if errors.Is(err, db.ErrNotFound) {
		if ds, err = genesisDSBlock(members, ctx.CommitteeSnapshot()); err != nil {
			return err
		}
		enc, err := wire.SetDSBlock(nil, 0, ds)
		if err != nil {
			return err
		}
		if err := store.PutDSBlock(0, enc); err != nil {
			return err
		}
	} else {
		return err
	}
	if err := ctx.DSChain.AddBlock(ds); err != nil {
		return err
	}

	tx := genesisTxBlock(ds)
	if err := ctx.TxChain.AddBlock(tx); err != nil {
		return err
	}
	ctx.UpdateDSBlockRand(true)
	ctx.UpdateTxBlockRand(true)
	return ctx.RestoreFromStorage(store, logger)
}
