package node

import (
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"shardchain/blockchain"
	"shardchain/config"
	"shardchain/consensus"
	"shardchain/db"
	"shardchain/interfaces"
	"shardchain/logs"
	"shardchain/types"
	"shardchain/utils"
	"shardchain/wire"
)

// ---------- 协作者替身 ----------

type memStorage struct {
	mu        sync.Mutex
	ds        map[uint64][]byte
	tx        map[uint64][]byte
	vc        map[types.BlockHash][]byte
	fb        map[types.BlockHash][]byte
	links     map[uint64][]byte
	latestDS  uint64
	latestTx  uint64
	putLatest int
}

func newMemStorage() *memStorage {
	return &memStorage{
		ds:    make(map[uint64][]byte),
		tx:    make(map[uint64][]byte),
		vc:    make(map[types.BlockHash][]byte),
		fb:    make(map[types.BlockHash][]byte),
		links: make(map[uint64][]byte),
	}
}

func (s *memStorage) PutDSBlock(num uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds[num] = data
	return nil
}

func (s *memStorage) PutTxBlock(num uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tx[num] = data
	return nil
}

func (s *memStorage) PutVCBlock(h types.BlockHash, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vc[h] = data
	return nil
}

func (s *memStorage) PutFallbackBlock(h types.BlockHash, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fb[h] = data
	return nil
}

func (s *memStorage) PutBlockLink(index uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[index] = data
	return nil
}

func (s *memStorage) GetBlockLink(index uint64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.links[index]
	if !ok {
		return nil, fmt.Errorf("block link %d not found", index)
	}
	return d, nil
}

func (s *memStorage) PutLatestActiveDSBlockNum(num uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestDS = num
	s.putLatest++
	return nil
}

func (s *memStorage) PutLatestTxBlockNum(num uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latestTx = num
	return nil
}

type forwardCall struct {
	shard   []types.Peer
	myIndex int
}

type recordingTransport struct {
	mu       sync.Mutex
	sent     [][]types.Peer
	forwards []forwardCall
}

func (r *recordingTransport) SendMessage(peers []types.Peer, msg []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, peers)
}

func (r *recordingTransport) SendBlockToOtherShardNodes(msg []byte, shard []types.Peer, myIndex int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forwards = append(r.forwards, forwardCall{shard: shard, myIndex: myIndex})
	return len(shard)
}

func (r *recordingTransport) forwardCalls() []forwardCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]forwardCall(nil), r.forwards...)
}

// hooks 统一记录各钩子的调用次数
type hooks struct {
	stopMining      atomic.Int32
	download        atomic.Int32
	cleanCreatedTx  atomic.Int32
	dsFirstEpoch    atomic.Int32
	commitTxnBuffer atomic.Int32
	runMicroBlock   atomic.Int32
	timerLaunch     atomic.Int32
	timerPulse      atomic.Int32
	rejoin          atomic.Int32
	lookupShards    atomic.Int32

	latestSW types.SWInfo
}

func (h *hooks) StopMining()      { h.stopMining.Add(1) }
func (h *hooks) DownloadSW() bool { h.download.Add(1); return true }
func (h *hooks) GetLatestSWInfo() (types.SWInfo, bool) {
	return h.latestSW, true
}
func (h *hooks) CleanCreatedTransaction()  { h.cleanCreatedTx.Add(1) }
func (h *hooks) StartFirstTxEpoch()        { h.dsFirstEpoch.Add(1) }
func (h *hooks) CommitTxnPacketBuffer()    { h.commitTxnBuffer.Add(1) }
func (h *hooks) RunConsensusOnMicroBlock() { h.runMicroBlock.Add(1) }
func (h *hooks) FallbackTimerLaunch()      { h.timerLaunch.Add(1) }
func (h *hooks) FallbackTimerPulse()       { h.timerPulse.Add(1) }
func (h *hooks) RejoinAsNormal()           { h.rejoin.Add(1) }
func (h *hooks) ProcessEntireShardingStructure(types.DequeOfShard) {
	h.lookupShards.Add(1)
}

// ---------- 测试网络 ----------

// fixture: DS 委员会 A..D，PoW 胜出者 E；本节点在 0 号分片 [X, self, Y] 的下标 1
type fixture struct {
	t   *testing.T
	cfg *config.Config

	dsKeys  []types.KeyPair // A B C D E
	dsPeers []types.Peer

	self     types.KeyPair
	selfPeer types.Peer

	shardKeys  []types.KeyPair // X self Y
	shardPeers []types.Peer
	shards     types.DequeOfShard
	assign     types.TxSharingAssignments

	genesis *types.DSBlock

	ctx       *Context
	node      *Node
	store     *memStorage
	transport *recordingTransport
	hooks     *hooks
}

func testKey(t *testing.T, seed string) types.KeyPair {
	t.Helper()
	kp, err := utils.KeyPairFromSeed([]byte(seed))
	require.NoError(t, err)
	return kp
}

func testPeerAt(host byte, port uint32) types.Peer {
	return types.NewPeer(net.IPv4(10, 0, 0, host), port)
}

func newFixture(t *testing.T, tweak func(*config.Config)) *fixture {
	t.Helper()
	return newFixtureOn(t, tweak, nil)
}

// newFixtureOn disk 非 nil 时区块、元数据和 block link 都落到 badger
func newFixtureOn(t *testing.T, tweak func(*config.Config), disk *db.Manager) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	if tweak != nil {
		tweak(cfg)
	}
	f := &fixture{t: t, cfg: cfg, store: newMemStorage(), transport: &recordingTransport{}, hooks: &hooks{}}

	for i := 0; i < 5; i++ {
		f.dsKeys = append(f.dsKeys, testKey(t, fmt.Sprintf("ds-%d", i)))
		f.dsPeers = append(f.dsPeers, testPeerAt(byte(1+i), 4001))
	}
	f.self = testKey(t, "self")
	f.selfPeer = testPeerAt(100, 4001)
	f.shardKeys = []types.KeyPair{testKey(t, "shard-x"), f.self, testKey(t, "shard-y")}
	f.shardPeers = []types.Peer{testPeerAt(50, 4001), f.selfPeer, testPeerAt(51, 4001)}

	shard := make(types.Shard, len(f.shardKeys))
	for i := range shard {
		shard[i] = types.ShardMember{PubKey: f.shardKeys[i].Pub, Peer: f.shardPeers[i], Reputation: uint16(10 + i)}
	}
	f.shards = types.DequeOfShard{shard}
	f.assign = types.TxSharingAssignments{
		DSReceivers:    []types.Peer{f.dsPeers[0]},
		ShardReceivers: [][]types.Peer{{f.selfPeer}},
		ShardSenders:   [][]types.Peer{{f.shardPeers[2]}},
	}

	members := make([]types.CommitteeMember, 4)
	for i := range members {
		members[i] = types.CommitteeMember{PubKey: f.dsKeys[i].Pub, Peer: f.dsPeers[i]}
	}
	committee, err := types.NewCommittee(4, members)
	require.NoError(t, err)

	var storage interfaces.Storage = f.store
	var links blockchain.LinkStore
	if disk != nil {
		storage, links = disk, disk
	}
	f.ctx, err = NewContext(cfg, f.self, f.selfPeer, committee, links)
	require.NoError(t, err)

	gh := types.DSBlockHeader{BlockNum: 0, Timestamp: *uint256.NewInt(1)}
	f.genesis = &types.DSBlock{Header: gh, BlockHash: wire.DSBlockHeaderHash(&gh)}
	require.NoError(t, f.ctx.DSChain.AddBlock(f.genesis))

	th := types.TxBlockHeader{BlockNum: 0, Timestamp: *uint256.NewInt(1)}
	require.NoError(t, f.ctx.TxChain.AddBlock(&types.TxBlock{Header: th, BlockHash: wire.TxBlockHeaderHash(&th)}))

	f.node, err = New(f.ctx, cfg, Deps{
		Storage:   storage,
		Transport: f.transport,
		PoW:       f.hooks,
		Upgrader:  f.hooks,
		DS:        f.hooks,
		Shard:     f.hooks,
		Rejoiner:  f.hooks,
		Lookup:    f.hooks,
	}, logs.NewWriterLogger(f.selfPeer.String(), io.Discard))
	require.NoError(t, err)
	return f
}

// committeeKeys 按当前委员会顺序取出私钥
func (f *fixture) committeeKeys() []types.KeyPair {
	byPub := make(map[types.PubKey]types.KeyPair)
	for _, k := range append(append([]types.KeyPair(nil), f.dsKeys...), f.self) {
		byPub[k.Pub] = k
	}
	var out []types.KeyPair
	for _, m := range f.ctx.CommitteeSnapshot() {
		kp, ok := byPub[m.PubKey]
		require.True(f.t, ok, "unknown committee member %s", m.PubKey.Hex()[:16])
		out = append(out, kp)
	}
	return out
}

func rotated(keys []types.KeyPair, n int) []types.KeyPair {
	out := append([]types.KeyPair(nil), keys[n:]...)
	return append(out, keys[:n]...)
}

func membersOf(keys []types.KeyPair, peers map[types.PubKey]types.Peer) []types.CommitteeMember {
	out := make([]types.CommitteeMember, len(keys))
	for i, k := range keys {
		out[i] = types.CommitteeMember{PubKey: k.Pub, Peer: peers[k.Pub]}
	}
	return out
}

func (f *fixture) peerBook() map[types.PubKey]types.Peer {
	book := make(map[types.PubKey]types.Peer)
	for _, m := range f.ctx.CommitteeSnapshot() {
		book[m.PubKey] = m.Peer
	}
	for i, k := range f.dsKeys {
		if _, ok := book[k.Pub]; !ok {
			book[k.Pub] = f.dsPeers[i]
		}
	}
	return book
}

func cosign(t *testing.T, header []byte, signers []types.KeyPair) types.CoSignatures {
	t.Helper()
	n := len(signers)
	cs, err := consensus.CoSign(header, signers, consensus.AllSigners(n), consensus.AllSigners(n))
	require.NoError(t, err)
	return cs
}

// winner 默认让 E 赢得 DS PoW
func (f *fixture) winner() types.PoWWinner {
	return types.PoWWinner{PubKey: f.dsKeys[4].Pub, Peer: f.dsPeers[4]}
}

// dsMessage 生成 DS 区块 num：委员会哈希按当前委员会，签名按 signers 的顺序
func (f *fixture) dsMessage(num uint64, winners []types.PoWWinner, vcBlocks []types.VCBlock, signers []types.KeyPair) *wire.VCDSBlocksMessage {
	t := f.t
	t.Helper()
	prev, ok := f.ctx.DSChain.GetLastBlock()
	require.True(t, ok)

	h := types.DSBlockHeader{
		DSDifficulty: 5,
		Difficulty:   3,
		PrevHash:     prev.BlockHash,
		LeaderPubKey: f.ctx.CommitteeSnapshot()[0].PubKey,
		BlockNum:     num,
		Timestamp:    *uint256.NewInt(1700000000 + num),
		PoWDSWinners: types.NewDSPoWWinners(winners...),
	}
	h.HashSet.ShardingHash = wire.GetShardingStructureHash(f.shards)
	txHash, err := wire.GetTxSharingAssignmentsHash(&f.assign)
	require.NoError(t, err)
	h.HashSet.TxSharingHash = txHash
	h.CommitteeHash = wire.GetDSCommitteeHash(f.ctx.CommitteeSnapshot())

	m := &wire.VCDSBlocksMessage{
		ShardID:     0,
		DSBlock:     types.DSBlock{Header: h},
		VCBlocks:    vcBlocks,
		Shards:      f.shards,
		Assignments: f.assign,
	}
	f.seal(m, signers)
	return m
}

// seal 重新计算区块哈希和聚合签名
func (f *fixture) seal(m *wire.VCDSBlocksMessage, signers []types.KeyPair) {
	f.t.Helper()
	h := &m.DSBlock.Header
	m.DSBlock.BlockHash = wire.DSBlockHeaderHash(h)
	header, err := wire.SetDSBlockHeader(nil, 0, h)
	require.NoError(f.t, err)
	m.DSBlock.CoSigs = cosign(f.t, header, signers)
}

// vcBlock 让 committee[idx] 成为候选 leader
func (f *fixture) vcBlock(committee []types.CommitteeMember, signers []types.KeyPair, idx int, counter uint32, epoch uint64) types.VCBlock {
	t := f.t
	t.Helper()
	h := types.VCBlockHeader{
		VCDSEpochNo:                1,
		VCEpochNo:                  epoch,
		ViewChangeState:            1,
		CandidateLeaderIndex:       uint32(idx),
		CandidateLeaderNetworkInfo: committee[idx].Peer,
		CandidateLeaderPubKey:      committee[idx].PubKey,
		VCCounter:                  counter,
		Timestamp:                  *uint256.NewInt(uint64(1700000100 + counter)),
	}
	h.CommitteeHash = wire.GetDSCommitteeHash(committee)
	header, err := wire.SetVCBlockHeader(nil, 0, &h)
	require.NoError(t, err)
	return types.VCBlock{Header: h, CoSigs: cosign(t, header, signers), BlockHash: wire.VCBlockHeaderHash(&h)}
}

func (f *fixture) encodeDS(m *wire.VCDSBlocksMessage) []byte {
	f.t.Helper()
	msg, err := wire.SetNodeVCDSBlocksMessage(wire.NewFrame(wire.MsgNode, uint8(wire.InstrDSBlock)), wire.FrameHeaderSize, m)
	require.NoError(f.t, err)
	return msg
}

func (f *fixture) deliverDS(m *wire.VCDSBlocksMessage) error {
	return f.node.ProcessVCDSBlocksMessage(f.encodeDS(m), wire.FrameHeaderSize, f.dsPeers[0])
}

// acceptDSBlock1 走一遍正常的分片路径，委员会变为 [E A B C]
func (f *fixture) acceptDSBlock1() {
	f.t.Helper()
	m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
	require.NoError(f.t, f.deliverDS(m))
}
