package node

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardchain/config"
	"shardchain/consensus"
	"shardchain/types"
	"shardchain/wire"
)

func pubKeysOf(ms []types.CommitteeMember) []types.PubKey {
	out := make([]types.PubKey, len(ms))
	for i, m := range ms {
		out[i] = m.PubKey
	}
	return out
}

func TestShardNodeAcceptsDSBlock(t *testing.T) {
	f := newFixture(t, nil)
	f.hooks.latestSW = types.SWInfo{Major: 2}

	m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
	m.DSBlock.Header.SWInfo = types.SWInfo{Major: 2}
	f.seal(m, f.committeeKeys())
	require.NoError(t, f.deliverDS(m))

	last, ok := f.ctx.DSChain.LastBlockNum()
	require.True(t, ok)
	assert.Equal(t, uint64(1), last)
	assert.Equal(t, PhaseSteadyStateShard, f.node.Phase())
	assert.Equal(t, StateMicroBlockConsensusPrep, f.node.State())

	// E 推到队头，D 被挤出
	assert.Equal(t, []types.PubKey{f.dsKeys[4].Pub, f.dsKeys[0].Pub, f.dsKeys[1].Pub, f.dsKeys[2].Pub},
		pubKeysOf(f.ctx.CommitteeSnapshot()))

	f.store.mu.Lock()
	assert.Contains(t, f.store.ds, uint64(1))
	assert.Equal(t, uint64(1), f.store.latestDS)
	f.store.mu.Unlock()

	link, err := f.ctx.BlockLinks.GetBlockLink(1)
	require.NoError(t, err)
	assert.Equal(t, types.BlockTypeDS, link.Type)
	assert.Equal(t, uint64(1), link.DSIndex)
	assert.Equal(t, m.DSBlock.BlockHash, link.Hash)

	id := f.node.ShardIdentity()
	assert.Equal(t, uint16(1), id.ConsensusMyID)
	assert.Equal(t, uint16(0), id.ConsensusLeaderID)
	assert.False(t, id.IsPrimary)
	assert.True(t, id.IsMBSender)
	assert.True(t, id.Members[1].Peer.IsZero())
	assert.Equal(t, f.shardPeers[0], id.Members[0].Peer)
	assert.Len(t, id.DSMBReceivers, 4)
	assert.True(t, id.TxnSharingIAmForwarder)
	assert.False(t, id.TxnSharingIAmSender)
	assert.Len(t, id.TxnSharingAssignedNodes, 3)

	assert.Equal(t, int32(1), f.hooks.stopMining.Load())
	assert.Equal(t, int32(1), f.hooks.commitTxnBuffer.Load())
	assert.Equal(t, int32(1), f.hooks.timerLaunch.Load())
	assert.Equal(t, int32(0), f.hooks.dsFirstEpoch.Load())
	assert.Empty(t, f.transport.forwardCalls())

	require.Eventually(t, func() bool { return f.hooks.runMicroBlock.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.ctx.CurSWInfo() == types.SWInfo{Major: 2} }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), f.hooks.download.Load())
}

func TestDSBlockRandAdvances(t *testing.T) {
	f := newFixture(t, nil)
	before := f.ctx.DSBlockRand()
	f.acceptDSBlock1()
	assert.NotEqual(t, before, f.ctx.DSBlockRand())
}

func TestNewDSMemberTakesDSRole(t *testing.T) {
	f := newFixture(t, nil)
	m := f.dsMessage(1, []types.PoWWinner{{PubKey: f.self.Pub, Peer: f.selfPeer}}, nil, f.committeeKeys())
	require.NoError(t, f.deliverDS(m))

	assert.Equal(t, PhaseSteadyStateDS, f.node.Phase())
	committee := f.ctx.CommitteeSnapshot()
	assert.Equal(t, f.self.Pub, committee[0].PubKey)
	assert.True(t, committee[0].Peer.IsZero())

	ds := f.node.DSIdentity()
	assert.Equal(t, ModePrimaryDS, ds.Mode)
	assert.Equal(t, uint16(0), ds.ConsensusMyID)
	assert.Equal(t, uint32(0), ds.PubKeyToShardID[f.shardKeys[0].Pub])
	assert.Equal(t, uint16(12), ds.NodeReputation[f.shardKeys[2].Pub])
	assert.False(t, ds.IAmDSReceiver)

	assert.Equal(t, int32(1), f.hooks.cleanCreatedTx.Load())
	assert.Equal(t, int32(1), f.hooks.dsFirstEpoch.Load())
	assert.Equal(t, int32(0), f.hooks.commitTxnBuffer.Load())
}

func TestLookupNodeKeepsShardingStructure(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Node.LookupNodeMode = true })
	// lookup 不检查状态
	f.node.SetState(StateSync)
	f.acceptDSBlock1()

	assert.Equal(t, int32(1), f.hooks.lookupShards.Load())
	assert.Equal(t, int32(0), f.hooks.stopMining.Load())
	assert.Equal(t, int32(1), f.hooks.timerLaunch.Load())
	assert.Equal(t, PhaseSteadyStateShard, f.node.Phase())
}

func TestDSBlockRejected(t *testing.T) {
	tests := []struct {
		name   string
		build  func(f *fixture) *wire.VCDSBlocksMessage
		before func(f *fixture)
		want   error
	}{
		{
			name: "sharding hash",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
				m.DSBlock.Header.HashSet.ShardingHash[0] ^= 1
				return m
			},
			want: ErrHashMismatch,
		},
		{
			name: "tx sharing hash",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
				m.DSBlock.Header.HashSet.TxSharingHash[0] ^= 1
				f.seal(m, f.committeeKeys())
				return m
			},
			want: ErrHashMismatch,
		},
		{
			name: "committee hash",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
				m.DSBlock.Header.CommitteeHash[0] ^= 1
				f.seal(m, f.committeeKeys())
				return m
			},
			want: ErrHashMismatch,
		},
		{
			name: "block hash",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
				m.DSBlock.BlockHash[0] ^= 1
				return m
			},
			want: ErrHashMismatch,
		},
		{
			name: "duplicate",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				return f.dsMessage(0, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
			},
			want: ErrDuplicateBlock,
		},
		{
			name: "missing blocks",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				return f.dsMessage(3, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
			},
			want: ErrMissingBlocks,
		},
		{
			name: "below threshold",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
				m.DSBlock.CoSigs.B2[2] = false
				m.DSBlock.CoSigs.B2[3] = false
				return m
			},
			want: consensus.ErrThreshold,
		},
		{
			name: "bitmap does not match signature",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
				m.DSBlock.CoSigs.B2[3] = false
				return m
			},
			want: consensus.ErrSignature,
		},
		{
			name: "signed by outsider",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				keys := f.committeeKeys()
				keys[3] = f.dsKeys[4]
				return f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, keys)
			},
			want: consensus.ErrSignature,
		},
		{
			name: "wrong state",
			build: func(f *fixture) *wire.VCDSBlocksMessage {
				return f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
			},
			before: func(f *fixture) { f.node.SetState(StateMicroBlockConsensus) },
			want:   ErrState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			committee := f.ctx.CommitteeSnapshot()
			m := tt.build(f)
			if tt.before != nil {
				tt.before(f)
			}

			err := f.deliverDS(m)
			require.ErrorIs(t, err, tt.want)

			last, _ := f.ctx.DSChain.LastBlockNum()
			assert.Equal(t, uint64(0), last)
			assert.Equal(t, committee, f.ctx.CommitteeSnapshot())
			assert.Equal(t, PhaseAwaitingDSBlock, f.node.Phase())
			assert.Equal(t, 0, f.ctx.BlockLinks.Len())
			assert.Equal(t, int32(0), f.hooks.stopMining.Load())
		})
	}
}

func TestDuplicateIsSequencingError(t *testing.T) {
	assert.ErrorIs(t, ErrDuplicateBlock, ErrSequencing)
	assert.ErrorIs(t, ErrMissingBlocks, ErrSequencing)
}

func TestSelfMissingFromShardTriggersRejoin(t *testing.T) {
	f := newFixture(t, nil)
	other := testKey(t, "stranger")
	f.shards[0][1] = types.ShardMember{PubKey: other.Pub, Peer: testPeerAt(77, 4001)}

	m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
	err := f.deliverDS(m)
	require.ErrorIs(t, err, ErrIdentityNotFound)

	assert.Equal(t, int32(1), f.hooks.rejoin.Load())
	// 区块已经上链，只是本节点不再参与本轮
	last, _ := f.ctx.DSChain.LastBlockNum()
	assert.Equal(t, uint64(1), last)
	assert.Equal(t, PhaseAwaitingDSBlock, f.node.Phase())
	assert.Equal(t, int32(0), f.hooks.commitTxnBuffer.Load())
}

func TestTreeForwardingOfDSBlock(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Node.BroadcastTreeBasedClusterMode = true })
	f.acceptDSBlock1()

	calls := f.transport.forwardCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, 1, calls[0].myIndex)
	require.Len(t, calls[0].shard, 3)
	assert.True(t, calls[0].shard[1].IsZero())
	assert.Equal(t, f.shardPeers[2], calls[0].shard[2])
}

func TestVCBlocksAppliedBeforeDSCoSig(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Consensus.VCVerifyParallelism = 2 })
	book := f.peerBook()

	keys0 := f.committeeKeys() // A B C D
	vc1 := f.vcBlock(membersOf(keys0, book), keys0, 1, 1, 0)
	keys1 := rotated(keys0, 1) // B C D A
	vc2 := f.vcBlock(membersOf(keys1, book), keys1, 2, 2, 0)
	keys2 := rotated(keys1, 2) // D A B C

	m := f.dsMessage(1, []types.PoWWinner{f.winner()}, []types.VCBlock{vc1, vc2}, keys2)
	require.NoError(t, f.deliverDS(m))

	assert.Equal(t, []types.PubKey{f.dsKeys[4].Pub, f.dsKeys[3].Pub, f.dsKeys[0].Pub, f.dsKeys[1].Pub},
		pubKeysOf(f.ctx.CommitteeSnapshot()))

	links := f.ctx.BlockLinks.Links()
	require.Len(t, links, 3)
	assert.Equal(t, types.BlockTypeVC, links[0].Type)
	assert.Equal(t, vc1.BlockHash, links[0].Hash)
	assert.Equal(t, types.BlockTypeVC, links[1].Type)
	assert.Equal(t, types.BlockTypeDS, links[2].Type)

	f.store.mu.Lock()
	assert.Contains(t, f.store.vc, vc1.BlockHash)
	assert.Contains(t, f.store.vc, vc2.BlockHash)
	f.store.mu.Unlock()
}

func TestVCCounterMismatch(t *testing.T) {
	for _, strict := range []bool{false, true} {
		f := newFixture(t, func(c *config.Config) { c.Consensus.StrictVCCounter = strict })
		keys0 := f.committeeKeys()
		vc := f.vcBlock(membersOf(keys0, f.peerBook()), keys0, 1, 2, 0)
		m := f.dsMessage(1, []types.PoWWinner{f.winner()}, []types.VCBlock{vc}, rotated(keys0, 1))

		err := f.deliverDS(m)
		if strict {
			require.ErrorIs(t, err, ErrSequencing)
			assert.Equal(t, pubKeysOf(membersOf(keys0, nil)), pubKeysOf(f.ctx.CommitteeSnapshot()))
		} else {
			require.NoError(t, err)
		}
	}
}

func TestBadVCBlockLeavesCommitteeUntouched(t *testing.T) {
	f := newFixture(t, nil)
	keys0 := f.committeeKeys()
	before := f.ctx.CommitteeSnapshot()

	outsiders := append(append([]types.KeyPair(nil), keys0[:3]...), f.dsKeys[4])
	vc := f.vcBlock(membersOf(keys0, f.peerBook()), outsiders, 1, 1, 0)
	m := f.dsMessage(1, []types.PoWWinner{f.winner()}, []types.VCBlock{vc}, rotated(keys0, 1))
	require.ErrorIs(t, f.deliverDS(m), consensus.ErrSignature)
	assert.Equal(t, before, f.ctx.CommitteeSnapshot())
	assert.Equal(t, 0, f.ctx.BlockLinks.Len())

	// 候选 leader 与委员会对不上
	vc = f.vcBlock(membersOf(keys0, f.peerBook()), keys0, 1, 1, 0)
	vc.Header.CandidateLeaderPubKey = f.dsKeys[3].Pub
	vc.BlockHash = wire.VCBlockHeaderHash(&vc.Header)
	m = f.dsMessage(1, []types.PoWWinner{f.winner()}, []types.VCBlock{vc}, rotated(keys0, 1))
	require.ErrorIs(t, f.deliverDS(m), consensus.ErrFieldMismatch)
	assert.Equal(t, before, f.ctx.CommitteeSnapshot())
}

func TestProcessVCBlockDuringEpoch(t *testing.T) {
	f := newFixture(t, nil)
	f.ctx.SetCurrentEpoch(5)
	keys0 := f.committeeKeys()
	vc := f.vcBlock(membersOf(keys0, f.peerBook()), keys0, 1, 1, 5)

	encode := func(vc *types.VCBlock) []byte {
		msg, err := wire.SetNodeVCBlock(wire.NewFrame(wire.MsgNode, uint8(wire.InstrVCBlock)), wire.FrameHeaderSize, vc)
		require.NoError(t, err)
		return msg
	}

	stale := f.vcBlock(membersOf(keys0, f.peerBook()), keys0, 1, 1, 4)
	require.ErrorIs(t, f.node.Dispatch(encode(&stale), f.dsPeers[1]), consensus.ErrFieldMismatch)

	require.NoError(t, f.node.Dispatch(encode(&vc), f.dsPeers[1]))
	assert.Equal(t, pubKeysOf(membersOf(rotated(keys0, 1), nil)), pubKeysOf(f.ctx.CommitteeSnapshot()))
	link, err := f.ctx.BlockLinks.GetBlockLink(1)
	require.NoError(t, err)
	assert.Equal(t, types.BlockTypeVC, link.Type)
}

func (f *fixture) fallbackBlock(dsEpoch uint64, leader int) types.FallbackBlock {
	f.t.Helper()
	shard := f.shards[0]
	h := types.FallbackBlockHeader{
		FallbackDSEpochNo: dsEpoch,
		FallbackEpochNo:   0,
		FallbackState:     1,
		LeaderConsensusID: uint32(leader),
		LeaderNetworkInfo: shard[leader].Peer,
		LeaderPubKey:      shard[leader].PubKey,
		ShardID:           0,
		Timestamp:         *uint256.NewInt(1700000200),
	}
	h.CommitteeHash = wire.GetShardHash(shard)
	header, err := wire.SetFallbackBlockHeader(nil, 0, &h)
	require.NoError(f.t, err)
	return types.FallbackBlock{Header: h, CoSigs: cosign(f.t, header, f.shardKeys), BlockHash: wire.FallbackBlockHeaderHash(&h)}
}

func (f *fixture) encodeFallback(fb *types.FallbackBlock) []byte {
	f.t.Helper()
	msg, err := wire.SetFallbackBlockWShardingStructure(
		wire.NewFrame(wire.MsgNode, uint8(wire.InstrFallbackBlock)), wire.FrameHeaderSize, fb, f.shards)
	require.NoError(f.t, err)
	return msg
}

func TestProcessFallbackBlock(t *testing.T) {
	f := newFixture(t, nil)
	f.acceptDSBlock1()
	require.Eventually(t, func() bool { return f.hooks.runMicroBlock.Load() == 1 }, time.Second, 5*time.Millisecond)

	wrongEpoch := f.fallbackBlock(0, 2)
	require.ErrorIs(t, f.node.Dispatch(f.encodeFallback(&wrongEpoch), f.shardPeers[2]), consensus.ErrFieldMismatch)

	fb := f.fallbackBlock(1, 2)
	pulses := f.hooks.timerPulse.Load()
	require.NoError(t, f.node.Dispatch(f.encodeFallback(&fb), f.shardPeers[2]))

	id := f.node.ShardIdentity()
	assert.Equal(t, uint16(2), id.ConsensusLeaderID)
	assert.False(t, id.IsPrimary)
	assert.True(t, id.JustDidFallback)
	assert.Equal(t, StateMicroBlockConsensusPrep, f.node.State())
	assert.Equal(t, pulses+1, f.hooks.timerPulse.Load())

	link, err := f.ctx.BlockLinks.GetBlockLink(2)
	require.NoError(t, err)
	assert.Equal(t, types.BlockTypeFB, link.Type)
	assert.Equal(t, fb.BlockHash, link.Hash)
	f.store.mu.Lock()
	assert.Contains(t, f.store.fb, fb.BlockHash)
	f.store.mu.Unlock()
	require.Eventually(t, func() bool { return f.hooks.runMicroBlock.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestFallbackBlockRejectedInWrongState(t *testing.T) {
	f := newFixture(t, nil)
	fb := f.fallbackBlock(0, 2)
	require.ErrorIs(t, f.node.Dispatch(f.encodeFallback(&fb), f.shardPeers[2]), ErrState)
}

func (f *fixture) finalBlock(num, dsNum uint64) []byte {
	f.t.Helper()
	prev, ok := f.ctx.TxChain.GetLastBlock()
	require.True(f.t, ok)
	h := types.TxBlockHeader{
		Version:    1,
		PrevHash:   prev.BlockHash,
		BlockNum:   num,
		Timestamp:  *uint256.NewInt(1700000300 + num),
		NumTxs:     7,
		DSBlockNum: dsNum,
	}
	h.CommitteeHash = wire.GetDSCommitteeHash(f.ctx.CommitteeSnapshot())
	header, err := wire.SetTxBlockHeader(nil, 0, &h)
	require.NoError(f.t, err)
	m := &wire.FinalBlockMessage{
		ShardID:       0,
		DSBlockNumber: dsNum,
		ConsensusID:   1,
		TxBlock:       types.TxBlock{Header: h, CoSigs: cosign(f.t, header, f.committeeKeys()), BlockHash: wire.TxBlockHeaderHash(&h)},
		StateDelta:    []byte{1, 2, 3},
	}
	msg, err := wire.SetNodeFinalBlock(wire.NewFrame(wire.MsgNode, uint8(wire.InstrFinalBlock)), wire.FrameHeaderSize, m)
	require.NoError(f.t, err)
	return msg
}

func TestProcessFinalBlock(t *testing.T) {
	f := newFixture(t, nil)
	f.acceptDSBlock1()
	require.Eventually(t, func() bool { return f.hooks.runMicroBlock.Load() == 1 }, time.Second, 5*time.Millisecond)
	consensusID := f.ctx.ConsensusID()
	rand := f.ctx.TxBlockRand()

	require.ErrorIs(t, f.node.Dispatch(f.finalBlock(1, 0), f.dsPeers[4]), consensus.ErrFieldMismatch)
	require.ErrorIs(t, f.node.Dispatch(f.finalBlock(0, 1), f.dsPeers[4]), ErrDuplicateBlock)
	require.ErrorIs(t, f.node.Dispatch(f.finalBlock(2, 1), f.dsPeers[4]), ErrMissingBlocks)

	require.NoError(t, f.node.Dispatch(f.finalBlock(1, 1), f.dsPeers[4]))
	last, ok := f.ctx.TxChain.GetLastBlock()
	require.True(t, ok)
	assert.Equal(t, uint64(1), last.Header.BlockNum)
	assert.Equal(t, uint64(1), f.ctx.CurrentEpoch())
	assert.False(t, f.ctx.IsVacuousEpoch())
	assert.Equal(t, consensusID+1, f.ctx.ConsensusID())
	assert.NotEqual(t, rand, f.ctx.TxBlockRand())
	assert.Equal(t, StateMicroBlockConsensusPrep, f.node.State())
	f.store.mu.Lock()
	assert.Contains(t, f.store.tx, uint64(1))
	f.store.mu.Unlock()
	require.Eventually(t, func() bool { return f.hooks.runMicroBlock.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestVacuousFinalBlockStartsPoW(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Node.NumFinalBlockPerPoW = 1 })
	f.acceptDSBlock1()

	require.NoError(t, f.node.Dispatch(f.finalBlock(1, 1), f.dsPeers[4]))
	assert.True(t, f.ctx.IsVacuousEpoch())
	assert.Equal(t, StatePoWSubmission, f.node.State())
}

func TestDispatchRejectsUnknownMessages(t *testing.T) {
	f := newFixture(t, nil)

	_, _, err := wire.ParseFrame([]byte{byte(wire.MsgNode)})
	require.Error(t, err)
	assert.Error(t, f.node.Dispatch([]byte{byte(wire.MsgNode)}, f.dsPeers[0]))

	err = f.node.Dispatch(wire.FrameMessage(wire.MsgNode, uint8(wire.InstrStartPoW), nil), f.dsPeers[0])
	assert.ErrorIs(t, err, ErrUnknownInstruction)

	err = f.node.Dispatch(wire.FrameMessage(wire.MsgDirectory, uint8(wire.InstrDSBlock), nil), f.dsPeers[0])
	assert.ErrorIs(t, err, ErrUnknownInstruction)

	// 通过 Dispatch 走完整 DS 区块路径
	m := f.dsMessage(1, []types.PoWWinner{f.winner()}, nil, f.committeeKeys())
	require.NoError(t, f.node.Dispatch(f.encodeDS(m), f.dsPeers[0]))
	assert.Equal(t, PhaseSteadyStateShard, f.node.Phase())
}

func TestComputeLeaderID(t *testing.T) {
	var h types.BlockHash
	h[len(h)-2], h[len(h)-1] = 0x01, 0x02 // 0x0102 = 258

	assert.Equal(t, uint16(0), ComputeLeaderID(h, 10, 0))
	assert.Equal(t, uint16(0), ComputeLeaderID(h, 10, 1))
	assert.Equal(t, uint16(258%10), ComputeLeaderID(h, 10, 2))
	assert.Equal(t, uint16(0), ComputeLeaderID(h, 0, 5))
}

func TestResetConsensusID(t *testing.T) {
	f := newFixture(t, nil)
	f.ctx.SetCurrentEpoch(1)
	f.node.ResetConsensusID()
	assert.Equal(t, uint32(1), f.ctx.ConsensusID())

	f.ctx.SetCurrentEpoch(7)
	f.node.ResetConsensusID()
	assert.Equal(t, uint32(0), f.ctx.ConsensusID())
}

func TestCheckState(t *testing.T) {
	f := newFixture(t, nil)
	assert.NoError(t, f.node.CheckState(ActionProcessDSBlock))
	assert.ErrorIs(t, f.node.CheckState(ActionProcessFinalBlock), ErrState)

	f.node.SetState(StateWaitingFallbackBlock)
	assert.NoError(t, f.node.CheckState(ActionProcessFallbackBlock))
	assert.ErrorIs(t, f.node.CheckState(ActionProcessDSBlock), ErrState)
}
