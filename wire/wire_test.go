package wire

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardchain/types"
	"shardchain/utils"
)

func testPubKey(b byte) types.PubKey {
	var k types.PubKey
	k[0], k[127] = b, b
	return k
}

func testPeer(port uint32) types.Peer {
	p := types.Peer{ListenPortHost: port}
	p.IPAddress[15] = byte(port)
	return p
}

func testHash(b byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func testCoSigs() types.CoSignatures {
	var c types.CoSignatures
	c.CS1[0], c.CS2[63] = 1, 2
	c.B1 = []bool{true, false, true, true}
	c.B2 = []bool{true, true, false, true}
	return c
}

func testDSBlock() types.DSBlock {
	h := types.DSBlockHeader{
		DSDifficulty: 5,
		Difficulty:   3,
		PrevHash:     testHash(0x11),
		LeaderPubKey: testPubKey(9),
		BlockNum:     42,
		Timestamp:    *uint256.NewInt(1700000000),
		SWInfo:       types.SWInfo{Major: 1, Minor: 2, Fix: 3, UpgradeDS: 10, Commit: 7},
		PoWDSWinners: types.NewDSPoWWinners(
			types.PoWWinner{PubKey: testPubKey(2), Peer: testPeer(2)},
			types.PoWWinner{PubKey: testPubKey(1), Peer: testPeer(1)},
		),
	}
	h.HashSet.ShardingHash = testHash(0x22)
	h.HashSet.TxSharingHash = testHash(0x33)
	h.HashSet.ReservedField[127] = 0xff
	h.CommitteeHash = testHash(0x44)
	return types.DSBlock{Header: h, CoSigs: testCoSigs(), BlockHash: DSBlockHeaderHash(&h)}
}

func testVCBlock(counter uint32) types.VCBlock {
	h := types.VCBlockHeader{
		VCDSEpochNo:                42,
		VCEpochNo:                  100,
		ViewChangeState:            2,
		CandidateLeaderIndex:       1,
		CandidateLeaderNetworkInfo: testPeer(7),
		CandidateLeaderPubKey:      testPubKey(7),
		VCCounter:                  counter,
		Timestamp:                  *uint256.NewInt(99),
	}
	return types.VCBlock{Header: h, CoSigs: testCoSigs(), BlockHash: VCBlockHeaderHash(&h)}
}

func testShards() types.DequeOfShard {
	return types.DequeOfShard{
		{
			{PubKey: testPubKey(10), Peer: testPeer(10), Reputation: 1},
			{PubKey: testPubKey(11), Peer: testPeer(11), Reputation: 2},
		},
		{
			{PubKey: testPubKey(20), Peer: testPeer(20), Reputation: 3},
		},
	}
}

func testAssignments() types.TxSharingAssignments {
	return types.TxSharingAssignments{
		DSReceivers:    []types.Peer{testPeer(1)},
		ShardReceivers: [][]types.Peer{{testPeer(10)}, {testPeer(20)}},
		ShardSenders:   [][]types.Peer{{testPeer(11)}, {testPeer(20)}},
	}
}

func TestDSBlockRoundTrip(t *testing.T) {
	blk := testDSBlock()
	buf, err := SetDSBlock(nil, 0, &blk)
	require.NoError(t, err)

	var got types.DSBlock
	require.NoError(t, GetDSBlock(buf, 0, &got))
	assert.Equal(t, blk, got)
	assert.True(t, blk.Header.Equal(got.Header))
}

func TestSetAtOffsetKeepsPrefix(t *testing.T) {
	blk := testDSBlock()
	prefix := []byte{0xaa, 0xbb}
	buf, err := SetDSBlockHeader(append([]byte(nil), prefix...), 2, &blk.Header)
	require.NoError(t, err)
	assert.Equal(t, prefix, buf[:2])

	var h types.DSBlockHeader
	require.NoError(t, GetDSBlockHeader(buf, 2, &h))
	assert.True(t, blk.Header.Equal(h))

	_, err = SetDSBlockHeader(nil, 5, &blk.Header)
	assert.ErrorIs(t, err, ErrEncode)
	assert.ErrorIs(t, GetDSBlockHeader(buf, len(buf)+1, &h), ErrDecode)
}

func TestShortHashFieldIsTruncatedCopy(t *testing.T) {
	blk := testDSBlock()
	short := make([]byte, 16)
	for i := range short {
		short[i] = byte(0xc0 + i)
	}
	// 手工拼一个 blockhash 只有 16 字节的区块
	var b []byte
	b = appendBytes(b, blkHeader, encodeDSBlockHeader(&blk.Header))
	b = appendBytes(b, blkCoSigs, encodeCoSigs(&blk.CoSigs))
	b = appendBytes(b, blkBlockHash, short)

	var got types.DSBlock
	require.NoError(t, GetDSBlock(b, 0, &got))
	assert.Equal(t, short, got.BlockHash[:16])
	assert.Equal(t, make([]byte, 16), got.BlockHash[16:])
}

func TestMissingRequiredFieldFailsDecode(t *testing.T) {
	blk := testDSBlock()
	var b []byte
	b = appendBytes(b, blkHeader, encodeDSBlockHeader(&blk.Header))
	b = appendBytes(b, blkCoSigs, encodeCoSigs(&blk.CoSigs))

	var got types.DSBlock
	assert.ErrorIs(t, GetDSBlock(b, 0, &got), ErrDecode)

	// 乱码
	assert.ErrorIs(t, GetDSBlock([]byte{0xff, 0xff, 0xff}, 0, &got), ErrDecode)
}

func TestWrongSizedPubKeyFailsDecode(t *testing.T) {
	var b []byte
	b = appendUint(b, vchDSEpochNo, 1)
	b = appendUint(b, vchEpochNo, 1)
	b = appendUint(b, vchViewChangeState, 1)
	b = appendUint(b, vchCandidateLeaderIndex, 0)
	b = appendByteArray(b, vchCandidateLeaderPeer, testPeer(1).Bytes())
	b = appendByteArray(b, vchCandidateLeaderKey, make([]byte, 33))
	b = appendUint(b, vchVCCounter, 1)
	b = appendByteArray(b, vchTimestamp, make([]byte, 32))
	b = appendBytes(b, vchCommitteeHash, make([]byte, 32))

	var h types.VCBlockHeader
	assert.ErrorIs(t, GetVCBlockHeader(b, 0, &h), ErrDecode)
}

func TestShortNumberReadsAsZero(t *testing.T) {
	vc := testVCBlock(1)
	var b []byte
	b = appendUint(b, vchDSEpochNo, vc.Header.VCDSEpochNo)
	b = appendUint(b, vchEpochNo, vc.Header.VCEpochNo)
	b = appendUint(b, vchViewChangeState, 2)
	b = appendUint(b, vchCandidateLeaderIndex, 1)
	b = appendByteArray(b, vchCandidateLeaderPeer, testPeer(7).Bytes())
	b = appendByteArray(b, vchCandidateLeaderKey, vc.Header.CandidateLeaderPubKey[:])
	b = appendUint(b, vchVCCounter, 1)
	b = appendByteArray(b, vchTimestamp, []byte{1, 2, 3})
	b = appendBytes(b, vchCommitteeHash, make([]byte, 32))

	var h types.VCBlockHeader
	require.NoError(t, GetVCBlockHeader(b, 0, &h))
	assert.True(t, h.Timestamp.IsZero())
}

func TestPackedBoolsAccepted(t *testing.T) {
	c := testCoSigs()
	var b []byte
	b = appendByteArray(b, csCS1, c.CS1[:])
	b = appendBytes(b, csB1, []byte{1, 0, 1, 1})
	b = appendByteArray(b, csCS2, c.CS2[:])
	b = appendBools(b, csB2, c.B2)

	var got types.CoSignatures
	require.NoError(t, decodeCoSigs(b, &got))
	assert.Equal(t, c, got)
}

func TestMicroBlockRoundTrip(t *testing.T) {
	h := types.MicroBlockHeader{
		Type: 1, Version: 2, ShardID: 3,
		GasLimit: *uint256.NewInt(1000), GasUsed: *uint256.NewInt(10),
		PrevHash: testHash(1), BlockNum: 77, Timestamp: *uint256.NewInt(5),
		NumTxs: 2, MinerPubKey: testPubKey(3), DSBlockNum: 42, DSBlockHeader: testHash(2),
	}
	h.HashSet.TxRootHash = testHash(3)
	h.HashSet.StateDeltaHash = testHash(4)
	h.HashSet.TranReceiptHash = testHash(5)
	h.CommitteeHash = testHash(6)
	blk := types.MicroBlock{
		Header:     h,
		TranHashes: []types.TxnHash{testHash(7), testHash(8)},
		CoSigs:     testCoSigs(),
		BlockHash:  MicroBlockHeaderHash(&h),
	}

	buf, err := SetMicroBlock(nil, 0, &blk)
	require.NoError(t, err)
	var got types.MicroBlock
	require.NoError(t, GetMicroBlock(buf, 0, &got))
	assert.Equal(t, blk, got)
}

func TestTxBlockRoundTrip(t *testing.T) {
	h := types.TxBlockHeader{
		Type: 1, Version: 1,
		GasLimit: *uint256.NewInt(1 << 40), GasUsed: *uint256.NewInt(3),
		PrevHash: testHash(9), BlockNum: 1001, Timestamp: *uint256.NewInt(8),
		NumTxs: 10, NumMicroBlockHashes: 2, MinerPubKey: testPubKey(4),
		DSBlockNum: 42, DSBlockHeader: testHash(10),
	}
	h.HashSet.StateRootHash = testHash(11)
	blk := types.TxBlock{
		Header:            h,
		IsMicroBlockEmpty: []bool{false, true},
		MicroBlockHashes: []types.MicroBlockHashSet{
			{TxRootHash: testHash(1)}, {StateDeltaHash: testHash(2)},
		},
		ShardIDs:  []uint32{0, 1},
		CoSigs:    testCoSigs(),
		BlockHash: TxBlockHeaderHash(&h),
	}

	buf, err := SetTxBlock(nil, 0, &blk)
	require.NoError(t, err)
	var got types.TxBlock
	require.NoError(t, GetTxBlock(buf, 0, &got))
	assert.Equal(t, blk, got)
}

func TestVCAndFallbackRoundTrip(t *testing.T) {
	vc := testVCBlock(3)
	buf, err := SetNodeVCBlock(nil, 0, &vc)
	require.NoError(t, err)
	var gotVC types.VCBlock
	require.NoError(t, GetNodeVCBlock(buf, 0, &gotVC))
	assert.Equal(t, vc, gotVC)

	fh := types.FallbackBlockHeader{
		FallbackDSEpochNo: 42, FallbackEpochNo: 101, FallbackState: 1,
		StateRootHash: testHash(5), LeaderConsensusID: 2, LeaderNetworkInfo: testPeer(3),
		LeaderPubKey: testPubKey(3), ShardID: 1, Timestamp: *uint256.NewInt(4),
	}
	fb := types.FallbackBlock{Header: fh, CoSigs: testCoSigs(), BlockHash: FallbackBlockHeaderHash(&fh)}
	buf, err = SetFallbackBlockWShardingStructure(nil, 0, &fb, testShards())
	require.NoError(t, err)
	var gotFB types.FallbackBlock
	shards, err := GetFallbackBlockWShardingStructure(buf, 0, &gotFB)
	require.NoError(t, err)
	assert.Equal(t, fb, gotFB)
	assert.Equal(t, testShards(), shards)
}

func TestShardingHashCoversReputation(t *testing.T) {
	a := GetShardingStructureHash(testShards())
	assert.Equal(t, a, GetShardingStructureHash(testShards()))

	changed := testShards()
	changed[0][1].Reputation++
	assert.NotEqual(t, a, GetShardingStructureHash(changed))

	// 分片哈希只看公钥
	assert.Equal(t, GetShardHash(testShards()[0]), GetShardHash(changed[0]))
}

func TestCommitteeHashOrderSensitive(t *testing.T) {
	m := []types.CommitteeMember{
		{PubKey: testPubKey(1), Peer: testPeer(1)},
		{PubKey: testPubKey(2), Peer: testPeer(2)},
	}
	h1 := GetDSCommitteeHash(m)
	m[0], m[1] = m[1], m[0]
	assert.NotEqual(t, h1, GetDSCommitteeHash(m))

	// peer 不参与
	m[0].Peer = testPeer(99)
	m[0], m[1] = m[1], m[0]
	assert.Equal(t, h1, GetDSCommitteeHash(m))
}

func TestTxSharingAssignmentsMismatchedLists(t *testing.T) {
	a := testAssignments()
	a.ShardSenders = a.ShardSenders[:1]
	_, err := GetTxSharingAssignmentsHash(&a)
	assert.ErrorIs(t, err, ErrEncode)

	good := testAssignments()
	buf, err := SetTxSharingAssignments(nil, 0, &good)
	require.NoError(t, err)
	var got types.TxSharingAssignments
	require.NoError(t, GetTxSharingAssignments(buf, 0, &got))
	assert.Equal(t, good, got)
}

func TestVCDSBlocksMessageRoundTrip(t *testing.T) {
	m := &VCDSBlocksMessage{
		ShardID:     1,
		DSBlock:     testDSBlock(),
		VCBlocks:    []types.VCBlock{testVCBlock(1), testVCBlock(2)},
		Shards:      testShards(),
		Assignments: testAssignments(),
	}
	buf, err := SetNodeVCDSBlocksMessage(NewFrame(MsgNode, uint8(InstrDSBlock)), FrameHeaderSize, m)
	require.NoError(t, err)

	typ, instr, err := ParseFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, MsgNode, typ)
	assert.Equal(t, uint8(InstrDSBlock), instr)

	got, err := GetNodeVCDSBlocksMessage(buf, FrameHeaderSize)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestFinalBlockAndMicroBlockSubmission(t *testing.T) {
	fm := &FinalBlockMessage{ShardID: 2, DSBlockNumber: 42, ConsensusID: 7, StateDelta: []byte("delta")}
	fm.TxBlock.CoSigs = testCoSigs()
	buf, err := SetNodeFinalBlock(nil, 0, fm)
	require.NoError(t, err)
	got, err := GetNodeFinalBlock(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, fm, got)

	sub := &MicroBlockSubmission{MicroBlockType: 1, BlockNumber: 9}
	buf, err = SetDSMicroBlockSubmission(nil, 0, sub)
	require.NoError(t, err)
	gotSub, err := GetDSMicroBlockSubmission(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, sub, gotSub)
	assert.Nil(t, gotSub.StateDelta)
}

func TestPoWSubmissionSignature(t *testing.T) {
	kp, err := utils.KeyPairFromSeed([]byte("miner"))
	require.NoError(t, err)
	p := &PoWSubmission{
		BlockNumber: 43, DifficultyLevel: 5, SubmitterPeer: testPeer(5),
		Nonce: 12345, ResultingHash: "abcd", MixHash: "ef01",
	}
	buf, err := SetDSPoWSubmission(nil, 0, p, kp)
	require.NoError(t, err)

	got, err := GetDSPoWSubmission(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// 改 nonce 后签名失效
	other := *p
	other.Nonce++
	var tampered []byte
	tampered = appendBytes(tampered, 1, encodePoWData(&other))
	tampered = appendByteArray(tampered, 2, p.Signature[:])
	_, err = GetDSPoWSubmission(tampered, 0)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestBlockLinkRoundTrip(t *testing.T) {
	l := types.BlockLink{Index: 5, DSIndex: 3, Type: types.BlockTypeVC, Hash: testHash(0x5a)}
	buf, err := SetBlockLink(nil, 0, l)
	require.NoError(t, err)
	got, err := GetBlockLink(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, l, got)
}

func TestHeaderHashChangesWithContent(t *testing.T) {
	blk := testDSBlock()
	h2 := blk.Header.Clone()
	h2.BlockNum++
	assert.NotEqual(t, DSBlockHeaderHash(&blk.Header), DSBlockHeaderHash(&h2))
	assert.Equal(t, DSBlockHeaderHash(&blk.Header), blk.BlockHash)
}

func TestNarrowIntegerOverflowRejected(t *testing.T) {
	blk := testDSBlock()
	enc, err := SetDSBlockHeader(nil, 0, &blk.Header)
	require.NoError(t, err)

	// 后出现的同号字段覆盖前面的值
	var h types.DSBlockHeader
	require.NoError(t, GetDSBlockHeader(appendUint(append([]byte(nil), enc...), dshDifficulty, 255), 0, &h))
	assert.Equal(t, uint8(255), h.Difficulty)

	err = GetDSBlockHeader(appendUint(append([]byte(nil), enc...), dshDSDifficulty, 300), 0, &h)
	assert.ErrorIs(t, err, ErrDecode)
	err = GetDSBlockHeader(appendUint(append([]byte(nil), enc...), dshDifficulty, 256), 0, &h)
	assert.ErrorIs(t, err, ErrDecode)

	ci := &ConsensusInfo{ConsensusID: 3, BlockNumber: 9, BlockHash: []byte{1}, NodeID: 0xffff}
	got, err := DecodeAnnouncementInfo(EncodeAnnouncementInfo(ci))
	require.NoError(t, err)
	assert.Equal(t, ci, got)

	_, err = DecodeAnnouncementInfo(appendUint(EncodeAnnouncementInfo(ci), ciNodeID, 0x10000))
	assert.ErrorIs(t, err, ErrDecode)
	_, err = DecodeAnnouncementInfo(appendUint(EncodeAnnouncementInfo(ci), ciConsensusID, 1<<32))
	assert.ErrorIs(t, err, ErrDecode)
}
