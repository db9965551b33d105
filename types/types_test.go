package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pk(b byte) PubKey {
	var k PubKey
	k[0] = b
	return k
}

func member(b byte) CommitteeMember {
	return CommitteeMember{PubKey: pk(b), Peer: Peer{ListenPortHost: uint32(b)}}
}

func TestHashSetBytesTruncates(t *testing.T) {
	src := make([]byte, 16)
	for i := range src {
		src[i] = byte(i + 1)
	}
	h := HashFromBytes(src)
	assert.Equal(t, src, h[:16])
	assert.Equal(t, make([]byte, 16), h[16:])

	// 长输入只取前 32 字节
	long := make([]byte, 40)
	long[31] = 0xaa
	long[39] = 0xbb
	h = HashFromBytes(long)
	assert.Equal(t, byte(0xaa), h[31])
}

func TestHashLast16Bits(t *testing.T) {
	var h Hash
	h[30], h[31] = 0x12, 0x34
	assert.Equal(t, uint16(0x1234), h.Last16Bits())
}

func TestDSBlockHeaderOrderingByBlockNum(t *testing.T) {
	a := DSBlockHeader{BlockNum: 9}
	b := DSBlockHeader{BlockNum: 10}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.False(t, a.Less(a))

	blkA, blkB := &DSBlock{Header: a}, &DSBlock{Header: b}
	assert.True(t, blkB.Greater(blkA))
	assert.False(t, blkA.Greater(blkA))
}

func TestDSBlockEqualIgnoresCoSigs(t *testing.T) {
	h := DSBlockHeader{BlockNum: 3, Timestamp: *uint256.NewInt(42)}
	a := &DSBlock{Header: h, CoSigs: CoSignatures{B1: []bool{true}}}
	b := &DSBlock{Header: h.Clone(), BlockHash: Hash{1}}
	assert.True(t, a.Equal(b))
}

func TestMicroAndVCHeaderLessRule(t *testing.T) {
	a := MicroBlockHeader{ShardID: 1, BlockNum: 5}
	b := MicroBlockHeader{ShardID: 1, BlockNum: 6}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))

	// committeeHash 不参与 micro block 相等性
	c := a
	c.CommitteeHash[0] = 1
	assert.True(t, a.Equal(c))

	v1 := VCBlockHeader{VCDSEpochNo: 2, VCCounter: 1}
	v2 := VCBlockHeader{VCDSEpochNo: 2, VCCounter: 2}
	assert.True(t, v1.Less(v2))
	assert.False(t, v2.Less(v1))
}

func TestDSPoWWinnersSorted(t *testing.T) {
	w := NewDSPoWWinners(
		PoWWinner{PubKey: pk(3), Peer: Peer{ListenPortHost: 3}},
		PoWWinner{PubKey: pk(1), Peer: Peer{ListenPortHost: 1}},
	)
	w.Set(pk(2), Peer{ListenPortHost: 2})
	w.Set(pk(1), Peer{ListenPortHost: 11})

	entries := w.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, pk(1), entries[0].PubKey)
	assert.Equal(t, uint32(11), entries[0].Peer.ListenPortHost)
	assert.Equal(t, pk(3), entries[2].PubKey)

	p, ok := w.Get(pk(2))
	require.True(t, ok)
	assert.Equal(t, uint32(2), p.ListenPortHost)
	_, ok = w.Get(pk(9))
	assert.False(t, ok)
}

func TestCommitteeRotate(t *testing.T) {
	c, err := NewCommittee(4, []CommitteeMember{member('A'), member('B'), member('C'), member('D')})
	require.NoError(t, err)

	require.NoError(t, c.Rotate([]CommitteeMember{member('E')}))
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []PubKey{pk('E'), pk('A'), pk('B'), pk('C')}, c.PubKeys())
}

func TestCommitteeRotateMultipleWinners(t *testing.T) {
	c, err := NewCommittee(4, []CommitteeMember{member('A'), member('B'), member('C'), member('D')})
	require.NoError(t, err)

	require.NoError(t, c.Rotate([]CommitteeMember{member('E'), member('F')}))
	// 最后一个 winner 在队头，尾部两个被移除
	assert.Equal(t, []PubKey{pk('F'), pk('E'), pk('A'), pk('B')}, c.PubKeys())

	err = c.Rotate(make([]CommitteeMember, 5))
	assert.ErrorIs(t, err, ErrCommitteeOverflow)
}

func TestCommitteeRotateLeaderToTail(t *testing.T) {
	c, err := NewCommittee(4, []CommitteeMember{member('A'), member('B'), member('C'), member('D')})
	require.NoError(t, err)

	c.RotateLeaderToTail(1)
	assert.Equal(t, []PubKey{pk('B'), pk('C'), pk('D'), pk('A')}, c.PubKeys())
	c.RotateLeaderToTail(6)
	assert.Equal(t, []PubKey{pk('D'), pk('A'), pk('B'), pk('C')}, c.PubKeys())
	assert.Equal(t, 2, c.Index(pk('B')))
	assert.Equal(t, -1, c.Index(pk('Z')))
}

func TestPeerBytesRoundTrip(t *testing.T) {
	p := Peer{ListenPortHost: 33133}
	p.IPAddress[15] = 7
	got, err := PeerFromBytes(p.Bytes())
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = PeerFromBytes([]byte{1, 2})
	assert.Error(t, err)
}

func TestSWInfoBytesRoundTrip(t *testing.T) {
	s := SWInfo{Major: 1, Minor: 2, Fix: 3, UpgradeDS: 99, Commit: 0xdeadbeef}
	got, err := SWInfoFromBytes(s.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s, got)
}
