package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardchain/types"
)

func TestSignAndVerify(t *testing.T) {
	kp, err := KeyPairFromSeed([]byte("node-1"))
	require.NoError(t, err)

	msg := []byte("ds block header")
	sig, err := Sign(msg, kp.Priv)
	require.NoError(t, err)
	assert.True(t, Verify(msg, sig, kp.Pub))

	// 改一个字节就验不过
	assert.False(t, Verify([]byte("ds block headeR"), sig, kp.Pub))

	other, err := KeyPairFromSeed([]byte("node-2"))
	require.NoError(t, err)
	assert.False(t, Verify(msg, sig, other.Pub))
}

func TestKeyPairFromSeedDeterministic(t *testing.T) {
	a, err := KeyPairFromSeed([]byte("seed"))
	require.NoError(t, err)
	b, err := KeyPairFromSeed([]byte("seed"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSignWithCacheHit(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("announcement")
	sig1, err := SignWithCache(msg, kp)
	require.NoError(t, err)
	sig2, err := SignWithCache(msg, kp)
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)
	assert.True(t, Verify(msg, sig1, kp.Pub))
}

func TestAggregateVerify(t *testing.T) {
	msg := []byte("cosign me")
	var pubs []types.PubKey
	var sigs []types.Signature
	for _, seed := range []string{"a", "b", "c"} {
		kp, err := KeyPairFromSeed([]byte(seed))
		require.NoError(t, err)
		sig, err := Sign(msg, kp.Priv)
		require.NoError(t, err)
		pubs = append(pubs, kp.Pub)
		sigs = append(sigs, sig)
	}

	aggPub, err := AggregatePubKeys(pubs)
	require.NoError(t, err)
	aggSig, err := AggregateSignatures(sigs)
	require.NoError(t, err)
	assert.True(t, Verify(msg, aggSig, aggPub))

	// 少一个签名者
	partial, err := AggregatePubKeys(pubs[:2])
	require.NoError(t, err)
	assert.False(t, Verify(msg, aggSig, partial))

	_, err = AggregatePubKeys(nil)
	assert.ErrorIs(t, err, ErrEmptyKeySet)
}

func TestVerifyRejectsGarbageKey(t *testing.T) {
	var pub types.PubKey
	for i := range pub {
		pub[i] = 0xff
	}
	assert.False(t, Verify([]byte("x"), types.Signature{}, pub))
}

func TestBitVector(t *testing.T) {
	bits := []bool{true, false, true, true, false, false, false, false, true}
	buf := AppendBitVector([]byte{0xee}, bits)
	// 2 字节长度 + 2 字节位图
	require.Len(t, buf, 1+BitVectorSerializedSize(len(bits)))
	assert.Equal(t, []byte{0xee, 0x00, 0x09, 0xb0, 0x80}, buf)

	got, err := GetBitVector(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, bits, got)

	_, err = GetBitVector(buf[:3], 1)
	assert.Error(t, err)
}

func TestSha256HashParts(t *testing.T) {
	assert.Equal(t, Sha256Hash([]byte("abc")), Sha256Hash([]byte("a"), []byte("bc")))
	h := Sha256Fixed([]byte("abc"))
	assert.Equal(t, Sha256Hash([]byte("abc")), h[:])
}
