package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// bn256 上的 BLS：公钥是 G2 点，签名是 G1 点
const (
	PubKeySize      = 128
	PrivKeySize     = 32
	SignatureSize   = 64
	CommitPointSize = 33
	ChallengeSize   = 32
	ResponseSize    = 32
)

type PubKey [PubKeySize]byte

type PrivKey [PrivKeySize]byte

type Signature [SignatureSize]byte

// 两轮共识里传输的不透明字段
type (
	CommitPoint [CommitPointSize]byte
	Challenge   [ChallengeSize]byte
	Response    [ResponseSize]byte
)

// KeyPair 节点自己的密钥
type KeyPair struct {
	Priv PrivKey
	Pub  PubKey
}

func (k PubKey) Hex() string { return hex.EncodeToString(k[:]) }

func (k PubKey) String() string { return k.Hex() }

func (k PubKey) Compare(o PubKey) int { return bytes.Compare(k[:], o[:]) }

func (k PubKey) IsZero() bool { return k == PubKey{} }

func (s Signature) Hex() string { return hex.EncodeToString(s[:]) }

func (s Signature) IsZero() bool { return s == Signature{} }

func PubKeyFromBytes(b []byte) (PubKey, error) {
	var k PubKey
	err := fixedFromBytes(k[:], b, "pubkey")
	return k, err
}

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	err := fixedFromBytes(s[:], b, "signature")
	return s, err
}

func CommitPointFromBytes(b []byte) (CommitPoint, error) {
	var c CommitPoint
	err := fixedFromBytes(c[:], b, "commit point")
	return c, err
}

func ChallengeFromBytes(b []byte) (Challenge, error) {
	var c Challenge
	err := fixedFromBytes(c[:], b, "challenge")
	return c, err
}

func ResponseFromBytes(b []byte) (Response, error) {
	var r Response
	err := fixedFromBytes(r[:], b, "response")
	return r, err
}

// 序列化对象要求长度完全一致，和哈希字段的截断策略不同
func fixedFromBytes(dst, src []byte, what string) error {
	if len(src) != len(dst) {
		return fmt.Errorf("%s: want %d bytes, got %d", what, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}
