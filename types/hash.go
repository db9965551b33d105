package types

import (
	"bytes"
	"encoding/hex"
)

const HashSize = 32

// Hash 固定 32 字节，所有区块/委员会/分片哈希都用它
type Hash [HashSize]byte

type (
	BlockHash     = Hash
	CommitteeHash = Hash
	ShardingHash  = Hash
	TxSharingHash = Hash
	TxnHash       = Hash
	StateHash     = Hash
)

func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) Compare(o Hash) int { return bytes.Compare(h[:], o[:]) }

// SetBytes 按 min(len(src), 32) 拷贝，剩余部分补零
func (h *Hash) SetBytes(src []byte) {
	CopyTruncated(h[:], src)
}

// HashFromBytes 同 SetBytes，短输入不会报错
func HashFromBytes(src []byte) Hash {
	var h Hash
	h.SetBytes(src)
	return h
}

// Last16Bits 取哈希最后两个字节（大端），用于 leader 选择
func (h Hash) Last16Bits() uint16 {
	return uint16(h[HashSize-2])<<8 | uint16(h[HashSize-1])
}

// CopyTruncated 把 src 拷到定长 dst，只拷 min(len(src), len(dst))，其余清零。
// 返回实际拷贝的字节数。
func CopyTruncated(dst, src []byte) int {
	n := copy(dst, src)
	clear(dst[n:])
	return n
}
