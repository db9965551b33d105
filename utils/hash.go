package utils

import (
	"crypto/sha256"

	"shardchain/types"
)

// Sha256Hash 依次写入多段数据后取 sha256
func Sha256Hash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// Sha256Fixed 同 Sha256Hash，直接返回定长哈希
func Sha256Fixed(parts ...[]byte) types.Hash {
	return types.HashFromBytes(Sha256Hash(parts...))
}
