package utils

import (
	"encoding/binary"
	"fmt"
)

// 位图序列化格式：2 字节大端位数 + 按位打包（高位在前）

func BitVectorLengthInBytes(bits int) int {
	return (bits + 7) / 8
}

func BitVectorSerializedSize(bits int) int {
	return 2 + BitVectorLengthInBytes(bits)
}

// AppendBitVector 把位图追加到 dst 末尾
func AppendBitVector(dst []byte, bits []bool) []byte {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(bits)))
	dst = append(dst, hdr[:]...)
	packed := make([]byte, BitVectorLengthInBytes(len(bits)))
	for i, b := range bits {
		if b {
			packed[i/8] |= 0x80 >> (i % 8)
		}
	}
	return append(dst, packed...)
}

// GetBitVector 从 src[offset:] 解析位图
func GetBitVector(src []byte, offset int) ([]bool, error) {
	if offset < 0 || len(src) < offset+2 {
		return nil, fmt.Errorf("bitvector: buffer too short for header")
	}
	n := int(binary.BigEndian.Uint16(src[offset:]))
	body := src[offset+2:]
	if len(body) < BitVectorLengthInBytes(n) {
		return nil, fmt.Errorf("bitvector: need %d bytes, have %d", BitVectorLengthInBytes(n), len(body))
	}
	out := make([]bool, n)
	for i := range out {
		out[i] = body[i/8]&(0x80>>(i%8)) != 0
	}
	return out, nil
}
