package wire

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

var (
	// ErrDecode 字节流无法解析，或缺少必填字段
	ErrDecode = errors.New("wire: decode failed")
	// ErrEncode 缺少必填子结构，或写入位置越界
	ErrEncode = errors.New("wire: encode failed")
)

const uint256Size = 32

// ByteArray{data=1} 包装字段号
const byteArrayData protowire.Number = 1

// ===================== 编码 =====================

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendBools 非 packed 编码（proto2 默认）
func appendBools(b []byte, num protowire.Number, vs []bool) []byte {
	for _, v := range vs {
		b = appendUint(b, num, protowire.EncodeBool(v))
	}
	return b
}

func appendUint32s(b []byte, num protowire.Number, vs []uint32) []byte {
	for _, v := range vs {
		b = appendUint(b, num, uint64(v))
	}
	return b
}

func appendByteArray(b []byte, num protowire.Number, data []byte) []byte {
	return appendBytes(b, num, appendBytes(nil, byteArrayData, data))
}

func appendNumber(b []byte, num protowire.Number, v *uint256.Int) []byte {
	raw := v.Bytes32()
	return appendByteArray(b, num, raw[:])
}

// place 把 enc 写到 dst[offset:]，长度不够时扩容，之后的字节保持不动
func place(dst []byte, offset int, enc []byte) ([]byte, error) {
	if offset < 0 || offset > len(dst) {
		return dst, fmt.Errorf("%w: offset %d beyond buffer of %d bytes", ErrEncode, offset, len(dst))
	}
	if need := offset + len(enc); need > len(dst) {
		dst = append(dst, make([]byte, need-len(dst))...)
	}
	copy(dst[offset:], enc)
	return dst, nil
}

// ===================== 解码 =====================

type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

// fieldSet 记录出现过的字段号（本文件内字段号都小于 64）
type fieldSet uint64

func (s fieldSet) has(n protowire.Number) bool { return n < 64 && s&(1<<uint(n)) != 0 }

func (s fieldSet) require(msg string, nums ...protowire.Number) error {
	for _, n := range nums {
		if !s.has(n) {
			return fmt.Errorf("%w: %s missing required field %d", ErrDecode, msg, n)
		}
	}
	return nil
}

// walk 逐个字段回调；未知字段和非 varint/bytes 类型跳过
func walk(src []byte, fn func(f field) error) (fieldSet, error) {
	var seen fieldSet
	for len(src) > 0 {
		num, typ, n := protowire.ConsumeTag(src)
		if n < 0 {
			return seen, fmt.Errorf("%w: %v", ErrDecode, protowire.ParseError(n))
		}
		src = src[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(src)
			if m < 0 {
				return seen, fmt.Errorf("%w: field %d: %v", ErrDecode, num, protowire.ParseError(m))
			}
			f.u, n = v, m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(src)
			if m < 0 {
				return seen, fmt.Errorf("%w: field %d: %v", ErrDecode, num, protowire.ParseError(m))
			}
			f.b, n = v, m
		default:
			m := protowire.ConsumeFieldValue(num, typ, src)
			if m < 0 {
				return seen, fmt.Errorf("%w: field %d: %v", ErrDecode, num, protowire.ParseError(m))
			}
			src = src[m:]
			continue
		}
		src = src[n:]
		if num < 64 {
			seen |= 1 << uint(num)
		}
		if err := fn(f); err != nil {
			return seen, err
		}
	}
	return seen, nil
}

func (f field) uint() (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, fmt.Errorf("%w: field %d: expected varint, got wire type %d", ErrDecode, f.num, f.typ)
	}
	return f.u, nil
}

// uintN 值超出 bits 位时报错，不截断
func (f field) uintN(bits uint) (uint64, error) {
	v, err := f.uint()
	if err != nil {
		return 0, err
	}
	if v>>bits != 0 {
		return 0, fmt.Errorf("%w: field %d: value %d overflows uint%d", ErrDecode, f.num, v, bits)
	}
	return v, nil
}

func (f field) bytes() ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("%w: field %d: expected bytes, got wire type %d", ErrDecode, f.num, f.typ)
	}
	return f.b, nil
}

// bools 同时接受 packed 与非 packed
func (f field) bools(dst []bool) ([]bool, error) {
	vals, err := f.varints()
	if err != nil {
		return dst, err
	}
	for _, v := range vals {
		dst = append(dst, protowire.DecodeBool(v))
	}
	return dst, nil
}

func (f field) uint32s(dst []uint32) ([]uint32, error) {
	vals, err := f.varints()
	if err != nil {
		return dst, err
	}
	for _, v := range vals {
		if v>>32 != 0 {
			return dst, fmt.Errorf("%w: field %d: value %d overflows uint32", ErrDecode, f.num, v)
		}
		dst = append(dst, uint32(v))
	}
	return dst, nil
}

func (f field) varints() ([]uint64, error) {
	switch f.typ {
	case protowire.VarintType:
		return []uint64{f.u}, nil
	case protowire.BytesType:
		var out []uint64
		b := f.b
		for len(b) > 0 {
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: packed field %d: %v", ErrDecode, f.num, protowire.ParseError(n))
			}
			out = append(out, v)
			b = b[n:]
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: field %d: unexpected wire type %d", ErrDecode, f.num, f.typ)
}

// byteArray 解开 ByteArray{data}
func (f field) byteArray() ([]byte, error) {
	raw, err := f.bytes()
	if err != nil {
		return nil, err
	}
	return decodeByteArray(raw)
}

func decodeByteArray(raw []byte) ([]byte, error) {
	var data []byte
	seen, err := walk(raw, func(g field) error {
		if g.num != byteArrayData {
			return nil
		}
		v, err := g.bytes()
		data = v
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("ByteArray", byteArrayData); err != nil {
		return nil, err
	}
	return data, nil
}

// hashInto 截断拷贝：min(len(src), 32) 字节，其余补零
func (f field) hashInto(h *types.Hash) error {
	raw, err := f.bytes()
	if err != nil {
		return err
	}
	h.SetBytes(raw)
	return nil
}

// number 256 位大端；长度不足时按 0 处理
func (f field) number(dst *uint256.Int) error {
	raw, err := f.byteArray()
	if err != nil {
		return err
	}
	if len(raw) < uint256Size {
		dst.Clear()
		return nil
	}
	dst.SetBytes32(raw[:uint256Size])
	return nil
}

func (f field) pubKey(dst *types.PubKey) error {
	raw, err := f.byteArray()
	if err != nil {
		return err
	}
	k, err := types.PubKeyFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	*dst = k
	return nil
}

func (f field) signature(dst *types.Signature) error {
	raw, err := f.byteArray()
	if err != nil {
		return err
	}
	s, err := types.SignatureFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	*dst = s
	return nil
}

func (f field) peer(dst *types.Peer) error {
	raw, err := f.byteArray()
	if err != nil {
		return err
	}
	p, err := types.PeerFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	*dst = p
	return nil
}

func (f field) swInfo(dst *types.SWInfo) error {
	raw, err := f.byteArray()
	if err != nil {
		return err
	}
	s, err := types.SWInfoFromBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	*dst = s
	return nil
}

func sliceFrom(src []byte, offset int) ([]byte, error) {
	if offset < 0 || offset > len(src) {
		return nil, fmt.Errorf("%w: offset %d beyond buffer of %d bytes", ErrDecode, offset, len(src))
	}
	return src[offset:], nil
}
