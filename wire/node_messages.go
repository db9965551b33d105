package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/logs"
	"shardchain/types"
	"shardchain/utils"
)

// VCDSBlocksMessage DS 委员会下发给分片节点的新 DS 区块，附带这一轮的 VC 区块
type VCDSBlocksMessage struct {
	ShardID     uint32
	DSBlock     types.DSBlock
	VCBlocks    []types.VCBlock
	Shards      types.DequeOfShard
	Assignments types.TxSharingAssignments
}

// NodeDSBlock
const (
	ndsShardID     protowire.Number = 1
	ndsDSBlock     protowire.Number = 2
	ndsVCBlocks    protowire.Number = 3
	ndsSharding    protowire.Number = 4
	ndsAssignments protowire.Number = 5
)

func SetNodeVCDSBlocksMessage(dst []byte, offset int, m *VCDSBlocksMessage) ([]byte, error) {
	if m == nil {
		return dst, fmt.Errorf("%w: nil VCDSBlocksMessage", ErrEncode)
	}
	assignments, err := encodeTxSharingAssignments(&m.Assignments)
	if err != nil {
		return dst, err
	}
	var b []byte
	b = appendUint(b, ndsShardID, uint64(m.ShardID))
	b = appendBytes(b, ndsDSBlock, encodeDSBlock(&m.DSBlock))
	for i := range m.VCBlocks {
		b = appendBytes(b, ndsVCBlocks, encodeVCBlock(&m.VCBlocks[i]))
	}
	b = appendBytes(b, ndsSharding, encodeShardingStructure(m.Shards))
	b = appendBytes(b, ndsAssignments, assignments)
	return place(dst, offset, b)
}

func GetNodeVCDSBlocksMessage(src []byte, offset int) (*VCDSBlocksMessage, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	m := &VCDSBlocksMessage{}
	seen, err := walk(b, func(f field) error {
		var (
			v   uint64
			raw []byte
			err error
		)
		switch f.num {
		case ndsShardID:
			v, err = f.uintN(32)
			m.ShardID = uint32(v)
			return err
		case ndsDSBlock, ndsVCBlocks, ndsSharding, ndsAssignments:
			if raw, err = f.bytes(); err != nil {
				return err
			}
		default:
			return nil
		}
		switch f.num {
		case ndsDSBlock:
			return decodeDSBlock(raw, &m.DSBlock)
		case ndsVCBlocks:
			var vc types.VCBlock
			if err := decodeVCBlock(raw, &vc); err != nil {
				return err
			}
			m.VCBlocks = append(m.VCBlocks, vc)
		case ndsSharding:
			m.Shards, err = decodeShardingStructure(raw)
			return err
		case ndsAssignments:
			return decodeTxSharingAssignments(raw, &m.Assignments)
		}
		return nil
	})
	if err != nil {
		logs.Warn("NodeDSBlock decode failed: %v", err)
		return nil, err
	}
	if err := seen.require("NodeDSBlock", ndsShardID, ndsDSBlock, ndsSharding, ndsAssignments); err != nil {
		logs.Warn("NodeDSBlock initialization failed: %v", err)
		return nil, err
	}
	return m, nil
}

func SetNodeVCBlock(dst []byte, offset int, blk *types.VCBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil VCBlock", ErrEncode)
	}
	return place(dst, offset, appendBytes(nil, 1, encodeVCBlock(blk)))
}

func GetNodeVCBlock(src []byte, offset int, blk *types.VCBlock) error {
	return getWrapped(src, offset, "NodeVCBlock", func(raw []byte) error {
		return decodeVCBlock(raw, blk)
	})
}

func SetNodeFallbackBlock(dst []byte, offset int, blk *types.FallbackBlock) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil FallbackBlock", ErrEncode)
	}
	return place(dst, offset, appendBytes(nil, 1, encodeFallbackBlock(blk)))
}

func GetNodeFallbackBlock(src []byte, offset int, blk *types.FallbackBlock) error {
	return getWrapped(src, offset, "NodeFallbackBlock", func(raw []byte) error {
		return decodeFallbackBlock(raw, blk)
	})
}

// getWrapped 解析只有一个必填子消息（字段 1）的外层消息
func getWrapped(src []byte, offset int, name string, inner func([]byte) error) error {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return err
	}
	if err := decodeSingle(b, name, inner); err != nil {
		logs.Warn("%s decode failed: %v", name, err)
		return err
	}
	return nil
}

// FallbackBlockWShardingStructure 落盘格式：fallback 区块连同当时的分片结构
func SetFallbackBlockWShardingStructure(dst []byte, offset int, blk *types.FallbackBlock, shards types.DequeOfShard) ([]byte, error) {
	if blk == nil {
		return dst, fmt.Errorf("%w: nil FallbackBlock", ErrEncode)
	}
	var b []byte
	b = appendBytes(b, 1, encodeFallbackBlock(blk))
	b = appendBytes(b, 2, encodeShardingStructure(shards))
	return place(dst, offset, b)
}

func GetFallbackBlockWShardingStructure(src []byte, offset int, blk *types.FallbackBlock) (types.DequeOfShard, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	var shards types.DequeOfShard
	seen, err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			return decodeFallbackBlock(raw, blk)
		case 2:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			shards, err = decodeShardingStructure(raw)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("FallbackBlockWShardingStructure", 1, 2); err != nil {
		return nil, err
	}
	return shards, nil
}

// FinalBlockMessage DS 委员会广播的 Tx 区块
type FinalBlockMessage struct {
	ShardID       uint32
	DSBlockNumber uint64
	ConsensusID   uint32
	TxBlock       types.TxBlock
	StateDelta    []byte
}

func SetNodeFinalBlock(dst []byte, offset int, m *FinalBlockMessage) ([]byte, error) {
	if m == nil {
		return dst, fmt.Errorf("%w: nil FinalBlockMessage", ErrEncode)
	}
	var b []byte
	b = appendUint(b, 1, uint64(m.ShardID))
	b = appendUint(b, 2, m.DSBlockNumber)
	b = appendUint(b, 3, uint64(m.ConsensusID))
	b = appendBytes(b, 4, encodeTxBlock(&m.TxBlock))
	b = appendBytes(b, 5, m.StateDelta)
	return place(dst, offset, b)
}

func GetNodeFinalBlock(src []byte, offset int) (*FinalBlockMessage, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	m := &FinalBlockMessage{}
	seen, err := walk(b, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case 1:
			v, err = f.uintN(32)
			m.ShardID = uint32(v)
		case 2:
			m.DSBlockNumber, err = f.uint()
		case 3:
			v, err = f.uintN(32)
			m.ConsensusID = uint32(v)
		case 4:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				err = decodeTxBlock(raw, &m.TxBlock)
			}
		case 5:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				m.StateDelta = append([]byte(nil), raw...)
			}
		}
		return err
	})
	if err != nil {
		logs.Warn("NodeFinalBlock decode failed: %v", err)
		return nil, err
	}
	if err := seen.require("NodeFinalBlock", 1, 2, 3, 4, 5); err != nil {
		return nil, err
	}
	return m, nil
}

// PoWSubmission 候选 DS 成员提交的 PoW 结果
type PoWSubmission struct {
	BlockNumber     uint64
	DifficultyLevel uint8
	SubmitterPeer   types.Peer
	SubmitterPubKey types.PubKey
	Nonce           uint64
	ResultingHash   string
	MixHash         string
	Signature       types.Signature
}

func encodePoWData(p *PoWSubmission) []byte {
	var b []byte
	b = appendUint(b, 1, p.BlockNumber)
	b = appendUint(b, 2, uint64(p.DifficultyLevel))
	b = appendByteArray(b, 3, p.SubmitterPeer.Bytes())
	b = appendByteArray(b, 4, p.SubmitterPubKey[:])
	b = appendUint(b, 5, p.Nonce)
	b = appendBytes(b, 6, []byte(p.ResultingHash))
	b = appendBytes(b, 7, []byte(p.MixHash))
	return b
}

// SetDSPoWSubmission 用提交者私钥对 data 部分签名；p.Signature 被覆盖
func SetDSPoWSubmission(dst []byte, offset int, p *PoWSubmission, key types.KeyPair) ([]byte, error) {
	if p == nil {
		return dst, fmt.Errorf("%w: nil PoWSubmission", ErrEncode)
	}
	p.SubmitterPubKey = key.Pub
	data := encodePoWData(p)
	sig, err := utils.Sign(data, key.Priv)
	if err != nil {
		logs.Warn("Failed to sign PoW: %v", err)
		return dst, fmt.Errorf("%w: sign pow: %v", ErrEncode, err)
	}
	p.Signature = sig
	var b []byte
	b = appendBytes(b, 1, data)
	b = appendByteArray(b, 2, sig[:])
	return place(dst, offset, b)
}

// GetDSPoWSubmission 解码并校验提交者签名
func GetDSPoWSubmission(src []byte, offset int) (*PoWSubmission, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	p := &PoWSubmission{}
	var data []byte
	seen, err := walk(b, func(f field) error {
		switch f.num {
		case 1:
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			data = raw
			return decodePoWData(raw, p)
		case 2:
			return f.signature(&p.Signature)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("DSPoWSubmission", 1, 2); err != nil {
		return nil, err
	}
	// 按收到的原始 data 字节验签
	if !utils.Verify(data, p.Signature, p.SubmitterPubKey) {
		logs.Warn("PoW submission signature wrong.")
		return nil, fmt.Errorf("%w: pow submission signature", ErrDecode)
	}
	return p, nil
}

func decodePoWData(src []byte, p *PoWSubmission) error {
	seen, err := walk(src, func(f field) error {
		var (
			v   uint64
			raw []byte
			err error
		)
		switch f.num {
		case 1:
			p.BlockNumber, err = f.uint()
		case 2:
			v, err = f.uintN(8)
			p.DifficultyLevel = uint8(v)
		case 3:
			err = f.peer(&p.SubmitterPeer)
		case 4:
			err = f.pubKey(&p.SubmitterPubKey)
		case 5:
			p.Nonce, err = f.uint()
		case 6:
			raw, err = f.bytes()
			p.ResultingHash = string(raw)
		case 7:
			raw, err = f.bytes()
			p.MixHash = string(raw)
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require("DSPoWSubmission.Data", 1, 2, 3, 4, 5, 6, 7)
}

// MicroBlockSubmission 分片把 micro block 交给 DS 委员会
type MicroBlockSubmission struct {
	MicroBlockType uint8
	BlockNumber    uint64
	MicroBlocks    []types.MicroBlock
	StateDelta     []byte
}

func SetDSMicroBlockSubmission(dst []byte, offset int, m *MicroBlockSubmission) ([]byte, error) {
	if m == nil {
		return dst, fmt.Errorf("%w: nil MicroBlockSubmission", ErrEncode)
	}
	var b []byte
	b = appendUint(b, 1, uint64(m.MicroBlockType))
	b = appendUint(b, 2, m.BlockNumber)
	for i := range m.MicroBlocks {
		b = appendBytes(b, 3, encodeMicroBlock(&m.MicroBlocks[i]))
	}
	// statedelta 可选，空时不写
	if len(m.StateDelta) > 0 {
		b = appendBytes(b, 4, m.StateDelta)
	}
	return place(dst, offset, b)
}

func GetDSMicroBlockSubmission(src []byte, offset int) (*MicroBlockSubmission, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	m := &MicroBlockSubmission{}
	seen, err := walk(b, func(f field) error {
		var (
			v   uint64
			raw []byte
			err error
		)
		switch f.num {
		case 1:
			v, err = f.uintN(8)
			m.MicroBlockType = uint8(v)
		case 2:
			m.BlockNumber, err = f.uint()
		case 3:
			if raw, err = f.bytes(); err == nil {
				var mb types.MicroBlock
				if err = decodeMicroBlock(raw, &mb); err == nil {
					m.MicroBlocks = append(m.MicroBlocks, mb)
				}
			}
		case 4:
			if raw, err = f.bytes(); err == nil {
				m.StateDelta = append([]byte(nil), raw...)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("DSMicroBlockSubmission", 1, 2); err != nil {
		return nil, err
	}
	return m, nil
}

// ProtoBlockLink
func SetBlockLink(dst []byte, offset int, l types.BlockLink) ([]byte, error) {
	var b []byte
	b = appendUint(b, 1, l.Index)
	b = appendUint(b, 2, l.DSIndex)
	b = appendUint(b, 3, uint64(l.Type))
	b = appendBytes(b, 4, l.Hash[:])
	return place(dst, offset, b)
}

func GetBlockLink(src []byte, offset int) (types.BlockLink, error) {
	var l types.BlockLink
	b, err := sliceFrom(src, offset)
	if err != nil {
		return l, err
	}
	seen, err := walk(b, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case 1:
			l.Index, err = f.uint()
		case 2:
			l.DSIndex, err = f.uint()
		case 3:
			v, err = f.uint()
			l.Type = types.BlockType(v)
		case 4:
			err = f.hashInto(&l.Hash)
		}
		return err
	})
	if err != nil {
		return l, err
	}
	return l, seen.require("ProtoBlockLink", 1, 2, 3, 4)
}
