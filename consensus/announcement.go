package consensus

import (
	"bytes"
	"fmt"

	"shardchain/types"
	"shardchain/utils"
	"shardchain/wire"
)

// Info 公告携带的共识轮次标识
type Info struct {
	ConsensusID uint32
	BlockNumber uint64
	BlockHash   []byte
	LeaderID    uint16
}

func (i Info) wire() wire.ConsensusInfo {
	return wire.ConsensusInfo{
		ConsensusID: i.ConsensusID,
		BlockNumber: i.BlockNumber,
		BlockHash:   i.BlockHash,
		NodeID:      i.LeaderID,
	}
}

// Payload 公告内容，只有下面五种实现
type Payload interface {
	Case() wire.AnnouncementCase
	encode() ([]byte, error)
	// 第一轮 co-sign 的对象：区块头编码
	headerBytes() ([]byte, error)
}

type DSBlockPayload struct {
	Block       *types.DSBlock
	Shards      types.DequeOfShard
	Assignments *types.TxSharingAssignments
}

type MicroBlockPayload struct {
	Block *types.MicroBlock
}

type FinalBlockPayload struct {
	TxBlock *types.TxBlock
}

type VCBlockPayload struct {
	Block *types.VCBlock
}

type FallbackBlockPayload struct {
	Block *types.FallbackBlock
}

func (*DSBlockPayload) Case() wire.AnnouncementCase       { return wire.CaseDSBlock }
func (*MicroBlockPayload) Case() wire.AnnouncementCase    { return wire.CaseMicroBlock }
func (*FinalBlockPayload) Case() wire.AnnouncementCase    { return wire.CaseFinalBlock }
func (*VCBlockPayload) Case() wire.AnnouncementCase       { return wire.CaseVCBlock }
func (*FallbackBlockPayload) Case() wire.AnnouncementCase { return wire.CaseFallbackBlock }

func (p *DSBlockPayload) encode() ([]byte, error) {
	if p.Block == nil || p.Assignments == nil {
		return nil, missing(p)
	}
	return wire.EncodeDSBlockAnnouncement(p.Block, p.Shards, p.Assignments)
}

func (p *MicroBlockPayload) encode() ([]byte, error) {
	if p.Block == nil {
		return nil, missing(p)
	}
	return wire.EncodeMicroBlockAnnouncement(p.Block), nil
}

func (p *FinalBlockPayload) encode() ([]byte, error) {
	if p.TxBlock == nil {
		return nil, missing(p)
	}
	return wire.EncodeFinalBlockAnnouncement(p.TxBlock), nil
}

func (p *VCBlockPayload) encode() ([]byte, error) {
	if p.Block == nil {
		return nil, missing(p)
	}
	return wire.EncodeVCBlockAnnouncement(p.Block), nil
}

func (p *FallbackBlockPayload) encode() ([]byte, error) {
	if p.Block == nil {
		return nil, missing(p)
	}
	return wire.EncodeFallbackBlockAnnouncement(p.Block), nil
}

func (p *DSBlockPayload) headerBytes() ([]byte, error) {
	return wire.SetDSBlockHeader(nil, 0, &p.Block.Header)
}

func (p *MicroBlockPayload) headerBytes() ([]byte, error) {
	return wire.SetMicroBlockHeader(nil, 0, &p.Block.Header)
}

func (p *FinalBlockPayload) headerBytes() ([]byte, error) {
	return wire.SetTxBlockHeader(nil, 0, &p.TxBlock.Header)
}

func (p *VCBlockPayload) headerBytes() ([]byte, error) {
	return wire.SetVCBlockHeader(nil, 0, &p.Block.Header)
}

func (p *FallbackBlockPayload) headerBytes() ([]byte, error) {
	return wire.SetFallbackBlockHeader(nil, 0, &p.Block.Header)
}

func missing(p Payload) error {
	return fmt.Errorf("%w: %s announcement without block", wire.ErrEncode, p.Case())
}

// decodePayload 按 oneof 分支还原载荷
func decodePayload(c wire.AnnouncementCase, raw []byte) (Payload, error) {
	switch c {
	case wire.CaseDSBlock:
		p := &DSBlockPayload{Block: &types.DSBlock{}, Assignments: &types.TxSharingAssignments{}}
		shards, err := wire.DecodeDSBlockAnnouncement(raw, p.Block, p.Assignments)
		if err != nil {
			return nil, err
		}
		p.Shards = shards
		return p, nil
	case wire.CaseMicroBlock:
		p := &MicroBlockPayload{Block: &types.MicroBlock{}}
		return p, wire.DecodeMicroBlockAnnouncement(raw, p.Block)
	case wire.CaseFinalBlock:
		p := &FinalBlockPayload{TxBlock: &types.TxBlock{}}
		return p, wire.DecodeFinalBlockAnnouncement(raw, p.TxBlock)
	case wire.CaseVCBlock:
		p := &VCBlockPayload{Block: &types.VCBlock{}}
		return p, wire.DecodeVCBlockAnnouncement(raw, p.Block)
	case wire.CaseFallbackBlock:
		p := &FallbackBlockPayload{Block: &types.FallbackBlock{}}
		return p, wire.DecodeFallbackBlockAnnouncement(raw, p.Block)
	}
	return nil, fmt.Errorf("%w: unknown announcement case %d", wire.ErrDecode, c)
}

// SetAnnouncement leader 生成公告，签名覆盖 consensusinfo‖payload 的编码。
// 返回写好的缓冲区和 messageToCosign（区块头编码）。
func SetAnnouncement(dst []byte, offset int, info Info, leaderKey types.KeyPair, p Payload) ([]byte, []byte, error) {
	payload, err := p.encode()
	if err != nil {
		return nil, nil, err
	}
	ci := info.wire()
	infoBytes := wire.EncodeAnnouncementInfo(&ci)

	signed := make([]byte, 0, len(infoBytes)+len(payload))
	signed = append(append(signed, infoBytes...), payload...)
	sig, err := utils.SignWithCache(signed, leaderKey)
	if err != nil {
		return nil, nil, fmt.Errorf("sign announcement: %w", err)
	}

	enc := wire.AppendAnnouncement(nil, &wire.RawAnnouncement{
		Info:      infoBytes,
		Signature: sig,
		Case:      p.Case(),
		Payload:   payload,
	})
	cosign, err := p.headerBytes()
	if err != nil {
		return nil, nil, err
	}
	buf, err := wire.Place(dst, offset, enc)
	if err != nil {
		return nil, nil, err
	}
	return buf, cosign, nil
}

// GetAnnouncement backup 校验公告：
// 分支 → consensusID → blockNumber → blockHash → leaderID → leader 签名 → 解码载荷。
func GetAnnouncement(src []byte, offset int, expected Info, leaderPubKey types.PubKey, kind wire.AnnouncementCase) (Payload, []byte, error) {
	raw, err := wire.ParseAnnouncement(src, offset)
	if err != nil {
		return nil, nil, err
	}
	if raw.Case != kind {
		return nil, nil, fmt.Errorf("%w: announcement is %s, want %s", wire.ErrDecode, raw.Case, kind)
	}
	got, err := wire.DecodeAnnouncementInfo(raw.Info)
	if err != nil {
		return nil, nil, err
	}
	if err := checkInfo(expected, got, true); err != nil {
		return nil, nil, err
	}

	signed := make([]byte, 0, len(raw.Info)+len(raw.Payload))
	signed = append(append(signed, raw.Info...), raw.Payload...)
	if !utils.Verify(signed, raw.Signature, leaderPubKey) {
		return nil, nil, fmt.Errorf("%w: announcement from leader %d", ErrSignature, got.NodeID)
	}

	p, err := decodePayload(raw.Case, raw.Payload)
	if err != nil {
		return nil, nil, err
	}
	cosign, err := p.headerBytes()
	if err != nil {
		return nil, nil, err
	}
	return p, cosign, nil
}

// checkInfo 按固定顺序比对，第一个不一致的字段决定错误信息
func checkInfo(expected Info, got *wire.ConsensusInfo, withLeader bool) error {
	switch {
	case got.ConsensusID != expected.ConsensusID:
		return fmt.Errorf("%w: consensus id expected %d received %d", ErrFieldMismatch, expected.ConsensusID, got.ConsensusID)
	case got.BlockNumber != expected.BlockNumber:
		return fmt.Errorf("%w: block number expected %d received %d", ErrFieldMismatch, expected.BlockNumber, got.BlockNumber)
	case len(got.BlockHash) != len(expected.BlockHash):
		return fmt.Errorf("%w: block hash size expected %d received %d", ErrFieldMismatch, len(expected.BlockHash), len(got.BlockHash))
	case !bytes.Equal(got.BlockHash, expected.BlockHash):
		return fmt.Errorf("%w: block hash expected %x received %x", ErrFieldMismatch, expected.BlockHash, got.BlockHash)
	case withLeader && got.NodeID != expected.LeaderID:
		return fmt.Errorf("%w: leader id expected %d received %d", ErrFieldMismatch, expected.LeaderID, got.NodeID)
	}
	return nil
}

// ===================== 具体公告 =====================

func SetDSDSBlockAnnouncement(dst []byte, offset int, info Info, leaderKey types.KeyPair,
	blk *types.DSBlock, shards types.DequeOfShard, a *types.TxSharingAssignments) ([]byte, []byte, error) {
	return SetAnnouncement(dst, offset, info, leaderKey, &DSBlockPayload{Block: blk, Shards: shards, Assignments: a})
}

func GetDSDSBlockAnnouncement(src []byte, offset int, info Info, leaderPubKey types.PubKey) (*DSBlockPayload, []byte, error) {
	p, cosign, err := GetAnnouncement(src, offset, info, leaderPubKey, wire.CaseDSBlock)
	if err != nil {
		return nil, nil, err
	}
	return p.(*DSBlockPayload), cosign, nil
}

func SetDSFinalBlockAnnouncement(dst []byte, offset int, info Info, leaderKey types.KeyPair, tx *types.TxBlock) ([]byte, []byte, error) {
	return SetAnnouncement(dst, offset, info, leaderKey, &FinalBlockPayload{TxBlock: tx})
}

func GetDSFinalBlockAnnouncement(src []byte, offset int, info Info, leaderPubKey types.PubKey) (*types.TxBlock, []byte, error) {
	p, cosign, err := GetAnnouncement(src, offset, info, leaderPubKey, wire.CaseFinalBlock)
	if err != nil {
		return nil, nil, err
	}
	return p.(*FinalBlockPayload).TxBlock, cosign, nil
}

func SetDSVCBlockAnnouncement(dst []byte, offset int, info Info, leaderKey types.KeyPair, vc *types.VCBlock) ([]byte, []byte, error) {
	return SetAnnouncement(dst, offset, info, leaderKey, &VCBlockPayload{Block: vc})
}

func GetDSVCBlockAnnouncement(src []byte, offset int, info Info, leaderPubKey types.PubKey) (*types.VCBlock, []byte, error) {
	p, cosign, err := GetAnnouncement(src, offset, info, leaderPubKey, wire.CaseVCBlock)
	if err != nil {
		return nil, nil, err
	}
	return p.(*VCBlockPayload).Block, cosign, nil
}

func SetNodeMicroBlockAnnouncement(dst []byte, offset int, info Info, leaderKey types.KeyPair, mb *types.MicroBlock) ([]byte, []byte, error) {
	return SetAnnouncement(dst, offset, info, leaderKey, &MicroBlockPayload{Block: mb})
}

func GetNodeMicroBlockAnnouncement(src []byte, offset int, info Info, leaderPubKey types.PubKey) (*types.MicroBlock, []byte, error) {
	p, cosign, err := GetAnnouncement(src, offset, info, leaderPubKey, wire.CaseMicroBlock)
	if err != nil {
		return nil, nil, err
	}
	return p.(*MicroBlockPayload).Block, cosign, nil
}

func SetNodeFallbackBlockAnnouncement(dst []byte, offset int, info Info, leaderKey types.KeyPair, fb *types.FallbackBlock) ([]byte, []byte, error) {
	return SetAnnouncement(dst, offset, info, leaderKey, &FallbackBlockPayload{Block: fb})
}

func GetNodeFallbackBlockAnnouncement(src []byte, offset int, info Info, leaderPubKey types.PubKey) (*types.FallbackBlock, []byte, error) {
	p, cosign, err := GetAnnouncement(src, offset, info, leaderPubKey, wire.CaseFallbackBlock)
	if err != nil {
		return nil, nil, err
	}
	return p.(*FallbackBlockPayload).Block, cosign, nil
}
