package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"shardchain/types"
)

// 共识消息统一外壳：{consensusinfo=1, signature=2, ...}
// consensusinfo 前四个字段对所有共识消息相同，第 4 个字段是 leaderid 或 backupid。

const (
	envInfo      protowire.Number = 1
	envSignature protowire.Number = 2
)

const (
	ciConsensusID protowire.Number = 1
	ciBlockNumber protowire.Number = 2
	ciBlockHash   protowire.Number = 3
	ciNodeID      protowire.Number = 4
)

// ConsensusInfo 共识轮次标识
type ConsensusInfo struct {
	ConsensusID uint32
	BlockNumber uint64
	BlockHash   []byte
	// 公告/challenge/collective sig 里是 leader id，commit/response/failure 里是 backup id
	NodeID uint16
}

func appendConsensusInfo(b []byte, ci *ConsensusInfo) []byte {
	b = appendUint(b, ciConsensusID, uint64(ci.ConsensusID))
	b = appendUint(b, ciBlockNumber, ci.BlockNumber)
	b = appendBytes(b, ciBlockHash, ci.BlockHash)
	b = appendUint(b, ciNodeID, uint64(ci.NodeID))
	return b
}

// decodeConsensusInfo 解析公共字段；extra 处理 5 号以后的字段
func decodeConsensusInfo(src []byte, ci *ConsensusInfo, name string, extra func(f field) error, required ...protowire.Number) error {
	seen, err := walk(src, func(f field) error {
		var (
			v   uint64
			err error
		)
		switch f.num {
		case ciConsensusID:
			v, err = f.uintN(32)
			ci.ConsensusID = uint32(v)
		case ciBlockNumber:
			ci.BlockNumber, err = f.uint()
		case ciBlockHash:
			var raw []byte
			if raw, err = f.bytes(); err == nil {
				ci.BlockHash = append([]byte(nil), raw...)
			}
		case ciNodeID:
			v, err = f.uintN(16)
			ci.NodeID = uint16(v)
		default:
			if extra != nil {
				err = extra(f)
			}
		}
		return err
	})
	if err != nil {
		return err
	}
	return seen.require(name, append([]protowire.Number{ciConsensusID, ciBlockNumber, ciBlockHash, ciNodeID}, required...)...)
}

// ===================== 签名外壳 =====================

// Signed 解析后的外壳：Info 是签名覆盖的原始字节
type Signed struct {
	Info      []byte
	Signature types.Signature
}

// AppendSigned 生成 {consensusinfo, signature}
func AppendSigned(b []byte, info []byte, sig types.Signature) []byte {
	b = appendBytes(b, envInfo, info)
	return appendByteArray(b, envSignature, sig[:])
}

func ParseSigned(src []byte, offset int, name string) (*Signed, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	s := &Signed{}
	seen, err := walk(b, func(f field) error {
		switch f.num {
		case envInfo:
			raw, err := f.bytes()
			s.Info = raw
			return err
		case envSignature:
			return f.signature(&s.Signature)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require(name, envInfo, envSignature); err != nil {
		return nil, err
	}
	return s, nil
}

// Place 把编码好的消息写到 dst[offset:]
func Place(dst []byte, offset int, enc []byte) ([]byte, error) {
	return place(dst, offset, enc)
}

// ===================== 具体共识消息 =====================

type CommitInfo struct {
	ConsensusInfo
	Commit types.CommitPoint
}

func EncodeCommitInfo(c *CommitInfo) []byte {
	b := appendConsensusInfo(nil, &c.ConsensusInfo)
	return appendByteArray(b, 5, c.Commit[:])
}

func DecodeCommitInfo(src []byte) (*CommitInfo, error) {
	c := &CommitInfo{}
	err := decodeConsensusInfo(src, &c.ConsensusInfo, "ConsensusCommit.Data", func(f field) error {
		if f.num != 5 {
			return nil
		}
		raw, err := f.byteArray()
		if err != nil {
			return err
		}
		c.Commit, err = types.CommitPointFromBytes(raw)
		return wrapDecode(err)
	}, 5)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type ChallengeInfo struct {
	ConsensusInfo
	AggregatedCommit types.CommitPoint
	AggregatedKey    types.PubKey
	Challenge        types.Challenge
}

func EncodeChallengeInfo(c *ChallengeInfo) []byte {
	b := appendConsensusInfo(nil, &c.ConsensusInfo)
	b = appendByteArray(b, 5, c.AggregatedCommit[:])
	b = appendByteArray(b, 6, c.AggregatedKey[:])
	return appendByteArray(b, 7, c.Challenge[:])
}

func DecodeChallengeInfo(src []byte) (*ChallengeInfo, error) {
	c := &ChallengeInfo{}
	err := decodeConsensusInfo(src, &c.ConsensusInfo, "ConsensusChallenge.Data", func(f field) error {
		switch f.num {
		case 5:
			raw, err := f.byteArray()
			if err != nil {
				return err
			}
			c.AggregatedCommit, err = types.CommitPointFromBytes(raw)
			return wrapDecode(err)
		case 6:
			return f.pubKey(&c.AggregatedKey)
		case 7:
			raw, err := f.byteArray()
			if err != nil {
				return err
			}
			c.Challenge, err = types.ChallengeFromBytes(raw)
			return wrapDecode(err)
		}
		return nil
	}, 5, 6, 7)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type ResponseInfo struct {
	ConsensusInfo
	Response types.Response
}

func EncodeResponseInfo(r *ResponseInfo) []byte {
	b := appendConsensusInfo(nil, &r.ConsensusInfo)
	return appendByteArray(b, 5, r.Response[:])
}

func DecodeResponseInfo(src []byte) (*ResponseInfo, error) {
	r := &ResponseInfo{}
	err := decodeConsensusInfo(src, &r.ConsensusInfo, "ConsensusResponse.Data", func(f field) error {
		if f.num != 5 {
			return nil
		}
		raw, err := f.byteArray()
		if err != nil {
			return err
		}
		r.Response, err = types.ResponseFromBytes(raw)
		return wrapDecode(err)
	}, 5)
	if err != nil {
		return nil, err
	}
	return r, nil
}

type CollectiveSigInfo struct {
	ConsensusInfo
	CollectiveSig types.Signature
	Bitmap        []bool
}

func EncodeCollectiveSigInfo(c *CollectiveSigInfo) []byte {
	b := appendConsensusInfo(nil, &c.ConsensusInfo)
	b = appendByteArray(b, 5, c.CollectiveSig[:])
	return appendBools(b, 6, c.Bitmap)
}

func DecodeCollectiveSigInfo(src []byte) (*CollectiveSigInfo, error) {
	c := &CollectiveSigInfo{}
	err := decodeConsensusInfo(src, &c.ConsensusInfo, "ConsensusCollectiveSig.Data", func(f field) error {
		var err error
		switch f.num {
		case 5:
			err = f.signature(&c.CollectiveSig)
		case 6:
			c.Bitmap, err = f.bools(c.Bitmap)
		}
		return err
	}, 5)
	if err != nil {
		return nil, err
	}
	return c, nil
}

type CommitFailureInfo struct {
	ConsensusInfo
	ErrorMsg []byte
}

func EncodeCommitFailureInfo(c *CommitFailureInfo) []byte {
	b := appendConsensusInfo(nil, &c.ConsensusInfo)
	return appendBytes(b, 5, c.ErrorMsg)
}

func DecodeCommitFailureInfo(src []byte) (*CommitFailureInfo, error) {
	c := &CommitFailureInfo{}
	err := decodeConsensusInfo(src, &c.ConsensusInfo, "ConsensusCommitFailure.Data", func(f field) error {
		if f.num != 5 {
			return nil
		}
		raw, err := f.bytes()
		c.ErrorMsg = append([]byte(nil), raw...)
		return err
	}, 5)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func wrapDecode(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrDecode, err)
}

// ===================== 公告 =====================

// AnnouncementCase 公告 oneof 分支，取值即字段号
type AnnouncementCase protowire.Number

const (
	CaseNone          AnnouncementCase = 0
	CaseDSBlock       AnnouncementCase = 3
	CaseMicroBlock    AnnouncementCase = 4
	CaseFinalBlock    AnnouncementCase = 5
	CaseVCBlock       AnnouncementCase = 6
	CaseFallbackBlock AnnouncementCase = 7
)

func (c AnnouncementCase) String() string {
	switch c {
	case CaseDSBlock:
		return "dsblock"
	case CaseMicroBlock:
		return "microblock"
	case CaseFinalBlock:
		return "finalblock"
	case CaseVCBlock:
		return "vcblock"
	case CaseFallbackBlock:
		return "fallbackblock"
	}
	return "none"
}

// EncodeAnnouncementInfo 公告的 consensusinfo 只有公共四个字段
func EncodeAnnouncementInfo(ci *ConsensusInfo) []byte {
	return appendConsensusInfo(nil, ci)
}

func DecodeAnnouncementInfo(src []byte) (*ConsensusInfo, error) {
	ci := &ConsensusInfo{}
	if err := decodeConsensusInfo(src, ci, "ConsensusAnnouncement.ConsensusInfo", nil); err != nil {
		return nil, err
	}
	return ci, nil
}

// RawAnnouncement 公告解析结果，Info/Payload 保留原始字节供验签
type RawAnnouncement struct {
	Info      []byte
	Signature types.Signature
	Case      AnnouncementCase
	Payload   []byte
}

func AppendAnnouncement(b []byte, a *RawAnnouncement) []byte {
	b = AppendSigned(b, a.Info, a.Signature)
	return appendBytes(b, protowire.Number(a.Case), a.Payload)
}

func ParseAnnouncement(src []byte, offset int) (*RawAnnouncement, error) {
	b, err := sliceFrom(src, offset)
	if err != nil {
		return nil, err
	}
	a := &RawAnnouncement{}
	seen, err := walk(b, func(f field) error {
		switch f.num {
		case envInfo:
			raw, err := f.bytes()
			a.Info = raw
			return err
		case envSignature:
			return f.signature(&a.Signature)
		case protowire.Number(CaseDSBlock), protowire.Number(CaseMicroBlock), protowire.Number(CaseFinalBlock),
			protowire.Number(CaseVCBlock), protowire.Number(CaseFallbackBlock):
			raw, err := f.bytes()
			if err != nil {
				return err
			}
			// oneof 以最后出现的为准
			a.Case, a.Payload = AnnouncementCase(f.num), raw
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("ConsensusAnnouncement", envInfo, envSignature); err != nil {
		return nil, err
	}
	if a.Case == CaseNone {
		return nil, fmt.Errorf("%w: announcement content not set", ErrDecode)
	}
	return a, nil
}

// ---- 各分支载荷 ----

func EncodeDSBlockAnnouncement(blk *types.DSBlock, shards types.DequeOfShard, a *types.TxSharingAssignments) ([]byte, error) {
	assignments, err := encodeTxSharingAssignments(a)
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendBytes(b, 1, encodeDSBlock(blk))
	b = appendBytes(b, 2, encodeShardingStructure(shards))
	b = appendBytes(b, 3, assignments)
	return b, nil
}

func DecodeDSBlockAnnouncement(src []byte, blk *types.DSBlock, a *types.TxSharingAssignments) (types.DequeOfShard, error) {
	var shards types.DequeOfShard
	seen, err := walk(src, func(f field) error {
		if f.num < 1 || f.num > 3 {
			return nil
		}
		var (
			raw []byte
			err error
		)
		if raw, err = f.bytes(); err != nil {
			return err
		}
		switch f.num {
		case 1:
			err = decodeDSBlock(raw, blk)
		case 2:
			shards, err = decodeShardingStructure(raw)
		case 3:
			err = decodeTxSharingAssignments(raw, a)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := seen.require("DSDSBlockAnnouncement", 1, 2, 3); err != nil {
		return nil, err
	}
	return shards, nil
}

func EncodeMicroBlockAnnouncement(mb *types.MicroBlock) []byte {
	return appendBytes(nil, 1, encodeMicroBlock(mb))
}

func DecodeMicroBlockAnnouncement(src []byte, mb *types.MicroBlock) error {
	return decodeSingle(src, "NodeMicroBlockAnnouncement", func(raw []byte) error {
		return decodeMicroBlock(raw, mb)
	})
}

func EncodeFinalBlockAnnouncement(tx *types.TxBlock) []byte {
	return appendBytes(nil, 1, encodeTxBlock(tx))
}

func DecodeFinalBlockAnnouncement(src []byte, tx *types.TxBlock) error {
	return decodeSingle(src, "DSFinalBlockAnnouncement", func(raw []byte) error {
		return decodeTxBlock(raw, tx)
	})
}

// VC/Fallback 载荷是序列化后区块的 ByteArray
func EncodeVCBlockAnnouncement(vc *types.VCBlock) []byte {
	return appendByteArray(nil, 1, encodeVCBlock(vc))
}

func DecodeVCBlockAnnouncement(src []byte, vc *types.VCBlock) error {
	return decodeSingle(src, "DSVCBlockAnnouncement", func(raw []byte) error {
		inner, err := decodeByteArray(raw)
		if err != nil {
			return err
		}
		return decodeVCBlock(inner, vc)
	})
}

func EncodeFallbackBlockAnnouncement(fb *types.FallbackBlock) []byte {
	return appendByteArray(nil, 1, encodeFallbackBlock(fb))
}

func DecodeFallbackBlockAnnouncement(src []byte, fb *types.FallbackBlock) error {
	return decodeSingle(src, "NodeFallbackBlockAnnouncement", func(raw []byte) error {
		inner, err := decodeByteArray(raw)
		if err != nil {
			return err
		}
		return decodeFallbackBlock(inner, fb)
	})
}

func decodeSingle(src []byte, name string, inner func([]byte) error) error {
	seen, err := walk(src, func(f field) error {
		if f.num != 1 {
			return nil
		}
		raw, err := f.bytes()
		if err != nil {
			return err
		}
		return inner(raw)
	})
	if err != nil {
		return err
	}
	return seen.require(name, 1)
}
