package consensus

import (
	"fmt"

	"shardchain/types"
	"shardchain/utils"
	"shardchain/wire"
)

// 两轮共识的往返消息。签名都只覆盖 consensusinfo 的编码。
// backup 发出的消息（commit/response/failure）里 NodeID 是 backupID，Info.LeaderID 不参与比对；
// leader 发出的消息（challenge/collective sig）里 NodeID 必须等于 Info.LeaderID。
// 校验顺序：字段一致 → 参与者越界 → 签名。

func sealInfo(dst []byte, offset int, infoBytes []byte, key types.KeyPair) ([]byte, error) {
	sig, err := utils.Sign(infoBytes, key.Priv)
	if err != nil {
		return nil, fmt.Errorf("sign consensus message: %w", err)
	}
	return wire.Place(dst, offset, wire.AppendSigned(nil, infoBytes, sig))
}

// verifyBackup backupID 必须落在委员会内，再用该成员公钥验签
func verifyBackup(s *wire.Signed, backupID uint16, committee []types.PubKey) error {
	if int(backupID) >= len(committee) {
		return fmt.Errorf("%w: backup id %d, committee size %d", ErrParticipant, backupID, len(committee))
	}
	if !utils.Verify(s.Info, s.Signature, committee[backupID]) {
		return fmt.Errorf("%w: message from backup %d", ErrSignature, backupID)
	}
	return nil
}

func verifyLeader(s *wire.Signed, leaderID uint16, leaderPubKey types.PubKey) error {
	if !utils.Verify(s.Info, s.Signature, leaderPubKey) {
		return fmt.Errorf("%w: message from leader %d", ErrSignature, leaderID)
	}
	return nil
}

func withNode(info Info, nodeID uint16) wire.ConsensusInfo {
	ci := info.wire()
	ci.NodeID = nodeID
	return ci
}

// ---- commit ----

func SetConsensusCommit(dst []byte, offset int, info Info, backupID uint16, commit types.CommitPoint, backupKey types.KeyPair) ([]byte, error) {
	c := &wire.CommitInfo{ConsensusInfo: withNode(info, backupID), Commit: commit}
	return sealInfo(dst, offset, wire.EncodeCommitInfo(c), backupKey)
}

// GetConsensusCommit 返回的 NodeID 即 backupID
func GetConsensusCommit(src []byte, offset int, expected Info, committee []types.PubKey) (*wire.CommitInfo, error) {
	s, err := wire.ParseSigned(src, offset, "ConsensusCommit")
	if err != nil {
		return nil, err
	}
	c, err := wire.DecodeCommitInfo(s.Info)
	if err != nil {
		return nil, err
	}
	if err := checkInfo(expected, &c.ConsensusInfo, false); err != nil {
		return nil, err
	}
	if err := verifyBackup(s, c.NodeID, committee); err != nil {
		return nil, err
	}
	return c, nil
}

// ---- challenge ----

func SetConsensusChallenge(dst []byte, offset int, info Info, aggCommit types.CommitPoint, aggKey types.PubKey,
	challenge types.Challenge, leaderKey types.KeyPair) ([]byte, error) {
	c := &wire.ChallengeInfo{
		ConsensusInfo:    info.wire(),
		AggregatedCommit: aggCommit,
		AggregatedKey:    aggKey,
		Challenge:        challenge,
	}
	return sealInfo(dst, offset, wire.EncodeChallengeInfo(c), leaderKey)
}

func GetConsensusChallenge(src []byte, offset int, expected Info, leaderPubKey types.PubKey) (*wire.ChallengeInfo, error) {
	s, err := wire.ParseSigned(src, offset, "ConsensusChallenge")
	if err != nil {
		return nil, err
	}
	c, err := wire.DecodeChallengeInfo(s.Info)
	if err != nil {
		return nil, err
	}
	if err := checkInfo(expected, &c.ConsensusInfo, true); err != nil {
		return nil, err
	}
	if err := verifyLeader(s, c.NodeID, leaderPubKey); err != nil {
		return nil, err
	}
	return c, nil
}

// ---- response ----

func SetConsensusResponse(dst []byte, offset int, info Info, backupID uint16, resp types.Response, backupKey types.KeyPair) ([]byte, error) {
	r := &wire.ResponseInfo{ConsensusInfo: withNode(info, backupID), Response: resp}
	return sealInfo(dst, offset, wire.EncodeResponseInfo(r), backupKey)
}

func GetConsensusResponse(src []byte, offset int, expected Info, committee []types.PubKey) (*wire.ResponseInfo, error) {
	s, err := wire.ParseSigned(src, offset, "ConsensusResponse")
	if err != nil {
		return nil, err
	}
	r, err := wire.DecodeResponseInfo(s.Info)
	if err != nil {
		return nil, err
	}
	if err := checkInfo(expected, &r.ConsensusInfo, false); err != nil {
		return nil, err
	}
	if err := verifyBackup(s, r.NodeID, committee); err != nil {
		return nil, err
	}
	return r, nil
}

// ---- collective sig ----

func SetConsensusCollectiveSig(dst []byte, offset int, info Info, sig types.Signature, bitmap []bool, leaderKey types.KeyPair) ([]byte, error) {
	c := &wire.CollectiveSigInfo{ConsensusInfo: info.wire(), CollectiveSig: sig, Bitmap: bitmap}
	return sealInfo(dst, offset, wire.EncodeCollectiveSigInfo(c), leaderKey)
}

func GetConsensusCollectiveSig(src []byte, offset int, expected Info, leaderPubKey types.PubKey) (*wire.CollectiveSigInfo, error) {
	s, err := wire.ParseSigned(src, offset, "ConsensusCollectiveSig")
	if err != nil {
		return nil, err
	}
	c, err := wire.DecodeCollectiveSigInfo(s.Info)
	if err != nil {
		return nil, err
	}
	if err := checkInfo(expected, &c.ConsensusInfo, true); err != nil {
		return nil, err
	}
	if err := verifyLeader(s, c.NodeID, leaderPubKey); err != nil {
		return nil, err
	}
	return c, nil
}

// ---- commit failure ----

func SetConsensusCommitFailure(dst []byte, offset int, info Info, backupID uint16, errorMsg []byte, backupKey types.KeyPair) ([]byte, error) {
	c := &wire.CommitFailureInfo{ConsensusInfo: withNode(info, backupID), ErrorMsg: errorMsg}
	return sealInfo(dst, offset, wire.EncodeCommitFailureInfo(c), backupKey)
}

func GetConsensusCommitFailure(src []byte, offset int, expected Info, committee []types.PubKey) (*wire.CommitFailureInfo, error) {
	s, err := wire.ParseSigned(src, offset, "ConsensusCommitFailure")
	if err != nil {
		return nil, err
	}
	c, err := wire.DecodeCommitFailureInfo(s.Info)
	if err != nil {
		return nil, err
	}
	if err := checkInfo(expected, &c.ConsensusInfo, false); err != nil {
		return nil, err
	}
	if err := verifyBackup(s, c.NodeID, committee); err != nil {
		return nil, err
	}
	return c, nil
}
