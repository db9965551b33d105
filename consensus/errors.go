package consensus

import "errors"

// 签名校验失败的几类原因，调用方用 errors.Is 区分
var (
	// ErrFieldMismatch consensusID/blockNumber/blockHash/leaderID 与预期不符
	ErrFieldMismatch = errors.New("consensus: field mismatch")
	// ErrSignature 签名或聚合签名验证失败
	ErrSignature = errors.New("consensus: invalid signature")
	// ErrParticipant backupID 越界，或位图长度与委员会大小不符
	ErrParticipant = errors.New("consensus: participant out of range")
	// ErrThreshold 签名人数不足
	ErrThreshold = errors.New("consensus: not enough signers")
)
