// db/keys.go
package db

import (
	"fmt"
	"strings"

	"shardchain/types"
)

// ===================== 版本控制 =====================
// 所有 key 带版本前缀 "v1_<...>"，KeyVersion 置空即可不加前缀。
const KeyVersion = "v1"

func withVer(s string) string {
	if KeyVersion == "" {
		return s
	}
	return KeyVersion + "_" + s
}

// StripVersion 去掉版本前缀
func StripVersion(prefixed string) string {
	if KeyVersion == "" {
		return prefixed
	}
	return strings.TrimPrefix(prefixed, KeyVersion+"_")
}

// 区块
// 编号用定宽十进制，badger 迭代时按数值有序

// 例：dsblock_00000000000000000012
func KeyDSBlock(num uint64) string {
	return withVer(fmt.Sprintf("dsblock_%020d", num))
}

// 例：txblock_00000000000000000012
func KeyTxBlock(num uint64) string {
	return withVer(fmt.Sprintf("txblock_%020d", num))
}

// VC/FB 区块按哈希存
func KeyVCBlock(hash types.BlockHash) string {
	return withVer("vcblock_" + hash.Hex())
}

func KeyFallbackBlock(hash types.BlockHash) string {
	return withVer("fbblock_" + hash.Hex())
}

// 例：blocklink_00000000000000000003
func KeyBlockLink(index uint64) string {
	return withVer(fmt.Sprintf("blocklink_%020d", index))
}

func KeyBlockLinkPrefix() string {
	return withVer("blocklink_")
}

// 元数据

type MetaType uint8

const (
	MetaLatestActiveDSBlockNum MetaType = iota
	MetaDSIncompleted
	MetaWakeupForUpgrade
	MetaLatestTxBlockNum
)

func (m MetaType) String() string {
	switch m {
	case MetaLatestActiveDSBlockNum:
		return "LATESTACTIVEDSBLOCKNUM"
	case MetaDSIncompleted:
		return "DSINCOMPLETED"
	case MetaWakeupForUpgrade:
		return "WAKEUPFORUPGRADE"
	case MetaLatestTxBlockNum:
		return "LATESTTXBLOCKNUM"
	}
	return fmt.Sprintf("META%d", uint8(m))
}

// 例：meta_LATESTACTIVEDSBLOCKNUM
func KeyMetadata(m MetaType) string {
	return withVer("meta_" + m.String())
}
