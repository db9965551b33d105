package types

import "fmt"

// BlockType 跨类型区块索引里的区块类别
type BlockType uint8

const (
	BlockTypeDS BlockType = iota
	BlockTypeVC
	BlockTypeFB
)

func (t BlockType) String() string {
	switch t {
	case BlockTypeDS:
		return "DS"
	case BlockTypeVC:
		return "VC"
	case BlockTypeFB:
		return "FB"
	}
	return fmt.Sprintf("BlockType(%d)", uint8(t))
}

// BlockLink (序号, 所属 DS epoch, 类型, 区块哈希)
type BlockLink struct {
	Index   uint64
	DSIndex uint64
	Type    BlockType
	Hash    BlockHash
}
