package types

// 区块 = 区块头 + 区块体 + 共识签名 + 单独存放的 blockHash。
// blockHash 只由区块头计算，也是第二轮共识签名的对象。
// 相等/大小比较只看区块头。

type DSBlock struct {
	Header    DSBlockHeader
	CoSigs    CoSignatures
	BlockHash BlockHash
}

func (b *DSBlock) Equal(o *DSBlock) bool   { return b.Header.Equal(o.Header) }
func (b *DSBlock) Less(o *DSBlock) bool    { return b.Header.Less(o.Header) }
func (b *DSBlock) Greater(o *DSBlock) bool { return !(b.Equal(o) || b.Less(o)) }

type MicroBlock struct {
	Header     MicroBlockHeader
	TranHashes []TxnHash
	CoSigs     CoSignatures
	BlockHash  BlockHash
}

func (b *MicroBlock) Equal(o *MicroBlock) bool   { return b.Header.Equal(o.Header) }
func (b *MicroBlock) Less(o *MicroBlock) bool    { return b.Header.Less(o.Header) }
func (b *MicroBlock) Greater(o *MicroBlock) bool { return !(b.Equal(o) || b.Less(o)) }

type TxBlock struct {
	Header            TxBlockHeader
	IsMicroBlockEmpty []bool
	MicroBlockHashes  []MicroBlockHashSet
	ShardIDs          []uint32
	CoSigs            CoSignatures
	BlockHash         BlockHash
}

func (b *TxBlock) Equal(o *TxBlock) bool   { return b.Header.Equal(o.Header) }
func (b *TxBlock) Less(o *TxBlock) bool    { return b.Header.Less(o.Header) }
func (b *TxBlock) Greater(o *TxBlock) bool { return !(b.Equal(o) || b.Less(o)) }

type VCBlock struct {
	Header    VCBlockHeader
	CoSigs    CoSignatures
	BlockHash BlockHash
}

func (b *VCBlock) Equal(o *VCBlock) bool   { return b.Header.Equal(o.Header) }
func (b *VCBlock) Less(o *VCBlock) bool    { return b.Header.Less(o.Header) }
func (b *VCBlock) Greater(o *VCBlock) bool { return !(b.Equal(o) || b.Less(o)) }

type FallbackBlock struct {
	Header    FallbackBlockHeader
	CoSigs    CoSignatures
	BlockHash BlockHash
}

func (b *FallbackBlock) Equal(o *FallbackBlock) bool   { return b.Header.Equal(o.Header) }
func (b *FallbackBlock) Less(o *FallbackBlock) bool    { return b.Header.Less(o.Header) }
func (b *FallbackBlock) Greater(o *FallbackBlock) bool { return !(b.Equal(o) || b.Less(o)) }
