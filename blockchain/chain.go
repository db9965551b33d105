package blockchain

import (
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"shardchain/types"
)

var (
	ErrNilBlock      = errors.New("blockchain: nil block")
	ErrNonSequential = errors.New("blockchain: block number not sequential")
)

const DefaultCacheSize = 64

// chain 只追加的区块序列，下标 = blockNum - base。
// 空链接受任意编号作为第一个块（创世或从存储恢复的检查点）。
type chain[B any] struct {
	mu     sync.RWMutex
	blocks []B
	base   uint64
	num    func(B) uint64
	hash   func(B) types.BlockHash
	byHash *lru.Cache
}

func newChain[B any](cacheSize int, num func(B) uint64, hash func(B) types.BlockHash) (*chain[B], error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &chain[B]{num: num, hash: hash, byHash: c}, nil
}

func (c *chain[B]) add(b B) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.num(b)
	if len(c.blocks) == 0 {
		c.base = n
	} else if want := c.base + uint64(len(c.blocks)); n != want {
		return fmt.Errorf("%w: got %d, want %d", ErrNonSequential, n, want)
	}
	c.blocks = append(c.blocks, b)
	c.byHash.Add(c.hash(b), len(c.blocks)-1)
	return nil
}

func (c *chain[B]) last() (B, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero B
	if len(c.blocks) == 0 {
		return zero, false
	}
	return c.blocks[len(c.blocks)-1], true
}

func (c *chain[B]) get(n uint64) (B, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero B
	if n < c.base || n-c.base >= uint64(len(c.blocks)) {
		return zero, false
	}
	return c.blocks[n-c.base], true
}

// getByHash 先查 LRU，未命中再从链尾往前扫
func (c *chain[B]) getByHash(h types.BlockHash) (B, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var zero B
	if v, ok := c.byHash.Get(h); ok {
		return c.blocks[v.(int)], true
	}
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.hash(c.blocks[i]) == h {
			c.byHash.Add(h, i)
			return c.blocks[i], true
		}
	}
	return zero, false
}

func (c *chain[B]) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// DSBlockChain DS 区块链
type DSBlockChain struct {
	c *chain[*types.DSBlock]
}

func NewDSBlockChain(cacheSize int) (*DSBlockChain, error) {
	c, err := newChain(cacheSize,
		func(b *types.DSBlock) uint64 { return b.Header.BlockNum },
		func(b *types.DSBlock) types.BlockHash { return b.BlockHash })
	if err != nil {
		return nil, err
	}
	return &DSBlockChain{c: c}, nil
}

// AddBlock blockNum 必须是上一个块 +1
func (d *DSBlockChain) AddBlock(b *types.DSBlock) error {
	if b == nil {
		return ErrNilBlock
	}
	return d.c.add(b)
}

func (d *DSBlockChain) GetLastBlock() (*types.DSBlock, bool) { return d.c.last() }

func (d *DSBlockChain) GetBlock(num uint64) (*types.DSBlock, bool) { return d.c.get(num) }

func (d *DSBlockChain) GetBlockByHash(h types.BlockHash) (*types.DSBlock, bool) {
	return d.c.getByHash(h)
}

// LastBlockNum 空链返回 0, false
func (d *DSBlockChain) LastBlockNum() (uint64, bool) {
	b, ok := d.c.last()
	if !ok {
		return 0, false
	}
	return b.Header.BlockNum, true
}

func (d *DSBlockChain) Len() int { return d.c.size() }

// TxBlockChain Tx 区块链，最后一个块的哈希用于选 leader
type TxBlockChain struct {
	c *chain[*types.TxBlock]
}

func NewTxBlockChain(cacheSize int) (*TxBlockChain, error) {
	c, err := newChain(cacheSize,
		func(b *types.TxBlock) uint64 { return b.Header.BlockNum },
		func(b *types.TxBlock) types.BlockHash { return b.BlockHash })
	if err != nil {
		return nil, err
	}
	return &TxBlockChain{c: c}, nil
}

func (t *TxBlockChain) AddBlock(b *types.TxBlock) error {
	if b == nil {
		return ErrNilBlock
	}
	return t.c.add(b)
}

func (t *TxBlockChain) GetLastBlock() (*types.TxBlock, bool) { return t.c.last() }

func (t *TxBlockChain) GetBlock(num uint64) (*types.TxBlock, bool) { return t.c.get(num) }

func (t *TxBlockChain) GetBlockByHash(h types.BlockHash) (*types.TxBlock, bool) {
	return t.c.getByHash(h)
}

func (t *TxBlockChain) Len() int { return t.c.size() }
