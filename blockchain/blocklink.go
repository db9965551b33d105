package blockchain

import (
	"errors"
	"fmt"
	"sync"

	"shardchain/logs"
	"shardchain/types"
	"shardchain/wire"
)

var (
	ErrNonMonotonic = errors.New("blockchain: block link index not increasing")
	ErrLinkNotFound = errors.New("blockchain: block link not found")
)

// LinkStore 区块链接的持久化，db.Manager 实现
type LinkStore interface {
	PutBlockLink(index uint64, data []byte) error
	GetBlockLink(index uint64) ([]byte, error)
}

// LinkScanner 能按 index 升序遍历已持久化链接的存储
type LinkScanner interface {
	ScanBlockLinks(fn func(index uint64, data []byte) error) error
}

// BlockLinkChain DS/VC/FB 区块按出现顺序的统一索引。
// 以 index 为键的 arena，index 严格递增。
type BlockLinkChain struct {
	mu     sync.RWMutex
	links  []types.BlockLink
	byIdx  map[uint64]int
	latest uint64
	store  LinkStore
}

// NewBlockLinkChain store 可以为 nil
func NewBlockLinkChain(store LinkStore) *BlockLinkChain {
	return &BlockLinkChain{byIdx: make(map[uint64]int), store: store}
}

// LoadBlockLinkChain 先把存储里已有的链接读回内存，新链接接在最大 index 之后。
// store 不支持遍历时等同于 NewBlockLinkChain。
func LoadBlockLinkChain(store LinkStore) (*BlockLinkChain, error) {
	c := NewBlockLinkChain(store)
	scanner, ok := store.(LinkScanner)
	if !ok {
		return c, nil
	}
	err := scanner.ScanBlockLinks(func(index uint64, data []byte) error {
		l, err := wire.GetBlockLink(data, 0)
		if err != nil {
			return fmt.Errorf("decode block link %d: %w", index, err)
		}
		if l.Index != index {
			return fmt.Errorf("block link stored under %d carries index %d", index, l.Index)
		}
		if len(c.links) > 0 && index <= c.latest {
			return fmt.Errorf("%w: %d after %d", ErrNonMonotonic, index, c.latest)
		}
		c.byIdx[index] = len(c.links)
		c.links = append(c.links, l)
		c.latest = index
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load block links: %w", err)
	}
	if len(c.links) > 0 {
		logs.Info("[BlockLink] loaded %d links, latest index %d", len(c.links), c.latest)
	}
	return c, nil
}

func (c *BlockLinkChain) AddBlockLink(index, dsIndex uint64, t types.BlockType, hash types.BlockHash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.links) > 0 && index <= c.latest {
		return fmt.Errorf("%w: %d after %d", ErrNonMonotonic, index, c.latest)
	}
	l := types.BlockLink{Index: index, DSIndex: dsIndex, Type: t, Hash: hash}
	if c.store != nil {
		data, err := wire.SetBlockLink(nil, 0, l)
		if err != nil {
			return err
		}
		if err := c.store.PutBlockLink(index, data); err != nil {
			return fmt.Errorf("persist block link %d: %w", index, err)
		}
	}
	c.byIdx[index] = len(c.links)
	c.links = append(c.links, l)
	c.latest = index
	logs.Debug("[BlockLink] add %d ds=%d type=%s hash=%s", index, dsIndex, t, hash.Hex())
	return nil
}

// GetLatestIndex 空链返回 0，新链接用 GetLatestIndex()+1
func (c *BlockLinkChain) GetLatestIndex() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// GetBlockLink 内存未命中时回落到存储
func (c *BlockLinkChain) GetBlockLink(index uint64) (types.BlockLink, error) {
	c.mu.RLock()
	i, ok := c.byIdx[index]
	var l types.BlockLink
	if ok {
		l = c.links[i]
	}
	c.mu.RUnlock()
	if ok {
		return l, nil
	}
	if c.store == nil {
		return types.BlockLink{}, fmt.Errorf("%w: %d", ErrLinkNotFound, index)
	}
	data, err := c.store.GetBlockLink(index)
	if err != nil {
		return types.BlockLink{}, fmt.Errorf("%w: %d: %v", ErrLinkNotFound, index, err)
	}
	return wire.GetBlockLink(data, 0)
}

func (c *BlockLinkChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.links)
}

// Links 按追加顺序返回拷贝
func (c *BlockLinkChain) Links() []types.BlockLink {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.BlockLink, len(c.links))
	copy(out, c.links)
	return out
}
