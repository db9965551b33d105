package db

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v2"

	"shardchain/interfaces"
	"shardchain/types"
)

var _ interfaces.Storage = (*Manager)(nil)

// 区块按 wire 编码原样存储，这里不解析

func (manager *Manager) PutDSBlock(num uint64, data []byte) error {
	return manager.put(KeyDSBlock(num), data)
}

func (manager *Manager) GetDSBlock(num uint64) ([]byte, error) {
	return manager.Get(KeyDSBlock(num))
}

func (manager *Manager) PutTxBlock(num uint64, data []byte) error {
	return manager.put(KeyTxBlock(num), data)
}

func (manager *Manager) GetTxBlock(num uint64) ([]byte, error) {
	return manager.Get(KeyTxBlock(num))
}

func (manager *Manager) PutVCBlock(hash types.BlockHash, data []byte) error {
	return manager.put(KeyVCBlock(hash), data)
}

func (manager *Manager) GetVCBlock(hash types.BlockHash) ([]byte, error) {
	return manager.Get(KeyVCBlock(hash))
}

func (manager *Manager) PutFallbackBlock(hash types.BlockHash, data []byte) error {
	return manager.put(KeyFallbackBlock(hash), data)
}

func (manager *Manager) GetFallbackBlock(hash types.BlockHash) ([]byte, error) {
	return manager.Get(KeyFallbackBlock(hash))
}

func (manager *Manager) PutBlockLink(index uint64, data []byte) error {
	return manager.put(KeyBlockLink(index), data)
}

func (manager *Manager) GetBlockLink(index uint64) ([]byte, error) {
	return manager.Get(KeyBlockLink(index))
}

// ScanBlockLinks 按 index 升序遍历已落盘的 block link，只看已经 flush 的数据
func (manager *Manager) ScanBlockLinks(fn func(index uint64, data []byte) error) error {
	manager.mu.RLock()
	db := manager.Db
	manager.mu.RUnlock()
	if db == nil {
		return ErrClosed
	}
	prefix := []byte(KeyBlockLinkPrefix())
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			index, err := strconv.ParseUint(key, 10, 64)
			if err != nil {
				return fmt.Errorf("bad block link key %q: %w", item.Key(), err)
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(index, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (manager *Manager) PutMetadata(m MetaType, value []byte) error {
	return manager.put(KeyMetadata(m), value)
}

func (manager *Manager) GetMetadata(m MetaType) ([]byte, error) {
	return manager.Get(KeyMetadata(m))
}

// PutMetadataUint64 / GetMetadataUint64 数值类元数据统一 8 字节大端
func (manager *Manager) PutMetadataUint64(m MetaType, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return manager.PutMetadata(m, b[:])
}

func (manager *Manager) GetMetadataUint64(m MetaType) (uint64, error) {
	b, err := manager.GetMetadata(m)
	if err != nil {
		return 0, err
	}
	if len(b) != 8 {
		return 0, fmt.Errorf("metadata %s: want 8 bytes, got %d", m, len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (manager *Manager) PutLatestActiveDSBlockNum(num uint64) error {
	return manager.PutMetadataUint64(MetaLatestActiveDSBlockNum, num)
}

func (manager *Manager) GetLatestActiveDSBlockNum() (uint64, error) {
	return manager.GetMetadataUint64(MetaLatestActiveDSBlockNum)
}

func (manager *Manager) PutLatestTxBlockNum(num uint64) error {
	return manager.PutMetadataUint64(MetaLatestTxBlockNum, num)
}

func (manager *Manager) GetLatestTxBlockNum() (uint64, error) {
	return manager.GetMetadataUint64(MetaLatestTxBlockNum)
}
