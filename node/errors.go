package node

import (
	"errors"
	"fmt"
)

var (
	ErrSequencing = errors.New("node: block out of sequence")
	// 重复区块直接丢弃
	ErrDuplicateBlock = fmt.Errorf("%w: duplicate block", ErrSequencing)
	// 缺块目前不补，只记录
	ErrMissingBlocks = fmt.Errorf("%w: missing blocks", ErrSequencing)

	ErrHashMismatch     = errors.New("node: hash mismatch")
	ErrIdentityNotFound = errors.New("node: self not found in sharding structure")
	ErrState            = errors.New("node: message not expected in current state")
)
