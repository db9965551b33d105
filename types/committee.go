package types

import (
	"errors"
	"fmt"
)

var ErrCommitteeOverflow = errors.New("committee: more members than capacity")

// CommitteeMember DS 委员会成员
type CommitteeMember struct {
	PubKey PubKey
	Peer   Peer
}

// Committee 定长有序序列，下标 0 是 leader。
// 不变式：Len() <= Cap()。
// 新成员只通过 Rotate 进入：推到队头，超出容量的从队尾弹出。
type Committee struct {
	members  []CommitteeMember
	capacity int
}

func NewCommittee(capacity int, members []CommitteeMember) (*Committee, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("committee: capacity must be positive, got %d", capacity)
	}
	if len(members) > capacity {
		return nil, fmt.Errorf("%w: %d > %d", ErrCommitteeOverflow, len(members), capacity)
	}
	c := &Committee{capacity: capacity, members: make([]CommitteeMember, len(members), capacity+1)}
	copy(c.members, members)
	return c, nil
}

func (c *Committee) Len() int { return len(c.members) }

func (c *Committee) Cap() int { return c.capacity }

func (c *Committee) At(i int) CommitteeMember { return c.members[i] }

func (c *Committee) Leader() (CommitteeMember, bool) {
	if len(c.members) == 0 {
		return CommitteeMember{}, false
	}
	return c.members[0], true
}

// Members 拷贝一份快照，调用方持有委员会锁时取
func (c *Committee) Members() []CommitteeMember {
	out := make([]CommitteeMember, len(c.members))
	copy(out, c.members)
	return out
}

func (c *Committee) PubKeys() []PubKey {
	out := make([]PubKey, len(c.members))
	for i, m := range c.members {
		out[i] = m.PubKey
	}
	return out
}

// Index 找不到返回 -1
func (c *Committee) Index(pk PubKey) int {
	for i, m := range c.members {
		if m.PubKey == pk {
			return i
		}
	}
	return -1
}

// Rotate 依次把 winners 推到队头，超出容量从队尾弹出。
// winners 的最后一个最终位于下标 0。
func (c *Committee) Rotate(winners []CommitteeMember) error {
	if len(winners) > c.capacity {
		return fmt.Errorf("%w: %d winners for capacity %d", ErrCommitteeOverflow, len(winners), c.capacity)
	}
	for _, w := range winners {
		c.members = append(c.members, CommitteeMember{})
		copy(c.members[1:], c.members)
		c.members[0] = w
		if len(c.members) > c.capacity {
			c.members = c.members[:c.capacity]
		}
	}
	return nil
}

// RotateLeaderToTail view change 后把当前 leader 依次挪到队尾，共 n 次
func (c *Committee) RotateLeaderToTail(n int) {
	size := len(c.members)
	if size == 0 || n <= 0 {
		return
	}
	n %= size
	rotated := make([]CommitteeMember, 0, cap(c.members))
	rotated = append(rotated, c.members[n:]...)
	rotated = append(rotated, c.members[:n]...)
	c.members = rotated
}

// SetPeer 用于把自己那一项的 Peer 清零，避免给自己发消息
func (c *Committee) SetPeer(i int, p Peer) {
	c.members[i].Peer = p
}
