package types

import (
	"bytes"
	"cmp"
	"sort"
)

// PoWWinner 一个 DS PoW 胜出者
type PoWWinner struct {
	PubKey PubKey
	Peer   Peer
}

// DSPoWWinners PubKey->Peer 的有序映射，始终按公钥字节序排列，
// 遍历顺序即委员会轮换顺序。
type DSPoWWinners struct {
	entries []PoWWinner
}

func NewDSPoWWinners(ws ...PoWWinner) DSPoWWinners {
	var w DSPoWWinners
	for _, x := range ws {
		w.Set(x.PubKey, x.Peer)
	}
	return w
}

// Set 插入或覆盖
func (w *DSPoWWinners) Set(pk PubKey, peer Peer) {
	i := sort.Search(len(w.entries), func(i int) bool {
		return bytes.Compare(w.entries[i].PubKey[:], pk[:]) >= 0
	})
	if i < len(w.entries) && w.entries[i].PubKey == pk {
		w.entries[i].Peer = peer
		return
	}
	w.entries = append(w.entries, PoWWinner{})
	copy(w.entries[i+1:], w.entries[i:])
	w.entries[i] = PoWWinner{PubKey: pk, Peer: peer}
}

func (w DSPoWWinners) Get(pk PubKey) (Peer, bool) {
	i := sort.Search(len(w.entries), func(i int) bool {
		return bytes.Compare(w.entries[i].PubKey[:], pk[:]) >= 0
	})
	if i < len(w.entries) && w.entries[i].PubKey == pk {
		return w.entries[i].Peer, true
	}
	return Peer{}, false
}

func (w DSPoWWinners) Len() int { return len(w.entries) }

// Entries 返回拷贝，按公钥升序
func (w DSPoWWinners) Entries() []PoWWinner {
	out := make([]PoWWinner, len(w.entries))
	copy(out, w.entries)
	return out
}

func (w DSPoWWinners) Equal(o DSPoWWinners) bool {
	if len(w.entries) != len(o.entries) {
		return false
	}
	for i := range w.entries {
		if w.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

func (w DSPoWWinners) compare(o DSPoWWinners) int {
	n := min(len(w.entries), len(o.entries))
	for i := 0; i < n; i++ {
		a, b := w.entries[i], o.entries[i]
		if c := cmp.Or(a.PubKey.Compare(b.PubKey), comparePeer(a.Peer, b.Peer)); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(w.entries), len(o.entries))
}

func comparePeer(a, b Peer) int {
	return cmp.Or(bytes.Compare(a.IPAddress[:], b.IPAddress[:]), cmp.Compare(a.ListenPortHost, b.ListenPortHost))
}
