package types

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
)

const PeerSize = 16 + 4

// Peer 节点网络信息，IP 统一存成 16 字节
type Peer struct {
	IPAddress      [16]byte
	ListenPortHost uint32
}

func NewPeer(ip net.IP, port uint32) Peer {
	var p Peer
	if ip16 := ip.To16(); ip16 != nil {
		copy(p.IPAddress[:], ip16)
	}
	p.ListenPortHost = port
	return p
}

func (p Peer) IsZero() bool { return p == Peer{} }

func (p Peer) IP() net.IP {
	ip := make(net.IP, 16)
	copy(ip, p.IPAddress[:])
	return ip
}

func (p Peer) String() string {
	if p.IsZero() {
		return "<empty peer>"
	}
	return net.JoinHostPort(p.IP().String(), strconv.FormatUint(uint64(p.ListenPortHost), 10))
}

// Bytes 16 字节 IP + 4 字节大端端口
func (p Peer) Bytes() []byte {
	b := make([]byte, PeerSize)
	copy(b, p.IPAddress[:])
	binary.BigEndian.PutUint32(b[16:], p.ListenPortHost)
	return b
}

func PeerFromBytes(b []byte) (Peer, error) {
	var p Peer
	if len(b) != PeerSize {
		return p, fmt.Errorf("peer: want %d bytes, got %d", PeerSize, len(b))
	}
	copy(p.IPAddress[:], b[:16])
	p.ListenPortHost = binary.BigEndian.Uint32(b[16:])
	return p, nil
}
