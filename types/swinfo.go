package types

import (
	"cmp"
	"encoding/binary"
	"fmt"
)

const SWInfoSize = 4 + 4 + 4 + 8 + 4

// SWInfo 软件版本描述，DS 区块头里携带
type SWInfo struct {
	Major     uint32
	Minor     uint32
	Fix       uint32
	UpgradeDS uint64 // 在哪个 DS 区块生效
	Commit    uint32
}

func (s SWInfo) String() string {
	return fmt.Sprintf("v%d.%d.%d@ds%d(%08x)", s.Major, s.Minor, s.Fix, s.UpgradeDS, s.Commit)
}

func (s SWInfo) Bytes() []byte {
	b := make([]byte, SWInfoSize)
	binary.BigEndian.PutUint32(b[0:], s.Major)
	binary.BigEndian.PutUint32(b[4:], s.Minor)
	binary.BigEndian.PutUint32(b[8:], s.Fix)
	binary.BigEndian.PutUint64(b[12:], s.UpgradeDS)
	binary.BigEndian.PutUint32(b[20:], s.Commit)
	return b
}

func SWInfoFromBytes(b []byte) (SWInfo, error) {
	if len(b) != SWInfoSize {
		return SWInfo{}, fmt.Errorf("swinfo: want %d bytes, got %d", SWInfoSize, len(b))
	}
	return SWInfo{
		Major:     binary.BigEndian.Uint32(b[0:]),
		Minor:     binary.BigEndian.Uint32(b[4:]),
		Fix:       binary.BigEndian.Uint32(b[8:]),
		UpgradeDS: binary.BigEndian.Uint64(b[12:]),
		Commit:    binary.BigEndian.Uint32(b[20:]),
	}, nil
}

func (s SWInfo) compare(o SWInfo) int {
	return cmp.Or(
		cmp.Compare(s.Major, o.Major),
		cmp.Compare(s.Minor, o.Minor),
		cmp.Compare(s.Fix, o.Fix),
		cmp.Compare(s.UpgradeDS, o.UpgradeDS),
		cmp.Compare(s.Commit, o.Commit),
	)
}
