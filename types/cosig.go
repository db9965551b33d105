package types

// CoSignatures 两轮聚合签名
// CS1/B1: 第一轮（commit）聚合签名和参与者位图
// CS2/B2: 第二轮（response）聚合签名和参与者位图
type CoSignatures struct {
	CS1 Signature
	B1  []bool
	CS2 Signature
	B2  []bool
}

func (c CoSignatures) Clone() CoSignatures {
	out := CoSignatures{CS1: c.CS1, CS2: c.CS2}
	out.B1 = append([]bool(nil), c.B1...)
	out.B2 = append([]bool(nil), c.B2...)
	return out
}

func (c CoSignatures) Equal(o CoSignatures) bool {
	return c.CS1 == o.CS1 && c.CS2 == o.CS2 && boolsEqual(c.B1, o.B1) && boolsEqual(c.B2, o.B2)
}

// CountB2 第二轮签名人数
func (c CoSignatures) CountB2() int {
	n := 0
	for _, b := range c.B2 {
		if b {
			n++
		}
	}
	return n
}

func boolsEqual(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
