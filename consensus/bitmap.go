package consensus

import (
	"github.com/RoaringBitmap/roaring"
)

// BitmapFromBools 位图下标即委员会下标
func BitmapFromBools(bs []bool) *roaring.Bitmap {
	bm := roaring.New()
	for i, b := range bs {
		if b {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// BoolsFromBitmap 还原成长度为 n 的位图，超出 n 的下标丢弃
func BoolsFromBitmap(bm *roaring.Bitmap, n int) []bool {
	out := make([]bool, n)
	it := bm.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		if i < n {
			out[i] = true
		}
	}
	return out
}

func CountSigners(bs []bool) int {
	return int(BitmapFromBools(bs).GetCardinality())
}
