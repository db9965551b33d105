package consensus

import (
	"math"
	"sync/atomic"
)

const DefaultToleranceFraction = 0.667

// 浮点乘法误差，避免 0.7*10 这类结果被向上取整多一位
const thresholdEpsilon = 1e-9

var toleranceBits atomic.Uint64

func init() {
	toleranceBits.Store(math.Float64bits(DefaultToleranceFraction))
}

// SetToleranceFraction 启动时由配置设置
func SetToleranceFraction(f float64) {
	toleranceBits.Store(math.Float64bits(f))
}

func ToleranceFraction() float64 {
	return math.Float64frombits(toleranceBits.Load())
}

// NumForConsensus 达成共识所需最少签名人数 ceil(n * tolerance)
func NumForConsensus(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n)*ToleranceFraction() - thresholdEpsilon))
}
