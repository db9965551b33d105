package consensus

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"shardchain/types"
	"shardchain/utils"
)

const DefaultKeyCacheSize = 128

// KeyAggregator 按 (委员会, 位图) 缓存聚合公钥。
// 同一 DS epoch 内大多数区块的签名位图相同，命中率很高。
type KeyAggregator struct {
	cache *lru.Cache
}

func NewKeyAggregator(size int) (*KeyAggregator, error) {
	if size <= 0 {
		size = DefaultKeyCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &KeyAggregator{cache: c}, nil
}

func aggregateKeyID(committee []types.PubKey, bitmap []bool) types.Hash {
	parts := make([][]byte, 0, len(committee)+1)
	for i := range committee {
		parts = append(parts, committee[i][:])
	}
	parts = append(parts, utils.AppendBitVector(nil, bitmap))
	return utils.Sha256Fixed(parts...)
}

// Aggregate 聚合位图中置位成员的公钥；k 为 nil 时不走缓存
func (k *KeyAggregator) Aggregate(committee []types.PubKey, bitmap []bool) (types.PubKey, error) {
	if len(bitmap) != len(committee) {
		return types.PubKey{}, fmt.Errorf("%w: bitmap size %d, committee size %d", ErrParticipant, len(bitmap), len(committee))
	}
	var id types.Hash
	if k != nil {
		id = aggregateKeyID(committee, bitmap)
		if v, ok := k.cache.Get(id); ok {
			return v.(types.PubKey), nil
		}
	}

	bm := BitmapFromBools(bitmap)
	keys := make([]types.PubKey, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		keys = append(keys, committee[it.Next()])
	}
	agg, err := utils.AggregatePubKeys(keys)
	if err != nil {
		return types.PubKey{}, fmt.Errorf("%w: aggregate keys: %v", ErrSignature, err)
	}
	if k != nil {
		k.cache.Add(id, agg)
	}
	return agg, nil
}

func (k *KeyAggregator) Len() int {
	if k == nil {
		return 0
	}
	return k.cache.Len()
}

// Round2Message 第二轮签名对象：header ‖ CS1 ‖ BitVector(B1)
func Round2Message(header []byte, cs1 types.Signature, b1 []bool) []byte {
	msg := make([]byte, 0, len(header)+types.SignatureSize+utils.BitVectorSerializedSize(len(b1)))
	msg = append(msg, header...)
	msg = append(msg, cs1[:]...)
	return utils.AppendBitVector(msg, b1)
}

func checkBitmap(committee []types.PubKey, bitmap []bool, round string) error {
	if len(bitmap) != len(committee) {
		return fmt.Errorf("%w: committee size %d, %s size %d", ErrParticipant, len(committee), round, len(bitmap))
	}
	need := NumForConsensus(len(committee))
	if got := CountSigners(bitmap); got < need {
		return fmt.Errorf("%w: %s has %d signers, need %d", ErrThreshold, round, got, need)
	}
	return nil
}

// VerifyCoSignature 校验区块的第二轮聚合签名
func VerifyCoSignature(committee []types.PubKey, header []byte, cs types.CoSignatures, agg *KeyAggregator) error {
	if err := checkBitmap(committee, cs.B2, "B2"); err != nil {
		return err
	}
	key, err := agg.Aggregate(committee, cs.B2)
	if err != nil {
		return err
	}
	if !utils.Verify(Round2Message(header, cs.CS1, cs.B1), cs.CS2, key) {
		return fmt.Errorf("%w: CS2 does not verify", ErrSignature)
	}
	return nil
}

// VerifyRound1 校验 CS1 对区块头编码的签名
func VerifyRound1(committee []types.PubKey, header []byte, cs types.CoSignatures, agg *KeyAggregator) error {
	if err := checkBitmap(committee, cs.B1, "B1"); err != nil {
		return err
	}
	key, err := agg.Aggregate(committee, cs.B1)
	if err != nil {
		return err
	}
	if !utils.Verify(header, cs.CS1, key) {
		return fmt.Errorf("%w: CS1 does not verify", ErrSignature)
	}
	return nil
}

// aggregateRound leader 收齐部分签名后聚合，sigs 以委员会下标为键
func aggregateRound(size int, sigs map[int]types.Signature, round string) (types.Signature, []bool, error) {
	bitmap := make([]bool, size)
	ordered := make([]types.Signature, 0, len(sigs))
	for i := 0; i < size; i++ {
		if s, ok := sigs[i]; ok {
			bitmap[i] = true
			ordered = append(ordered, s)
		}
	}
	if len(ordered) != len(sigs) {
		return types.Signature{}, nil, fmt.Errorf("%w: %s signature index outside committee of %d", ErrParticipant, round, size)
	}
	if need := NumForConsensus(size); len(ordered) < need {
		return types.Signature{}, nil, fmt.Errorf("%w: %s has %d signers, need %d", ErrThreshold, round, len(ordered), need)
	}
	sig, err := utils.AggregateSignatures(ordered)
	if err != nil {
		return types.Signature{}, nil, err
	}
	return sig, bitmap, nil
}

// AggregateRound1 生成 CS1/B1
func AggregateRound1(size int, sigs map[int]types.Signature) (types.Signature, []bool, error) {
	return aggregateRound(size, sigs, "round 1")
}

// AggregateRound2 生成 CS2/B2，签名对象须是 Round2Message
func AggregateRound2(size int, sigs map[int]types.Signature) (types.Signature, []bool, error) {
	return aggregateRound(size, sigs, "round 2")
}

// CoSign 用本地持有的委员会私钥一次完成两轮签名。
// 只用于创世区块和本地集群，signers1/signers2 为各轮参与者下标。
func CoSign(header []byte, committee []types.KeyPair, signers1, signers2 []int) (types.CoSignatures, error) {
	var cs types.CoSignatures
	sign := func(msg []byte, who []int) (map[int]types.Signature, error) {
		out := make(map[int]types.Signature, len(who))
		for _, i := range who {
			if i < 0 || i >= len(committee) {
				return nil, fmt.Errorf("%w: signer %d", ErrParticipant, i)
			}
			s, err := utils.Sign(msg, committee[i].Priv)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	}

	r1, err := sign(header, signers1)
	if err != nil {
		return cs, err
	}
	if cs.CS1, cs.B1, err = AggregateRound1(len(committee), r1); err != nil {
		return cs, err
	}
	r2, err := sign(Round2Message(header, cs.CS1, cs.B1), signers2)
	if err != nil {
		return cs, err
	}
	if cs.CS2, cs.B2, err = AggregateRound2(len(committee), r2); err != nil {
		return cs, err
	}
	return cs, nil
}

// AllSigners 0..n-1
func AllSigners(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
