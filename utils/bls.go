package utils

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"

	"shardchain/logs"
	"shardchain/types"
)

const signCacheSize = 256

var (
	suite = bn256.NewSuite()

	ErrEmptyKeySet  = errors.New("bls: no keys to aggregate")
	ErrInvalidPoint = errors.New("bls: invalid point encoding")
)

// 签名缓存：同一私钥对同一消息只签一次（leader 重发公告时命中）
var (
	signCache     *lru.Cache
	signCacheOnce sync.Once
)

func getSignCache() *lru.Cache {
	signCacheOnce.Do(func() {
		c, err := lru.New(signCacheSize)
		if err != nil {
			logs.Error("init bls sign cache: %v", err)
			return
		}
		signCache = c
	})
	return signCache
}

// GenerateKeyPair 随机生成一对 BLS 密钥
func GenerateKeyPair() (types.KeyPair, error) {
	x, X := bls.NewKeyPair(suite, random.New())
	return keyPairFrom(x, X)
}

// KeyPairFromSeed 对种子做 sha256 得到私钥标量，测试和本地集群用
func KeyPairFromSeed(seed []byte) (types.KeyPair, error) {
	h := sha256.Sum256(seed)
	x := suite.G2().Scalar().SetBytes(h[:])
	X := suite.G2().Point().Mul(x, nil)
	return keyPairFrom(x, X)
}

func keyPairFrom(x kyber.Scalar, X kyber.Point) (types.KeyPair, error) {
	var kp types.KeyPair
	xb, err := x.MarshalBinary()
	if err != nil {
		return kp, fmt.Errorf("marshal private key: %w", err)
	}
	Xb, err := X.MarshalBinary()
	if err != nil {
		return kp, fmt.Errorf("marshal public key: %w", err)
	}
	if len(xb) != types.PrivKeySize || len(Xb) != types.PubKeySize {
		return kp, fmt.Errorf("unexpected key sizes %d/%d", len(xb), len(Xb))
	}
	copy(kp.Priv[:], xb)
	copy(kp.Pub[:], Xb)
	return kp, nil
}

func scalarOf(priv types.PrivKey) kyber.Scalar {
	return suite.G2().Scalar().SetBytes(priv[:])
}

func pointOf(pub types.PubKey) (kyber.Point, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(pub[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return p, nil
}

// Sign 对消息做 BLS 签名
func Sign(msg []byte, priv types.PrivKey) (types.Signature, error) {
	var sig types.Signature
	raw, err := bls.Sign(suite, scalarOf(priv), msg)
	if err != nil {
		return sig, err
	}
	if len(raw) != types.SignatureSize {
		return sig, fmt.Errorf("unexpected signature size %d", len(raw))
	}
	copy(sig[:], raw)
	return sig, nil
}

// SignWithCache 同 Sign，但命中缓存时直接返回
func SignWithCache(msg []byte, kp types.KeyPair) (types.Signature, error) {
	cache := getSignCache()
	digest := sha256.Sum256(msg)
	key := string(kp.Pub[:]) + string(digest[:])
	if cache != nil {
		if v, ok := cache.Get(key); ok {
			return v.(types.Signature), nil
		}
	}
	sig, err := Sign(msg, kp.Priv)
	if err != nil {
		return sig, err
	}
	if cache != nil {
		cache.Add(key, sig)
	}
	return sig, nil
}

// Verify 验证签名；公钥解析失败也当作验证失败
func Verify(msg []byte, sig types.Signature, pub types.PubKey) bool {
	X, err := pointOf(pub)
	if err != nil {
		logs.Debug("[BLS] bad pubkey: %v", err)
		return false
	}
	return bls.Verify(suite, X, msg, sig[:]) == nil
}

// AggregatePubKeys 聚合公钥，顺序无关
func AggregatePubKeys(keys []types.PubKey) (types.PubKey, error) {
	var out types.PubKey
	if len(keys) == 0 {
		return out, ErrEmptyKeySet
	}
	points := make([]kyber.Point, 0, len(keys))
	for _, k := range keys {
		p, err := pointOf(k)
		if err != nil {
			return out, err
		}
		points = append(points, p)
	}
	agg := bls.AggregatePublicKeys(suite, points...)
	b, err := agg.MarshalBinary()
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// AggregateSignatures 聚合签名
func AggregateSignatures(sigs []types.Signature) (types.Signature, error) {
	var out types.Signature
	if len(sigs) == 0 {
		return out, ErrEmptyKeySet
	}
	raw := make([][]byte, len(sigs))
	for i := range sigs {
		raw[i] = sigs[i][:]
	}
	agg, err := bls.AggregateSignatures(suite, raw...)
	if err != nil {
		logs.Error("failed to aggregate signatures: %v", err)
		return out, err
	}
	copy(out[:], agg)
	return out, nil
}
