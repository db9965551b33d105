package crt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"shardchain/types"
	"shardchain/utils"
)

// NodeID 证书里标识节点的短串：sha256(BLS 公钥) 的前 20 字节
func NodeID(pub types.PubKey) string {
	h := utils.Sha256Fixed(pub[:])
	return fmt.Sprintf("%x", h[:20])
}

// NewNodeCertificate 生成节点自签名证书，Organization 写入 NodeID。
// hosts 里能解析成 IP 的进 IPAddresses，其余进 DNSNames。
func NewNodeCertificate(pub types.PubKey, hosts []string, validFor time.Duration) (tls.Certificate, error) {
	certPEM, keyPEM, err := newNodeCertificatePEM(pub, hosts, validFor)
	if err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}

func newNodeCertificatePEM(pub types.PubKey, hosts []string, validFor time.Duration) ([]byte, []byte, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{NodeID(pub)},
		},
		NotBefore:             now,
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else if h != "" {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
	if len(template.IPAddresses) == 0 && len(template.DNSNames) == 0 {
		template.DNSNames = []string{"localhost"}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, err
	}
	privBytes, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})
	return certPEM, keyPEM, nil
}

// LoadOrCreate 文件都存在时直接加载，否则生成新证书并写盘
func LoadOrCreate(certPath, keyPath string, pub types.PubKey, hosts []string) (tls.Certificate, error) {
	if _, err := os.Stat(certPath); err == nil {
		if _, err := os.Stat(keyPath); err == nil {
			return tls.LoadX509KeyPair(certPath, keyPath)
		}
	}
	certPEM, keyPEM, err := newNodeCertificatePEM(pub, hosts, 365*24*time.Hour)
	if err != nil {
		return tls.Certificate{}, err
	}
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return tls.Certificate{}, err
	}
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return tls.Certificate{}, err
	}
	return tls.X509KeyPair(certPEM, keyPEM)
}
