package sender

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"shardchain/config"
	"shardchain/types"
)

// MessagePath 节点接收帧消息的 HTTP 路径
const MessagePath = "/message"

// Http3Transport 生产环境用的 Transporter，消息体就是 wire 帧
type Http3Transport struct {
	client *http.Client
}

func NewHttp3Transport(cfg *config.Config) *Http3Transport {
	return &Http3Transport{client: createHttp3Client(cfg)}
}

func createHttp3Client(cfg *config.Config) *http.Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	tlsCfg := &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS13,
		MaxVersion:         tls.VersionTLS13,
		ClientSessionCache: tls.NewLRUClientSessionCache(128),
		NextProtos:         []string{"h3"},
	}

	tr := &http3.Transport{
		TLSClientConfig: tlsCfg,
		QUICConfig: &quic.Config{
			KeepAlivePeriod: 10 * time.Second,
			MaxIdleTimeout:  5 * time.Minute,
		},
	}

	return &http.Client{
		Transport: tr,
		Timeout:   cfg.Sender.ConnectionTimeout,
	}
}

func (t *Http3Transport) Send(ctx context.Context, peer types.Peer, msg []byte) error {
	url := "https://" + peer.String() + MessagePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &HTTPStatusError{StatusCode: resp.StatusCode, Target: peer.String()}
	}
	return nil
}

// HTTPStatusError 对端返回非 200
type HTTPStatusError struct {
	StatusCode int
	Target     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("send to %s: http status %d", e.Target, e.StatusCode)
}
