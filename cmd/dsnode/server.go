package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shardchain/logs"
	"shardchain/node"
	"shardchain/sender"
	"shardchain/stats"
	"shardchain/types"
	"shardchain/wire"
)

// dispatcher 接收端只依赖 Dispatch
type dispatcher interface {
	Dispatch(msg []byte, from types.Peer) error
}

// messageHandler POST /message：读取整条消息交给节点，结果只影响统计，
// 对端总是收到 200，避免发送端对被拒绝的区块重试
type messageHandler struct {
	node    dispatcher
	maxSize int64
	counts  *stats.Stats
	latency *stats.LatencyRecorder
	logger  logs.Logger
}

func instrName(msg []byte) string {
	t, instr, err := wire.ParseFrame(msg)
	if err != nil {
		return "BADFRAME"
	}
	if t != wire.MsgNode {
		return fmt.Sprintf("TYPE(%d)", t)
	}
	return wire.NodeInstruction(instr).String()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, node.ErrDuplicateBlock):
		return "duplicate"
	case errors.Is(err, node.ErrState):
		return "state"
	default:
		return "rejected"
	}
}

func (h *messageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxSize))
	if err != nil {
		h.counts.Record("READ/error")
		http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
		return
	}

	from, err := parsePeer(r.RemoteAddr)
	if err != nil {
		h.logger.Debug("[Server] unparsable remote %s: %v", r.RemoteAddr, err)
	}
	name := instrName(body)
	start := time.Now()
	err = h.node.Dispatch(body, from)
	h.latency.Since(name, start)
	h.counts.Record(name + "/" + outcome(err))
	w.WriteHeader(http.StatusOK)
}

func newMux(h *messageHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(sender.MessagePath, h)
	return mux
}
