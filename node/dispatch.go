package node

import (
	"errors"
	"fmt"

	"shardchain/types"
	"shardchain/wire"
)

var ErrUnknownInstruction = errors.New("node: unknown instruction")

// Dispatch 按消息头路由节点消息。失败只记录并丢弃，错误返回给调用方用于统计。
func (n *Node) Dispatch(msg []byte, from types.Peer) error {
	t, instr, err := wire.ParseFrame(msg)
	if err != nil {
		n.Logger.Warn("[Dispatch] bad frame from %s: %v", from, err)
		return err
	}
	if t != wire.MsgNode {
		n.Logger.Debug("[Dispatch] message type %d from %s is not for node", t, from)
		return fmt.Errorf("%w: message type %d", ErrUnknownInstruction, t)
	}

	ins := wire.NodeInstruction(instr)
	switch ins {
	case wire.InstrDSBlock:
		err = n.ProcessVCDSBlocksMessage(msg, wire.FrameHeaderSize, from)
	case wire.InstrVCBlock:
		err = n.ProcessVCBlock(msg, wire.FrameHeaderSize, from)
	case wire.InstrFallbackBlock:
		err = n.ProcessFallbackBlock(msg, wire.FrameHeaderSize, from)
	case wire.InstrFinalBlock:
		err = n.ProcessFinalBlock(msg, wire.FrameHeaderSize, from)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownInstruction, ins)
	}

	switch {
	case err == nil:
		n.Logger.Trace("[Dispatch] %s from %s done", ins, from)
	case errors.Is(err, ErrDuplicateBlock):
		n.Logger.Debug("[Dispatch] %s from %s dropped: %v", ins, from, err)
	default:
		n.Logger.Warn("[Dispatch] %s from %s dropped: %v", ins, from, err)
	}
	return err
}
