package wire

import "fmt"

// 消息头两个字节：消息类别 + 指令

type MessageType uint8

const (
	MsgPeer MessageType = iota
	MsgDirectory
	MsgNode
	MsgConsensusUser
	MsgLookup
)

// NodeInstruction 节点消息的指令字节
type NodeInstruction uint8

const (
	InstrStartPoW NodeInstruction = iota
	InstrDSBlock
	InstrSubmitTransaction
	InstrMicroBlockConsensus
	InstrFinalBlock
	InstrMBnForwardTransaction
	InstrVCBlock
	InstrDoRejoin
	InstrForwardTxnPacket
	InstrUnusedForwardTxnBlock
	InstrFallbackConsensus
	InstrFallbackBlock
)

func (i NodeInstruction) String() string {
	switch i {
	case InstrStartPoW:
		return "STARTPOW"
	case InstrDSBlock:
		return "DSBLOCK"
	case InstrSubmitTransaction:
		return "SUBMITTRANSACTION"
	case InstrMicroBlockConsensus:
		return "MICROBLOCKCONSENSUS"
	case InstrFinalBlock:
		return "FINALBLOCK"
	case InstrMBnForwardTransaction:
		return "MBNFORWARDTRANSACTION"
	case InstrVCBlock:
		return "VCBLOCK"
	case InstrDoRejoin:
		return "DOREJOIN"
	case InstrForwardTxnPacket:
		return "FORWARDTXNPACKET"
	case InstrFallbackConsensus:
		return "FALLBACKCONSENSUS"
	case InstrFallbackBlock:
		return "FALLBACKBLOCK"
	}
	return fmt.Sprintf("INSTR(%d)", uint8(i))
}

// FrameHeaderSize 消息体从这个偏移开始
const FrameHeaderSize = 2

// FrameMessage 生成 [type][instr][body...]
func FrameMessage(t MessageType, instr uint8, body []byte) []byte {
	out := make([]byte, 0, FrameHeaderSize+len(body))
	out = append(out, byte(t), instr)
	return append(out, body...)
}

// NewFrame 只写帧头，消息体由 SetXxx(buf, FrameHeaderSize, ...) 追加
func NewFrame(t MessageType, instr uint8) []byte {
	return []byte{byte(t), instr}
}

// ParseFrame 返回类别、指令；消息体偏移固定为 FrameHeaderSize
func ParseFrame(msg []byte) (MessageType, uint8, error) {
	if len(msg) < FrameHeaderSize {
		return 0, 0, fmt.Errorf("%w: frame of %d bytes", ErrDecode, len(msg))
	}
	return MessageType(msg[0]), msg[1], nil
}
