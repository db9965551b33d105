package node

import "fmt"

// State 分片节点状态
type State int

const (
	StatePoWSubmission State = iota
	StateWaitingDSBlock
	StateMicroBlockConsensusPrep
	StateMicroBlockConsensus
	StateWaitingFinalBlock
	StateWaitingFallbackBlock
	StateFallbackConsensusPrep
	StateFallbackConsensus
	StateSync
)

func (s State) String() string {
	switch s {
	case StatePoWSubmission:
		return "POW_SUBMISSION"
	case StateWaitingDSBlock:
		return "WAITING_DSBLOCK"
	case StateMicroBlockConsensusPrep:
		return "MICROBLOCK_CONSENSUS_PREP"
	case StateMicroBlockConsensus:
		return "MICROBLOCK_CONSENSUS"
	case StateWaitingFinalBlock:
		return "WAITING_FINALBLOCK"
	case StateWaitingFallbackBlock:
		return "WAITING_FALLBACKBLOCK"
	case StateFallbackConsensusPrep:
		return "FALLBACK_CONSENSUS_PREP"
	case StateFallbackConsensus:
		return "FALLBACK_CONSENSUS"
	case StateSync:
		return "SYNC"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Action 收到某类消息时要做的动作，用于状态检查
type Action int

const (
	ActionProcessDSBlock Action = iota
	ActionProcessFinalBlock
	ActionProcessFallbackBlock
)

func (a Action) String() string {
	switch a {
	case ActionProcessDSBlock:
		return "PROCESS_DSBLOCK"
	case ActionProcessFinalBlock:
		return "PROCESS_FINALBLOCK"
	case ActionProcessFallbackBlock:
		return "PROCESS_FALLBACKBLOCK"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

var allowedStates = map[Action][]State{
	ActionProcessDSBlock: {StatePoWSubmission, StateWaitingDSBlock},
	ActionProcessFinalBlock: {
		StateMicroBlockConsensusPrep, StateMicroBlockConsensus, StateWaitingFinalBlock,
	},
	ActionProcessFallbackBlock: {
		StateMicroBlockConsensusPrep, StateMicroBlockConsensus, StateWaitingFinalBlock,
		StateWaitingFallbackBlock, StateFallbackConsensusPrep, StateFallbackConsensus,
	},
}

// Phase DS 区块接收流程当前所处阶段
type Phase int

const (
	PhaseAwaitingDSBlock Phase = iota
	PhaseValidatingDSBlock
	PhaseApplyingViewChanges
	PhaseVerifyingCoSignature
	PhaseCommittingToChain
	PhaseRoleTransition
	PhaseSteadyStateShard
	PhaseSteadyStateDS
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingDSBlock:
		return "AwaitingDSBlock"
	case PhaseValidatingDSBlock:
		return "ValidatingDSBlock"
	case PhaseApplyingViewChanges:
		return "ApplyingViewChanges"
	case PhaseVerifyingCoSignature:
		return "VerifyingCoSignature"
	case PhaseCommittingToChain:
		return "CommittingToChain"
	case PhaseRoleTransition:
		return "RoleTransition"
	case PhaseSteadyStateShard:
		return "SteadyState(Shard)"
	case PhaseSteadyStateDS:
		return "SteadyState(DS)"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Mode DS 角色
type Mode int

const (
	ModeIdle Mode = iota
	ModePrimaryDS
	ModeBackupDS
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModePrimaryDS:
		return "PRIMARY_DS"
	case ModeBackupDS:
		return "BACKUP_DS"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}
