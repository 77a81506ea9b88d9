package pipeline

import (
	"sync"

	"github.com/iabetor/mindcast/internal/logger"
)

// State 表示一次编排运行所处的阶段。
type State int

const (
	// StateIdle：已创建，尚未 Start。
	StateIdle State = iota
	// StateRunning：正在逐个处理批次。
	StateRunning
	// StateCompleted：所有批次处理完毕，onComplete 已调用。
	StateCompleted
	// StateCancelled：被 Stop 或 context 取消，不再发出任何片段。
	StateCancelled
)

var stateNames = [...]string{
	"Idle",
	"Running",
	"Completed",
	"Cancelled",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal 报告该状态是否为终态。
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// StateMachine 管理线程安全的状态转换。
type StateMachine struct {
	mu       sync.RWMutex
	current  State
	onChange func(from, to State)
}

// NewStateMachine 创建一个初始状态为 Idle 的状态机。
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
	}
}

// SetOnChange 注册状态变化时的回调函数。
func (sm *StateMachine) SetOnChange(fn func(from, to State)) {
	sm.mu.Lock()
	sm.onChange = fn
	sm.mu.Unlock()
}

// Current 返回当前状态。
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition 尝试切换状态。只有合法的转换才会生效：
//
//	Idle    → Running    （Start）
//	Running → Completed  （循环自然结束）
//	Running → Cancelled  （Stop 或 context 取消）
//
// 终态不能再转换，编排器不可重启。
func (sm *StateMachine) Transition(to State) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !validTransition(sm.current, to) {
		logger.Debugf("[state] 非法转换 %s → %s", sm.current, to)
		return false
	}

	from := sm.current
	sm.current = to
	logger.Debugf("[state] %s → %s", from, to)

	if sm.onChange != nil {
		sm.onChange(from, to)
	}
	return true
}

// validTransition 检查状态转换是否合法。
func validTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to == StateCompleted || to == StateCancelled
	}
	return false
}
