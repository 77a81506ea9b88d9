package pipeline

import "sync"

// CancelToken 是一次运行的取消信号，只能从未取消变为已取消。
// 编排器在批次之间轮询它，不会打断正在进行的合成调用。
type CancelToken struct {
	once sync.Once
	ch   chan struct{}
}

// NewCancelToken 创建一个未取消的令牌。
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel 设置取消信号，可重复调用。
func (t *CancelToken) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Cancelled 报告令牌是否已取消。
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done 返回取消时关闭的 channel。
func (t *CancelToken) Done() <-chan struct{} {
	return t.ch
}
