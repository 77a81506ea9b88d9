package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/mindcast/internal/audio"
	"github.com/iabetor/mindcast/internal/logger"
	"github.com/iabetor/mindcast/internal/metrics"
	"github.com/iabetor/mindcast/internal/tts"
)

// DefaultThrottle 是每个批次成功发出后的默认等待时间。
const DefaultThrottle = time.Second

// tailChars 是传给下一批次的衔接上下文的最大字符数。
const tailChars = 200

// ErrAlreadyStarted 表示编排器已经运行过，不能再次 Start。
var ErrAlreadyStarted = errors.New("orchestrator already started")

// Batch 是脚本中的一段旁白文本及其附带指令。Text 为空表示占位，直接跳过。
type Batch struct {
	Text         string              `yaml:"text" json:"text"`
	Instructions []audio.Instruction `yaml:"instructions,omitempty" json:"instructions,omitempty"`
}

// Synthesizer 把一段文本合成为音频。*tts.Adapter 实现了该接口。
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string, cont *tts.Continuity) (*tts.Result, error)
}

// Options 编排器可选参数。
type Options struct {
	// Throttle 为 0 时使用 DefaultThrottle，小于 0 表示不等待。
	Throttle   time.Duration
	Normalizer *audio.Normalizer
	Metrics    *metrics.Metrics
	// Cancel 为 nil 时编排器自己创建一个。
	Cancel *CancelToken
}

// Orchestrator 串行处理批次：合成 → 规整 → 按序发出。
// 同一时刻只有一个批次在处理，顺序由循环本身保证。
// 每个实例只能运行一次。
type Orchestrator struct {
	synth      Synthesizer
	normalizer *audio.Normalizer
	metrics    *metrics.Metrics
	throttle   time.Duration

	cancel *CancelToken
	state  *StateMachine
	done   chan struct{}
}

// NewOrchestrator 创建编排器。
func NewOrchestrator(synth Synthesizer, opts Options) *Orchestrator {
	throttle := opts.Throttle
	switch {
	case throttle == 0:
		throttle = DefaultThrottle
	case throttle < 0:
		throttle = 0
	}
	if opts.Normalizer == nil {
		opts.Normalizer = audio.NewNormalizer(audio.DefaultFormat())
	}
	if opts.Cancel == nil {
		opts.Cancel = NewCancelToken()
	}

	return &Orchestrator{
		synth:      synth,
		normalizer: opts.Normalizer,
		metrics:    opts.Metrics,
		throttle:   throttle,
		cancel:     opts.Cancel,
		state:      NewStateMachine(),
		done:       make(chan struct{}),
	}
}

// Start 在后台 goroutine 中开始处理，立即返回。
// onSegmentReady 按批次序号升序调用，每个成功的批次至多一次；
// onComplete 仅在循环自然结束时调用一次，取消后不会调用。
func (o *Orchestrator) Start(ctx context.Context, batches []Batch, voice string,
	onSegmentReady func([]audio.Segment), onComplete func()) error {
	if !o.state.Transition(StateRunning) {
		return ErrAlreadyStarted
	}
	if onSegmentReady == nil {
		onSegmentReady = func([]audio.Segment) {}
	}
	if onComplete == nil {
		onComplete = func() {}
	}

	go o.run(ctx, batches, voice, onSegmentReady, onComplete)
	return nil
}

// Stop 设置取消信号。正在进行的合成调用不会被打断，但其结果会被丢弃。
func (o *Orchestrator) Stop() {
	o.cancel.Cancel()
}

// Done 返回循环退出时关闭的 channel。
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// State 返回当前运行状态。
func (o *Orchestrator) State() State {
	return o.state.Current()
}

func (o *Orchestrator) run(ctx context.Context, batches []Batch, voice string,
	onSegmentReady func([]audio.Segment), onComplete func()) {
	defer close(o.done)

	runID := uuid.NewString()
	total := len(batches)
	logger.Infof("[pipeline] run=%s 开始处理 %d 个批次，音色=%s", runID, total, voice)

	var (
		prevText string
		emitted  int
	)

	for i, b := range batches {
		// 1. 已取消：不再处理
		if o.stopped(ctx) {
			o.finishCancelled(runID, i)
			return
		}

		// 2. 空文本是占位，不调用合成
		if strings.TrimSpace(b.Text) == "" {
			logger.Debugf("[pipeline] run=%s 批次 %d 文本为空，跳过", runID, i)
			o.metrics.IncBatch("skipped")
			continue
		}

		cont := &tts.Continuity{
			ChunkIndex:        i,
			TotalChunks:       total,
			PreviousChunkTail: tail(prevText, tailChars),
		}
		prevText = b.Text

		// 3-4. 合成并规整
		segments, err := o.process(ctx, i, b, voice, cont)

		// 5. 结果算出来后再检查一次，取消后丢弃
		if o.stopped(ctx) {
			if err == nil {
				logger.Infof("[pipeline] run=%s 批次 %d 已取消，丢弃结果", runID, i)
				o.metrics.IncBatch("discarded")
			}
			o.finishCancelled(runID, i)
			return
		}

		// 8. 单个批次失败不影响整个会话
		if err != nil {
			logger.Warnf("[pipeline] run=%s 批次 %d 失败，跳过: %v", runID, i, err)
			o.metrics.IncBatch("failed")
			continue
		}

		// 6. 发出
		onSegmentReady(segments)
		emitted++
		o.metrics.IncBatch("emitted")
		for _, seg := range segments {
			o.metrics.ObserveSegment(seg.Duration)
		}

		// 7. 限流等待，最后一个批次之后不等
		if i < total-1 && !o.wait(ctx) {
			o.finishCancelled(runID, i+1)
			return
		}
	}

	if o.stopped(ctx) {
		o.finishCancelled(runID, total)
		return
	}

	o.state.Transition(StateCompleted)
	logger.Infof("[pipeline] run=%s 完成，共发出 %d/%d 个批次", runID, emitted, total)
	onComplete()
}

// process 合成一个批次并规整为片段，把文本写到每个片段上。
func (o *Orchestrator) process(ctx context.Context, index int, b Batch, voice string, cont *tts.Continuity) ([]audio.Segment, error) {
	res, err := o.synth.Synthesize(ctx, b.Text, voice, cont)
	if err != nil {
		return nil, err
	}

	segments, err := o.normalizer.Normalize(res.Audio, index, b.Instructions, res.ContainerHint)
	if err != nil {
		return nil, err
	}
	for k := range segments {
		segments[k].Text = b.Text
	}

	logger.Debugf("[pipeline] 批次 %d 合成完成 (provider=%s, %.2fs)", index, res.Provider, segments[0].Duration)
	return segments, nil
}

// wait 等待限流间隔，期间被取消则返回 false。
func (o *Orchestrator) wait(ctx context.Context) bool {
	if o.throttle <= 0 {
		return !o.stopped(ctx)
	}
	t := time.NewTimer(o.throttle)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-o.cancel.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func (o *Orchestrator) stopped(ctx context.Context) bool {
	return o.cancel.Cancelled() || ctx.Err() != nil
}

func (o *Orchestrator) finishCancelled(runID string, next int) {
	o.state.Transition(StateCancelled)
	logger.Infof("[pipeline] run=%s 已取消，批次 %d 及之后不再处理", runID, next)
}

// tail 返回 s 末尾最多 n 个字符。
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
