package tts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/mindcast/internal/logger"
	"github.com/iabetor/mindcast/internal/metrics"
)

// AdapterConfig 控制主/备供应商的超时、重试和模型选择。
type AdapterConfig struct {
	PrimaryTimeout   time.Duration
	SecondaryTimeout time.Duration
	// MaxAttempts 备用供应商的总尝试次数（含第一次）。
	MaxAttempts int
	// BackoffBase 第 i 次重试前等待 BackoffBase * 2^(i-1)。
	BackoffBase time.Duration
	// RateLimitBackoff 上一次被限流时额外等待的固定时间。
	RateLimitBackoff time.Duration
	// FastModel 用于前几次尝试，QualityModel 用于最后一次。
	FastModel    string
	QualityModel string
}

// DefaultAdapterConfig 返回默认策略：主 15s；备用 30s × 3 次，1s/2s 退避，限流额外 10s。
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		PrimaryTimeout:   15 * time.Second,
		SecondaryTimeout: 30 * time.Second,
		MaxAttempts:      3,
		BackoffBase:      time.Second,
		RateLimitBackoff: 10 * time.Second,
	}
}

// Adapter 封装供应商选择策略：
// 先尝试主供应商一次（如已配置），失败则转备用供应商并按指数退避重试。
type Adapter struct {
	primary   Provider // 可为 nil
	secondary Provider
	cfg       AdapterConfig
	metrics   *metrics.Metrics

	// sleep 可在测试中替换
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAdapter 创建合成适配器。primary 为 nil 时直接使用 secondary。
func NewAdapter(primary, secondary Provider, cfg AdapterConfig, m *metrics.Metrics) *Adapter {
	def := DefaultAdapterConfig()
	if cfg.PrimaryTimeout <= 0 {
		cfg.PrimaryTimeout = def.PrimaryTimeout
	}
	if cfg.SecondaryTimeout <= 0 {
		cfg.SecondaryTimeout = def.SecondaryTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.RateLimitBackoff < 0 {
		cfg.RateLimitBackoff = 0
	}

	return &Adapter{
		primary:   primary,
		secondary: secondary,
		cfg:       cfg,
		metrics:   m,
		sleep:     sleepContext,
	}
}

// Synthesize 预处理文本并按策略合成，只有所有路径都失败才返回错误。
func (a *Adapter) Synthesize(ctx context.Context, text, voice string, cont *Continuity) (*Result, error) {
	prepared := PrepareText(text)
	if prepared == "" {
		return nil, fmt.Errorf("[tts] 预处理后文本为空: %q", text)
	}
	req := Request{Text: prepared, Voice: voice, Continuity: cont}

	if a.primary != nil {
		res, err := a.attempt(ctx, a.primary, req, a.cfg.PrimaryTimeout)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("[tts] 合成被取消: %w: %v", ErrTransportAbort, ctx.Err())
		}
		a.metrics.IncFallback()
		logger.Warnf("[tts] 主供应商 %s 失败，切换到 %s: %v", a.primary.Name(), a.secondary.Name(), err)
	}

	var lastErr error
	for attempt := 0; attempt < a.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := a.Backoff(attempt, lastErr)
			logger.Infof("[tts] %s 第 %d 次重试，等待 %s", a.secondary.Name(), attempt, delay)
			if err := a.sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("[tts] 等待重试时被取消: %w: %v", ErrTransportAbort, err)
			}
		}

		req.Model = a.cfg.FastModel
		if attempt == a.cfg.MaxAttempts-1 && a.cfg.QualityModel != "" {
			req.Model = a.cfg.QualityModel
		}

		res, err := a.attempt(ctx, a.secondary, req, a.cfg.SecondaryTimeout)
		if err == nil {
			return res, nil
		}
		lastErr = err
		logger.Warnf("[tts] %s 第 %d/%d 次尝试失败 (model=%s): %v",
			a.secondary.Name(), attempt+1, a.cfg.MaxAttempts, req.Model, err)

		if ctx.Err() != nil {
			return nil, fmt.Errorf("[tts] 合成被取消: %w: %v", ErrTransportAbort, ctx.Err())
		}
	}

	return nil, fmt.Errorf("[tts] 合成失败，%s 已尝试 %d 次: %w", a.secondary.Name(), a.cfg.MaxAttempts, lastErr)
}

// Backoff 返回第 attempt 次重试（从 1 开始）前的等待时间。
// 上一次被限流时在指数退避之外再加固定等待。
func (a *Adapter) Backoff(attempt int, lastErr error) time.Duration {
	if attempt < 1 {
		return 0
	}
	delay := a.cfg.BackoffBase << (attempt - 1)
	if IsRateLimited(lastErr) {
		delay += a.cfg.RateLimitBackoff
	}
	return delay
}

// attempt 在独立超时下调用一次供应商，并记录指标。
func (a *Adapter) attempt(ctx context.Context, p Provider, req Request, timeout time.Duration) (*Result, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res, err := p.Synthesize(callCtx, req)
	if err == nil && (res == nil || len(res.Audio) == 0) {
		err = &ProviderError{Provider: p.Name(), Status: 200, Message: "音频为空"}
	}
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrProviderTimeout) {
		err = fmt.Errorf("[tts] %s 超过 %s: %w: %v", p.Name(), timeout, ErrProviderTimeout, err)
	}

	a.metrics.ObserveAttempt(p.Name(), outcome(err), time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProviderTimeout):
		return "timeout"
	case errors.Is(err, ErrProviderRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransportAbort):
		return "transport"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
