package pipeline

import (
	"fmt"
	"time"

	"github.com/iabetor/mindcast/internal/audio"
	"github.com/iabetor/mindcast/internal/config"
	"github.com/iabetor/mindcast/internal/logger"
	"github.com/iabetor/mindcast/internal/metrics"
	"github.com/iabetor/mindcast/internal/tts"
)

// New 根据配置创建合成适配器和编排器。
func New(cfg *config.Config, m *metrics.Metrics) (*Orchestrator, error) {
	adapter, err := NewAdapter(cfg, m)
	if err != nil {
		return nil, err
	}

	return NewOrchestrator(adapter, Options{
		Throttle: cfg.Throttle(),
		Normalizer: audio.NewNormalizer(audio.Format{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
		}),
		Metrics: m,
	}), nil
}

// NewAdapter 按配置选择主供应商并组装带重试策略的适配器。
// 主供应商没有凭据时不启用，所有请求直接走备用供应商。
func NewAdapter(cfg *config.Config, m *metrics.Metrics) (*tts.Adapter, error) {
	primary, err := newPrimary(cfg)
	if err != nil {
		return nil, err
	}

	s := cfg.TTS.Secondary
	secondary := tts.NewGeminiProvider(tts.GeminiConfig{
		APIURL:      s.APIURL,
		APIKey:      s.APIKey,
		Model:       s.FastModel,
		StylePrompt: s.StylePrompt,
	})

	return tts.NewAdapter(primary, secondary, tts.AdapterConfig{
		PrimaryTimeout:   ms(cfg.TTS.Primary.TimeoutMs),
		SecondaryTimeout: ms(s.TimeoutMs),
		MaxAttempts:      s.MaxAttempts,
		BackoffBase:      ms(s.BackoffBaseMs),
		RateLimitBackoff: ms(s.RateLimitBackoffMs),
		FastModel:        s.FastModel,
		QualityModel:     s.QualityModel,
	}, m), nil
}

func newPrimary(cfg *config.Config) (tts.Provider, error) {
	p := cfg.TTS.Primary
	if p.Engine == "" {
		return nil, nil
	}
	if !cfg.PrimaryEnabled() {
		logger.Warnf("[pipeline] 主 TTS 引擎 %s 缺少凭据，已禁用", p.Engine)
		return nil, nil
	}

	var (
		provider tts.Provider
		err      error
	)
	switch p.Engine {
	case "http":
		provider = tts.NewHTTPProvider(tts.HTTPConfig{
			APIURL:     p.HTTP.APIURL,
			APIKey:     p.HTTP.APIKey,
			APIVersion: p.HTTP.APIVersion,
			Model:      p.HTTP.Model,
			Language:   p.HTTP.Language,
			SampleRate: p.HTTP.SampleRate,
		})
	case "tencent":
		provider, err = tts.NewTencentProvider(tts.TencentConfig{
			SecretID:   p.Tencent.SecretID,
			SecretKey:  p.Tencent.SecretKey,
			VoiceType:  p.Tencent.VoiceType,
			Region:     p.Tencent.Region,
			Speed:      p.Tencent.Speed,
			SampleRate: p.Tencent.SampleRate,
			Endpoint:   p.Tencent.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化腾讯云 TTS 失败: %w", err)
		}
	case "edge":
		provider = tts.NewEdgeProvider(p.Edge.Voice)
	case "piper":
		provider = tts.NewPiperProvider(p.Piper.Binary, p.Piper.ModelPath)
	case "say":
		provider = tts.NewSayProvider(p.Say.Voice)
	default:
		return nil, fmt.Errorf("未知的 TTS 引擎: %s", p.Engine)
	}

	logger.Infof("[pipeline] 已启用主 TTS 引擎: %s", p.Engine)
	return provider, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
