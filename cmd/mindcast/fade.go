package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/iabetor/mindcast/internal/audio"
	"github.com/iabetor/mindcast/internal/config"
	"github.com/iabetor/mindcast/internal/logger"
	"github.com/iabetor/mindcast/internal/metrics"
)

// runFade 对一整段会话录音做淡入淡出，解码失败直接返回错误。
func runFade(ctx context.Context, cfg *config.Config, m *metrics.Metrics, in, out, hint string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", in, err)
	}

	start := time.Now()
	res, err := audio.PrepareSession(ctx, data, audio.FadeOptions{
		Raw:           audio.Format{SampleRate: cfg.Audio.SampleRate, Channels: cfg.Audio.Channels},
		ContainerHint: hint,
		MaxFade:       time.Duration(cfg.Fade.MaxFadeMs) * time.Millisecond,
	})
	if err != nil {
		m.IncFade("error")
		return err
	}
	m.IncFade("ok")

	if err := os.WriteFile(out, res.Bytes(), 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", out, err)
	}

	duration, _ := audio.ProbeDuration(res)
	logger.Infof("[main] 已写出 %s (%.1fs，耗时 %s)", out, duration, time.Since(start).Round(time.Millisecond))
	return nil
}
