package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/iabetor/mindcast/internal/logger"
)

// saySampleRate 是 afconvert 转换后的采样率。
const saySampleRate = 22050

// SayProvider 使用 macOS 内置 say 命令合成，仅在 macOS 上可用。
// say 先输出 AIFF，再由 afconvert 转为 16-bit WAV，整个 WAV 原样返回。
type SayProvider struct {
	voice string // macOS 语音名称，如 "Samantha"
}

// NewSayProvider 创建 macOS say 供应商。voice 为空时使用系统默认语音。
func NewSayProvider(voice string) *SayProvider {
	return &SayProvider{voice: voice}
}

// Name 实现 Provider 接口。
func (s *SayProvider) Name() string { return "say" }

// Synthesize 实现 Provider 接口。
func (s *SayProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	logger.Debugf("[tts] say: 正在合成 %d 个字符", len([]rune(req.Text)))

	tmpFile, err := os.CreateTemp("", "mindcast-say-*.aiff")
	if err != nil {
		return nil, fmt.Errorf("[tts] say: 创建临时文件失败: %w", err)
	}
	aiffPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(aiffPath)

	wavPath := aiffPath + ".wav"
	defer os.Remove(wavPath)

	args := []string{"-o", aiffPath}
	if s.voice != "" {
		args = append(args, "-v", s.voice)
	}
	args = append(args, req.Text)

	if err := runCommand(ctx, "say", args...); err != nil {
		return nil, s.commandError(ctx, err)
	}

	if err := runCommand(ctx, "afconvert",
		"-f", "WAVE",
		"-d", fmt.Sprintf("LEI16@%d", saySampleRate),
		"-c", "1",
		aiffPath, wavPath,
	); err != nil {
		return nil, s.commandError(ctx, err)
	}

	wavData, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, fmt.Errorf("[tts] say: 读取输出文件失败: %w", err)
	}
	if len(wavData) <= 44 {
		return nil, &ProviderError{Provider: s.Name(), Message: "未收到音频数据"}
	}

	logger.Debugf("[tts] say: 收到 %d 字节 WAV", len(wavData))

	return &Result{
		Audio:         wavData,
		ContainerHint: "audio/wav",
		Provider:      s.Name(),
	}, nil
}

func (s *SayProvider) commandError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return transportError(s.Name(), ctx, ctx.Err())
	}
	return &ProviderError{Provider: s.Name(), Status: exitCode(err), Message: err.Error()}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s 执行失败: %w, stderr: %s", name, err, stderr.String())
	}
	return nil
}
