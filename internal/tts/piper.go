package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/iabetor/mindcast/internal/logger"
)

// piperSampleRate 是 piper 输出的固定采样率。
const piperSampleRate = 22050

// PiperProvider 使用本地 piper CLI 子进程合成，不需要网络和凭据。
// piper 输出 signed 16-bit LE 单声道 PCM，采样率 22050 Hz。
type PiperProvider struct {
	binary    string
	modelPath string
}

// NewPiperProvider 创建指定模型的 Piper 供应商。binary 为空时从 PATH 查找 piper。
func NewPiperProvider(binary, modelPath string) *PiperProvider {
	if binary == "" {
		binary = "piper"
	}
	return &PiperProvider{binary: binary, modelPath: modelPath}
}

// Name 实现 Provider 接口。
func (p *PiperProvider) Name() string { return "piper" }

// Synthesize 实现 Provider 接口。音色由模型决定，req.Voice 被忽略。
func (p *PiperProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	logger.Debugf("[tts] piper: 正在合成 %d 个字符，模型=%s", len([]rune(req.Text)), p.modelPath)

	cmd := exec.CommandContext(ctx, p.binary, "--model", p.modelPath, "--output-raw")
	cmd.Stdin = strings.NewReader(req.Text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, transportError(p.Name(), ctx, ctx.Err())
		}
		if s := strings.TrimSpace(stderr.String()); s != "" {
			logger.Warnf("[tts] piper stderr: %s", s)
		}
		return nil, &ProviderError{Provider: p.Name(), Status: exitCode(err), Message: err.Error()}
	}

	pcm := stdout.Bytes()
	if len(pcm) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Message: "未收到音频数据"}
	}

	logger.Debugf("[tts] piper: 收到 %d 字节原始 PCM", len(pcm))

	return &Result{
		Audio:         pcm,
		ContainerHint: fmt.Sprintf("audio/pcm;rate=%d", piperSampleRate),
		Provider:      p.Name(),
	}, nil
}

// exitCode 从子进程错误中取出退出码，取不到时返回 -1。
func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
