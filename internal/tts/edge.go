package tts

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/mindcast/internal/logger"
)

// EdgeProvider 使用微软 Edge TTS 实现语音合成，不需要凭据。
// 返回 MP3 数据，由 Normalizer 按压缩格式原样封装。
type EdgeProvider struct {
	voice string
}

// NewEdgeProvider 创建 Edge TTS 供应商，voice 为请求音色不是 Edge 音色名时的默认值。
func NewEdgeProvider(voice string) *EdgeProvider {
	return &EdgeProvider{voice: voice}
}

// Name 实现 Provider 接口。
func (e *EdgeProvider) Name() string { return "edge" }

// Synthesize 实现 Provider 接口。
func (e *EdgeProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	// 只有形如 en-US-AriaNeural 的音色名才是 Edge 可识别的
	voice := e.voice
	if strings.Count(req.Voice, "-") >= 2 {
		voice = req.Voice
	}

	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(req.Text)), voice)

	comm, err := edge.NewCommunicate(req.Text, edge.WithVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, transportError(e.Name(), ctx, err)
	}

	// Stream() 返回的 map 中，type=="audio" 的条目包含 MP3 数据
	var mp3Buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			// 让后台 goroutine 自行退出
			go func() {
				for range ch {
				}
			}()
			return nil, transportError(e.Name(), ctx, ctx.Err())
		case msg, ok := <-ch:
			if !ok {
				if mp3Buf.Len() == 0 {
					return nil, &ProviderError{Provider: e.Name(), Status: 200, Message: "未收到音频数据"}
				}
				logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据", mp3Buf.Len())
				return &Result{
					Audio:         mp3Buf.Bytes(),
					ContainerHint: "audio/mpeg",
					Provider:      e.Name(),
				}, nil
			}
			if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
				if data, ok := msg["data"].([]byte); ok {
					mp3Buf.Write(data)
				}
			}
		}
	}
}
