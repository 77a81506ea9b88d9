package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/iabetor/mindcast/internal/logger"
)

// HTTPConfig 流式 PCM HTTP 供应商配置。
type HTTPConfig struct {
	APIURL     string
	APIKey     string
	APIVersion string
	Model      string
	Language   string
	SampleRate int
}

// HTTPProvider 通过 HTTP 接口获取 16-bit LE 裸 PCM，是低延迟的主供应商。
type HTTPProvider struct {
	cfg        HTTPConfig
	httpClient *http.Client
}

// NewHTTPProvider 创建 HTTP PCM 供应商。单次调用的超时由 Adapter 通过 context 控制。
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	return &HTTPProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Name 实现 Provider 接口。
func (p *HTTPProvider) Name() string { return "http" }

// httpSynthRequest 是发送到 /tts/bytes 的 JSON 请求体。
type httpSynthRequest struct {
	ModelID      string           `json:"model_id"`
	Transcript   string           `json:"transcript"`
	Voice        httpVoice        `json:"voice"`
	OutputFormat httpOutputFormat `json:"output_format"`
	Language     string           `json:"language,omitempty"`
}

type httpVoice struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type httpOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

// Synthesize 实现 Provider 接口。
func (p *HTTPProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := httpSynthRequest{
		ModelID:    model,
		Transcript: req.Text,
		Voice:      httpVoice{Mode: "id", ID: req.Voice},
		OutputFormat: httpOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: p.cfg.SampleRate,
		},
		Language: p.cfg.Language,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("[tts] 序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(p.cfg.APIURL, "/")+"/tts/bytes", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", p.cfg.APIKey)
	if p.cfg.APIVersion != "" {
		httpReq.Header.Set("Cartesia-Version", p.cfg.APIVersion)
	}

	logger.Debugf("[tts] http: 正在合成 %d 个字符，音色=%s，模型=%s", len([]rune(req.Text)), req.Voice, model)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, newStatusError(p.Name(), resp.StatusCode, errBody)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(p.Name(), ctx, err)
	}
	if len(pcm) == 0 {
		return nil, &ProviderError{Provider: p.Name(), Status: resp.StatusCode, Message: "未收到音频数据"}
	}

	logger.Debugf("[tts] http: 收到 %d 字节 PCM", len(pcm))

	return &Result{
		Audio:         pcm,
		ContainerHint: fmt.Sprintf("audio/pcm;rate=%d", p.cfg.SampleRate),
		Provider:      p.Name(),
		Model:         model,
	}, nil
}
