package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iabetor/mindcast/internal/logger"
)

// GeminiConfig 备用供应商配置。
type GeminiConfig struct {
	APIURL      string
	APIKey      string
	Model       string // 默认模型，Request.Model 为空时使用
	StylePrompt string // 放在文本前的朗读风格说明
}

// GeminiProvider 通过 generateContent 接口以音频模态合成语音。
// 响应中的音频以 base64 内联，并附带 mimeType。
type GeminiProvider struct {
	cfg        GeminiConfig
	httpClient *http.Client
}

// NewGeminiProvider 创建 Gemini 供应商。
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GeminiProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Name 实现 Provider 接口。
func (p *GeminiProvider) Name() string { return "gemini" }

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities"`
	SpeechConfig       geminiSpeechConfig `json:"speechConfig"`
}

type geminiSpeechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Synthesize 实现 Provider 接口。
func (p *GeminiProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	body := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(p.cfg.StylePrompt, req.Text, req.Continuity)}},
		}},
	}
	body.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = req.Voice

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("[tts] 序列化请求体失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(p.cfg.APIURL, "/"), url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.cfg.APIKey)

	logger.Debugf("[tts] gemini: 正在合成 %d 个字符，音色=%s，模型=%s", len([]rune(req.Text)), req.Voice, model)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(p.Name(), ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(p.Name(), ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(p.Name(), resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("[tts] gemini 响应解析失败: %w: %v", ErrTransportAbort, err)
	}

	inline := firstInlineAudio(parsed)
	if inline == nil {
		return nil, &ProviderError{Provider: p.Name(), Status: resp.StatusCode, Message: "响应中没有内联音频"}
	}

	audioData, err := base64.StdEncoding.DecodeString(inline.Data)
	if err != nil {
		return nil, fmt.Errorf("[tts] Base64 解码失败: %w: %v", ErrTransportAbort, err)
	}

	logger.Debugf("[tts] gemini: 收到 %d 字节音频 (%s)", len(audioData), inline.MimeType)

	return &Result{
		Audio:         audioData,
		ContainerHint: inline.MimeType,
		Provider:      p.Name(),
		Model:         model,
	}, nil
}

func firstInlineAudio(resp geminiResponse) *geminiInlineData {
	for _, c := range resp.Candidates {
		for _, part := range c.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData
			}
		}
	}
	return nil
}

// buildPrompt 组合风格说明、衔接上下文和正文。
func buildPrompt(style, text string, c *Continuity) string {
	var b strings.Builder
	if style != "" {
		b.WriteString(strings.TrimSpace(style))
		b.WriteString("\n")
	}
	if c != nil && c.ChunkIndex > 0 {
		fmt.Fprintf(&b, "(Part %d of %d, continuing in the same voice and pace", c.ChunkIndex+1, c.TotalChunks)
		if tail := strings.TrimSpace(c.PreviousChunkTail); tail != "" {
			fmt.Fprintf(&b, " after: %q", tail)
		}
		b.WriteString(")\n")
	}
	b.WriteString(text)
	return b.String()
}
