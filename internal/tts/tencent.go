package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	tts "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"

	"github.com/iabetor/mindcast/internal/logger"
)

// TencentProvider 使用腾讯云 TextToVoice 实现语音合成，直接请求 PCM 输出。
type TencentProvider struct {
	client     *tts.Client
	voiceType  int64
	speed      float64
	sampleRate int
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID   string
	SecretKey  string
	VoiceType  int64
	Region     string
	Speed      float64
	SampleRate int
	// Endpoint 为空时使用公网地址，可写成 http://host:port 指向私有网关。
	Endpoint string
}

// NewTencentProvider 创建腾讯云 TTS 供应商。
func NewTencentProvider(cfg TencentConfig) (*TencentProvider, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}

	if cfg.VoiceType == 0 {
		cfg.VoiceType = 1001
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"
	if cfg.Endpoint != "" {
		endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
		if strings.HasPrefix(endpoint, "http://") {
			cpf.HttpProfile.Scheme = "HTTP"
			endpoint = strings.TrimPrefix(endpoint, "http://")
		}
		cpf.HttpProfile.Endpoint = strings.TrimRight(endpoint, "/")
	}

	client, err := tts.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 已初始化 (voice=%d, region=%s, rate=%d)", cfg.VoiceType, cfg.Region, cfg.SampleRate)

	return &TencentProvider{
		client:     client,
		voiceType:  cfg.VoiceType,
		speed:      cfg.Speed,
		sampleRate: cfg.SampleRate,
	}, nil
}

// Name 实现 Provider 接口。
func (e *TencentProvider) Name() string { return "tencent" }

// Synthesize 实现 Provider 接口。
// voice 为数字时作为音色 ID，否则使用配置中的默认音色。
func (e *TencentProvider) Synthesize(ctx context.Context, req Request) (*Result, error) {
	voiceType := e.voiceType
	if v, err := strconv.ParseInt(req.Voice, 10, 64); err == nil && v > 0 {
		voiceType = v
	}

	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d", len([]rune(req.Text)), voiceType)

	request := tts.NewTextToVoiceRequest()
	request.Text = common.StringPtr(req.Text)
	request.SessionId = common.StringPtr(fmt.Sprintf("mindcast-%d", ctxChunk(req)))
	request.VoiceType = common.Int64Ptr(voiceType)
	request.Codec = common.StringPtr("pcm")
	request.SampleRate = common.Uint64Ptr(uint64(e.sampleRate))
	request.Speed = common.Float64Ptr(e.speed)
	request.Volume = common.Float64Ptr(0)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		var sdkErr *tcerr.TencentCloudSDKError
		if errors.As(err, &sdkErr) && !strings.HasPrefix(sdkErr.GetCode(), "ClientError.NetworkError") {
			status := tencentStatus(sdkErr.GetCode(), sdkErr.GetMessage())
			return nil, &ProviderError{
				Provider:    e.Name(),
				Status:      status,
				Code:        sdkErr.GetCode(),
				Message:     sdkErr.GetMessage(),
				RateLimited: status == http.StatusTooManyRequests,
			}
		}
		return nil, transportError(e.Name(), ctx, err)
	}

	if response.Response == nil || response.Response.Audio == nil || *response.Response.Audio == "" {
		return nil, &ProviderError{Provider: e.Name(), Status: 200, Message: "未返回音频数据"}
	}

	pcm, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("[tts] Base64 解码失败: %w: %v", ErrTransportAbort, err)
	}

	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节 PCM", len(pcm))

	return &Result{
		Audio:         pcm,
		ContainerHint: fmt.Sprintf("audio/pcm;rate=%d", e.sampleRate),
		Provider:      e.Name(),
	}, nil
}

func ctxChunk(req Request) int {
	if req.Continuity == nil {
		return 0
	}
	return req.Continuity.ChunkIndex
}

var httpStatusPattern = regexp.MustCompile(`(?i)status code:?\s*(\d{3})`)

// tencentStatus 把腾讯云错误码映射为 HTTP 状态码。
func tencentStatus(code, message string) int {
	switch {
	case code == "ClientError.HttpStatusCodeError":
		if m := httpStatusPattern.FindStringSubmatch(message); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				return v
			}
		}
		return http.StatusBadGateway
	case strings.HasPrefix(code, "RequestLimitExceeded"), strings.HasPrefix(code, "LimitExceeded"):
		return http.StatusTooManyRequests
	case strings.HasPrefix(code, "AuthFailure"), strings.HasPrefix(code, "UnauthorizedOperation"):
		return http.StatusUnauthorized
	case strings.HasPrefix(code, "ResourceUnavailable"), strings.HasPrefix(code, "ResourceInsufficient"):
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "InternalError"):
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}
