package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 是 mindcast 的顶层配置结构。
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	TTS      TTSConfig      `yaml:"tts"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Fade     FadeConfig     `yaml:"fade"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Bus      BusConfig      `yaml:"bus"`
}

// AudioConfig 描述无头 PCM 负载的默认格式。
// 供应商只返回裸 PCM 时，按这里的参数合成 WAV 头。
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	Channels   int `yaml:"channels"`
}

// TTSConfig 语音合成配置。
type TTSConfig struct {
	Primary   PrimaryConfig   `yaml:"primary"`
	Secondary SecondaryConfig `yaml:"secondary"`
}

// PrimaryConfig 快速主供应商配置。
// Engine 为空表示不启用主供应商，直接走备用供应商。
type PrimaryConfig struct {
	Engine    string        `yaml:"engine"` // http | tencent | edge | piper | say
	TimeoutMs int           `yaml:"timeout_ms"`
	HTTP      HTTPConfig    `yaml:"http"`
	Tencent   TencentConfig `yaml:"tencent"`
	Edge      EdgeConfig    `yaml:"edge"`
	Piper     PiperConfig   `yaml:"piper"`
	Say       SayConfig     `yaml:"say"`
}

// HTTPConfig 流式 PCM HTTP 接口配置。
type HTTPConfig struct {
	APIURL     string `yaml:"api_url"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
	Model      string `yaml:"model"`
	Language   string `yaml:"language"`
	SampleRate int    `yaml:"sample_rate"`
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID   string  `yaml:"secret_id"`
	SecretKey  string  `yaml:"secret_key"`
	VoiceType  int64   `yaml:"voice_type"`
	Region     string  `yaml:"region"`
	Speed      float64 `yaml:"speed"`
	SampleRate int     `yaml:"sample_rate"`
	Endpoint   string  `yaml:"endpoint"`
}

// EdgeConfig Edge TTS 配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// PiperConfig 本地 Piper TTS 配置。
type PiperConfig struct {
	Binary    string `yaml:"binary"`
	ModelPath string `yaml:"model_path"`
}

// SayConfig macOS say 命令配置。
type SayConfig struct {
	Voice string `yaml:"voice"`
}

// SecondaryConfig 备用供应商（Gemini）配置及重试策略。
type SecondaryConfig struct {
	APIURL             string `yaml:"api_url"`
	APIKey             string `yaml:"api_key"`
	FastModel          string `yaml:"fast_model"`
	QualityModel       string `yaml:"quality_model"`
	StylePrompt        string `yaml:"style_prompt"`
	TimeoutMs          int    `yaml:"timeout_ms"`
	MaxAttempts        int    `yaml:"max_attempts"`
	BackoffBaseMs      int    `yaml:"backoff_base_ms"`
	RateLimitBackoffMs int    `yaml:"rate_limit_backoff_ms"`
}

// PipelineConfig 批处理循环配置。
type PipelineConfig struct {
	// ThrottleMs 每个批次成功后的固定等待时间，用于遵守供应商限流。
	ThrottleMs int `yaml:"throttle_ms"`
	// Voice 默认音色，命令行可覆盖。
	Voice string `yaml:"voice"`
}

// FadeConfig 整段录音淡入淡出配置。
type FadeConfig struct {
	MaxFadeMs int `yaml:"max_fade_ms"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// MetricsConfig Prometheus 指标配置。Addr 为空则不暴露 HTTP 端点。
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// BusConfig NATS 事件总线配置。Servers 为空则不发布事件。
type BusConfig struct {
	Servers          []string `yaml:"servers"`
	Token            string   `yaml:"token"`
	ConnectTimeoutMs int      `yaml:"connect_timeout_ms"`
	SubjectPrefix    string   `yaml:"subject_prefix"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 先尝试加载同目录及当前目录下的 .env，再展开 ${VAR_NAME} 形式的环境变量。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// .env 不存在不算错误，已有的环境变量优先
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查必填项和互相矛盾的配置。
func (c *Config) Validate() error {
	if c.TTS.Secondary.APIKey == "" {
		return fmt.Errorf("tts.secondary.api_key 不能为空")
	}
	if c.TTS.Secondary.MaxAttempts < 1 {
		return fmt.Errorf("tts.secondary.max_attempts 必须 >= 1，当前 %d", c.TTS.Secondary.MaxAttempts)
	}
	switch c.TTS.Primary.Engine {
	case "", "http", "tencent", "edge", "piper", "say":
	default:
		return fmt.Errorf("未知的主 TTS 引擎: %s", c.TTS.Primary.Engine)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		return fmt.Errorf("audio.channels 只支持 1 或 2，当前 %d", c.Audio.Channels)
	}
	return nil
}

// PrimaryEnabled 报告主供应商是否配置了可用凭据。
func (c *Config) PrimaryEnabled() bool {
	p := c.TTS.Primary
	switch p.Engine {
	case "http":
		return p.HTTP.APIKey != "" && p.HTTP.APIURL != ""
	case "tencent":
		return p.Tencent.SecretID != "" && p.Tencent.SecretKey != ""
	case "piper":
		return p.Piper.ModelPath != ""
	case "edge", "say":
		// 不需要凭据
		return true
	}
	return false
}

// Throttle 返回批次间的等待时间。
func (c *Config) Throttle() time.Duration {
	return time.Duration(c.Pipeline.ThrottleMs) * time.Millisecond
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 24000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}

	p := &cfg.TTS.Primary
	if p.TimeoutMs == 0 {
		p.TimeoutMs = 15000
	}
	if p.HTTP.Model == "" {
		p.HTTP.Model = "sonic-2"
	}
	if p.HTTP.APIVersion == "" {
		p.HTTP.APIVersion = "2024-06-10"
	}
	if p.HTTP.Language == "" {
		p.HTTP.Language = "en"
	}
	if p.HTTP.SampleRate == 0 {
		p.HTTP.SampleRate = cfg.Audio.SampleRate
	}
	if p.Tencent.Region == "" {
		p.Tencent.Region = "ap-guangzhou"
	}
	if p.Tencent.VoiceType == 0 {
		p.Tencent.VoiceType = 1001
	}
	if p.Tencent.SampleRate == 0 {
		p.Tencent.SampleRate = 16000
	}
	if p.Edge.Voice == "" {
		p.Edge.Voice = "en-US-AriaNeural"
	}

	s := &cfg.TTS.Secondary
	if s.APIURL == "" {
		s.APIURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if s.FastModel == "" {
		s.FastModel = "gemini-2.5-flash-preview-tts"
	}
	if s.QualityModel == "" {
		s.QualityModel = "gemini-2.5-pro-preview-tts"
	}
	if s.TimeoutMs == 0 {
		s.TimeoutMs = 30000
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = 3
	}
	if s.BackoffBaseMs == 0 {
		s.BackoffBaseMs = 1000
	}
	if s.RateLimitBackoffMs == 0 {
		s.RateLimitBackoffMs = 10000
	}

	if cfg.Pipeline.ThrottleMs == 0 {
		cfg.Pipeline.ThrottleMs = 1000
	}
	if cfg.Pipeline.Voice == "" {
		cfg.Pipeline.Voice = "Kore"
	}
	if cfg.Fade.MaxFadeMs == 0 {
		cfg.Fade.MaxFadeMs = 500
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Bus.ConnectTimeoutMs == 0 {
		cfg.Bus.ConnectTimeoutMs = 2000
	}
	if cfg.Bus.SubjectPrefix == "" {
		cfg.Bus.SubjectPrefix = "mindcast"
	}

	// 去除凭据两端可能的空白（环境变量展开后常见）
	s.APIKey = strings.TrimSpace(s.APIKey)
	p.HTTP.APIKey = strings.TrimSpace(p.HTTP.APIKey)
	p.Tencent.SecretID = strings.TrimSpace(p.Tencent.SecretID)
	p.Tencent.SecretKey = strings.TrimSpace(p.Tencent.SecretKey)
}
