package tts

import "context"

// Continuity 描述当前文本在整段脚本中的位置，供应商可用它保持语气连贯。
type Continuity struct {
	ChunkIndex        int
	TotalChunks       int
	PreviousChunkTail string
}

// Request 是一次供应商调用的输入。Text 已经过 PrepareText 处理。
type Request struct {
	Text  string
	Voice string
	// Model 为空时使用供应商默认模型。
	Model      string
	Continuity *Continuity
}

// Result 是合成结果：原始音频字节加容器提示（类 MIME 字符串）。
// 调用方不解析音频内容，交给 audio.Normalizer 处理。
type Result struct {
	Audio         []byte
	ContainerHint string
	Provider      string
	Model         string
}

// Provider 定义语音合成供应商接口。
// 实现是一个封闭集合（http、tencent、edge、gemini），由配置选择。
type Provider interface {
	// Name 返回供应商名称，用于日志和指标。
	Name() string
	// Synthesize 发起一次合成调用，不做重试。
	Synthesize(ctx context.Context, req Request) (*Result, error)
}
